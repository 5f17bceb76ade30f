package domain

// Kind identifies which principal store a record lives in.
type Kind string

const (
	KindStaff    Kind = "staff"
	KindCustomer Kind = "customer"
	KindCoworker Kind = "coworker"
)

// LoginOrder is the fixed priority used to resolve a phone number that may
// exist in more than one store. Login stops at the first verified match.
var LoginOrder = []Kind{KindStaff, KindCustomer, KindCoworker}

func ValidKind(k string) bool {
	switch Kind(k) {
	case KindStaff, KindCustomer, KindCoworker:
		return true
	}
	return false
}

type StaffRole string

const (
	RoleAdmin        StaffRole = "admin"
	RoleManager      StaffRole = "manager"
	RoleEditor       StaffRole = "editor"
	RoleDesigner     StaffRole = "designer"
	RoleVideoShooter StaffRole = "video-shooter"
)

type Staff struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phone_number"`
	PasswordHash string    `json:"-"`
	Role         StaffRole `json:"role" enum:"admin,manager,editor,designer,video-shooter"`
	CreatedAt    string    `json:"created_at" format:"date-time"`
	UpdatedAt    string    `json:"updated_at" format:"date-time"`
}

type Customer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phone_number"`
	PasswordHash string `json:"-"`
	Company      string `json:"company,omitempty"`
	IsVIP        bool   `json:"is_vip"`
	IsActive     bool   `json:"is_active"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type Coworker struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	PhoneNumber  string  `json:"phone_number"`
	PasswordHash string  `json:"-"`
	Skills       string  `json:"skills,omitempty"`
	IsApproved   bool    `json:"is_approved"`
	ApprovedBy   *string `json:"approved_by,omitempty"`
	IsActive     bool    `json:"is_active"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

// Service is a catalog entry that service requests are raised against.
type Service struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BasePrice   int64  `json:"base_price"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type ServiceRequest struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	ServiceID     string   `json:"service_id"`
	Quantity      int      `json:"quantity"`
	Priority      string   `json:"priority" enum:"low,medium,high,urgent"`
	Status        string   `json:"status" enum:"pending,approved,in-progress,completed,cancelled"`
	RequestedDate string   `json:"requested_date" format:"date-time"`
	ScheduledDate *string  `json:"scheduled_date,omitempty" format:"date-time"`
	Requirements  string   `json:"requirements,omitempty"`
	RequestedBy   string   `json:"requested_by"`
	ApprovedBy    *string  `json:"approved_by,omitempty"`
	AssignedTo    []string `json:"assigned_to,omitempty"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
	UpdatedAt     string   `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID               string  `json:"id"`
	ServiceRequestID string  `json:"service_request_id"`
	AssigneeID       string  `json:"assignee_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	Status           string  `json:"status" enum:"todo,in-progress,review,accepted,completed,cancelled"`
	Priority         string  `json:"priority" enum:"low,medium,high,urgent"`
	DueDate          *string `json:"due_date,omitempty" format:"date-time"`
	Notes            string  `json:"notes,omitempty"`
	Deliverables     string  `json:"deliverables,omitempty"`
	VideoURL         *string `json:"video_url,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey authenticates operational automation as a staff principal.
type APIKey struct {
	ID        string `json:"id"`
	StaffID   string `json:"staff_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Request statuses.
const (
	RequestPending    = "pending"
	RequestApproved   = "approved"
	RequestInProgress = "in-progress"
	RequestCompleted  = "completed"
	RequestCancelled  = "cancelled"
)

// Task statuses.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in-progress"
	TaskReview     = "review"
	TaskAccepted   = "accepted"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ValidRequestStatus(s string) bool {
	switch s {
	case RequestPending, RequestApproved, RequestInProgress, RequestCompleted, RequestCancelled:
		return true
	}
	return false
}

func ValidTaskStatus(s string) bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskReview, TaskAccepted, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

func ValidStaffRole(r string) bool {
	switch StaffRole(r) {
	case RoleAdmin, RoleManager, RoleEditor, RoleDesigner, RoleVideoShooter:
		return true
	}
	return false
}

// TerminalTaskStatus reports whether no further transitions are possible.
func TerminalTaskStatus(s string) bool {
	return s == TaskCompleted || s == TaskCancelled
}

package server

import (
	"studioline/internal/domain"
)

// Request payloads

type LoginRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type SignupRequest struct {
	Kind        string `json:"kind" enum:"customer,coworker"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
	Company     string `json:"company,omitempty"`
	Skills      string `json:"skills,omitempty"`
}

type VerifyTokenRequest struct {
	Token string `json:"token"`
	// PrincipalID, when set, must match the token's subject.
	PrincipalID string `json:"principal_id,omitempty"`
}

type CreateStaffRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
	Role        string `json:"role" enum:"admin,manager,editor,designer,video-shooter"`
}

type UpdateStaffRequest struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *string `json:"role,omitempty" enum:"admin,manager,editor,designer,video-shooter"`
}

type UpdateCustomerRequest struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
	Company  *string `json:"company,omitempty"`
	IsVIP    *bool   `json:"is_vip,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type UpdateCoworkerRequest struct {
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
	Skills   *string `json:"skills,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type CoworkerApprovalRequest struct {
	Action string `json:"action" enum:"approve,decline"`
}

type CreateServiceRequestBody struct {
	Title         string  `json:"title"`
	ServiceID     string  `json:"service_id"`
	Quantity      *int    `json:"quantity,omitempty"`
	Priority      *string `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	ScheduledDate *string `json:"scheduled_date,omitempty" format:"date-time"`
	Requirements  *string `json:"requirements,omitempty"`
	RequestedBy   *string `json:"requested_by,omitempty"`
}

type UpdateServiceRequestBody struct {
	Title         *string   `json:"title,omitempty"`
	Quantity      *int      `json:"quantity,omitempty"`
	Status        *string   `json:"status,omitempty" enum:"pending,approved,in-progress,completed,cancelled"`
	Priority      *string   `json:"priority,omitempty" enum:"low,medium,high,urgent"`
	ScheduledDate *string   `json:"scheduled_date,omitempty"`
	Requirements  *string   `json:"requirements,omitempty"`
	AssignedTo    *[]string `json:"assigned_to,omitempty"`
}

type UpdateTaskRequest struct {
	Status       *string `json:"status,omitempty" enum:"todo,in-progress,review,accepted,completed,cancelled"`
	Notes        *string `json:"notes,omitempty"`
	Deliverables *string `json:"deliverables,omitempty"`
	VideoURL     *string `json:"video_url,omitempty"`
}

type ReviewTaskRequest struct {
	Action string `json:"action" enum:"approve,reject"`
	Reason string `json:"reason,omitempty"`
}

type CreateServiceBody struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BasePrice   int64  `json:"base_price,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name    string `json:"name,omitempty"`
	StaffID string `json:"staff_id,omitempty"`
}

// Response payloads

type PrincipalResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind" enum:"staff,customer,coworker"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role,omitempty"`
}

type LoginResponse struct {
	Token     string            `json:"token"`
	Principal PrincipalResponse `json:"principal"`
}

type VerifyTokenResponse struct {
	Valid     bool               `json:"valid"`
	Exists    bool               `json:"exists"`
	Principal *PrincipalResponse `json:"principal,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	StaffID   string `json:"staff_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

func principalResponse(id, kind, name, phone, role string) PrincipalResponse {
	return PrincipalResponse{ID: id, Kind: kind, Name: name, PhoneNumber: phone, Role: role}
}

func mapStaff(items []domain.Staff) []domain.Staff {
	if items == nil {
		return []domain.Staff{}
	}
	return items
}

func mapCustomers(items []domain.Customer) []domain.Customer {
	if items == nil {
		return []domain.Customer{}
	}
	return items
}

func mapCoworkers(items []domain.Coworker) []domain.Coworker {
	if items == nil {
		return []domain.Coworker{}
	}
	return items
}

func mapRequests(items []domain.ServiceRequest) []domain.ServiceRequest {
	if items == nil {
		return []domain.ServiceRequest{}
	}
	return items
}

func mapTasks(items []domain.Task) []domain.Task {
	if items == nil {
		return []domain.Task{}
	}
	return items
}

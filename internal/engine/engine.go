package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studioline/internal/config"
	"studioline/internal/domain"
	"studioline/internal/engine/authz"
	"studioline/internal/events"
	"studioline/internal/repo"
	"studioline/internal/token"
)

// InvalidTransitionError is a state-machine guard failure. The entity is
// never mutated when one is returned.
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid task status transition %s -> %s", e.From, e.To)
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) defaultPriority() string {
	if e.Config != nil && e.Config.Defaults.TaskPriority != "" {
		return e.Config.Defaults.TaskPriority
	}
	return domain.PriorityMedium
}

// ServiceCreateOptions are parameters for adding a catalog entry.
type ServiceCreateOptions struct {
	Name        string
	Description string
	BasePrice   int64
	ActorID     string
}

func (e Engine) CreateService(ctx context.Context, opts ServiceCreateOptions) (domain.Service, error) {
	if opts.Name == "" {
		return domain.Service{}, errors.New("name is required")
	}
	s := domain.Service{
		ID:          uuid.NewString(),
		Name:        opts.Name,
		Description: opts.Description,
		BasePrice:   opts.BasePrice,
		IsActive:    true,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Service{}, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT INTO services(id, name, description, base_price, is_active, created_at) VALUES (?,?,?,?,?,?)`,
		s.ID, s.Name, s.Description, s.BasePrice, s.IsActive, s.CreatedAt); err != nil {
		return domain.Service{}, fmt.Errorf("insert service: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "service.created", "service", s.ID, opts.ActorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.Service{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Service{}, err
	}
	return s, nil
}

// ServiceRequestCreateOptions are parameters for raising a request.
type ServiceRequestCreateOptions struct {
	Title         string
	ServiceID     string
	Quantity      int
	Priority      string
	ScheduledDate string
	Requirements  string
	RequestedBy   string
	ActorID       string
}

func (e Engine) CreateServiceRequest(ctx context.Context, opts ServiceRequestCreateOptions) (domain.ServiceRequest, error) {
	if opts.Title == "" {
		return domain.ServiceRequest{}, errors.New("title is required")
	}
	if opts.ServiceID == "" {
		return domain.ServiceRequest{}, errors.New("service_id is required")
	}
	if opts.RequestedBy == "" {
		return domain.ServiceRequest{}, errors.New("requested_by is required")
	}
	svc, err := e.Repo.GetService(ctx, opts.ServiceID)
	if err != nil {
		return domain.ServiceRequest{}, fmt.Errorf("service %s: %w", opts.ServiceID, err)
	}
	if !svc.IsActive {
		return domain.ServiceRequest{}, fmt.Errorf("service %s is not active", svc.Name)
	}
	if _, err := e.Repo.GetCustomer(ctx, opts.RequestedBy); err != nil {
		return domain.ServiceRequest{}, fmt.Errorf("customer %s: %w", opts.RequestedBy, err)
	}
	if opts.Quantity <= 0 {
		opts.Quantity = 1
	}
	if opts.Priority == "" {
		opts.Priority = e.defaultPriority()
	}
	if !domain.ValidPriority(opts.Priority) {
		return domain.ServiceRequest{}, fmt.Errorf("invalid priority %q", opts.Priority)
	}
	now := e.now().UTC().Format(time.RFC3339)
	sr := domain.ServiceRequest{
		ID:            uuid.NewString(),
		Title:         opts.Title,
		ServiceID:     opts.ServiceID,
		Quantity:      opts.Quantity,
		Priority:      opts.Priority,
		Status:        domain.RequestPending,
		RequestedDate: now,
		Requirements:  opts.Requirements,
		RequestedBy:   opts.RequestedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if opts.ScheduledDate != "" {
		sr.ScheduledDate = &opts.ScheduledDate
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertServiceRequestTx(ctx, tx, sr); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := e.Events.Append(ctx, tx, "request.created", "service-request", sr.ID, opts.ActorID, events.EventPayload{
		"title":  sr.Title,
		"status": sr.Status,
	}); err != nil {
		return domain.ServiceRequest{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ServiceRequest{}, err
	}
	return sr, nil
}

// ServiceRequestUpdateOptions encapsulates allowed updates. AssignedTo nil
// leaves the assigned set untouched; a non-nil slice replaces it.
type ServiceRequestUpdateOptions struct {
	ID            string
	Title         *string
	Quantity      *int
	Status        *string
	Priority      *string
	ScheduledDate *string
	Requirements  *string
	AssignedTo    *[]string
	ActorID       string
}

// UpdateServiceRequest applies field updates and the assignment delta in a
// single transaction: the prior assigned set is read, newly added staff get
// exactly one synthesized task each, and removed staff have their open
// tasks cancelled. Serializing the read-modify-write in one transaction is
// what keeps concurrent identical updates from creating duplicate tasks.
func (e Engine) UpdateServiceRequest(ctx context.Context, opts ServiceRequestUpdateOptions) (domain.ServiceRequest, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ServiceRequest{}, err
	}
	defer tx.Rollback()

	sr, err := e.Repo.GetServiceRequestTx(ctx, tx, opts.ID)
	if err != nil {
		return sr, err
	}
	original := sr

	if opts.Title != nil && *opts.Title != "" {
		sr.Title = *opts.Title
	}
	if opts.Quantity != nil {
		if *opts.Quantity <= 0 {
			return sr, errors.New("quantity must be positive")
		}
		sr.Quantity = *opts.Quantity
	}
	if opts.Priority != nil {
		if !domain.ValidPriority(*opts.Priority) {
			return sr, fmt.Errorf("invalid priority %q", *opts.Priority)
		}
		sr.Priority = *opts.Priority
	}
	if opts.ScheduledDate != nil {
		if *opts.ScheduledDate == "" {
			sr.ScheduledDate = nil
		} else {
			sr.ScheduledDate = opts.ScheduledDate
		}
	}
	if opts.Requirements != nil {
		sr.Requirements = *opts.Requirements
	}
	if opts.Status != nil && *opts.Status != sr.Status {
		if !domain.ValidRequestStatus(*opts.Status) {
			return sr, fmt.Errorf("invalid request status %q", *opts.Status)
		}
		sr.Status = *opts.Status
		if sr.Status == domain.RequestApproved && sr.ApprovedBy == nil {
			actor := opts.ActorID
			sr.ApprovedBy = &actor
		}
	}

	now := e.now().UTC().Format(time.RFC3339)
	sr.UpdatedAt = now

	var added, removed []string
	if opts.AssignedTo != nil {
		current, err := e.Repo.ListAssigneesTx(ctx, tx, sr.ID)
		if err != nil {
			return sr, err
		}
		added, removed = diffAssignees(current, *opts.AssignedTo)
		for _, staffID := range added {
			if _, err := e.staffExistsTx(ctx, tx, staffID); err != nil {
				return sr, fmt.Errorf("assignee %s: %w", staffID, err)
			}
			if err := e.Repo.AddAssigneeTx(ctx, tx, sr.ID, staffID, now); err != nil {
				return sr, err
			}
			t := e.synthesizeTask(sr, staffID, now)
			if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
				return sr, err
			}
			if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, opts.ActorID, events.EventPayload{
				"service_request_id": sr.ID,
				"assignee_id":        staffID,
				"status":             t.Status,
			}); err != nil {
				return sr, err
			}
		}
		for _, staffID := range removed {
			if err := e.Repo.RemoveAssigneeTx(ctx, tx, sr.ID, staffID); err != nil {
				return sr, err
			}
			open, err := e.Repo.OpenTasksForAssigneeTx(ctx, tx, sr.ID, staffID)
			if err != nil {
				return sr, err
			}
			for _, t := range open {
				t.Status = domain.TaskCancelled
				t.UpdatedAt = now
				if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
					return sr, err
				}
				if err := e.Events.Append(ctx, tx, "task.cancelled", "task", t.ID, opts.ActorID, events.EventPayload{
					"cause":       "assignee removed",
					"assignee_id": staffID,
				}); err != nil {
					return sr, err
				}
			}
		}
	}

	if err := e.Repo.UpdateServiceRequestTx(ctx, tx, sr); err != nil {
		return sr, err
	}
	payload := events.EventPayload{
		"from_status": original.Status,
		"to_status":   sr.Status,
	}
	if len(added) > 0 {
		payload["assigned"] = added
	}
	if len(removed) > 0 {
		payload["unassigned"] = removed
	}
	if err := e.Events.Append(ctx, tx, "request.updated", "service-request", sr.ID, opts.ActorID, payload); err != nil {
		return sr, err
	}
	if err := tx.Commit(); err != nil {
		return sr, err
	}
	sr.AssignedTo, err = e.Repo.ListAssignees(ctx, sr.ID)
	if err != nil {
		return sr, err
	}
	return sr, nil
}

func (e Engine) staffExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM staff WHERE id=?`, id).Scan(&n)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, repo.ErrNotFound
	}
	return true, nil
}

// diffAssignees computes the delta between the stored set and an incoming
// array, treating ids as opaque and ignoring duplicates in the input.
func diffAssignees(current, incoming []string) (added, removed []string) {
	curSet := make(map[string]bool, len(current))
	for _, id := range current {
		curSet[id] = true
	}
	inSet := make(map[string]bool, len(incoming))
	for _, id := range incoming {
		if id == "" || inSet[id] {
			continue
		}
		inSet[id] = true
		if !curSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if !inSet[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// synthesizeTask builds the work item created when a staff member is newly
// added to a request's assigned set.
func (e Engine) synthesizeTask(sr domain.ServiceRequest, staffID, now string) domain.Task {
	priority := sr.Priority
	if !domain.ValidPriority(priority) {
		priority = e.defaultPriority()
	}
	return domain.Task{
		ID:               uuid.NewString(),
		ServiceRequestID: sr.ID,
		AssigneeID:       staffID,
		Title:            sr.Title,
		Description:      fmt.Sprintf("Work item for service request %q", sr.Title),
		Status:           domain.TaskTodo,
		Priority:         priority,
		DueDate:          sr.ScheduledDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// TaskUpdateOptions encapsulates assignee-driven task updates.
type TaskUpdateOptions struct {
	ID           string
	Status       string
	Notes        *string
	Deliverables *string
	VideoURL     *string
	ActorID      string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return t, err
	}
	original := t

	if opts.Status != "" && opts.Status != t.Status {
		if !domain.ValidTaskStatus(opts.Status) {
			return t, fmt.Errorf("invalid task status %q", opts.Status)
		}
		if err := ensureTaskTransition(t.Status, opts.Status); err != nil {
			return t, err
		}
		t.Status = opts.Status
	}
	if opts.Notes != nil {
		t.Notes = *opts.Notes
	}
	if opts.Deliverables != nil {
		t.Deliverables = *opts.Deliverables
	}
	if opts.VideoURL != nil {
		if *opts.VideoURL == "" {
			t.VideoURL = nil
		} else {
			t.VideoURL = opts.VideoURL
		}
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", "task", t.ID, opts.ActorID, events.EventPayload{
		"from_status": original.Status,
		"to_status":   t.Status,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// ensureTaskTransition is the assignee-facing transition table. Completion
// is deliberately absent: a task only reaches completed through customer
// approval in ReviewTask.
func ensureTaskTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.TaskTodo:
		if newStatus == domain.TaskInProgress || newStatus == domain.TaskCancelled {
			return nil
		}
	case domain.TaskInProgress:
		if newStatus == domain.TaskReview || newStatus == domain.TaskCancelled {
			return nil
		}
	case domain.TaskReview:
		if newStatus == domain.TaskInProgress || newStatus == domain.TaskAccepted || newStatus == domain.TaskCancelled {
			return nil
		}
	case domain.TaskAccepted:
		if newStatus == domain.TaskCancelled {
			return nil
		}
	}
	return InvalidTransitionError{From: oldStatus, To: newStatus}
}

// Task review actions.
const (
	ReviewApprove = "approve"
	ReviewReject  = "reject"
)

// TaskReviewOptions is the customer approval/rejection sub-workflow input.
type TaskReviewOptions struct {
	ID       string
	Action   string
	Reason   string
	Reviewer token.Claims
}

// ReviewTask lets the owning customer approve or reject a task the assignee
// has marked accepted. Approval completes the task; rejection sends it back
// to review with the reason appended to its notes.
func (e Engine) ReviewTask(ctx context.Context, opts TaskReviewOptions) (domain.Task, error) {
	if opts.Action != ReviewApprove && opts.Action != ReviewReject {
		return domain.Task{}, fmt.Errorf("invalid review action %q", opts.Action)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return t, err
	}
	sr, err := e.Repo.GetServiceRequestTx(ctx, tx, t.ServiceRequestID)
	if err != nil {
		return t, err
	}
	if err := authz.CanReviewTask(opts.Reviewer, sr.RequestedBy); err != nil {
		return t, err
	}
	if t.Status != domain.TaskAccepted {
		return t, InvalidTransitionError{From: t.Status, To: domain.TaskCompleted, Reason: "task must be in accepted status"}
	}

	now := e.now().UTC().Format(time.RFC3339)
	switch opts.Action {
	case ReviewApprove:
		t.Status = domain.TaskCompleted
		t.CompletedAt = &now
	case ReviewReject:
		if opts.Reason == "" {
			return t, errors.New("rejection reason is required")
		}
		t.Status = domain.TaskReview
		t.Notes = appendRejection(t.Notes, opts.Reason)
	}
	t.UpdatedAt = now

	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.reviewed", "task", t.ID, opts.Reviewer.PrincipalID, events.EventPayload{
		"action": opts.Action,
		"status": t.Status,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

func appendRejection(notes, reason string) string {
	entry := "rejected: " + reason
	if notes == "" {
		return entry
	}
	return notes + "\n" + entry
}

// Coworker approval actions.
const (
	ApprovalApprove = "approve"
	ApprovalDecline = "decline"
)

// CoworkerApprovalOptions records a staff decision about an external
// contributor. ActorID must be a staff principal; callers enforce that.
type CoworkerApprovalOptions struct {
	ID      string
	Action  string
	ActorID string
}

func (e Engine) ReviewCoworker(ctx context.Context, opts CoworkerApprovalOptions) (domain.Coworker, error) {
	if opts.Action != ApprovalApprove && opts.Action != ApprovalDecline {
		return domain.Coworker{}, fmt.Errorf("invalid approval action %q", opts.Action)
	}
	c, err := e.Repo.GetCoworker(ctx, opts.ID)
	if err != nil {
		return c, err
	}
	actor := opts.ActorID
	c.IsApproved = opts.Action == ApprovalApprove
	c.ApprovedBy = &actor
	c.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE coworkers SET is_approved=?, approved_by=?, updated_at=? WHERE id=?`,
		c.IsApproved, actor, c.UpdatedAt, c.ID); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "coworker.reviewed", "coworker", c.ID, actor, events.EventPayload{
		"action":   opts.Action,
		"approved": c.IsApproved,
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

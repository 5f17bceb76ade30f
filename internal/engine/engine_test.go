package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"studioline/internal/config"
	"studioline/internal/db"
	"studioline/internal/domain"
	"studioline/internal/engine"
	"studioline/internal/engine/authz"
	"studioline/internal/engine/identity"
	"studioline/internal/migrate"
	"studioline/internal/repo"
	"studioline/internal/token"
)

type testEnv struct {
	eng      engine.Engine
	ids      identity.Service
	repo     repo.Repo
	staff    []domain.Staff
	customer domain.Customer
	service  domain.Service
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) }
	r := repo.Repo{DB: conn}
	ids := identity.New(r, 4)
	ctx := context.Background()

	env := testEnv{eng: eng, ids: ids, repo: r}
	for i, phone := range []string{"09120000001", "09120000002"} {
		st, err := ids.CreateStaff(ctx, identity.CreateStaffOptions{
			Name:        "Staffer",
			PhoneNumber: phone,
			Password:    "staff-pass",
			Role:        "editor",
		})
		if err != nil {
			t.Fatalf("seed staff %d: %v", i, err)
		}
		env.staff = append(env.staff, st)
	}
	p, err := ids.Register(ctx, identity.RegisterOptions{
		Kind:        domain.KindCustomer,
		Name:        "Client",
		PhoneNumber: "09120000100",
		Password:    "cust-pass",
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	env.customer, err = r.GetCustomer(ctx, p.ID)
	if err != nil {
		t.Fatalf("load customer: %v", err)
	}
	env.service, err = eng.CreateService(ctx, engine.ServiceCreateOptions{
		Name:      "Reels Package",
		BasePrice: 1_500_000,
		ActorID:   env.staff[0].ID,
	})
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return env
}

func (env testEnv) newRequest(t *testing.T) domain.ServiceRequest {
	t.Helper()
	sr, err := env.eng.CreateServiceRequest(context.Background(), engine.ServiceRequestCreateOptions{
		Title:       "Spring campaign reels",
		ServiceID:   env.service.ID,
		RequestedBy: env.customer.ID,
		ActorID:     env.customer.ID,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return sr
}

func (env testEnv) assign(t *testing.T, requestID string, staffIDs []string) domain.ServiceRequest {
	t.Helper()
	sr, err := env.eng.UpdateServiceRequest(context.Background(), engine.ServiceRequestUpdateOptions{
		ID:         requestID,
		AssignedTo: &staffIDs,
		ActorID:    env.staff[0].ID,
	})
	if err != nil {
		t.Fatalf("assign %v: %v", staffIDs, err)
	}
	return sr
}

func (env testEnv) tasksFor(t *testing.T, requestID string) []domain.Task {
	t.Helper()
	tasks, err := env.repo.ListTasks(context.Background(), repo.TaskFilters{ServiceRequestID: requestID})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	return tasks
}

// walk moves a task along the assignee workflow to the given status.
func (env testEnv) walk(t *testing.T, taskID string, statuses ...string) domain.Task {
	t.Helper()
	var out domain.Task
	for _, status := range statuses {
		var err error
		out, err = env.eng.UpdateTask(context.Background(), engine.TaskUpdateOptions{
			ID:      taskID,
			Status:  status,
			ActorID: env.staff[0].ID,
		})
		if err != nil {
			t.Fatalf("move to %s: %v", status, err)
		}
	}
	return out
}

func TestCreateServiceRequestDefaults(t *testing.T) {
	env := newTestEnv(t)
	sr := env.newRequest(t)
	if sr.Status != domain.RequestPending {
		t.Fatalf("expected pending, got %s", sr.Status)
	}
	if sr.Quantity != 1 {
		t.Fatalf("expected default quantity 1, got %d", sr.Quantity)
	}
	if sr.Priority != domain.PriorityMedium {
		t.Fatalf("expected default priority medium, got %s", sr.Priority)
	}
	if sr.RequestedDate == "" {
		t.Fatal("requested date must be set")
	}
}

func TestCreateServiceRequestRejectsInactiveService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.eng.DB.ExecContext(ctx, `UPDATE services SET is_active=0 WHERE id=?`, env.service.ID); err != nil {
		t.Fatalf("deactivate service: %v", err)
	}
	_, err := env.eng.CreateServiceRequest(ctx, engine.ServiceRequestCreateOptions{
		Title:       "After hours",
		ServiceID:   env.service.ID,
		RequestedBy: env.customer.ID,
	})
	if err == nil || !strings.Contains(err.Error(), "not active") {
		t.Fatalf("expected inactive service rejection, got %v", err)
	}
}

func TestAssignmentCreatesOneTaskPerNewStaff(t *testing.T) {
	env := newTestEnv(t)
	sr := env.newRequest(t)

	env.assign(t, sr.ID, []string{env.staff[0].ID})
	if n := len(env.tasksFor(t, sr.ID)); n != 1 {
		t.Fatalf("expected 1 task after first assignment, got %d", n)
	}

	// Growing the set only synthesizes tasks for the newly added member.
	got := env.assign(t, sr.ID, []string{env.staff[0].ID, env.staff[1].ID})
	tasks := env.tasksFor(t, sr.ID)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks after second assignment, got %d", len(tasks))
	}
	if len(got.AssignedTo) != 2 {
		t.Fatalf("expected 2 assignees, got %v", got.AssignedTo)
	}
	for _, task := range tasks {
		if task.Status != domain.TaskTodo {
			t.Fatalf("synthesized task must start in todo, got %s", task.Status)
		}
		if task.Title != sr.Title {
			t.Fatalf("task title should inherit request title, got %q", task.Title)
		}
		if task.Priority != sr.Priority {
			t.Fatalf("task priority should inherit request priority, got %q", task.Priority)
		}
	}
}

func TestReassignmentIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	sr := env.newRequest(t)
	env.assign(t, sr.ID, []string{env.staff[0].ID})
	// Re-sending the same set, duplicates included, creates nothing new.
	env.assign(t, sr.ID, []string{env.staff[0].ID, env.staff[0].ID})
	if n := len(env.tasksFor(t, sr.ID)); n != 1 {
		t.Fatalf("expected 1 task after idempotent re-assignment, got %d", n)
	}
}

func TestUnassignCancelsOpenTasks(t *testing.T) {
	env := newTestEnv(t)
	sr := env.newRequest(t)
	env.assign(t, sr.ID, []string{env.staff[0].ID, env.staff[1].ID})

	env.assign(t, sr.ID, []string{env.staff[1].ID})
	tasks := env.tasksFor(t, sr.ID)
	if len(tasks) != 2 {
		t.Fatalf("expected cancelled task to remain, got %d tasks", len(tasks))
	}
	for _, task := range tasks {
		switch task.AssigneeID {
		case env.staff[0].ID:
			if task.Status != domain.TaskCancelled {
				t.Fatalf("removed assignee's task must be cancelled, got %s", task.Status)
			}
		case env.staff[1].ID:
			if task.Status != domain.TaskTodo {
				t.Fatalf("kept assignee's task must be untouched, got %s", task.Status)
			}
		default:
			t.Fatalf("unexpected assignee %s", task.AssigneeID)
		}
	}
}

func TestUnknownAssigneeRollsBackUpdate(t *testing.T) {
	env := newTestEnv(t)
	sr := env.newRequest(t)
	_, err := env.eng.UpdateServiceRequest(context.Background(), engine.ServiceRequestUpdateOptions{
		ID:         sr.ID,
		AssignedTo: &[]string{env.staff[0].ID, "no-such-staff"},
		ActorID:    env.staff[0].ID,
	})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown assignee, got %v", err)
	}
	// The whole update rolls back, including the valid assignee's task.
	if n := len(env.tasksFor(t, sr.ID)); n != 0 {
		t.Fatalf("expected 0 tasks after rollback, got %d", n)
	}
}

func TestApprovingRequestRecordsApprover(t *testing.T) {
	env := newTestEnv(t)
	sr := env.newRequest(t)
	status := domain.RequestApproved
	got, err := env.eng.UpdateServiceRequest(context.Background(), engine.ServiceRequestUpdateOptions{
		ID:      sr.ID,
		Status:  &status,
		ActorID: env.staff[0].ID,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != domain.RequestApproved {
		t.Fatalf("expected approved, got %s", got.Status)
	}
	if got.ApprovedBy == nil || *got.ApprovedBy != env.staff[0].ID {
		t.Fatalf("expected approver %s, got %v", env.staff[0].ID, got.ApprovedBy)
	}
}

func TestTaskTransitionGuards(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		walk []string
		to   string
		ok   bool
	}{
		{nil, domain.TaskInProgress, true},
		{nil, domain.TaskCancelled, true},
		{nil, domain.TaskReview, false},
		{nil, domain.TaskAccepted, false},
		{nil, domain.TaskCompleted, false},
		{[]string{domain.TaskInProgress}, domain.TaskReview, true},
		{[]string{domain.TaskInProgress}, domain.TaskAccepted, false},
		{[]string{domain.TaskInProgress}, domain.TaskCompleted, false},
		{[]string{domain.TaskInProgress, domain.TaskReview}, domain.TaskInProgress, true},
		{[]string{domain.TaskInProgress, domain.TaskReview}, domain.TaskAccepted, true},
		{[]string{domain.TaskInProgress, domain.TaskReview}, domain.TaskCompleted, false},
		{[]string{domain.TaskInProgress, domain.TaskReview, domain.TaskAccepted}, domain.TaskCompleted, false},
		{[]string{domain.TaskInProgress, domain.TaskReview, domain.TaskAccepted}, domain.TaskCancelled, true},
	}
	for _, tc := range cases {
		// Fresh request and task per case so every walk starts from todo.
		sr := env.newRequest(t)
		env.assign(t, sr.ID, []string{env.staff[0].ID})
		taskID := env.tasksFor(t, sr.ID)[0].ID
		env.walk(t, taskID, tc.walk...)

		_, err := env.eng.UpdateTask(context.Background(), engine.TaskUpdateOptions{
			ID:      taskID,
			Status:  tc.to,
			ActorID: env.staff[0].ID,
		})
		if tc.ok && err != nil {
			t.Fatalf("walk %v -> %s: unexpected error %v", tc.walk, tc.to, err)
		}
		if !tc.ok {
			var ite engine.InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Fatalf("walk %v -> %s: expected InvalidTransitionError, got %v", tc.walk, tc.to, err)
			}
		}
	}
}

func (env testEnv) acceptedTask(t *testing.T) domain.Task {
	t.Helper()
	sr := env.newRequest(t)
	env.assign(t, sr.ID, []string{env.staff[0].ID})
	taskID := env.tasksFor(t, sr.ID)[0].ID
	return env.walk(t, taskID, domain.TaskInProgress, domain.TaskReview, domain.TaskAccepted)
}

func (env testEnv) customerClaims() token.Claims {
	return token.Claims{
		PrincipalID: env.customer.ID,
		Kind:        domain.KindCustomer,
		Name:        env.customer.Name,
		PhoneNumber: env.customer.PhoneNumber,
	}
}

func TestReviewApproveCompletesTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.acceptedTask(t)
	got, err := env.eng.ReviewTask(context.Background(), engine.TaskReviewOptions{
		ID:       task.ID,
		Action:   engine.ReviewApprove,
		Reviewer: env.customerClaims(),
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != domain.TaskCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil || *got.CompletedAt == "" {
		t.Fatal("completed_at must be set on approval")
	}
}

func TestReviewRejectReturnsTaskWithReason(t *testing.T) {
	env := newTestEnv(t)
	task := env.acceptedTask(t)
	reason := "محتوا نیاز به ویرایش دارد"
	got, err := env.eng.ReviewTask(context.Background(), engine.TaskReviewOptions{
		ID:       task.ID,
		Action:   engine.ReviewReject,
		Reason:   reason,
		Reviewer: env.customerClaims(),
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != domain.TaskReview {
		t.Fatalf("expected review, got %s", got.Status)
	}
	if !strings.HasSuffix(got.Notes, "rejected: "+reason) {
		t.Fatalf("expected rejection note, got %q", got.Notes)
	}
	if got.CompletedAt != nil {
		t.Fatal("rejection must not set completed_at")
	}
}

func TestReviewRejectRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	task := env.acceptedTask(t)
	_, err := env.eng.ReviewTask(context.Background(), engine.TaskReviewOptions{
		ID:       task.ID,
		Action:   engine.ReviewReject,
		Reviewer: env.customerClaims(),
	})
	if err == nil || !strings.Contains(err.Error(), "reason is required") {
		t.Fatalf("expected reason requirement, got %v", err)
	}
}

func TestReviewRequiresAcceptedStatus(t *testing.T) {
	env := newTestEnv(t)
	sr := env.newRequest(t)
	env.assign(t, sr.ID, []string{env.staff[0].ID})
	task := env.tasksFor(t, sr.ID)[0]

	for _, walk := range [][]string{
		nil,
		{domain.TaskInProgress},
		{domain.TaskInProgress, domain.TaskReview},
	} {
		env.walk(t, task.ID, walk...)
		_, err := env.eng.ReviewTask(context.Background(), engine.TaskReviewOptions{
			ID:       task.ID,
			Action:   engine.ReviewApprove,
			Reviewer: env.customerClaims(),
		})
		var ite engine.InvalidTransitionError
		if !errors.As(err, &ite) {
			t.Fatalf("walk %v: expected InvalidTransitionError, got %v", walk, err)
		}
		if ite.Reason != "task must be in accepted status" {
			t.Fatalf("unexpected reason %q", ite.Reason)
		}
	}
}

func TestReviewIsOwningCustomerOnly(t *testing.T) {
	env := newTestEnv(t)
	task := env.acceptedTask(t)

	reviewers := []token.Claims{
		{PrincipalID: "cu-other", Kind: domain.KindCustomer},
		{PrincipalID: env.staff[0].ID, Kind: domain.KindStaff, Role: domain.RoleAdmin},
	}
	for _, reviewer := range reviewers {
		_, err := env.eng.ReviewTask(context.Background(), engine.TaskReviewOptions{
			ID:       task.ID,
			Action:   engine.ReviewApprove,
			Reviewer: reviewer,
		})
		var fe authz.ForbiddenError
		if !errors.As(err, &fe) {
			t.Fatalf("reviewer %s: expected ForbiddenError, got %v", reviewer.PrincipalID, err)
		}
	}
	// The task is untouched.
	got, err := env.repo.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != domain.TaskAccepted {
		t.Fatalf("task must stay accepted after denied reviews, got %s", got.Status)
	}
}

func TestReviewCoworker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, err := env.ids.Register(ctx, identity.RegisterOptions{
		Kind:        domain.KindCoworker,
		Name:        "Freelancer",
		PhoneNumber: "09120000200",
		Password:    "pass-1234",
		Skills:      "color grading",
	})
	if err != nil {
		t.Fatalf("register coworker: %v", err)
	}

	c, err := env.eng.ReviewCoworker(ctx, engine.CoworkerApprovalOptions{
		ID:      p.ID,
		Action:  engine.ApprovalApprove,
		ActorID: env.staff[0].ID,
	})
	if err != nil {
		t.Fatalf("approve coworker: %v", err)
	}
	if !c.IsApproved {
		t.Fatal("expected approved")
	}
	if c.ApprovedBy == nil || *c.ApprovedBy != env.staff[0].ID {
		t.Fatalf("expected approver recorded, got %v", c.ApprovedBy)
	}

	c, err = env.eng.ReviewCoworker(ctx, engine.CoworkerApprovalOptions{
		ID:      p.ID,
		Action:  engine.ApprovalDecline,
		ActorID: env.staff[1].ID,
	})
	if err != nil {
		t.Fatalf("decline coworker: %v", err)
	}
	if c.IsApproved {
		t.Fatal("expected declined")
	}
	if c.ApprovedBy == nil || *c.ApprovedBy != env.staff[1].ID {
		t.Fatalf("decline must record the deciding staffer, got %v", c.ApprovedBy)
	}
}

func TestEventsAreRecorded(t *testing.T) {
	env := newTestEnv(t)
	sr := env.newRequest(t)
	env.assign(t, sr.ID, []string{env.staff[0].ID})

	evts, err := env.repo.LatestEvents(context.Background(), 10, "", "", "")
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range evts {
		seen[e.Type] = true
	}
	for _, want := range []string{"service.created", "request.created", "request.updated", "task.created"} {
		if !seen[want] {
			t.Fatalf("expected event %s, have %v", want, seen)
		}
	}
}

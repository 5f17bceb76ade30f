package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"studioline/internal/db"
	"studioline/internal/domain"
	"studioline/internal/engine/identity"
	"studioline/internal/migrate"
	"studioline/internal/repo"
)

func newTestService(t *testing.T) (identity.Service, repo.Repo) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	// Minimum cost keeps the bcrypt-heavy tests quick.
	return identity.New(r, 4), r
}

func seedStaff(t *testing.T, svc identity.Service, phone, password, role string) domain.Staff {
	t.Helper()
	st, err := svc.CreateStaff(context.Background(), identity.CreateStaffOptions{
		Name:        "Staffer",
		PhoneNumber: phone,
		Password:    password,
		Role:        role,
	})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	return st
}

func TestRegisterAndAuthenticateCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, identity.RegisterOptions{
		Kind:        domain.KindCustomer,
		Name:        "Leila",
		PhoneNumber: "09120000010",
		Password:    "pass-1234",
		Company:     "Acme Films",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	got, err := svc.Authenticate(ctx, "09120000010", "pass-1234")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != p.ID || got.Kind != domain.KindCustomer {
		t.Fatalf("wrong principal: %+v", got)
	}
}

func TestSignupRejectsPhoneFromAnyStore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seedStaff(t, svc, "09120000020", "staff-pass", "editor")

	// The duplicate probe spans all three stores, so a coworker signup with
	// a staff phone is rejected even though the coworker store is empty.
	_, err := svc.Register(ctx, identity.RegisterOptions{
		Kind:        domain.KindCoworker,
		Name:        "Nima",
		PhoneNumber: "09120000020",
		Password:    "other-pass",
	})
	var dup identity.DuplicatePrincipalError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicatePrincipalError, got %v", err)
	}
}

func TestLoginResolvesStoresInPriorityOrder(t *testing.T) {
	svc, r := newTestService(t)
	ctx := context.Background()
	phone := "09120000030"
	now := time.Now().UTC().Format(time.RFC3339)

	// Insert directly so the same phone exists in two stores, which the
	// signup probe would normally prevent.
	staffHash, _ := svc.HashPassword("staff-pass")
	custHash, _ := svc.HashPassword("cust-pass")
	if err := r.InsertStaff(ctx, domain.Staff{
		ID: "st-1", Name: "Staffer", PhoneNumber: phone, PasswordHash: staffHash,
		Role: domain.RoleEditor, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("insert staff: %v", err)
	}
	if err := r.InsertCustomer(ctx, domain.Customer{
		ID: "cu-1", Name: "Customer", PhoneNumber: phone, PasswordHash: custHash,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("insert customer: %v", err)
	}

	// The staff password resolves to the staff record.
	p, err := svc.Authenticate(ctx, phone, "staff-pass")
	if err != nil {
		t.Fatalf("authenticate staff: %v", err)
	}
	if p.Kind != domain.KindStaff || p.ID != "st-1" {
		t.Fatalf("expected staff match first, got %+v", p)
	}

	// The customer password skips the staff record (hash mismatch) and
	// matches the lower-priority store.
	p, err = svc.Authenticate(ctx, phone, "cust-pass")
	if err != nil {
		t.Fatalf("authenticate customer: %v", err)
	}
	if p.Kind != domain.KindCustomer || p.ID != "cu-1" {
		t.Fatalf("expected customer match, got %+v", p)
	}
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	svc, r := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, identity.RegisterOptions{
		Kind:        domain.KindCustomer,
		Name:        "Dormant",
		PhoneNumber: "09120000040",
		Password:    "pass-1234",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	c, err := r.GetCustomer(ctx, p.ID)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	c.IsActive = false
	if err := r.UpdateCustomer(ctx, c); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = svc.Authenticate(ctx, "09120000040", "pass-1234")
	var inactive identity.AccountInactiveError
	if !errors.As(err, &inactive) {
		t.Fatalf("expected AccountInactiveError, got %v", err)
	}
	if inactive.Kind != domain.KindCustomer {
		t.Fatalf("wrong kind: %v", inactive.Kind)
	}
}

func TestAuthenticateFailureIsUniform(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, identity.RegisterOptions{
		Kind:        domain.KindCustomer,
		Name:        "Known",
		PhoneNumber: "09120000050",
		Password:    "right-pass",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Unknown phone and wrong password produce the identical error so the
	// login surface never confirms account existence.
	_, errUnknown := svc.Authenticate(ctx, "09999999999", "whatever")
	_, errWrongPass := svc.Authenticate(ctx, "09120000050", "wrong-pass")
	var invalid identity.InvalidCredentialsError
	if !errors.As(errUnknown, &invalid) {
		t.Fatalf("unknown phone: expected InvalidCredentialsError, got %v", errUnknown)
	}
	if !errors.As(errWrongPass, &invalid) {
		t.Fatalf("wrong password: expected InvalidCredentialsError, got %v", errWrongPass)
	}
	if errUnknown.Error() != errWrongPass.Error() {
		t.Fatalf("error messages differ: %q vs %q", errUnknown, errWrongPass)
	}
}

func TestCoworkerStartsUnapproved(t *testing.T) {
	svc, r := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, identity.RegisterOptions{
		Kind:        domain.KindCoworker,
		Name:        "Freelancer",
		PhoneNumber: "09120000060",
		Password:    "pass-1234",
		Skills:      "motion design",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	c, err := r.GetCoworker(ctx, p.ID)
	if err != nil {
		t.Fatalf("get coworker: %v", err)
	}
	if c.IsApproved {
		t.Fatal("coworker must start unapproved")
	}
	if !c.IsActive {
		t.Fatal("coworker must start active")
	}
	if c.ApprovedBy != nil {
		t.Fatalf("approved_by must start empty, got %v", *c.ApprovedBy)
	}
	// Approval is a separate staff act; an unapproved coworker can still
	// authenticate.
	if _, err := svc.Authenticate(ctx, "09120000060", "pass-1234"); err != nil {
		t.Fatalf("authenticate unapproved coworker: %v", err)
	}
}

func TestFindByPhoneIsStoreScoped(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	st := seedStaff(t, svc, "09120000080", "staff-pass", "manager")

	p, err := svc.FindByPhone(ctx, "09120000080", domain.KindStaff)
	if err != nil {
		t.Fatalf("find staff: %v", err)
	}
	if p.ID != st.ID || p.Kind != domain.KindStaff || p.Role != domain.RoleManager {
		t.Fatalf("unexpected principal: %+v", p)
	}

	// The lookup probes exactly one store; the phone is absent elsewhere.
	if _, err := svc.FindByPhone(ctx, "09120000080", domain.KindCustomer); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound in customer store, got %v", err)
	}
	if _, err := svc.FindByPhone(ctx, "09120000080", domain.Kind("robot")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestVerifyIdentity(t *testing.T) {
	svc, r := newTestService(t)
	ctx := context.Background()
	p, err := svc.Register(ctx, identity.RegisterOptions{
		Kind:        domain.KindCustomer,
		Name:        "Checkable",
		PhoneNumber: "09120000070",
		Password:    "pass-1234",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ok, err := svc.VerifyIdentity(ctx, domain.KindCustomer, p.ID)
	if err != nil || !ok {
		t.Fatalf("expected existing active principal, got %v %v", ok, err)
	}
	ok, err = svc.VerifyIdentity(ctx, domain.KindCustomer, "no-such-id")
	if err != nil || ok {
		t.Fatalf("expected exists=false for unknown id, got %v %v", ok, err)
	}
	c, _ := r.GetCustomer(ctx, p.ID)
	c.IsActive = false
	if err := r.UpdateCustomer(ctx, c); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	ok, err = svc.VerifyIdentity(ctx, domain.KindCustomer, p.ID)
	if err != nil || ok {
		t.Fatalf("expected exists=false for inactive account, got %v %v", ok, err)
	}
}

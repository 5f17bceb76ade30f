package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"studioline/internal/domain"
	"studioline/internal/repo"
)

// InvalidCredentialsError is returned identically for an unknown phone
// number and a wrong password, so login never leaks account existence.
type InvalidCredentialsError struct{}

func (InvalidCredentialsError) Error() string {
	return "invalid phone number or password"
}

// AccountInactiveError indicates the password verified but the account has
// been deactivated. Existence is already implied at this point.
type AccountInactiveError struct {
	Kind domain.Kind
}

func (e AccountInactiveError) Error() string {
	return fmt.Sprintf("%s account is inactive", e.Kind)
}

// DuplicatePrincipalError indicates the phone number exists in some store.
type DuplicatePrincipalError struct {
	PhoneNumber string
}

func (e DuplicatePrincipalError) Error() string {
	return "phone number already registered"
}

// Principal is the resolved identity of an authenticated actor.
type Principal struct {
	ID          string
	Kind        domain.Kind
	Name        string
	PhoneNumber string
	Role        domain.StaffRole
}

// Service adapts the three principal stores behind one lookup contract.
type Service struct {
	Repo       repo.Repo
	BcryptCost int
	Now        func() time.Time
}

func New(r repo.Repo, bcryptCost int) Service {
	return Service{Repo: r, BcryptCost: bcryptCost, Now: time.Now}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) cost() int {
	if s.BcryptCost >= bcrypt.MinCost && s.BcryptCost <= bcrypt.MaxCost {
		return s.BcryptCost
	}
	return bcrypt.DefaultCost
}

func (s Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// FindByPhone looks a principal up in a single store.
func (s Service) FindByPhone(ctx context.Context, phone string, kind domain.Kind) (Principal, error) {
	switch kind {
	case domain.KindStaff:
		st, err := s.Repo.GetStaffByPhone(ctx, phone)
		if err != nil {
			return Principal{}, err
		}
		return Principal{ID: st.ID, Kind: kind, Name: st.Name, PhoneNumber: st.PhoneNumber, Role: st.Role}, nil
	case domain.KindCustomer:
		c, err := s.Repo.GetCustomerByPhone(ctx, phone)
		if err != nil {
			return Principal{}, err
		}
		return Principal{ID: c.ID, Kind: kind, Name: c.Name, PhoneNumber: c.PhoneNumber}, nil
	case domain.KindCoworker:
		c, err := s.Repo.GetCoworkerByPhone(ctx, phone)
		if err != nil {
			return Principal{}, err
		}
		return Principal{ID: c.ID, Kind: kind, Name: c.Name, PhoneNumber: c.PhoneNumber}, nil
	}
	return Principal{}, fmt.Errorf("unknown principal kind %q", kind)
}

// Authenticate probes the stores in fixed priority order (staff, customer,
// coworker) and returns the first principal whose password verifies.
func (s Service) Authenticate(ctx context.Context, phone, password string) (Principal, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || password == "" {
		return Principal{}, errors.New("phone_number and password are required")
	}
	for _, kind := range domain.LoginOrder {
		p, active, hash, err := s.lookup(ctx, phone, kind)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return Principal{}, err
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			continue
		}
		if !active {
			return Principal{}, AccountInactiveError{Kind: kind}
		}
		return p, nil
	}
	return Principal{}, InvalidCredentialsError{}
}

func (s Service) lookup(ctx context.Context, phone string, kind domain.Kind) (Principal, bool, string, error) {
	switch kind {
	case domain.KindStaff:
		st, err := s.Repo.GetStaffByPhone(ctx, phone)
		if err != nil {
			return Principal{}, false, "", err
		}
		// Staff has no public signup path and no active flag; provisioned
		// accounts are trusted.
		return Principal{ID: st.ID, Kind: kind, Name: st.Name, PhoneNumber: st.PhoneNumber, Role: st.Role}, true, st.PasswordHash, nil
	case domain.KindCustomer:
		c, err := s.Repo.GetCustomerByPhone(ctx, phone)
		if err != nil {
			return Principal{}, false, "", err
		}
		return Principal{ID: c.ID, Kind: kind, Name: c.Name, PhoneNumber: c.PhoneNumber}, c.IsActive, c.PasswordHash, nil
	case domain.KindCoworker:
		c, err := s.Repo.GetCoworkerByPhone(ctx, phone)
		if err != nil {
			return Principal{}, false, "", err
		}
		return Principal{ID: c.ID, Kind: kind, Name: c.Name, PhoneNumber: c.PhoneNumber}, c.IsActive, c.PasswordHash, nil
	}
	return Principal{}, false, "", fmt.Errorf("unknown principal kind %q", kind)
}

// RegisterOptions carries signup fields. Kind must be customer or coworker.
type RegisterOptions struct {
	Kind        domain.Kind
	Name        string
	PhoneNumber string
	Password    string
	Company     string
	Skills      string
}

// Register creates a customer or coworker account. The duplicate probe
// checks all three stores, unlike login resolution.
func (s Service) Register(ctx context.Context, opts RegisterOptions) (Principal, error) {
	if opts.Kind != domain.KindCustomer && opts.Kind != domain.KindCoworker {
		return Principal{}, fmt.Errorf("signup kind must be customer or coworker")
	}
	opts.PhoneNumber = strings.TrimSpace(opts.PhoneNumber)
	if opts.Name == "" || opts.PhoneNumber == "" || opts.Password == "" {
		return Principal{}, errors.New("name, phone_number and password are required")
	}
	exists, err := s.Repo.PhoneExistsAnywhere(ctx, opts.PhoneNumber)
	if err != nil {
		return Principal{}, err
	}
	if exists {
		return Principal{}, DuplicatePrincipalError{PhoneNumber: opts.PhoneNumber}
	}
	hash, err := s.HashPassword(opts.Password)
	if err != nil {
		return Principal{}, err
	}
	now := s.now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	switch opts.Kind {
	case domain.KindCustomer:
		c := domain.Customer{
			ID:           id,
			Name:         opts.Name,
			PhoneNumber:  opts.PhoneNumber,
			PasswordHash: hash,
			Company:      opts.Company,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.Repo.InsertCustomer(ctx, c); err != nil {
			return Principal{}, err
		}
	case domain.KindCoworker:
		c := domain.Coworker{
			ID:           id,
			Name:         opts.Name,
			PhoneNumber:  opts.PhoneNumber,
			PasswordHash: hash,
			Skills:       opts.Skills,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.Repo.InsertCoworker(ctx, c); err != nil {
			return Principal{}, err
		}
	}
	return Principal{ID: id, Kind: opts.Kind, Name: opts.Name, PhoneNumber: opts.PhoneNumber}, nil
}

// CreateStaffOptions carries admin-provisioned staff fields.
type CreateStaffOptions struct {
	Name        string
	PhoneNumber string
	Password    string
	Role        string
}

// CreateStaff provisions an internal account. Callers enforce admin rights.
func (s Service) CreateStaff(ctx context.Context, opts CreateStaffOptions) (domain.Staff, error) {
	opts.PhoneNumber = strings.TrimSpace(opts.PhoneNumber)
	if opts.Name == "" || opts.PhoneNumber == "" || opts.Password == "" {
		return domain.Staff{}, errors.New("name, phone_number and password are required")
	}
	if !domain.ValidStaffRole(opts.Role) {
		return domain.Staff{}, fmt.Errorf("invalid staff role %q", opts.Role)
	}
	exists, err := s.Repo.PhoneExistsAnywhere(ctx, opts.PhoneNumber)
	if err != nil {
		return domain.Staff{}, err
	}
	if exists {
		return domain.Staff{}, DuplicatePrincipalError{PhoneNumber: opts.PhoneNumber}
	}
	hash, err := s.HashPassword(opts.Password)
	if err != nil {
		return domain.Staff{}, err
	}
	now := s.now().UTC().Format(time.RFC3339)
	st := domain.Staff{
		ID:           uuid.NewString(),
		Name:         opts.Name,
		PhoneNumber:  opts.PhoneNumber,
		PasswordHash: hash,
		Role:         domain.StaffRole(opts.Role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.InsertStaff(ctx, st); err != nil {
		return domain.Staff{}, err
	}
	return st, nil
}

// VerifyIdentity re-checks that a token's principal still exists and is
// active. This is the only operation that re-queries the stores inside a
// token's validity window.
func (s Service) VerifyIdentity(ctx context.Context, kind domain.Kind, principalID string) (bool, error) {
	switch kind {
	case domain.KindStaff:
		_, err := s.Repo.GetStaff(ctx, principalID)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	case domain.KindCustomer:
		c, err := s.Repo.GetCustomer(ctx, principalID)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return c.IsActive, nil
	case domain.KindCoworker:
		c, err := s.Repo.GetCoworker(ctx, principalID)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return c.IsActive, nil
	}
	return false, nil
}

// ProfileUpdateOptions are the self-service mutable fields. Admin-only
// fields (role, vip, active) have dedicated options below.
type ProfileUpdateOptions struct {
	Name     *string
	Password *string
}

func (s Service) UpdateStaffProfile(ctx context.Context, id string, opts ProfileUpdateOptions, role *string) (domain.Staff, error) {
	st, err := s.Repo.GetStaff(ctx, id)
	if err != nil {
		return domain.Staff{}, err
	}
	if opts.Name != nil && *opts.Name != "" {
		st.Name = *opts.Name
	}
	if opts.Password != nil && *opts.Password != "" {
		hash, err := s.HashPassword(*opts.Password)
		if err != nil {
			return domain.Staff{}, err
		}
		st.PasswordHash = hash
	}
	if role != nil {
		if !domain.ValidStaffRole(*role) {
			return domain.Staff{}, fmt.Errorf("invalid staff role %q", *role)
		}
		st.Role = domain.StaffRole(*role)
	}
	st.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := s.Repo.UpdateStaff(ctx, st); err != nil {
		return domain.Staff{}, err
	}
	return st, nil
}

type CustomerStandingOptions struct {
	IsVIP    *bool
	IsActive *bool
}

func (s Service) UpdateCustomerProfile(ctx context.Context, id string, opts ProfileUpdateOptions, standing CustomerStandingOptions) (domain.Customer, error) {
	c, err := s.Repo.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if opts.Name != nil && *opts.Name != "" {
		c.Name = *opts.Name
	}
	if opts.Password != nil && *opts.Password != "" {
		hash, err := s.HashPassword(*opts.Password)
		if err != nil {
			return domain.Customer{}, err
		}
		c.PasswordHash = hash
	}
	if standing.IsVIP != nil {
		c.IsVIP = *standing.IsVIP
	}
	if standing.IsActive != nil {
		c.IsActive = *standing.IsActive
	}
	c.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := s.Repo.UpdateCustomer(ctx, c); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

func (s Service) UpdateCoworkerProfile(ctx context.Context, id string, opts ProfileUpdateOptions, skills *string, active *bool) (domain.Coworker, error) {
	c, err := s.Repo.GetCoworker(ctx, id)
	if err != nil {
		return domain.Coworker{}, err
	}
	if opts.Name != nil && *opts.Name != "" {
		c.Name = *opts.Name
	}
	if opts.Password != nil && *opts.Password != "" {
		hash, err := s.HashPassword(*opts.Password)
		if err != nil {
			return domain.Coworker{}, err
		}
		c.PasswordHash = hash
	}
	if skills != nil {
		c.Skills = *skills
	}
	if active != nil {
		c.IsActive = *active
	}
	c.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	if err := s.Repo.UpdateCoworker(ctx, c); err != nil {
		return domain.Coworker{}, err
	}
	return c, nil
}

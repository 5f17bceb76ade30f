package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"studioline/internal/domain"
	"studioline/internal/engine"
	"studioline/internal/engine/authz"
	"studioline/internal/engine/identity"
)

func registerStaff(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-staff",
		Method:        http.MethodPost,
		Path:          "/staff",
		Summary:       "Provision a staff account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateStaffRequest `json:"body"`
	}) (*struct {
		Body domain.Staff `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.AdminOnly(claims); err != nil {
			return nil, handleError(err)
		}
		st, err := cfg.Identity.CreateStaff(ctx, identity.CreateStaffOptions{
			Name:        input.Body.Name,
			PhoneNumber: input.Body.PhoneNumber,
			Password:    input.Body.Password,
			Role:        input.Body.Role,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Staff `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-staff",
		Method:      http.MethodGet,
		Path:        "/staff",
		Summary:     "List staff",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Staff `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.StaffOnly(claims); err != nil {
			return nil, handleError(err)
		}
		items, err := cfg.Engine.Repo.ListStaff(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Staff `json:"body"`
		}{Body: mapStaff(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-staff",
		Method:      http.MethodGet,
		Path:        "/staff/{id}",
		Summary:     "Get staff member",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Staff `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.StaffOnly(claims); err != nil {
			return nil, handleError(err)
		}
		st, err := cfg.Engine.Repo.GetStaff(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Staff `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-staff",
		Method:      http.MethodPatch,
		Path:        "/staff/{id}",
		Summary:     "Update staff member",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body UpdateStaffRequest `json:"body"`
	}) (*struct {
		Body domain.Staff `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.SelfOrAdmin(claims, input.ID); err != nil {
			return nil, handleError(err)
		}
		// Role changes are an admin act even on one's own record.
		if input.Body.Role != nil {
			if err := authz.AdminOnly(claims); err != nil {
				return nil, handleError(err)
			}
		}
		st, err := cfg.Identity.UpdateStaffProfile(ctx, input.ID, identity.ProfileUpdateOptions{
			Name:     input.Body.Name,
			Password: input.Body.Password,
		}, input.Body.Role)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Staff `json:"body"`
		}{Body: st}, nil
	})
}

func registerCustomers(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-customers",
		Method:      http.MethodGet,
		Path:        "/customers",
		Summary:     "List customers",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Customer `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.StaffOnly(claims); err != nil {
			return nil, handleError(err)
		}
		items, err := cfg.Engine.Repo.ListCustomers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Customer `json:"body"`
		}{Body: mapCustomers(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-customer",
		Method:      http.MethodGet,
		Path:        "/customers/{id}",
		Summary:     "Get customer",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Customer `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !authz.IsStaff(claims) {
			if err := authz.SelfOrAdmin(claims, input.ID); err != nil {
				return nil, handleError(err)
			}
		}
		c, err := cfg.Engine.Repo.GetCustomer(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Customer `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-customer",
		Method:      http.MethodPatch,
		Path:        "/customers/{id}",
		Summary:     "Update customer",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateCustomerRequest `json:"body"`
	}) (*struct {
		Body domain.Customer `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.SelfOrAdmin(claims, input.ID); err != nil {
			return nil, handleError(err)
		}
		// VIP standing and activation are admin-only toggles.
		if input.Body.IsVIP != nil || input.Body.IsActive != nil {
			if err := authz.AdminOnly(claims); err != nil {
				return nil, handleError(err)
			}
		}
		c, err := cfg.Identity.UpdateCustomerProfile(ctx, input.ID, identity.ProfileUpdateOptions{
			Name:     input.Body.Name,
			Password: input.Body.Password,
		}, identity.CustomerStandingOptions{
			IsVIP:    input.Body.IsVIP,
			IsActive: input.Body.IsActive,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Customer `json:"body"`
		}{Body: c}, nil
	})
}

func registerCoworkers(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-coworkers",
		Method:      http.MethodGet,
		Path:        "/coworkers",
		Summary:     "List coworkers",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Coworker `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.StaffOnly(claims); err != nil {
			return nil, handleError(err)
		}
		items, err := cfg.Engine.Repo.ListCoworkers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Coworker `json:"body"`
		}{Body: mapCoworkers(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-coworker",
		Method:      http.MethodGet,
		Path:        "/coworkers/{id}",
		Summary:     "Get coworker",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Coworker `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !authz.IsStaff(claims) {
			if err := authz.SelfOrAdmin(claims, input.ID); err != nil {
				return nil, handleError(err)
			}
		}
		c, err := cfg.Engine.Repo.GetCoworker(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Coworker `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-coworker",
		Method:      http.MethodPatch,
		Path:        "/coworkers/{id}",
		Summary:     "Update coworker",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateCoworkerRequest `json:"body"`
	}) (*struct {
		Body domain.Coworker `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.SelfOrAdmin(claims, input.ID); err != nil {
			return nil, handleError(err)
		}
		if input.Body.IsActive != nil {
			if err := authz.AdminOnly(claims); err != nil {
				return nil, handleError(err)
			}
		}
		c, err := cfg.Identity.UpdateCoworkerProfile(ctx, input.ID, identity.ProfileUpdateOptions{
			Name:     input.Body.Name,
			Password: input.Body.Password,
		}, input.Body.Skills, input.Body.IsActive)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Coworker `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-coworker",
		Method:      http.MethodPost,
		Path:        "/coworkers/{id}/approval",
		Summary:     "Approve or decline a coworker",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body CoworkerApprovalRequest `json:"body"`
	}) (*struct {
		Body domain.Coworker `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.StaffOnly(claims); err != nil {
			return nil, handleError(err)
		}
		c, err := cfg.Engine.ReviewCoworker(ctx, engine.CoworkerApprovalOptions{
			ID:      input.ID,
			Action:  input.Body.Action,
			ActorID: claims.PrincipalID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Coworker `json:"body"`
		}{Body: c}, nil
	})
}

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"studioline/internal/domain"
	"studioline/internal/engine"
	"studioline/internal/engine/authz"
	"studioline/internal/repo"
)

func registerServices(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-service",
		Method:        http.MethodPost,
		Path:          "/services",
		Summary:       "Add a catalog service",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateServiceBody `json:"body"`
	}) (*struct {
		Body domain.Service `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.StaffOnly(claims); err != nil {
			return nil, handleError(err)
		}
		s, err := e.CreateService(ctx, engine.ServiceCreateOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			BasePrice:   input.Body.BasePrice,
			ActorID:     claims.PrincipalID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Service `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-services",
		Method:      http.MethodGet,
		Path:        "/services",
		Summary:     "List catalog services",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Service `json:"body"`
	}, error) {
		if _, authErr := claimsFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListServices(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Service{}
		}
		return &struct {
			Body []domain.Service `json:"body"`
		}{Body: items}, nil
	})
}

func registerServiceRequests(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-service-request",
		Method:        http.MethodPost,
		Path:          "/service-requests",
		Summary:       "Raise a service request",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateServiceRequestBody `json:"body"`
	}) (*struct {
		Body domain.ServiceRequest `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		// Customers raise requests for themselves; staff may raise on a
		// customer's behalf via requested_by.
		requestedBy := claims.PrincipalID
		if input.Body.RequestedBy != nil && *input.Body.RequestedBy != "" && *input.Body.RequestedBy != claims.PrincipalID {
			if err := authz.StaffOnly(claims); err != nil {
				return nil, handleError(err)
			}
			requestedBy = *input.Body.RequestedBy
		} else if claims.Kind != domain.KindCustomer {
			if err := authz.StaffOnly(claims); err != nil {
				return nil, handleError(err)
			}
			if input.Body.RequestedBy == nil || *input.Body.RequestedBy == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "requested_by is required", nil)
			}
			requestedBy = *input.Body.RequestedBy
		}
		opts := engine.ServiceRequestCreateOptions{
			Title:       input.Body.Title,
			ServiceID:   input.Body.ServiceID,
			RequestedBy: requestedBy,
			ActorID:     claims.PrincipalID,
		}
		if input.Body.Quantity != nil {
			opts.Quantity = *input.Body.Quantity
		}
		if input.Body.Priority != nil {
			opts.Priority = *input.Body.Priority
		}
		if input.Body.ScheduledDate != nil {
			opts.ScheduledDate = *input.Body.ScheduledDate
		}
		if input.Body.Requirements != nil {
			opts.Requirements = *input.Body.Requirements
		}
		sr, err := e.CreateServiceRequest(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ServiceRequest `json:"body"`
		}{Body: sr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-service-requests",
		Method:      http.MethodGet,
		Path:        "/service-requests",
		Summary:     "List service requests",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status      string `query:"status"`
		RequestedBy string `query:"requested_by"`
	}) (*struct {
		Body []domain.ServiceRequest `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		filters := repo.RequestFilters{Status: input.Status, RequestedBy: input.RequestedBy}
		if !authz.IsStaff(claims) {
			if claims.Kind != domain.KindCustomer {
				return nil, handleError(authz.ForbiddenError{Rule: "request owner or staff"})
			}
			// Customers only ever see their own requests.
			filters.RequestedBy = claims.PrincipalID
		}
		items, err := e.Repo.ListServiceRequests(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		for i := range items {
			items[i].AssignedTo, err = e.Repo.ListAssignees(ctx, items[i].ID)
			if err != nil {
				return nil, handleError(err)
			}
		}
		return &struct {
			Body []domain.ServiceRequest `json:"body"`
		}{Body: mapRequests(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-service-request",
		Method:      http.MethodGet,
		Path:        "/service-requests/{id}",
		Summary:     "Get service request",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.ServiceRequest `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sr, err := e.Repo.GetServiceRequest(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := authz.RequestVisible(claims, sr.RequestedBy); err != nil {
			return nil, handleError(err)
		}
		sr.AssignedTo, err = e.Repo.ListAssignees(ctx, sr.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ServiceRequest `json:"body"`
		}{Body: sr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "service-request-status",
		Method:      http.MethodGet,
		Path:        "/service-requests/{id}/status",
		Summary:     "Service request status summary",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sr, err := e.Repo.GetServiceRequest(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := authz.RequestVisible(claims, sr.RequestedBy); err != nil {
			return nil, handleError(err)
		}
		counts, err := e.Repo.CountTasksByStatus(ctx, sr.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"service_request_id": sr.ID,
			"status":             sr.Status,
			"task_counts":        counts,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-service-request",
		Method:      http.MethodPatch,
		Path:        "/service-requests/{id}",
		Summary:     "Update a service request",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body UpdateServiceRequestBody `json:"body"`
	}) (*struct {
		Body domain.ServiceRequest `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := authz.StaffOnly(claims); err != nil {
			return nil, handleError(err)
		}
		if input.Body.AssignedTo != nil {
			if err := authz.CanAssign(claims); err != nil {
				return nil, handleError(err)
			}
		}
		sr, err := e.UpdateServiceRequest(ctx, engine.ServiceRequestUpdateOptions{
			ID:            input.ID,
			Title:         input.Body.Title,
			Quantity:      input.Body.Quantity,
			Status:        input.Body.Status,
			Priority:      input.Body.Priority,
			ScheduledDate: input.Body.ScheduledDate,
			Requirements:  input.Body.Requirements,
			AssignedTo:    input.Body.AssignedTo,
			ActorID:       claims.PrincipalID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ServiceRequest `json:"body"`
		}{Body: sr}, nil
	})
}

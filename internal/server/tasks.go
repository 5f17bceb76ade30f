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

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ServiceRequestID string `query:"service_request_id"`
		AssigneeID       string `query:"assignee_id"`
		Status           string `query:"status"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		filters := repo.TaskFilters{
			ServiceRequestID: input.ServiceRequestID,
			AssigneeID:       input.AssigneeID,
			Status:           input.Status,
		}
		if !authz.IsStaff(claims) {
			if claims.Kind != domain.KindCustomer {
				return nil, handleError(authz.ForbiddenError{Rule: "task owner or staff"})
			}
			// Customers see only tasks under their own requests.
			filters.RequestOwner = claims.PrincipalID
		}
		items, err := e.Repo.ListTasks(ctx, filters)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		sr, err := e.Repo.GetServiceRequest(ctx, t.ServiceRequestID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := authz.TaskVisible(claims, sr.RequestedBy, t.AssigneeID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update a task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := authz.CanWorkTask(claims, t.AssigneeID); err != nil {
			return nil, handleError(err)
		}
		opts := engine.TaskUpdateOptions{
			ID:           input.ID,
			Notes:        input.Body.Notes,
			Deliverables: input.Body.Deliverables,
			VideoURL:     input.Body.VideoURL,
			ActorID:      claims.PrincipalID,
		}
		if input.Body.Status != nil {
			opts.Status = *input.Body.Status
		}
		t, err = e.UpdateTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/review",
		Summary:     "Approve or reject an accepted task",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body ReviewTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		claims, authErr := claimsFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.ReviewTask(ctx, engine.TaskReviewOptions{
			ID:       input.ID,
			Action:   input.Body.Action,
			Reason:   input.Body.Reason,
			Reviewer: claims,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

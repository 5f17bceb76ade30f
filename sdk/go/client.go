package studiolinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Studioline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Principal is the authenticated account summary.
type Principal struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role,omitempty"`
}

// LoginResult carries the bearer token and the resolved principal.
type LoginResult struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
}

// ServiceRequest represents the API request model (partial).
type ServiceRequest struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	ServiceID   string   `json:"service_id"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	RequestedBy string   `json:"requested_by"`
	AssignedTo  []string `json:"assigned_to,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID               string `json:"id"`
	ServiceRequestID string `json:"service_request_id"`
	AssigneeID       string `json:"assignee_id"`
	Title            string `json:"title"`
	Status           string `json:"status"`
	Priority         string `json:"priority"`
	Notes            string `json:"notes,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a bearer token and stores it on the
// client for subsequent calls.
func (c *Client) Login(ctx context.Context, phoneNumber, password string) (LoginResult, error) {
	body := map[string]any{
		"phone_number": phoneNumber,
		"password":     password,
	}
	var resp LoginResult
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return resp, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// Me returns the principal behind the current credentials.
func (c *Client) Me(ctx context.Context) (Principal, error) {
	var resp Principal
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// CreateServiceRequest raises a request against a catalog service.
func (c *Client) CreateServiceRequest(ctx context.Context, title, serviceID string) (ServiceRequest, error) {
	body := map[string]any{
		"title":      title,
		"service_id": serviceID,
	}
	var resp ServiceRequest
	err := c.do(ctx, http.MethodPost, "service-requests", body, &resp)
	return resp, err
}

// ServiceRequests lists requests visible to the caller.
func (c *Client) ServiceRequests(ctx context.Context, status string) ([]ServiceRequest, error) {
	endpoint := "service-requests"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []ServiceRequest
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Assign replaces a request's assigned staff set.
func (c *Client) Assign(ctx context.Context, requestID string, staffIDs []string) (ServiceRequest, error) {
	body := map[string]any{"assigned_to": staffIDs}
	var resp ServiceRequest
	endpoint := fmt.Sprintf("service-requests/%s", url.PathEscape(requestID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// Tasks lists tasks visible to the caller.
func (c *Client) Tasks(ctx context.Context, requestID string) ([]Task, error) {
	endpoint := "tasks"
	if requestID != "" {
		endpoint += "?service_request_id=" + url.QueryEscape(requestID)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateTaskStatus moves a task through its workflow.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID, status string) (Task, error) {
	body := map[string]any{"status": status}
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// ApproveTask completes an accepted task as the owning customer.
func (c *Client) ApproveTask(ctx context.Context, taskID string) (Task, error) {
	body := map[string]any{"action": "approve"}
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/review", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// RejectTask sends an accepted task back to review with a reason.
func (c *Client) RejectTask(ctx context.Context, taskID, reason string) (Task, error) {
	body := map[string]any{"action": "reject", "reason": reason}
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/review", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

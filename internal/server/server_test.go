package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"studioline/internal/config"
	"studioline/internal/db"
	"studioline/internal/domain"
	"studioline/internal/engine"
	"studioline/internal/engine/identity"
	"studioline/internal/migrate"
	"studioline/internal/repo"
	"studioline/internal/token"
)

type testServer struct {
	URL    string
	client *http.Client
	eng    engine.Engine
	ids    identity.Service
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	// Low bcrypt cost keeps the login-heavy tests quick.
	ids := identity.New(repo.Repo{DB: conn}, 4)
	tokens := token.New("test-secret", time.Hour)

	handler, err := New(Config{
		Engine:   e,
		Identity: ids,
		Tokens:   tokens,
		BasePath: "/v1",
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		eng:    e,
		ids:    ids,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func (s *testServer) seedAdmin(t *testing.T) domain.Staff {
	t.Helper()
	st, err := s.ids.CreateStaff(context.Background(), identity.CreateStaffOptions{
		Name:        "Admin",
		PhoneNumber: "09120000001",
		Password:    "admin-pass",
		Role:        "admin",
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return st
}

func (s *testServer) login(t *testing.T, phone, password string) LoginResponse {
	t.Helper()
	res, data := doJSON(t, s.client, http.MethodPost, s.URL+"/v1/auth/login", LoginRequest{
		PhoneNumber: phone,
		Password:    password,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	return out
}

func (s *testServer) signupCustomer(t *testing.T, name, phone string) LoginResponse {
	t.Helper()
	res, data := doJSON(t, s.client, http.MethodPost, s.URL+"/v1/auth/signup", SignupRequest{
		Kind:        "customer",
		Name:        name,
		PhoneNumber: phone,
		Password:    "cust-pass",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("signup status %d: %s", res.StatusCode, string(data))
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal signup: %v", err)
	}
	return out
}

func TestLoginAndMe(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seedAdmin(t)

	login := srv.login(t, admin.PhoneNumber, "admin-pass")
	if login.Token == "" {
		t.Fatal("expected a token")
	}
	if login.Principal.Kind != "staff" || login.Principal.Role != "admin" {
		t.Fatalf("unexpected principal: %+v", login.Principal)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, bearer(login.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me PrincipalResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.ID != admin.ID {
		t.Fatalf("expected %s, got %s", admin.ID, me.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seedAdmin(t)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/login", LoginRequest{
		PhoneNumber: admin.PhoneNumber,
		Password:    "wrong-pass",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", envelope.Error.Code)
	}
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/service-requests", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/me", nil, bearer("not-a-token"))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d: %s", res.StatusCode, string(data))
	}
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestVerifyToken(t *testing.T) {
	srv := newTestServer(t)
	cust := srv.signupCustomer(t, "Leila", "09120000100")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/verify", VerifyTokenRequest{Token: cust.Token}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", res.StatusCode, string(data))
	}
	var out VerifyTokenResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal verify: %v", err)
	}
	if !out.Valid || !out.Exists || out.Principal == nil {
		t.Fatalf("expected valid existing principal, got %+v", out)
	}

	// A principal id that is not the token's subject yields exists=false.
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/verify", VerifyTokenRequest{
		Token:       cust.Token,
		PrincipalID: "someone-else",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", res.StatusCode, string(data))
	}
	// Absent fields must not inherit values from the previous response.
	out = VerifyTokenResponse{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal verify: %v", err)
	}
	if !out.Valid || out.Exists || out.Principal != nil {
		t.Fatalf("expected valid token but mismatched principal, got %+v", out)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/verify", VerifyTokenRequest{Token: "garbage"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d: %s", res.StatusCode, string(data))
	}
	out = VerifyTokenResponse{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal verify: %v", err)
	}
	if out.Valid || out.Exists || out.Principal != nil {
		t.Fatalf("expected invalid verdict, got %+v", out)
	}
}

// end-to-end: customer raises a request, staff assigns, the assignee walks the
// task to accepted and the owning customer signs off.
func TestRequestToCompletedTaskFlow(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seedAdmin(t)
	adminTok := srv.login(t, admin.PhoneNumber, "admin-pass").Token
	client := srv.Client()

	// Staff creates an editor and a catalog service.
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/staff", CreateStaffRequest{
		Name:        "Editor",
		PhoneNumber: "09120000002",
		Password:    "editor-pass",
		Role:        "editor",
	}, bearer(adminTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create staff status %d: %s", res.StatusCode, string(data))
	}
	var editor domain.Staff
	if err := json.Unmarshal(data, &editor); err != nil {
		t.Fatalf("unmarshal staff: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/services", CreateServiceBody{
		Name:      "Reels Package",
		BasePrice: 1_500_000,
	}, bearer(adminTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create service status %d: %s", res.StatusCode, string(data))
	}
	var service domain.Service
	if err := json.Unmarshal(data, &service); err != nil {
		t.Fatalf("unmarshal service: %v", err)
	}

	// The customer raises a request; requested_by comes from its token.
	cust := srv.signupCustomer(t, "Leila", "09120000100")
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/service-requests", CreateServiceRequestBody{
		Title:     "Spring campaign reels",
		ServiceID: service.ID,
	}, bearer(cust.Token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create request status %d: %s", res.StatusCode, string(data))
	}
	var sr domain.ServiceRequest
	if err := json.Unmarshal(data, &sr); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if sr.RequestedBy != cust.Principal.ID {
		t.Fatalf("requested_by must come from the token, got %s", sr.RequestedBy)
	}
	if sr.Status != domain.RequestPending {
		t.Fatalf("expected pending, got %s", sr.Status)
	}

	// Staff assigns the editor; exactly one task is synthesized.
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/service-requests/"+sr.ID, UpdateServiceRequestBody{
		AssignedTo: &[]string{editor.ID},
	}, bearer(adminTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign status %d: %s", res.StatusCode, string(data))
	}

	editorTok := srv.login(t, editor.PhoneNumber, "editor-pass").Token
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/tasks?service_request_id="+sr.ID, nil, bearer(editorTok))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list tasks status %d: %s", res.StatusCode, string(data))
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected exactly one task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.AssigneeID != editor.ID || task.Status != domain.TaskTodo {
		t.Fatalf("unexpected task: %+v", task)
	}

	// The assignee walks the task to accepted.
	for _, status := range []string{domain.TaskInProgress, domain.TaskReview, domain.TaskAccepted} {
		res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+task.ID, UpdateTaskRequest{
			Status: &status,
		}, bearer(editorTok))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("move to %s: status %d: %s", status, res.StatusCode, string(data))
		}
	}

	// A direct jump to completed is rejected even for the assignee.
	completed := domain.TaskCompleted
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/tasks/"+task.ID, UpdateTaskRequest{
		Status: &completed,
	}, bearer(editorTok))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for direct completion, got %d: %s", res.StatusCode, string(data))
	}

	// A different customer may not review the task.
	other := srv.signupCustomer(t, "Other", "09120000101")
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+task.ID+"/review", ReviewTaskRequest{
		Action: "approve",
	}, bearer(other.Token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign customer, got %d: %s", res.StatusCode, string(data))
	}

	// The owning customer approves and the task completes.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/tasks/"+task.ID+"/review", ReviewTaskRequest{
		Action: "approve",
	}, bearer(cust.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("review status %d: %s", res.StatusCode, string(data))
	}
	var done domain.Task
	if err := json.Unmarshal(data, &done); err != nil {
		t.Fatalf("unmarshal reviewed task: %v", err)
	}
	if done.Status != domain.TaskCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completed task, got %+v", done)
	}

	// The status summary reflects the finished work.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/service-requests/"+sr.ID+"/status", nil, bearer(cust.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status summary status %d: %s", res.StatusCode, string(data))
	}
	var summary struct {
		ServiceRequestID string         `json:"service_request_id"`
		Status           string         `json:"status"`
		TaskCounts       map[string]int `json:"task_counts"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.ServiceRequestID != sr.ID {
		t.Fatalf("unexpected summary subject: %+v", summary)
	}
	if summary.TaskCounts[domain.TaskCompleted] != 1 {
		t.Fatalf("expected one completed task in counts, got %+v", summary.TaskCounts)
	}
}

func TestCustomerSeesOnlyOwnRequests(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seedAdmin(t)
	adminTok := srv.login(t, admin.PhoneNumber, "admin-pass").Token
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/services", CreateServiceBody{Name: "Photos"}, bearer(adminTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create service status %d: %s", res.StatusCode, string(data))
	}
	var service domain.Service
	if err := json.Unmarshal(data, &service); err != nil {
		t.Fatalf("unmarshal service: %v", err)
	}

	a := srv.signupCustomer(t, "A", "09120000100")
	b := srv.signupCustomer(t, "B", "09120000101")
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/service-requests", CreateServiceRequestBody{
		Title:     "Product photos",
		ServiceID: service.ID,
	}, bearer(a.Token))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create request status %d: %s", res.StatusCode, string(data))
	}
	var sr domain.ServiceRequest
	if err := json.Unmarshal(data, &sr); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}

	// B's listing is scoped to its own requests.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/service-requests", nil, bearer(b.Token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var listed []domain.ServiceRequest
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty list for foreign customer, got %d", len(listed))
	}

	// Fetching A's request directly is forbidden for B, as is its summary.
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/service-requests/"+sr.ID, nil, bearer(b.Token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/service-requests/"+sr.ID+"/status", nil, bearer(b.Token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign summary, got %d: %s", res.StatusCode, string(data))
	}

	// Customers may not assign staff.
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/service-requests/"+sr.ID, UpdateServiceRequestBody{
		AssignedTo: &[]string{admin.ID},
	}, bearer(a.Token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for customer assignment, got %d: %s", res.StatusCode, string(data))
	}
}

func TestSignupDuplicatePhoneConflicts(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seedAdmin(t)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/auth/signup", SignupRequest{
		Kind:        "customer",
		Name:        "Copycat",
		PhoneNumber: admin.PhoneNumber,
		Password:    "pass-1234",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "duplicate_phone_number" {
		t.Fatalf("expected duplicate_phone_number, got %q", envelope.Error.Code)
	}
}

func TestAPIKeyAuthenticatesAsStaff(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.seedAdmin(t)
	adminTok := srv.login(t, admin.PhoneNumber, "admin-pass").Token
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/apikeys", CreateAPIKeyRequest{Name: "ci"}, bearer(adminTok))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create apikey status %d: %s", res.StatusCode, string(data))
	}
	var key APIKeyResponse
	if err := json.Unmarshal(data, &key); err != nil {
		t.Fatalf("unmarshal apikey: %v", err)
	}
	if key.Key == "" {
		t.Fatal("expected the plaintext key in the create response")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": key.Key})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me via api key status %d: %s", res.StatusCode, string(data))
	}
	var me PrincipalResponse
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.ID != admin.ID || me.Kind != "staff" {
		t.Fatalf("api key must resolve to its staff principal, got %+v", me)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/me", nil, map[string]string{"X-Api-Key": "bogus"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown key, got %d: %s", res.StatusCode, string(data))
	}
}

func TestNonAdminCannotCreateStaff(t *testing.T) {
	srv := newTestServer(t)
	srv.seedAdmin(t)
	cust := srv.signupCustomer(t, "Leila", "09120000100")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/staff", CreateStaffRequest{
		Name:        "Sneaky",
		PhoneNumber: "09120000050",
		Password:    "pass-1234",
		Role:        "admin",
	}, bearer(cust.Token))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", res.StatusCode, string(data))
	}
}

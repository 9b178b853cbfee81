package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SmartXchain/piedmont-sub000/internal/config"
	"github.com/SmartXchain/piedmont-sub000/internal/db"
	"github.com/SmartXchain/piedmont-sub000/internal/engine"
	"github.com/SmartXchain/piedmont-sub000/internal/migrate"
	"github.com/SmartXchain/piedmont-sub000/internal/timeline"
)

const testCatalog = `
methods:
  - {id: clean, title: Alkaline clean, tank: Tank 1, touch: {min: 10, max: 20}, run: {min: 15, max: 15}}
  - {id: seal, title: Hot seal, touch: {min: 10}}
routings:
  - id: basic
    name: Clean and seal
    steps:
      - {step: 10, method: clean}
      - {step: 20, method: seal}
`

type testServer struct {
	URL    string
	client *http.Client
	engine engine.Engine
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
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
	e.Now = func() time.Time { return time.Date(2025, 1, 1, 7, 0, 0, 0, time.UTC) }
	if _, err := e.ImportCatalog(context.Background(), []byte(testCatalog), "tester"); err != nil {
		t.Fatalf("import catalog: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/api", Auth: auth})
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
		engine: e,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
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

func createOrder(t *testing.T, srv *testServer, wo string) OrderResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"work_order":  wo,
		"part_number": "PN-7",
		"quantity":    2,
		"routing_id":  "basic",
		"start_date":  "2025-01-01",
	}, map[string]string{"X-Actor-Id": "planner"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create order status %d: %s", res.StatusCode, string(data))
	}
	var o OrderResponse
	if err := json.Unmarshal(data, &o); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	return o
}

type errorEnvelope struct {
	Success bool         `json:"success"`
	Error   apiErrorBody `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	if env.Success {
		t.Fatalf("error envelope reports success: %s", string(data))
	}
	return env
}

func TestScheduleFlow(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()
	o := createOrder(t, srv, "WO-100")
	if o.Status != "scheduled" || o.EstimatedFinishDate != "2025-01-01" {
		t.Fatalf("order not compiled: %+v", o)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/schedule/delays", map[string]any{
		"orderId": o.ID, "stepNumber": 10, "minutes": 5, "reason": "rack shortage",
	}, map[string]string{"X-Actor-Id": "op-1"})
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"success":true`) {
		t.Fatalf("add delay: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/schedule", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("schedule: %d %s", res.StatusCode, string(data))
	}
	var sched timeline.Schedule
	if err := json.Unmarshal(data, &sched); err != nil {
		t.Fatalf("unmarshal schedule: %v", err)
	}
	if len(sched.Resources) != 3 || len(sched.Events) != 3 {
		t.Fatalf("unexpected schedule shape: %d rows %d events", len(sched.Resources), len(sched.Events))
	}
	step := sched.Events[0]
	if !step.ExtendedProps.IsDelayed || step.Start != "2025-01-01T08:00:00Z" || step.End != "2025-01-01T08:40:00Z" {
		t.Fatalf("unexpected step event %+v", step)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/schedule/status", map[string]any{
		"orderId": o.ID, "status": "done",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?entity_kind=order&limit=2", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected a full page with cursor, got %+v", page)
	}
	if page.Items[0].Type != "order.status.updated" || page.Items[0].ActorID != Anonymous {
		t.Fatalf("unexpected latest event %+v", page.Items[0])
	}
	if page.Items[1].ActorID != "op-1" {
		t.Fatalf("delay event should carry the actor header, got %s", page.Items[1].ActorID)
	}
}

func TestAddDelayErrors(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()
	o := createOrder(t, srv, "WO-200")

	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"missing order", map[string]any{"stepNumber": 10, "minutes": 5, "reason": "x"}, http.StatusBadRequest, "bad_request"},
		{"missing step", map[string]any{"orderId": o.ID, "minutes": 5, "reason": "x"}, http.StatusBadRequest, "bad_request"},
		{"unknown order", map[string]any{"orderId": "nope", "stepNumber": 10, "minutes": 5, "reason": "x"}, http.StatusNotFound, "not_found"},
		{"unknown step", map[string]any{"orderId": o.ID, "stepNumber": 99, "minutes": 5, "reason": "x"}, http.StatusNotFound, "not_found"},
		{"zero minutes", map[string]any{"orderId": o.ID, "stepNumber": 10, "minutes": 0, "reason": "x"}, http.StatusBadRequest, "bad_request"},
		{"negative minutes", map[string]any{"orderId": o.ID, "stepNumber": 10, "minutes": -3, "reason": "x"}, http.StatusBadRequest, "bad_request"},
		{"blank reason", map[string]any{"orderId": o.ID, "stepNumber": 10, "minutes": 5, "reason": "  "}, http.StatusBadRequest, "bad_request"},
	}
	messages := map[string]bool{}
	for _, tc := range cases {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/schedule/delays", tc.body, nil)
		if res.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d %s", tc.name, tc.status, res.StatusCode, string(data))
		}
		env := decodeError(t, data)
		if env.Error.Code != tc.code {
			t.Fatalf("%s: expected code %s, got %s", tc.name, tc.code, env.Error.Code)
		}
		messages[env.Error.Message] = true
	}
	if len(messages) < 5 {
		t.Fatalf("expected distinct messages, got %v", messages)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/schedule/status", map[string]any{"orderId": o.ID, "status": "done"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark done: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/schedule/delays", map[string]any{
		"orderId": o.ID, "stepNumber": 10, "minutes": 5, "reason": "late",
	}, nil)
	if res.StatusCode != http.StatusBadRequest || decodeError(t, data).Error.Code != "state_conflict" {
		t.Fatalf("delay on done order: %d %s", res.StatusCode, string(data))
	}
}

func TestUpdateStatusErrors(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()
	o := createOrder(t, srv, "WO-300")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/schedule/status", map[string]any{"orderId": o.ID}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing status: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/schedule/status", map[string]any{"orderId": o.ID, "status": "shipped"}, nil)
	if res.StatusCode != http.StatusBadRequest || !strings.Contains(decodeError(t, data).Error.Message, "invalid status") {
		t.Fatalf("invalid status: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/schedule/status", map[string]any{"orderId": "ghost", "status": "hold"}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown order: %d %s", res.StatusCode, string(data))
	}
}

func TestOrderEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()
	o := createOrder(t, srv, "WO-400")

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/orders/"+o.ID+"/operations", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("operations: %d %s", res.StatusCode, string(data))
	}
	var ops []OperationResponse
	_ = json.Unmarshal(data, &ops)
	if len(ops) != 2 || ops[0].Minutes != 30 || ops[1].Minutes != 10 {
		t.Fatalf("unexpected operations %+v", ops)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/orders/"+o.ID+"/operations/1", map[string]any{"status": "completed"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update operation: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/api/orders/"+o.ID+"/part-status", map[string]any{"part_status": "received"}, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"part_status":"received"`) {
		t.Fatalf("part status: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/orders/missing", nil, nil)
	if res.StatusCode != http.StatusNotFound || decodeError(t, data).Error.Code != "not_found" {
		t.Fatalf("missing order: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/orders", map[string]any{"work_order": "WO-401", "part_number": "P"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing quantity: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/orders?status=scheduled", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list orders: %d %s", res.StatusCode, string(data))
	}
	var list []OrderResponse
	_ = json.Unmarshal(data, &list)
	if len(list) != 1 || list[0].ID != o.ID {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestJWTRequiredForMutationsWhenConfigured(t *testing.T) {
	secret := "test-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/schedule", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reads should stay open: %d %s", res.StatusCode, string(data))
	}
	body := map[string]any{"name": "Oven 2", "type": "oven"}
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/resources", body, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "supervisor"}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/resources", body, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create resource: %d %s", res.StatusCode, string(data))
	}
	events, err := srv.engine.Repo.LatestEvents(context.Background(), 1, "resource.created", "", "")
	if err != nil || len(events) != 1 || events[0].ActorID != "supervisor" {
		t.Fatalf("expected supervisor audit event, got %+v %v", events, err)
	}
}

func TestDocsAndMetrics(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()
	for _, p := range []string{"/api/openapi.json", "/docs", "/metrics", "/api/health"} {
		res, data := doJSON(t, client, http.MethodGet, srv.URL+p, nil, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s: %d %s", p, res.StatusCode, string(data))
		}
	}
}

func TestCreateResourceDoesNotOverwrite(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/resources", map[string]any{"id": "r1", "name": "Tank 9", "type": "tank"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create resource: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/resources", map[string]any{"id": "r1", "name": "Oven 2", "type": "oven"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for existing id, got %d %s", res.StatusCode, string(data))
	}
	env := decodeError(t, data)
	if env.Error.Code != "bad_request" || env.Error.Details["field"] != "id" {
		t.Fatalf("unexpected error %+v", env.Error)
	}

	stored, err := srv.engine.Repo.GetResource(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Name != "Tank 9" || string(stored.Type) != "tank" {
		t.Fatalf("resource was rewritten: %+v", stored)
	}
	created, err := srv.engine.Repo.LatestEvents(context.Background(), 10, "resource.created", "", "")
	if err != nil || len(created) != 1 {
		t.Fatalf("expected one resource.created event, got %d (%v)", len(created), err)
	}
}

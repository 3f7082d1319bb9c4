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

	"github.com/golang-jwt/jwt/v5"

	"planup/internal/config"
	"planup/internal/db"
	"planup/internal/engine"
	"planup/internal/migrate"
)

const testJWTSecret = "server-test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("proj-1", "PLAN")
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC) }
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
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
	req.Header.Set("X-Actor-Id", "tester")
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

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env
}

func createProject(t *testing.T, srv *testServer, key string) string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects", map[string]any{
		"key":  key,
		"name": "Test project",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create project: %d %s", res.StatusCode, string(data))
	}
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	return p.ID
}

func createIssue(t *testing.T, srv *testServer, projectID, title string) string {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/projects/"+projectID+"/issues", map[string]any{
		"title": title,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create issue: %d %s", res.StatusCode, string(data))
	}
	var i struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &i); err != nil {
		t.Fatalf("unmarshal issue: %v", err)
	}
	return i.ID
}

func TestHealthSkipsAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/health", nil)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", res.StatusCode)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/projects", nil)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
	env := decodeError(t, data)
	if env.Error.Code != "unauthorized" {
		t.Fatalf("code = %q, want unauthorized", env.Error.Code)
	}
}

func TestBearerTokenAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	req2, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/projects", nil)
	req2.Header.Set("Authorization", "Bearer not-a-token")
	res2, err := srv.Client().Do(req2)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", res2.StatusCode)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/apikeys", map[string]any{
		"name":     "ci key",
		"actor_id": "ci-bot",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create api key: %d %s", res.StatusCode, string(data))
	}
	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	if created.Key == "" {
		t.Fatal("raw key missing from create response")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/projects", nil)
	req.Header.Set("X-Api-Key", created.Key)
	keyRes, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer keyRes.Body.Close()
	if keyRes.StatusCode != http.StatusOK {
		t.Fatalf("api key auth status = %d, want 200", keyRes.StatusCode)
	}
}

func TestIssueBoardFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	projectID := createProject(t, srv, "WEB")
	issueID := createIssue(t, srv, projectID, "Ship login page")

	getRes, getData := doJSON(t, client, http.MethodGet, srv.URL+"/v1/issues/"+issueID, nil, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get issue: %d %s", getRes.StatusCode, string(getData))
	}
	var fetched struct {
		Key    string `json:"key"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(getData, &fetched); err != nil {
		t.Fatalf("unmarshal issue: %v", err)
	}
	if fetched.Key != "WEB-1" {
		t.Fatalf("key = %q, want WEB-1", fetched.Key)
	}
	if fetched.Status != "To Do" {
		t.Fatalf("status = %q, want To Do", fetched.Status)
	}

	moveRes, moveData := doJSON(t, client, http.MethodPost, srv.URL+"/v1/issues/"+issueID+"/move", map[string]any{
		"status": "In Progress",
	}, nil)
	if moveRes.StatusCode != http.StatusOK {
		t.Fatalf("move issue: %d %s", moveRes.StatusCode, string(moveData))
	}

	badRes, badData := doJSON(t, client, http.MethodPost, srv.URL+"/v1/issues/"+issueID+"/move", map[string]any{
		"status": "Done",
	}, nil)
	if badRes.StatusCode != http.StatusConflict {
		t.Fatalf("illegal move status = %d, want 409: %s", badRes.StatusCode, string(badData))
	}
	env := decodeError(t, badData)
	if env.Error.Code != "invalid_transition" {
		t.Fatalf("code = %q, want invalid_transition", env.Error.Code)
	}

	unknownRes, unknownData := doJSON(t, client, http.MethodPost, srv.URL+"/v1/issues/"+issueID+"/move", map[string]any{
		"status": "Parked",
	}, nil)
	if unknownRes.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown status = %d, want 422: %s", unknownRes.StatusCode, string(unknownData))
	}
	if code := decodeError(t, unknownData).Error.Code; code != "unknown_status" {
		t.Fatalf("code = %q, want unknown_status", code)
	}
}

func TestDuplicateLinkConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	projectID := createProject(t, srv, "WEB")
	a := createIssue(t, srv, projectID, "API endpoint")
	b := createIssue(t, srv, projectID, "Frontend form")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/issues/"+a+"/links", map[string]any{
		"target_issue_id": b,
		"link_type":       "blocks",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create link: %d %s", res.StatusCode, string(data))
	}

	// Restating the same relation from the other end is still a duplicate.
	dupRes, dupData := doJSON(t, client, http.MethodPost, srv.URL+"/v1/issues/"+b+"/links", map[string]any{
		"target_issue_id": a,
		"link_type":       "is-blocked-by",
	}, nil)
	if dupRes.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate link status = %d, want 409: %s", dupRes.StatusCode, string(dupData))
	}
	if code := decodeError(t, dupData).Error.Code; code != "duplicate_link" {
		t.Fatalf("code = %q, want duplicate_link", code)
	}

	listRes, listData := doJSON(t, client, http.MethodGet, srv.URL+"/v1/issues/"+b+"/links", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list links: %d %s", listRes.StatusCode, string(listData))
	}
	var links []struct {
		LinkType string `json:"link_type"`
	}
	if err := json.Unmarshal(listData, &links); err != nil {
		t.Fatalf("unmarshal links: %v", err)
	}
	if len(links) != 1 || links[0].LinkType != "is-blocked-by" {
		t.Fatalf("links = %+v, want single is-blocked-by reading", links)
	}
}

func TestLogTimeValidation(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	projectID := createProject(t, srv, "WEB")
	issueID := createIssue(t, srv, projectID, "Tune queries")

	zeroRes, zeroData := doJSON(t, client, http.MethodPost, srv.URL+"/v1/issues/"+issueID+"/timelogs", map[string]any{
		"hours": 0,
	}, nil)
	if zeroRes.StatusCode != http.StatusBadRequest {
		t.Fatalf("zero hours status = %d, want 400: %s", zeroRes.StatusCode, string(zeroData))
	}
	if code := decodeError(t, zeroData).Error.Code; code != "invalid_duration" {
		t.Fatalf("code = %q, want invalid_duration", code)
	}

	catRes, catData := doJSON(t, client, http.MethodPost, srv.URL+"/v1/issues/"+issueID+"/timelogs", map[string]any{
		"hours":    2,
		"category": "golfing",
	}, nil)
	if catRes.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown category status = %d, want 400: %s", catRes.StatusCode, string(catData))
	}
	if code := decodeError(t, catData).Error.Code; code != "unknown_time_category" {
		t.Fatalf("code = %q, want unknown_time_category", code)
	}

	okRes, okData := doJSON(t, client, http.MethodPost, srv.URL+"/v1/issues/"+issueID+"/timelogs", map[string]any{
		"hours":    2.5,
		"category": "development",
	}, nil)
	if okRes.StatusCode != http.StatusCreated {
		t.Fatalf("log time: %d %s", okRes.StatusCode, string(okData))
	}

	listRes, listData := doJSON(t, client, http.MethodGet, srv.URL+"/v1/issues/"+issueID+"/timelogs", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list timelogs: %d %s", listRes.StatusCode, string(listData))
	}
	var logs struct {
		TotalHours float64 `json:"total_hours"`
	}
	if err := json.Unmarshal(listData, &logs); err != nil {
		t.Fatalf("unmarshal timelogs: %v", err)
	}
	if logs.TotalHours != 2.5 {
		t.Fatalf("total_hours = %v, want 2.5", logs.TotalHours)
	}
}

func TestMissingIssueNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/issues/nope", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", res.StatusCode, string(data))
	}
	if code := decodeError(t, data).Error.Code; code != "not_found" {
		t.Fatalf("code = %q, want not_found", code)
	}
}

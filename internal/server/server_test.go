package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"crewplan/internal/config"
	"crewplan/internal/db"
	"crewplan/internal/domain"
	"crewplan/internal/engine"
	"crewplan/internal/migrate"
)

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
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v1"})
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

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
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

func seedOverHTTP(t *testing.T, srv *testServer) {
	t.Helper()
	batches := map[string][]map[string]any{
		"clients": {
			{"ClientID": "C1", "ClientName": "Acme", "PriorityLevel": "3", "RequestedTaskIDs": "T1"},
		},
		"workers": {
			{"WorkerID": "W1", "WorkerName": "Ada", "Skills": "go,sql",
				"AvailableSlots": "1-3", "MaxLoadPerPhase": "2", "WorkerGroup": "backend"},
		},
		"tasks": {
			{"TaskID": "T1", "TaskName": "Build", "Duration": "1", "RequiredSkills": "go"},
			{"TaskID": "T2", "TaskName": "Ship", "Duration": "1", "RequiredSkills": "sql"},
		},
	}
	for entity, records := range batches {
		res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/records/"+entity+"/ingest", map[string]any{
			"mode":    "replace",
			"records": records,
		})
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("ingest %s: %d %s", entity, res.StatusCode, string(body))
		}
	}
}

func TestIngestValidateRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedOverHTTP(t, srv)

	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/validations", nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("run validation: %d %s", res.StatusCode, string(body))
	}
	var run domain.ValidationRun
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatalf("unmarshal run: %v", err)
	}
	if !run.IsValid {
		t.Fatalf("seed data invalid: %+v", run.Result.Errors)
	}

	getRes, getBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/validations/"+run.ID, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get run: %d %s", getRes.StatusCode, string(getBody))
	}
}

func TestValidationReportsFindings(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/records/clients/ingest", map[string]any{
		"records": []map[string]any{
			{"ClientID": "C1", "ClientName": "a", "PriorityLevel": "9"},
			{"ClientID": "C1", "ClientName": "b", "PriorityLevel": "2"},
		},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("ingest: %d %s", res.StatusCode, string(body))
	}
	valRes, valBody := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/validations", nil)
	if valRes.StatusCode != http.StatusCreated {
		t.Fatalf("validate: %d %s", valRes.StatusCode, string(valBody))
	}
	var run domain.ValidationRun
	if err := json.Unmarshal(valBody, &run); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if run.IsValid {
		t.Fatalf("bad data reported valid")
	}
	if run.Result.Summary.ByType[domain.FindingOutOfRange] != 1 ||
		run.Result.Summary.ByType[domain.FindingDuplicateID] != 1 {
		t.Fatalf("summary = %+v", run.Result.Summary)
	}
}

func TestAddRuleRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedOverHTTP(t, srv)

	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/rules", map[string]any{
		"type":  "coRun",
		"tasks": []string{"T1", "T9"},
	})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(body))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "validation_failed" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
	if envelope.Error.Details["problems"] == nil {
		t.Fatalf("no problems detail: %s", string(body))
	}

	listRes, listBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/rules", nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list rules: %d", listRes.StatusCode)
	}
	var list RuleListResponse
	if err := json.Unmarshal(listBody, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if list.Count != 0 {
		t.Fatalf("rejected rule stored: %+v", list)
	}
}

func TestRuleLifecycleAndConflicts(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	seedOverHTTP(t, srv)

	var first domain.Rule
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/rules", map[string]any{
		"type": "loadLimit", "workerGroup": "backend", "maxSlotsPerPhase": 2,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add rule: %d %s", res.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &first); err != nil {
		t.Fatalf("unmarshal rule: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("no ID assigned: %s", string(body))
	}

	res, body = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/rules", map[string]any{
		"type": "loadLimit", "workerGroup": "backend", "maxSlotsPerPhase": 4,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add second rule: %d %s", res.StatusCode, string(body))
	}

	confRes, confBody := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/rules/conflicts", nil)
	if confRes.StatusCode != http.StatusOK {
		t.Fatalf("conflicts: %d", confRes.StatusCode)
	}
	var conflicts ConflictListResponse
	if err := json.Unmarshal(confBody, &conflicts); err != nil {
		t.Fatalf("unmarshal conflicts: %v", err)
	}
	if conflicts.Count != 1 {
		t.Fatalf("conflicts = %+v, want one", conflicts)
	}

	patchRes, patchBody := doJSON(t, srv.Client(), http.MethodPatch, srv.URL+"/v1/rules/"+first.ID, map[string]any{
		"maxSlotsPerPhase": 4,
	})
	if patchRes.StatusCode != http.StatusOK {
		t.Fatalf("patch rule: %d %s", patchRes.StatusCode, string(patchBody))
	}

	confRes, confBody = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/rules/conflicts", nil)
	if confRes.StatusCode != http.StatusOK {
		t.Fatalf("conflicts: %d", confRes.StatusCode)
	}
	if err := json.Unmarshal(confBody, &conflicts); err != nil {
		t.Fatalf("unmarshal conflicts: %v", err)
	}
	if conflicts.Count != 0 {
		t.Fatalf("conflict survived the fix: %+v", conflicts)
	}

	delRes, _ := doJSON(t, srv.Client(), http.MethodDelete, srv.URL+"/v1/rules/"+first.ID, nil)
	if delRes.StatusCode != http.StatusOK && delRes.StatusCode != http.StatusNoContent {
		t.Fatalf("delete rule: %d", delRes.StatusCode)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/validations/missing", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d %s", res.StatusCode, string(body))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v1/health", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(body))
	}
}

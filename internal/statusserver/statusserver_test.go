package statusserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skylark-uav/skylark/internal/exec"
	"github.com/skylark-uav/skylark/internal/supervisor"
	"github.com/skylark-uav/skylark/internal/topics"
)

type fakeSource struct {
	status exec.Status
}

func (f *fakeSource) Status() exec.Status { return f.status }

func testServer() (*Server, *fakeSource) {
	auto := supervisor.Snapshot{Name: "auto", Stage: "AutoShadow", Tasks: []string{"ShadowWatch"}}
	src := &fakeSource{status: exec.Status{
		Exec: supervisor.Snapshot{Name: "exec", Stage: "HealthyGuided", Tasks: []string{"ControlArmed"}},
		Auto: &auto,
		Topics: []topics.Entry{
			{Key: topics.KeyConnectionState, Data: true, Version: 1},
			{Key: topics.KeyMode, Data: "GUIDED", Version: 2},
		},
	}}
	return New("127.0.0.1:0", src), src
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := testServer()
	rec := get(t, s.Router(), "/v1/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var st exec.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.Exec.Stage != "HealthyGuided" {
		t.Fatalf("exec stage = %q, want HealthyGuided", st.Exec.Stage)
	}
	if st.Auto == nil || st.Auto.Stage != "AutoShadow" {
		t.Fatalf("auto snapshot = %+v, want AutoShadow", st.Auto)
	}
}

func TestTopicsEndpoint(t *testing.T) {
	s, _ := testServer()
	rec := get(t, s.Router(), "/v1/topics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []topics.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Data != "GUIDED" {
		t.Fatalf("unexpected topics payload: %+v", entries)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	s, _ := testServer()
	if rec := get(t, s.Router(), "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec := get(t, s.Router(), "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadOnlySurface(t *testing.T) {
	s, _ := testServer()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /v1/status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

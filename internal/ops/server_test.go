package ops

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/p2pmart/dealroom/internal/health"
	"github.com/p2pmart/dealroom/internal/queue"
	"github.com/p2pmart/dealroom/internal/registry"
)

func newTestServer(t *testing.T, checks *health.Registry) (*Server, registry.Store, queue.Store) {
	t.Helper()
	rooms := registry.NewFileStore(filepath.Join(t.TempDir(), "rooms.json"))
	reqs := queue.NewMemoryStore()
	if checks == nil {
		checks = health.NewRegistry()
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New("0", "test", rooms, reqs, nil, checks, logger), rooms, reqs
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthHealthy(t *testing.T) {
	checks := health.NewRegistry()
	checks.Register("queue-file", func(ctx context.Context) health.Status {
		return health.Status{Name: "queue-file", Healthy: true}
	})
	s, _, _ := newTestServer(t, checks)

	w := get(t, s, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "healthy" || len(resp.Checks) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHealthDegraded(t *testing.T) {
	checks := health.NewRegistry()
	checks.Register("registry", func(ctx context.Context) health.Status {
		return health.Status{Name: "registry", Healthy: false, Detail: "file unreadable"}
	})
	s, _, _ := newTestServer(t, checks)

	w := get(t, s, "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestListRooms(t *testing.T) {
	s, rooms, _ := newTestServer(t, nil)
	ctx := context.Background()

	err := rooms.Put(ctx, &registry.Record{
		RoomID: -100, Name: "MM ROOM 1",
		Initiator: "alice", Counterparty: "bob",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	w := get(t, s, "/v1/rooms")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
}

func TestGetRoom(t *testing.T) {
	s, rooms, _ := newTestServer(t, nil)
	ctx := context.Background()

	_ = rooms.Put(ctx, &registry.Record{RoomID: -100, Name: "MM ROOM 1", CreatedAt: time.Now()})

	if w := get(t, s, "/v1/rooms/-100"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w := get(t, s, "/v1/rooms/-999"); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if w := get(t, s, "/v1/rooms/abc"); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestListRequests(t *testing.T) {
	s, _, reqs := newTestServer(t, nil)
	ctx := context.Background()

	_ = reqs.Append(ctx, &queue.Request{
		ID: "req_1", Initiator: "alice", Counterparty: "bob",
		Status: queue.StatusPending, CreatedAt: time.Now(),
	})

	w := get(t, s, "/v1/requests/pending")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
}

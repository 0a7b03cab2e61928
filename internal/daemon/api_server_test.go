package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
)

type catalogStub struct {
	jobs    []*catalog.Job
	devices []*catalog.Device
	files   []*catalog.DeviceFile
}

func (s *catalogStub) ListJobs(context.Context, ...catalog.JobState) ([]*catalog.Job, error) {
	return s.jobs, nil
}

func (s *catalogStub) GetJob(context.Context, int64) (*catalog.Job, error) {
	if len(s.jobs) == 0 {
		return nil, nil
	}
	return s.jobs[0], nil
}

func (s *catalogStub) JobStats(context.Context) (map[catalog.JobState]int, error) {
	return map[catalog.JobState]int{catalog.StateQueued: len(s.jobs)}, nil
}

func (s *catalogStub) ListDevices(context.Context) ([]*catalog.Device, error) {
	return s.devices, nil
}

func (s *catalogStub) GetDevice(context.Context, int64) (*catalog.Device, error) {
	if len(s.devices) == 0 {
		return nil, nil
	}
	return s.devices[0], nil
}

func (s *catalogStub) DeviceByCardID(context.Context, string) (*catalog.Device, error) {
	return nil, nil
}

func (s *catalogStub) DeviceByVolumeUID(context.Context, string) (*catalog.Device, error) {
	return nil, nil
}

func (s *catalogStub) ListDeviceFiles(context.Context, int64, ...catalog.ImportState) ([]*catalog.DeviceFile, error) {
	return s.files, nil
}

func (s *catalogStub) ListClips(context.Context, int) ([]*catalog.Clip, error) {
	return nil, nil
}

func (s *catalogStub) GetClip(context.Context, int64) (*catalog.Clip, error) {
	return nil, nil
}

func (s *catalogStub) ClipCount(context.Context) (int, error) {
	return 0, nil
}

func newStubServer(stub *catalogStub) *apiServer {
	return &apiServer{svc: api.NewCatalogService(stub)}
}

func TestAPIServerHandleJobs(t *testing.T) {
	stub := &catalogStub{jobs: []*catalog.Job{{ID: 7, Type: catalog.JobCardScan, State: catalog.StateQueued}}}
	srv := newStubServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.JobListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].ID != 7 {
		t.Fatalf("unexpected jobs: %+v", resp.Jobs)
	}
	if resp.Jobs[0].Lane != string(catalog.LaneForeground) {
		t.Fatalf("expected foreground lane, got %q", resp.Jobs[0].Lane)
	}
}

func TestAPIServerHandleJobsRejectsUnknownState(t *testing.T) {
	srv := newStubServer(&catalogStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs?state=bogus", nil)
	w := httptest.NewRecorder()
	srv.handleJobs(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state, got %d", w.Code)
	}
}

func TestAPIServerHandleJobRejectsMethod(t *testing.T) {
	srv := newStubServer(&catalogStub{})

	req := httptest.NewRequest(http.MethodDelete, "/api/jobs/1", nil)
	w := httptest.NewRecorder()
	srv.handleJob(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerDeviceFilesRouting(t *testing.T) {
	stub := &catalogStub{
		devices: []*catalog.Device{{ID: 3, CardID: "card-3"}},
		files:   []*catalog.DeviceFile{{ID: 11, DeviceID: 3, RelPath: "cont_rec/a.mp4", ImportState: catalog.ImportPending}},
	}
	srv := newStubServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/devices/3/files", nil)
	w := httptest.NewRecorder()
	srv.handleDeviceFiles(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.DeviceFilesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Device.CardID != "card-3" || len(resp.Files) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// Missing /files suffix is not a valid route.
	req = httptest.NewRequest(http.MethodGet, "/api/devices/3", nil)
	w = httptest.NewRecorder()
	srv.handleDeviceFiles(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without /files suffix, got %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	handler := authMiddleware("tok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	handler(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"dashvault/internal/api"
	"dashvault/internal/catalog"
	"dashvault/internal/config"
	"dashvault/internal/importer"
	"dashvault/internal/logging"
)

// thumbnailRetryAfter is the Retry-After hint returned while a thumbnail is
// still being generated.
const thumbnailRetryAfter = 2 * time.Second

type apiServer struct {
	cfg    *config.Config
	bind   string
	logger *slog.Logger
	daemon *Daemon
	svc    *api.CatalogService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		cfg:    cfg,
		bind:   bind,
		logger: logger,
		daemon: d,
		svc:    d.catalogSvc,
	}

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(cfg.Paths.APIToken, next)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", auth(srv.handleStatus))
	mux.HandleFunc("/api/scan", auth(srv.handleScan))
	mux.HandleFunc("/api/imports", auth(srv.handleImports))
	mux.HandleFunc("/api/jobs", auth(srv.handleJobs))
	mux.HandleFunc("/api/jobs/", auth(srv.handleJob))
	mux.HandleFunc("/api/devices", auth(srv.handleDevices))
	mux.HandleFunc("/api/devices/", auth(srv.handleDeviceFiles))
	mux.HandleFunc("/api/clips", auth(srv.handleClips))
	mux.HandleFunc("/api/clips/", auth(srv.handleClip))
	mux.HandleFunc("/api/files/", auth(srv.handleFileThumbnail))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ScanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.daemon.TriggerScan(r.Context(), strings.TrimSpace(req.Mountpoint))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleImports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ImportRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DeviceID <= 0 {
		s.writeError(w, http.StatusBadRequest, "deviceId is required")
		return
	}
	job, err := s.daemon.TriggerImport(r.Context(), req.DeviceID, req.FileIDs)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var states []catalog.JobState
	for _, value := range r.URL.Query()["state"] {
		state, ok := catalog.ParseJobState(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job state %q", value))
			return
		}
		states = append(states, state)
	}
	jobs, err := s.svc.ListJobs(r.Context(), states...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if idStr == "" || strings.Contains(idStr, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.svc.DescribeJob(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *job})
}

func (s *apiServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	devices, err := s.svc.ListDevices(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeviceListResponse{Devices: devices})
}

// handleDeviceFiles serves /api/devices/{ref}/files where ref is a numeric
// ID, card ID, or volume UID.
func (s *apiServer) handleDeviceFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	ref, tail, found := strings.Cut(rest, "/")
	if !found || tail != "files" || ref == "" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	var states []catalog.ImportState
	for _, value := range r.URL.Query()["state"] {
		states = append(states, catalog.ImportState(strings.TrimSpace(value)))
	}
	device, files, err := s.svc.DeviceFiles(r.Context(), ref, states...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if device == nil {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeviceFilesResponse{Device: *device, Files: files})
}

func (s *apiServer) handleClips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	clips, err := s.svc.ListClips(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClipListResponse{Clips: clips})
}

// handleClip serves /api/clips/{id}, /api/clips/{id}/thumbnail, and
// /api/clips/{id}/stream.
func (s *apiServer) handleClip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/clips/")
	idStr, tail, hasTail := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid clip id")
		return
	}

	if hasTail {
		switch tail {
		case "thumbnail", "stream":
		default:
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		clip, err := s.daemon.store.GetClip(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if clip == nil {
			s.writeError(w, http.StatusNotFound, "clip not found")
			return
		}
		if tail == "stream" {
			s.serveClipVideo(w, r, clip)
			return
		}
		s.serveThumbnail(w, r, importer.AbsolutePath(s.cfg, clip))
		return
	}

	clip, err := s.svc.DescribeClip(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if clip == nil {
		s.writeError(w, http.StatusNotFound, "clip not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClipResponse{Clip: *clip})
}

// handleFileThumbnail serves /api/files/{id}/thumbnail for imported device
// files, rendered from the archived clip rather than the card source so a
// thumbnail stays available after the card is unplugged.
func (s *apiServer) handleFileThumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	idStr, tail, hasTail := strings.Cut(rest, "/")
	if !hasTail || tail != "thumbnail" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid file id")
		return
	}
	file, err := s.daemon.store.GetDeviceFile(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if file == nil {
		s.writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if file.ClipID == nil {
		s.writeError(w, http.StatusConflict, "file has not been imported yet")
		return
	}
	clip, err := s.daemon.store.GetClip(r.Context(), *file.ClipID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if clip == nil {
		s.writeError(w, http.StatusNotFound, "clip not found")
		return
	}
	s.serveThumbnail(w, r, importer.AbsolutePath(s.cfg, clip))
}

// serveThumbnail returns the cached thumbnail when it exists, otherwise
// answers 202 with a retry hint and hands the source to the background pool.
// The pool submit happens after the response is written so no request ever
// blocks on an ffmpeg invocation.
func (s *apiServer) serveThumbnail(w http.ResponseWriter, r *http.Request, sourcePath string) {
	cache := s.daemon.thumbCache
	if cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "thumbnail generation disabled")
		return
	}
	if _, err := os.Stat(sourcePath); err != nil {
		s.writeError(w, http.StatusNotFound, "source file unavailable")
		return
	}

	thumbPath := cache.Path(sourcePath)
	if _, err := os.Stat(thumbPath); err == nil {
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, thumbPath)
		return
	}

	w.Header().Set("Retry-After", strconv.Itoa(int(thumbnailRetryAfter.Seconds())))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "generating"})

	if pool := s.daemon.thumbPool; pool != nil {
		if !pool.Submit(sourcePath) {
			s.log().Debug("thumbnail pool queue full", logging.String("source", sourcePath))
		}
	}
}

// serveClipVideo streams the archived clip with Range support so players can
// seek without downloading the whole file.
func (s *apiServer) serveClipVideo(w http.ResponseWriter, r *http.Request, clip *catalog.Clip) {
	path := importer.AbsolutePath(s.cfg, clip)
	file, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "archived file unavailable")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}

func decodeBody(r *http.Request, out any) error {
	if r.Body == nil {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}

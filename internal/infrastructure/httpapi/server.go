// Package httpapi exposes the task completion workflow over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/propsync/fieldtask/pkg/application"
	"github.com/propsync/fieldtask/pkg/domain/device"
	"github.com/propsync/fieldtask/pkg/domain/geo"
	"github.com/propsync/fieldtask/pkg/domain/stats"
	"github.com/propsync/fieldtask/pkg/domain/task"
)

// maxUploadBytes bounds one multipart completion request. Photos from field
// devices run a few MB each; three files plus form fields fit comfortably.
const maxUploadBytes = 32 << 20

// Server is the workflow HTTP server.
type Server struct {
	addr       string
	generation *application.GenerationService
	workflow   *application.WorkflowService
	stats      *application.StatsService
	logger     *slog.Logger
	server     *http.Server
}

// NewServer creates a workflow server. A nil logger falls back to
// slog.Default().
func NewServer(addr string, generation *application.GenerationService, workflow *application.WorkflowService, statsSvc *application.StatsService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:       addr,
		generation: generation,
		workflow:   workflow,
		stats:      statsSvc,
		logger:     logger,
	}
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /user-tasks/generate", s.handleGenerate)
	mux.HandleFunc("GET /user-tasks", s.handleList)
	mux.HandleFunc("POST /user-tasks/{id}/start", s.handleStart)
	mux.HandleFunc("POST /user-tasks/{id}/complete", s.handleComplete)
	mux.HandleFunc("GET /user-tasks/stats", s.handleStats)
	mux.HandleFunc("GET /user-tasks/stats/{date}", s.handleStatsDetail)
	mux.HandleFunc("POST /scans/check", s.handleScanCheck)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// Start starts the workflow server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("workflow server starting", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type generateRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

type generateResponse struct {
	Created   bool            `json:"created"`
	Instances []task.Instance `json:"instances"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		s.writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	day := time.Now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation(stats.DateFormat, req.Date, stats.ReportingZone)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	instances, created, err := s.generation.Generate(r.Context(), req.UserID, day)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		// The set already exists. The existing instances ride along so the
		// client can proceed straight to its list.
		status = http.StatusConflict
	}
	s.writeJSON(w, status, generateResponse{Created: created, Instances: instances})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	views, err := s.stats.List(r.Context(), userID, r.URL.Query().Get("date_from"), r.URL.Query().Get("date_to"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"user_tasks": views})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	inst, err := s.workflow.StartTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

type completeRequest struct {
	Notes     string   `json:"notes"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	instanceID := r.PathValue("id")

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		s.handleCompleteMultipart(w, r, instanceID)
		return
	}

	var req completeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	ctx := r.Context()
	if req.Latitude != nil && req.Longitude != nil {
		p, err := geo.NewPoint(*req.Latitude, *req.Longitude)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid coordinates")
			return
		}
		ctx = device.WithPosition(ctx, p)
	}

	inst, err := s.workflow.CompleteTask(ctx, instanceID, req.Notes)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleCompleteMultipart(w http.ResponseWriter, r *http.Request, instanceID string) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid multipart body")
		return
	}

	sub := application.EvidenceSubmission{
		Notes:    r.FormValue("notes"),
		ScanCode: r.FormValue("scan_code"),
	}

	var err error
	if sub.FileBefore, err = readFormFile(r, "file_before"); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "cannot read file_before")
		return
	}
	if sub.FileAfter, err = readFormFile(r, "file_after"); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "cannot read file_after")
		return
	}
	if sub.FileScan, err = readFormFile(r, "file_scan"); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "cannot read file_scan")
		return
	}

	ctx := r.Context()
	if latRaw, lonRaw := r.FormValue("latitude"), r.FormValue("longitude"); latRaw != "" && lonRaw != "" {
		lat, latErr := strconv.ParseFloat(latRaw, 64)
		lon, lonErr := strconv.ParseFloat(lonRaw, 64)
		if latErr != nil || lonErr != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid coordinates")
			return
		}
		p, err := geo.NewPoint(lat, lon)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid coordinates")
			return
		}
		ctx = device.WithPosition(ctx, p)
	}

	inst, err := s.workflow.CompleteTaskWithEvidence(ctx, instanceID, sub)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// readFormFile reads one optional multipart file field. A missing field is
// not an error; the evidence rules decide what is required.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, maxUploadBytes))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}

	summaries, err := s.stats.Daily(r.Context(), userID, r.URL.Query().Get("date_from"), r.URL.Query().Get("date_to"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"days": summaries})
}

func (s *Server) handleStatsDetail(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.writeError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	date := r.PathValue("date")
	if _, err := time.ParseInLocation(stats.DateFormat, date, stats.ReportingZone); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	detail, err := s.stats.DayDetail(r.Context(), userID, date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

type scanCheckRequest struct {
	Code      string   `json:"code"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

func (s *Server) handleScanCheck(w http.ResponseWriter, r *http.Request) {
	var req scanCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Code == "" {
		s.writeError(w, r, http.StatusBadRequest, "code is required")
		return
	}

	ctx := r.Context()
	if req.Latitude != nil && req.Longitude != nil {
		p, err := geo.NewPoint(*req.Latitude, *req.Longitude)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "invalid coordinates")
			return
		}
		ctx = device.WithPosition(ctx, p)
	}

	check, err := s.workflow.CheckScan(ctx, req.Code)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, check)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

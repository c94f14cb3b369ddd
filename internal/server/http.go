// Package server is the thin HTTP layer over the service facade. It owns
// routing, CORS and JSON envelopes only; all behavior lives behind the
// service API.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/merbantech/ocr-indexer/internal/config"
	"github.com/merbantech/ocr-indexer/internal/export"
	"github.com/merbantech/ocr-indexer/internal/service"
)

const maxUploadBytes = 64 << 20

type routeInfo struct {
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
}

type Server struct {
	cfg      config.Config
	svc      *service.Service
	exporter *export.Service
	logger   *zap.Logger
	mux      *http.ServeMux
	routes   []routeInfo
}

func New(cfg config.Config, svc *service.Service, exporter *export.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		exporter: exporter,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.route("POST", "/api/files/upload", s.handleUpload)
	s.route("GET", "/api/files/list", s.handleList)
	s.route("GET", "/api/files/{filename}", s.handleDownload)
	s.route("GET", "/api/files/{filename}/metadata", s.handleMetadata)
	s.route("GET", "/api/export/xlsx", s.handleExport)
	s.route("GET", "/status/{filename}", s.handleStatus)
	s.route("GET", "/results/{filename}", s.handleResult)
	s.route("GET", "/search", s.handleSearch)
	s.route("GET", "/stats", s.handleStats)
	s.route("GET", "/health", s.handleHealth)
	s.route("GET", "/_routes", s.handleRoutes)
	s.route("GET", "/{$}", s.handleRoot)
	return s
}

func (s *Server) route(method, path string, h http.HandlerFunc) {
	s.mux.HandleFunc(method+" "+path, h)
	s.routes = append(s.routes, routeInfo{Path: path, Methods: []string{method}})
}

// Handler wraps the mux with CORS and access logging.
func (s *Server) Handler() http.Handler {
	return s.withCORS(s.withAccessLog(s.mux))
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	allowAll := len(s.cfg.AllowOrigins) == 0
	allowed := make(map[string]struct{}, len(s.cfg.AllowOrigins))
	for _, o := range s.cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, status.Error(codes.InvalidArgument, "multipart form required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, status.Error(codes.InvalidArgument, "file field is required"))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, status.Errorf(codes.InvalidArgument, "read upload: %v", err))
		return
	}

	rec, err := s.svc.Upload(r.Context(), header.Filename, content)
	if err != nil {
		writeError(w, err)
		return
	}
	if rec.Status.Terminal() {
		writeJSON(w, http.StatusOK, map[string]any{"status": "completed", "job": rec})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "filename": rec.OriginalFilename})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.PathValue("filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filename": r.PathValue("filename"), "status": st})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Result(r.PathValue("filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.List(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	hits := s.svc.Search(r.URL.Query().Get("q"))
	if hits == nil {
		hits = []string{}
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Metadata(r.PathValue("filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename":   rec.OriginalFilename,
		"normalized": rec.NormalizedFilename,
		"status":     rec.Status,
		"size":       rec.SizeBytes,
		"modified":   rec.ModifiedAt,
		"path":       rec.StoredPath,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Download(r.PathValue("filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+rec.NormalizedFilename+`.pdf"`)
	http.ServeFile(w, r, rec.StoredPath)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.exporter.ExportIndexXLSX(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"mode":   s.svc.Mode(),
		"jobs":   s.svc.Stats()["total"],
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes := make([]routeInfo, len(s.routes))
	copy(routes, s.routes)
	sort.Slice(routes, func(a, b int) bool { return routes[a].Path < routes[b].Path })
	writeJSON(w, http.StatusOK, map[string]any{"count": len(routes), "routes": routes})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"service": "ocr-indexer", "mode": s.svc.Mode()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service status codes onto HTTP codes the way the
// transport contract expects: bad input 400, unknown filename 404, queries
// before a terminal state 409.
func writeError(w http.ResponseWriter, err error) {
	st, _ := status.FromError(err)
	httpCode := http.StatusInternalServerError
	switch st.Code() {
	case codes.InvalidArgument:
		httpCode = http.StatusBadRequest
	case codes.NotFound:
		httpCode = http.StatusNotFound
	case codes.FailedPrecondition:
		httpCode = http.StatusConflict
	}
	writeJSON(w, httpCode, map[string]string{"detail": st.Message()})
}

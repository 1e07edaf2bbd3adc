package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/yurifrl/nem12sql/pkg/config"
	"github.com/yurifrl/nem12sql/pkg/nem12"
	"github.com/yurifrl/nem12sql/pkg/service"
)

// Server handles HTTP requests for NEM12 file conversion.
type Server struct {
	config    *config.Config
	logger    *log.Logger
	mux       *http.ServeMux
	routeOnce sync.Once
	parser    *nem12.Parser
	processor *service.Processor
}

// New creates a new HTTP server.
func New(cfg *config.Config, logger *log.Logger) *Server {
	return &Server{
		config:    cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		parser:    nem12.New(logger),
		processor: service.NewProcessor(cfg, logger, nil),
	}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	s.setupRoutes()
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) setupRoutes() {
	s.routeOnce.Do(func() {
		s.mux.HandleFunc("/healthz", s.withLogging(s.handleHealth))
		s.mux.HandleFunc("/api/convert", s.withLogging(s.handleConvert))
	})
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	s.setupRoutes()
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConvert accepts a NEM12 file (multipart field "file", or the raw
// request body) and streams the generated SQL back.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, r, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	name, data, err := s.readUpload(r)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "failed to read upload", err)
		return
	}
	if len(data) == 0 {
		s.respondError(w, r, http.StatusBadRequest, "empty upload", nil)
		return
	}

	batchSize := s.config.BatchSize
	if v := r.URL.Query().Get("batch_size"); v != "" {
		batchSize, err = strconv.Atoi(v)
		if err != nil || batchSize < 1 {
			s.respondError(w, r, http.StatusBadRequest, "invalid batch_size", err)
			return
		}
	}

	readings := s.parser.Parse(bytes.NewReader(data))
	if nem12.DetectFileType(name) == nem12.TypeXLS {
		readings = s.parser.ParseXLS(data)
	}

	w.Header().Set("Content-Type", "application/sql")
	total, err := s.processor.Process(readings, w, name, batchSize)
	if err != nil {
		// Headers are gone by now; surface the failure in-band as a SQL
		// comment and in the logs.
		s.logger.Error("conversion failed", "file", name, "readings", total, "error", err)
		fmt.Fprintf(w, "-- ERROR: %v\n", err)
		return
	}
	s.logger.Info("converted file", "file", name, "readings", total)
}

// readUpload pulls the NEM12 payload out of the request, preferring a
// multipart "file" field and falling back to the raw body.
func (s *Server) readUpload(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return "", nil, err
		}
		return header.Filename, data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, err
	}
	return "upload.csv", data, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// respondError logs the error and returns a minimal JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("request error", "status", status, "msg", message, "err", err, "method", r.Method, "path", r.URL.Path)
	} else {
		s.logger.Warn("request error", "status", status, "msg", message, "method", r.Method, "path", r.URL.Path)
	}
	_ = s.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// withLogging wraps a handler to log request start/end and recover panics.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
				s.respondError(w, r, http.StatusInternalServerError, "internal server error", fmt.Errorf("panic: %v", rec))
			}
		}()
		next(w, r)
	}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"teeout/internal/core/domain"
	"teeout/internal/core/ports"
	"teeout/internal/core/services/output"
)

type HTTPServer struct {
	logger      ports.Logger
	service     *output.Service
	server      *http.Server
	broadcaster *LogBroadcaster
	baseDir     string
}

// errOutsideBase rejects retarget paths that escape the output directory.
var errOutsideBase = errors.New("path is outside the output directory")

type retargetRequest struct {
	Path string `json:"path"`
}

// NewHTTPServer creates the control server listening on host:port. Files
// retargeted through it must resolve under baseDir; relative paths are
// taken from baseDir.
func NewHTTPServer(logger ports.Logger, service *output.Service, broadcaster *LogBroadcaster, host string, port int, baseDir string) *HTTPServer {
	h := &HTTPServer{
		logger:      logger,
		service:     service,
		broadcaster: broadcaster,
		baseDir:     baseDir,
	}

	h.server = &http.Server{
		Addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		Handler: h.Handler(),
	}

	return h
}

// Handler returns the routes served by the control server.
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /streams", h.handleListStreams)
	mux.HandleFunc("PUT /streams/{name}/file", h.handleSetFile)
	mux.HandleFunc("POST /streams/{name}/flush", h.handleFlush)

	mux.HandleFunc("/logs", h.broadcaster.HandleWebsocket)

	return mux
}

func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server", "address", h.server.Addr)
	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		h.logger.Error("HTTP server failed", "error", err)
		return err
	}
	return nil
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) handleListStreams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.Status())
}

func (h *HTTPServer) handleSetFile(w http.ResponseWriter, r *http.Request) {
	name := domain.StreamName(r.PathValue("name"))
	var req retargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	path, err := h.resolvePath(req.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.SetFile(r.Context(), name, path); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Stream retargeted"))
}

func (h *HTTPServer) handleFlush(w http.ResponseWriter, r *http.Request) {
	name := domain.StreamName(r.PathValue("name"))
	if err := h.service.Flush(r.Context(), name); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Write([]byte("Stream flushed"))
}

func statusFor(err error) int {
	if errors.Is(err, output.ErrUnknownStream) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// resolvePath anchors p in the output directory and rejects anything that
// leaves it.
func (h *HTTPServer) resolvePath(p string) (string, error) {
	base, err := filepath.Abs(h.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory: %w", err)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(base, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errOutsideBase, p)
	}
	return p, nil
}

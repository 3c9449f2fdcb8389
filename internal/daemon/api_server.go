package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"bootforge/internal/api"
	"bootforge/internal/builder"
	"bootforge/internal/config"
	"bootforge/internal/logging"
	"bootforge/internal/preview"
	"bootforge/internal/services"
)

const defaultHistoryLimit = 50

type apiServer struct {
	bind   string
	logger *slog.Logger
	portal *api.Portal

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, portal *api.Portal, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind is not set")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		portal: portal,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	route := func(pattern string, handler http.HandlerFunc) {
		mux.HandleFunc(pattern, authMiddleware(token, srv.withRequestID(handler)))
	}
	route("/api/status", srv.handleStatus)
	route("/api/list", srv.handleList)
	route("/api/versions", srv.handleVersions)
	route("/api/load", srv.handleLoad)
	route("/api/pretty", srv.handlePretty)
	route("/api/save", srv.handleSave)
	route("/api/build", srv.handleBuild)
	route("/api/preview/fetch", srv.handlePreviewFetch)
	route("/api/preview/read", srv.handlePreviewRead)
	route("/api/history", srv.handleHistory)
	route("/manifest", srv.handleManifest)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
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
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withRequestID assigns a correlation identifier to every request, echoes
// it back in the X-Request-ID header, and carries it through the context
// so downstream components can tag their log lines with it.
func (s *apiServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(services.WithRequestID(r.Context(), id))
		s.log().Debug("api request", logging.Args(
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldRequestID, id),
		)...)
		next(w, r)
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Running:      true,
		PID:          os.Getpid(),
		ManifestPath: s.portal.ManifestPath(),
		Versions:     s.portal.StatusVersions(),
	})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	files, err := s.portal.ListFiles()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileListResponse{Files: files})
}

func (s *apiServer) handleVersions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	delta, err := s.portal.Versions()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, delta)
}

func (s *apiServer) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := r.URL.Query().Get("name")
	text, err := s.portal.LoadFile(name)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EntryResponse{Name: name, Text: text})
}

type prettyRequest struct {
	Text string `json:"text"`
}

func (s *apiServer) handlePretty(w http.ResponseWriter, r *http.Request) {
	var req prettyRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	text, err := s.portal.Pretty(req.Text)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prettyRequest{Text: text})
}

type saveRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (s *apiServer) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.portal.SaveFile(req.Name, req.Text); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// buildRequest uses pointer flags so an absent field is distinguishable
// from an explicit false: callers that say nothing get both bumps.
type buildRequest struct {
	Passphrase string `json:"passphrase"`
	Token      string `json:"token"`
	BumpApp    *bool  `json:"bumpApp"`
	BumpModel  *bool  `json:"bumpModel"`
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func (s *apiServer) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	resp, err := s.portal.Build(r.Context(), builder.Request{
		Passphrase: req.Passphrase,
		Token:      req.Token,
		BumpApp:    boolOrDefault(req.BumpApp, true),
		BumpModel:  boolOrDefault(req.BumpModel, true),
	})
	if err != nil {
		s.writeOperationFailure(w, err, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type fetchRequest struct {
	URL        string `json:"url"`
	Passphrase string `json:"passphrase"`
	Force      bool   `json:"force"`
}

func (s *apiServer) handlePreviewFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	resp, err := s.portal.PreviewFetch(r.Context(), preview.FetchRequest{
		URL:          req.URL,
		Passphrase:   req.Passphrase,
		ForceRefresh: req.Force,
	})
	if err != nil {
		s.writeOperationFailure(w, err, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePreviewRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := r.URL.Query().Get("name")
	text, err := s.portal.PreviewRead(name)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EntryResponse{Name: name, Text: text})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	runs, err := s.portal.History(r.Context(), limit)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Runs: runs})
}

func (s *apiServer) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	data, name, err := s.portal.ManifestRaw()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
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

// writeFailure maps a service error to its HTTP status.
func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	s.writeError(w, services.HTTPStatus(err), err.Error())
}

// writeOperationFailure carries the partial result alongside the error so
// callers can inspect captured tool output from a failed build or fetch.
func (s *apiServer) writeOperationFailure(w http.ResponseWriter, err error, result any) {
	s.writeJSON(w, services.HTTPStatus(err), map[string]any{
		"error":  err.Error(),
		"result": result,
	})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}

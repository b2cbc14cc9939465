package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/conflict"
	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/internal/registry"
)

// Request headers that identify the caller on audit entries.
const (
	HeaderActor     = "X-Actor"
	HeaderSessionID = "X-Session-ID"
)

const maxBodyBytes = 1 << 20 // 1 MB

// Server is a thin HTTP adapter over the registry, conflict detector and
// audit engine.
type Server struct {
	registry  *registry.Registry
	detector  *conflict.Detector // nil disables /v1/conflicts
	audit     *audit.Engine      // nil disables /v1/audit
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies.
func NewServer(reg *registry.Registry, det *conflict.Detector, auditEngine *audit.Engine, logger *slog.Logger, authToken string) *Server {
	return &Server{
		registry:  reg,
		detector:  det,
		audit:     auditEngine,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics; no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/anchors", s.auth(s.handleRegisterAnchor))
	mux.HandleFunc("GET /v1/anchors", s.auth(s.handleListAnchors))
	mux.HandleFunc("GET /v1/anchors/{id}", s.auth(s.handleGetAnchor))
	mux.HandleFunc("PUT /v1/anchors/{id}", s.auth(s.handleUpsertAnchor))

	mux.HandleFunc("POST /v1/aliases", s.auth(s.handleAddAlias))
	mux.HandleFunc("GET /v1/aliases", s.auth(s.handleListAliases))
	mux.HandleFunc("GET /v1/aliases/{context}/{name}", s.auth(s.handleGetAlias))
	mux.HandleFunc("GET /v1/aliases/{context}/{name}/resolve", s.auth(s.handleResolveAlias))
	mux.HandleFunc("POST /v1/aliases/{context}/{name}/approve", s.auth(s.handleApproveAlias))
	mux.HandleFunc("POST /v1/aliases/{context}/{name}/deprecate", s.auth(s.handleDeprecateAlias))
	mux.HandleFunc("DELETE /v1/aliases/{context}/{name}", s.auth(s.handleRemoveAlias))
	mux.HandleFunc("GET /v1/stats", s.auth(s.handleStats))

	mux.HandleFunc("GET /v1/conflicts", s.auth(s.handleListConflicts))
	mux.HandleFunc("POST /v1/conflicts/scan", s.auth(s.handleScanConflicts))
	mux.HandleFunc("POST /v1/conflicts/{id}/resolve", s.auth(s.handleResolveConflict))

	mux.HandleFunc("GET /v1/audit", s.auth(s.handleQueryAudit))
	mux.HandleFunc("GET /v1/audit/stats", s.auth(s.handleAuditStats))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is
// set, and attaches the caller identity to the request context.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
				s.writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r.WithContext(registry.WithCaller(r.Context(), callerFrom(r))))
	}
}

func callerFrom(r *http.Request) registry.Caller {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return registry.Caller{
		Actor:     r.Header.Get(HeaderActor),
		IPAddress: ip,
		UserAgent: r.UserAgent(),
		SessionID: r.Header.Get(HeaderSessionID),
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// anchorRequest is the body accepted by POST /v1/anchors.
type anchorRequest struct {
	ID string `json:"id"`
	models.AnchorAttributes
}

func (s *Server) handleRegisterAnchor(w http.ResponseWriter, r *http.Request) {
	var req anchorRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.registry.RegisterAnchor(r.Context(), req.ID, req.AnchorAttributes)
	if err != nil {
		s.writeRegistryError(w, err, "failed to register anchor")
		return
	}
	s.writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpsertAnchor(w http.ResponseWriter, r *http.Request) {
	var attrs models.AnchorAttributes
	if !s.decode(w, r, &attrs) {
		return
	}
	a, created, err := s.registry.UpsertAnchor(r.Context(), r.PathValue("id"), attrs)
	if err != nil {
		s.writeRegistryError(w, err, "failed to update anchor")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, a)
}

func (s *Server) handleGetAnchor(w http.ResponseWriter, r *http.Request) {
	a, err := s.registry.GetAnchor(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeRegistryError(w, err, "failed to get anchor")
		return
	}
	if a == nil {
		s.writeError(w, http.StatusNotFound, "anchor not found")
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListAnchors(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"anchors": s.registry.ListAnchors()})
}

func (s *Server) handleAddAlias(w http.ResponseWriter, r *http.Request) {
	var req registry.AddAliasRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = r.Header.Get(HeaderActor)
	}
	a, err := s.registry.AddAlias(r.Context(), req)
	if err != nil {
		s.writeRegistryError(w, err, "failed to add alias")
		return
	}
	s.writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAliases(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"aliases": s.registry.ListAliases(r.URL.Query().Get("context"))})
}

func (s *Server) handleGetAlias(w http.ResponseWriter, r *http.Request) {
	a, err := s.registry.GetAlias(r.PathValue("name"), r.PathValue("context"))
	if err != nil {
		s.writeRegistryError(w, err, "failed to get alias")
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

// resolveResponse is returned by GET /v1/aliases/{context}/{name}/resolve.
type resolveResponse struct {
	Name      string `json:"name"`
	Context   string `json:"context"`
	Canonical string `json:"canonical"`
}

func (s *Server) handleResolveAlias(w http.ResponseWriter, r *http.Request) {
	name, aliasContext := r.PathValue("name"), r.PathValue("context")
	canonical, err := s.registry.ResolveAlias(r.Context(), name, aliasContext)
	if err != nil {
		s.writeRegistryError(w, err, "failed to resolve alias")
		return
	}
	s.writeJSON(w, http.StatusOK, resolveResponse{Name: name, Context: aliasContext, Canonical: canonical})
}

type approveRequest struct {
	Approver string `json:"approver"`
}

func (s *Server) handleApproveAlias(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Approver == "" {
		req.Approver = r.Header.Get(HeaderActor)
	}
	a, err := s.registry.ApproveAlias(r.Context(), r.PathValue("name"), r.PathValue("context"), req.Approver)
	if err != nil {
		s.writeRegistryError(w, err, "failed to approve alias")
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

type deprecateRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleDeprecateAlias(w http.ResponseWriter, r *http.Request) {
	var req deprecateRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.registry.DeprecateAlias(r.Context(), r.PathValue("name"), r.PathValue("context"), req.Reason, r.Header.Get(HeaderActor))
	if err != nil {
		s.writeRegistryError(w, err, "failed to deprecate alias")
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleRemoveAlias(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RemoveAlias(r.Context(), r.PathValue("name"), r.PathValue("context"), r.Header.Get(HeaderActor)); err != nil {
		s.writeRegistryError(w, err, "failed to remove alias")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Stats())
}

func (s *Server) handleListConflicts(w http.ResponseWriter, _ *http.Request) {
	if s.detector == nil {
		s.writeError(w, http.StatusNotImplemented, "conflict detection disabled")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conflicts": s.detector.Conflicts()})
}

func (s *Server) handleScanConflicts(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil {
		s.writeError(w, http.StatusNotImplemented, "conflict detection disabled")
		return
	}
	found, err := s.detector.Scan(r.Context())
	if err != nil {
		s.logger.Error("conflict scan failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to scan conflicts")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conflicts": found})
}

type resolveConflictRequest struct {
	Strategy   models.ResolutionStrategy `json:"strategy"`
	ApprovedBy string                    `json:"approved_by"`
}

func (s *Server) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	if s.detector == nil {
		s.writeError(w, http.StatusNotImplemented, "conflict detection disabled")
		return
	}
	var req resolveConflictRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ApprovedBy == "" {
		req.ApprovedBy = r.Header.Get(HeaderActor)
	}
	res, err := s.detector.ResolveConflict(r.Context(), r.PathValue("id"), req.Strategy, req.ApprovedBy)
	if err != nil && res == nil {
		s.writeRegistryError(w, err, "failed to resolve conflict")
		return
	}
	// A failed strategy still produces a recorded resolution.
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.writeError(w, http.StatusNotImplemented, "audit store disabled")
		return
	}
	f, err := audit.FilterFromValues(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.audit.QueryAuditLogs(r.Context(), f)
	if err != nil {
		s.logger.Error("audit query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to query audit logs")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.writeError(w, http.StatusNotImplemented, "audit store disabled")
		return
	}
	q := r.URL.Query()
	f, err := audit.FilterFromValues(q)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	topN := audit.DefaultTopN
	if v := q.Get("top"); v != "" {
		if topN, err = strconv.Atoi(v); err != nil || topN <= 0 {
			s.writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
	}
	stats, err := s.audit.GetAuditStatistics(r.Context(), f, topN)
	if err != nil {
		s.logger.Error("audit statistics failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute audit statistics")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// --- helpers ---

// StatusFor maps registry and conflict errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrAliasNotFound), errors.Is(err, conflict.ErrConflictNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrConflict), errors.Is(err, conflict.ErrAlreadyResolved),
		errors.Is(err, conflict.ErrResolutionInProgress):
		return http.StatusConflict
	case errors.Is(err, registry.ErrValidation), errors.Is(err, conflict.ErrInvalidStrategy),
		errors.Is(err, conflict.ErrStrategyNotApplicable):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrExpiredAlias):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeRegistryError(w http.ResponseWriter, err error, fallback string) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(fallback, "error", err)
		s.writeError(w, status, fallback)
		return
	}
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		s.writeJSON(w, status, map[string]string{"error": err.Error(), "rule": verr.Rule})
		return
	}
	s.writeError(w, status, err.Error())
}

// decode reads a JSON body into v, writing a 400 on failure. An empty body
// leaves v unchanged.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

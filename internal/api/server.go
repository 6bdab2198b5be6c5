package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"shopkeep/internal/auth"
	"shopkeep/internal/config"
	"shopkeep/internal/game"
	"shopkeep/internal/save"
)

type contextKey string

const userContextKey contextKey = "user"

type Server struct {
	cfg      config.Config
	log      *slog.Logger
	coord    *save.Coordinator
	accounts save.Accounts
	linuxdo  *auth.LinuxDoClient
	tokens   *auth.Tokens
	states   *auth.StateStore
	mux      *chi.Mux
}

func New(cfg config.Config, logger *slog.Logger, coord *save.Coordinator, accounts save.Accounts, linuxdo *auth.LinuxDoClient, tokens *auth.Tokens) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		coord:    coord,
		accounts: accounts,
		linuxdo:  linuxdo,
		tokens:   tokens,
		states:   auth.NewStateStore(),
	}
	s.mux = chi.NewRouter()
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.cfg.FrontendURL},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Get("/auth/linuxdo/login", s.handleLogin)
	r.Get("/auth/linuxdo/callback", s.handleCallback)
	if s.cfg.DemoLogin {
		r.Post("/auth/demo", s.handleDemoLogin)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/save", s.handleGetSave)
		r.Post("/ops", s.handlePostOp)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userContextKey).(string)
	return userID, ok && userID != ""
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := s.states.Issue()
	if err != nil {
		s.log.Error("issue oauth state", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	http.Redirect(w, r, s.linuxdo.AuthorizeURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	state := strings.TrimSpace(q.Get("state"))
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !s.states.Consume(state) {
		writeError(w, http.StatusUnauthorized, "invalid_state")
		return
	}

	ctx := r.Context()
	accessToken, err := s.linuxdo.ExchangeCode(ctx, code)
	if err != nil {
		s.log.Error("oauth code exchange failed", "err", err)
		writeError(w, http.StatusInternalServerError, "oauth_failed")
		return
	}
	profile, err := s.linuxdo.FetchUser(ctx, accessToken)
	if err != nil {
		s.log.Error("oauth userinfo failed", "err", err)
		writeError(w, http.StatusInternalServerError, "oauth_failed")
		return
	}

	userID, err := s.accounts.UpsertIdentity(ctx, save.Identity{
		LinuxDoID:      profile.ID.String(),
		Username:       profile.Username,
		Name:           profile.Name,
		AvatarTemplate: profile.AvatarTemplate,
		TrustLevel:     profile.TrustLevel,
		Active:         profile.Active,
		Silenced:       profile.Silenced,
	})
	if err != nil {
		s.log.Error("identity upsert failed", "err", err)
		writeError(w, http.StatusInternalServerError, "oauth_failed")
		return
	}
	if err := s.accounts.EnsureSave(ctx, userID, game.DefaultState(time.Now())); err != nil {
		s.log.Error("ensure save failed", "err", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "oauth_failed")
		return
	}

	token, err := s.tokens.Issue(userID)
	if err != nil {
		s.log.Error("token issue failed", "err", err)
		writeError(w, http.StatusInternalServerError, "oauth_failed")
		return
	}

	redirect, err := url.Parse(s.cfg.FrontendURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	redirect.Path = "/auth/callback"
	redirect.RawQuery = url.Values{"token": {token}}.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

func (s *Server) handleDemoLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.accounts.EnsureSave(ctx, save.DemoUserID, game.DefaultState(time.Now())); err != nil {
		s.log.Error("ensure demo save failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	token, err := s.tokens.Issue(save.DemoUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (s *Server) handleGetSave(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := s.coord.GetSave(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var lastSeenAt any
	if !result.LastSeenAt.IsZero() {
		lastSeenAt = result.LastSeenAt.UTC().Format(time.RFC3339Nano)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":      result.State,
		"version":    result.Version,
		"serverTime": result.ServerTime.UTC().Format(time.RFC3339Nano),
		"lastSeenAt": lastSeenAt,
	})
}

func (s *Server) handlePostOp(w http.ResponseWriter, r *http.Request) {
	userID, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in struct {
		OpID        string          `json:"opId"`
		BaseVersion *int64          `json:"baseVersion"`
		Type        string          `json:"type"`
		Payload     json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(in.OpID) == "" || in.BaseVersion == nil || *in.BaseVersion < 0 || strings.TrimSpace(in.Type) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	result, err := s.coord.ApplyOp(r.Context(), userID, save.OpRequest{
		OpID:        in.OpID,
		BaseVersion: *in.BaseVersion,
		Type:        game.OpType(in.Type),
		Payload:     in.Payload,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   result.State,
		"version": result.Version,
	})
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var conflict *save.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":         "version_conflict",
			"serverVersion": conflict.ServerVersion,
		})
	case errors.Is(err, game.ErrInvalidSKU),
		errors.Is(err, game.ErrInvalidQty),
		errors.Is(err, game.ErrInsufficientCash),
		errors.Is(err, game.ErrUnknownOpType),
		errors.Is(err, game.ErrInvalidPayload),
		errors.Is(err, save.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, save.ErrNotFound):
		writeError(w, http.StatusNotFound, "save_not_found")
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

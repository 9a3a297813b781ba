package httpapi

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jemuran-service/internal/engine"
	"jemuran-service/internal/middleware"
	"jemuran-service/internal/store"
)

type Server struct {
	repo   *store.Repo
	engine *engine.Engine
	pubKey *rsa.PublicKey
}

func New(repo *store.Repo, eng *engine.Engine, pubKey *rsa.PublicKey) *Server {
	return &Server{repo: repo, engine: eng, pubKey: pubKey}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Device submissions authenticate with the owner's device key, not a JWT;
	// the clothesline hardware has no login flow.
	r.Post("/api/jemuran/insert", s.handleInsert)

	r.Route("/api/jemuran", func(r chi.Router) {
		if s.pubKey == nil {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusInternalServerError, "jwt public key not configured")
				})
			})
			return
		}
		r.Use(middleware.JWTAuthMiddlewareRS256(s.pubKey))
		r.Use(middleware.RoleAtLeastMiddleware("user"))

		r.Get("/data", s.handleData)
		r.Get("/status", s.handleStatus)
		r.Get("/control", s.handleControl)
		// Browsers cannot set headers on a WebSocket dial; the token middleware
		// falls back to the auth_token cookie for this route.
		r.Get("/live/{user_id}", s.handleLiveWS)
		r.Post("/set_mode", s.handleSetMode)
		r.Post("/manual_control", s.handleManualControl)
		r.With(middleware.RoleAtLeastMiddleware("admin")).Post("/model/reload", s.handleModelReload)
	})

	return r
}

type insertPayload struct {
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
	RainValue    *int     `json:"rain_value"`
	LdrValue     *int     `json:"ldr_value"`
	StatusSystem *int     `json:"status_system"`
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	user, err := s.repo.UserByDeviceKey(r.Context(), strings.TrimSpace(r.Header.Get("X-Device-Key")))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown device key")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	var p insertPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if p.Temperature == nil || p.Humidity == nil || p.RainValue == nil || p.LdrValue == nil {
		writeError(w, http.StatusBadRequest, "parameter tidak lengkap")
		return
	}

	rec, err := s.engine.SubmitReading(r.Context(), user.ID, engine.Reading{
		Temperature:    *p.Temperature,
		Humidity:       *p.Humidity,
		RainValue:      *p.RainValue,
		LdrValue:       *p.LdrValue,
		ReportedSystem: p.StatusSystem,
	})
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid sensor values")
			return
		}
		slog.Error("submit reading failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.subject(w, r)
	if !ok {
		return
	}
	limit := 100
	if ls := strings.TrimSpace(r.URL.Query().Get("limit")); ls != "" {
		if n, err := parsePositiveInt(ls); err == nil {
			limit = n
		}
	}
	rows, err := s.engine.QueryHistory(r.Context(), userID, limit)
	if err != nil {
		slog.Error("history query failed", "user_id", userID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	var latest *store.JemuranRecord
	if len(rows) > 0 {
		latest = &rows[0]
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "latest": latest})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.subject(w, r)
	if !ok {
		return
	}
	p, err := s.engine.QueryStatus(r.Context(), userID)
	if err != nil {
		slog.Error("status query failed", "user_id", userID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.subject(w, r)
	if !ok {
		return
	}
	cs, err := s.engine.ControlState(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.subject(w, r)
	if !ok {
		return
	}
	var p struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cs, err := s.engine.SetMode(r.Context(), userID, p.Mode)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "mode tidak valid")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleManualControl(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.subject(w, r)
	if !ok {
		return
	}
	var p struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	cs, err := s.engine.SetManualCommand(r.Context(), userID, p.Command)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "command tidak valid")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleModelReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ReloadModel(); err != nil {
		writeError(w, http.StatusConflict, "model reload failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true})
}

func (s *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	// A token only opens its own subject's feed.
	claims := middleware.GetClaims(r)
	if claims == nil || strings.TrimSpace(claims.Subject) != userID.String() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := s.engine.Hub().Subscribe(userID)
	defer cancel()

	// Read pump just to detect disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Time{})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(2*time.Second)); err != nil {
				return
			}
		case evt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				slog.Debug("ws write failed", "error", err)
				return
			}
		}
	}
}

// subject resolves the authenticated user from JWT claims.
func (s *Server) subject(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimSpace(claims.Subject))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid subject")
		return uuid.Nil, false
	}
	return id, true
}

func parsePositiveInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(r-'0')
		if n > 1_000_000 {
			return 0, errors.New("too large")
		}
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "code": status})
}

package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mentalmath/arena/internal/auth"
	"github.com/mentalmath/arena/internal/auth/jwt"
	"github.com/mentalmath/arena/internal/config"
	"github.com/mentalmath/arena/internal/db/repository"
	"github.com/mentalmath/arena/internal/leaderboard"
	"github.com/mentalmath/arena/internal/match"
	"github.com/mentalmath/arena/internal/presence"
	"github.com/mentalmath/arena/internal/solo"
	httperrors "github.com/mentalmath/arena/pkg/http/errors"
	ws "github.com/mentalmath/arena/pkg/http/ws"
)

// WSUpgrader handles WebSocket upgrades (configure CORS/security as needed).
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: implement proper origin checking for production
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handlers groups the per-domain HTTP surfaces the server mounts.
type Handlers struct {
	Match       *match.HTTPHandlers
	Solo        *solo.HTTPHandlers
	Leaderboard *leaderboard.HTTPHandler
	Profiles    *repository.ProfileRepository
	Presence    *presence.Service
	Hub         *ws.Hub
	Tokens      *jwt.Manager
}

// NewHTTPServer wires all routes for the API service.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redisClient *redis.Client, h Handlers) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redisClient); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	// Matchmaking and match lifecycle
	mux.HandleFunc("POST /v1/matches/search", h.Match.Search)
	mux.HandleFunc("POST /v1/matches/cancel", h.Match.Cancel)
	mux.HandleFunc("GET /v1/matches/current", h.Match.Current)
	mux.HandleFunc("POST /v1/matches/{id}/questions/{questionID}/answer", h.Match.SubmitAnswer)
	mux.HandleFunc("POST /v1/matches/{id}/finish", h.Match.Finish)

	// Solo timed tests
	mux.HandleFunc("GET /v1/tests/new", h.Solo.Start)
	mux.HandleFunc("POST /v1/tests", h.Solo.Submit)

	mux.HandleFunc("GET /v1/leaderboards/{board}/{window}", h.Leaderboard.HandleGet)

	mux.HandleFunc("GET /v1/profile", profileHandler(h.Profiles, logger))
	mux.HandleFunc("POST /v1/presence/heartbeat", heartbeatHandler(h.Presence, logger))

	mux.HandleFunc("GET /ws", wsHandler(h.Hub, logger))

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: auth.Middleware(h.Tokens, logger)(mux),
	}
}

// profileHandler bootstraps the user row on first contact and returns the
// rating profile.
func profileHandler(profiles *repository.ProfileRepository, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFrom(r.Context())
		if !ok {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
			return
		}

		if err := profiles.Ensure(r.Context(), claims.UserID, claims.DisplayName); err != nil {
			logger.Error().Err(err).Msg("profile bootstrap failed")
			httperrors.RespondInternalError(w, "Internal error")
			return
		}

		profile, err := profiles.Get(r.Context(), claims.UserID)
		if err != nil {
			logger.Error().Err(err).Msg("profile load failed")
			httperrors.RespondInternalError(w, "Internal error")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"user_id":           profile.UserID.String(),
			"display_name":      profile.DisplayName,
			"rating":            profile.Rating,
			"match_rating":      profile.MatchRating,
			"best_rating":       profile.BestRating,
			"best_match_rating": profile.BestMatchRating,
			"current_streak":    profile.CurrentStreak,
			"tier":              string(profile.Tier),
			"match_tier":        string(profile.MatchTier),
		})
	}
}

func heartbeatHandler(svc *presence.Service, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.CurrentUserID(r.Context())
		if !ok {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
			return
		}
		if err := svc.Heartbeat(r.Context(), userID); err != nil {
			logger.Warn().Err(err).Msg("heartbeat failed")
			httperrors.RespondInternalError(w, "Internal error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// wsHandler upgrades an authenticated request and keeps the connection
// registered for lifecycle pushes until the client disconnects.
func wsHandler(hub *ws.Hub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.CurrentUserID(r.Context())
		if !ok {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthenticated, "Authentication required")
			return
		}

		conn, err := WSUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		c := ws.NewConnection(conn, logger)
		hub.Register(userID, c)
		go c.WritePump()
		c.ReadPump()
		hub.Unregister(userID, c)
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redisClient *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	return redisClient.Ping(ctx).Err()
}

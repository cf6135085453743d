package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relaykit/relay/internal/auth"
	"github.com/relaykit/relay/internal/metrics"
	"github.com/relaykit/relay/internal/relay"
)

// WSHandler upgrades HTTP requests to WebSocket connections and admits
// them into the relay after authenticating the presented session token.
type WSHandler struct {
	ctrl      *relay.Controller
	tokens    *auth.TokenManager
	logger    zerolog.Logger
	clientCfg relay.ClientConfig
	upgrader  websocket.Upgrader

	allowedOrigins map[string]struct{}
	allowAll       bool
}

// NewWSHandler creates the WebSocket endpoint handler. An empty origins
// list allows all origins.
func NewWSHandler(ctrl *relay.Controller, tokens *auth.TokenManager, logger zerolog.Logger, clientCfg relay.ClientConfig, origins []string) *WSHandler {
	h := &WSHandler{
		ctrl:           ctrl,
		tokens:         tokens,
		logger:         logger.With().Str("component", "ws").Logger(),
		clientCfg:      clientCfg,
		allowedOrigins: make(map[string]struct{}),
		allowAll:       len(origins) == 0,
	}

	for _, origin := range origins {
		if origin == "*" {
			h.allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(origin); ok {
			h.allowedOrigins[normalized] = struct{}{}
		} else {
			h.logger.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
		}
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Serve handles a WebSocket upgrade request. The bearer token comes from
// the Authorization header or, for browser clients that cannot set
// headers on WebSocket requests, the "token" query parameter.
// Authentication runs exactly once, before any state is created; a
// rejected token closes the connection attempt with no session behind it.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)

	ident, err := h.tokens.Authenticate(token)
	if err != nil {
		metrics.ConnectsTotal.WithLabelValues("auth_rejected").Inc()
		h.logger.Info().Err(err).Str("remote_addr", r.RemoteAddr).Msg("connection rejected")
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.ConnectsTotal.WithLabelValues("upgrade_failed").Inc()
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.New()
	client := relay.NewClient(conn, connID, h.ctrl, h.logger, h.clientCfg)

	if err := h.ctrl.Connect(connID, ident, client); err != nil {
		_ = conn.Close()
		return
	}

	metrics.ConnectsTotal.WithLabelValues("accepted").Inc()
	client.Start()
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if h.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(r.Header.Get("Origin"))
	if !ok {
		return false
	}

	if _, allowed := h.allowedOrigins[normalized]; allowed {
		return true
	}

	h.logger.Warn().Str("origin", r.Header.Get("Origin")).Msg("blocked websocket connection from disallowed origin")
	return false
}

// bearerToken extracts the session token from a request.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if after, found := strings.CutPrefix(header, "Bearer "); found {
			return after
		}
	}
	return r.URL.Query().Get("token")
}

// normalizeOrigin lowercases an origin to scheme://host for comparison.
func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/vedran77/teamchat/internal/realtime"
	"github.com/vedran77/teamchat/internal/transport/http/middleware"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// PresenceTracker records live connections per user. Entries expire unless
// refreshed, so Refresh runs for as long as the connection stays open.
type PresenceTracker interface {
	Online(ctx context.Context, userID, connID string) error
	Refresh(ctx context.Context, userID, connID string) error
	Offline(ctx context.Context, userID, connID string) error
}

type Handler struct {
	gateway         *realtime.Gateway
	jwtSecret       string
	sendBuffer      int
	presence        PresenceTracker
	presenceRefresh time.Duration
	log             *zap.Logger
}

func NewHandler(gateway *realtime.Gateway, jwtSecret string, sendBuffer int, log *zap.Logger) *Handler {
	return &Handler{
		gateway:    gateway,
		jwtSecret:  jwtSecret,
		sendBuffer: sendBuffer,
		log:        log.Named("ws"),
	}
}

// SetPresence sets the presence tracker (optional dependency). refresh must
// be shorter than the tracker's expiry.
func (h *Handler) SetPresence(p PresenceTracker, refresh time.Duration) {
	h.presence = p
	h.presenceRefresh = refresh
}

// ServeWS upgrades to WebSocket and serves the connection until it closes.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	userID, err := middleware.ParseToken(tokenStr, h.jwtSecret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow any origin (dev mode)
	})
	if err != nil {
		h.log.Warn("ws: accept error", zap.Error(err))
		return
	}

	// The connection context ends with the handler, abandoning any intent
	// still in flight.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := NewClient(conn, userID, h.sendBuffer, h.log)
	session := h.gateway.Open(client)

	if h.presence != nil {
		if err := h.presence.Online(ctx, userID.String(), client.ID()); err != nil {
			h.log.Warn("presence online", zap.Error(err))
		}
		stopRefresh := func() {}
		if h.presenceRefresh > 0 {
			rctx, rcancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				h.keepPresence(rctx, userID.String(), client.ID())
			}()
			stopRefresh = func() {
				rcancel()
				<-done
			}
		}
		defer func() {
			// A refresh after Offline would mark the user online again.
			stopRefresh()
			if err := h.presence.Offline(context.WithoutCancel(ctx), userID.String(), client.ID()); err != nil {
				h.log.Warn("presence offline", zap.Error(err))
			}
		}()
	}

	go client.WritePump(ctx)
	client.ReadPump(ctx, session)
}

// keepPresence refreshes the connection's presence until ctx ends.
func (h *Handler) keepPresence(ctx context.Context, userID, connID string) {
	ticker := time.NewTicker(h.presenceRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.presence.Refresh(ctx, userID, connID); err != nil && ctx.Err() == nil {
				h.log.Warn("presence refresh", zap.String("conn_id", connID), zap.Error(err))
			}
		}
	}
}

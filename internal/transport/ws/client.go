package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/realtime"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 16 << 10
	sendBufSize    = 256
)

// Client is one websocket connection. It implements realtime.Conn.
type Client struct {
	id     string
	conn   *websocket.Conn
	userID uuid.UUID
	log    *zap.Logger

	send chan []byte

	closeOnce   sync.Once
	done        chan struct{}
	closeReason string
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, bufSize int, log *zap.Logger) *Client {
	if bufSize <= 0 {
		bufSize = sendBufSize
	}
	id := uuid.NewString()
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		id:     id,
		conn:   conn,
		userID: userID,
		log:    log.With(zap.String("conn_id", id), zap.Stringer("user_id", userID)),
		send:   make(chan []byte, bufSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) UserID() uuid.UUID { return c.userID }

// Deliver queues a frame for the write pump. It never blocks.
func (c *Client) Deliver(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Closed reports whether Close has run, whichever side started it.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the socket and ends the read pump.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.done)
	})
}

// ReadPump feeds inbound frames to the session until the socket fails. It
// closes the session on return.
func (c *Client) ReadPump(ctx context.Context, session *realtime.Session) {
	defer func() {
		session.Close()
		c.Close("")
	}()

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				c.log.Debug("ws: client disconnected")
			} else {
				c.log.Info("ws: read error", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		session.Handle(ctx, data)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Info("ws: write error", zap.Error(err))
				c.Close("write failed")
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.log.Info("ws: ping error", zap.Error(err))
				c.Close("ping failed")
				c.conn.Close(websocket.StatusGoingAway, "ping failed")
				return
			}

		case <-c.done:
			if c.closeReason == "" {
				c.conn.Close(websocket.StatusNormalClosure, "")
			} else {
				c.conn.Close(websocket.StatusPolicyViolation, c.closeReason)
			}
			return

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}

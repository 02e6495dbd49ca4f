package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/teamchat/internal/domain"
	"github.com/vedran77/teamchat/internal/metrics"
	"github.com/vedran77/teamchat/internal/service"
	"github.com/vedran77/teamchat/pkg/validator"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	errRateLimited  = errors.New("too many intents")
	errUnknownEvent = fmt.Errorf("%w: unknown event type", domain.ErrValidation)
	errBadPayload   = fmt.Errorf("%w: malformed payload", domain.ErrValidation)
	errRoomChanged  = fmt.Errorf("%w: room membership changed during join", domain.ErrConflict)
)

// joinAttempts bounds how often a join re-checks access after losing a race
// with an eviction on the same room.
const joinAttempts = 3

type GatewayConfig struct {
	// ReportErrors sends an error event to the connection whose intent failed.
	ReportErrors     bool
	IntentsPerSecond float64
	IntentBurst      int
}

// Gateway turns inbound intents into service calls for every connection.
type Gateway struct {
	registry *Registry
	chats    *service.ChatService
	messages *service.MessageService
	cfg      GatewayConfig
	log      *zap.Logger
}

func NewGateway(registry *Registry, chats *service.ChatService, messages *service.MessageService, cfg GatewayConfig, log *zap.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		chats:    chats,
		messages: messages,
		cfg:      cfg,
		log:      log.Named("gateway"),
	}
}

// Session is the dispatch state of one connection.
type Session struct {
	gw      *Gateway
	conn    Conn
	limiter *rate.Limiter
	log     *zap.Logger

	closeOnce sync.Once
}

// Open registers an authenticated connection. The caller must Close the
// session when the connection ends.
func (g *Gateway) Open(c Conn) *Session {
	limit := rate.Inf
	if g.cfg.IntentsPerSecond > 0 {
		limit = rate.Limit(g.cfg.IntentsPerSecond)
	}
	burst := g.cfg.IntentBurst
	if burst <= 0 {
		burst = 1
	}

	g.registry.Register(c)
	s := &Session{
		gw:      g,
		conn:    c,
		limiter: rate.NewLimiter(limit, burst),
		log:     g.log.With(zap.String("conn_id", c.ID()), zap.Stringer("user_id", c.UserID())),
	}
	s.log.Debug("connection opened")
	return s
}

// Close drops every subscription of the connection. Later calls are no-ops.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		rooms := s.gw.registry.DropConnection(s.conn.ID())
		s.log.Debug("connection closed", zap.Int("rooms", len(rooms)))
	})
}

// Handle decodes and runs one inbound frame. Failures never escape: they are
// logged and, when configured, reported to this connection only.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	var evt Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		s.fail("", fmt.Errorf("%w: %v", errBadPayload, err))
		return
	}
	s.Dispatch(ctx, &evt)
}

// Dispatch runs a decoded intent.
func (s *Session) Dispatch(ctx context.Context, evt *Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("intent handler panicked", zap.String("intent", evt.Type), zap.Any("panic", r))
			metrics.Intents.WithLabelValues(evt.Type, "panic").Inc()
			s.report(evt.Type, errors.New("internal error"))
		}
	}()

	if evt.Type != EventPing && !s.limiter.Allow() {
		s.fail(evt.Type, errRateLimited)
		return
	}

	var err error
	switch evt.Type {
	case EventJoinRoom:
		err = s.joinRoom(ctx, evt.Payload)
	case EventLeaveRoom:
		err = s.leaveRoom(evt.Payload)
	case EventSendMessage:
		err = s.sendMessage(ctx, evt.Payload)
	case EventEditMessage:
		err = s.editMessage(ctx, evt.Payload)
	case EventDeleteMessage:
		err = s.deleteMessage(ctx, evt.Payload)
	case EventPing:
		s.reply(EventPong, nil)
	default:
		err = fmt.Errorf("%w: %q", errUnknownEvent, evt.Type)
	}

	if err != nil {
		s.fail(evt.Type, err)
		return
	}
	metrics.Intents.WithLabelValues(evt.Type, "ok").Inc()
}

func (s *Session) joinRoom(ctx context.Context, payload json.RawMessage) error {
	var p RoomPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if errs := validator.ValidateRoomIntent("chatId", "Chat id", p.ChatID); errs.HasErrors() {
		return errs
	}
	chatID := validID(p.ChatID)

	registry := s.gw.registry
	for attempt := 0; attempt < joinAttempts; attempt++ {
		epoch := registry.Epoch(chatID)
		// Get applies the read rule: private rooms need chat membership,
		// public rooms workspace membership.
		if _, err := s.gw.chats.Get(ctx, s.conn.UserID(), chatID); err != nil {
			return err
		}
		if registry.SubscribeAt(s.conn.ID(), chatID, epoch) {
			s.log.Debug("joined room", zap.Stringer("chat_id", chatID))
			return nil
		}
		if registry.Epoch(chatID) == epoch {
			// The connection was dropped while the intent ran.
			return nil
		}
		s.log.Debug("room evicted during join, rechecking access", zap.Stringer("chat_id", chatID), zap.Int("attempt", attempt+1))
	}
	return errRoomChanged
}

func (s *Session) leaveRoom(payload json.RawMessage) error {
	var p RoomPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if errs := validator.ValidateRoomIntent("chatId", "Chat id", p.ChatID); errs.HasErrors() {
		return errs
	}
	s.gw.registry.Unsubscribe(s.conn.ID(), validID(p.ChatID))
	return nil
}

func (s *Session) sendMessage(ctx context.Context, payload json.RawMessage) error {
	var p SendMessagePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if errs := validator.ValidateSendMessage(p.ChatID, p.Text, p.Attachment); errs.HasErrors() {
		return errs
	}

	// The service persists first and then broadcasts through the notifier.
	_, err := s.gw.messages.Send(ctx, s.conn.UserID(), validID(p.ChatID), service.SendMessageInput{
		Text:       p.Text,
		Attachment: p.Attachment,
	})
	return err
}

func (s *Session) editMessage(ctx context.Context, payload json.RawMessage) error {
	var p EditMessagePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if errs := validator.ValidateEditMessage(p.MessageID, p.Text, p.Attachment); errs.HasErrors() {
		return errs
	}

	_, err := s.gw.messages.Edit(ctx, s.conn.UserID(), validID(p.MessageID), service.EditMessageInput{
		Text:       p.Text,
		Attachment: p.Attachment,
	})
	return err
}

func (s *Session) deleteMessage(ctx context.Context, payload json.RawMessage) error {
	var p DeleteMessagePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	if errs := validator.ValidateRoomIntent("messageId", "Message id", p.MessageID); errs.HasErrors() {
		return errs
	}

	_, err := s.gw.messages.Delete(ctx, s.conn.UserID(), validID(p.MessageID))
	return err
}

func (s *Session) fail(intent string, err error) {
	outcome := outcomeOf(err)
	metrics.Intents.WithLabelValues(intent, outcome).Inc()

	fields := []zap.Field{zap.String("intent", intent), zap.Error(err)}
	if outcome == "internal" {
		s.log.Error("intent failed", fields...)
	} else {
		s.log.Info("intent rejected", fields...)
	}
	s.report(intent, err)
}

func (s *Session) report(intent string, err error) {
	if !s.gw.cfg.ReportErrors {
		return
	}
	p := ErrorPayload{Intent: intent}
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		p.Code, p.Message, p.Fields = "VALIDATION_ERROR", "Invalid input", verrs
	case errors.Is(err, errRateLimited):
		p.Code, p.Message = "RATE_LIMITED", err.Error()
	case errors.Is(err, domain.ErrValidation):
		p.Code, p.Message = "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		p.Code, p.Message = "NOT_FOUND", err.Error()
	case errors.Is(err, domain.ErrForbidden):
		p.Code, p.Message = "FORBIDDEN", err.Error()
	case errors.Is(err, domain.ErrConflict):
		p.Code, p.Message = "CONFLICT", err.Error()
	default:
		p.Code, p.Message = "INTERNAL", "Something went wrong"
	}
	s.reply(EventError, p)
}

func (s *Session) reply(eventType string, payload any) {
	data, err := Encode(eventType, payload)
	if err != nil {
		s.log.Error("encode reply", zap.String("type", eventType), zap.Error(err))
		return
	}
	if !s.conn.Deliver(data) {
		s.log.Debug("reply dropped", zap.String("type", eventType))
	}
}

func outcomeOf(err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs), errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

// validID parses an id that already passed validation.
func validID(s string) uuid.UUID {
	return uuid.MustParse(strings.TrimSpace(s))
}

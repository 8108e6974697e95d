package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/consultlink/api/internal/dto"
	"github.com/consultlink/api/internal/middleware"
	"github.com/consultlink/api/internal/observability"
)

const chatSendBufferSize = 32

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID         uint
	Role           string
	ConsultationID uint
	CorrelationID  string
	Context        context.Context
}

// chatInbound is the payload a connected client writes on the socket. The
// consultation and sender are pinned by the connection itself.
type chatInbound struct {
	ReceiverID  uint   `json:"receiver_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
}

// LiveChatService delivers consultation chat over websockets. Persistence,
// participant checks and the booking-window gate all go through the message
// service; this layer only handles connections and fan-out.
type LiveChatService interface {
	MessageBroadcaster
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	Start(ctx context.Context)
}

type liveChatService struct {
	messages    MessageService
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	hub         *chatHub
	nodeID      string
}

type chatHub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*chatClient]struct{}
	log   zerolog.Logger
}

type chatClient struct {
	conn    *websocket.Conn
	send    chan dto.MessageResponse
	options ChatConnectionOptions
	service *liveChatService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context
}

type chatEvent struct {
	Source  string              `json:"source"`
	Message dto.MessageResponse `json:"message"`
	SentAt  time.Time           `json:"sent_at"`
}

// NewLiveChatService creates a websocket chat service instance. The Redis and
// NATS connections may be nil, in which case fan-out stays in-process.
func NewLiveChatService(messages MessageService, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) LiveChatService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":chat"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".chat"
	}

	return &liveChatService{
		messages:    messages,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "livechat_service").Logger(),
		hub: &chatHub{
			rooms: make(map[uint]map[*chatClient]struct{}),
			log:   logger.With().Str("component", "chat_hub").Logger(),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *liveChatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *liveChatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	// Room membership means receiving every broadcast for the consultation,
	// so it gets the same participant check as sending does.
	if err := s.messages.AuthorizeRoom(baseCtx, opts.UserID, opts.ConsultationID); err != nil {
		s.logger.Warn().Err(err).
			Uint("user_id", opts.UserID).
			Uint("consultation_id", opts.ConsultationID).
			Msg("chat room join refused")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "not allowed in this room"))
		_ = conn.Close()
		return
	}

	client := &chatClient{
		conn:    conn,
		send:    make(chan dto.MessageResponse, chatSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
		baseCtx: baseCtx,
	}

	s.hub.register(client)
	observability.ChatClientsActive().Inc()

	go client.writer()
	client.reader()
}

// BroadcastMessage pushes a freshly stored message to local room members and
// publishes it for other nodes. Called by the message service after every
// successful send, whether it arrived over HTTP or a websocket.
func (s *liveChatService) BroadcastMessage(ctx context.Context, message dto.MessageResponse) {
	s.hub.broadcast(message.ConsultationID, message)
	if err := s.publish(ctx, message); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}
}

func (s *liveChatService) publish(ctx context.Context, message dto.MessageResponse) error {
	event := chatEvent{
		Source:  s.nodeID,
		Message: message,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *liveChatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *liveChatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "consultlink-chat", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}

func (s *liveChatService) handleEvent(data []byte) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid chat event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	s.hub.broadcast(event.Message.ConsultationID, event.Message)
}

func (h *chatHub) register(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.ConsultationID
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*chatClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Uint("consultation_id", room).Uint("user_id", client.options.UserID).Msg("chat client connected")
}

func (h *chatHub) unregister(client *chatClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.ConsultationID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Uint("consultation_id", room).Uint("user_id", client.options.UserID).Msg("chat client disconnected")
}

func (h *chatHub) broadcast(consultationID uint, message dto.MessageResponse) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := h.rooms[consultationID]
	for client := range clients {
		select {
		case client.send <- message:
		default:
			h.log.Warn().Uint("consultation_id", consultationID).Uint("user_id", client.options.UserID).Msg("dropping chat message for slow client")
		}
	}
}

func (c *chatClient) reader() {
	defer c.close()

	connCtx := c.baseCtx
	if c.options.CorrelationID == "" {
		c.options.CorrelationID = middleware.CorrelationIDFromContext(connCtx)
	}

	for {
		var inbound chatInbound
		if err := c.conn.ReadJSON(&inbound); err != nil {
			c.service.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}

		payload := dto.MessageSendRequest{
			ConsultationID: c.options.ConsultationID,
			ReceiverID:     inbound.ReceiverID,
			Content:        inbound.Content,
			MessageType:    inbound.MessageType,
		}

		// Send runs the participant check and the booking-window gate,
		// persists the message, then calls BroadcastMessage above.
		if _, err := c.service.messages.Send(connCtx, c.options.UserID, payload); err != nil {
			c.service.logger.Warn().Err(err).Uint("user_id", c.options.UserID).Msg("failed to process chat message")

			var gateErr *GateClosedError
			if errors.As(err, &gateErr) {
				_ = c.conn.WriteJSON(map[string]string{"error": "window_closed", "reason": gateErr.Reason})
			}
			continue
		}
	}
}

func (c *chatClient) writer() {
	defer c.close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		observability.ChatClientsActive().Dec()
		_ = c.conn.Close()
	})
}

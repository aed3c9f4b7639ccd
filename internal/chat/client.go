package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"tutorlink/internal/auth"
	"tutorlink/internal/constants"
	apperrors "tutorlink/internal/errors"
	"tutorlink/internal/metrics"
	"tutorlink/internal/models"
	"tutorlink/internal/retry"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// Wire event names for the realtime channel.
const (
	eventJoinRoom       = "join_room"
	eventLeaveRoom      = "leave_room"
	eventSendMessage    = "send_message"
	eventNewMessage     = "new_message"
	eventTyping         = "typing"
	eventUserJoined     = "user_joined"
	eventUserLeft       = "user_left"
	eventMessageDeleted = "message_deleted"
)

// frame is the envelope every realtime event travels in.
type frame struct {
	Event  string          `json:"event"`
	RoomID string          `json:"room_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type sendMessagePayload struct {
	Message string `json:"message"`
}

// Client manages the single logical realtime connection: room
// membership, inbound event fan-out, duplicate suppression, and
// reconnection. All callbacks fire on the read-loop goroutine.
type Client struct {
	config  models.ChatConfig
	tokens  *auth.TokenStore
	logger  *logrus.Logger
	metrics *metrics.Registry
	backoff *retry.Backoff

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	room   string
	seen   *seenSet
	typing map[string]models.TypingEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onMessage        handlers[models.ChatMessage]
	onTyping         handlers[models.TypingEvent]
	onUserJoined     handlers[models.RoomPresenceEvent]
	onUserLeft       handlers[models.RoomPresenceEvent]
	onMessageDeleted handlers[models.MessageDeletedEvent]
	onStateChange    handlers[State]
	onError          handlers[error]
}

func NewClient(cfg models.ChatConfig, tokens *auth.TokenStore, backoff *retry.Backoff, logger *logrus.Logger, registry *metrics.Registry) *Client {
	return &Client{
		config:  cfg,
		tokens:  tokens,
		logger:  logger,
		metrics: registry,
		backoff: backoff,
		state:   StateDisconnected,
		seen:    newSeenSet(constants.DefaultChatSeenMessageLimit),
		typing:  make(map[string]models.TypingEvent),
	}
}

// Subscription surface. Each returns a disposer removing exactly the
// given callback.

func (c *Client) OnMessage(fn func(models.ChatMessage)) func()          { return c.onMessage.register(fn) }
func (c *Client) OnTyping(fn func(models.TypingEvent)) func()           { return c.onTyping.register(fn) }
func (c *Client) OnUserJoined(fn func(models.RoomPresenceEvent)) func() { return c.onUserJoined.register(fn) }
func (c *Client) OnUserLeft(fn func(models.RoomPresenceEvent)) func()   { return c.onUserLeft.register(fn) }
func (c *Client) OnMessageDeleted(fn func(models.MessageDeletedEvent)) func() {
	return c.onMessageDeleted.register(fn)
}
func (c *Client) OnStateChange(fn func(State)) func() { return c.onStateChange.register(fn) }
func (c *Client) OnError(fn func(error)) func()       { return c.onError.register(fn) }

// Connect establishes the shared connection. Idempotent: calling while
// connected or connecting is a no-op, never a second connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting || c.state == StateReconnecting {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.transition(StateDisconnected)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(runCtx, conn)
	return nil
}

// Disconnect closes the connection cleanly and stops event delivery.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.cancel = nil
	c.conn = nil
	c.room = ""
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	c.wg.Wait()
	c.transition(StateDisconnected)
}

// JoinRoom scopes event delivery to one room. Joining while another
// room is active leaves the old room first; there is never more than
// one active room.
func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	c.mu.Lock()
	previous := c.room
	c.mu.Unlock()

	if previous != "" && previous != roomID {
		if err := c.writeFrame(ctx, frame{Event: eventLeaveRoom, RoomID: previous}); err != nil {
			return err
		}
	}
	if err := c.writeFrame(ctx, frame{Event: eventJoinRoom, RoomID: roomID}); err != nil {
		return err
	}

	c.mu.Lock()
	c.room = roomID
	// Typists are room-scoped; a room switch starts from an empty set.
	c.typing = make(map[string]models.TypingEvent)
	c.mu.Unlock()

	c.logger.WithField("room_id", roomID).Debug("Joined chat room")
	return nil
}

// LeaveRoom leaves the active room, stopping message/typing delivery.
func (c *Client) LeaveRoom(ctx context.Context) error {
	c.mu.Lock()
	room := c.room
	c.mu.Unlock()
	if room == "" {
		return nil
	}

	if err := c.writeFrame(ctx, frame{Event: eventLeaveRoom, RoomID: room}); err != nil {
		return err
	}

	c.mu.Lock()
	c.room = ""
	c.typing = make(map[string]models.TypingEvent)
	c.mu.Unlock()
	return nil
}

// SendMessage sends fire-and-forget; the local echo arrives via the
// server's broadcast back to the sender.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	c.mu.Lock()
	room := c.room
	c.mu.Unlock()
	if room == "" {
		return apperrors.New(apperrors.ErrCodeValidationFailed, "no active chat room")
	}

	data, err := json.Marshal(sendMessagePayload{Message: text})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, "failed to marshal message")
	}

	if err := c.writeFrame(ctx, frame{Event: eventSendMessage, RoomID: room, Data: data}); err != nil {
		return err
	}
	c.metrics.IncrementCounter("chat.message_sent", nil)
	return nil
}

// SendTyping broadcasts the caller's typing state to the active room.
func (c *Client) SendTyping(ctx context.Context, typing bool) error {
	c.mu.Lock()
	room := c.room
	c.mu.Unlock()
	if room == "" {
		return nil
	}

	data, err := json.Marshal(map[string]bool{"typing": typing})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, "failed to marshal typing event")
	}
	return c.writeFrame(ctx, frame{Event: eventTyping, RoomID: room, Data: data})
}

// Resume re-verifies the connection after the app returns to the
// foreground. A dead connection is detected via ping and torn down so
// the read loop's reconnect path restores it and rejoins the room.
func (c *Client) Resume(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	conn := c.conn
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		return c.Connect(ctx)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.writeTimeout())
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		c.logger.WithError(err).Debug("Connection stale on resume, forcing reconnect")
		_ = conn.Close(websocket.StatusGoingAway, "stale connection")
	}
	return nil
}

// CurrentState returns the connection state.
func (c *Client) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveRoom returns the joined room ID, or "" when none.
func (c *Client) ActiveRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// ActiveTypists returns the users currently typing in the active room.
func (c *Client) ActiveTypists() []models.TypingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.TypingEvent, 0, len(c.typing))
	for _, ev := range c.typing {
		out = append(out, ev)
	}
	return out
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if pair, err := c.tokens.Tokens(ctx); err == nil && pair.HasAccess() {
		header.Set("Authorization", "Bearer "+pair.Access)
	}

	conn, _, err := websocket.Dial(ctx, c.config.URL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, apperrors.NewChatTransportError(err, "failed to connect to chat server")
	}
	return conn, nil
}

// run owns the connection until Disconnect or the reconnect budget is
// spent: read until the transport fails, reconnect, repeat.
func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		err := c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return
		}

		c.metrics.IncrementCounter("chat.transport_error", nil)
		c.onError.emit(apperrors.NewChatTransportError(err, "chat connection lost"))

		conn = c.reconnect(ctx)
		if conn == nil {
			c.mu.Lock()
			c.conn = nil
			c.setStateLocked(StateDisconnected)
			c.mu.Unlock()
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return err
		}
		c.handleFrame(f)
	}
}

// reconnect redials with backoff and rejoins the last active room.
// Returns nil when the attempt budget is exhausted or ctx is done.
func (c *Client) reconnect(ctx context.Context) *websocket.Conn {
	c.transition(StateReconnecting)

	for attempt := 1; attempt <= c.config.ReconnectMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.backoff.Delay(attempt)):
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"error":   err.Error(),
			}).Warn("Chat reconnect attempt failed")
			continue
		}

		c.mu.Lock()
		c.conn = conn
		room := c.room
		c.setStateLocked(StateConnected)
		c.mu.Unlock()

		c.metrics.IncrementCounter("chat.reconnected", nil)
		if room != "" {
			if err := c.writeFrame(ctx, frame{Event: eventJoinRoom, RoomID: room}); err != nil {
				apperrors.LogRetryableError(c.logger, err, "Failed to rejoin room after reconnect")
			}
		}
		return conn
	}

	c.logger.Error("Chat reconnect budget exhausted, giving up")
	return nil
}

func (c *Client) handleFrame(f frame) {
	switch f.Event {
	case eventNewMessage:
		var msg models.ChatMessage
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			c.logger.WithError(err).Warn("Dropping malformed chat message")
			return
		}
		c.mu.Lock()
		inRoom := f.RoomID == "" || f.RoomID == c.room
		fresh := inRoom && c.seen.observe(msg.MessageID)
		c.mu.Unlock()
		if !inRoom {
			return
		}
		if !fresh {
			c.metrics.IncrementCounter("chat.duplicate_dropped", nil)
			return
		}
		c.onMessage.emit(msg)

	case eventTyping:
		var ev models.TypingEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			return
		}
		c.mu.Lock()
		if ev.Typing {
			c.typing[ev.UserID] = ev
		} else {
			delete(c.typing, ev.UserID)
		}
		c.mu.Unlock()
		c.onTyping.emit(ev)

	case eventUserJoined:
		var ev models.RoomPresenceEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			return
		}
		c.onUserJoined.emit(ev)

	case eventUserLeft:
		var ev models.RoomPresenceEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			return
		}
		c.mu.Lock()
		delete(c.typing, ev.UserID)
		c.mu.Unlock()
		c.onUserLeft.emit(ev)

	case eventMessageDeleted:
		var ev models.MessageDeletedEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			return
		}
		c.onMessageDeleted.emit(ev)

	default:
		c.logger.WithField("event", f.Event).Debug("Ignoring unknown chat event")
	}
}

func (c *Client) writeFrame(ctx context.Context, f frame) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if conn == nil || state != StateConnected {
		return apperrors.NewChatTransportError(nil, "chat connection not established")
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout())
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, f); err != nil {
		return apperrors.NewChatTransportError(err, "failed to send chat event")
	}
	return nil
}

func (c *Client) writeTimeout() time.Duration {
	sec := c.config.WriteTimeoutSec
	if sec <= 0 {
		sec = constants.DefaultChatWriteTimeoutSec
	}
	return time.Duration(sec) * time.Second
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	// Emit outside the lock: handlers may call back into the client.
	go c.onStateChange.emit(s)
}

func (c *Client) transition(s State) {
	c.mu.Lock()
	c.setStateLocked(s)
	c.mu.Unlock()
}

// Package collabclient is the Go client of the collaboration socket. A Channel
// keeps one connection per (user, session, project) and mirrors the session's
// participants, chat and document from the frames the server sends.
package collabclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quantum-dashboard/internal/collab"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

const (
	socketPath        = "/ws/collaboration"
	writeWait         = 10 * time.Second
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

var ErrClosed = errors.New("collaboration channel closed")

type Options struct {
	// BaseURL is the server root, http(s):// or ws(s)://.
	BaseURL   string
	Token     string
	UserID    string
	UserName  string
	SessionID string
	ProjectID string
	Enabled   bool

	// Reconnect redials with exponential backoff after an unexpected drop.
	Reconnect  bool
	MinBackoff time.Duration
	MaxBackoff time.Duration

	Dialer   *websocket.Dialer
	Logger   *slog.Logger
	OnChange func(Snapshot)
}

// Snapshot is a consistent copy of the channel's stores.
type Snapshot struct {
	State        State
	Participants []collab.Participant
	Messages     []collab.ChatMessage
	Document     collab.DocumentState
}

type Channel struct {
	mu       sync.Mutex
	opts     Options
	state    State
	conn     *websocket.Conn
	presence *collab.Presence
	chat     *collab.ChatLog
	doc      collab.DocumentState
	closed   bool

	writeMu sync.Mutex
	// lifeMu serializes Reconfigure and Close.
	lifeMu sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// Open starts a channel. When the options are disabled or lack a user or
// session id no socket is dialed and the channel stays disconnected. A failed
// first dial is returned as an error unless Reconnect is set.
func Open(ctx context.Context, opts Options) (*Channel, error) {
	c := &Channel{
		state:    StateDisconnected,
		presence: collab.NewPresence(),
		chat:     collab.NewChatLog(0),
	}
	if err := c.start(ctx, opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (o Options) active() bool {
	return o.Enabled && o.UserID != "" && o.SessionID != ""
}

func (o Options) withDefaults() Options {
	if o.MinBackoff <= 0 {
		o.MinBackoff = defaultMinBackoff
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = defaultMaxBackoff
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (c *Channel) start(ctx context.Context, opts Options) error {
	opts = opts.withDefaults()

	c.mu.Lock()
	c.opts = opts
	c.presence = collab.NewPresence()
	c.chat = collab.NewChatLog(0)
	c.doc = collab.DocumentState{}
	c.state = StateDisconnected
	c.mu.Unlock()

	if !opts.active() {
		c.notify()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.setState(StateConnecting)
	conn, err := c.dial(runCtx, opts)
	if err != nil && !opts.Reconnect {
		cancel()
		c.setState(StateDisconnected)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	if err != nil {
		opts.Logger.Warn("collaboration dial failed, retrying", "error", err, "session", opts.SessionID)
		c.setState(StateReconnecting)
	} else {
		c.attach(conn)
	}
	go c.run(runCtx, conn, done)
	return nil
}

func (c *Channel) dial(ctx context.Context, opts Options) (*websocket.Conn, error) {
	target, err := socketURL(opts)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if opts.Token != "" {
		header.Set("Authorization", "Bearer "+opts.Token)
	}
	conn, resp, err := opts.Dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial collaboration socket failed: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial collaboration socket failed: %w", err)
	}
	return conn, nil
}

func socketURL(opts Options) (string, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url failed: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	u.Path += socketPath
	q := url.Values{}
	q.Set("userId", opts.UserID)
	q.Set("userName", opts.UserName)
	q.Set("sessionId", opts.SessionID)
	q.Set("projectId", opts.ProjectID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Channel) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
	c.notify()
}

// run reads frames until the socket drops, then redials when Reconnect is set.
func (c *Channel) run(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	backoff := c.opts.MinBackoff
	for {
		if conn != nil {
			stopWatch := context.AfterFunc(ctx, func() { _ = conn.Close() })
			err := c.readLoop(conn)
			stopWatch()
			c.detach(conn)
			if ctx.Err() != nil {
				return
			}
			c.opts.Logger.Info("collaboration socket dropped", "error", err, "session", c.opts.SessionID)
			if !c.opts.Reconnect {
				c.setState(StateDisconnected)
				return
			}
			backoff = c.opts.MinBackoff
		}

		c.setState(StateReconnecting)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}

		next, err := c.dial(ctx, c.opts)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.opts.Logger.Warn("collaboration redial failed", "error", err, "session", c.opts.SessionID)
			conn = nil
			continue
		}
		c.attach(next)
		conn = next
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) error {
	for {
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		env, err := collab.Decode(payload)
		if err != nil {
			c.opts.Logger.Debug("ignoring malformed frame", "error", err)
			continue
		}
		if c.apply(env) {
			c.notify()
		}
	}
}

func (c *Channel) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// apply mirrors one server frame into the stores and reports whether anything changed.
func (c *Channel) apply(env collab.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch env.Type {
	case collab.TypeSessionJoined:
		c.presence.Replace(env.Participants)
		if env.Document != nil {
			c.doc = *env.Document
		}
		c.chat = collab.NewChatLog(0)
		for _, msg := range env.Messages {
			c.chat.Append(msg)
		}
	case collab.TypeUserJoined:
		if env.User == nil {
			return false
		}
		c.presence.Put(*env.User)
	case collab.TypeUserLeft:
		return c.presence.Remove(env.UserID)
	case collab.TypeChatMessageReceived:
		if env.Message == nil {
			return false
		}
		c.chat.Append(*env.Message)
	case collab.TypeCodeEditApplied:
		return c.applyEdit(env)
	case collab.TypeEditRejected:
		if env.Document == nil {
			return false
		}
		c.doc = *env.Document
	case collab.TypeCursorUpdated:
		if env.Cursor == nil {
			return false
		}
		cursor := *env.Cursor
		return c.presence.Update(env.UserID, func(p *collab.Participant) { p.Cursor = &cursor })
	case collab.TypeTypingUpdated:
		if env.IsTyping == nil {
			return false
		}
		typing := *env.IsTyping
		return c.presence.Update(env.UserID, func(p *collab.Participant) { p.IsTyping = typing })
	default:
		return false
	}
	return true
}

// applyEdit applies a server-ordered edit. The server sends every edit, the
// caller's own included, in version order, so the base must match the mirror.
func (c *Channel) applyEdit(env collab.Envelope) bool {
	if env.Edit == nil || env.Document == nil {
		return false
	}
	if env.Edit.BaseVersion != c.doc.Version {
		c.opts.Logger.Warn("edit does not follow the mirrored version",
			"base", env.Edit.BaseVersion, "mirror", c.doc.Version, "session", c.opts.SessionID)
		return false
	}
	content := c.doc.Content
	if !env.Edit.Op.IsNoop() {
		next, err := env.Edit.Op.Apply(content)
		if err != nil {
			c.opts.Logger.Warn("apply edit failed", "error", err, "session", c.opts.SessionID)
			return false
		}
		content = next
	}
	c.doc = collab.DocumentState{Content: content, Version: env.Document.Version}
	return true
}

// SendChatMessage sends content when the socket is open. Otherwise the
// message is dropped and false is returned; the chat store is never touched
// here, messages appear when the server echoes them.
func (c *Channel) SendChatMessage(content string) bool {
	return c.send(collab.Envelope{Type: collab.TypeChatMessage, Content: content})
}

// SendEdit submits op against the mirrored document version.
func (c *Channel) SendEdit(op collab.Operation) bool {
	c.mu.Lock()
	base := c.doc.Version
	c.mu.Unlock()
	return c.send(collab.Envelope{Type: collab.TypeCodeEdit, Edit: &collab.Edit{Op: op, BaseVersion: base}})
}

func (c *Channel) UpdateCursor(line, column int) bool {
	return c.send(collab.Envelope{Type: collab.TypeCursorUpdate, Cursor: &collab.Cursor{Line: line, Column: column}})
}

func (c *Channel) SetTyping(typing bool) bool {
	return c.send(collab.Envelope{Type: collab.TypeTyping, IsTyping: &typing})
}

func (c *Channel) send(env collab.Envelope) bool {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()
	if conn == nil || state != StateConnected {
		return false
	}

	payload, err := collab.Encode(env)
	if err != nil {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.opts.Logger.Warn("send frame failed", "error", err, "type", env.Type)
		return false
	}
	return true
}

// Reconfigure closes the current socket, waits for it to be torn down and
// then opens a new one for opts. The stores start empty.
func (c *Channel) Reconfigure(ctx context.Context, opts Options) error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.stop()
	return c.start(ctx, opts)
}

// Close tears the socket down. Calling it again is a no-op.
func (c *Channel) Close() error {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.stop()
	return nil
}

func (c *Channel) stop() {
	c.mu.Lock()
	cancel, done, conn := c.cancel, c.done, c.conn
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
	}
	cancel()
	<-done
	c.setState(StateDisconnected)
}

func (c *Channel) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	c.notify()
}

func (c *Channel) notify() {
	c.mu.Lock()
	fn := c.opts.OnChange
	c.mu.Unlock()
	if fn != nil {
		fn(c.Snapshot())
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) Participants() []collab.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.presence.List()
}

func (c *Channel) Messages() []collab.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat.List()
}

func (c *Channel) Document() collab.DocumentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc
}

func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:        c.state,
		Participants: c.presence.List(),
		Messages:     c.chat.List(),
		Document:     c.doc,
	}
}

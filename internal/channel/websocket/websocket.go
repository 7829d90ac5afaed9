// Package websocket implements a chat channel over JSON websocket frames.
//
// Each connection is one conversation. A client may pick its chat ID with
// the "chat" query parameter; otherwise one is assigned and announced in the
// hello frame. A second connection with a chat ID already in use replaces
// the first.
package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/nanoagent/internal/config"
	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/logging"
)

// ChannelID is the channel tag of websocket messages.
const ChannelID = "websocket"

// Frame types.
const (
	FrameHello   = "hello"
	FrameMessage = "message"
	FrameError   = "error"
)

const writeTimeout = 10 * time.Second

// ErrNoConnection is returned by Send when no client holds the chat ID.
var ErrNoConnection = errors.New("websocket: no connection for chat")

// Frame is the JSON shape of every websocket message in both directions.
type Frame struct {
	Type     string         `json:"type"`
	ChatID   string         `json:"chatId,omitempty"`
	SenderID string         `json:"senderId,omitempty"`
	Content  string         `json:"content,omitempty"`
	Media    []string       `json:"media,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// conn serializes writes to one socket.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(f)
}

// Channel implements domain.Channel over websocket connections.
type Channel struct {
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
	log      *logging.Logger

	mu      sync.RWMutex
	handler func(domain.InboundMessage)
	conns   map[string]*conn // chat ID → connection
	server  *http.Server
	running bool
	lastErr string
}

// New creates a websocket channel from configuration.
func New(cfg config.WebSocketConfig, log *logging.Logger) *Channel {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	return &Channel{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:   log.Sub("websocket"),
		conns: make(map[string]*conn),
	}
}

func (c *Channel) ID() string { return ChannelID }

func (c *Channel) OnMessage(handler func(domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: ChannelID,
		Connected: len(c.conns) > 0,
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// Connections returns the number of open client connections.
func (c *Channel) Connections() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.conns)
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (c *Channel) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(c.cfg.Path, c.serveWS)
	return mux
}

// Start listens on the configured address until ctx is cancelled.
func (c *Channel) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", c.cfg.Addr)
	if err != nil {
		c.setErr(err)
		return fmt.Errorf("websocket listen: %w", err)
	}

	srv := &http.Server{Handler: c.Handler(), ReadHeaderTimeout: 10 * time.Second}
	c.mu.Lock()
	c.server = srv
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().Str("addr", ln.Addr().String()).Str("path", c.cfg.Path).Msg("websocket channel listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.setErr(err)
			return fmt.Errorf("websocket serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Stop(shutdownCtx)
		return ctx.Err()
	}
}

// Stop closes the listener and every client connection.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	srv := c.server
	conns := c.conns
	c.conns = make(map[string]*conn)
	c.server = nil
	c.running = false
	c.mu.Unlock()

	for _, cn := range conns {
		cn.ws.Close()
	}
	if srv == nil {
		return nil
	}
	c.log.Info().Msg("stopping websocket channel")
	return srv.Shutdown(ctx)
}

// Send writes a message frame to the connection holding msg.ChatID.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	cn, ok := c.conns[msg.ChatID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrNoConnection, msg.ChatID)
	}
	return cn.write(Frame{
		Type:     FrameMessage,
		ChatID:   msg.ChatID,
		Content:  msg.Content,
		Metadata: msg.Metadata,
	})
}

// authorized checks the bearer token from the Authorization header or the
// "token" query parameter. No configured token allows every client.
func (c *Channel) authorized(r *http.Request) bool {
	if c.cfg.Token == "" {
		return true
	}
	got := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		got = strings.TrimPrefix(h, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(c.cfg.Token)) == 1
}

func (c *Channel) serveWS(w http.ResponseWriter, r *http.Request) {
	if !c.authorized(r) {
		c.log.Warn().Str("remote", r.RemoteAddr).Msg("websocket upgrade rejected: bad token")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	chatID := r.URL.Query().Get("chat")
	if chatID == "" {
		chatID = uuid.NewString()
	}
	cn := &conn{ws: ws}

	c.mu.Lock()
	if old, ok := c.conns[chatID]; ok {
		old.ws.Close()
	}
	c.conns[chatID] = cn
	c.mu.Unlock()

	c.log.Info().Str("chatId", chatID).Str("remote", r.RemoteAddr).Msg("client connected")

	if err := cn.write(Frame{Type: FrameHello, ChatID: chatID}); err != nil {
		c.drop(chatID, cn)
		return
	}
	c.readLoop(chatID, cn)
}

func (c *Channel) readLoop(chatID string, cn *conn) {
	defer c.drop(chatID, cn)
	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Str("chatId", chatID).Msg("client closed connection")
			} else {
				c.log.Debug().Err(err).Str("chatId", chatID).Msg("read error")
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			_ = cn.write(Frame{Type: FrameError, Error: "invalid frame: " + err.Error()})
			continue
		}
		if f.Type != "" && f.Type != FrameMessage {
			_ = cn.write(Frame{Type: FrameError, Error: "unsupported frame type: " + f.Type})
			continue
		}
		if strings.TrimSpace(f.Content) == "" && len(f.Media) == 0 {
			continue
		}
		c.dispatch(chatID, f)
	}
}

func (c *Channel) dispatch(chatID string, f Frame) {
	sender := f.SenderID
	if sender == "" {
		sender = chatID
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(domain.InboundMessage{
		ID:        uuid.NewString(),
		ChannelID: ChannelID,
		SenderID:  sender,
		ChatID:    chatID,
		Content:   f.Content,
		Media:     f.Media,
		Metadata:  f.Metadata,
		Timestamp: time.Now(),
	})
}

// drop forgets cn if it still holds chatID.
func (c *Channel) drop(chatID string, cn *conn) {
	c.mu.Lock()
	if c.conns[chatID] == cn {
		delete(c.conns, chatID)
	}
	c.mu.Unlock()
	cn.ws.Close()
	c.log.Info().Str("chatId", chatID).Msg("client disconnected")
}

func (c *Channel) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.running = false
	c.mu.Unlock()
}

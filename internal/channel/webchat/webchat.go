package webchat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/assisthub/assist-gateway/internal/channel"
)

// Adapter serves a websocket chat endpoint mounted on the gateway's HTTP mux
type Adapter struct {
	enabled  bool
	incoming chan *channel.Message
	upgrader websocket.Upgrader
	conns    map[string]*websocket.Conn
	connMux  sync.RWMutex
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	UserID  string `json:"user_id,omitempty"`
}

func New(enabled bool, logger *slog.Logger) *Adapter {
	return &Adapter{
		enabled:  enabled,
		incoming: make(chan *channel.Message, 100),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:  make(map[string]*websocket.Conn),
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

func (w *Adapter) Name() string {
	return "webchat"
}

func (w *Adapter) IsEnabled() bool {
	return w.enabled
}

// Start is a no-op; the websocket endpoint is mounted by the HTTP server
// via Handler. The context closes active connections on shutdown.
func (w *Adapter) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.stopOnce.Do(func() { close(w.stopCh) })
	}()
	return nil
}

// Stop signals connection handlers to wind down. incoming stays open;
// a handler goroutine may still be mid-send and consumers drain via
// their context.
func (w *Adapter) Stop() error {
	w.stopOnce.Do(func() { close(w.stopCh) })
	return nil
}

func (w *Adapter) SendMessage(userID string, resp *channel.Response) error {
	w.connMux.RLock()
	conn, exists := w.conns[userID]
	w.connMux.RUnlock()

	if !exists {
		return nil // client disconnected, nothing to deliver
	}

	msg := wsMessage{
		Type:    "message",
		Content: resp.Content,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return conn.WriteMessage(websocket.TextMessage, data)
}

func (w *Adapter) Incoming() <-chan *channel.Message {
	return w.incoming
}

// Handler returns the websocket upgrade handler for the gateway mux
func (w *Adapter) Handler() http.HandlerFunc {
	return w.wsHandler
}

func (w *Adapter) wsHandler(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "anonymous_" + strconv.FormatInt(time.Now().Unix(), 10)
	}

	w.connMux.Lock()
	w.conns[userID] = conn
	w.connMux.Unlock()

	defer func() {
		w.connMux.Lock()
		delete(w.conns, userID)
		w.connMux.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-w.stopCh:
			return
		default:
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}

			if msg.Type == "message" {
				w.incoming <- &channel.Message{
					ID:        strconv.FormatInt(time.Now().UnixNano(), 10),
					Channel:   "webchat",
					UserID:    userID,
					Role:      channel.RoleUser,
					Content:   msg.Content,
					Metadata:  map[string]string{"connection_id": userID},
					Timestamp: time.Now().Unix(),
				}
			}
		}
	}
}

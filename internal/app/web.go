package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/motion_gestures/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

const (
	wsWriteWait  = 5 * time.Second
	wsClientSend = 16
)

// Hub keeps the latest gesture and pushes every new one to the connected
// websocket clients. A client that cannot keep up is disconnected.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	last    GestureEvent
	have    bool
	clients map[*hubClient]struct{}
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{logger: logger, clients: make(map[*hubClient]struct{})}
}

// Publish records ev as the latest gesture and broadcasts it.
func (h *Hub) Publish(ev GestureEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("web: gesture marshal error", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = ev
	h.have = true
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("web: websocket client too slow, dropping", zap.String("remote", c.conn.RemoteAddr().String()))
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Last returns the latest gesture, if any.
func (h *Hub) Last() (GestureEvent, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last, h.have
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleLast serves the latest gesture as JSON.
func (h *Hub) HandleLast(w http.ResponseWriter, _ *http.Request) {
	ev, ok := h.Last()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ev); err != nil {
		h.logger.Warn("web: json encode error", zap.Error(err))
	}
}

// HandleWS upgrades the request and streams gestures to the client. The
// latest gesture, if any, is sent first.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("web: websocket upgrade error", zap.Error(err))
		return
	}

	c := &hubClient{conn: conn, send: make(chan []byte, wsClientSend)}

	h.mu.Lock()
	if h.have {
		if payload, err := json.Marshal(h.last); err == nil {
			c.send <- payload
		}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client messages and unregisters the client on close.
func (h *Hub) readLoop(c *hubClient) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.send)
		}
		h.mu.Unlock()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("web: websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("web: websocket write error", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}

// HandleMessage is the MQTT handler feeding the hub.
func (h *Hub) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	var ev GestureEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		h.logger.Warn("web: gesture unmarshal error", zap.Error(err))
		return
	}
	if err := ev.Validate(); err != nil {
		h.logger.Warn("web: invalid gesture event", zap.Error(err))
		return
	}
	h.Publish(ev)
}

// Routes returns the web server mux. staticDir is served at "/" when set.
func (h *Hub) Routes(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/gesture", h.HandleLast)
	mux.HandleFunc("/ws/gestures", h.HandleWS)
	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

// RunWeb subscribes to the gesture topic and serves the latest gesture over
// HTTP and websocket until ctx is done.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWeb, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hub := NewHub(logger)
	if err := subscribeJSON(client, cfg.TopicGesture, hub.HandleMessage); err != nil {
		return err
	}
	logger.Info("web: subscribed", zap.String("topic", cfg.TopicGesture))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           hub.Routes("web"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web: server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

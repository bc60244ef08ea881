package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"titleCountdown/internal/app/events"
	"titleCountdown/internal/app/runtime"
	"titleCountdown/internal/domain"
	"titleCountdown/internal/usecase/oauth"
)

// Controller is the part of the runtime the control API drives.
type Controller interface {
	Status() runtime.Status
	ApplySettings(settings domain.Settings) error
	Login(ctx context.Context) (*oauth.Attempt, error)
}

// Subscriber is satisfied by *events.Bus.
type Subscriber interface {
	Subscribe(topic string) (<-chan any, func())
}

type Config struct {
	Addr       string
	Logger     *zap.Logger
	Controller Controller
	Events     Subscriber
	Topics     []string
}

// Server exposes the local control API and streams runtime events over a
// websocket.
type Server struct {
	addr     string
	logger   *zap.Logger
	ctrl     Controller
	events   Subscriber
	topics   []string
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(v)
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	topics := cfg.Topics
	if len(topics) == 0 {
		topics = events.Topics
	}

	return &Server{
		addr:    cfg.Addr,
		logger:  logger,
		ctrl:    cfg.Controller,
		events:  cfg.Events,
		topics:  topics,
		clients: make(map[*wsClient]struct{}),
		// nil CheckOrigin rejects cross-origin browser pages.
		upgrader: websocket.Upgrader{},
	}
}

func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.healthCheckHandler).Methods("GET")
	r.HandleFunc("/api/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/api/settings", s.settingsHandler).Methods("POST")
	r.HandleFunc("/api/login", s.loginHandler).Methods("POST")
	r.HandleFunc("/ws/events", s.eventsHandler).Methods("GET")

	r.Use(s.loggingMiddleware)

	return r
}

// Start serves until ctx is done. It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.forwardEvents(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.closeClients()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("control api shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("control api listening", zap.String("addr", ln.Addr().String()))

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	s.logger.Debug("websocket client connected", zap.String("remote", r.RemoteAddr), zap.Int("clients", count))

	go s.readLoop(client)
}

// readLoop drains the connection so close frames are processed. Clients
// have nothing to send.
func (s *Server) readLoop(client *wsClient) {
	defer s.removeClient(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) forwardEvents(ctx context.Context) {
	if s.events == nil {
		return
	}

	var wg sync.WaitGroup
	for _, topic := range s.topics {
		ch, unsubscribe := s.events.Subscribe(topic)
		wg.Add(1)
		go func(topic string) {
			defer wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					s.Broadcast(topic, payload)
				}
			}
		}(topic)
	}
	wg.Wait()
}

// Broadcast sends one event to every connected client. Clients that fail a
// write are dropped.
func (s *Server) Broadcast(topic string, payload any) {
	raw, err := json.Marshal(envelope{Type: topic, Data: payload})
	if err != nil {
		s.logger.Error("encode event", zap.Error(err), zap.String("topic", topic))
		return
	}

	s.mu.RLock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(json.RawMessage(raw)); err != nil {
			s.logger.Debug("removing websocket client after write error", zap.Error(err))
			s.removeClient(c)
		}
	}
}

func (s *Server) removeClient(c *wsClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	count := len(s.clients)
	s.mu.Unlock()

	if ok {
		c.conn.Close()
		s.logger.Debug("websocket client disconnected", zap.Int("clients", count))
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[*wsClient]struct{})
	s.mu.Unlock()

	for c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		c.conn.Close()
	}
}

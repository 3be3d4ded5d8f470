package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/fault"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
)

// Config holds control server configuration
type Config struct {
	// Network settings
	ListenAddr string
	MaxClients int

	// Message settings
	WriteTimeout      time.Duration
	MaxMessageSize    int64
	MessageBufferSize int

	// Health monitoring
	HealthCheckInterval time.Duration
	ClientTimeout       time.Duration

	// WaitTimeout bounds WaitForClient; zero waits for ctx only.
	WaitTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:          "127.0.0.1:8080",
		MaxClients:          16,
		WriteTimeout:        5 * time.Second,
		MaxMessageSize:      64 * 1024,
		MessageBufferSize:   256,
		HealthCheckInterval: 10 * time.Second,
		ClientTimeout:       30 * time.Second,
	}
}

// ClientInfo describes a connected control client.
type ClientInfo struct {
	ID          uuid.UUID
	RemoteAddr  string
	ConnectedAt time.Time
}

// Stats contains server statistics
type Stats struct {
	ClientCount   int64
	TotalAccepted uint64
	Running       bool
}

// ControlServer serves the control panel over HTTP and WebSocket. Every
// change on the board is pushed to all clients; clients write controls with
// set messages.
type ControlServer struct {
	board  *controls.Board
	config Config
	logger log.Log

	httpServer *http.Server
	listener   net.Listener

	// Client management
	mu            sync.RWMutex
	clients       map[uuid.UUID]*clientSession
	clientCount   int64  // atomic
	totalAccepted uint64 // atomic

	// closed on the first accepted client
	firstClient     chan struct{}
	firstClientOnce sync.Once

	// Server state
	running int32 // atomic bool

	workerGroup sync.WaitGroup
	stopChan    chan struct{}
}

func NewControlServer(config Config, board *controls.Board, logger log.Log) *ControlServer {
	def := DefaultServerConfig()
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}
	if config.MessageBufferSize <= 0 {
		config.MessageBufferSize = def.MessageBufferSize
	}
	if config.HealthCheckInterval <= 0 {
		config.HealthCheckInterval = def.HealthCheckInterval
	}
	if config.ClientTimeout <= 0 {
		config.ClientTimeout = def.ClientTimeout
	}

	s := &ControlServer{
		board:       board,
		config:      config,
		logger:      logger.With(log.String("component", "control_server")),
		clients:     make(map[uuid.UUID]*clientSession),
		firstClient: make(chan struct{}),
	}
	board.OnChange(s.broadcastUpdate)

	s.logger.Info("Control server created",
		log.String("listen_addr", config.ListenAddr),
		log.Int("max_clients", config.MaxClients))
	return s
}

// Start binds the listen address and serves in the background.
func (s *ControlServer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return errors.Wrapf(err, "%s on %s", ErrListenerFailed, s.config.ListenAddr)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.stopChan = make(chan struct{})

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Control server stopped unexpectedly", log.Error(err))
		}
	}()
	s.startWorkers()

	s.logger.Info("Control server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Stop disconnects every client and shuts the HTTP server down.
func (s *ControlServer) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	s.logger.Info("Stopping control server")
	close(s.stopChan)

	for _, c := range s.sessions() {
		c.close()
	}

	err := s.httpServer.Shutdown(ctx)
	s.workerGroup.Wait()

	s.logger.Info("Control server stopped")
	return errors.Wrap(err, "shutdown control server")
}

// Addr is the bound address, or nil before Start.
func (s *ControlServer) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// URL is the control page address.
func (s *ControlServer) URL() string {
	if addr := s.Addr(); addr != nil {
		return "http://" + addr.String() + "/"
	}
	return "http://" + s.config.ListenAddr + "/"
}

// WaitForClient blocks until the first client has connected, ctx ends, or
// the configured wait timeout passes.
func (s *ControlServer) WaitForClient(ctx context.Context) error {
	var timeout <-chan time.Time
	if s.config.WaitTimeout > 0 {
		timer := time.NewTimer(s.config.WaitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-s.firstClient:
		return nil
	case <-ctx.Done():
		return fault.Interrupted(ctx.Err())
	case <-timeout:
		return fault.New(fault.KindControlDisconnected, "wait for control client", fault.ErrNoControlClient).
			WithContext("timeout", s.config.WaitTimeout)
	}
}

// Connected reports whether at least one client is attached.
func (s *ControlServer) Connected() bool {
	return atomic.LoadInt64(&s.clientCount) > 0
}

// Clients lists the attached clients, oldest first.
func (s *ControlServer) Clients() []ClientInfo {
	s.mu.RLock()
	out := make([]ClientInfo, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c.info)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b ClientInfo) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})
	return out
}

// GetStats returns server statistics
func (s *ControlServer) GetStats() Stats {
	return Stats{
		ClientCount:   atomic.LoadInt64(&s.clientCount),
		TotalAccepted: atomic.LoadUint64(&s.totalAccepted),
		Running:       atomic.LoadInt32(&s.running) == 1,
	}
}

func (s *ControlServer) register(c *clientSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= s.config.MaxClients {
		return ErrMaxClientsReached
	}
	s.clients[c.info.ID] = c
	atomic.AddInt64(&s.clientCount, 1)
	atomic.AddUint64(&s.totalAccepted, 1)
	s.firstClientOnce.Do(func() { close(s.firstClient) })
	return nil
}

func (s *ControlServer) unregister(c *clientSession) {
	s.mu.Lock()
	if _, ok := s.clients[c.info.ID]; ok {
		delete(s.clients, c.info.ID)
		atomic.AddInt64(&s.clientCount, -1)
	}
	s.mu.Unlock()
}

func (s *ControlServer) sessions() []*clientSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*clientSession, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

// broadcastUpdate is the board listener: every change goes to every client.
func (s *ControlServer) broadcastUpdate(name string, value any) {
	data, err := json.Marshal(Message{Action: ActionUpdate, Name: name, Value: value})
	if err != nil {
		s.logger.Error("Failed to encode update", log.String("control", name), log.Error(err))
		return
	}

	for _, c := range s.sessions() {
		if err := c.enqueue(data); err != nil {
			s.logger.Warn("Dropping slow control client",
				log.String("client_id", c.info.ID.String()), log.Error(err))
			c.close()
		}
	}
}

// startWorkers starts background worker goroutines
func (s *ControlServer) startWorkers() {
	s.workerGroup.Add(1)

	// Health monitor
	go func() {
		defer s.workerGroup.Done()
		s.healthMonitor()
	}()
}

// healthMonitor pings every client; a client that stops answering hits its
// read deadline and is dropped by its reader.
func (s *ControlServer) healthMonitor() {
	s.logger.Debug("Health monitor started")

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthChecks()
		case <-s.stopChan:
			s.logger.Debug("Health monitor stopped")
			return
		}
	}
}

func (s *ControlServer) performHealthChecks() {
	for _, c := range s.sessions() {
		if err := c.ping(s.config.WriteTimeout); err != nil {
			s.logger.Info("Disconnecting unreachable client",
				log.String("client_id", c.info.ID.String()), log.Error(err))
			c.close()
		}
	}
}

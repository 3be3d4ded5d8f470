// Package client provides a Go SDK for driving the virtual camera control
// panel over its websocket endpoint.
package client

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
	"github.com/zeusync/virtualcam/internal/server"
)

// Client is one control panel connection
type Client struct {
	// Connection management
	conn    *websocket.Conn
	writeMu sync.Mutex

	// Panel state mirrored from the server
	id       uuid.UUID
	controls []controls.Control
	values   map[string]any
	stateMu  sync.RWMutex
	synced   chan struct{}
	syncOnce sync.Once

	// Event handlers
	updateHandlers []UpdateHandler
	eventHandlers  map[EventType][]EventHandler
	handlerMutex   sync.RWMutex

	// Lifecycle
	connected int32 // atomic bool
	closed    int32 // atomic bool

	// Configuration and logging
	config Config
	logger log.Log

	// Background workers
	workerGroup sync.WaitGroup
}

// Config holds configuration for the client
type Config struct {
	// Connection settings
	ServerAddr     string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// Logging. Logger wins over LogLevel when set.
	LogLevel log.Level
	Logger   log.Log
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		ServerAddr:     "127.0.0.1:8080",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
		LogLevel:       log.LevelInfo,
	}
}

// UpdateHandler is called for every control change pushed by the server
type UpdateHandler func(name string, value any)

// EventHandler defines a function type for handling client events
type EventHandler func(event Event) error

// EventType represents different types of client events
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeError        EventType = "error"
)

// Event represents a client event
type Event struct {
	Type      EventType
	Timestamp time.Time
	Error     error
}

// NewClient creates a new control panel client
func NewClient(config Config) *Client {
	logger := config.Logger
	if logger == nil {
		logger = log.New(config.LogLevel)
	}

	client := &Client{
		id:            uuid.New(),
		values:        make(map[string]any),
		synced:        make(chan struct{}),
		eventHandlers: make(map[EventType][]EventHandler),
		config:        config,
	}
	client.logger = logger.With(log.String("component", "client"), log.String("client_id", client.id.String()))

	return client
}

// Connect dials the panel and blocks until the first snapshot arrived, so
// Value and Controls are usable as soon as it returns.
func (c *Client) Connect(ctx context.Context) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}

	if !atomic.CompareAndSwapInt32(&c.connected, 0, 1) {
		return ErrAlreadyConnected
	}

	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	endpoint := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/ws"}
	c.logger.Info("Connecting to control panel", log.String("url", endpoint.String()))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		atomic.StoreInt32(&c.connected, 0)
		return errors.Wrapf(err, "dial %s", endpoint.String())
	}
	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	c.stateMu.Lock()
	c.synced = make(chan struct{})
	c.syncOnce = sync.Once{}
	synced := c.synced
	c.stateMu.Unlock()

	readerDone := make(chan struct{})
	c.startWorkers(conn, readerDone)

	select {
	case <-synced:
	case <-ctx.Done():
		_ = c.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrConnectionTimeout
		}
		return ctx.Err()
	case <-readerDone:
		c.writeMu.Lock()
		_ = conn.Close()
		c.conn = nil
		c.writeMu.Unlock()
		atomic.StoreInt32(&c.connected, 0)
		return errors.Wrap(ErrNotConnected, "connection closed before snapshot")
	}

	c.logger.Info("Connected to control panel")
	c.emitEvent(Event{Type: EventTypeConnected, Timestamp: time.Now()})

	return nil
}

// Close closes the connection and waits for the workers to exit
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	var err error
	c.writeMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	}
	c.writeMu.Unlock()
	c.stopWorkers()

	c.logger.Info("Client closed")
	return err
}

// Set asks the server to change a control. The local mirror is only
// updated once the server broadcasts the accepted value.
func (c *Client) Set(name string, value any) error {
	return c.send(server.Message{Action: server.ActionSet, Name: name, Value: value})
}

// Refresh requests a fresh snapshot of the panel.
func (c *Client) Refresh() error {
	return c.send(server.Message{Action: server.ActionGet})
}

// Value returns the last known value of a control.
func (c *Client) Value(name string) (any, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	v, ok := c.values[name]
	return v, ok
}

// Controls returns the panel layout with current values.
func (c *Client) Controls() []controls.Control {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()

	out := make([]controls.Control, len(c.controls))
	for i, ctrl := range c.controls {
		ctrl.Value = c.values[ctrl.Name]
		out[i] = ctrl
	}
	return out
}

// OnUpdate registers a handler for control changes
func (c *Client) OnUpdate(handler UpdateHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.updateHandlers = append(c.updateHandlers, handler)
}

// OnEvent registers a handler for client events
func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
}

func (c *Client) ID() uuid.UUID     { return c.id }
func (c *Client) IsConnected() bool { return atomic.LoadInt32(&c.connected) == 1 }
func (c *Client) IsClosed() bool    { return atomic.LoadInt32(&c.closed) == 1 }

func (c *Client) send(msg server.Message) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return ErrClientClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if atomic.LoadInt32(&c.connected) == 0 || c.conn == nil {
		return ErrNotConnected
	}

	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return errors.Wrapf(err, "send %s", msg.Action)
	}
	return nil
}

// startWorkers starts background worker goroutines
func (c *Client) startWorkers(conn *websocket.Conn, readerDone chan struct{}) {
	c.workerGroup.Add(1)

	// Message receiver
	go func() {
		defer c.workerGroup.Done()
		defer close(readerDone)
		c.messageReceiver(conn)
	}()
}

// stopWorkers stops background worker goroutines
func (c *Client) stopWorkers() {
	// Workers stop once the connection is closed
	c.workerGroup.Wait()
}

// messageReceiver handles incoming messages
func (c *Client) messageReceiver(conn *websocket.Conn) {
	c.logger.Debug("Message receiver started")
	defer c.logger.Debug("Message receiver stopped")

	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			atomic.StoreInt32(&c.connected, 0)
			if atomic.LoadInt32(&c.closed) == 0 {
				c.logger.Warn("Connection lost", log.Error(err))
				c.emitEvent(Event{Type: EventTypeDisconnected, Timestamp: time.Now(), Error: err})
			}
			return
		}
		c.handleMessage(msg)
	}
}

// handleMessage processes an incoming message
func (c *Client) handleMessage(msg server.Message) {
	c.logger.Debug("Handling message", log.String("action", msg.Action), log.String("name", msg.Name))

	switch msg.Action {
	case server.ActionSnapshot:
		c.stateMu.Lock()
		c.controls = msg.Controls
		c.values = make(map[string]any, len(msg.Controls))
		for _, ctrl := range msg.Controls {
			c.values[ctrl.Name] = ctrl.Value
		}
		synced := c.synced
		c.stateMu.Unlock()
		c.syncOnce.Do(func() { close(synced) })

	case server.ActionUpdate:
		c.stateMu.Lock()
		c.values[msg.Name] = msg.Value
		c.stateMu.Unlock()

		c.handlerMutex.RLock()
		handlers := append([]UpdateHandler(nil), c.updateHandlers...)
		c.handlerMutex.RUnlock()
		for _, h := range handlers {
			h(msg.Name, msg.Value)
		}

	case server.ActionError:
		c.logger.Warn("Server rejected request", log.String("error", msg.Error))
		c.emitEvent(Event{
			Type:      EventTypeError,
			Timestamp: time.Now(),
			Error:     errors.Wrap(ErrRequestRejected, msg.Error),
		})

	default:
		c.logger.Warn("Unknown action", log.String("action", msg.Action))
	}
}

// emitEvent emits an event to registered handlers
func (c *Client) emitEvent(event Event) {
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, handler := range handlers {
		go func(h EventHandler) {
			if err := h(event); err != nil {
				c.logger.Error("Event handler error", log.Error(err))
			}
		}(handler)
	}
}

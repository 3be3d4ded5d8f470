package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/virtualcam/internal/core/controls"
	"github.com/zeusync/virtualcam/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// clientSession is one websocket connection. All data frames go through
// send and are written by writePump; pings use WriteControl, which gorilla
// allows concurrently.
type clientSession struct {
	info   ClientInfo
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger log.Log
}

func (c *clientSession) enqueue(data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSlowClient
	}
}

func (c *clientSession) ping(timeout time.Duration) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout))
}

func (c *clientSession) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (s *ControlServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", log.Error(err))
		return
	}

	c := &clientSession{
		info: ClientInfo{
			ID:          uuid.New(),
			RemoteAddr:  conn.RemoteAddr().String(),
			ConnectedAt: time.Now(),
		},
		conn: conn,
		send: make(chan []byte, s.config.MessageBufferSize),
		done: make(chan struct{}),
	}
	c.logger = s.logger.With(log.String("client_id", c.info.ID.String()))

	// no change is dispatched between taking the snapshot and registering,
	// so the client sees every later change exactly once and after it
	err = s.board.WithControls(func(cs []controls.Control) error {
		snapshot, err := json.Marshal(Message{Action: ActionSnapshot, Controls: cs})
		if err != nil {
			return err
		}
		if err := c.enqueue(snapshot); err != nil {
			return err
		}
		return s.register(c)
	})
	if err != nil {
		c.logger.Warn("Rejecting control client", log.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(s.config.WriteTimeout))
		c.close()
		return
	}

	s.logger.Info("Control client connected",
		log.String("client_id", c.info.ID.String()),
		log.String("remote_addr", c.info.RemoteAddr),
		log.Int64("total_clients", s.GetStats().ClientCount))

	go s.writePump(c)
	s.readPump(c)
}

// readPump handles incoming messages until the connection fails, then
// unregisters the client.
func (s *ControlServer) readPump(c *clientSession) {
	defer func() {
		s.unregister(c)
		c.close()
		s.logger.Info("Control client disconnected",
			log.String("client_id", c.info.ID.String()),
			log.Int64("total_clients", s.GetStats().ClientCount))
	}()

	c.conn.SetReadLimit(s.config.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.config.ClientTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.config.ClientTimeout))
	})

	for {
		_, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Failed to receive message", log.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(s.config.ClientTimeout))

		var msg Message
		if err = json.Unmarshal(p, &msg); err != nil {
			s.reply(c, Message{Action: ActionError, Error: errors.Wrap(ErrInvalidMessage, err.Error()).Error()})
			continue
		}
		s.handleMessage(c, msg)
	}
}

func (s *ControlServer) handleMessage(c *clientSession, msg Message) {
	c.logger.Debug("Handling message", log.String("action", msg.Action), log.String("control", msg.Name))

	switch msg.Action {
	case ActionSet:
		if err := s.board.SetFromClient(msg.Name, msg.Value); err != nil {
			c.logger.Warn("Rejected control write", log.String("control", msg.Name), log.Error(err))
			s.reply(c, Message{Action: ActionError, Name: msg.Name, Error: err.Error()})
		}
	case ActionGet:
		_ = s.board.WithControls(func(cs []controls.Control) error {
			s.reply(c, Message{Action: ActionSnapshot, Controls: cs})
			return nil
		})
	default:
		s.reply(c, Message{Action: ActionError, Error: ErrInvalidMessage.Error() + ": unknown action " + msg.Action})
	}
}

func (s *ControlServer) reply(c *clientSession, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to encode reply", log.Error(err))
		return
	}
	if err = c.enqueue(data); err != nil {
		c.logger.Warn("Failed to queue reply", log.Error(err))
		c.close()
	}
}

func (s *ControlServer) writePump(c *clientSession) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Warn("Failed to send message", log.Error(err))
				c.close()
				return
			}
		}
	}
}

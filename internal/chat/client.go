package chat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type ClientOptions struct {
	SendBuffer     int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	return o
}

// Client is a websocket Conn. A single writer goroutine drains the send queue,
// so messages reach the socket in the order the router queued them.
type Client struct {
	id       string
	username string
	ws       *websocket.Conn
	router   *Router
	log      *slog.Logger
	opts     ClientOptions

	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(ws *websocket.Conn, username string, router *Router, log *slog.Logger, opts ClientOptions) *Client {
	opts = opts.withDefaults()
	id := uuid.NewString()

	return &Client{
		id:       id,
		username: username,
		ws:       ws,
		router:   router,
		log:      log.With(slog.String("conn_id", id), slog.String("username", username)),
		opts:     opts,
		send:     make(chan Message, opts.SendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Username() string {
	return c.username
}

func (c *Client) Send(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Run serves the connection until the peer goes away. It blocks.
func (c *Client) Run() {
	c.router.Connect(c)
	defer func() {
		c.router.Disconnect(c)
		c.Close()
	}()

	go c.writeLoop()
	c.readLoop()
}

func (c *Client) readLoop() {
	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		var ev Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("chat read failed", slog.Any("error", err))
			}
			return
		}

		if err := c.router.Handle(c, ev); err != nil {
			c.log.Warn("chat event rejected", slog.String("type", string(ev.Type)), slog.Any("error", err))
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.Debug("chat write failed", slog.Any("error", err))
				c.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

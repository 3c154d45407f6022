package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/freeeve/negotiator/internal/logger"
)

// Client is a websocket connection to a session host.
type Client struct {
	hostURL string
	token   string
	log     zerolog.Logger

	conn     *websocket.Conn
	events   chan Envelope
	done     chan struct{} // closed by Close
	readDone chan struct{} // closed when readLoop exits
	mu       sync.Mutex
	closed   bool
}

// NewClient creates a client for the given host URL. http and https URLs are
// rewritten to ws and wss.
func NewClient(hostURL, token string) *Client {
	return &Client{
		hostURL:  hostURL,
		token:    token,
		log:      log.Logger,
		events:   make(chan Envelope, 64),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
	}
}

// SetLogger replaces the logger used for frame tracing.
func (c *Client) SetLogger(l zerolog.Logger) { c.log = l }

// Connect dials the host and starts reading frames.
func (c *Client) Connect(ctx context.Context) error {
	u, err := dialURL(c.hostURL, c.token)
	if err != nil {
		return err
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	c.conn = conn
	c.log.Debug().Str("host", u.Host).Msg("Connected to session host")

	go c.readLoop()
	return nil
}

// dialURL maps http(s) host URLs to ws(s) and adds the token query parameter.
func dialURL(hostURL, token string) (*url.URL, error) {
	u, err := url.Parse(hostURL)
	if err != nil {
		return nil, fmt.Errorf("parse host url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported host url scheme %q", u.Scheme)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// Events returns the channel of inbound envelopes. It is closed when the
// connection drops.
func (c *Client) Events() <-chan Envelope { return c.events }

// Send writes one envelope.
func (c *Client) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", env.Type, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed {
		return websocket.ErrCloseSent
	}
	logger.LogFrame(c.log, "out", data)
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure and closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.closed {
		c.closed = true
		close(c.done)
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) readLoop() {
	defer close(c.readDone)
	defer close(c.events)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.log.Debug().Err(err).Msg("WS read error")
			}
			return
		}
		logger.LogFrame(c.log, "in", msg)
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			c.log.Warn().Err(err).Msg("Dropping malformed frame")
			continue
		}
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}

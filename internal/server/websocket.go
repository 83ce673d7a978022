package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/battlefield/internal/core/battlefield"
	"github.com/zeusync/battlefield/internal/core/observability/log"
	"github.com/zeusync/battlefield/pkg/generic"
)

const (
	writeWait      = 5 * time.Second
	clientSendSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

var encodeBuffers = generic.NewPool(func() *bytes.Buffer { return new(bytes.Buffer) }, (*bytes.Buffer).Reset)

// Message is one tick as seen by spectators.
type Message struct {
	Tick   uint64         `json:"tick"`
	Digest string         `json:"digest"`
	Events []EventMessage `json:"events"`
	Errors []string       `json:"errors,omitempty"`
}

type EventMessage struct {
	Type string            `json:"type"`
	Data battlefield.Event `json:"data"`
}

// NewMessage converts a tick report into its wire form.
func NewMessage(r battlefield.Report) Message {
	msg := Message{
		Tick:   r.Tick,
		Digest: strconv.FormatUint(r.Digest, 16),
		Events: make([]EventMessage, 0, len(r.Events)),
	}
	for _, e := range r.Events {
		msg.Events = append(msg.Events, EventMessage{Type: e.Type(), Data: e})
	}
	for _, err := range r.Errors {
		msg.Errors = append(msg.Errors, err.Error())
	}
	return msg
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Feed broadcasts tick reports to read-only websocket spectators.
// Anything a spectator sends is discarded.
type Feed struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	logger  log.Log
}

func NewFeed(logger log.Log) *Feed {
	return &Feed{
		clients: make(map[*client]struct{}),
		logger:  logger.With(log.String("component", "feed")),
	}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("Upgrade failed", log.String("remote", r.RemoteAddr), log.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendSize)}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	f.logger.Info("Spectator connected", log.String("remote", conn.RemoteAddr().String()))

	go f.writeLoop(c)
	f.readLoop(c)
}

// Broadcast sends the report to every spectator. Spectators whose buffer is
// full are dropped rather than slowing the tick loop.
func (f *Feed) Broadcast(r battlefield.Report) error {
	buf := encodeBuffers.Get()
	defer encodeBuffers.Put(buf)
	if err := json.NewEncoder(buf).Encode(NewMessage(r)); err != nil {
		return err
	}
	payload := bytes.Clone(buf.Bytes())

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrServerClosed
	}
	for c := range f.clients {
		select {
		case c.send <- payload:
		default:
			f.logger.Warn("Dropping slow spectator", log.String("remote", c.conn.RemoteAddr().String()))
			delete(f.clients, c)
			c.close()
		}
	}
	return nil
}

func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every spectator and refuses new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for c := range f.clients {
		delete(f.clients, c)
		c.close()
	}
}

// ListenAndServe serves the feed on addr under path until ctx is done.
func (f *Feed) ListenAndServe(ctx context.Context, addr, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, f)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: writeWait}

	errCh := make(chan error, 1)
	go func() {
		f.logger.Info("Feed listening", log.String("addr", addr), log.String("path", path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		f.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (f *Feed) writeLoop(c *client) {
	defer func() { _ = c.conn.Close() }()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			f.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (f *Feed) readLoop(c *client) {
	defer f.drop(c)
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

func (f *Feed) drop(c *client) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		c.close()
	}
	f.mu.Unlock()
}

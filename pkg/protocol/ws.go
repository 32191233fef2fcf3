package protocol

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// WebSocket is a hub connection that dials lazily and redials after the
// hub goes away. A reader goroutine per connection answers pings, notices
// close frames and hands text frames to the receive callback.
type WebSocket struct {
	mu      sync.Mutex
	conn    *ws.Conn
	url     string
	timeout time.Duration
	recv    func([]byte)
	readers sync.WaitGroup
}

// NewWebSocket does not dial. recv may be nil, in which case inbound frames
// are discarded.
func NewWebSocket(url string, timeout time.Duration, recv func([]byte)) *WebSocket {
	log.Debug("init websocket protocol", "url", url)

	return &WebSocket{
		url:     url,
		timeout: timeout,
		recv:    recv,
	}
}

func (web *WebSocket) dialLocked(ctx context.Context) error {
	if web.conn != nil {
		return nil
	}

	if web.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, web.timeout)
		defer cancel()
	}

	conn, _, err := ws.DefaultDialer.DialContext(ctx, web.url, nil)
	if err != nil {
		return err
	}
	web.conn = conn

	web.readers.Add(1)
	go web.read(conn)

	log.Info("Connected to bus", "component", "bus", "url", web.url)
	return nil
}

func (web *WebSocket) read(conn *ws.Conn) {
	defer web.readers.Done()

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			if isClosed(err) {
				log.Warn("Bus connection closed", "component", "bus", "url", web.url, "err", err)
			} else {
				log.Debug("Bus read stopped", "component", "bus", "err", err)
			}
			web.drop(conn)
			return
		}

		log.Debug("Read ws", "msg", string(msg))

		if kind == ws.TextMessage && web.recv != nil {
			web.recv(msg)
		}
	}
}

// drop forgets conn if it is still the current one.
func (web *WebSocket) drop(conn *ws.Conn) {
	web.mu.Lock()
	defer web.mu.Unlock()

	if web.conn == conn {
		web.conn = nil
	}
	_ = conn.Close()
}

// Write sends one text frame, connecting first if needed. On failure the
// connection is dropped so the next Write redials.
func (web *WebSocket) Write(ctx context.Context, payload []byte) error {
	web.mu.Lock()
	defer web.mu.Unlock()

	if err := web.dialLocked(ctx); err != nil {
		return err
	}

	log.Debug("Write ws", "msg", string(payload))

	if web.timeout > 0 {
		_ = web.conn.SetWriteDeadline(time.Now().Add(web.timeout))
	}

	if err := web.conn.WriteMessage(ws.TextMessage, payload); err != nil {
		_ = web.conn.Close()
		web.conn = nil
		return err
	}
	return nil
}

// Connected reports whether a live connection is held.
func (web *WebSocket) Connected() bool {
	web.mu.Lock()
	defer web.mu.Unlock()
	return web.conn != nil
}

// Close says goodbye to the hub and waits for the reader to exit.
func (web *WebSocket) Close() error {
	web.mu.Lock()
	var err error
	if web.conn != nil {
		err = web.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
		_ = web.conn.Close()
		web.conn = nil
	}
	web.mu.Unlock()

	web.readers.Wait()
	return err
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}

// Package transport owns the single connection to the remote evaluation
// service. The wire has no length prefix, delimiter, or acknowledgment: a
// response is "complete" when one idle window elapses with nothing readable.
// A remote computation slower than the window, or a burst split by the
// kernel, therefore yields a truncated response. That is the contract the
// deployed service expects, and it is kept as-is rather than upgraded to a
// framed protocol.
package transport

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

const readBufSize = 4096

// Conn is a client connection with idle-timeout response recovery. It is not
// safe for concurrent use; the protocol is strict request/response ping-pong
// enforced by the caller.
type Conn struct {
	Logger *zap.SugaredLogger

	conn        net.Conn
	dialTimeout time.Duration
}

type Option func(c *Conn)

func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) {
		c.Logger = l.Named("transport").Sugar()
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.dialTimeout = d
	}
}

// Dial connects to the remote service at addr over TCP.
func Dial(addr string, opts ...Option) (*Conn, error) {
	c := &Conn{
		Logger:      zap.NewNop().Sugar(),
		dialTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	c.conn = conn
	return c, nil
}

// Send writes the whole payload. There is no retry logic above what the
// kernel already provides for a stream socket.
func (c *Conn) Send(payload []byte) error {
	c.Logger.Debugw("sending payload", "bytes", len(payload))
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

// Receive accumulates whatever the peer writes until one idle window of the
// given duration elapses with no data, or the peer closes the connection.
// Transport faults are treated as end-of-response, not surfaced: a dropped
// connection looks like an empty or truncated reply by design.
func (c *Conn) Receive(window time.Duration) []byte {
	var buf bytes.Buffer
	chunk := make([]byte, readBufSize)
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(window)); err != nil {
			c.Logger.Debugf("setting read deadline: %s", err)
			break
		}
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// quiet window elapsed: response complete
				break
			}
			c.Logger.Debugf("read ended: %s", err)
			break
		}
	}
	c.Logger.Debugw("received response", "bytes", buf.Len())
	return buf.Bytes()
}

// RoundTrip sends one payload and collects one response. Send failures are
// swallowed like any other transport fault and show up as an empty response.
func (c *Conn) RoundTrip(payload []byte, window time.Duration) []byte {
	if err := c.Send(payload); err != nil {
		c.Logger.Debugf("send failed: %s", err)
		return nil
	}
	return c.Receive(window)
}

// Close half-closes the write side first so the peer sees a clean EOF, then
// closes the connection. Best effort on both.
func (c *Conn) Close() error {
	if tc, ok := c.conn.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			c.Logger.Debugf("half-close: %s", err)
		}
	}
	return c.conn.Close()
}

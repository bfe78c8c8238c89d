// Package oracletest runs a scripted stand-in for the remote evaluation
// service. It accepts one connection, reads newline-terminated requests, and
// answers each from a fixed script. Delayed and split replies exist to
// exercise the client's idle-timeout framing.
package oracletest

import (
	"bufio"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Reply is one scripted response. Body is written after Delay; if Then is
// set, it is written after a further ThenDelay, splitting the response in
// two. A request beyond the end of the script gets no reply at all.
type Reply struct {
	Body      string
	Delay     time.Duration
	Then      string
	ThenDelay time.Duration
	CloseConn bool // close the connection after writing Body
}

type Server struct {
	ln       net.Listener
	greeting string

	mu       sync.Mutex
	requests []string
	script   []Reply
}

type Option func(s *Server)

// WithGreeting makes the server write a banner as soon as the client
// connects, before any request arrives.
func WithGreeting(g string) Option {
	return func(s *Server) {
		s.greeting = g
	}
}

// Start listens on an ephemeral localhost port and serves the script on the
// first accepted connection. The listener is closed via t.Cleanup.
func Start(t *testing.T, script []Reply, opts ...Option) *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Server{ln: ln, script: script}
	for _, opt := range opts {
		opt(s)
	}

	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Requests returns a copy of the raw request lines received so far, trailing
// newlines included.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	if s.greeting != "" {
		io.WriteString(conn, s.greeting)
	}

	r := bufio.NewReader(conn)
	for i := 0; ; i++ {
		line, err := r.ReadString('\n')
		if line != "" {
			s.mu.Lock()
			s.requests = append(s.requests, line)
			s.mu.Unlock()
		}
		if err != nil {
			return
		}

		var rep Reply
		if i < len(s.script) {
			rep = s.script[i]
		}
		if rep.Delay > 0 {
			time.Sleep(rep.Delay)
		}
		if rep.Body != "" {
			io.WriteString(conn, rep.Body)
		}
		if rep.Then != "" {
			if rep.ThenDelay > 0 {
				time.Sleep(rep.ThenDelay)
			}
			io.WriteString(conn, rep.Then)
		}
		if rep.CloseConn {
			return
		}
	}
}

// Package repl classifies user input and runs the interactive session
// against a remote expression-evaluation service.
package repl

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guseggert/evalshell/payload"
	"github.com/guseggert/evalshell/transfer"
	"github.com/guseggert/evalshell/transport"
)

const banner = "evalshell: 'exit' to quit, ':raw <expr>' for passthrough, ':get'/':put' to transfer files.\n"

// Prompter supplies input lines. The production implementation wraps liner;
// tests script it.
type Prompter interface {
	// Prompt displays the prompt and returns one line without its trailing
	// newline. Any error ends the session: io.EOF for end of input, and
	// implementations map an interrupt to io.EOF as well.
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// Session is the interactive loop. It exclusively owns the connection for
// its lifetime; exactly one request is outstanding at any time.
type Session struct {
	Logger   *zap.SugaredLogger
	Conn     *transport.Conn
	Window   time.Duration
	Prompter Prompter
	Out      io.Writer
}

// Run drives the loop until exit, end of input, or interrupt, then closes
// the connection.
func (s *Session) Run() error {
	defer s.Conn.Close()

	// Print the server's greeting, if it sends one.
	if b := s.Conn.Receive(s.Window); len(b) > 0 {
		s.Out.Write(b)
	}
	io.WriteString(s.Out, banner)

	xfer := &transfer.Client{
		Logger: s.Logger.Named("transfer"),
		Conn:   s.Conn,
		Window: s.Window,
	}

	for {
		line, err := s.Prompter.Prompt(s.prompt())
		if err != nil {
			s.Logger.Debugf("prompt ended: %s", err)
			return nil
		}
		if line != "" {
			s.Prompter.AppendHistory(line)
		}

		cmd, err := ParseCommand(line)
		if err != nil {
			fmt.Fprintf(s.Out, "%s\n", err)
			continue
		}

		switch cmd.Kind {
		case CommandExit:
			return nil
		case CommandRaw:
			raw := cmd.Raw
			if !strings.HasSuffix(raw, "\n") {
				raw += "\n"
			}
			s.print(s.Conn.RoundTrip([]byte(raw), s.Window))
		case CommandPwd:
			s.print(s.Conn.RoundTrip([]byte(payload.Pwd()), s.Window))
		case CommandChangeDir:
			s.print(s.Conn.RoundTrip([]byte(payload.ChangeDir(cmd.Dir)), s.Window))
		case CommandShell:
			s.print(s.Conn.RoundTrip([]byte(payload.Shell(cmd.Shell)), s.Window))
		case CommandGet:
			res, err := xfer.Get(cmd.Remote, cmd.Local)
			if err != nil {
				fmt.Fprintf(s.Out, "get failed: %s\n", err)
				continue
			}
			fmt.Fprintf(s.Out, "fetched %d bytes -> %s\n", res.Size, res.Path)
		case CommandPut:
			res, err := xfer.Put(cmd.Local, cmd.Remote)
			if err != nil {
				fmt.Fprintf(s.Out, "put failed: %s\n", err)
				continue
			}
			fmt.Fprintf(s.Out, "sent %d bytes -> %s\n", res.Size, res.Path)
		}
	}
}

// prompt asks the remote side for its working directory before every line.
// Failures are swallowed and fall back to a bare marker.
func (s *Session) prompt() string {
	cwd := strings.TrimSpace(string(s.Conn.RoundTrip([]byte(payload.Pwd()), s.Window)))
	if cwd == "" {
		return "> "
	}
	return cwd + "$ "
}

// print writes response bytes as-is; no decoding that could fail.
func (s *Session) print(b []byte) {
	if len(b) > 0 {
		s.Out.Write(b)
	}
}

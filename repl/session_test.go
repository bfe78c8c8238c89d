package repl

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guseggert/evalshell/internal/oracletest"
	"github.com/guseggert/evalshell/transport"
)

const window = 100 * time.Millisecond

// scriptPrompter feeds canned lines and records the prompts it was shown.
type scriptPrompter struct {
	lines   []string
	i       int
	prompts []string
	history []string
}

func (p *scriptPrompter) Prompt(prompt string) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if p.i >= len(p.lines) {
		return "", io.EOF
	}
	line := p.lines[p.i]
	p.i++
	return line, nil
}

func (p *scriptPrompter) AppendHistory(line string) { p.history = append(p.history, line) }
func (p *scriptPrompter) Close() error              { return nil }

func runSession(t *testing.T, lines []string, script []oracletest.Reply, opts ...oracletest.Option) (*bytes.Buffer, *scriptPrompter, *oracletest.Server) {
	t.Helper()
	srv := oracletest.Start(t, script, opts...)
	conn, err := transport.Dial(srv.Addr())
	require.NoError(t, err)

	var out bytes.Buffer
	prompter := &scriptPrompter{lines: lines}
	sess := &Session{
		Logger:   zap.NewNop().Sugar(),
		Conn:     conn,
		Window:   window,
		Prompter: prompter,
		Out:      &out,
	}
	require.NoError(t, sess.Run())
	return &out, prompter, srv
}

func TestSessionPromptShowsRemoteCwd(t *testing.T) {
	// One prompt refresh, one pwd command, one more refresh, then exit.
	script := []oracletest.Reply{
		{Body: "/home/user\n"},
		{Body: "/home/user\n"},
		{Body: "/home/user\n"},
	}
	out, prompter, srv := runSession(t, []string{"pwd", "exit"}, script)

	require.Len(t, prompter.prompts, 2)
	assert.Equal(t, "/home/user$ ", prompter.prompts[0])
	assert.Contains(t, out.String(), "/home/user\n")

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	for _, r := range reqs {
		assert.Contains(t, r, "getcwd()")
	}
}

func TestSessionPromptFallsBack(t *testing.T) {
	// Oracle never answers, so every prompt degrades to the bare marker and
	// no error surfaces.
	_, prompter, _ := runSession(t, []string{"exit"}, nil)
	require.Len(t, prompter.prompts, 1)
	assert.Equal(t, "> ", prompter.prompts[0])
}

func TestSessionShellCommand(t *testing.T) {
	script := []oracletest.Reply{
		{Body: "/home/user\n"}, // prompt refresh
		{Body: "a.txt\nb.txt\n"},
	}
	out, _, srv := runSession(t, []string{"ls"}, script)

	assert.Contains(t, out.String(), "a.txt\nb.txt\n")
	reqs := srv.Requests()
	require.Len(t, reqs, 3) // prompt, shell, final prompt refresh
	assert.Contains(t, reqs[1], "subprocess")
	assert.Contains(t, reqs[1], "'ls'")
}

func TestSessionRawPassthrough(t *testing.T) {
	script := []oracletest.Reply{
		{Body: "/\n"},
		{Body: "42\n"},
	}
	out, _, srv := runSession(t, []string{":raw print(6*7)"}, script)

	assert.Contains(t, out.String(), "42\n")
	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	// Sent byte for byte as typed, newline appended.
	assert.Equal(t, "print(6*7)\n", reqs[1])
}

func TestSessionBareRawSendsNewline(t *testing.T) {
	_, _, srv := runSession(t, []string{":raw"}, nil)
	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "\n", reqs[1])
}

func TestSessionUsageErrorStaysLocal(t *testing.T) {
	out, _, srv := runSession(t, []string{":get", "exit"}, nil)

	assert.Contains(t, out.String(), "usage: :get <remote> [local]")
	// Only prompt refreshes reached the wire.
	for _, r := range srv.Requests() {
		assert.Contains(t, r, "getcwd()")
	}
}

func TestSessionGreetingAndBanner(t *testing.T) {
	out, _, _ := runSession(t, nil, nil, oracletest.WithGreeting("welcome to the service\n"))
	s := out.String()
	assert.True(t, strings.HasPrefix(s, "welcome to the service\n"))
	assert.Contains(t, s, "evalshell:")
}

func TestSessionGetFailureReported(t *testing.T) {
	script := []oracletest.Reply{
		{Body: "/\n"},                // prompt refresh
		{Body: "ERR: not found\n"},   // stat reply
		{Body: "/\n"}, {Body: "/\n"}, // later refreshes
	}
	out, _, _ := runSession(t, []string{":get missing.bin", "exit"}, script)
	assert.Contains(t, out.String(), "get failed: remote error: ERR: not found")
}

func TestSessionHistorySkipsEmptyLines(t *testing.T) {
	_, prompter, _ := runSession(t, []string{"", "pwd", "exit"}, nil)
	assert.Equal(t, []string{"pwd", "exit"}, prompter.history)
}

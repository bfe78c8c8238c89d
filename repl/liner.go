package repl

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
)

// LinePrompter is the terminal Prompter: arrow keys, ctrl-C, and a
// persistent history file.
type LinePrompter struct {
	state       *liner.State
	historyPath string
}

// NewLinePrompter sets up the terminal and loads history from historyPath if
// it exists. An empty path disables history persistence.
func NewLinePrompter(historyPath string) *LinePrompter {
	s := liner.NewLiner()
	s.SetCtrlCAborts(true)

	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			s.ReadHistory(f)
			f.Close()
		}
	}
	return &LinePrompter{state: s, historyPath: historyPath}
}

func (p *LinePrompter) Prompt(prompt string) (string, error) {
	line, err := p.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		// Interrupt ends the session the same way EOF does.
		return "", io.EOF
	}
	return line, err
}

func (p *LinePrompter) AppendHistory(line string) {
	p.state.AppendHistory(line)
}

// Close restores the terminal and writes history back out, creating the
// directory if needed. History failures are not worth failing the exit for.
func (p *LinePrompter) Close() error {
	if p.historyPath != "" {
		os.MkdirAll(filepath.Dir(p.historyPath), 0o755)
		if f, err := os.Create(p.historyPath); err == nil {
			p.state.WriteHistory(f)
			f.Close()
		}
	}
	return p.state.Close()
}

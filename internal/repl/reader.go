package repl

import (
	"io"
	"os"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
)

type LineReader interface {
	// Readline returns the next line, or io.EOF once input ends or the user
	// interrupts.
	Readline() (string, error)
	Close() error
}

type readlineReader struct {
	rl *readline.Instance
}

func NewReadlineReader(prompt string, historyFile string) (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      prompt,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		HistoryFile: historyFile,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating readline instance")
	}
	return &readlineReader{rl: rl}, nil
}

func (r *readlineReader) Readline() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (r *readlineReader) Close() error {
	return r.rl.Close()
}

// Command reword-repl is an interactive test REPL for paraphrase generation.
// Each line typed is paraphrased; structured TOML results go to stdout.
//
// Usage:
//
//	./reword-repl             # interactive, TOML on screen
//	./reword-repl > log.toml  # prompt on screen, TOML to file
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/Paranoid-AF/reword/generate"
)

const prompt = "> "

func main() {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open /dev/tty: %v\n", err)
		os.Exit(1)
	}
	defer tty.Close()

	oldState, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: raw mode: %v\n", err)
		os.Exit(1)
	}
	defer term.Restore(int(tty.Fd()), oldState)

	slog.SetDefault(slog.New(slog.NewTextHandler(termWriter(os.Stderr), &slog.HandlerOptions{Level: slog.LevelWarn})))

	screen := term.NewTerminal(tty, prompt)

	engine := generate.NewEngine()
	defer engine.Close()

	fmt.Fprintf(screen, "reword repl\n")
	fmt.Fprintf(screen, "\ncommands:\n")
	fmt.Fprintf(screen, "  :n <count>    set variants per sentence\n")
	fmt.Fprintf(screen, "  :save [path]  write the session's groups\n")
	fmt.Fprintf(screen, "  :clear        forget the session's groups\n")
	fmt.Fprintf(screen, "  :quit         exit\n\n")
	if !engine.Configured() {
		fmt.Fprintf(screen, "warning: no generation endpoint configured\n\n")
	}

	// stdout writer: converts \n to \r\n when stdout is a terminal (raw mode),
	// passes \n through unchanged when redirected to a file.
	out := termWriter(os.Stdout)

	sess := newSession(engine, engine.Config())
	for {
		line, err := screen.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Fprintf(screen, "read error: %v\n", err)
			break
		}

		if sess.handle(context.Background(), screen, out, line) {
			break
		}
	}
}

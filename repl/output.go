package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	reword "github.com/Paranoid-AF/reword"
)

// termWriter wraps a file and converts \n to \r\n when the file is a terminal
// (needed because raw mode disables the kernel's NL→CRNL translation).
// When the file is redirected, \n passes through unchanged.
func termWriter(f *os.File) io.Writer {
	if term.IsTerminal(int(f.Fd())) {
		return &crlfWriter{w: f}
	}
	return f
}

type crlfWriter struct {
	w io.Writer
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	replaced := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := c.w.Write(replaced)
	return len(p), err // report original length to caller
}

type entry struct {
	Request  entryRequest `toml:"request"`
	Variants []string     `toml:"variants,omitempty"`
	Error    *entryError  `toml:"error,omitempty"`
}

type entryError struct {
	Code    string `toml:"code"`
	Message string `toml:"message"`
}

type entryRequest struct {
	Timestamp    time.Time `toml:"timestamp"`
	RequestID    int       `toml:"request_id"`
	Sentence     string    `toml:"sentence"`
	VariantCount int       `toml:"variant_count"`
}

// writeEntry writes a single TOML-formatted entry to w.
func writeEntry(w io.Writer, req *reword.Request, resp *reword.Response) {
	e := entry{
		Request: entryRequest{
			Timestamp:    time.Now().Truncate(time.Second),
			RequestID:    req.RequestID,
			Sentence:     strings.Join(req.Sentences, " "),
			VariantCount: req.VariantCount,
		},
	}
	if resp.Error != nil {
		e.Error = &entryError{Code: resp.Error.Code, Message: resp.Error.Message}
	} else {
		e.Variants = resp.Variants
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", strings.Repeat("═", 60))
	if err := toml.NewEncoder(&buf).Encode(e); err != nil {
		slog.Error("failed to encode entry", "error", err)
		return
	}
	buf.WriteString("\n")
	w.Write(buf.Bytes())
}

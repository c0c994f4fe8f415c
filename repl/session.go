package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	reword "github.com/Paranoid-AF/reword"
	"github.com/Paranoid-AF/reword/dataset"
	"github.com/Paranoid-AF/reword/generate"
)

const defaultVariantCount = 5

// paraphraser is the engine surface the REPL needs.
type paraphraser interface {
	Paraphrase(ctx context.Context, req *reword.Request) *reword.Response
}

// session holds the REPL state: the variant count and the groups collected so far.
type session struct {
	engine paraphraser
	cfg    *reword.Config
	count  int
	reqID  int
	groups *dataset.Groups
}

func newSession(engine paraphraser, cfg *reword.Config) *session {
	return &session{
		engine: engine,
		cfg:    cfg,
		count:  defaultVariantCount,
		groups: dataset.NewGroups(),
	}
}

// handle processes one input line. tty receives the short summary, out the
// TOML record. It reports whether the REPL should exit.
func (s *session) handle(ctx context.Context, tty, out io.Writer, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false
	case line == ":quit" || line == ":q":
		return true
	case line == ":clear":
		s.groups = dataset.NewGroups()
		fmt.Fprintf(tty, "cleared\n\n")
		return false
	case line == ":n" || strings.HasPrefix(line, ":n "):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":n")))
		if err != nil || n <= 0 {
			fmt.Fprintf(tty, "error: count must be a positive integer\n")
			return false
		}
		s.count = n
		fmt.Fprintf(tty, "variants per sentence: %d\n\n", n)
		return false
	case line == ":save" || strings.HasPrefix(line, ":save "):
		s.save(tty, strings.TrimSpace(strings.TrimPrefix(line, ":save")))
		return false
	case strings.HasPrefix(line, ":"):
		fmt.Fprintf(tty, "unknown command: %s\n", line)
		return false
	}

	s.reqID++
	req := &reword.Request{
		RequestID:    s.reqID,
		Sentences:    []string{line},
		VariantCount: s.count,
	}
	resp := s.engine.Paraphrase(ctx, req)

	switch {
	case resp.Error != nil:
		fmt.Fprintf(tty, "error [%s]: %s\n", resp.Error.Code, resp.Error.Message)
	default:
		for i, v := range resp.Variants {
			fmt.Fprintf(tty, "  %d. %s\n", i+1, v)
		}
		if len(resp.Variants) > 0 {
			s.groups.Set(resp.Variants[0], resp.Variants[1:])
		}
	}
	fmt.Fprintf(tty, "\n")

	writeEntry(out, req, resp)
	return false
}

func (s *session) save(tty io.Writer, path string) {
	if s.groups.Len() == 0 {
		fmt.Fprintf(tty, "nothing to save\n\n")
		return
	}
	var err error
	if path == "" {
		path, err = reword.ResolveOutputPath(s.cfg)
	} else {
		path, err = reword.ExpandPath(path)
	}
	if err != nil {
		fmt.Fprintf(tty, "error: %v\n\n", err)
		return
	}
	if err := dataset.Write(path, s.groups); err != nil {
		fmt.Fprintf(tty, "error [%s]: %v\n\n", generate.CodeSaveError, err)
		return
	}
	fmt.Fprintf(tty, "saved %d groups to %s\n\n", s.groups.Len(), path)
}

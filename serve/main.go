// Command rewordd is the reword daemon.
// It listens on a Unix domain socket for paraphrase requests and answers each
// with the generated variants, optionally saving the grouped artifact.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every request and response")
	socket := flag.String("socket", "", "socket path (default $REWORD_SOCKET, then $XDG_RUNTIME_DIR/reword.sock)")
	flag.Parse()

	if *showVersion {
		fmt.Println("rewordd", Version)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	sockPath := *socket
	if sockPath == "" {
		sockPath = resolveSocketPath()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := NewServer(sockPath)
	if err != nil {
		slog.Error("failed to start server", "socket", sockPath, "error", err)
		os.Exit(1)
	}
	if err := run(ctx, srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is done, then closes srv and removes its socket.
func run(ctx context.Context, srv *Server) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			srv.Close()
		case <-done:
		}
	}()
	defer srv.Close()

	slog.Info("ready", "socket", srv.sockPath, "version", Version)
	return srv.Serve()
}

func resolveSocketPath() string {
	if path := os.Getenv("REWORD_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/reword.sock"
	}
	return fmt.Sprintf("/tmp/reword-%d.sock", os.Getuid())
}

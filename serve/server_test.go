package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	reword "github.com/Paranoid-AF/reword"
	defaults "github.com/Paranoid-AF/reword/default"
)

// stubParaphraser returns a fixed response for testing.
type stubParaphraser struct {
	resp   *reword.Response
	closed atomic.Bool
}

func (s *stubParaphraser) Paraphrase(_ context.Context, _ *reword.Request) *reword.Response {
	// Return a copy to avoid races when the server sets RequestID
	return &reword.Response{
		Variants: s.resp.Variants,
		Error:    s.resp.Error,
	}
}

func (s *stubParaphraser) Close() { s.closed.Store(true) }

func emptyStub() *stubParaphraser {
	return &stubParaphraser{resp: &reword.Response{Variants: []string{}}}
}

var testSocketCounter atomic.Int64

func newTestServer(t *testing.T, p Paraphraser) *Server {
	t.Helper()
	return newTestServerWithFactory(t, func() Paraphraser { return p })
}

func newTestServerWithFactory(t *testing.T, newEngine func() Paraphraser) *Server {
	t.Helper()
	// Use /tmp directly to avoid macOS 104-char Unix socket path limit
	n := testSocketCounter.Add(1)
	sockPath := fmt.Sprintf("/tmp/reword-t%d-%d.sock", os.Getpid(), n)
	srv, err := NewServerWithParaphraser(sockPath, newEngine)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	go srv.Serve()
	return srv
}

func sendRaw(t *testing.T, sockPath string, line []byte) string {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.Write(append(line, '\n'))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatal("no response from server")
	}
	return scanner.Text()
}

func sendRequest(t *testing.T, sockPath string, req *reword.Request) *reword.Response {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	var resp reword.Response
	if err := json.Unmarshal([]byte(sendRaw(t, sockPath, data)), &resp); err != nil {
		t.Fatal(err)
	}
	return &resp
}

func sendConfigRequest(t *testing.T, sockPath string, req *reword.ConfigRequest) *reword.ConfigResponse {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	var resp reword.ConfigResponse
	if err := json.Unmarshal([]byte(sendRaw(t, sockPath, data)), &resp); err != nil {
		t.Fatal(err)
	}
	return &resp
}

func TestHandleConnEchoesRequestID(t *testing.T) {
	srv := newTestServer(t, emptyStub())

	resp := sendRequest(t, srv.sockPath, &reword.Request{
		RequestID:    17,
		Sentences:    []string{"This is an example sentence"},
		VariantCount: 5,
	})

	if resp.RequestID != 17 {
		t.Errorf("expected request_id 17, got %d", resp.RequestID)
	}
}

func TestHandleConnVariantsNotNull(t *testing.T) {
	srv := newTestServer(t, emptyStub())

	data, _ := json.Marshal(&reword.Request{RequestID: 1, Sentences: []string{"a"}, VariantCount: 1})
	raw := sendRaw(t, srv.sockPath, data)
	if !strings.Contains(raw, `"variants":[]`) {
		t.Errorf("expected variants:[] in raw JSON, got %s", raw)
	}
}

func TestHandleConnMalformedRequest(t *testing.T) {
	srv := newTestServer(t, emptyStub())

	raw := sendRaw(t, srv.sockPath, []byte(`{"request_id":1,"sentences":["a"],"variant_count":true}`))
	if !strings.Contains(raw, `"invalid_input"`) || !strings.Contains(raw, `"variants":[]`) {
		t.Errorf("expected invalid_input error with empty variants, got %s", raw)
	}
}

// slowParaphraser blocks until its context is cancelled.
type slowParaphraser struct {
	mu        sync.Mutex
	cancelled []int // request IDs whose contexts were cancelled
}

func (s *slowParaphraser) Paraphrase(ctx context.Context, req *reword.Request) *reword.Response {
	<-ctx.Done()
	s.mu.Lock()
	s.cancelled = append(s.cancelled, req.RequestID)
	s.mu.Unlock()
	return &reword.Response{Variants: []string{}}
}

func (s *slowParaphraser) Close() {}

func (s *slowParaphraser) wasCancelled(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cancelled {
		if c == id {
			return true
		}
	}
	return false
}

func TestHandleConnCancelsOldSession(t *testing.T) {
	slow := &slowParaphraser{}
	srv := newTestServer(t, slow)

	conn1, err := net.Dial("unix", srv.sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn1.Close()

	req1, _ := json.Marshal(&reword.Request{RequestID: 1, SessionID: "sess1", Sentences: []string{"a"}, VariantCount: 2})
	conn1.Write(append(req1, '\n'))

	// Give the server time to start processing req1.
	time.Sleep(50 * time.Millisecond)

	conn2, err := net.Dial("unix", srv.sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn2.Close()

	req2, _ := json.Marshal(&reword.Request{RequestID: 2, SessionID: "sess1", Sentences: []string{"b"}, VariantCount: 2})
	conn2.Write(append(req2, '\n'))

	time.Sleep(50 * time.Millisecond)

	if !slow.wasCancelled(1) {
		t.Error("expected request 1 to be cancelled when request 2 arrived for the same session")
	}
	if slow.wasCancelled(2) {
		t.Error("request 2 must stay in flight")
	}

	// The superseded request gets no response.
	conn1.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if bufio.NewScanner(conn1).Scan() {
		t.Error("expected no response for cancelled request")
	}
}

func TestConfigDefaultsAction(t *testing.T) {
	srv := newTestServer(t, emptyStub())

	resp := sendConfigRequest(t, srv.sockPath, &reword.ConfigRequest{Action: "defaults"})

	if resp.Error != nil {
		t.Fatalf("unexpected error: %s", resp.Error.Message)
	}
	if resp.Config == nil {
		t.Fatal("expected non-nil config")
	}
	if resp.Config.Generation.Model == "" {
		t.Error("expected non-empty generation model")
	}
	if resp.Config.Embedding.Model == "" {
		t.Error("expected non-empty embedding model")
	}
}

func TestConfigDefaultPromptAction(t *testing.T) {
	srv := newTestServer(t, emptyStub())

	resp := sendConfigRequest(t, srv.sockPath, &reword.ConfigRequest{Action: "default_prompt"})
	if resp.Prompt != defaults.DefaultPrompt {
		t.Errorf("expected embedded default prompt, got %q", resp.Prompt)
	}
}

func TestConfigGetAndValidate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REWORD_CONFIG_DIR", dir)
	t.Setenv("REWORD_GENERATION_API_BASE_URL", "")
	cfg := `{"version":1,"generation":{"base_url":"","api_type":"seq2seq","model":"m"}}`
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, emptyStub())

	got := sendConfigRequest(t, srv.sockPath, &reword.ConfigRequest{Action: "get"})
	if got.Error != nil || got.Config == nil || got.Config.Generation.APIType != "seq2seq" {
		t.Fatalf("unexpected get response %+v", got)
	}

	val := sendConfigRequest(t, srv.sockPath, &reword.ConfigRequest{Action: "validate"})
	if len(val.Warnings) == 0 {
		t.Error("expected warnings for unknown api_type and missing base_url")
	}
}

func TestConfigGetBrokenFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REWORD_CONFIG_DIR", dir)
	os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0644)
	srv := newTestServer(t, emptyStub())

	resp := sendConfigRequest(t, srv.sockPath, &reword.ConfigRequest{Action: "get"})
	if resp.Error == nil || resp.Error.Code != "config_error" {
		t.Errorf("expected config_error, got %+v", resp.Error)
	}
}

func TestConfigUnknownAction(t *testing.T) {
	srv := newTestServer(t, emptyStub())

	resp := sendConfigRequest(t, srv.sockPath, &reword.ConfigRequest{Action: "explode"})
	if resp.Error == nil || resp.Error.Code != "unknown_action" {
		t.Errorf("expected unknown_action, got %+v", resp.Error)
	}
}

func TestConfigReloadSwapsEngine(t *testing.T) {
	t.Setenv("REWORD_CONFIG_DIR", t.TempDir())

	var built []*stubParaphraser
	var mu sync.Mutex
	srv := newTestServerWithFactory(t, func() Paraphraser {
		mu.Lock()
		defer mu.Unlock()
		s := &stubParaphraser{resp: &reword.Response{Variants: []string{fmt.Sprint(len(built))}}}
		built = append(built, s)
		return s
	})

	before := sendRequest(t, srv.sockPath, &reword.Request{RequestID: 1, Sentences: []string{"a"}, VariantCount: 1})
	resp := sendConfigRequest(t, srv.sockPath, &reword.ConfigRequest{Action: "reload"})
	if resp.Error != nil || resp.Config == nil {
		t.Fatalf("unexpected reload response %+v", resp)
	}
	after := sendRequest(t, srv.sockPath, &reword.Request{RequestID: 2, Sentences: []string{"a"}, VariantCount: 1})

	if before.Variants[0] != "0" || after.Variants[0] != "1" {
		t.Errorf("expected reload to swap engines, got %v then %v", before.Variants, after.Variants)
	}
	mu.Lock()
	defer mu.Unlock()
	if !built[0].closed.Load() {
		t.Error("expected old engine to be closed")
	}
}

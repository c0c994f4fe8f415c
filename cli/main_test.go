package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"

	reword "github.com/Paranoid-AF/reword"
	"github.com/Paranoid-AF/reword/dataset"
	"github.com/Paranoid-AF/reword/generate"
)

// stubEngine paraphrases "s" into "s", "s (1)", "s (2)", ... and saves like
// the real engine does.
type stubEngine struct {
	reqs []*reword.Request
}

func (s *stubEngine) Paraphrase(_ context.Context, req *reword.Request) *reword.Response {
	s.reqs = append(s.reqs, req)
	var variants []string
	for _, sent := range req.Sentences {
		variants = append(variants, sent)
		for j := 1; j < req.VariantCount; j++ {
			variants = append(variants, sent+" ("+string(rune('0'+j))+")")
		}
	}
	resp := &reword.Response{Variants: variants}
	if req.Output != "" {
		rep, err := dataset.Save(req.Output, req.Sentences, variants)
		if err != nil {
			resp.Error = &reword.Error{Code: generate.CodeSaveError, Message: err.Error()}
			return resp
		}
		resp.Report = &reword.Report{Path: req.Output, Keys: rep.Keys, VariantCount: rep.VariantCount}
	}
	return resp
}

func (s *stubEngine) Close() {}

func useStubEngine(t *testing.T) *stubEngine {
	t.Helper()
	stub := &stubEngine{}
	prev := newEngine
	newEngine = func(*reword.Config) paraphraser { return stub }
	t.Cleanup(func() { newEngine = prev })
	return stub
}

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("REWORD_CONFIG_DIR", t.TempDir())
	t.Setenv("REWORD_CACHE_DIR", t.TempDir())
	t.Setenv("REWORD_OUTPUT", "")
	t.Setenv("REWORD_GENERATION_API_BASE_URL", "")
	t.Setenv("REWORD_EMBEDDING_API_BASE_URL", "")
	t.Setenv("REWORD_EMBEDDING_API_KEY", "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.json")
	_, err := dataset.Save(path,
		[]string{"a", "b"},
		[]string{"The cat sat.", "A cat sat.", "Cats sit.", "Stocks fell.", "Markets dropped.", "Prices <fell>."},
	)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerateFromArgsAndFile(t *testing.T) {
	isolateConfig(t)
	stub := useStubEngine(t)

	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	os.WriteFile(input, []byte("second\n\n  third  \n"), 0644)
	output := filepath.Join(dir, "out.json")

	out, err := execute(t, "generate", "first", "-f", input, "-n", "2", "-o", output)
	if err != nil {
		t.Fatal(err)
	}

	req := stub.reqs[0]
	if diff := cmp.Diff([]string{"first", "second", "third"}, req.Sentences); diff != "" {
		t.Errorf("sentences mismatch (-want +got):\n%s", diff)
	}
	if req.VariantCount != 2 || req.Output != output {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(out, "third\n  - third\n  - third (1)\n") {
		t.Errorf("unexpected output:\n%s", out)
	}

	g, err := dataset.Load(output)
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != 3 {
		t.Errorf("expected 3 keys, got %d", g.Len())
	}
}

func TestGenerateUsesConfiguredOutput(t *testing.T) {
	isolateConfig(t)
	stub := useStubEngine(t)
	output := filepath.Join(t.TempDir(), "env.json")
	t.Setenv("REWORD_OUTPUT", output)

	if _, err := execute(t, "generate", "hello"); err != nil {
		t.Fatal(err)
	}
	if stub.reqs[0].Output != output || stub.reqs[0].VariantCount != defaultVariantCount {
		t.Errorf("unexpected request %+v", stub.reqs[0])
	}

	if _, err := execute(t, "generate", "--no-save", "hello"); err != nil {
		t.Fatal(err)
	}
	if stub.reqs[1].Output != "" {
		t.Errorf("expected no output with --no-save, got %q", stub.reqs[1].Output)
	}
}

func TestGenerateNoSentences(t *testing.T) {
	isolateConfig(t)
	useStubEngine(t)
	if _, err := execute(t, "generate"); err == nil {
		t.Error("expected error without sentences")
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	isolateConfig(t)
	_, err := execute(t, "generate", "--no-save", "hello")
	if err == nil || !strings.Contains(err.Error(), generate.CodeNotConfigured) {
		t.Errorf("expected not_configured error, got %v", err)
	}
}

func TestExample(t *testing.T) {
	isolateConfig(t)
	stub := useStubEngine(t)
	output := filepath.Join(t.TempDir(), "assets", "paraphrased_sentences.json")

	if _, err := execute(t, "example", "-o", output); err != nil {
		t.Fatal(err)
	}
	req := stub.reqs[0]
	if diff := cmp.Diff(exampleSentences, req.Sentences); diff != "" {
		t.Errorf("sentences mismatch (-want +got):\n%s", diff)
	}
	if req.VariantCount != 5 {
		t.Errorf("expected 5 variants, got %d", req.VariantCount)
	}
	flat, err := dataset.LoadFlat(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 10 {
		t.Errorf("expected 10 flat sentences, got %d", len(flat))
	}
}

func TestShowJSON(t *testing.T) {
	path := writeArtifact(t)
	out, err := execute(t, "show", path)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if out != string(data)+"\n" {
		t.Errorf("expected file contents, got:\n%s", out)
	}
}

func TestShowFlatJSON(t *testing.T) {
	path := writeArtifact(t)
	out, err := execute(t, "show", "--flat", path)
	if err != nil {
		t.Fatal(err)
	}
	var flat []string
	if err := json.Unmarshal([]byte(out), &flat); err != nil {
		t.Fatal(err)
	}
	want := []string{"The cat sat.", "A cat sat.", "Cats sit.", "Stocks fell.", "Markets dropped.", "Prices <fell>."}
	if diff := cmp.Diff(want, flat); diff != "" {
		t.Errorf("flat mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(out, "<fell>") {
		t.Error("expected HTML characters to stay unescaped")
	}
}

func TestShowTOML(t *testing.T) {
	path := writeArtifact(t)
	out, err := execute(t, "show", "--format", "toml", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[[group]]") {
		t.Errorf("expected [[group]] tables, got:\n%s", out)
	}

	var doc tomlGroups
	if _, err := toml.Decode(out, &doc); err != nil {
		t.Fatal(err)
	}
	want := tomlGroups{Group: []tomlGroup{
		{Key: "The cat sat.", Variants: []string{"A cat sat.", "Cats sit."}},
		{Key: "Stocks fell.", Variants: []string{"Markets dropped.", "Prices <fell>."}},
	}}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("toml mismatch (-want +got):\n%s", diff)
	}
}

func TestShowFlatTOML(t *testing.T) {
	path := writeArtifact(t)
	out, err := execute(t, "show", "--flat", "--format", "toml", path)
	if err != nil {
		t.Fatal(err)
	}
	var doc tomlFlat
	if _, err := toml.Decode(out, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Sentences) != 6 || doc.Sentences[3] != "Stocks fell." {
		t.Errorf("unexpected flat toml %v", doc.Sentences)
	}
}

func TestShowErrors(t *testing.T) {
	path := writeArtifact(t)
	if _, err := execute(t, "show", "--format", "yaml", path); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := execute(t, "show", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLookupNotConfigured(t *testing.T) {
	isolateConfig(t)
	path := writeArtifact(t)
	if _, err := execute(t, "lookup", path, "cats"); err == nil || !strings.Contains(err.Error(), "embedding is not configured") {
		t.Errorf("expected not configured error, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	isolateConfig(t)
	vectors := map[string][]float32{
		"The cat sat.": {1, 0},
		"Stocks fell.": {0, 1},
		"feline":       {0.9, 0.1},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input json.RawMessage `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		var texts []string
		if err := json.Unmarshal(req.Input, &texts); err != nil {
			var single string
			json.Unmarshal(req.Input, &single)
			texts = []string{single}
		}
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		var data []item
		for i, text := range texts {
			data = append(data, item{Index: i, Embedding: vectors[text]})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	defer srv.Close()
	t.Setenv("REWORD_EMBEDDING_API_BASE_URL", srv.URL)
	t.Setenv("REWORD_EMBEDDING_API_KEY", "key")

	path := writeArtifact(t)
	out, err := execute(t, "lookup", path, "feline", "-k", "1")
	if err != nil {
		t.Fatal(err)
	}

	var matches []struct {
		Key      string   `json:"key"`
		Variants []string `json:"variants"`
	}
	if err := json.Unmarshal([]byte(out), &matches); err != nil {
		t.Fatalf("invalid output %q: %v", out, err)
	}
	if len(matches) != 1 || matches[0].Key != "The cat sat." {
		t.Fatalf("unexpected matches %+v", matches)
	}
	if _, err := os.Stat(reword.IndexCachePath()); err != nil {
		t.Errorf("expected embedding cache to be written: %v", err)
	}
}

func TestConfigCommand(t *testing.T) {
	isolateConfig(t)
	cfg := `{"version":1,"generation":{"base_url":"http://localhost:8080","api_key":"secret"}}`
	os.WriteFile(reword.ConfigPath(), []byte(cfg), 0644)

	out, err := execute(t, "config")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "secret") {
		t.Error("API key must be masked")
	}
	if !strings.Contains(out, `"base_url": "http://localhost:8080"`) {
		t.Errorf("expected configured base_url, got:\n%s", out)
	}
	if !strings.Contains(out, reword.ConfigPath()) {
		t.Errorf("expected config path, got:\n%s", out)
	}
}

func TestConfigCommandWarnings(t *testing.T) {
	isolateConfig(t)
	out, err := execute(t, "config")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "warning: generation base_url is not configured") {
		t.Errorf("expected base_url warning, got:\n%s", out)
	}
}

func TestConfigDefaultPrompt(t *testing.T) {
	out, err := execute(t, "config", "--default-prompt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "{{.VariantCount}}") {
		t.Errorf("expected prompt template, got:\n%s", out)
	}
}

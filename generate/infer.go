package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generator requests paraphrases from a model endpoint over HTTP.
type Generator struct {
	baseURL      string
	apiKey       string
	model        string
	apiType      string // "text2text" or "chat_completions"
	maxLength    int
	numBeams     int
	temperature  float64
	customPrompt string // chat_completions system prompt template (empty = use default)
	client       *http.Client
}

// NewGenerator creates a generator from config.
func NewGenerator(baseURL, apiKey, model, apiType string, maxLength, numBeams int, temperature float64, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Generator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		apiType:     apiType,
		maxLength:   maxLength,
		numBeams:    numBeams,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

// Model returns the model identifier requests are sent for.
func (g *Generator) Model() string { return g.model }

// Paraphrase returns n variants for each sentence, one block per sentence.
func (g *Generator) Paraphrase(ctx context.Context, sentences []string, n int) ([][]string, error) {
	if g.apiType == "chat_completions" {
		return g.paraphraseChatCompletions(ctx, sentences, n)
	}
	return g.paraphraseText2Text(ctx, sentences, n)
}

// --- text2text pipeline API ---

type text2textRequest struct {
	Inputs     []string            `json:"inputs"`
	Parameters text2textParameters `json:"parameters"`
	Options    text2textOptions    `json:"options"`
}

type text2textParameters struct {
	NumReturnSequences int     `json:"num_return_sequences"`
	NumBeams           int     `json:"num_beams,omitempty"`
	MaxLength          int     `json:"max_length,omitempty"`
	Temperature        float64 `json:"temperature,omitempty"`
	Truncation         bool    `json:"truncation"`
}

type text2textOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type generatedText struct {
	GeneratedText string `json:"generated_text"`
}

type text2textError struct {
	Error string `json:"error"`
}

func (g *Generator) paraphraseText2Text(ctx context.Context, sentences []string, n int) ([][]string, error) {
	reqBody := text2textRequest{
		Inputs: sentences,
		Parameters: text2textParameters{
			NumReturnSequences: n,
			NumBeams:           max(g.numBeams, n),
			MaxLength:          g.maxLength,
			Temperature:        g.temperature,
			Truncation:         true,
		},
		Options: text2textOptions{WaitForModel: true},
	}

	body, err := g.post(ctx, g.baseURL+"/models/"+g.model, reqBody)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var apiErr text2textError
		if err := json.Unmarshal(trimmed, &apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("API error: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("%w: unexpected object (body: %s)", ErrResponseInvalid, string(body))
	}

	// Batched inputs come back either as one list per input or as a single
	// flat list laid out in per-input blocks.
	var nested [][]generatedText
	if err := json.Unmarshal(trimmed, &nested); err == nil {
		blocks := make([][]string, len(nested))
		for i, items := range nested {
			blocks[i] = texts(items)
		}
		return blocks, nil
	}

	var flat []generatedText
	if err := json.Unmarshal(trimmed, &flat); err != nil {
		return nil, fmt.Errorf("%w: %v (body: %s)", ErrResponseInvalid, err, string(body))
	}
	if len(flat) == 0 {
		return nil, nil
	}
	if len(flat)%len(sentences) != 0 {
		return nil, fmt.Errorf("%w: %d results for %d inputs", ErrResponseInvalid, len(flat), len(sentences))
	}
	size := len(flat) / len(sentences)
	blocks := make([][]string, 0, len(sentences))
	for i := 0; i < len(flat); i += size {
		blocks = append(blocks, texts(flat[i:i+size]))
	}
	return blocks, nil
}

func texts(items []generatedText) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.GeneratedText
	}
	return out
}

// --- Chat Completions API ---

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (g *Generator) paraphraseChatCompletions(ctx context.Context, sentences []string, n int) ([][]string, error) {
	systemPrompt := buildSystemPrompt(g.customPrompt, n)

	blocks := make([][]string, 0, len(sentences))
	for i, sentence := range sentences {
		reqBody := chatCompletionsRequest{
			Model: g.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: sentence},
			},
			MaxTokens:   g.maxLength * n,
			Temperature: g.temperature,
		}

		body, err := g.post(ctx, g.baseURL+"/chat/completions", reqBody)
		if err != nil {
			return nil, err
		}

		var result chatCompletionsResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, string(body))
		}
		if result.Error != nil {
			return nil, fmt.Errorf("API error: %s", result.Error.Message)
		}
		if len(result.Choices) == 0 {
			return nil, fmt.Errorf("%w: no choices in response", ErrResponseInvalid)
		}

		variants, err := parseVariants(result.Choices[0].Message.Content, n)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i, err)
		}
		blocks = append(blocks, variants)
	}
	return blocks, nil
}

// post sends a JSON request and returns the body of a 200 response.
func (g *Generator) post(ctx context.Context, endpoint string, reqBody any) ([]byte, error) {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// setHeaders sets common headers for API requests.
func (g *Generator) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
}

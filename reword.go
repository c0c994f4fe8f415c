// Package reword defines the request/response types for reword IPC.
// Messages are JSON-encoded and sent over a Unix domain socket, one per line.
package reword

// Request asks the daemon to paraphrase a batch of sentences.
type Request struct {
	// RequestID is a per-session incrementing identifier assigned by the client.
	// The daemon echoes it back in the response for ordering.
	RequestID int `json:"request_id"`
	// SessionID identifies the client session. A newer request in the same
	// session cancels the one still in flight.
	SessionID string `json:"session_id,omitempty"`
	// Sentences are the input sentences, in order.
	Sentences []string `json:"sentences"`
	// VariantCount is the number of variants to generate per sentence,
	// including the first, near-identical one.
	VariantCount int `json:"variant_count"`
	// Output, when set, is the path the grouped artifact is written to.
	Output string `json:"output,omitempty"`
}

// Report summarizes a grouped artifact that was written to disk.
type Report struct {
	// Path is the file the artifact was written to.
	Path string `json:"path"`
	// Keys is the number of key sentences in the artifact.
	Keys int `json:"keys"`
	// VariantCount is the block size used for grouping.
	VariantCount int `json:"variant_count"`
	// Collisions counts blocks whose key sentence overwrote an earlier one.
	Collisions int `json:"collisions"`
}

// Response is sent from the daemon back to the client.
type Response struct {
	// RequestID is echoed from the request for ordering on the client side.
	RequestID int `json:"request_id"`
	// Variants is the flat generation result: one block of VariantCount
	// strings per input sentence, in input order.
	Variants []string `json:"variants"`
	// Report is set when the request asked for the artifact to be saved.
	Report *Report `json:"report,omitempty"`
	// Error is set when the daemon cannot fulfill the request.
	Error *Error `json:"error,omitempty"`
}

// Error describes a daemon-side error returned to the client.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "not_configured", "invalid_input").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

// ConfigRequest is sent from the client for configuration operations.
type ConfigRequest struct {
	// Action is the config operation: "get", "reload", "defaults", "default_prompt" or "validate".
	Action string `json:"action"`
}

// ConfigResponse is sent from the daemon in response to a ConfigRequest.
type ConfigResponse struct {
	// Config is the current configuration (for "get", "reload", and "defaults" actions).
	Config *Config `json:"config,omitempty"`
	// Prompt is the default prompt template (for "default_prompt" action).
	Prompt string `json:"prompt,omitempty"`
	// Warnings contains configuration warnings (for "validate" action).
	Warnings []string `json:"warnings,omitempty"`
	// Error is set when the operation fails.
	Error *Error `json:"error,omitempty"`
}

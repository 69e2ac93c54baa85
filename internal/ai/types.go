package ai

import (
	"context"
	"errors"
	"time"
)

// Request is one vision analysis call for a rendered page.
type Request struct {
	JobID       string
	Page        int
	Model       string
	ImageBase64 string
	ImageMIME   string // image/jpeg
	Prompt      string
	ContextText string // extracted text from surrounding pages
	MaxTokens   int
	Timeout     time.Duration
}

// Response is a raw provider reply.
type Response struct {
	Content   string
	TokensIn  int
	TokensOut int
}

// Result is the structured outcome of an analysis attempt. Failures are
// carried in-band: Success=false plus Err, never a thrown error, and cost is
// reported even on partial success.
type Result struct {
	Success   bool          `json:"success"`
	Content   string        `json:"content,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	CostUSD   float64       `json:"cost_usd"`
	TokensIn  int           `json:"tokens_in"`
	TokensOut int           `json:"tokens_out"`
	Duration  time.Duration `json:"duration"`
	Err       string        `json:"error,omitempty"`
}

// Client is a single provider (OpenAI, Anthropic).
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
}

// Analyzer is what the pipeline consumes: submit image + prompt, receive a
// structured analysis with the cost actually incurred.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) Result
}

var (
	ErrRateLimited    = errors.New("rate_limited")
	ErrContentRefused = errors.New("content_refused")
)

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }

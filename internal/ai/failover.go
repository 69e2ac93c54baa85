package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/deckscope/internal/config"
	"github.com/local/deckscope/internal/metrics"
)

// Failover implements Analyzer over a primary and a secondary engine.
// A rate-limited primary retries on the same provider's secondary model
// before moving to the secondary provider; any other failure goes straight
// to the secondary provider. A content refusal ends the chain without
// escalation. Timeouts are treated as plain failures.
type Failover struct {
	cfg       config.AnalyzerConfig
	timeout   time.Duration
	openai    Client
	anthropic Client
}

// NewFailover wires the provider clients from configuration.
func NewFailover(cfg config.AnalyzerConfig, timeout time.Duration) *Failover {
	return &Failover{
		cfg:       cfg,
		timeout:   timeout,
		openai:    NewOpenAIClient(),
		anthropic: NewAnthropicClient(),
	}
}

// Analyze submits the page image to the configured engines. The returned
// Result is always well-formed; it never panics and never returns an error
// out-of-band. Cost reflects the token usage of the attempt that answered.
func (f *Failover) Analyze(ctx context.Context, req Request) Result {
	start := time.Now()

	primary := strings.ToLower(f.cfg.PrimaryEngine)
	secondary := strings.ToLower(f.cfg.SecondaryEngine)

	resp, provider, model, err := f.attempt(ctx, req, primary, f.primaryModel(primary))
	if err == nil {
		return f.success(resp, provider, model, start)
	}

	if IsContentRefused(err) {
		// The refusal is about the page content; another model would refuse
		// the same payload.
		return Result{Success: false, Duration: time.Since(start), Err: err.Error()}
	}

	if IsRateLimited(err) {
		if m := f.secondaryModel(primary); m != "" {
			if resp2, p2, m2, err2 := f.attempt(ctx, req, primary, m); err2 == nil {
				return f.success(resp2, p2, m2, start)
			}
		}
	}

	resp3, p3, m3, err3 := f.attempt(ctx, req, secondary, f.primaryModel(secondary))
	if err3 == nil {
		return f.success(resp3, p3, m3, start)
	}

	log.Warn().
		Int("page", req.Page).
		Str("job_id", req.JobID).
		Err(err).
		AnErr("secondary_err", err3).
		Msg("all analyzer attempts failed")

	return Result{
		Success:  false,
		Duration: time.Since(start),
		Err:      err3.Error(),
	}
}

func (f *Failover) attempt(ctx context.Context, req Request, provider, model string) (Response, string, string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.timeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req.Model = model
	client := f.client(provider)

	t0 := time.Now()
	resp, err := client.Do(cctx, req)
	dur := time.Since(t0)

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		err = context.DeadlineExceeded
	}

	result := "success"
	if err != nil {
		result = "error"
		if IsRateLimited(err) {
			result = "rate_limited"
		}
	}
	metrics.ObserveAnalyzer(client.Name(), model, result, dur)

	return resp, client.Name(), model, err
}

func (f *Failover) success(resp Response, provider, model string, start time.Time) Result {
	return Result{
		Success:   true,
		Content:   resp.Content,
		Provider:  provider,
		Model:     model,
		CostUSD:   CostUSD(model, resp.TokensIn, resp.TokensOut),
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		Duration:  time.Since(start),
	}
}

func (f *Failover) client(provider string) Client {
	if provider == "anthropic" {
		return f.anthropic
	}
	return f.openai
}

func (f *Failover) primaryModel(provider string) string {
	switch provider {
	case "openai":
		return f.cfg.OpenAI.Primary
	case "anthropic":
		return f.cfg.Anthropic.Primary
	default:
		return f.cfg.OpenAI.Primary
	}
}

func (f *Failover) secondaryModel(provider string) string {
	switch provider {
	case "openai":
		return f.cfg.OpenAI.Secondary
	case "anthropic":
		return f.cfg.Anthropic.Secondary
	default:
		return ""
	}
}

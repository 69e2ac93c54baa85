package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/local/deckscope/internal/config"
)

// fakeClient replays a scripted sequence of responses per model.
type fakeClient struct {
	name string

	mu    sync.Mutex
	calls []string // models in call order
	fail  map[string]error
	resp  Response
}

func (c *fakeClient) Name() string { return c.name }

func (c *fakeClient) Do(_ context.Context, req Request) (Response, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req.Model)
	c.mu.Unlock()
	if err := c.fail[req.Model]; err != nil {
		return Response{}, err
	}
	return c.resp, nil
}

func testConfig() config.AnalyzerConfig {
	return config.AnalyzerConfig{
		PrimaryEngine:   "anthropic",
		SecondaryEngine: "openai",
		OpenAI:          config.ProviderModels{Primary: "gpt-4o", Secondary: "gpt-4o-mini"},
		Anthropic: config.ProviderModels{
			Primary:   "claude-3-5-sonnet-20241022",
			Secondary: "claude-3-haiku-20240307",
		},
		MaxTokens: 1024,
	}
}

func req() Request {
	return Request{JobID: "job-1", Page: 3, ImageBase64: "aW1n", ImageMIME: "image/jpeg", Prompt: "describe"}
}

func TestFailover_PrimarySucceeds(t *testing.T) {
	anth := &fakeClient{name: "anthropic", resp: Response{Content: "a bar chart", TokensIn: 1000, TokensOut: 200}}
	oai := &fakeClient{name: "openai"}
	f := &Failover{cfg: testConfig(), timeout: time.Second, openai: oai, anthropic: anth}

	res := f.Analyze(context.Background(), req())

	assert.True(t, res.Success)
	assert.Equal(t, "anthropic", res.Provider)
	assert.Equal(t, "claude-3-5-sonnet-20241022", res.Model)
	assert.Equal(t, "a bar chart", res.Content)
	assert.InDelta(t, 1000*3.00/1e6+200*15.00/1e6, res.CostUSD, 1e-12)
	assert.Empty(t, oai.calls)
}

func TestFailover_RateLimitRetriesSameProviderSecondaryModel(t *testing.T) {
	anth := &fakeClient{
		name: "anthropic",
		fail: map[string]error{"claude-3-5-sonnet-20241022": ErrRateLimited},
		resp: Response{Content: "ok", TokensIn: 10, TokensOut: 10},
	}
	oai := &fakeClient{name: "openai"}
	f := &Failover{cfg: testConfig(), timeout: time.Second, openai: oai, anthropic: anth}

	res := f.Analyze(context.Background(), req())

	assert.True(t, res.Success)
	assert.Equal(t, "claude-3-haiku-20240307", res.Model)
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022", "claude-3-haiku-20240307"}, anth.calls)
	assert.Empty(t, oai.calls)
}

func TestFailover_HardErrorGoesStraightToSecondaryProvider(t *testing.T) {
	anth := &fakeClient{
		name: "anthropic",
		fail: map[string]error{
			"claude-3-5-sonnet-20241022": errors.New("api_error: 500"),
		},
	}
	oai := &fakeClient{name: "openai", resp: Response{Content: "ok", TokensIn: 5, TokensOut: 5}}
	f := &Failover{cfg: testConfig(), timeout: time.Second, openai: oai, anthropic: anth}

	res := f.Analyze(context.Background(), req())

	assert.True(t, res.Success)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "gpt-4o", res.Model)
	// Non-rate-limit failure skips the same-provider retry.
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022"}, anth.calls)
}

func TestFailover_ContentRefusalDoesNotEscalate(t *testing.T) {
	anth := &fakeClient{
		name: "anthropic",
		fail: map[string]error{"claude-3-5-sonnet-20241022": ErrContentRefused},
	}
	oai := &fakeClient{name: "openai", resp: Response{Content: "should not be reached"}}
	f := &Failover{cfg: testConfig(), timeout: time.Second, openai: oai, anthropic: anth}

	res := f.Analyze(context.Background(), req())

	assert.False(t, res.Success)
	assert.Equal(t, ErrContentRefused.Error(), res.Err)
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022"}, anth.calls)
	assert.Empty(t, oai.calls, "a refused payload is not retried elsewhere")
}

func TestFailover_AllAttemptsFailYieldsStructuredFailure(t *testing.T) {
	anth := &fakeClient{
		name: "anthropic",
		fail: map[string]error{
			"claude-3-5-sonnet-20241022": ErrRateLimited,
			"claude-3-haiku-20240307":    ErrRateLimited,
		},
	}
	oai := &fakeClient{
		name: "openai",
		fail: map[string]error{"gpt-4o": errors.New("api_error: 503")},
	}
	f := &Failover{cfg: testConfig(), timeout: time.Second, openai: oai, anthropic: anth}

	res := f.Analyze(context.Background(), req())

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Err)
	assert.Zero(t, res.CostUSD)
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022", "claude-3-haiku-20240307"}, anth.calls)
	assert.Equal(t, []string{"gpt-4o"}, oai.calls)
}

func TestCostUSD(t *testing.T) {
	assert.InDelta(t, 0.0255, CostUSD("gpt-4o", 5_000, 1_300), 1e-9)
	assert.InDelta(t, 0.0, CostUSD("gpt-4o", 0, 0), 1e-12)

	// Unknown models bill at the most expensive known rate.
	unknown := CostUSD("some-new-model", 1_000_000, 1_000_000)
	assert.InDelta(t, 3.00+15.00, unknown, 1e-9)
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "brand-zoning/internal/common/errors"
	apphttp "brand-zoning/internal/common/http"
	"brand-zoning/internal/common/logger"
	"brand-zoning/internal/models"
	"brand-zoning/internal/zoning/prompt"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	results []error
	text    string
	calls   int
}

func (c *scriptedCompleter) Complete(ctx context.Context, req Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i < len(c.results) && c.results[i] != nil {
		return "", c.results[i]
	}
	return c.text, nil
}

func newTestGateway(t *testing.T, c Completer, maxRetries int) (*Gateway, *[]time.Duration) {
	t.Helper()
	g := New(c, Options{Model: "gpt-4o", Temperature: 0.1, MaxRetries: maxRetries}, logger.NewTestLogger(t))
	var delays []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return g, &delays
}

func testBundle(t *testing.T) prompt.Bundle {
	t.Helper()
	b, err := prompt.NewBuilder("# rules")
	require.NoError(t, err)
	bundle, err := b.Build(models.Assessment{"brand": "Acme"})
	require.NoError(t, err)
	return bundle
}

func transient() error {
	return apperrors.NewLLMTimeoutError(errors.New("deadline exceeded"))
}

func TestCall_ExhaustsBudgetOnPersistentTransientFailure(t *testing.T) {
	c := &scriptedCompleter{results: []error{transient(), transient(), transient()}}
	g, delays := newTestGateway(t, c, 3)

	_, err := g.Call(context.Background(), testBundle(t))

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 3, gwErr.Attempts)
	assert.Equal(t, 3, c.calls)
	assert.True(t, apperrors.IsRetryable(gwErr.Cause))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestCall_SucceedsOnFinalAttempt(t *testing.T) {
	c := &scriptedCompleter{results: []error{transient(), transient()}, text: "report"}
	g, delays := newTestGateway(t, c, 3)

	text, err := g.Call(context.Background(), testBundle(t))

	require.NoError(t, err)
	assert.Equal(t, "report", text)
	assert.Equal(t, 3, c.calls)
	assert.Len(t, *delays, 2)
}

func TestCall_NonRetryableFailsAfterOneAttempt(t *testing.T) {
	fatal := apperrors.NewLLMRequestInvalidError(errors.New("bad request body"))
	c := &scriptedCompleter{results: []error{fatal}}
	g, delays := newTestGateway(t, c, 3)

	_, err := g.Call(context.Background(), testBundle(t))

	require.Error(t, err)
	var gwErr *GatewayError
	assert.False(t, errors.As(err, &gwErr))
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, c.calls)
	assert.Empty(t, *delays)
}

func TestCall_PlainErrorIsNotRetried(t *testing.T) {
	c := &scriptedCompleter{results: []error{errors.New("unexpected")}}
	g, _ := newTestGateway(t, c, 5)

	_, err := g.Call(context.Background(), testBundle(t))

	require.Error(t, err)
	assert.Equal(t, 1, c.calls)
}

func TestCall_BudgetOfOneMeansNoRetry(t *testing.T) {
	c := &scriptedCompleter{results: []error{transient()}}
	g, delays := newTestGateway(t, c, 1)

	_, err := g.Call(context.Background(), testBundle(t))

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 1, gwErr.Attempts)
	assert.Empty(t, *delays)
}

func TestCall_CancelledDuringBackoffStops(t *testing.T) {
	c := &scriptedCompleter{results: []error{transient(), transient(), transient()}}
	g, _ := newTestGateway(t, c, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Call(ctx, testBundle(t))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.calls)
}

func TestNew_AppliesDefaults(t *testing.T) {
	g := New(&scriptedCompleter{}, Options{Model: "m"}, logger.NewNoOpLogger())
	assert.Equal(t, DefaultMaxRetries, g.opts.MaxRetries)
	assert.Equal(t, DefaultBaseDelay, g.opts.BaseDelay)
	assert.Equal(t, "m", g.Model())
}

func TestMaxElapsed_IncludesBackoff(t *testing.T) {
	g := New(&scriptedCompleter{}, Options{MaxRetries: 3}, logger.NewNoOpLogger())
	assert.Equal(t, 3*30*time.Second+3*time.Second, g.MaxElapsed(30*time.Second))
}

func TestSleepContext_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
}

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) (*OpenAIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"}, apphttp.NewClient(2*time.Second))
	return client, srv
}

func TestOpenAIClient_SendsOrderedInputAndSchemaHint(t *testing.T) {
	var captured map[string]interface{}
	client, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output":[{"type":"message","content":[{"type":"output_text","text":"# Report\n"},{"type":"output_text","text":"done"}]}]}`))
	})

	text, err := client.Complete(context.Background(), Request{Model: "gpt-4o", Temperature: 0.1, Bundle: testBundle(t)})

	require.NoError(t, err)
	assert.Equal(t, "# Report\ndone", text)
	assert.Equal(t, "gpt-4o", captured["model"])
	assert.InDelta(t, 0.1, captured["temperature"], 1e-9)

	input := captured["input"].([]interface{})
	require.Len(t, input, 3)
	roles := []string{}
	for _, m := range input {
		roles = append(roles, m.(map[string]interface{})["role"].(string))
	}
	assert.Equal(t, []string{"system", "developer", "user"}, roles)

	format := captured["text"].(map[string]interface{})["format"].(map[string]interface{})
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, prompt.SchemaName, format["name"])
	assert.Equal(t, false, format["strict"])
	schema := format["schema"].(map[string]interface{})
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, false, schema["additionalProperties"])
}

func TestOpenAIClient_TextFormatOmitsSchema(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = w.Write([]byte(`{"output_text":"plain"}`))
	}))
	defer srv.Close()
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, ResponseFormat: FormatText}, apphttp.NewClient(time.Second))

	text, err := client.Complete(context.Background(), Request{Model: "gpt-4o", Bundle: testBundle(t)})

	require.NoError(t, err)
	assert.Equal(t, "plain", text)
	_, hasText := captured["text"]
	assert.False(t, hasText)
}

func TestOpenAIClient_UpstreamErrorIsRetryable(t *testing.T) {
	client, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	})

	_, err := client.Complete(context.Background(), Request{Model: "gpt-4o", Bundle: testBundle(t)})

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
	assert.Contains(t, err.Error(), "Rate limit reached")
	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeLLMAPIError, stdErr.Code)
	assert.Equal(t, http.StatusTooManyRequests, stdErr.Metadata["status"])
}

func TestOpenAIClient_UndecodableReplyIsNotRetryable(t *testing.T) {
	client, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})

	_, err := client.Complete(context.Background(), Request{Model: "gpt-4o", Bundle: testBundle(t)})

	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestOpenAIClient_TimeoutIsRetryable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL}, apphttp.NewClient(50*time.Millisecond))

	_, err := client.Complete(context.Background(), Request{Model: "gpt-4o", Bundle: testBundle(t)})

	require.Error(t, err)
	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeLLMTimeout, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestOpenAIClient_ConnectionRefusedIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: url}, apphttp.NewClient(time.Second))

	_, err := client.Complete(context.Background(), Request{Model: "gpt-4o", Bundle: testBundle(t)})

	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestOpenAIClient_CallerCancelIsNotRetryable(t *testing.T) {
	release := make(chan struct{})
	client, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		// The server only notices the disconnect once the body is consumed.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(release) })
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, Request{Model: "gpt-4o", Bundle: testBundle(t)})

	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGateway_RetriesAgainstFlakyUpstream(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	client, _ := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"output_text":"ok"}`))
	})
	g, delays := newTestGateway(t, client, 3)

	text, err := g.Call(context.Background(), testBundle(t))

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, hits)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
	"github.com/seu-repo/drivethru-voice/internal/ports"
)

const defaultModel = "llama3"

// Ollama completes prompts against an Ollama-compatible /api/generate
// endpoint.
type Ollama struct {
	endpoint string
	model    string
	apiKey   string
	client   *circuitbreaker.HTTPClient
	log      *zap.Logger
}

var _ ports.LanguageModel = (*Ollama)(nil)

func NewOllama(endpoint, model, apiKey string, client *circuitbreaker.HTTPClient, log *zap.Logger) *Ollama {
	if model == "" {
		model = defaultModel
	}
	if !strings.HasSuffix(endpoint, "/api/generate") {
		endpoint = strings.TrimRight(endpoint, "/") + "/api/generate"
	}
	return &Ollama{endpoint: endpoint, model: model, apiKey: apiKey, client: client, log: log}
}

type generateOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (o *Ollama) Complete(ctx context.Context, prompt string, opts ports.CompletionOptions) (string, error) {
	out, err := o.generate(ctx, prompt, opts)
	if err != nil {
		telemetry.BackendErrorsTotal.WithLabelValues(o.client.Name()).Inc()
		return "", err
	}
	return out, nil
}

func (o *Ollama) generate(ctx context.Context, prompt string, opts ports.CompletionOptions) (string, error) {
	b, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        opts.Stop,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post to ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}

	o.log.Debug("LLM completion",
		zap.String("model", o.model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("completion_chars", len(out.Response)),
	)
	return out.Response, nil
}

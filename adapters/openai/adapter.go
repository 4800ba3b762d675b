// Package openai provides a ready-made execution function for any
// OpenAI-compatible chat-completion endpoint, including local servers that
// speak the same API.
package openai

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	sdk "github.com/sashabaranov/go-openai"

	"github.com/modelcrucible/crucible/internal/orchestrator"
	"github.com/modelcrucible/crucible/internal/result"
)

// Client issues chat completions. Satisfied by *sdk.Client.
type Client interface {
	CreateChatCompletion(ctx context.Context, req sdk.ChatCompletionRequest) (sdk.ChatCompletionResponse, error)
}

// Options configure the adapter.
type Options struct {
	APIKey  string
	Pricing *PricingTable
	// NewClient overrides client construction, for tests.
	NewClient func(cfg sdk.ClientConfig) Client
}

// NewExecuteFunc builds an execution function that sends each test item's
// input as a single user message to the task's model. One client is built
// per distinct base URL.
func NewExecuteFunc(opts Options) orchestrator.ExecuteFunc {
	newClient := opts.NewClient
	if newClient == nil {
		newClient = func(cfg sdk.ClientConfig) Client { return sdk.NewClientWithConfig(cfg) }
	}

	var mu sync.Mutex
	clients := map[string]Client{}
	clientFor := func(baseURL string) Client {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := clients[baseURL]; ok {
			return c
		}
		cfg := sdk.DefaultConfig(opts.APIKey)
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		c := newClient(cfg)
		clients[baseURL] = c
		return c
	}

	return func(ctx context.Context, task orchestrator.EvalTask) (*result.RunResult, error) {
		req := sdk.ChatCompletionRequest{
			Model: task.Config.Model,
			Messages: []sdk.ChatCompletionMessage{
				{Role: sdk.ChatMessageRoleUser, Content: task.Item.Input},
			},
		}
		if system, ok := task.Config.Params["system"]; ok && system != "" {
			req.Messages = append([]sdk.ChatCompletionMessage{
				{Role: sdk.ChatMessageRoleSystem, Content: system},
			}, req.Messages...)
		}
		if v, ok := task.Config.Params["temperature"]; ok {
			temp, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return nil, fmt.Errorf("config %s: bad temperature %q: %w", task.Config.Name, v, err)
			}
			req.Temperature = float32(temp)
		}
		if v, ok := task.Config.Params["max_tokens"]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("config %s: bad max_tokens %q: %w", task.Config.Name, v, err)
			}
			req.MaxCompletionTokens = n
		}

		started := time.Now()
		resp, err := clientFor(task.Config.BaseURL).CreateChatCompletion(ctx, req)
		latency := time.Since(started)
		if err != nil {
			return nil, fmt.Errorf("chat completion for %s: %w", task.ID, err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("chat completion for %s: no choices returned", task.ID)
		}

		return &result.RunResult{
			Output:       resp.Choices[0].Message.Content,
			LatencyMs:    latency.Milliseconds(),
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			CostUSD: opts.Pricing.Cost(task.Config.Provider, task.Config.Model,
				resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
			Timestamp: started,
		}, nil
	}
}

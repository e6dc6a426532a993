package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"

	"github.com/redeyefit/fieldvision/internal/models"
)

// OllamaOptions locate the ollama server and the vision model to use.
type OllamaOptions struct {
	BaseURL string
	Port    int
	Model   string
}

// NewAgent initializes and returns a new vision agent
func NewAgent(ctx context.Context, opts OllamaOptions, logger *slog.Logger) (*agent.DefaultAgent, error) {
	// Check if Ollama is running
	if err := ping(ctx, fmt.Sprintf("%s:%d/api/tags", opts.BaseURL, opts.Port)); err != nil {
		return nil, fmt.Errorf("ollama is not reachable: %w", err)
	}

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: opts.BaseURL,
		Port:    opts.Port,
	})
	provider.UseModel(ctx, &types.Model{
		ID: opts.Model,
	})

	agentConf := &agent.NewAgentConfig{
		Provider:     provider,
		Logger:       logger,
		SystemPrompt: "You are a visual analysis assistant for construction field documentation. Describe the work, trade and progress visible in each frame in a short, factual report.",
	}

	return agent.NewAgent(agentConf), nil
}

func ping(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

// AgentTagger describes frames with a local vision model.
type AgentTagger struct {
	agent *agent.DefaultAgent
}

func NewAgentTagger(a *agent.DefaultAgent) *AgentTagger {
	return &AgentTagger{agent: a}
}

func (t *AgentTagger) Describe(ctx context.Context, item models.WorkItem) (string, error) {
	response := t.agent.Run(
		ctx,
		agent.WithInput(prompt),
		agent.WithImagePath(item.Path),
	)
	if response.Err != nil {
		return "", response.Err
	}

	if len(response.Messages) == 0 {
		return "", fmt.Errorf("no response messages received from model")
	}

	// The last message is the model's answer, not the prompt.
	return response.Messages[len(response.Messages)-1].Content, nil
}

package vision

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"

	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/errors"
)

const personPrompt = "Does this image contain at least one person? Answer with exactly one word: yes or no."

// OllamaClassifier answers the person check with a local vision model, used
// when no remote API token is configured. Only classification runs locally;
// scoring and stylization stay remote-only.
type OllamaClassifier struct {
	agent *agent.DefaultAgent
	log   *slog.Logger
}

// NewOllamaClassifier connects to the Ollama daemon named by cfg.OllamaURL
// and prepares cfg.OllamaModel for the person check.
func NewOllamaClassifier(ctx context.Context, cfg config.VisionConfig, log *slog.Logger) (*OllamaClassifier, error) {
	baseURL, port, err := splitHostPort(cfg.OllamaURL)
	if err != nil {
		return nil, errors.NewInvalidConfig(fmt.Sprintf("vision.ollama_url: %v", err))
	}

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  log,
		BaseURL: baseURL,
		Port:    port,
	})
	provider.UseModel(ctx, &types.Model{ID: cfg.OllamaModel})

	a := agent.NewAgent(&agent.NewAgentConfig{
		Provider:     provider,
		Logger:       log,
		SystemPrompt: "You are a strict binary image classifier. Answer questions about images with a single word.",
	})

	return &OllamaClassifier{agent: a, log: log}, nil
}

func (c *OllamaClassifier) HasPerson(ctx context.Context, imagePath string) (*Verdict, error) {
	response, err := c.agent.Run(ctx,
		agent.WithInput(personPrompt),
		agent.WithImagePath(imagePath),
	)
	if err != nil {
		return nil, errors.NewDetectionFailed(err)
	}
	if len(response.Messages) == 0 {
		return nil, errors.NewDetectionFailed(fmt.Errorf("model returned no messages"))
	}

	answer := strings.ToLower(strings.TrimSpace(response.Messages[len(response.Messages)-1].Content))
	c.log.Debug("local person check", "image", imagePath, "answer", answer)

	switch {
	case strings.HasPrefix(answer, "yes"):
		return &Verdict{Person: true, Label: "person", Confidence: 1}, nil
	case strings.HasPrefix(answer, "no"):
		return &Verdict{Person: false, Label: "no_person"}, nil
	default:
		// An unparseable answer is a model failure, and the pipeline's
		// fail-closed policy skips the frame.
		return nil, errors.NewDetectionFailed(fmt.Errorf("unparseable answer %q", answer))
	}
}

// splitHostPort turns "http://localhost:11434" into ("http://localhost", 11434).
func splitHostPort(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, err
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", 0, fmt.Errorf("not a URL: %q", raw)
	}
	port := 11434
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, err
		}
	}
	return u.Scheme + "://" + u.Hostname(), port, nil
}

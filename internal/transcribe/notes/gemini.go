package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/TechnicallyShaun/meetscribe/internal/transcribe/logging"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

var (
	ErrNoAPIKeys     = errors.New("no Gemini API keys configured")
	ErrEmptyResponse = errors.New("empty response from Gemini")
)

// contentGenerator is the slice of genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a GeminiCompleter.
type GeminiConfig struct {
	APIKeys     []string
	Model       string
	Temperature float32
}

// GeminiCompleter calls the Gemini API, rotating through its keys when one
// is rate limited.
type GeminiCompleter struct {
	apiKeys     []string
	model       string
	temperature float32
	log         logging.Logger

	mu         sync.Mutex
	currentKey int

	connect func(ctx context.Context, apiKey string) (contentGenerator, error)
}

// NewGeminiCompleter creates a completer. Blank keys are dropped.
func NewGeminiCompleter(cfg GeminiConfig, log logging.Logger) (*GeminiCompleter, error) {
	var keys []string
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoAPIKeys
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if log == nil {
		log = logging.Nop()
	}

	return &GeminiCompleter{
		apiKeys:     keys,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		log:         log,
		connect:     connectGemini,
	}, nil
}

func connectGemini(ctx context.Context, apiKey string) (contentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// Complete sends prompt to Gemini. Each key is tried at most once per call.
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}

	var lastErr error
	for range g.apiKeys {
		idx, key := g.key()

		models, err := g.connect(ctx, key)
		if err != nil {
			lastErr = fmt.Errorf("create client: %w", err)
			g.rotate(idx)
			continue
		}

		result, err := models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err != nil {
			if isRateLimited(err) {
				g.log.Warn("Gemini key rate limited, rotating", logging.Int("key", idx+1))
				g.rotate(idx)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		return responseText(result)
	}

	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (g *GeminiCompleter) key() (int, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentKey, g.apiKeys[g.currentKey]
}

// rotate advances past idx unless another caller already did.
func (g *GeminiCompleter) rotate(idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.currentKey == idx {
		g.currentKey = (idx + 1) % len(g.apiKeys)
	}
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(strings.ToLower(msg), "quota") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

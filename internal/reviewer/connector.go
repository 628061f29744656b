package reviewer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider represents an AI provider type
type Provider string

const (
	// ProviderClaude uses the Anthropic SDK directly.
	ProviderClaude Provider = "claude"
	// The remaining providers go through langchaingo.
	ProviderOpenAI          Provider = "openai"
	ProviderGemini          Provider = "gemini"
	ProviderOllama          Provider = "ollama"
	ProviderLangchainClaude Provider = "langchain-claude"
)

const defaultMaxTokens = 4096

// Options selects and configures the model behind a Reviewer.
type Options struct {
	Provider    Provider
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return defaultMaxTokens
}

// LangChainCompleter sends prompts through a langchaingo model.
type LangChainCompleter struct {
	provider Provider
	llm      llms.Model
	options  Options
}

// NewLangChainCompleter creates a completer for the specified provider
func NewLangChainCompleter(ctx context.Context, options Options) (*LangChainCompleter, error) {
	var model llms.Model
	var err error

	log.Debug().
		Str("provider", string(options.Provider)).
		Str("model", options.Model).
		Float64("temperature", options.Temperature).
		Msg("Creating new connector")

	switch options.Provider {
	case ProviderOpenAI:
		model, err = createOpenAIModel(options)
	case ProviderGemini:
		model, err = createGeminiModel(ctx, options)
	case ProviderLangchainClaude:
		model, err = createAnthropicModel(options)
	case ProviderOllama:
		model, err = createOllamaModel(options)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", options.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", options.Provider, err)
	}

	return NewLangChainCompleterFromModel(options, model), nil
}

// NewLangChainCompleterFromModel wraps an existing model.
func NewLangChainCompleterFromModel(options Options, model llms.Model) *LangChainCompleter {
	return &LangChainCompleter{provider: options.Provider, llm: model, options: options}
}

func createOpenAIModel(options Options) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(options.Model),
		openai.WithToken(options.APIKey),
	}
	if options.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(options.BaseURL))
	}
	return openai.New(opts...)
}

func createGeminiModel(ctx context.Context, options Options) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithAPIKey(options.APIKey),
	}
	if options.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(options.Model))
	}

	model, err := googleai.New(ctx, opts...)
	if err != nil {
		log.Error().Err(err).
			Str("model", options.Model).
			Msg("Failed to create Gemini model")
		return nil, fmt.Errorf("failed to create Gemini model: %w", err)
	}
	return model, nil
}

func createAnthropicModel(options Options) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithToken(options.APIKey),
		anthropic.WithModel(options.Model),
	}
	if options.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(options.BaseURL))
	}
	return anthropic.New(opts...)
}

func createOllamaModel(options Options) (llms.Model, error) {
	if options.BaseURL == "" {
		options.BaseURL = "http://localhost:11434"
	}

	opts := []ollama.Option{
		ollama.WithServerURL(options.BaseURL),
		ollama.WithModel(options.Model),
	}
	return ollama.New(opts...)
}

// Model implements Completer.
func (c *LangChainCompleter) Model() string {
	if c.options.Model != "" {
		return c.options.Model
	}
	return string(c.provider)
}

// Complete implements Completer.
func (c *LangChainCompleter) Complete(ctx context.Context, system, user string) (Completion, error) {
	callOptions := []llms.CallOption{
		llms.WithMaxTokens(c.options.maxTokens()),
	}
	if c.options.Temperature > 0 {
		callOptions = append(callOptions, llms.WithTemperature(c.options.Temperature))
	}
	if c.provider == ProviderGemini && c.options.Model != "" {
		callOptions = append(callOptions, llms.WithModel(c.options.Model))
	}

	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}, callOptions...)
	if err != nil {
		return Completion{}, fmt.Errorf("%s generate: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%s returned no choices", c.provider)
	}

	choice := resp.Choices[0]
	return Completion{
		Text:         choice.Content,
		InputTokens:  usage(choice.GenerationInfo, "InputTokens", "PromptTokens", "input_tokens"),
		OutputTokens: usage(choice.GenerationInfo, "OutputTokens", "CompletionTokens", "output_tokens"),
	}, nil
}

// usage reads the first present token count. Providers name and type these
// fields differently.
func usage(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

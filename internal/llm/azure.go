package llm

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"

	"github.com/shaiso/llmflows/internal/domain"
)

// DefaultAzureAPIVersion — версия API Azure OpenAI по умолчанию.
const DefaultAzureAPIVersion = "2024-06-01"

// AzureConfig — настройки клиента Azure OpenAI.
//
// Azure адресует модель именем deployment'а, поэтому Deployment
// заменяет Model из OpenAIConfig.
type AzureConfig struct {
	// Endpoint — адрес ресурса, например https://my-resource.openai.azure.com.
	Endpoint string

	// APIVersion — версия API. Пустая — DefaultAzureAPIVersion.
	APIVersion string

	// APIKey — ключ ресурса. Передаётся в заголовке Api-Key.
	APIKey string

	// Deployment — имя deployment'а модели.
	Deployment string

	Temperature float64
	MaxTokens   int
	Retry       domain.RetryPolicy
	Timeout     time.Duration
	Logger      *slog.Logger
}

// AzureConfigFromEnv читает AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY,
// AZURE_OPENAI_API_VERSION и AZURE_OPENAI_DEPLOYMENT.
func AzureConfigFromEnv() AzureConfig {
	return AzureConfig{
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
		APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
	}
}

// openAIConfig переводит настройки Azure в OpenAIConfig.
func (c AzureConfig) openAIConfig() (OpenAIConfig, error) {
	switch {
	case c.Endpoint == "":
		return OpenAIConfig{}, fmt.Errorf("azure openai: %w", ErrMissingEndpoint)
	case c.Deployment == "":
		return OpenAIConfig{}, fmt.Errorf("azure openai: %w", ErrMissingDeployment)
	case c.APIKey == "":
		return OpenAIConfig{}, fmt.Errorf("azure openai: %w", ErrMissingAPIKey)
	}

	version := c.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}

	return OpenAIConfig{
		APIKey:      c.APIKey,
		Model:       c.Deployment,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Retry:       c.Retry,
		Timeout:     c.Timeout,
		Logger:      c.Logger,
		azure: []option.RequestOption{
			azure.WithEndpoint(c.Endpoint, version),
			azure.WithAPIKey(c.APIKey),
		},
	}, nil
}

// NewAzureOpenAICompleter создаёт completion клиент Azure OpenAI.
func NewAzureOpenAICompleter(cfg AzureConfig) (*OpenAICompleter, error) {
	oc, err := cfg.openAIConfig()
	if err != nil {
		return nil, err
	}
	return NewOpenAICompleter(oc)
}

// NewAzureOpenAIChat создаёт chat клиент Azure OpenAI.
func NewAzureOpenAIChat(cfg AzureConfig) (*OpenAIChat, error) {
	oc, err := cfg.openAIConfig()
	if err != nil {
		return nil, err
	}
	return NewOpenAIChat(oc)
}

// NewAzureOpenAIEmbedder создаёт embeddings клиент Azure OpenAI.
func NewAzureOpenAIEmbedder(cfg AzureConfig) (*OpenAIEmbedder, error) {
	oc, err := cfg.openAIConfig()
	if err != nil {
		return nil, err
	}
	return NewOpenAIEmbedder(oc)
}

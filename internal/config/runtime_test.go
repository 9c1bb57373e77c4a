package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSettings struct {
	values map[string]string
	err    error
}

func (m mapSettings) Get(_ context.Context, key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func baseConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: ProviderOpenAI,
			OpenAI:   ProviderSettings{APIKey: "sk-static", Model: "gpt-3.5-turbo"},
			Gemini:   ProviderSettings{APIKey: "gm-static"},
			Ollama:   ProviderSettings{Endpoint: "http://localhost:11434/api/generate", Model: "llama2"},
		},
		Queue: QueueConfig{MaxAttempts: 3},
	}
}

func TestResolveRuntime_NoOverrides(t *testing.T) {
	t.Parallel()

	rt, err := ResolveRuntime(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, rt.Provider)
	assert.Equal(t, "sk-static", rt.ActiveProvider().APIKey)
	assert.Equal(t, "gm-static", rt.ImageAPIKey())
}

func TestResolveRuntime_Overrides(t *testing.T) {
	t.Parallel()

	src := mapSettings{values: map[string]string{
		"llm.provider":          "ollama",
		"llm.ollama.model":      "mistral",
		"features.auto_publish": "yes",
		"features.auto_seo":     "true",
		"image.api_key":         "img-key",
		"schedule.enabled":      "no",
	}}

	rt, err := ResolveRuntime(context.Background(), baseConfig(), src)
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, rt.Provider)
	assert.Equal(t, "mistral", rt.ActiveProvider().Model)
	assert.Equal(t, "http://localhost:11434/api/generate", rt.ActiveProvider().Endpoint)
	assert.True(t, rt.Features.AutoPublish)
	assert.True(t, rt.Features.AutoSEO)
	assert.False(t, rt.Schedule.Enabled)
	assert.Equal(t, "img-key", rt.ImageAPIKey())
}

func TestResolveRuntime_UnknownProviderFallsBackToOpenAI(t *testing.T) {
	t.Parallel()

	src := mapSettings{values: map[string]string{"llm.provider": "claude"}}
	rt, err := ResolveRuntime(context.Background(), baseConfig(), src)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, rt.Provider)
}

func TestResolveRuntime_Errors(t *testing.T) {
	t.Parallel()

	_, err := ResolveRuntime(context.Background(), baseConfig(), mapSettings{err: errors.New("db down")})
	assert.ErrorContains(t, err, "db down")

	_, err = ResolveRuntime(context.Background(), baseConfig(),
		mapSettings{values: map[string]string{"features.auto_image": "sometimes"}})
	assert.ErrorContains(t, err, "features.auto_image")
}

func TestResolveRuntime_DoesNotMutateBase(t *testing.T) {
	t.Parallel()

	base := baseConfig()
	_, err := ResolveRuntime(context.Background(), base,
		mapSettings{values: map[string]string{"llm.openai.api_key": "sk-runtime"}})
	require.NoError(t, err)
	assert.Equal(t, "sk-static", base.LLM.OpenAI.APIKey)
}

func TestValidateSetting(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateSetting("features.auto_publish", "yes"))
	assert.NoError(t, ValidateSetting("schedule.frequency", FrequencyWeekly))
	assert.NoError(t, ValidateSetting("llm.openai.api_key", "sk-x"))

	assert.ErrorIs(t, ValidateSetting("server.port", "1"), ErrUnknownSetting)
	assert.ErrorIs(t, ValidateSetting("features.auto_seo", "maybe"), ErrInvalidSetting)
	assert.ErrorIs(t, ValidateSetting("schedule.frequency", "monthly"), ErrInvalidSetting)

	assert.NoError(t, ValidateSetting("llm.provider", ProviderOllama))
	assert.ErrorIs(t, ValidateSetting("llm.provider", "claude"), ErrInvalidSetting)
	assert.ErrorIs(t, ValidateSetting("llm.provider", ""), ErrInvalidSetting)
}

func TestOverrideKeysAndSecrets(t *testing.T) {
	t.Parallel()

	keys := OverrideKeys()
	assert.Contains(t, keys, "llm.provider")
	assert.Contains(t, keys, "schedule.enabled")
	assert.True(t, IsSecretSetting("llm.gemini.api_key"))
	assert.True(t, IsSecretSetting("image.api_key"))
	assert.False(t, IsSecretSetting("llm.gemini.model"))
}

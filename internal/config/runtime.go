package config

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownSetting is returned for a key that cannot be overridden at runtime.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidSetting is returned when a setting value does not parse.
	ErrInvalidSetting = errors.New("invalid setting value")
)

// SettingsSource reads operator-edited settings by key.
type SettingsSource interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// Runtime is the configuration snapshot used for one queue run. It is built
// once per run and passed explicitly to everything that needs it.
type Runtime struct {
	Provider  string
	Providers map[string]ProviderSettings
	Image     ImageConfig
	Features  FeatureConfig
	Schedule  ScheduleConfig
	Queue     QueueConfig
}

// ActiveProvider returns the settings of the selected text provider.
func (r Runtime) ActiveProvider() ProviderSettings {
	return r.Providers[r.Provider]
}

// ImageAPIKey returns the key used for image generation.
func (r Runtime) ImageAPIKey() string {
	if r.Image.APIKey != "" {
		return r.Image.APIKey
	}
	return r.Providers[ProviderGemini].APIKey
}

// Runtime returns the snapshot described by the static configuration alone.
func (c *Config) Runtime() Runtime {
	return Runtime{
		Provider: c.LLM.Provider,
		Providers: map[string]ProviderSettings{
			ProviderOpenAI: c.LLM.OpenAI,
			ProviderGemini: c.LLM.Gemini,
			ProviderOllama: c.LLM.Ollama,
		},
		Image:    c.Image,
		Features: c.Features,
		Schedule: c.Schedule,
		Queue:    c.Queue,
	}
}

type override struct {
	key   string
	apply func(r *Runtime, value string) error
	// validate, when set, is stricter than apply and guards writes only.
	validate func(value string) error
}

func stringSetting(set func(r *Runtime, v string)) func(*Runtime, string) error {
	return func(r *Runtime, v string) error {
		set(r, v)
		return nil
	}
}

func boolSetting(set func(r *Runtime, v bool)) func(*Runtime, string) error {
	return func(r *Runtime, v string) error {
		switch v {
		case "yes", "on":
			set(r, true)
			return nil
		case "no", "off", "":
			set(r, false)
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		set(r, b)
		return nil
	}
}

func providerSetting(name string, set func(p *ProviderSettings, v string)) func(*Runtime, string) error {
	return func(r *Runtime, v string) error {
		p := r.Providers[name]
		set(&p, v)
		r.Providers[name] = p
		return nil
	}
}

// Keys operators may override at runtime. Keys match the static config paths.
var overrides = []override{
	{key: "llm.provider", apply: func(r *Runtime, v string) error {
		if knownProvider(v) {
			r.Provider = v
		} else {
			// Stored values from before validation fall back to the default.
			r.Provider = ProviderOpenAI
		}
		return nil
	}, validate: func(v string) error {
		if !knownProvider(v) {
			return fmt.Errorf("unsupported provider %q", v)
		}
		return nil
	}},
	{key: "llm.openai.api_key", apply: providerSetting(ProviderOpenAI, func(p *ProviderSettings, v string) { p.APIKey = v })},
	{key: "llm.openai.endpoint", apply: providerSetting(ProviderOpenAI, func(p *ProviderSettings, v string) { p.Endpoint = v })},
	{key: "llm.openai.model", apply: providerSetting(ProviderOpenAI, func(p *ProviderSettings, v string) { p.Model = v })},
	{key: "llm.gemini.api_key", apply: providerSetting(ProviderGemini, func(p *ProviderSettings, v string) { p.APIKey = v })},
	{key: "llm.gemini.model", apply: providerSetting(ProviderGemini, func(p *ProviderSettings, v string) { p.Model = v })},
	{key: "llm.ollama.endpoint", apply: providerSetting(ProviderOllama, func(p *ProviderSettings, v string) { p.Endpoint = v })},
	{key: "llm.ollama.model", apply: providerSetting(ProviderOllama, func(p *ProviderSettings, v string) { p.Model = v })},
	{key: "image.api_key", apply: stringSetting(func(r *Runtime, v string) { r.Image.APIKey = v })},
	{key: "features.auto_publish", apply: boolSetting(func(r *Runtime, v bool) { r.Features.AutoPublish = v })},
	{key: "features.inline_images", apply: boolSetting(func(r *Runtime, v bool) { r.Features.InlineImages = v })},
	{key: "features.auto_image", apply: boolSetting(func(r *Runtime, v bool) { r.Features.AutoImage = v })},
	{key: "features.auto_seo", apply: boolSetting(func(r *Runtime, v bool) { r.Features.AutoSEO = v })},
	{key: "schedule.enabled", apply: boolSetting(func(r *Runtime, v bool) { r.Schedule.Enabled = v })},
	{key: "schedule.frequency", apply: func(r *Runtime, v string) error {
		switch v {
		case FrequencyHourly, FrequencyTwiceDaily, FrequencyDaily, FrequencyWeekly, FrequencyNone:
			r.Schedule.Frequency = v
			return nil
		}
		return fmt.Errorf("unsupported frequency %q", v)
	}},
}

func knownProvider(name string) bool {
	switch name {
	case ProviderOpenAI, ProviderGemini, ProviderOllama:
		return true
	}
	return false
}

// OverrideKeys lists the settings that may be changed at runtime.
func OverrideKeys() []string {
	keys := make([]string, len(overrides))
	for i, o := range overrides {
		keys[i] = o.key
	}
	return keys
}

// ValidateSetting checks that key can be overridden and value parses.
func ValidateSetting(key, value string) error {
	for _, o := range overrides {
		if o.key != key {
			continue
		}
		if o.validate != nil {
			if err := o.validate(value); err != nil {
				return fmt.Errorf("%w for %s: %v", ErrInvalidSetting, key, err)
			}
		}
		rt := (&Config{}).Runtime()
		if err := o.apply(&rt, value); err != nil {
			return fmt.Errorf("%w for %s: %v", ErrInvalidSetting, key, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
}

// IsSecretSetting reports whether the value of key must not be displayed.
func IsSecretSetting(key string) bool {
	return strings.HasSuffix(key, ".api_key")
}

// ResolveRuntime overlays the operator settings found in src on the static
// configuration. A nil src yields the static snapshot.
func ResolveRuntime(ctx context.Context, base *Config, src SettingsSource) (Runtime, error) {
	rt := base.Runtime()
	if src == nil {
		return rt, nil
	}

	for _, o := range overrides {
		value, found, err := src.Get(ctx, o.key)
		if err != nil {
			return Runtime{}, fmt.Errorf("failed to read setting %s: %w", o.key, err)
		}
		if !found {
			continue
		}
		if err := o.apply(&rt, value); err != nil {
			return Runtime{}, fmt.Errorf("invalid value for setting %s: %w", o.key, err)
		}
	}

	return rt, nil
}

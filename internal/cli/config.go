package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/control"
)

// DefaultConfigFile is read when --config is not given. A missing default file
// is not an error.
const DefaultConfigFile = "lattice.yaml"

// Settings are the CLI settings: the remote configuration plus run defaults.
//
//	api_key: sk-...
//	provider: anthropic
//	timeout: 60s
//	model: claude-sonnet-4
//	workflow: triage.yaml
//	recorder:
//	  url: redis://localhost:6379/0
//	  ttl: 24h
type Settings struct {
	control.Config `mapstructure:",squash"`

	Model    string           `mapstructure:"model"`
	MaxSteps int              `mapstructure:"max_steps"`
	Workflow string           `mapstructure:"workflow"`
	Tools    string           `mapstructure:"tools"`
	Recorder RecorderSettings `mapstructure:"recorder"`
}

// RecorderSettings select where run records are kept. An empty URL keeps them
// in memory for the life of the process.
type RecorderSettings struct {
	URL    string        `mapstructure:"url"`
	TTL    time.Duration `mapstructure:"ttl"`
	Prefix string        `mapstructure:"prefix"`
	// MaskKeys are patterns of state keys whose values are masked in records.
	MaskKeys []string `mapstructure:"mask_keys"`
	// EncryptionKey is a base64 AES-256 key sealing record state and errors.
	EncryptionKey string `mapstructure:"encryption_key"`
	// FallbackKeys decrypt records written before a key rotation.
	FallbackKeys []string `mapstructure:"fallback_keys"`
}

// envKeys maps environment variables to their settings path.
var envKeys = map[string][]string{
	"LATTICE_API_KEY":         {"api_key"},
	"LATTICE_BASE_URL":        {"base_url"},
	"LATTICE_LLM_API_KEY":     {"llm_api_key"},
	"LATTICE_PROVIDER":        {"provider"},
	"LATTICE_ENDPOINT_TYPE":   {"endpoint_type"},
	"LATTICE_TIMEOUT":         {"timeout"},
	"LATTICE_MODEL":           {"model"},
	"LATTICE_MAX_STEPS":       {"max_steps"},
	"LATTICE_WORKFLOW":        {"workflow"},
	"LATTICE_TOOLS":           {"tools"},
	"LATTICE_RECORDER_URL":    {"recorder", "url"},
	"LATTICE_RECORDER_TTL":    {"recorder", "ttl"},
	"LATTICE_RECORDER_PREFIX": {"recorder", "prefix"},

	"LATTICE_RECORDER_MASK_KEYS":      {"recorder", "mask_keys"},
	"LATTICE_RECORDER_ENCRYPTION_KEY": {"recorder", "encryption_key"},
}

// providerKeys are the conventional LLM key variables, used when no LLM key is
// configured explicitly.
var providerKeys = map[control.Provider]string{
	control.ProviderOpenAI:        "OPENAI_API_KEY",
	control.ProviderOpenRouter:    "OPENROUTER_API_KEY",
	control.ProviderAnthropic:     "ANTHROPIC_API_KEY",
	control.ProviderSequrityAzure: "SEQURITY_AZURE_API_KEY",
}

// DefaultSettings returns the dual-planner defaults with the default step budget.
func DefaultSettings() Settings {
	return Settings{
		Config:   control.DefaultConfig(),
		MaxSteps: runtime.DefaultMaxSteps,
		Tools:    "tools.yaml",
	}
}

// LoadSettings reads path (YAML), applies LATTICE_* environment variables on
// top and decodes the result over DefaultSettings. An empty path tries
// DefaultConfigFile and tolerates its absence.
func LoadSettings(path string) (Settings, error) {
	raw := map[string]any{}
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	for env, keyPath := range envKeys {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			setPath(raw, keyPath, v)
		}
	}

	s := DefaultSettings()
	if err := decodeSettings(raw, &s); err != nil {
		return Settings{}, err
	}
	if s.LLMAPIKey == "" {
		if env, ok := providerKeys[s.Provider]; ok {
			s.LLMAPIKey = os.Getenv(env)
		}
	}
	if s.APIKey == "" {
		s.APIKey = os.Getenv("SEQURITY_API_KEY")
	}
	return s, nil
}

func decodeSettings(raw map[string]any, out *Settings) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

// setPath stores value under the nested keys of raw, creating maps as needed.
func setPath(raw map[string]any, keys []string, value any) {
	m := raw
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = value
}

// ParseProvider validates a --provider value.
func ParseProvider(s string) (control.Provider, error) {
	p := control.Provider(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := providerKeys[p]; !ok {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

package control

import (
	"fmt"
	"time"

	"dario.cat/mergo"
	"github.com/mohae/deepcopy"

	"github.com/aretw0/lattice/pkg/domain"
)

// Defaults for the remote orchestrator.
const (
	DefaultBaseURL      = "https://api.sequrity.ai"
	DefaultAPIVersion   = "v1"
	DefaultTimeout      = 300 * time.Second
	EndpointLangGraph   = "lang-graph"
	EndpointChat        = "chat"
	HeaderSessionID     = "X-Session-ID"
	HeaderFeatures      = "X-Features"
	HeaderPolicy        = "X-Policy"
	HeaderConfig        = "X-Config"
	HeaderLLMAPIKey     = "X-Api-Key"
	HeaderAuthorization = "Authorization"
)

// Provider identifies the LLM service behind the orchestrator.
type Provider string

const (
	ProviderOpenAI        Provider = "openai"
	ProviderOpenRouter    Provider = "openrouter"
	ProviderAnthropic     Provider = "anthropic"
	ProviderSequrityAzure Provider = "sequrity_azure"
)

// Dialect returns the wire dialect spoken for the provider.
// Anthropic speaks the messages dialect; every other provider, and no provider at
// all, speaks chat completions.
func (p Provider) Dialect() domain.Dialect {
	if p == ProviderAnthropic {
		return domain.DialectMessages
	}
	return domain.DialectChatCompletions
}

// Config holds the connection and header defaults of a client.
type Config struct {
	APIKey         string                   `json:"api_key" yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string                   `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	LLMAPIKey      string                   `json:"llm_api_key,omitempty" yaml:"llm_api_key,omitempty" mapstructure:"llm_api_key"`
	Provider       Provider                 `json:"provider,omitempty" yaml:"provider,omitempty" mapstructure:"provider"`
	EndpointType   string                   `json:"endpoint_type,omitempty" yaml:"endpoint_type,omitempty" mapstructure:"endpoint_type"`
	Timeout        time.Duration            `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
	Features       *FeaturesHeader          `json:"features,omitempty" yaml:"features,omitempty" mapstructure:"features"`
	SecurityPolicy *SecurityPolicyHeader    `json:"security_policy,omitempty" yaml:"security_policy,omitempty" mapstructure:"security_policy"`
	FineGrained    *FineGrainedConfigHeader `json:"fine_grained_config,omitempty" yaml:"fine_grained_config,omitempty" mapstructure:"fine_grained_config"`
}

// DefaultConfig returns a dual-planner configuration pointed at the public endpoint.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		EndpointType:   EndpointLangGraph,
		Timeout:        DefaultTimeout,
		Features:       DualLLMFeatures(FeatureFlags{}),
		SecurityPolicy: DualLLMPolicy(""),
		FineGrained:    DualLLMConfig(),
	}
}

// Clone returns a deep copy of c; header models are not shared.
func (c Config) Clone() Config {
	cp, ok := deepcopy.Copy(c).(Config)
	if !ok {
		return c
	}
	return cp
}

// Overlay returns a copy of c with every non-zero scalar field of override
// applied on top. A header model set on override replaces the one of c as a
// whole, so flags it leaves unset fall back to the server defaults rather than
// to c. Neither input is modified.
func (c Config) Overlay(override Config) (Config, error) {
	merged := c.Clone()
	o := override.Clone()
	features, policy, fine := o.Features, o.SecurityPolicy, o.FineGrained
	o.Features, o.SecurityPolicy, o.FineGrained = nil, nil, nil

	if err := mergo.Merge(&merged, o, mergo.WithOverride); err != nil {
		return c, fmt.Errorf("failed to overlay configuration: %w", err)
	}
	if features != nil {
		merged.Features = features
	}
	if policy != nil {
		merged.SecurityPolicy = policy
	}
	if fine != nil {
		merged.FineGrained = fine
	}
	return merged, nil
}

// URL builds the endpoint for the given dialect:
// {base}/control/{endpoint_type}/{provider?}/{version}/{suffix}.
func (c Config) URL(d domain.Dialect) string {
	endpoint := c.EndpointType
	if endpoint == "" {
		endpoint = EndpointChat
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return BuildURL(base, endpoint, d, c.Provider, DefaultAPIVersion)
}

// BuildURL assembles a control endpoint URL. An empty provider selects the
// provider-less default route.
func BuildURL(base, endpoint string, d domain.Dialect, provider Provider, version string) string {
	suffix := "chat/completions"
	if d == domain.DialectMessages {
		suffix = "messages"
	}
	if provider != "" {
		return fmt.Sprintf("%s/control/%s/%s/%s/%s", base, endpoint, provider, version, suffix)
	}
	return fmt.Sprintf("%s/control/%s/%s/%s", base, endpoint, version, suffix)
}

// Headers renders the request headers of one call. An empty sessionID omits the
// session header.
func (c Config) Headers(sessionID string) (map[string]string, error) {
	h := map[string]string{
		HeaderAuthorization: "Bearer " + c.APIKey,
		"Content-Type":      "application/json",
	}
	if c.LLMAPIKey != "" {
		h[HeaderLLMAPIKey] = c.LLMAPIKey
	}
	if c.Features != nil {
		v, err := c.Features.DumpForHeaders(nil)
		if err != nil {
			return nil, err
		}
		h[HeaderFeatures] = v
	}
	if c.SecurityPolicy != nil {
		v, err := c.SecurityPolicy.DumpForHeaders(nil)
		if err != nil {
			return nil, err
		}
		h[HeaderPolicy] = v
	}
	if c.FineGrained != nil {
		v, err := c.FineGrained.DumpForHeaders(nil)
		if err != nil {
			return nil, err
		}
		h[HeaderConfig] = v
	}
	if sessionID != "" {
		h[HeaderSessionID] = sessionID
	}
	return h, nil
}

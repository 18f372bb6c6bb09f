package control

import (
	"encoding/json"
	"fmt"
)

// AgentArch selects the planner architecture on the remote side.
type AgentArch string

const (
	ArchSingleLLM AgentArch = "single-llm"
	ArchDualLLM   AgentArch = "dual-llm"
)

// TaggerConfig configures a content classifier.
type TaggerConfig struct {
	Name      string  `json:"name" yaml:"name" mapstructure:"name"`
	Threshold float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
	Mode      string  `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
}

// ConstraintConfig configures a content blocker.
type ConstraintConfig struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
}

// FeaturesHeader is the X-Features header.
type FeaturesHeader struct {
	AgentArch          AgentArch          `json:"agent_arch,omitempty" yaml:"agent_arch,omitempty" mapstructure:"agent_arch"`
	ContentClassifiers []TaggerConfig     `json:"content_classifiers,omitempty" yaml:"content_classifiers,omitempty" mapstructure:"content_classifiers"`
	ContentBlockers    []ConstraintConfig `json:"content_blockers,omitempty" yaml:"content_blockers,omitempty" mapstructure:"content_blockers"`
}

// FeatureFlags toggles the optional classifiers and blockers of a preset.
type FeatureFlags struct {
	ToxicityFilter      bool
	PIIRedaction        bool
	HealthcareGuardrail bool
	FinanceGuardrail    bool
	URLBlocker          bool
	FileBlocker         bool
}

// DualLLMFeatures returns the dual-planner preset, the one workflow runs require.
func DualLLMFeatures(flags FeatureFlags) *FeaturesHeader {
	return buildFeatures(ArchDualLLM, flags)
}

// SingleLLMFeatures returns the single-planner preset.
func SingleLLMFeatures(flags FeatureFlags) *FeaturesHeader {
	return buildFeatures(ArchSingleLLM, flags)
}

func buildFeatures(arch AgentArch, f FeatureFlags) *FeaturesHeader {
	h := &FeaturesHeader{AgentArch: arch}
	add := func(on bool, name string) {
		if on {
			h.ContentClassifiers = append(h.ContentClassifiers, TaggerConfig{Name: name, Threshold: 0.5})
		}
	}
	add(f.ToxicityFilter, "toxicity_filter")
	add(f.PIIRedaction, "pii_redaction")
	add(f.HealthcareGuardrail, "healthcare_topic_guardrail")
	add(f.FinanceGuardrail, "finance_topic_guardrail")
	if f.URLBlocker {
		h.ContentBlockers = append(h.ContentBlockers, ConstraintConfig{Name: "url_blocker"})
	}
	if f.FileBlocker {
		h.ContentBlockers = append(h.ContentBlockers, ConstraintConfig{Name: "file_blocker"})
	}
	return h
}

// DumpForHeaders renders the header value with overrides deep-merged on top.
func (h *FeaturesHeader) DumpForHeaders(overrides map[string]any) (string, error) {
	return dumpForHeaders(h, overrides)
}

// ControlFlowMetaPolicy restricts which values may drive branching tools.
type ControlFlowMetaPolicy struct {
	Mode      string   `json:"mode" yaml:"mode" mapstructure:"mode"`
	Producers []string `json:"producers" yaml:"producers" mapstructure:"producers"`
	Tags      []string `json:"tags" yaml:"tags" mapstructure:"tags"`
	Consumers []string `json:"consumers" yaml:"consumers" mapstructure:"consumers"`
}

// PolicyPresets are the internal policies of the remote enforcement engine.
type PolicyPresets struct {
	DefaultAllow                  bool                  `json:"default_allow" yaml:"default_allow" mapstructure:"default_allow"`
	DefaultAllowEnforcementLevel  string                `json:"default_allow_enforcement_level" yaml:"default_allow_enforcement_level" mapstructure:"default_allow_enforcement_level"`
	EnableNonExecutableMemory     bool                  `json:"enable_non_executable_memory" yaml:"enable_non_executable_memory" mapstructure:"enable_non_executable_memory"`
	BranchingMetaPolicy           ControlFlowMetaPolicy `json:"branching_meta_policy" yaml:"branching_meta_policy" mapstructure:"branching_meta_policy"`
	EnableLLMBlockedTag           bool                  `json:"enable_llm_blocked_tag" yaml:"enable_llm_blocked_tag" mapstructure:"enable_llm_blocked_tag"`
	LLMBlockedTagEnforcementLevel string                `json:"llm_blocked_tag_enforcement_level" yaml:"llm_blocked_tag_enforcement_level" mapstructure:"llm_blocked_tag_enforcement_level"`
}

// PolicyCode is the user policy source.
type PolicyCode struct {
	Code     string `json:"code" yaml:"code" mapstructure:"code"`
	Language string `json:"language" yaml:"language" mapstructure:"language"`
}

// SecurityPolicyHeader is the X-Policy header.
type SecurityPolicyHeader struct {
	Mode     string         `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
	Codes    *PolicyCode    `json:"codes,omitempty" yaml:"codes,omitempty" mapstructure:"codes"`
	AutoGen  *bool          `json:"auto_gen,omitempty" yaml:"auto_gen,omitempty" mapstructure:"auto_gen"`
	FailFast *bool          `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty" mapstructure:"fail_fast"`
	Presets  *PolicyPresets `json:"presets,omitempty" yaml:"presets,omitempty" mapstructure:"presets"`
}

// DefaultPresets returns the presets the remote side assumes when none are sent.
func DefaultPresets() *PolicyPresets {
	return &PolicyPresets{
		DefaultAllow:                  true,
		DefaultAllowEnforcementLevel:  "soft",
		EnableNonExecutableMemory:     true,
		BranchingMetaPolicy:           ControlFlowMetaPolicy{Mode: "deny", Producers: []string{}, Tags: []string{}, Consumers: []string{}},
		EnableLLMBlockedTag:           true,
		LLMBlockedTagEnforcementLevel: "hard",
	}
}

// DualLLMPolicy returns a standard-mode policy carrying the given sqrt code.
func DualLLMPolicy(code string) *SecurityPolicyHeader {
	autoGen := false
	return &SecurityPolicyHeader{
		Mode:    "standard",
		Codes:   &PolicyCode{Code: code, Language: "sqrt"},
		AutoGen: &autoGen,
		Presets: DefaultPresets(),
	}
}

// SingleLLMPolicy returns a standard-mode policy for the single planner.
func SingleLLMPolicy(code string) *SecurityPolicyHeader {
	p := DualLLMPolicy(code)
	p.Presets.EnableNonExecutableMemory = false
	return p
}

// DumpForHeaders renders the header value with overrides deep-merged on top.
func (h *SecurityPolicyHeader) DumpForHeaders(overrides map[string]any) (string, error) {
	return dumpForHeaders(h, overrides)
}

// FsmOverrides tune the planner state machine.
type FsmOverrides struct {
	MinNumToolsForFiltering     *int     `json:"min_num_tools_for_filtering,omitempty" yaml:"min_num_tools_for_filtering,omitempty" mapstructure:"min_num_tools_for_filtering"`
	ClearSessionMeta            string   `json:"clear_session_meta,omitempty" yaml:"clear_session_meta,omitempty" mapstructure:"clear_session_meta"`
	MaxNTurns                   *int     `json:"max_n_turns,omitempty" yaml:"max_n_turns,omitempty" mapstructure:"max_n_turns"`
	HistoryMismatchPolicy       string   `json:"history_mismatch_policy,omitempty" yaml:"history_mismatch_policy,omitempty" mapstructure:"history_mismatch_policy"`
	ClearHistoryEveryNAttempts  *int     `json:"clear_history_every_n_attempts,omitempty" yaml:"clear_history_every_n_attempts,omitempty" mapstructure:"clear_history_every_n_attempts"`
	DisableRLLM                 *bool    `json:"disable_rllm,omitempty" yaml:"disable_rllm,omitempty" mapstructure:"disable_rllm"`
	EnableMultistepPlanning     *bool    `json:"enable_multistep_planning,omitempty" yaml:"enable_multistep_planning,omitempty" mapstructure:"enable_multistep_planning"`
	EnabledInternalTools        []string `json:"enabled_internal_tools,omitempty" yaml:"enabled_internal_tools,omitempty" mapstructure:"enabled_internal_tools"`
	PruneFailedSteps            *bool    `json:"prune_failed_steps,omitempty" yaml:"prune_failed_steps,omitempty" mapstructure:"prune_failed_steps"`
	ForceToCache                []string `json:"force_to_cache,omitempty" yaml:"force_to_cache,omitempty" mapstructure:"force_to_cache"`
	MaxPLLMSteps                *int     `json:"max_pllm_steps,omitempty" yaml:"max_pllm_steps,omitempty" mapstructure:"max_pllm_steps"`
	MaxPLLMFailedSteps          *int     `json:"max_pllm_failed_steps,omitempty" yaml:"max_pllm_failed_steps,omitempty" mapstructure:"max_pllm_failed_steps"`
	MaxToolCallsPerStep         *int     `json:"max_tool_calls_per_step,omitempty" yaml:"max_tool_calls_per_step,omitempty" mapstructure:"max_tool_calls_per_step"`
	ReducedGrammarForRLLMReview *bool    `json:"reduced_grammar_for_rllm_review,omitempty" yaml:"reduced_grammar_for_rllm_review,omitempty" mapstructure:"reduced_grammar_for_rllm_review"`
	RetryOnPolicyViolation      *bool    `json:"retry_on_policy_violation,omitempty" yaml:"retry_on_policy_violation,omitempty" mapstructure:"retry_on_policy_violation"`
}

// PromptOverrides tune the prompts of the planning LLM.
type PromptOverrides struct {
	PLLM *LLMPromptOverrides `json:"pllm,omitempty" yaml:"pllm,omitempty" mapstructure:"pllm"`
	RLLM *LLMPromptOverrides `json:"rllm,omitempty" yaml:"rllm,omitempty" mapstructure:"rllm"`
}

// LLMPromptOverrides select a prompt flavor and version.
type LLMPromptOverrides struct {
	Flavor         string `json:"flavor,omitempty" yaml:"flavor,omitempty" mapstructure:"flavor"`
	Version        string `json:"version,omitempty" yaml:"version,omitempty" mapstructure:"version"`
	DebugInfoLevel string `json:"debug_info_level,omitempty" yaml:"debug_info_level,omitempty" mapstructure:"debug_info_level"`
}

// ResponseFormatOverrides shape the assistant content of dual-LLM responses.
type ResponseFormatOverrides struct {
	StripResponseContent      *bool `json:"strip_response_content,omitempty" yaml:"strip_response_content,omitempty" mapstructure:"strip_response_content"`
	IncludeProgram            *bool `json:"include_program,omitempty" yaml:"include_program,omitempty" mapstructure:"include_program"`
	IncludePolicyCheckHistory *bool `json:"include_policy_check_history,omitempty" yaml:"include_policy_check_history,omitempty" mapstructure:"include_policy_check_history"`
	IncludeNamespaceSnapshot  *bool `json:"include_namespace_snapshot,omitempty" yaml:"include_namespace_snapshot,omitempty" mapstructure:"include_namespace_snapshot"`
}

// FineGrainedConfigHeader is the X-Config header.
type FineGrainedConfigHeader struct {
	Fsm            *FsmOverrides            `json:"fsm,omitempty" yaml:"fsm,omitempty" mapstructure:"fsm"`
	Prompt         *PromptOverrides         `json:"prompt,omitempty" yaml:"prompt,omitempty" mapstructure:"prompt"`
	ResponseFormat *ResponseFormatOverrides `json:"response_format,omitempty" yaml:"response_format,omitempty" mapstructure:"response_format"`
}

// DualLLMConfig returns the fine-grained defaults of the dual planner.
func DualLLMConfig() *FineGrainedConfigHeader {
	return &FineGrainedConfigHeader{
		Fsm: &FsmOverrides{
			MinNumToolsForFiltering: Ptr(10),
			ClearSessionMeta:        "never",
			MaxNTurns:               Ptr(5),
			DisableRLLM:             Ptr(true),
		},
	}
}

// SingleLLMConfig returns the fine-grained defaults of the single planner.
func SingleLLMConfig() *FineGrainedConfigHeader {
	return &FineGrainedConfigHeader{
		Fsm: &FsmOverrides{
			MinNumToolsForFiltering: Ptr(10),
			ClearSessionMeta:        "never",
			MaxNTurns:               Ptr(50),
		},
	}
}

// DumpForHeaders renders the header value with overrides deep-merged on top.
func (h *FineGrainedConfigHeader) DumpForHeaders(overrides map[string]any) (string, error) {
	return dumpForHeaders(h, overrides)
}

// Ptr returns a pointer to v. Handy for the optional header fields.
func Ptr[T any](v T) *T {
	return &v
}

func dumpForHeaders(h any, overrides map[string]any) (string, error) {
	raw, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode header: %w", err)
	}
	if len(overrides) == 0 {
		return string(raw), nil
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("failed to decode header: %w", err)
	}
	deepMerge(data, overrides)

	out, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode header overrides: %w", err)
	}
	return string(out), nil
}

// deepMerge folds overrides into base. Nested objects merge recursively; any
// other value, lists included, replaces what base holds.
func deepMerge(base, overrides map[string]any) {
	for k, v := range overrides {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := base[k].(map[string]any); ok {
				deepMerge(cur, sub)
				continue
			}
		}
		base[k] = v
	}
}

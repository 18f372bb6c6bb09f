package runtime

import (
	"fmt"

	"github.com/aretw0/lattice/pkg/control"
	"github.com/aretw0/lattice/pkg/domain"
)

// Preflight checks that cfg can drive a workflow run and returns the
// effective copy: the review LLM is disabled and the workflow endpoint is forced.
// cfg itself is not modified.
func Preflight(cfg control.Config) (control.Config, error) {
	c := cfg.Clone()
	if c.Features == nil || c.Features.AgentArch != control.ArchDualLLM {
		arch := "unset"
		if c.Features != nil && c.Features.AgentArch != "" {
			arch = string(c.Features.AgentArch)
		}
		return cfg, fmt.Errorf("%w: workflow runs require agent_arch %q, got %s", domain.ErrConfiguration, control.ArchDualLLM, arch)
	}
	if c.FineGrained == nil {
		c.FineGrained = &control.FineGrainedConfigHeader{}
	}
	if rf := c.FineGrained.ResponseFormat; rf != nil && rf.StripResponseContent != nil && *rf.StripResponseContent {
		return cfg, fmt.Errorf("%w: strip_response_content must be disabled for workflow runs", domain.ErrConfiguration)
	}
	if c.FineGrained.Fsm == nil {
		c.FineGrained.Fsm = &control.FsmOverrides{}
	}
	c.FineGrained.Fsm.DisableRLLM = control.Ptr(true)
	c.EndpointType = control.EndpointLangGraph
	return c, nil
}

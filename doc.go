/*
Package lattice compiles workflow graphs into a program for a remote secure
orchestrator and drives the tool-execution loop that runs it.

The orchestrator plans against the program text and the tool schemas; every
time it needs a node that lives in this process it asks for a tool call, and
the engine executes the node locally, merges its partial state and answers.
The loop ends when the orchestrator stops asking for tools, when the step
budget runs out, or on the first error.

# Concept

A graph is a set of named nodes, unconditional edges and at most one
conditional branch per node. Nodes are either external (executed locally as
tools) or internal (mapped to a tool the orchestrator already has). The
compiler freezes the program and the schemas at construction time, so every
run of an Engine sends byte-identical definitions.

Two wire dialects are supported: chat completions, and messages for the
anthropic provider.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/lattice"
		"github.com/aretw0/lattice/pkg/control"
		"github.com/aretw0/lattice/pkg/domain"
		"github.com/aretw0/lattice/pkg/dsl"
	)

	func main() {
		b := dsl.New("newsletter")
		b.Entry("fetch")
		b.Add("fetch", fetchPosts).Go("summarize")
		b.Add("summarize", summarize).Terminal()
		graph, err := b.Build()
		if err != nil {
			log.Fatal(err)
		}

		cfg := control.DefaultConfig()
		cfg.APIKey = "..."

		eng, err := lattice.New(graph, lattice.WithConfig(cfg))
		if err != nil {
			log.Fatal(err)
		}

		res, err := eng.Run(context.Background(), domain.State{"topic": "go"}, lattice.RunOptions{Model: "gpt-5-mini"})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(res.State["result"])
	}
*/
package lattice

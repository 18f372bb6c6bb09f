/*
Package domain contains the core domain models of the Lattice workflow compiler.

It defines the workflow graph that callers hand to the compiler, the execution state
that a run mutates, the tool schemas surfaced to the remote planner and the error
taxonomy shared by every layer. This package is kept pure and free of I/O, following
Hexagonal Architecture principles.

# Key Entities

  - Graph: ordered nodes, unconditional edges and at most one Branch per node.
  - State: the mutable map a run threads through every tool invocation.
  - ToolSchema: the description of an external node as an invocable tool.
  - RunRecord: the outcome of a finished run, as written by a RunRecorder.
*/
package domain

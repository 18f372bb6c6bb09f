/*
Package ports defines the driven ports (interfaces) of the Lattice runtime.

These interfaces decouple the execution loop from external implementations, allowing
runs to talk to the remote orchestrator over any transport and to record their
outcome in any backend.

# Key Interfaces

  - Transport: Sends one request to the remote orchestrator and returns its body and session token.
  - RunRecorder: Persists the audit record of finished runs (e.g., in Memory or Redis).
  - SessionLocker: Serializes runs that resume the same orchestrator session across replicas.
*/
package ports

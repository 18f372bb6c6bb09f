/*
Package observability turns run lifecycle events into Prometheus metrics and
structured log lines.

Both are exposed as domain.LifecycleHooks so they can be combined with
domain.Combine and passed to lattice.WithLifecycleHooks.
*/
package observability

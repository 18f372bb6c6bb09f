/*
Package control holds the configuration spoken to the remote orchestrator.

It models the three configuration headers (X-Features, X-Policy and X-Config), the
endpoint URL layout, provider to dialect selection and the lenient parsing of the
dual-LLM response content. Nothing here performs I/O; the HTTP transport in
pkg/adapters/http consumes these values.
*/
package control

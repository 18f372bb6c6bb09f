/*
Package session serializes runs that resume the same orchestrator session.

A remote session is one conversation. Two runs replaying the same session token
concurrently would interleave their requests, so the Manager holds a per-session
lock for the whole run: locally with reference-counted mutexes, and optionally
across replicas with a ports.SessionLocker.
*/
package session

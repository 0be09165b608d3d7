// Package session provides Redis-backed session persistence and compact binary session
// encoding.
//
// # Binary encoding
//
// A session is stored under "<prefix>:<id>" as a fixed-layout blob (see [Encode]).
// The Redis key TTL is the sliding idle timeout; the absolute lifetime travels inside
// the blob and caps every TTL renewal.
//
// # Level promotion
//
// [Store.Promote] rewrites the level byte inside a Lua script so the read-modify-write
// is atomic, keeps the remaining TTL, and never lowers a level.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// look up users, verify credentials or decide which level an operation requires.
// Those decisions belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goMFA, jwt, password or totp (no upward imports).
//   - Store secrets, codes or password material in [Session] fields.
package session

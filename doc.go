// Package vaultgate provides a session and end-to-end message security
// engine: password login with Redis-backed lockout, signed access tokens
// mirrored to revocable sessions, one-time code verification for email and
// mobile channels, and authenticated encryption for message text and media
// blobs.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// vaultgate is the public surface. It exposes [Engine], [Builder],
// [Config], the error taxonomy, and value types (AuthResult, UserSummary,
// VerificationStatus). Credential persistence stays behind
// [CredentialProvider]; everything ephemeral (sessions, lockout counters,
// verification codes) lives in Redis. The crypto, media, password,
// session, and token sub-packages carry no vaultgate imports.
//
// # Failure posture
//
// Decryption fails closed: any tampering, truncation, or key mismatch
// surfaces as a single integrity error and is always audited. Login
// failures are indistinguishable between unknown accounts and wrong
// passwords.
package vaultgate

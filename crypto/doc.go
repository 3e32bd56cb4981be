// Package crypto provides the authenticated-encryption primitives shared by
// the engine: AES-256-GCM with detached tags, HKDF key derivation, random
// key material, and HMAC digests. Decryption fails closed with a single
// opaque error.
package crypto

// Package session stores server-side session records in Redis. Records are
// encoded in a compact versioned binary format, indexed per user for bulk
// revocation, and enforce their absolute expiry lazily on read.
package session

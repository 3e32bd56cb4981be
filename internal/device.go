package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint digests the request attributes that identify a client device:
// network address, client string, and accept-language. The digest is
// one-way; the attributes cannot be recovered from it.
func Fingerprint(ip, client, language string) [32]byte {
	return sha256.Sum256([]byte(ip + "\n" + client + "\n" + language))
}

// FingerprintHex is Fingerprint rendered for audit metadata.
func FingerprintHex(ip, client, language string) string {
	sum := Fingerprint(ip, client, language)
	return hex.EncodeToString(sum[:])
}

// Package media encrypts chat attachments with a key derived per
// participant pair. The derivation is memory-hard (argon2id) over the two
// participant IDs and a per-blob salt, so there is no key database: any
// holder of the participant IDs (and the optional server pepper) can
// re-derive the key from the blob itself. Blobs are packed as
// salt‖iv‖tag‖ciphertext and stored on disk under random names.
package media

// Package token issues and verifies the signed access tokens handed to
// clients. A token carries the user ID, session ID, and role; its expiry is
// pinned to the session's absolute expiry, and revocation is enforced by
// the session store, not the token.
package token

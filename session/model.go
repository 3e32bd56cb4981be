package session

// Session is the server-side record behind an issued access token. The
// fingerprint and origin fields are audit metadata, never authentication
// factors.
type Session struct {
	SessionID   string
	UserID      string
	Role        string
	IP          string
	Client      string
	Fingerprint [32]byte
	CreatedAt   int64
	ExpiresAt   int64
}

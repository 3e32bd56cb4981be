package vaultgate

import "context"

type clientIPContextKey struct{}
type clientStringContextKey struct{}
type acceptLanguageContextKey struct{}

// WithClientIP attaches the caller's network address to ctx. The engine
// records it on sessions, folds it into the device fingerprint, and tags
// audit events with it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithClientString attaches the caller's client identification string
// (typically the HTTP User-Agent) to ctx.
func WithClientString(ctx context.Context, client string) context.Context {
	return context.WithValue(ctx, clientStringContextKey{}, client)
}

// WithAcceptLanguage attaches the caller's accept-language header to ctx.
// It participates only in the device fingerprint digest.
func WithAcceptLanguage(ctx context.Context, language string) context.Context {
	return context.WithValue(ctx, acceptLanguageContextKey{}, language)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func clientStringFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	client, _ := ctx.Value(clientStringContextKey{}).(string)
	return client
}

func acceptLanguageFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	language, _ := ctx.Value(acceptLanguageContextKey{}).(string)
	return language
}

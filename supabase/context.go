package supabase

import "context"

type accessTokenKey struct{}

// WithAccessToken returns a context carrying a user access token. Queries
// executed with it run under that user's row level security unless the
// builder selects another key explicitly.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext extracts an access token stored by WithAccessToken.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

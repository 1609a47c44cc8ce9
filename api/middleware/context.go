package middleware

import "context"

type callerKey struct{}

// Caller is the principal the bearer token resolved to. AccountType is the
// token's claim; services re-read the profile before trusting it.
type Caller struct {
	UserID      string
	AccountType string
}

// WithCaller stores the authenticated caller on ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, caller)
}

func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok && caller.UserID != ""
}

func UserIDFromContext(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.UserID
}

func AccountTypeFromContext(ctx context.Context) string {
	caller, _ := CallerFromContext(ctx)
	return caller.AccountType
}

// WithUserID is shorthand for a caller whose account type is unknown.
func WithUserID(ctx context.Context, userID string) context.Context {
	return WithCaller(ctx, Caller{UserID: userID})
}

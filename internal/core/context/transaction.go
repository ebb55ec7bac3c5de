package context

import "context"

type transactionIDKey struct{}

// WithTransactionID records the id of the transaction active in ctx so that
// log lines emitted inside the unit of work can be correlated.
func WithTransactionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, transactionIDKey{}, id)
}

// GetTransactionID returns the active transaction id or "".
func GetTransactionID(ctx context.Context) string {
	if v, ok := ctx.Value(transactionIDKey{}).(string); ok {
		return v
	}
	return ""
}

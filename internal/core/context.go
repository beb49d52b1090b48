package core

import "context"

type contextKey string

const (
	ctxKeyTrigger   contextKey = "import_trigger"
	ctxKeyIPAddress contextKey = "import_ip"
)

// Triggers recorded on import runs.
const (
	TriggerCLI  = "cli"
	TriggerHTTP = "http"
)

// ContextWithTrigger records what started a run ("cli" or "http").
func ContextWithTrigger(ctx context.Context, trigger string) context.Context {
	return context.WithValue(ctx, ctxKeyTrigger, trigger)
}

// ContextWithIPAddress records the client address of an HTTP-triggered run.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// TriggerFromContext returns the run trigger, defaulting to "cli".
func TriggerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTrigger).(string); ok && v != "" {
		return v
	}
	return TriggerCLI
}

// GetIPAddressFromContext extracts the client address, if any.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

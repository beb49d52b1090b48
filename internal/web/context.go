package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/colegiosrd/internal/core"
)

// runContext detaches a run from the request's cancellation and marks it
// HTTP-triggered. The client IP set by middleware.ClientIP is kept.
func runContext(r *http.Request) context.Context {
	return core.ContextWithTrigger(context.WithoutCancel(r.Context()), core.TriggerHTTP)
}

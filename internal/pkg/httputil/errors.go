package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/incident-commander/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // defaults to the sentinel's text
}

// HandleError writes the response of the first mapping err matches.
// Unmapped errors are logged and answered with 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = m.Error.Error()
		}
		ctxlog.FromContext(ctx).Debug("request rejected", "status", m.Status, "error", err)
		Error(w, m.Status, msg)
		return
	}

	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

package safe

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// Close safely closes an io.Closer and logs any errors.
// It handles nil closers gracefully.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// Fprintf writes a formatted line to w and logs any errors.
// It handles nil writers gracefully.
func Fprintf(ctx context.Context, w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	if _, err := fmt.Fprintf(w, format, args...); err != nil {
		logging.From(ctx).Error("Failed to write", slog.Any("error", err))
	}
}

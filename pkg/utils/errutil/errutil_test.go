package errutil_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/utils/errutil"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

func TestHandle(t *testing.T) {
	t.Run("logs goerr values", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

		errutil.Handle(ctx, goerr.New("boom", goerr.V("user_id", "john.roe")), "failed to fetch user")

		gt.String(t, buf.String()).Contains("failed to fetch user")
		gt.String(t, buf.String()).Contains("john.roe")
	})

	t.Run("logs plain errors", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

		errutil.Handle(ctx, errors.New("plain"), "plain failure")
		gt.String(t, buf.String()).Contains("plain failure")
	})

	t.Run("nil error is ignored", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

		errutil.Handle(ctx, nil, "nothing")
		gt.Value(t, buf.Len()).Equal(0)
	})
}

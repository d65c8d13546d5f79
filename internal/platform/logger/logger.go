// Package logger builds the process logger: text at debug level in
// development, JSON at info level otherwise, with errors fanned out to Sentry
// when a DSN is configured.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

const flushTimeout = 2 * time.Second

type Options struct {
	Development bool
	SentryDSN   string
	Environment string
	// Output defaults to stdout.
	Output io.Writer
}

// New returns the logger and installs it as the slog default. The returned
// flush func drains Sentry and is a no-op without a DSN.
func New(opts Options) (*slog.Logger, func(), error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var base slog.Handler
	if opts.Development {
		base = slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		base = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	}

	flush := func() {}
	handler := base
	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Environment,
		}); err != nil {
			return nil, flush, err
		}
		handler = slogmulti.Fanout(base, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
		flush = func() { sentry.Flush(flushTimeout) }
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log, flush, nil
}

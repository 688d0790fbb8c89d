package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Logger holds CLI flags for the process wide logger
type Logger struct {
	level   string
	format  string
	output  string
	verbose bool
	info    bool
	debug   bool
}

func (x *Logger) Flags() []cli.Flag {
	category := "Logging"
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Aliases:     []string{"l"},
			Usage:       "Log level [debug|info|warn|error]",
			Category:    category,
			Value:       "warn",
			Destination: &x.level,
			Sources:     cli.EnvVars("IPASYNC_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format [console|json]",
			Category:    category,
			Value:       "console",
			Destination: &x.format,
			Sources:     cli.EnvVars("IPASYNC_LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output [stdout|stderr|-|<file path>]",
			Category:    category,
			Value:       "stderr",
			Destination: &x.output,
			Sources:     cli.EnvVars("IPASYNC_LOG_OUTPUT"),
		},
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "Also write logs to stderr when logging to a file",
			Category:    category,
			Destination: &x.verbose,
		},
		&cli.BoolFlag{
			Name:        "info-log-level",
			Usage:       "Shortcut for --log-level info",
			Category:    category,
			Destination: &x.info,
		},
		&cli.BoolFlag{
			Name:        "debug-log-level",
			Usage:       "Shortcut for --log-level debug",
			Category:    category,
			Destination: &x.debug,
		},
	}
}

func (x Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", x.effectiveLevel()),
		slog.String("format", x.format),
		slog.String("output", x.output),
		slog.Bool("verbose", x.verbose),
	)
}

func (x *Logger) effectiveLevel() string {
	switch {
	case x.debug:
		return "debug"
	case x.info:
		return "info"
	default:
		return x.level
	}
}

// Configure builds the logger and installs it as the default one. The returned
// function closes the log file, if any.
func (x *Logger) Configure() (func(), error) {
	closer := func() {}

	level, ok := logLevels[strings.ToLower(x.effectiveLevel())]
	if !ok {
		return closer, goerr.Wrap(ErrInvalidConfig, "invalid log level", goerr.V("level", x.effectiveLevel()))
	}

	var w io.Writer
	switch x.output {
	case "", "stderr":
		w = os.Stderr
	case "stdout", "-":
		w = os.Stdout
	default:
		// #nosec G304 - log path is given by the operator
		f, err := os.OpenFile(x.output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
		if err != nil {
			return closer, goerr.Wrap(err, "failed to open log file", goerr.V("path", x.output))
		}
		closer = func() { _ = f.Close() }
		w = f
		if x.verbose {
			w = io.MultiWriter(f, os.Stderr)
		}
	}

	handler, err := newLogHandler(w, x.format, level)
	if err != nil {
		closer()
		return func() {}, err
	}

	logging.SetDefault(slog.New(handler))
	return closer, nil
}

func newLogHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldPrefix("secret_"),
		masq.WithFieldName("password"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("bind_password"),
	)

	switch format {
	case "console", "":
		return clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(filter),
			clog.WithColorMap(&clog.ColorMap{
				Level: map[slog.Level]*color.Color{
					slog.LevelDebug: color.New(color.FgGreen, color.Bold),
					slog.LevelInfo:  color.New(color.FgCyan, color.Bold),
					slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
					slog.LevelError: color.New(color.FgRed, color.Bold),
				},
				LevelDefault: color.New(color.FgBlue, color.Bold),
				Time:         color.New(color.FgWhite),
				Message:      color.New(color.FgHiWhite),
				AttrKey:      color.New(color.FgHiCyan),
				AttrValue:    color.New(color.FgHiWhite),
			}),
		), nil

	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: filter,
		}), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid log format", goerr.V("format", format))
	}
}

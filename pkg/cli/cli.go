package cli

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/secmon-lab/ipasync/pkg/cli/config"
	"github.com/secmon-lab/ipasync/pkg/utils/errutil"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// globals are the root flags every subcommand reads
type globals struct {
	configPath string
	quiet      bool
	creds      config.Credentials
}

func Run(ctx context.Context, args []string, version string) error {
	var (
		loggerCfg config.Logger
		sentryCfg config.Sentry
		g         globals
		closers   []func()
	)
	defer func() {
		for _, f := range slices.Backward(closers) {
			f()
		}
	}()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML configuration file",
			Value:       config.DefaultConfigPath,
			Destination: &g.configPath,
			Sources:     cli.EnvVars("IPASYNC_CONFIG"),
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "Do not print results to the console",
			Destination: &g.quiet,
		},
	}
	flags = append(flags, loggerCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)
	flags = append(flags, g.creds.Flags()...)

	app := &cli.Command{
		Name:    "ipasync",
		Usage:   "Synchronize corporate directory users into the identity system and manage password lifecycle",
		Version: version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logCloser, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closers = append(closers, logCloser)

			flush, err := sentryCfg.Configure(version)
			if err != nil {
				return ctx, err
			}
			closers = append(closers, flush)

			logger := logging.Default().With("run_id", uuid.NewString())
			logger.Info("Starting ipasync",
				"version", version,
				"config", g.configPath,
				"logger", loggerCfg,
				"sentry", sentryCfg,
				"credentials", g.creds,
			)
			return logging.With(ctx, logger), nil
		},
		Commands: []*cli.Command{
			cmdCheckServers(&g),
			cmdCheckCache(&g),
			cmdUpdateDirectoryCache(&g),
			cmdUpdateIdentityCache(&g),
			cmdUpdateCacheFiles(&g),
			cmdDeleteCache(&g),
			cmdDisableUser(&g),
			cmdEnableUser(&g),
			cmdDeleteUser(&g),
			cmdDeleteUserOTPTokens(&g),
			cmdResetUserPassword(&g),
			cmdListExpiredUsers(&g),
			cmdListUsersNoPassword(&g),
			cmdExportUsers(&g),
			cmdImportUsers(&g),
			cmdImportTemplate(&g),
			cmdUpdateFromDirectory(&g),
			cmdProcessPasswordExpirations(&g),
			cmdProcessTerminatedUsers(&g),
			cmdRemindPasswordChange(&g),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		errutil.Handle(ctx, err, "failed to run ipasync")
		return err
	}

	return nil
}

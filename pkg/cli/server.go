package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/cli/config"
	"github.com/secmon-lab/ipasync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdCheckServers(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "check-servers",
		Usage: "Check that the directory, identity and SMTP servers accept connections",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadAppConfiguration(g.configPath)
			if err != nil {
				return err
			}
			servers, err := cfg.Servers()
			if err != nil {
				return err
			}

			out := newConsole(ctx, c, g.quiet)
			statuses := usecase.NewServerUseCase(servers, nil).CheckServers(ctx)
			for _, s := range statuses {
				out.Result(s.Reachable, fmt.Sprintf("%s (%s)", s.Name, s.Address()))
			}

			if !usecase.AllReachable(statuses) {
				return goerr.Wrap(ErrServersUnreachable, "connectivity check failed")
			}
			return nil
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdCheckCache(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "check-cache",
		Usage: "Show whether the directory and identity snapshots are still valid",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			for _, status := range env.uc.Cache.Status(ctx) {
				msg := status.Kind.String() + ": not cached"
				if !status.LoadedAt.IsZero() {
					msg = fmt.Sprintf("%s: loaded at %s", status.Kind, status.LoadedAt.Format(time.RFC3339))
				}
				env.out.Result(status.Valid, msg)
			}
			env.out.Result(!env.uc.Cache.IsStale(ctx), "cache is up to date")
			return nil
		}),
	}
}

func cmdUpdateDirectoryCache(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "update-ad-cache",
		Usage: "Reload the directory snapshot",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			ok := env.uc.Cache.UpdateDirectory(ctx)
			env.out.Result(ok, "directory cache")
			if !ok {
				return goerr.Wrap(ErrActionFailed, "failed to update directory cache")
			}
			return nil
		}),
	}
}

func cmdUpdateIdentityCache(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "update-freeipa-cache",
		Usage: "Reload the identity system snapshot",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			ok := env.uc.Cache.UpdateIdentity(ctx)
			env.out.Result(ok, "identity cache")
			if !ok {
				return goerr.Wrap(ErrActionFailed, "failed to update identity cache")
			}
			return nil
		}),
	}
}

func cmdUpdateCacheFiles(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "update-cache-files",
		Usage: "Reload both snapshots",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			directoryOK, identityOK := env.uc.Cache.UpdateAll(ctx)
			env.out.Result(directoryOK, "directory cache")
			env.out.Result(identityOK, "identity cache")
			if !directoryOK || !identityOK {
				return goerr.Wrap(ErrActionFailed, "failed to update cache",
					goerr.V("directory", directoryOK), goerr.V("identity", identityOK))
			}
			return nil
		}),
	}
}

func cmdDeleteCache(g *globals) *cli.Command {
	var kinds []string

	return &cli.Command{
		Name:  "delete-cache",
		Usage: "Delete the cached user snapshots, or the documents selected with --kind",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "kind",
				Usage:       "Only delete these documents [directory|identity|notification_history|disabled_ledger]",
				Destination: &kinds,
			},
		},
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			var targets []types.CacheKind
			for _, k := range kinds {
				kind, err := types.ParseCacheKind(k)
				if err != nil {
					return goerr.Wrap(err, "invalid cache kind", goerr.V("kind", k))
				}
				targets = append(targets, kind)
			}

			existed, err := env.uc.Cache.Delete(ctx, targets...)
			if err != nil {
				return err
			}
			if existed {
				env.out.OK("cache deleted")
			} else {
				env.out.OK("nothing to delete")
			}
			return nil
		}),
	}
}

package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

func cmdUpdateFromDirectory(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "update-from-ad",
		Usage: "Copy changed directory attributes onto identity system users",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			updated, failed, err := env.uc.Sync.UpdateFromDirectory(ctx)
			if err != nil {
				return err
			}
			env.out.List("Updated", userIDStrings(updated))
			env.out.List("Failed", userIDStrings(failed))
			return nil
		}),
	}
}

func cmdProcessTerminatedUsers(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "process-terminated-users",
		Usage: "Delete identity system users that left the directory",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			deleted, notDeleted, err := env.uc.Sync.ProcessTerminatedUsers(ctx)
			if err != nil {
				return err
			}
			env.out.List("Deleted", userIDStrings(deleted))
			env.out.List("Not deleted", userIDStrings(notDeleted))
			return nil
		}),
	}
}

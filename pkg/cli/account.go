package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// outcomeResult prints an account operation outcome and turns failures into
// an error. Unchanged counts as success.
func outcomeResult(env *environment, id types.UserID, action string, outcome types.Outcome) error {
	ok := outcome.OK() || outcome == types.OutcomeUnchanged
	env.out.Result(ok, action+" "+id.String()+": "+outcome.String())
	if !ok {
		return goerr.Wrap(ErrActionFailed, action+" failed", goerr.V("user_id", id), goerr.V("outcome", outcome))
	}
	return nil
}

func cmdDisableUser(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "disable-user",
		Usage:     "Disable an identity system account",
		ArgsUsage: "<user_id>",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			id, err := userIDArg(c)
			if err != nil {
				return err
			}
			return outcomeResult(env, id, "disable", env.uc.Account.DisableUser(ctx, id))
		}),
	}
}

func cmdEnableUser(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "enable-user",
		Usage:     "Enable an identity system account",
		ArgsUsage: "<user_id>",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			id, err := userIDArg(c)
			if err != nil {
				return err
			}
			return outcomeResult(env, id, "enable", env.uc.Account.EnableUser(ctx, id))
		}),
	}
}

func cmdDeleteUser(g *globals) *cli.Command {
	var permanent bool

	return &cli.Command{
		Name:      "delete-user",
		Usage:     "Delete an identity system account (preserved unless --permanent)",
		ArgsUsage: "<user_id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "permanent",
				Usage:       "Remove the account instead of preserving it",
				Destination: &permanent,
			},
		},
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			id, err := userIDArg(c)
			if err != nil {
				return err
			}
			return outcomeResult(env, id, "delete", env.uc.Account.DeleteUser(ctx, id, permanent))
		}),
	}
}

func cmdDeleteUserOTPTokens(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "delete-user-otp-tokens",
		Usage:     "Delete every OTP token owned by a user",
		ArgsUsage: "<user_id>",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			id, err := userIDArg(c)
			if err != nil {
				return err
			}

			ok := env.uc.Account.DeleteOTPTokens(ctx, id)
			env.out.Result(ok, "delete OTP tokens of "+id.String())
			if !ok {
				return goerr.Wrap(ErrActionFailed, "failed to delete OTP tokens", goerr.V("user_id", id))
			}
			return nil
		}),
	}
}

func cmdResetUserPassword(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "reset-user-password",
		Usage:     "Set a new temporary password and mail it to the user",
		ArgsUsage: "<user_id>",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			id, err := userIDArg(c)
			if err != nil {
				return err
			}

			password, notified, err := env.uc.Account.ResetUserPassword(ctx, id)
			if err != nil {
				return err
			}

			env.out.OK("password of " + id.String() + " reset to " + password)
			env.out.Result(notified, "notice mailed to "+id.String())
			return nil
		}),
	}
}

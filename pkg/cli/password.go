package cli

import (
	"context"
	"fmt"

	"github.com/secmon-lab/ipasync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func expiredStrings(users []usecase.ExpiredUser) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = fmt.Sprintf("%s (expired %d days ago)", u.ID, u.Days)
	}
	return out
}

func cmdListExpiredUsers(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "list-expired-users",
		Usage: "List users whose password has expired",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			within, beyond, err := env.uc.Password.ListExpiredUsers(ctx)
			if err != nil {
				return err
			}

			period := env.uc.Password.Policy().GraciousPeriod
			env.out.List(fmt.Sprintf("Expired within the %d day gracious period", period), expiredStrings(within))
			env.out.List("Expired beyond the gracious period", expiredStrings(beyond))
			return nil
		}),
	}
}

func cmdListUsersNoPassword(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "list-users-no-password",
		Usage: "List users who never replaced their temporary password",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			ids, err := env.uc.Password.UsersNoPassword(ctx)
			if err != nil {
				return err
			}
			env.out.List("Users on a temporary password", userIDStrings(ids))
			return nil
		}),
	}
}

func cmdProcessPasswordExpirations(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "process-password-expirations",
		Usage: "Send expiration reminders and disable accounts past the gracious period",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			result, err := env.uc.Password.ProcessPasswordExpirations(ctx)
			if err != nil {
				return err
			}

			env.out.List("Notified", userIDStrings(result.Notified))
			env.out.List("Expired within the gracious period", userIDStrings(result.WithinGrace))
			env.out.List("Expired beyond the gracious period", userIDStrings(result.BeyondGrace))
			env.out.List("Disabled", userIDStrings(result.Disabled))
			return nil
		}),
	}
}

func cmdRemindPasswordChange(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "remind-password-change",
		Usage: "Remind users on a temporary password to change it",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			ids, err := env.uc.Password.RemindPasswordChange(ctx)
			if err != nil {
				return err
			}
			env.out.List("Reminded", userIDStrings(ids))
			return nil
		}),
	}
}

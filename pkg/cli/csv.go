package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
	"github.com/secmon-lab/ipasync/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

func cmdExportUsers(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "export-users",
		Usage:     "Write every identity system user to a CSV file",
		ArgsUsage: "[path]",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			path, err := pathArg(c, env.cfg.CSV.ExportFile)
			if err != nil {
				return err
			}

			// #nosec G304 - path is given by the operator
			f, err := os.Create(path)
			if err != nil {
				return goerr.Wrap(err, "failed to create export file", goerr.V("path", path))
			}
			defer safe.Close(ctx, f)

			n, err := env.uc.CSV.Export(ctx, f)
			if err != nil {
				return err
			}

			logging.From(ctx).Info("users exported", "path", path, "count", n)
			env.out.OK(fmt.Sprintf("%d users exported to %s", n, path))
			return nil
		}),
	}
}

func cmdImportUsers(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "import-users",
		Usage:     "Create or update identity system users from a CSV file",
		ArgsUsage: "[path]",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			path, err := pathArg(c, env.cfg.CSV.ImportFile)
			if err != nil {
				return err
			}

			// #nosec G304 - path is given by the operator
			f, err := os.Open(path)
			if err != nil {
				return goerr.Wrap(err, "failed to open import file", goerr.V("path", path))
			}
			defer safe.Close(ctx, f)

			result, err := env.uc.CSV.Import(ctx, f)
			if err != nil {
				return err
			}

			imported := make([]string, 0, len(result.Imported))
			for id, password := range result.Imported {
				imported = append(imported, id.String()+": "+password)
			}
			sort.Strings(imported)

			env.out.List("Imported", imported)
			env.out.List("Updated", userIDStrings(result.Updated))
			env.out.List("Skipped", userIDStrings(result.Skipped))
			env.out.List("Not imported", userIDStrings(result.NotImported))
			return nil
		}),
	}
}

func cmdImportTemplate(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "import-template",
		Usage:     "Write an empty CSV file with the import columns",
		ArgsUsage: "[path]",
		Action: g.withEnvironment(func(ctx context.Context, c *cli.Command, env *environment) error {
			path, err := pathArg(c, env.cfg.CSV.TemplateFile)
			if err != nil {
				return err
			}

			// #nosec G304 - path is given by the operator
			f, err := os.Create(path)
			if err != nil {
				return goerr.Wrap(err, "failed to create template file", goerr.V("path", path))
			}
			defer safe.Close(ctx, f)

			if err := env.uc.CSV.WriteTemplate(f); err != nil {
				return err
			}
			env.out.OK("import template written to " + path)
			return nil
		}),
	}
}

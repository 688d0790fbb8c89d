package cli

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/cli/config"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/directory"
	"github.com/secmon-lab/ipasync/pkg/service/identity"
	"github.com/secmon-lab/ipasync/pkg/service/notifier"
	"github.com/secmon-lab/ipasync/pkg/usecase"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
	"github.com/secmon-lab/ipasync/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

// environment is everything an action needs, built from the configuration
type environment struct {
	cfg     *config.AppConfig
	uc      *usecase.UseCases
	out     *console
	closers []io.Closer
}

func (e *environment) Close(ctx context.Context) {
	for _, c := range e.closers {
		safe.Close(ctx, c)
	}
}

// setup loads the configuration and wires every component. An unreachable
// server or a missing template aborts before any action runs.
func (g *globals) setup(ctx context.Context, c *cli.Command) (*environment, error) {
	logger := logging.From(ctx)

	cfg, err := config.LoadAppConfiguration(g.configPath)
	if err != nil {
		return nil, err
	}

	env := &environment{
		cfg: cfg,
		out: newConsole(ctx, c, g.quiet),
	}

	servers, err := cfg.Servers()
	if err != nil {
		return nil, err
	}

	statuses := usecase.NewServerUseCase(servers, nil).CheckServers(ctx)
	if !usecase.AllReachable(statuses) {
		for _, s := range statuses {
			if !s.Reachable {
				logger.Error("server is unreachable", "name", s.Name, "address", s.Address())
			}
		}
		return nil, goerr.Wrap(ErrServersUnreachable, "connectivity check failed")
	}

	templateFiles := cfg.Notification.TemplateFiles()
	if missing := notifier.MissingTemplates(templateFiles); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, key := range missing {
			names[i] = templateFiles[key]
		}
		return nil, goerr.Wrap(ErrMissingTemplates, "template files not found", goerr.V("files", names))
	}

	docs, err := cfg.Cache.Configure(ctx)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, docs)
	store := cfg.Cache.Store(docs)

	dirClient, err := g.creds.DirectoryClient(&cfg.Directory)
	if err != nil {
		env.Close(ctx)
		return nil, err
	}
	env.closers = append(env.closers, dirClient)

	var dirOpts []directory.Option
	dirOpts = append(dirOpts, directory.WithCorporateDomains(cfg.Sync.CorporateEmailDomains...))
	if cfg.Directory.PageSize > 0 {
		dirOpts = append(dirOpts, directory.WithPageSize(cfg.Directory.PageSize))
	}
	dir := directory.New(dirClient, store, cfg.Directory.BaseDN, dirOpts...)

	idClient, err := g.creds.IdentityClient(&cfg.Identity)
	if err != nil {
		env.Close(ctx)
		return nil, err
	}
	idOpts := []identity.Option{identity.WithGroups(cfg.Identity.Groups)}
	if cfg.Identity.AdminGroup != "" {
		idOpts = append(idOpts, identity.WithAdminGroup(cfg.Identity.AdminGroup))
	}
	ident := identity.New(idClient, store, idOpts...)

	policy := cfg.Notification.Policy()
	n, err := g.notifier(cfg, policy.GraciousPeriod)
	if err != nil {
		env.Close(ctx)
		return nil, err
	}

	syncCfg, err := cfg.Sync.UseCaseConfig()
	if err != nil {
		env.Close(ctx)
		return nil, err
	}

	env.uc = usecase.New(dir, ident, n, store,
		usecase.WithSyncConfig(syncCfg),
		usecase.WithPasswordPolicy(policy),
		usecase.WithServers(servers...),
	)

	logger.Debug("components configured",
		"cache_backend", cfg.Cache.Backend,
		"groups", ident.Groups(),
		"policy", policy,
	)
	return env, nil
}

func (g *globals) notifier(cfg *config.AppConfig, graciousPeriod int) (*notifier.Notifier, error) {
	sender, err := notifier.NewSMTPSender(cfg.Notification.SMTPRelayServer, cfg.Notification.SMTPPort, cfg.Notification.SMTPTimeout())
	if err != nil {
		return nil, err
	}

	opts := []notifier.Option{notifier.WithGraciousPeriod(graciousPeriod)}
	slackSvc, err := g.creds.SlackService(&cfg.Notification)
	if err != nil {
		return nil, err
	}
	if slackSvc != nil {
		opts = append(opts, notifier.WithSlack(slackSvc))
	}

	n, err := notifier.New(sender, cfg.Notification.FromEmail, cfg.Notification.TemplateFiles(), opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load notification templates")
	}
	return n, nil
}

// withEnvironment runs action with a configured environment and closes it
// afterwards
func (g *globals) withEnvironment(action func(ctx context.Context, c *cli.Command, env *environment) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		env, err := g.setup(ctx, c)
		if err != nil {
			return err
		}
		defer env.Close(ctx)
		return action(ctx, c, env)
	}
}

// userIDArg returns the first positional argument as a normalized user ID
func userIDArg(c *cli.Command) (types.UserID, error) {
	id := types.NewUserID(c.Args().First())
	if id == "" {
		return "", goerr.Wrap(ErrMissingArgument, "user ID is required")
	}
	return id, nil
}

// pathArg returns the first positional argument, or def when none is given,
// as an absolute path
func pathArg(c *cli.Command, def string) (string, error) {
	path := strings.TrimSpace(c.Args().First())
	if path == "" {
		path = def
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve path", goerr.V("path", path))
	}
	return abs, nil
}

func userIDStrings(ids []types.UserID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/service/freeipa"
	"github.com/secmon-lab/ipasync/pkg/service/ldap"
	"github.com/secmon-lab/ipasync/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Credentials holds the secrets that are never read from the config file
type Credentials struct {
	directoryPassword string
	identityUsername  string
	identityPassword  string
	slackWebhookURL   string
}

func (x *Credentials) Flags() []cli.Flag {
	category := "Credentials"
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "directory-bind-password",
			Usage:       "Password of the directory bind DN",
			Category:    category,
			Destination: &x.directoryPassword,
			Sources:     cli.EnvVars("IPASYNC_DIRECTORY_BIND_PASSWORD"),
		},
		&cli.StringFlag{
			Name:        "identity-username",
			Usage:       "Identity system account used for management calls",
			Category:    category,
			Destination: &x.identityUsername,
			Sources:     cli.EnvVars("IPASYNC_IDENTITY_USERNAME"),
		},
		&cli.StringFlag{
			Name:        "identity-password",
			Usage:       "Password of the identity system account",
			Category:    category,
			Destination: &x.identityPassword,
			Sources:     cli.EnvVars("IPASYNC_IDENTITY_PASSWORD"),
		},
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook for admin reports (overrides the config file)",
			Category:    category,
			Destination: &x.slackWebhookURL,
			Sources:     cli.EnvVars("IPASYNC_SLACK_WEBHOOK_URL"),
		},
	}
}

func (x Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("directory-bind-password.len", len(x.directoryPassword)),
		slog.String("identity-username", x.identityUsername),
		slog.Int("identity-password.len", len(x.identityPassword)),
		slog.Bool("slack-webhook", x.slackWebhookURL != ""),
	)
}

// DirectoryClient creates the LDAP client for cfg
func (x *Credentials) DirectoryClient(cfg *Directory) (interfaces.DirectoryClient, error) {
	if x.directoryPassword == "" {
		return nil, goerr.Wrap(ErrMissingField, "--directory-bind-password is required")
	}

	var opts []ldap.Option
	if t := cfg.Timeout(); t > 0 {
		opts = append(opts, ldap.WithTimeout(t))
	}

	client, err := ldap.New(cfg.URL, cfg.BindDN, x.directoryPassword, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create directory client")
	}
	return client, nil
}

// IdentityClient creates the JSON-RPC client for cfg
func (x *Credentials) IdentityClient(cfg *Identity) (interfaces.IdentityClient, error) {
	if x.identityUsername == "" || x.identityPassword == "" {
		return nil, goerr.Wrap(ErrMissingField, "--identity-username and --identity-password are required")
	}

	var opts []freeipa.Option
	if cfg.APIVersion != "" {
		opts = append(opts, freeipa.WithAPIVersion(cfg.APIVersion))
	}
	if t := cfg.Timeout(); t > 0 {
		opts = append(opts, freeipa.WithTimeout(t))
	}
	if cfg.CAFile != "" {
		opts = append(opts, freeipa.WithRootCertificate(cfg.CAFile))
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, freeipa.WithInsecureSkipVerify())
	}

	client, err := freeipa.New(cfg.Address(), x.identityUsername, x.identityPassword, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create identity client")
	}
	return client, nil
}

// SlackService returns the report poster, or nil when no webhook is set in
// either the flags or cfg
func (x *Credentials) SlackService(cfg *Notification) (slack.Service, error) {
	webhook := x.slackWebhookURL
	if webhook == "" {
		webhook = cfg.SlackWebhookURL
	}
	if webhook == "" {
		return nil, nil
	}

	svc, err := slack.New(webhook)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create slack client")
	}
	return svc, nil
}

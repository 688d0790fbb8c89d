package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/cli/config"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/notifier"
	"github.com/secmon-lab/ipasync/pkg/usecase"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

const validConfig = `
[directory]
url = "ldaps://dc.corp.example"
base_dn = "OU=Staff,DC=corp,DC=example"
bind_dn = "CN=svc-ipasync,OU=Service,DC=corp,DC=example"

[identity]
host = "ipa.corp.example"
admin_group = "admins"

[identity.groups]
engineering = 10001
sales = 10002

[sync]
ignore_fields = ["phone_number", "manager"]
corporate_email_domains = ["corp.example"]

[notification]
smtp_relay_server = "smtp.corp.example"
from_email = "it@corp.example"
password_gracious_period = 6
notification_days = [359]
template_dir = "/etc/ipasync/templates"

[notification.templates]
company_logo = "logo.png"

[cache]
backend = "memory"
`

func TestParseAppConfiguration(t *testing.T) {
	t.Run("valid configuration with defaults", func(t *testing.T) {
		cfg, err := config.ParseAppConfiguration([]byte(validConfig))
		gt.NoError(t, err).Required()

		gt.Value(t, cfg.Identity.Port).Equal(443)
		gt.Value(t, cfg.Identity.Address()).Equal("ipa.corp.example")
		gt.Value(t, cfg.Notification.SMTPPort).Equal(25)
		gt.Value(t, cfg.Sync.ValidSyncEmailDomains).Equal([]string{"corp.example"})
		gt.Value(t, cfg.Cache.Validity()).Equal(60 * time.Minute)
		gt.Value(t, cfg.CSV.ExportFile).Equal("users_export.csv")
		gt.Value(t, cfg.CSV.ImportFile).Equal("users_import.csv")
		gt.Value(t, cfg.CSV.TemplateFile).Equal("users_import_template.csv")

		gt.Value(t, cfg.Notification.Policy()).Equal(model.PasswordPolicy{
			GraciousPeriod:   6,
			NotificationDays: []int{359},
		})

		syncCfg, err := cfg.Sync.UseCaseConfig()
		gt.NoError(t, err).Required()
		gt.Value(t, syncCfg.IgnoreFields).Equal([]types.UserField{types.UserFieldPhoneNumber, types.UserFieldManager})
		gt.Value(t, syncCfg.SyncDomains).Equal([]string{"corp.example"})
	})

	t.Run("servers follow the connection settings", func(t *testing.T) {
		cfg, err := config.ParseAppConfiguration([]byte(validConfig))
		gt.NoError(t, err).Required()

		servers, err := cfg.Servers()
		gt.NoError(t, err).Required()
		gt.Value(t, servers).Equal([]usecase.ServerTarget{
			{Name: "directory", Host: "dc.corp.example", Port: 636},
			{Name: "identity", Host: "ipa.corp.example", Port: 443},
			{Name: "smtp", Host: "smtp.corp.example", Port: 25},
		})
	})

	t.Run("template files resolve against the template directory", func(t *testing.T) {
		cfg, err := config.ParseAppConfiguration([]byte(validConfig))
		gt.NoError(t, err).Required()

		files := cfg.Notification.TemplateFiles()
		gt.Value(t, len(files)).Equal(len(notifier.TemplateKeys()))
		gt.Value(t, files[notifier.TemplateNotifyExpiration]).Equal("/etc/ipasync/templates/notify_expiration.html")
		gt.Value(t, files[notifier.TemplateCompanyLogo]).Equal("/etc/ipasync/templates/logo.png")
	})

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing directory url",
			content: `[identity]` + "\n" + `host = "ipa.corp.example"`,
			wantErr: config.ErrMissingField,
		},
		{
			name: "unsupported directory scheme",
			content: `
[directory]
url = "http://dc.corp.example"
base_dn = "DC=corp"
bind_dn = "CN=svc"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "no identity groups",
			content: `
[directory]
url = "ldap://dc.corp.example:3268"
base_dn = "DC=corp"
bind_dn = "CN=svc"

[identity]
host = "ipa.corp.example"
`,
			wantErr: config.ErrMissingField,
		},
		{
			name: "unknown ignore field",
			content: `
[directory]
url = "ldap://dc.corp.example"
base_dn = "DC=corp"
bind_dn = "CN=svc"

[identity]
host = "ipa.corp.example"
groups = { engineering = 10001 }

[sync]
ignore_fields = ["shoe_size"]
corporate_email_domains = ["corp.example"]
`,
			wantErr: config.ErrInvalidUserField,
		},
		{
			name: "unknown cache backend",
			content: `
[directory]
url = "ldap://dc.corp.example"
base_dn = "DC=corp"
bind_dn = "CN=svc"

[identity]
host = "ipa.corp.example"
groups = { engineering = 10001 }

[sync]
corporate_email_domains = ["corp.example"]

[notification]
smtp_relay_server = "smtp.corp.example"
from_email = "it@corp.example"

[cache]
backend = "redis"
`,
			wantErr: config.ErrInvalidBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseAppConfiguration([]byte(tt.content))
			gt.Error(t, err).Is(tt.wantErr)
		})
	}
}

func TestLoadAppConfiguration(t *testing.T) {
	t.Run("reads a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ipasync.toml")
		gt.NoError(t, os.WriteFile(path, []byte(validConfig), 0o600)).Required()

		cfg, err := config.LoadAppConfiguration(path)
		gt.NoError(t, err).Required()
		gt.Value(t, cfg.Directory.BaseDN).Equal("OU=Staff,DC=corp,DC=example")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.LoadAppConfiguration(filepath.Join(t.TempDir(), "nope.toml"))
		gt.Error(t, err).Is(config.ErrConfigNotFound)
	})
}

func TestDirectoryTarget(t *testing.T) {
	tests := []struct {
		url  string
		port int
	}{
		{url: "ldap://dc.corp.example", port: 389},
		{url: "ldaps://dc.corp.example", port: 636},
		{url: "ldap://dc.corp.example:3268", port: 3268},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d := config.Directory{URL: tt.url}
			target, err := d.Target()
			gt.NoError(t, err).Required()
			gt.Value(t, target.Host).Equal("dc.corp.example")
			gt.Value(t, target.Port).Equal(tt.port)
		})
	}
}

func TestCacheConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("file backend creates the directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "cache")
		c := config.Cache{
			Backend: config.BackendFile,
			Dir:     dir,
			Files:   map[string]string{"directory": "ad_users.json"},
		}
		gt.NoError(t, c.Validate()).Required()

		docs, err := c.Configure(ctx)
		gt.NoError(t, err).Required()
		defer docs.Close()

		gt.NoError(t, docs.Put(ctx, "directory", []byte(`{}`))).Required()
		_, err = os.Stat(filepath.Join(dir, "ad_users.json"))
		gt.NoError(t, err)
	})

	t.Run("gcs backend needs a bucket", func(t *testing.T) {
		c := config.Cache{Backend: config.BackendGCS}
		gt.Error(t, c.Validate()).Is(config.ErrMissingField)
	})

	t.Run("unknown file key", func(t *testing.T) {
		c := config.Cache{Backend: config.BackendMemory, Files: map[string]string{"users": "x.json"}}
		gt.Error(t, c.Validate()).Is(config.ErrInvalidConfig)
	})
}

func TestCredentials(t *testing.T) {
	t.Run("directory password is required", func(t *testing.T) {
		creds := config.NewCredentialsForTest("", "admin", "secret", "")
		_, err := creds.DirectoryClient(&config.Directory{URL: "ldap://dc.corp.example", BindDN: "CN=svc"})
		gt.Error(t, err).Is(config.ErrMissingField)
	})

	t.Run("identity credentials are required", func(t *testing.T) {
		creds := config.NewCredentialsForTest("secret", "", "", "")
		_, err := creds.IdentityClient(&config.Identity{Host: "ipa.corp.example", Port: 443})
		gt.Error(t, err).Is(config.ErrMissingField)
	})

	t.Run("slack is optional", func(t *testing.T) {
		creds := config.NewCredentialsForTest("", "", "", "")
		svc, err := creds.SlackService(&config.Notification{})
		gt.NoError(t, err).Required()
		gt.Bool(t, svc == nil).True()

		svc, err = creds.SlackService(&config.Notification{SlackWebhookURL: "https://hooks.slack.com/services/T000/B000/XXXX"})
		gt.NoError(t, err).Required()
		gt.Bool(t, svc != nil).True()
	})
}

func TestLoggerConfigure(t *testing.T) {
	t.Run("json logs go to the file with secrets masked", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ipasync.log")
		closer, err := config.NewLoggerForTest("info", "json", path).Configure()
		gt.NoError(t, err).Required()

		type bind struct {
			UserID string
			Secret string `masq:"secret"`
		}
		logging.Default().Info("bound to directory", "bind", bind{UserID: "jane.doe", Secret: "hunter2"})
		closer()

		data, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(data)).Contains("jane.doe")
		gt.Bool(t, strings.Contains(string(data), "hunter2")).False()
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("loud", "console", "stderr").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("warn", "xml", "stderr").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/notifier"
	"github.com/secmon-lab/ipasync/pkg/usecase"
)

// DefaultConfigPath is read when --config is not given
const DefaultConfigPath = "./ipasync.toml"

// AppConfig represents the application configuration
type AppConfig struct {
	Directory    Directory    `toml:"directory"`
	Identity     Identity     `toml:"identity"`
	Sync         Sync         `toml:"sync"`
	Notification Notification `toml:"notification"`
	Cache        Cache        `toml:"cache"`
	CSV          CSV          `toml:"csv"`
}

// Directory is the corporate directory connection
type Directory struct {
	URL            string `toml:"url"`
	BaseDN         string `toml:"base_dn"`
	BindDN         string `toml:"bind_dn"`
	PageSize       uint32 `toml:"page_size"`
	TimeoutSeconds int    `toml:"timeout"`
}

// Validate checks if the Directory section is valid
func (d *Directory) Validate() error {
	if d.URL == "" {
		return goerr.Wrap(ErrMissingField, "directory url is required", goerr.V(FieldKey, "url"))
	}
	if _, err := d.Target(); err != nil {
		return err
	}
	if d.BaseDN == "" {
		return goerr.Wrap(ErrMissingField, "directory base_dn is required", goerr.V(FieldKey, "base_dn"))
	}
	if d.BindDN == "" {
		return goerr.Wrap(ErrMissingField, "directory bind_dn is required", goerr.V(FieldKey, "bind_dn"))
	}
	return nil
}

// Target returns the host and port the directory listens on. The port
// defaults by URL scheme.
func (d *Directory) Target() (usecase.ServerTarget, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return usecase.ServerTarget{}, goerr.Wrap(ErrInvalidConfig, "invalid directory url", goerr.V("url", d.URL), goerr.V("error", err.Error()))
	}

	port := 389
	switch u.Scheme {
	case "ldap":
	case "ldaps":
		port = 636
	default:
		return usecase.ServerTarget{}, goerr.Wrap(ErrInvalidConfig, "directory url must be ldap:// or ldaps://", goerr.V("url", d.URL))
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return usecase.ServerTarget{}, goerr.Wrap(ErrInvalidConfig, "invalid directory port", goerr.V("url", d.URL))
		}
		port = n
	}
	if u.Hostname() == "" {
		return usecase.ServerTarget{}, goerr.Wrap(ErrInvalidConfig, "directory url has no host", goerr.V("url", d.URL))
	}

	return usecase.ServerTarget{Name: "directory", Host: u.Hostname(), Port: port}, nil
}

// Timeout returns the configured timeout, zero when unset
func (d *Directory) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Identity is the identity system connection and the groups it manages
type Identity struct {
	Host               string         `toml:"host"`
	Port               int            `toml:"port"`
	CAFile             string         `toml:"ca_file"`
	InsecureSkipVerify bool           `toml:"insecure_skip_verify"`
	APIVersion         string         `toml:"api_version"`
	TimeoutSeconds     int            `toml:"timeout"`
	Groups             map[string]int `toml:"groups"`
	AdminGroup         string         `toml:"admin_group"`
}

// Validate checks if the Identity section is valid
func (i *Identity) Validate() error {
	if i.Host == "" {
		return goerr.Wrap(ErrMissingField, "identity host is required", goerr.V(FieldKey, "host"))
	}
	if i.Port <= 0 || i.Port > 65535 {
		return goerr.Wrap(ErrInvalidConfig, "identity port is out of range", goerr.V("port", i.Port))
	}
	if len(i.Groups) == 0 {
		return goerr.Wrap(ErrMissingField, "at least one identity group is required", goerr.V(FieldKey, "groups"))
	}
	for name, gid := range i.Groups {
		if gid <= 0 {
			return goerr.Wrap(ErrInvalidConfig, "group gid must be positive", goerr.V("group", name), goerr.V("gid", gid))
		}
	}
	return nil
}

// Target returns the identity system probe target
func (i *Identity) Target() usecase.ServerTarget {
	return usecase.ServerTarget{Name: "identity", Host: i.Host, Port: i.Port}
}

// Address is host:port, with the port left out when it is the HTTPS default
func (i *Identity) Address() string {
	if i.Port == 443 {
		return i.Host
	}
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// Timeout returns the configured timeout, zero when unset
func (i *Identity) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// Sync controls which users and fields take part in synchronization
type Sync struct {
	IgnoreFields          []string `toml:"ignore_fields"`
	CorporateEmailDomains []string `toml:"corporate_email_domains"`
	ValidSyncEmailDomains []string `toml:"valid_sync_email_domains"`
}

// Validate checks if the Sync section is valid
func (s *Sync) Validate() error {
	if len(s.CorporateEmailDomains) == 0 {
		return goerr.Wrap(ErrMissingField, "at least one corporate email domain is required", goerr.V(FieldKey, "corporate_email_domains"))
	}
	if _, err := s.Fields(); err != nil {
		return err
	}
	return nil
}

// Fields parses the ignore list
func (s *Sync) Fields() ([]types.UserField, error) {
	fields := make([]types.UserField, 0, len(s.IgnoreFields))
	for _, name := range s.IgnoreFields {
		field, err := types.ParseUserField(strings.TrimSpace(name))
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidUserField, "invalid ignore field", goerr.V(FieldKey, name))
		}
		fields = append(fields, field)
	}
	return fields, nil
}

// UseCaseConfig returns the reconciliation settings
func (s *Sync) UseCaseConfig() (usecase.SyncConfig, error) {
	fields, err := s.Fields()
	if err != nil {
		return usecase.SyncConfig{}, err
	}
	return usecase.SyncConfig{
		IgnoreFields: fields,
		SyncDomains:  s.ValidSyncEmailDomains,
	}, nil
}

// Notification covers mail delivery, templates and the password policy
type Notification struct {
	SMTPRelayServer        string            `toml:"smtp_relay_server"`
	SMTPPort               int               `toml:"smtp_port"`
	SMTPTimeoutSeconds     int               `toml:"smtp_timeout"`
	FromEmail              string            `toml:"from_email"`
	PasswordGraciousPeriod *int              `toml:"password_gracious_period"`
	NotificationDays       []int             `toml:"notification_days"`
	TemplateDir            string            `toml:"template_dir"`
	Templates              map[string]string `toml:"templates"`
	SlackWebhookURL        string            `toml:"slack_webhook_url"`
}

// Validate checks if the Notification section is valid
func (n *Notification) Validate() error {
	if n.SMTPRelayServer == "" {
		return goerr.Wrap(ErrMissingField, "smtp_relay_server is required", goerr.V(FieldKey, "smtp_relay_server"))
	}
	if n.FromEmail == "" {
		return goerr.Wrap(ErrMissingField, "from_email is required", goerr.V(FieldKey, "from_email"))
	}
	policy := n.Policy()
	if err := policy.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid password policy", goerr.V("error", err.Error()))
	}
	for key := range n.Templates {
		if !isTemplateKey(key) {
			return goerr.Wrap(ErrInvalidConfig, "unknown template key", goerr.V("key", key))
		}
	}
	return nil
}

// Policy returns the password lifecycle policy
func (n *Notification) Policy() model.PasswordPolicy {
	policy := usecase.DefaultPasswordPolicy()
	if n.PasswordGraciousPeriod != nil {
		policy.GraciousPeriod = *n.PasswordGraciousPeriod
	}
	if len(n.NotificationDays) > 0 {
		policy.NotificationDays = n.NotificationDays
	}
	return policy
}

// Target returns the SMTP relay probe target
func (n *Notification) Target() usecase.ServerTarget {
	return usecase.ServerTarget{Name: "smtp", Host: n.SMTPRelayServer, Port: n.SMTPPort}
}

// SMTPTimeout returns the configured timeout
func (n *Notification) SMTPTimeout() time.Duration {
	return time.Duration(n.SMTPTimeoutSeconds) * time.Second
}

// TemplateFiles resolves every template key to a file path. Keys without an
// explicit file name use "<key>.html" ("company_logo.png" for the logo)
// inside TemplateDir.
func (n *Notification) TemplateFiles() map[notifier.TemplateKey]string {
	files := make(map[notifier.TemplateKey]string)
	for _, key := range notifier.TemplateKeys() {
		name, ok := n.Templates[key.String()]
		if !ok || name == "" {
			name = defaultTemplateName(key)
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(n.TemplateDir, name)
		}
		files[key] = name
	}
	return files
}

func defaultTemplateName(key notifier.TemplateKey) string {
	if key == notifier.TemplateCompanyLogo {
		return key.String() + ".png"
	}
	return key.String() + ".html"
}

func isTemplateKey(s string) bool {
	for _, key := range notifier.TemplateKeys() {
		if key.String() == s {
			return true
		}
	}
	return false
}

// CSV holds the default file names of the CSV commands
type CSV struct {
	ExportFile   string `toml:"export_file"`
	ImportFile   string `toml:"import_file"`
	TemplateFile string `toml:"template_file"`
}

// applyDefaults fills every unset value that has a sensible default
func (a *AppConfig) applyDefaults() {
	if a.Directory.TimeoutSeconds == 0 {
		a.Directory.TimeoutSeconds = 10
	}
	if a.Identity.Port == 0 {
		a.Identity.Port = 443
	}
	if a.Identity.TimeoutSeconds == 0 {
		a.Identity.TimeoutSeconds = 30
	}
	if a.Notification.SMTPPort == 0 {
		a.Notification.SMTPPort = 25
	}
	if a.Notification.SMTPTimeoutSeconds == 0 {
		a.Notification.SMTPTimeoutSeconds = 30
	}
	if a.Notification.TemplateDir == "" {
		a.Notification.TemplateDir = "templates"
	}
	if len(a.Sync.ValidSyncEmailDomains) == 0 {
		a.Sync.ValidSyncEmailDomains = a.Sync.CorporateEmailDomains
	}
	if a.Cache.Backend == "" {
		a.Cache.Backend = BackendFile
	}
	if a.Cache.Dir == "" {
		a.Cache.Dir = "cache"
	}
	if a.Cache.ValidityMinutes == 0 {
		a.Cache.ValidityMinutes = 60
	}
	if a.CSV.ExportFile == "" {
		a.CSV.ExportFile = "users_export.csv"
	}
	if a.CSV.ImportFile == "" {
		a.CSV.ImportFile = "users_import.csv"
	}
	if a.CSV.TemplateFile == "" {
		a.CSV.TemplateFile = "users_import_template.csv"
	}
}

// Validate checks if the AppConfig is valid
func (a *AppConfig) Validate() error {
	if err := a.Directory.Validate(); err != nil {
		return goerr.Wrap(err, "invalid directory configuration", goerr.V(SectionKey, "directory"))
	}
	if err := a.Identity.Validate(); err != nil {
		return goerr.Wrap(err, "invalid identity configuration", goerr.V(SectionKey, "identity"))
	}
	if err := a.Sync.Validate(); err != nil {
		return goerr.Wrap(err, "invalid sync configuration", goerr.V(SectionKey, "sync"))
	}
	if err := a.Notification.Validate(); err != nil {
		return goerr.Wrap(err, "invalid notification configuration", goerr.V(SectionKey, "notification"))
	}
	if err := a.Cache.Validate(); err != nil {
		return goerr.Wrap(err, "invalid cache configuration", goerr.V(SectionKey, "cache"))
	}
	return nil
}

// Servers returns every server that must be reachable before an action runs
func (a *AppConfig) Servers() ([]usecase.ServerTarget, error) {
	directory, err := a.Directory.Target()
	if err != nil {
		return nil, err
	}
	return []usecase.ServerTarget{
		directory,
		a.Identity.Target(),
		a.Notification.Target(),
	}, nil
}

// ParseAppConfiguration decodes and validates a TOML document
func ParseAppConfiguration(data []byte) (*AppConfig, error) {
	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config")
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed")
	}

	return &config, nil
}

// LoadAppConfiguration loads the application configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	config, err := ParseAppConfiguration(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load config", goerr.V(ConfigPathKey, path))
	}

	return config, nil
}

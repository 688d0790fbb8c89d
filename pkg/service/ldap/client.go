package ldap

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strings"
	"time"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

const (
	// DefaultTimeout bounds dialing and each request
	DefaultTimeout = 10 * time.Second
	// DefaultPageSize is the page size requested with the paged results control
	DefaultPageSize uint32 = 1000
)

// client implements interfaces.DirectoryClient over a single bound connection
type client struct {
	url      string
	bindDN   string
	password string
	timeout  time.Duration
	tlsCfg   *tls.Config

	conn *goldap.Conn
}

var _ interfaces.DirectoryClient = &client{}

// Option is a functional option for client configuration
type Option func(*client)

// WithTimeout sets the dial and request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.timeout = d
	}
}

// WithTLSConfig sets the TLS configuration used for ldaps:// URLs
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *client) {
		c.tlsCfg = cfg
	}
}

// New creates a directory client. The connection is opened and bound on the
// first search.
func New(url, bindDN, password string, opts ...Option) (interfaces.DirectoryClient, error) {
	if url == "" {
		return nil, goerr.New("directory URL is required")
	}
	if bindDN == "" {
		return nil, goerr.New("directory bind DN is required")
	}

	c := &client{
		url:      url,
		bindDN:   bindDN,
		password: password,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", c.url),
		slog.String("bind_dn", c.bindDN),
		slog.Int("password.len", len(c.password)),
	)
}

func (c *client) connect(ctx context.Context) (*goldap.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	opts := []goldap.DialOpt{
		goldap.DialWithDialer(&net.Dialer{Timeout: c.timeout}),
	}
	if c.tlsCfg != nil {
		opts = append(opts, goldap.DialWithTLSConfig(c.tlsCfg))
	}

	conn, err := goldap.DialURL(c.url, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to directory", goerr.V("url", c.url))
	}
	conn.SetTimeout(c.timeout)

	if err := conn.Bind(c.bindDN, c.password); err != nil {
		_ = conn.Close()
		return nil, goerr.Wrap(err, "failed to bind to directory",
			goerr.V("url", c.url), goerr.V("bind_dn", c.bindDN))
	}

	logging.From(ctx).Debug("directory connection established", "client", c)
	c.conn = conn
	return conn, nil
}

// Search runs one page of a subtree search
func (c *client) Search(ctx context.Context, req *model.DirectorySearch) (*model.DirectoryPage, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}

	var controls []goldap.Control
	var paging *goldap.ControlPaging
	if req.PageSize > 0 {
		paging = goldap.NewControlPaging(req.PageSize)
		paging.SetCookie(req.Cookie)
		controls = append(controls, paging)
	}

	sr := goldap.NewSearchRequest(
		req.BaseDN,
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		0, 0, false,
		req.Filter,
		req.Attributes,
		controls,
	)

	result, err := conn.Search(sr)
	if err != nil {
		return nil, goerr.Wrap(err, "directory search failed",
			goerr.V("base_dn", req.BaseDN), goerr.V("filter", req.Filter))
	}

	page := &model.DirectoryPage{
		Entries: make([]*model.DirectoryEntry, 0, len(result.Entries)),
	}
	for _, e := range result.Entries {
		entry := &model.DirectoryEntry{
			DN:         e.DN,
			Attributes: make(map[string][]string, len(e.Attributes)),
		}
		for _, attr := range e.Attributes {
			entry.Attributes[attr.Name] = attr.Values
		}
		page.Entries = append(page.Entries, entry)
	}

	if paging != nil {
		if ctrl, ok := goldap.FindControl(result.Controls, goldap.ControlTypePaging).(*goldap.ControlPaging); ok {
			page.Cookie = ctrl.Cookie
		}
	}

	return page, nil
}

func (c *client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// FilterEscape escapes a value for use inside a search filter
func FilterEscape(s string) string {
	return goldap.EscapeFilter(s)
}

// LeadingCN returns the value of the first RDN's cn attribute of a
// distinguished name, e.g. "Jane Doe" for "CN=Jane Doe,OU=Staff,DC=corp".
func LeadingCN(dn string) (string, error) {
	parsed, err := goldap.ParseDN(dn)
	if err != nil {
		return "", goerr.Wrap(err, "invalid distinguished name", goerr.V("dn", dn))
	}
	if len(parsed.RDNs) == 0 {
		return "", goerr.New("empty distinguished name", goerr.V("dn", dn))
	}
	for _, attr := range parsed.RDNs[0].Attributes {
		if strings.EqualFold(attr.Type, "cn") {
			return attr.Value, nil
		}
	}
	return "", goerr.New("distinguished name does not start with a cn", goerr.V("dn", dn))
}

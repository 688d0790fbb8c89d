package freeipa

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

const (
	// DefaultTimeout bounds each HTTP request
	DefaultTimeout = 30 * time.Second

	loginPath = "/ipa/session/login_password"
	rpcPath   = "/ipa/session/json"
)

// client implements interfaces.IdentityClient over the JSON-RPC API. It logs
// in lazily and once more when the session expires.
type client struct {
	http       *resty.Client
	baseURL    string
	username   string
	password   string
	apiVersion string

	loggedIn bool
}

var _ interfaces.IdentityClient = &client{}

// Option is a functional option for client configuration
type Option func(*client)

// WithBaseURL overrides the https://<host> base URL
func WithBaseURL(url string) Option {
	return func(c *client) {
		c.baseURL = url
	}
}

// WithAPIVersion sets the API version sent with each call
func WithAPIVersion(v string) Option {
	return func(c *client) {
		c.apiVersion = v
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.http.SetTimeout(d)
	}
}

// WithRootCertificate trusts the CA certificate in path
func WithRootCertificate(path string) Option {
	return func(c *client) {
		c.http.SetRootCertificate(path)
	}
}

// WithInsecureSkipVerify disables server certificate verification
func WithInsecureSkipVerify() Option {
	return func(c *client) {
		// #nosec G402 - explicitly requested for lab servers with self-signed certificates
		c.http.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
}

// New creates a client for the identity system at host
func New(host, username, password string, opts ...Option) (interfaces.IdentityClient, error) {
	if host == "" {
		return nil, goerr.New("identity system host is required")
	}
	if username == "" {
		return nil, goerr.New("identity system username is required")
	}

	c := &client{
		http:       resty.New().SetTimeout(DefaultTimeout),
		baseURL:    "https://" + host,
		username:   username,
		password:   password,
		apiVersion: DefaultAPIVersion,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http.SetBaseURL(c.baseURL).
		SetHeader("Referer", c.baseURL+"/ipa").
		SetHeader("Accept", "application/json")

	return c, nil
}

func (c *client) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("base_url", c.baseURL),
		slog.String("username", c.username),
		slog.Int("password.len", len(c.password)),
	)
}

// Login opens a session. The session cookie is kept by the HTTP client.
func (c *client) Login(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		SetFormData(map[string]string{
			"user":     c.username,
			"password": c.password,
		}).
		Post(loginPath)
	if err != nil {
		return goerr.Wrap(ErrTransport, "failed to reach identity system login",
			goerr.V("base_url", c.baseURL), goerr.V("cause", err.Error()))
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return goerr.Wrap(ErrUnauthorized, "identity system login rejected",
			goerr.V("username", c.username), goerr.V("reason", resp.Header().Get("X-IPA-Rejection-Reason")))
	case resp.IsError():
		return goerr.Wrap(ErrRemote, "identity system login failed",
			goerr.V("status", resp.StatusCode()), goerr.V("body", resp.String()))
	}

	c.loggedIn = true
	logging.From(ctx).Debug("identity system session established", "client", c)
	return nil
}

func (c *client) call(ctx context.Context, method string, args []any, opts map[string]any, out any) error {
	if !c.loggedIn {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	err := c.do(ctx, method, args, opts, out)
	if errors.Is(err, errSessionExpired) {
		c.loggedIn = false
		if err := c.Login(ctx); err != nil {
			return err
		}
		err = c.do(ctx, method, args, opts, out)
	}
	if errors.Is(err, errSessionExpired) {
		return goerr.Wrap(ErrUnauthorized, "identity system session rejected", goerr.V("method", method))
	}
	return err
}

var errSessionExpired = errors.New("session expired")

func (c *client) do(ctx context.Context, method string, args []any, opts map[string]any, out any) error {
	if args == nil {
		args = []any{}
	}
	if opts == nil {
		opts = map[string]any{}
	}
	opts["version"] = c.apiVersion

	req := rpcRequest{
		Method: method + "/1",
		Params: []any{args, opts},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(rpcPath)
	if err != nil {
		return goerr.Wrap(ErrTransport, "identity system call failed",
			goerr.V("method", method), goerr.V("cause", err.Error()))
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return errSessionExpired
	}
	if resp.IsError() {
		return goerr.Wrap(ErrRemote, "identity system returned an HTTP error",
			goerr.V("method", method), goerr.V("status", resp.StatusCode()))
	}

	var rpc rpcResponse
	if err := json.Unmarshal(resp.Body(), &rpc); err != nil {
		return goerr.Wrap(ErrRemote, "failed to decode identity system response",
			goerr.V("method", method), goerr.V("cause", err.Error()))
	}
	if rpc.Error != nil {
		return goerr.Wrap(sentinelFor(rpc.Error.Name), rpc.Error.Message,
			goerr.V("method", method),
			goerr.V("error_name", rpc.Error.Name),
			goerr.V("error_code", rpc.Error.Code))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpc.Result, out); err != nil {
		return goerr.Wrap(ErrRemote, "failed to decode identity system result",
			goerr.V("method", method), goerr.V("cause", err.Error()))
	}
	return nil
}

func (c *client) FindUsers(ctx context.Context, query model.IdentityUserQuery) ([]*model.IdentityUser, error) {
	opts := map[string]any{
		"all":       true,
		"sizelimit": 0,
	}
	if query.UID != "" {
		opts["uid"] = query.UID
	}
	if query.InGroup != "" {
		opts["in_group"] = query.InGroup
	}
	if query.Principal != "" {
		opts["krbprincipalname"] = query.Principal
	}
	if query.Preserved != nil {
		opts["preserved"] = *query.Preserved
	}

	var result findResult
	if err := c.call(ctx, "user_find", nil, opts, &result); err != nil {
		return nil, err
	}

	users := make([]*model.IdentityUser, 0, len(result.Result))
	for _, raw := range result.Result {
		u := entry(raw).toUser()
		if query.Preserved != nil && *query.Preserved {
			u.Preserved = true
		}
		users = append(users, u)
	}
	return users, nil
}

func (c *client) AddUser(ctx context.Context, uid string, attrs model.IdentityUserAttributes) (*model.IdentityUser, error) {
	var result entryResult
	if err := c.call(ctx, "user_add", []any{uid}, attributeOptions(attrs), &result); err != nil {
		return nil, err
	}
	return entry(result.Result).toUser(), nil
}

func (c *client) ModifyUser(ctx context.Context, uid string, attrs model.IdentityUserAttributes) error {
	return c.call(ctx, "user_mod", []any{uid}, attributeOptions(attrs), nil)
}

func (c *client) AddPrincipal(ctx context.Context, uid, principal string) error {
	return c.call(ctx, "user_add_principal", []any{uid, []string{principal}}, nil, nil)
}

func (c *client) DisableUser(ctx context.Context, uid string) error {
	var result boolResult
	if err := c.call(ctx, "user_disable", []any{uid}, nil, &result); err != nil {
		return err
	}
	if !result.Result {
		return goerr.Wrap(ErrRemote, "user was not disabled", goerr.V("uid", uid))
	}
	return nil
}

func (c *client) EnableUser(ctx context.Context, uid string) error {
	var result boolResult
	if err := c.call(ctx, "user_enable", []any{uid}, nil, &result); err != nil {
		return err
	}
	if !result.Result {
		return goerr.Wrap(ErrRemote, "user was not enabled", goerr.V("uid", uid))
	}
	return nil
}

func (c *client) DeleteUser(ctx context.Context, uid string, preserve bool) error {
	var result deleteResult
	if err := c.call(ctx, "user_del", []any{[]string{uid}}, map[string]any{"preserve": preserve}, &result); err != nil {
		return err
	}
	if len(result.Result.Failed) > 0 {
		return goerr.Wrap(ErrRemote, "user deletion failed", goerr.V("uid", uid), goerr.V("failed", result.Result.Failed))
	}
	return nil
}

func (c *client) AddGroupMember(ctx context.Context, group, uid string) error {
	return c.member(ctx, "group_add_member", group, uid)
}

func (c *client) RemoveGroupMember(ctx context.Context, group, uid string) error {
	return c.member(ctx, "group_remove_member", group, uid)
}

func (c *client) member(ctx context.Context, method, group, uid string) error {
	var result memberResult
	if err := c.call(ctx, method, []any{group}, map[string]any{"user": []string{uid}}, &result); err != nil {
		return err
	}
	if result.Completed == 0 {
		return goerr.Wrap(ErrRemote, "group membership not changed",
			goerr.V("method", method), goerr.V("group", group), goerr.V("uid", uid),
			goerr.V("failed", result.Failed.Member.User))
	}
	return nil
}

func (c *client) FindOTPTokens(ctx context.Context, owner string) ([]*model.OTPToken, error) {
	var result findResult
	if err := c.call(ctx, "otptoken_find", nil, map[string]any{"ipatokenowner": owner}, &result); err != nil {
		return nil, err
	}

	tokens := make([]*model.OTPToken, 0, len(result.Result))
	for _, raw := range result.Result {
		e := entry(raw)
		tokens = append(tokens, &model.OTPToken{
			UniqueID: e.first("ipatokenuniqueid"),
			Owner:    owner,
		})
	}
	return tokens, nil
}

func (c *client) DeleteOTPToken(ctx context.Context, uniqueID string) error {
	var result deleteResult
	if err := c.call(ctx, "otptoken_del", []any{[]string{uniqueID}}, map[string]any{"continue": true}, &result); err != nil {
		return err
	}
	if len(result.Result.Failed) > 0 {
		return goerr.Wrap(ErrRemote, "token deletion failed", goerr.V("token", uniqueID))
	}
	return nil
}

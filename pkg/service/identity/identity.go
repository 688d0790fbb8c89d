package identity

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/utils/errutil"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// DefaultAdminGroup holds the administrators that receive reports
const DefaultAdminGroup = "admins"

// Adapter serves identity users scoped to the configured groups and applies
// account lifecycle changes. Every successful mutation refreshes the
// identity snapshot before returning.
type Adapter struct {
	client     interfaces.IdentityClient
	cache      interfaces.UserCache
	groups     map[string]int
	adminGroup string
	now        func() time.Time
	passwords  func() (string, error)
	validate   *validator.Validate
}

var _ interfaces.IdentitySource = &Adapter{}

type Option func(*Adapter)

// WithGroups sets the managed groups and their GID numbers
func WithGroups(groups map[string]int) Option {
	return func(a *Adapter) {
		for name, gid := range groups {
			a.groups[name] = gid
		}
	}
}

// WithAdminGroup overrides DefaultAdminGroup
func WithAdminGroup(name string) Option {
	return func(a *Adapter) {
		a.adminGroup = name
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// WithPasswordGenerator replaces GeneratePassword
func WithPasswordGenerator(gen func() (string, error)) Option {
	return func(a *Adapter) {
		a.passwords = gen
	}
}

func New(client interfaces.IdentityClient, cache interfaces.UserCache, opts ...Option) *Adapter {
	a := &Adapter{
		client:     client,
		cache:      cache,
		groups:     make(map[string]int),
		adminGroup: DefaultAdminGroup,
		now:        time.Now,
		passwords:  GeneratePassword,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Groups returns the managed group names in ascending order
func (a *Adapter) Groups() []string {
	names := make([]string, 0, len(a.groups))
	for name := range a.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *Adapter) isManagedGroup(name string) bool {
	_, ok := a.groups[name]
	return ok
}

// FetchAll returns the active members of the managed groups. Unless force is
// set a valid cached snapshot is returned without contacting the server.
func (a *Adapter) FetchAll(ctx context.Context, force bool) (model.UserSnapshot, bool) {
	users, saveErr, err := a.fetchAll(ctx, force)
	if err != nil {
		errutil.Handle(ctx, err, "could not obtain user list from identity system")
		return nil, false
	}
	if saveErr != nil {
		logging.From(ctx).Warn("identity user cache could not be saved", "error", saveErr)
	}
	return users, true
}

// fetchAll returns the snapshot. saveErr reports a fetched snapshot that
// could not be written to the cache.
func (a *Adapter) fetchAll(ctx context.Context, force bool) (users model.UserSnapshot, saveErr, err error) {
	logger := logging.From(ctx)

	if !force {
		if users, ok := a.cache.Users(ctx, types.CacheKindIdentity); ok {
			logger.Debug("identity users served from cache", "users", len(users))
			return users, nil, nil
		}
	}

	logger.Info("fetching users from identity system")

	active := false
	users = model.UserSnapshot{}
	for _, group := range a.Groups() {
		found, err := a.client.FindUsers(ctx, model.IdentityUserQuery{InGroup: group, Preserved: &active})
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to list group members", goerr.V("group", group))
		}
		for _, u := range found {
			id := types.NewUserID(u.UID)
			users[id] = toRecord(u)
			logger.Debug("identity user retrieved", "user_id", id, "group", group)
		}
	}

	logger.Info("users retrieved from identity system", "users", len(users))

	if err := a.cache.PutUsers(ctx, types.CacheKindIdentity, users); err != nil {
		return users, err, nil
	}
	return users, nil, nil
}

// FetchOne returns a single active user. A warm cache is authoritative;
// otherwise the server is queried for that user only.
func (a *Adapter) FetchOne(ctx context.Context, id types.UserID) (*model.UserRecord, bool) {
	logger := logging.From(ctx).With("user_id", id)

	if u, warm := a.cache.UserByID(ctx, types.CacheKindIdentity, id); warm {
		if u == nil {
			logger.Debug("user does not exist in identity cache")
			return nil, false
		}
		return u, true
	}

	active := false
	found, err := a.client.FindUsers(ctx, model.IdentityUserQuery{UID: id.String(), Preserved: &active})
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to search identity user", goerr.V("user_id", id)),
			"could not obtain user from identity system")
		return nil, false
	}
	if len(found) == 0 {
		logger.Info("user does not exist in identity system")
		return nil, false
	}
	return toRecord(found[0]), true
}

// AdminMailboxes returns "Full Name <email>" for every member of the admin
// group
func (a *Adapter) AdminMailboxes(ctx context.Context) []string {
	users, ok := a.FetchAll(ctx, false)
	if !ok {
		return nil
	}

	var mailboxes []string
	for _, id := range users.IDs() {
		u := users[id]
		if u.IsMemberOf(a.adminGroup) && u.Email != "" {
			mailboxes = append(mailboxes, u.Mailbox())
		}
	}

	if len(mailboxes) == 0 {
		logging.From(ctx).Error("no administrator mailbox found", "group", a.adminGroup)
	}
	return mailboxes
}

// refresh reloads the identity snapshot after a mutation. When the reload or
// its write fails the cached snapshot is dropped so that nobody reads
// pre-mutation state.
func (a *Adapter) refresh(ctx context.Context) {
	_, saveErr, err := a.fetchAll(ctx, true)
	if err == nil {
		err = saveErr
	}
	if err == nil {
		return
	}
	errutil.Handle(ctx, err, "identity cache not refreshed after mutation")
	if err := a.cache.Invalidate(ctx, types.CacheKindIdentity); err != nil {
		errutil.Handle(ctx, err, "failed to invalidate identity cache")
	}
}

func toRecord(u *model.IdentityUser) *model.UserRecord {
	r := model.NewUserRecord()
	r.Email = strings.ToLower(u.Mail)
	// The first principal is the canonical one; the rest are login aliases
	for i := 1; i < len(u.Principals); i++ {
		name, _, _ := strings.Cut(u.Principals[i], "@")
		r.Alias = append(r.Alias, name)
	}
	r.FullName = u.CN
	r.Name = u.GivenName
	r.Lastname = u.SN
	r.JobTitle = u.Title
	r.StreetAddress = u.Street
	r.City = u.City
	r.State = u.State
	r.ZipCode = u.PostalCode
	r.OrgUnit = u.OrgUnit
	r.EmployeeNumber = u.EmployeeNumber
	r.EmployeeType = u.EmployeeType
	r.PreferredLanguage = u.PreferredLanguage
	r.PhoneNumber = u.TelephoneNumber
	r.Manager = u.Manager
	r.MemberOf = append(r.MemberOf, u.MemberOfGroup...)
	r.PasswordExpiration = u.PasswordExpiration
	r.PasswordLastChanged = u.LastPasswordChange
	return r
}

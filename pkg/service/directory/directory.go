package directory

import (
	"context"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/ldap"
	"github.com/secmon-lab/ipasync/pkg/utils/errutil"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

const personFilter = "(objectClass=person)"

// userAttributes are the directory attributes mapped onto a UserRecord
var userAttributes = []string{
	"mail", "sAMAccountName", "name", "givenName", "sn", "title",
	"streetAddress", "l", "postalCode", "st", "telephoneNumber", "department",
	"employeeID", "extensionAttribute6", "msExchUserCulture", "manager", "cn",
	"memberOf",
}

// Adapter produces normalized directory users, serving them from the cache
// while it is valid.
type Adapter struct {
	client           interfaces.DirectoryClient
	cache            interfaces.UserCache
	baseDN           string
	pageSize         uint32
	corporateDomains []string
}

var _ interfaces.DirectorySource = &Adapter{}

type Option func(*Adapter)

// WithPageSize sets the paged search page size
func WithPageSize(n uint32) Option {
	return func(a *Adapter) {
		a.pageSize = n
	}
}

// WithCorporateDomains restricts the snapshot to addresses in domains
func WithCorporateDomains(domains ...string) Option {
	return func(a *Adapter) {
		for _, d := range domains {
			a.corporateDomains = append(a.corporateDomains, strings.ToLower(d))
		}
	}
}

func New(client interfaces.DirectoryClient, cache interfaces.UserCache, baseDN string, opts ...Option) *Adapter {
	a := &Adapter{
		client:   client,
		cache:    cache,
		baseDN:   baseDN,
		pageSize: ldap.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) isCorporate(email string) bool {
	return slices.Contains(a.corporateDomains, types.EmailDomain(email))
}

// FetchAll returns every corporate directory user. Unless force is set a
// valid cached snapshot is returned without contacting the directory. A
// refresh walks all result pages; if any page fails nothing is returned and
// the cache is left untouched.
func (a *Adapter) FetchAll(ctx context.Context, force bool) (model.UserSnapshot, bool) {
	logger := logging.From(ctx)

	if !force {
		if users, ok := a.cache.Users(ctx, types.CacheKindDirectory); ok {
			logger.Debug("directory users served from cache", "users", len(users))
			return users, true
		}
	}

	logger.Info("fetching users from directory")

	users := model.UserSnapshot{}
	cnToID := make(map[string]types.UserID)
	var cookie []byte
	pages := 0

	for {
		page, err := a.client.Search(ctx, &model.DirectorySearch{
			BaseDN:     a.baseDN,
			Filter:     personFilter,
			Attributes: userAttributes,
			PageSize:   a.pageSize,
			Cookie:     cookie,
		})
		if err != nil {
			errutil.Handle(ctx, goerr.Wrap(err, "failed to fetch directory page", goerr.V("page", pages+1)),
				"could not obtain user list from directory")
			return nil, false
		}
		pages++

		for _, entry := range page.Entries {
			email := strings.ToLower(strings.TrimSpace(entry.First("mail")))
			if email == "" || !a.isCorporate(email) {
				continue
			}

			id := types.NewUserID(types.EmailLocalPart(email))
			if cn := strings.TrimSpace(entry.First("cn")); cn != "" {
				cnToID[cn] = id
			}
			users[id] = toRecord(entry)
			logger.Debug("directory user retrieved", "user_id", id)
		}

		if len(page.Cookie) == 0 {
			break
		}
		cookie = page.Cookie
	}

	for id, u := range users {
		if u.Manager == "" {
			continue
		}
		if manager, ok := cnToID[u.Manager]; ok {
			u.Manager = manager.String()
		} else {
			logger.Debug("manager not resolvable to a user ID", "user_id", id, "manager_cn", u.Manager)
			u.Manager = ""
		}
	}

	logger.Info("users retrieved from directory", "users", len(users), "pages", pages)

	if err := a.cache.PutUsers(ctx, types.CacheKindDirectory, users); err != nil {
		logger.Warn("directory user cache could not be saved", "error", err)
	}

	return users, true
}

// FetchOne returns a single user. A warm cache is authoritative; otherwise
// the directory is queried for that user only.
func (a *Adapter) FetchOne(ctx context.Context, id types.UserID) (*model.UserRecord, bool) {
	logger := logging.From(ctx).With("user_id", id)

	if u, warm := a.cache.UserByID(ctx, types.CacheKindDirectory, id); warm {
		if u == nil {
			logger.Debug("user does not exist in directory cache")
			return nil, false
		}
		return u, true
	}

	page, err := a.client.Search(ctx, &model.DirectorySearch{
		BaseDN:     a.baseDN,
		Filter:     "(&" + personFilter + "(mail=" + ldap.FilterEscape(id.String()) + "@*))",
		Attributes: userAttributes,
	})
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to search directory user", goerr.V("user_id", id)),
			"could not obtain user from directory")
		return nil, false
	}

	for _, entry := range page.Entries {
		email := strings.ToLower(strings.TrimSpace(entry.First("mail")))
		if types.NewUserID(types.EmailLocalPart(email)) != id {
			continue
		}
		if !a.isCorporate(email) {
			logger.Warn("directory user skipped, email is not in a corporate domain", "email", email)
			return nil, false
		}

		u := toRecord(entry)
		u.Manager = a.resolveManager(ctx, u.Manager)
		return u, true
	}

	logger.Info("user does not exist in directory")
	return nil, false
}

func (a *Adapter) resolveManager(ctx context.Context, cn string) string {
	if cn == "" {
		return ""
	}

	page, err := a.client.Search(ctx, &model.DirectorySearch{
		BaseDN:     a.baseDN,
		Filter:     "(&" + personFilter + "(cn=" + ldap.FilterEscape(cn) + "))",
		Attributes: []string{"mail"},
	})
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to resolve manager", goerr.V("manager_cn", cn)),
			"could not resolve manager from directory")
		return ""
	}

	for _, entry := range page.Entries {
		email := strings.ToLower(strings.TrimSpace(entry.First("mail")))
		if email != "" && a.isCorporate(email) {
			return types.NewUserID(types.EmailLocalPart(email)).String()
		}
	}
	return ""
}

func toRecord(entry *model.DirectoryEntry) *model.UserRecord {
	get := func(name string) string {
		return strings.TrimSpace(entry.First(name))
	}

	u := model.NewUserRecord()
	u.Email = strings.ToLower(get("mail"))
	if alias := strings.ToLower(get("sAMAccountName")); alias != "" {
		u.Alias = []string{alias}
	}
	u.FullName = get("name")
	u.Name = get("givenName")
	u.Lastname = get("sn")
	u.JobTitle = get("title")
	u.StreetAddress = get("streetAddress")
	u.City = get("l")
	u.ZipCode = get("postalCode")
	u.State = get("st")
	u.PhoneNumber = get("telephoneNumber")
	u.OrgUnit = get("department")
	u.EmployeeNumber = get("employeeID")
	u.EmployeeType = get("extensionAttribute6")
	u.PreferredLanguage = get("msExchUserCulture")

	// The raw manager attribute is a DN; keep its CN until it is resolved
	if dn := get("manager"); dn != "" {
		if cn, err := ldap.LeadingCN(dn); err == nil {
			u.Manager = strings.TrimSpace(cn)
		}
	}

	for _, group := range entry.Values("memberOf") {
		u.MemberOf = append(u.MemberOf, strings.TrimSpace(group))
	}
	return u
}

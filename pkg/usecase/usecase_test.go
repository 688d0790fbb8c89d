package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/repository/memory"
	"github.com/secmon-lab/ipasync/pkg/service/cache"
	"github.com/secmon-lab/ipasync/pkg/service/directory"
	"github.com/secmon-lab/ipasync/pkg/service/freeipa/freeipatest"
	"github.com/secmon-lab/ipasync/pkg/service/identity"
	"github.com/secmon-lab/ipasync/pkg/service/ldap/ldaptest"
	"github.com/secmon-lab/ipasync/pkg/usecase"
)

const (
	baseDN       = "OU=Staff,DC=corp,DC=example"
	tempPassword = "Tmp0rary!Passwd"
)

var today = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type expirationReport struct {
	admins   []string
	expired  []types.UserID
	disabled []types.UserID
}

type terminationReport struct {
	admins     []string
	deleted    []types.UserID
	notDeleted []types.UserID
}

type fakeNotifier struct {
	mu   sync.Mutex
	fail bool

	expirations        map[types.UserID]int
	newAccounts        map[types.UserID]string
	resets             map[types.UserID]string
	reminders          []types.UserID
	updateReports      [][]types.UserID
	expirationReports  []expirationReport
	terminationReports []terminationReport
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		expirations: map[types.UserID]int{},
		newAccounts: map[types.UserID]string{},
		resets:      map[types.UserID]string{},
	}
}

func (n *fakeNotifier) NotifyExpiration(ctx context.Context, id types.UserID, user *model.UserRecord, daysLeft int, expiration time.Time) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return false
	}
	n.expirations[id] = daysLeft
	return true
}

func (n *fakeNotifier) NotifyNewAccount(ctx context.Context, id types.UserID, user *model.UserRecord, password string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.newAccounts[id] = password
	return !n.fail
}

func (n *fakeNotifier) NotifyPasswordReset(ctx context.Context, id types.UserID, user *model.UserRecord, password string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets[id] = password
	return !n.fail
}

func (n *fakeNotifier) RemindPasswordReset(ctx context.Context, id types.UserID, user *model.UserRecord) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reminders = append(n.reminders, id)
	return !n.fail
}

func (n *fakeNotifier) ReportDirectoryUpdates(ctx context.Context, admins []string, updated []types.UserID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updateReports = append(n.updateReports, updated)
	return !n.fail
}

func (n *fakeNotifier) ReportExpirations(ctx context.Context, admins []string, expired, disabled []types.UserID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expirationReports = append(n.expirationReports, expirationReport{admins: admins, expired: expired, disabled: disabled})
	return !n.fail
}

func (n *fakeNotifier) ReportTerminated(ctx context.Context, admins []string, deleted, notDeleted []types.UserID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.terminationReports = append(n.terminationReports, terminationReport{admins: admins, deleted: deleted, notDeleted: notDeleted})
	return !n.fail
}

type testEnv struct {
	uc       *usecase.UseCases
	dir      *ldaptest.Directory
	ipa      *freeipatest.Server
	docs     *memory.DocumentStore
	store    *cache.Store
	notifier *fakeNotifier
}

func setup(t *testing.T, opts ...usecase.Option) *testEnv {
	t.Helper()
	clock := func() time.Time { return today }

	dir := ldaptest.New()
	ipa := freeipatest.New()
	ipa.SetClock(clock)
	ipa.AddGroup("engineering", "sales", "admins")

	docs := memory.New()
	store := cache.New(docs, cache.WithClock(clock))

	directorySource := directory.New(dir, store, baseDN, directory.WithCorporateDomains("corp.example"))
	identitySource := identity.New(ipa, store,
		identity.WithGroups(map[string]int{"engineering": 10001, "sales": 10002}),
		identity.WithClock(clock),
		identity.WithPasswordGenerator(func() (string, error) { return tempPassword, nil }),
	)
	notifier := newFakeNotifier()

	opts = append([]usecase.Option{
		usecase.WithSyncConfig(usecase.SyncConfig{SyncDomains: []string{"corp.example"}}),
	}, opts...)

	return &testEnv{
		uc:       usecase.New(directorySource, identitySource, notifier, store, opts...),
		dir:      dir,
		ipa:      ipa,
		docs:     docs,
		store:    store,
		notifier: notifier,
	}
}

// names derives given name, surname and full name from a first.last ID
func names(uid string) (string, string, string) {
	first, last, _ := strings.Cut(uid, ".")
	first = strings.ToUpper(first[:1]) + first[1:]
	last = strings.ToUpper(last[:1]) + last[1:]
	return first, last, first + " " + last
}

// putIdentityUser stores an account whose attributes match dirPerson(uid)
func putIdentityUser(ipa *freeipatest.Server, uid, domain string, groups ...string) {
	first, last, full := names(uid)
	ipa.PutUser(&model.IdentityUser{
		UID:           uid,
		Mail:          uid + "@" + domain,
		GivenName:     first,
		SN:            last,
		CN:            full,
		MemberOfGroup: groups,
	})
}

func putAdmin(ipa *freeipatest.Server) {
	putIdentityUser(ipa, "admin.user", "corp.example", "engineering", "admins")
}

// dirPerson builds a directory entry; attrs alternates names and values
func dirPerson(uid string, attrs ...string) *model.DirectoryEntry {
	first, last, full := names(uid)
	all := append([]string{
		"cn", full,
		"mail", uid + "@corp.example",
		"name", full,
		"givenName", first,
		"sn", last,
	}, attrs...)
	return ldaptest.Person(fmt.Sprintf("CN=%s,%s", full, baseDN), all...)
}

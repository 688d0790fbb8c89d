// Package freeipatest provides a stateful in-memory identity system for tests.
package freeipatest

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/interfaces"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/service/freeipa"
)

// Realm is appended to principals that carry none
const Realm = "EXAMPLE.COM"

// DefaultGroup every created user joins
const DefaultGroup = "ipausers"

// Server keeps users, groups and tokens in memory and answers with the same
// sentinel errors as the real client.
type Server struct {
	mu       sync.Mutex
	now      func() time.Time
	users    map[string]*model.IdentityUser
	groups   map[string]map[string]bool
	tokens   map[string][]string
	failures map[string]error
	calls    []string
}

var _ interfaces.IdentityClient = &Server{}

func New() *Server {
	return &Server{
		now:      time.Now,
		users:    make(map[string]*model.IdentityUser),
		groups:   map[string]map[string]bool{DefaultGroup: {}},
		tokens:   make(map[string][]string),
		failures: make(map[string]error),
	}
}

// SetClock sets the time stamped on password changes
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddGroup registers empty groups
func (s *Server) AddGroup(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if _, ok := s.groups[name]; !ok {
			s.groups[name] = make(map[string]bool)
		}
	}
}

// PutUser stores u as is. Groups listed in MemberOfGroup are created when
// missing.
func (s *Server) PutUser(u *model.IdentityUser) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneUser(u)
	if len(stored.Principals) == 0 {
		stored.Principals = []string{principal(stored.UID)}
	}
	for _, g := range stored.MemberOfGroup {
		if _, ok := s.groups[g]; !ok {
			s.groups[g] = make(map[string]bool)
		}
		s.groups[g][stored.UID] = true
	}
	stored.MemberOfGroup = nil
	s.users[stored.UID] = stored
}

// User returns a copy of the stored user
func (s *Server) User(uid string) (*model.IdentityUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, false
	}
	return s.view(u), true
}

// AddToken registers an OTP token for owner
func (s *Server) AddToken(owner string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[owner] = append(s.tokens[owner], ids...)
}

// Tokens returns the token IDs owned by owner
func (s *Server) Tokens(owner string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tokens[owner])
}

// Fail makes every call of method return err. A nil err clears the failure.
// Method names are those of interfaces.IdentityClient.
func (s *Server) Fail(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Calls returns the names of the methods called so far
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CountCalls returns how many times method was called
func (s *Server) CountCalls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (s *Server) enter(method string) error {
	s.calls = append(s.calls, method)
	if err, ok := s.failures[method]; ok {
		return err
	}
	return nil
}

func (s *Server) FindUsers(ctx context.Context, query model.IdentityUserQuery) ([]*model.IdentityUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindUsers"); err != nil {
		return nil, err
	}

	preserved := query.Preserved != nil && *query.Preserved
	uids := make([]string, 0, len(s.users))
	for uid := range s.users {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	var result []*model.IdentityUser
	for _, uid := range uids {
		u := s.users[uid]
		if u.Preserved != preserved {
			continue
		}
		if query.UID != "" && query.UID != uid {
			continue
		}
		if query.InGroup != "" && !s.groups[query.InGroup][uid] {
			continue
		}
		if query.Principal != "" && !hasPrincipal(u, query.Principal) {
			continue
		}
		result = append(result, s.view(u))
	}
	return result, nil
}

func (s *Server) AddUser(ctx context.Context, uid string, attrs model.IdentityUserAttributes) (*model.IdentityUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AddUser"); err != nil {
		return nil, err
	}
	if _, ok := s.users[uid]; ok {
		return nil, goerr.Wrap(freeipa.ErrDuplicateEntry, "user already exists", goerr.V("uid", uid))
	}

	now := s.now().UTC().Truncate(time.Second)
	u := &model.IdentityUser{
		UID:        uid,
		Principals: []string{principal(uid)},
	}
	apply(u, attrs)
	if attrs.Password != nil {
		u.PasswordExpiration = now
		u.LastPasswordChange = now
	}
	s.users[uid] = u
	s.groups[DefaultGroup][uid] = true

	return s.view(u), nil
}

func (s *Server) ModifyUser(ctx context.Context, uid string, attrs model.IdentityUserAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ModifyUser"); err != nil {
		return err
	}
	u, ok := s.active(uid)
	if !ok {
		return goerr.Wrap(freeipa.ErrNotFound, "user not found", goerr.V("uid", uid))
	}

	before := *u
	apply(u, attrs)
	if attrs.Password != nil {
		now := s.now().UTC().Truncate(time.Second)
		u.PasswordExpiration = now
		u.LastPasswordChange = now
		return nil
	}
	if sameScalars(&before, u) {
		return goerr.Wrap(freeipa.ErrEmptyModlist, "no modifications to be performed", goerr.V("uid", uid))
	}
	return nil
}

func (s *Server) AddPrincipal(ctx context.Context, uid, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AddPrincipal"); err != nil {
		return err
	}
	u, ok := s.active(uid)
	if !ok {
		return goerr.Wrap(freeipa.ErrNotFound, "user not found", goerr.V("uid", uid))
	}
	for _, other := range s.users {
		if hasPrincipal(other, name) {
			return goerr.Wrap(freeipa.ErrDuplicateEntry, "principal already in use", goerr.V("principal", name))
		}
	}
	u.Principals = append(u.Principals, principal(name))
	return nil
}

func (s *Server) DisableUser(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DisableUser"); err != nil {
		return err
	}
	u, ok := s.active(uid)
	if !ok {
		return goerr.Wrap(freeipa.ErrNotFound, "user not found", goerr.V("uid", uid))
	}
	if u.Disabled {
		return goerr.Wrap(freeipa.ErrAlreadyInactive, "user is already disabled", goerr.V("uid", uid))
	}
	u.Disabled = true
	return nil
}

func (s *Server) EnableUser(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("EnableUser"); err != nil {
		return err
	}
	u, ok := s.active(uid)
	if !ok {
		return goerr.Wrap(freeipa.ErrNotFound, "user not found", goerr.V("uid", uid))
	}
	if !u.Disabled {
		return goerr.Wrap(freeipa.ErrAlreadyActive, "user is already enabled", goerr.V("uid", uid))
	}
	u.Disabled = false
	return nil
}

func (s *Server) DeleteUser(ctx context.Context, uid string, preserve bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteUser"); err != nil {
		return err
	}
	u, ok := s.users[uid]
	if !ok || (u.Preserved && preserve) {
		return goerr.Wrap(freeipa.ErrNotFound, "user not found", goerr.V("uid", uid))
	}

	for _, members := range s.groups {
		delete(members, uid)
	}
	if preserve {
		u.Preserved = true
		return nil
	}
	delete(s.users, uid)
	delete(s.tokens, uid)
	return nil
}

func (s *Server) AddGroupMember(ctx context.Context, group, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AddGroupMember"); err != nil {
		return err
	}
	members, ok := s.groups[group]
	if !ok {
		return goerr.Wrap(freeipa.ErrNotFound, "group not found", goerr.V("group", group))
	}
	if _, ok := s.active(uid); !ok || members[uid] {
		return goerr.Wrap(freeipa.ErrRemote, "group membership not changed", goerr.V("group", group), goerr.V("uid", uid))
	}
	members[uid] = true
	return nil
}

func (s *Server) RemoveGroupMember(ctx context.Context, group, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RemoveGroupMember"); err != nil {
		return err
	}
	members, ok := s.groups[group]
	if !ok {
		return goerr.Wrap(freeipa.ErrNotFound, "group not found", goerr.V("group", group))
	}
	if !members[uid] {
		return goerr.Wrap(freeipa.ErrRemote, "group membership not changed", goerr.V("group", group), goerr.V("uid", uid))
	}
	delete(members, uid)
	return nil
}

func (s *Server) FindOTPTokens(ctx context.Context, owner string) ([]*model.OTPToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("FindOTPTokens"); err != nil {
		return nil, err
	}
	var tokens []*model.OTPToken
	for _, id := range s.tokens[owner] {
		tokens = append(tokens, &model.OTPToken{UniqueID: id, Owner: owner})
	}
	return tokens, nil
}

func (s *Server) DeleteOTPToken(ctx context.Context, uniqueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("DeleteOTPToken"); err != nil {
		return err
	}
	for owner, ids := range s.tokens {
		if i := slices.Index(ids, uniqueID); i >= 0 {
			s.tokens[owner] = slices.Delete(ids, i, i+1)
			return nil
		}
	}
	return goerr.Wrap(freeipa.ErrNotFound, "token not found", goerr.V("token", uniqueID))
}

func (s *Server) active(uid string) (*model.IdentityUser, bool) {
	u, ok := s.users[uid]
	if !ok || u.Preserved {
		return nil, false
	}
	return u, true
}

// view copies u and fills its group memberships
func (s *Server) view(u *model.IdentityUser) *model.IdentityUser {
	out := cloneUser(u)
	out.MemberOfGroup = nil
	for name, members := range s.groups {
		if members[u.UID] {
			out.MemberOfGroup = append(out.MemberOfGroup, name)
		}
	}
	sort.Strings(out.MemberOfGroup)
	return out
}

func cloneUser(u *model.IdentityUser) *model.IdentityUser {
	out := *u
	out.Principals = slices.Clone(u.Principals)
	out.MemberOfGroup = slices.Clone(u.MemberOfGroup)
	return &out
}

func principal(name string) string {
	if strings.Contains(name, "@") {
		return name
	}
	return name + "@" + Realm
}

func hasPrincipal(u *model.IdentityUser, name string) bool {
	want := strings.ToLower(principal(name))
	for _, p := range u.Principals {
		if strings.ToLower(p) == want {
			return true
		}
	}
	return false
}

func apply(u *model.IdentityUser, attrs model.IdentityUserAttributes) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.Mail, attrs.Mail)
	set(&u.GivenName, attrs.GivenName)
	set(&u.SN, attrs.SN)
	set(&u.CN, attrs.CN)
	set(&u.Title, attrs.Title)
	set(&u.Street, attrs.Street)
	set(&u.City, attrs.City)
	set(&u.State, attrs.State)
	set(&u.PostalCode, attrs.PostalCode)
	set(&u.OrgUnit, attrs.OrgUnit)
	set(&u.EmployeeNumber, attrs.EmployeeNumber)
	set(&u.EmployeeType, attrs.EmployeeType)
	set(&u.PreferredLanguage, attrs.PreferredLanguage)
	set(&u.TelephoneNumber, attrs.TelephoneNumber)
	set(&u.Manager, attrs.Manager)
}

func sameScalars(a, b *model.IdentityUser) bool {
	return a.Mail == b.Mail && a.GivenName == b.GivenName && a.SN == b.SN &&
		a.CN == b.CN && a.Title == b.Title && a.Street == b.Street &&
		a.City == b.City && a.State == b.State && a.PostalCode == b.PostalCode &&
		a.OrgUnit == b.OrgUnit && a.EmployeeNumber == b.EmployeeNumber &&
		a.EmployeeType == b.EmployeeType && a.PreferredLanguage == b.PreferredLanguage &&
		a.TelephoneNumber == b.TelephoneNumber && a.Manager == b.Manager
}

package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
	"github.com/secmon-lab/ipasync/pkg/service/freeipa"
	"github.com/secmon-lab/ipasync/pkg/utils/errutil"
	"github.com/secmon-lab/ipasync/pkg/utils/logging"
)

// maxAliasAttempts bounds the numeric suffixes tried for a free alias
const maxAliasAttempts = 1000

// Create adds an account in the given group with a temporary password and a
// login alias. It returns the created record and the password.
func (a *Adapter) Create(ctx context.Context, user *model.NewUser) (*model.UserRecord, string, types.Outcome) {
	nu := *user
	nu.UserID = types.NewUserID(nu.UserID.String())
	logger := logging.From(ctx).With("user_id", nu.UserID)
	logger.Info("creating identity user")

	if err := a.validate.StructCtx(ctx, &nu); err != nil {
		logger.Warn("user not created, invalid attributes", "error", err)
		return nil, "", types.OutcomeRejected
	}
	if !a.isManagedGroup(nu.Group) {
		logger.Warn("user not created, group is not managed", "group", nu.Group)
		return nil, "", types.OutcomeRejected
	}
	if _, exists := a.FetchOne(ctx, nu.UserID); exists {
		logger.Warn("user not created, it already exists")
		return nil, "", types.OutcomeRejected
	}

	preserved, err := a.isPreserved(ctx, nu.UserID)
	if err != nil {
		errutil.Handle(ctx, err, "could not check whether the account is preserved")
		return nil, "", types.OutcomeFailed
	}
	if preserved {
		logger.Warn("user not created, a preserved account holds the user ID")
		return nil, "", types.OutcomeRejected
	}

	if nu.FullName == "" {
		nu.FullName = nu.Name + " " + nu.Lastname
	}
	if nu.Alias == "" {
		alias, err := a.generateAlias(ctx, nu.Name, nu.Lastname)
		if err != nil {
			errutil.Handle(ctx, err, "could not generate alias")
			return nil, "", types.OutcomeFailed
		}
		nu.Alias = alias
	}

	password, err := a.passwords()
	if err != nil {
		errutil.Handle(ctx, err, "could not generate password")
		return nil, "", types.OutcomeFailed
	}

	gid := a.groups[nu.Group]
	home := "/home/" + nu.Alias
	attrs := model.IdentityUserAttributes{
		Mail:              &nu.Email,
		GivenName:         &nu.Name,
		SN:                &nu.Lastname,
		CN:                &nu.FullName,
		DisplayName:       &nu.FullName,
		Gecos:             &nu.FullName,
		Title:             optional(nu.JobTitle),
		Street:            optional(nu.StreetAddress),
		City:              optional(nu.City),
		State:             optional(nu.State),
		PostalCode:        optional(nu.ZipCode),
		OrgUnit:           optional(nu.OrgUnit),
		EmployeeNumber:    optional(nu.EmployeeNumber),
		EmployeeType:      optional(nu.EmployeeType),
		PreferredLanguage: optional(nu.PreferredLanguage),
		TelephoneNumber:   optional(nu.PhoneNumber),
		Manager:           optional(nu.Manager),
		HomeDirectory:     &home,
		GIDNumber:         &gid,
		Password:          &password,
		NoPrivate:         true,
	}

	uid := nu.UserID.String()
	created, err := a.client.AddUser(ctx, uid, attrs)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to add user", goerr.V("user_id", uid)),
			"could not create user in identity system")
		return nil, "", types.OutcomeFailed
	}
	logger.Debug("account created")

	if err := a.client.AddPrincipal(ctx, uid, nu.Alias); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to add alias", goerr.V("user_id", uid), goerr.V("alias", nu.Alias)),
			"could not complete user creation")
		a.refresh(ctx)
		return nil, "", types.OutcomeFailed
	}
	logger.Debug("alias added", "alias", nu.Alias)

	if err := a.client.AddGroupMember(ctx, nu.Group, uid); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to add group member", goerr.V("user_id", uid), goerr.V("group", nu.Group)),
			"could not complete user creation")
		a.refresh(ctx)
		return nil, "", types.OutcomeFailed
	}
	logger.Debug("group membership added", "group", nu.Group)

	a.refresh(ctx)

	record, ok := a.FetchOne(ctx, nu.UserID)
	if !ok {
		record = toRecord(created)
		record.Alias = append(record.Alias, nu.Alias)
		record.MemberOf = append(record.MemberOf, nu.Group)
	}

	logger.Info("identity user created")
	return record, password, types.OutcomeSuccess
}

// Update changes the attributes staged in update. Name changes recompute the
// full name and initials unless they are given explicitly. A group change
// moves the user out of every managed group it belongs to. The snapshot is
// refreshed afterwards only when refresh is set.
func (a *Adapter) Update(ctx context.Context, id types.UserID, update *model.UserUpdate, refresh bool) types.Outcome {
	logger := logging.From(ctx).With("user_id", id)
	logger.Info("updating identity user")

	if err := id.Validate(); err != nil {
		logger.Warn("user not updated, invalid user ID", "error", err)
		return types.OutcomeRejected
	}
	current, ok := a.FetchOne(ctx, id)
	if !ok {
		logger.Warn("user not updated, it does not exist")
		return types.OutcomeRejected
	}
	if update.Group != "" && !a.isManagedGroup(update.Group) {
		logger.Warn("user not updated, group is not managed", "group", update.Group)
		return types.OutcomeRejected
	}
	if manager, ok := update.Value(types.UserFieldManager); ok && manager != "" {
		if _, exists := a.FetchOne(ctx, types.NewUserID(manager)); !exists {
			logger.Warn("user not updated, manager does not exist", "manager", manager)
			return types.OutcomeRejected
		}
	}

	attrs, hasAttrs := buildAttributes(current, update)
	changed := false

	if hasAttrs {
		err := a.client.ModifyUser(ctx, id.String(), attrs)
		switch {
		case err == nil:
			changed = true
			logger.Debug("account attributes updated")
		case errors.Is(err, freeipa.ErrEmptyModlist):
			logger.Debug("account attributes already up to date")
		default:
			errutil.Handle(ctx, goerr.Wrap(err, "failed to modify user", goerr.V("user_id", id)),
				"could not update user in identity system")
			return types.OutcomeFailed
		}
	}

	if update.Group != "" && !current.IsMemberOf(update.Group) {
		for _, group := range current.MemberOf {
			if !a.isManagedGroup(group) {
				continue
			}
			if err := a.client.RemoveGroupMember(ctx, group, id.String()); err != nil {
				errutil.Handle(ctx, goerr.Wrap(err, "failed to remove group member", goerr.V("user_id", id), goerr.V("group", group)),
					"could not update user group")
				return a.partial(ctx, changed, refresh)
			}
			logger.Debug("group membership removed", "group", group)
		}
		if err := a.client.AddGroupMember(ctx, update.Group, id.String()); err != nil {
			errutil.Handle(ctx, goerr.Wrap(err, "failed to add group member", goerr.V("user_id", id), goerr.V("group", update.Group)),
				"could not update user group")
			return a.partial(ctx, true, refresh)
		}
		logger.Debug("group membership added", "group", update.Group)
		changed = true
	}

	if !changed {
		logger.Info("user is up to date, nothing changed")
		return types.OutcomeUnchanged
	}

	if refresh {
		a.refresh(ctx)
	}
	logger.Info("identity user updated")
	return types.OutcomeSuccess
}

// partial ends an update that failed after something was already applied
func (a *Adapter) partial(ctx context.Context, changed, refresh bool) types.Outcome {
	if changed {
		if refresh {
			a.refresh(ctx)
		} else if err := a.cache.Invalidate(ctx, types.CacheKindIdentity); err != nil {
			errutil.Handle(ctx, err, "failed to invalidate identity cache")
		}
	}
	return types.OutcomeFailed
}

// Disable locks the account. An account that is already locked is reported
// as unchanged.
func (a *Adapter) Disable(ctx context.Context, id types.UserID) types.Outcome {
	logging.From(ctx).Info("disabling identity user", "user_id", id)
	return a.toggle(ctx, id, a.client.DisableUser, freeipa.ErrAlreadyInactive, "disabled")
}

// Enable unlocks the account. An account that is already unlocked is
// reported as unchanged.
func (a *Adapter) Enable(ctx context.Context, id types.UserID) types.Outcome {
	logging.From(ctx).Info("enabling identity user", "user_id", id)
	return a.toggle(ctx, id, a.client.EnableUser, freeipa.ErrAlreadyActive, "enabled")
}

func (a *Adapter) toggle(ctx context.Context, id types.UserID, call func(context.Context, string) error, already error, state string) types.Outcome {
	logger := logging.From(ctx).With("user_id", id)

	err := call(ctx, id.String())
	switch {
	case err == nil:
	case errors.Is(err, already):
		logger.Warn("user is already " + state)
		return types.OutcomeUnchanged
	case errors.Is(err, freeipa.ErrNotFound):
		logger.Warn("user does not exist")
		return types.OutcomeRejected
	default:
		errutil.Handle(ctx, goerr.Wrap(err, "failed to change account state", goerr.V("user_id", id), goerr.V("state", state)),
			"could not change user state in identity system")
		return types.OutcomeFailed
	}

	logger.Info("user " + state)
	a.refresh(ctx)
	return types.OutcomeSuccess
}

// Delete removes the account. With preserve the account is kept in the
// preserved state without group memberships.
func (a *Adapter) Delete(ctx context.Context, id types.UserID, preserve bool) types.Outcome {
	logger := logging.From(ctx).With("user_id", id, "preserve", preserve)
	logger.Info("deleting identity user")

	err := a.client.DeleteUser(ctx, id.String(), preserve)
	switch {
	case err == nil:
	case errors.Is(err, freeipa.ErrNotFound):
		logger.Warn("user not deleted, it does not exist")
		return types.OutcomeRejected
	default:
		errutil.Handle(ctx, goerr.Wrap(err, "failed to delete user", goerr.V("user_id", id)),
			"could not delete user in identity system")
		return types.OutcomeFailed
	}

	logger.Info("identity user deleted")
	a.refresh(ctx)
	return types.OutcomeSuccess
}

// DeleteOTPTokens removes every one-time-password token of the user. All
// tokens are attempted; the result is true only if each deletion succeeded.
func (a *Adapter) DeleteOTPTokens(ctx context.Context, id types.UserID) bool {
	logger := logging.From(ctx).With("user_id", id)

	if _, ok := a.FetchOne(ctx, id); !ok {
		logger.Warn("could not remove OTP tokens, user not found")
		return false
	}

	tokens, err := a.client.FindOTPTokens(ctx, id.String())
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to list OTP tokens", goerr.V("user_id", id)),
			"could not remove OTP tokens")
		return false
	}
	if len(tokens) == 0 {
		logger.Info("user has no OTP tokens")
		return true
	}

	failed := 0
	for _, token := range tokens {
		if err := a.client.DeleteOTPToken(ctx, token.UniqueID); err != nil {
			failed++
			errutil.Handle(ctx, goerr.Wrap(err, "failed to delete OTP token", goerr.V("user_id", id), goerr.V("token", token.UniqueID)),
				"could not remove OTP token")
		}
	}

	if failed > 0 {
		logger.Warn("could not remove all OTP tokens", "tokens", len(tokens), "failed", failed)
		return false
	}
	logger.Info("OTP tokens removed", "tokens", len(tokens))
	return true
}

func (a *Adapter) isPreserved(ctx context.Context, id types.UserID) (bool, error) {
	preserved := true
	found, err := a.client.FindUsers(ctx, model.IdentityUserQuery{UID: id.String(), Preserved: &preserved})
	if err != nil {
		return false, goerr.Wrap(err, "failed to search preserved users", goerr.V("user_id", id))
	}
	return len(found) > 0, nil
}

// generateAlias derives first initial + last name and appends 1, 2, ... to
// that base until no principal uses it.
func (a *Adapter) generateAlias(ctx context.Context, name, lastname string) (string, error) {
	base := strings.ToLower(strings.Join(strings.Fields(firstRune(name)+lastname), ""))

	candidate := base
	for n := 1; n <= maxAliasAttempts; n++ {
		found, err := a.client.FindUsers(ctx, model.IdentityUserQuery{Principal: candidate})
		if err != nil {
			return "", goerr.Wrap(err, "failed to search principals", goerr.V("alias", candidate))
		}
		if len(found) == 0 {
			logging.From(ctx).Debug("alias generated", "alias", candidate)
			return candidate, nil
		}
		candidate = base + strconv.Itoa(n)
	}
	return "", goerr.New("no free alias", goerr.V("base", base))
}

// buildAttributes maps an update onto identity attributes. It reports false
// when nothing is to be modified.
func buildAttributes(current *model.UserRecord, update *model.UserUpdate) (model.IdentityUserAttributes, bool) {
	var attrs model.IdentityUserAttributes
	set := false
	pick := func(field types.UserField, dst **string) {
		if v, ok := update.Value(field); ok {
			*dst = &v
			set = true
		}
	}

	pick(types.UserFieldEmail, &attrs.Mail)
	pick(types.UserFieldName, &attrs.GivenName)
	pick(types.UserFieldLastname, &attrs.SN)
	pick(types.UserFieldJobTitle, &attrs.Title)
	pick(types.UserFieldStreetAddress, &attrs.Street)
	pick(types.UserFieldCity, &attrs.City)
	pick(types.UserFieldState, &attrs.State)
	pick(types.UserFieldZipCode, &attrs.PostalCode)
	pick(types.UserFieldOrgUnit, &attrs.OrgUnit)
	pick(types.UserFieldEmployeeNumber, &attrs.EmployeeNumber)
	pick(types.UserFieldEmployeeType, &attrs.EmployeeType)
	pick(types.UserFieldPreferredLanguage, &attrs.PreferredLanguage)
	pick(types.UserFieldPhoneNumber, &attrs.TelephoneNumber)
	pick(types.UserFieldManager, &attrs.Manager)

	fullName, hasFullName := update.Value(types.UserFieldFullName)
	initials := update.Initials

	name, hasName := update.Value(types.UserFieldName)
	lastname, hasLastname := update.Value(types.UserFieldLastname)
	if hasName || hasLastname {
		if !hasName {
			name = current.Name
		}
		if !hasLastname {
			lastname = current.Lastname
		}
		if !hasFullName {
			fullName = name + " " + lastname
			hasFullName = true
		}
		if initials == "" {
			initials = firstRune(name) + firstRune(lastname)
		}
	}

	if hasFullName {
		attrs.CN = &fullName
		attrs.DisplayName = &fullName
		attrs.Gecos = &fullName
		set = true
	}
	if initials != "" {
		attrs.Initials = &initials
		set = true
	}
	if update.HomeDirectory != "" {
		home := update.HomeDirectory
		attrs.HomeDirectory = &home
		set = true
	}
	return attrs, set
}

func firstRune(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(r)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

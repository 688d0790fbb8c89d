package model

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

// UserRecord is the source-independent shape of a user. Every field is always
// present; a value a source does not carry is the empty string or an empty
// list, so two records can be compared field by field without nil checks.
type UserRecord struct {
	Email               string    `json:"email"`
	Alias               []string  `json:"alias"`
	FullName            string    `json:"full_name"`
	Name                string    `json:"name"`
	Lastname            string    `json:"lastname"`
	JobTitle            string    `json:"job_title"`
	StreetAddress       string    `json:"street_address"`
	City                string    `json:"city"`
	State               string    `json:"state"`
	ZipCode             string    `json:"zip_code"`
	OrgUnit             string    `json:"org_unit"`
	EmployeeNumber      string    `json:"employee_number"`
	EmployeeType        string    `json:"employee_type"`
	PreferredLanguage   string    `json:"preferred_language"`
	PhoneNumber         string    `json:"phone_number"`
	Manager             string    `json:"manager"`
	MemberOf            []string  `json:"member_of"`
	PasswordExpiration  time.Time `json:"password_expiration"`
	PasswordLastChanged time.Time `json:"password_last_changed"`
}

// NewUserRecord returns a record with every list field initialised
func NewUserRecord() *UserRecord {
	return &UserRecord{
		Alias:    []string{},
		MemberOf: []string{},
	}
}

// Normalize replaces nil lists with empty ones. Records decoded from older
// cache documents may lack them.
func (u *UserRecord) Normalize() *UserRecord {
	if u.Alias == nil {
		u.Alias = []string{}
	}
	if u.MemberOf == nil {
		u.MemberOf = []string{}
	}
	return u
}

// Get returns the value of a single-valued field. Multi-valued fields are
// rendered comma separated.
func (u *UserRecord) Get(field types.UserField) string {
	switch field {
	case types.UserFieldEmail:
		return u.Email
	case types.UserFieldAlias:
		return strings.Join(u.Alias, ",")
	case types.UserFieldFullName:
		return u.FullName
	case types.UserFieldName:
		return u.Name
	case types.UserFieldLastname:
		return u.Lastname
	case types.UserFieldJobTitle:
		return u.JobTitle
	case types.UserFieldStreetAddress:
		return u.StreetAddress
	case types.UserFieldCity:
		return u.City
	case types.UserFieldState:
		return u.State
	case types.UserFieldZipCode:
		return u.ZipCode
	case types.UserFieldOrgUnit:
		return u.OrgUnit
	case types.UserFieldEmployeeNumber:
		return u.EmployeeNumber
	case types.UserFieldEmployeeType:
		return u.EmployeeType
	case types.UserFieldPreferredLanguage:
		return u.PreferredLanguage
	case types.UserFieldPhoneNumber:
		return u.PhoneNumber
	case types.UserFieldManager:
		return u.Manager
	case types.UserFieldMemberOf:
		return strings.Join(u.MemberOf, ",")
	default:
		return ""
	}
}

// Set assigns a single-valued field. Unknown and multi-valued fields are ignored.
func (u *UserRecord) Set(field types.UserField, value string) {
	switch field {
	case types.UserFieldEmail:
		u.Email = value
	case types.UserFieldFullName:
		u.FullName = value
	case types.UserFieldName:
		u.Name = value
	case types.UserFieldLastname:
		u.Lastname = value
	case types.UserFieldJobTitle:
		u.JobTitle = value
	case types.UserFieldStreetAddress:
		u.StreetAddress = value
	case types.UserFieldCity:
		u.City = value
	case types.UserFieldState:
		u.State = value
	case types.UserFieldZipCode:
		u.ZipCode = value
	case types.UserFieldOrgUnit:
		u.OrgUnit = value
	case types.UserFieldEmployeeNumber:
		u.EmployeeNumber = value
	case types.UserFieldEmployeeType:
		u.EmployeeType = value
	case types.UserFieldPreferredLanguage:
		u.PreferredLanguage = value
	case types.UserFieldPhoneNumber:
		u.PhoneNumber = value
	case types.UserFieldManager:
		u.Manager = value
	}
}

// Clone returns a deep copy
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	c.Alias = slices.Clone(u.Alias)
	c.MemberOf = slices.Clone(u.MemberOf)
	return c.Normalize()
}

// EmailDomain returns the lowercase domain of the record's address
func (u *UserRecord) EmailDomain() string {
	return types.EmailDomain(u.Email)
}

// PrimaryAlias returns the first alias, or "" when there is none
func (u *UserRecord) PrimaryAlias() string {
	if len(u.Alias) == 0 {
		return ""
	}
	return u.Alias[0]
}

// IsMemberOf reports whether the user belongs to group
func (u *UserRecord) IsMemberOf(group string) bool {
	return slices.Contains(u.MemberOf, group)
}

// PasswordNeverChanged reports whether the password in place is still the
// temporary one set by an administrator. The identity system expires such
// passwords immediately, so both timestamps are equal.
func (u *UserRecord) PasswordNeverChanged() bool {
	return u.PasswordLastChanged.Equal(u.PasswordExpiration)
}

// Mailbox formats the record as an RFC 5322 mailbox, "Full Name <email>"
func (u *UserRecord) Mailbox() string {
	if u.FullName == "" {
		return u.Email
	}
	return u.FullName + " <" + u.Email + ">"
}

// UserSnapshot is a full listing from one source keyed by user ID
type UserSnapshot map[types.UserID]*UserRecord

// Has reports whether id is present
func (s UserSnapshot) Has(id types.UserID) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the user IDs in ascending order
func (s UserSnapshot) IDs() []types.UserID {
	ids := make([]types.UserID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clone returns a deep copy
func (s UserSnapshot) Clone() UserSnapshot {
	if s == nil {
		return nil
	}
	c := make(UserSnapshot, len(s))
	for id, u := range s {
		c[id] = u.Clone()
	}
	return c
}

// UserDiff is a set of staged field values, keyed by field. An empty diff
// means the records agree.
type UserDiff map[types.UserField]string

// Fields returns the staged fields in record order
func (d UserDiff) Fields() []types.UserField {
	var fields []types.UserField
	for _, f := range types.ComparableUserFields() {
		if _, ok := d[f]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

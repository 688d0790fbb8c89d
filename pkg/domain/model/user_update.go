package model

import (
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

// UserUpdate lists the attributes a caller wants to change. Fields absent from
// Fields are left untouched; an empty Group keeps the current membership.
type UserUpdate struct {
	Fields        UserDiff
	Group         string
	Initials      string
	HomeDirectory string
}

// IsEmpty reports whether the update would not change anything
func (u *UserUpdate) IsEmpty() bool {
	return len(u.Fields) == 0 && u.Group == "" && u.Initials == "" && u.HomeDirectory == ""
}

// Value returns the staged value of field
func (u *UserUpdate) Value(field types.UserField) (string, bool) {
	if u.Fields == nil {
		return "", false
	}
	v, ok := u.Fields[field]
	return v, ok
}

// NewUser holds the attributes used to create an identity account
type NewUser struct {
	UserID            types.UserID `validate:"required,contains=."`
	Email             string       `validate:"required,email"`
	Name              string       `validate:"required"`
	Lastname          string       `validate:"required"`
	Group             string       `validate:"required"`
	FullName          string
	Alias             string
	JobTitle          string
	StreetAddress     string
	City              string
	State             string
	ZipCode           string
	OrgUnit           string
	EmployeeNumber    string
	EmployeeType      string
	PreferredLanguage string
	PhoneNumber       string
	Manager           string
}

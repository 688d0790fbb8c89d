package model

import "time"

// IdentityUser is an account as the identity system reports it
type IdentityUser struct {
	UID                string
	Mail               string
	Principals         []string
	CN                 string
	GivenName          string
	SN                 string
	Title              string
	Street             string
	City               string
	State              string
	PostalCode         string
	OrgUnit            string
	EmployeeNumber     string
	EmployeeType       string
	PreferredLanguage  string
	TelephoneNumber    string
	Manager            string
	MemberOfGroup      []string
	PasswordExpiration time.Time
	LastPasswordChange time.Time
	Disabled           bool
	Preserved          bool
}

// IdentityUserQuery filters a user search. Empty fields do not filter.
type IdentityUserQuery struct {
	UID       string
	InGroup   string
	Principal string
	Preserved *bool
}

// IdentityUserAttributes is the attribute set of an add or modify call. Nil
// pointers are omitted from the request.
type IdentityUserAttributes struct {
	Mail              *string
	GivenName         *string
	SN                *string
	CN                *string
	DisplayName       *string
	Gecos             *string
	Initials          *string
	Title             *string
	Street            *string
	City              *string
	State             *string
	PostalCode        *string
	OrgUnit           *string
	EmployeeNumber    *string
	EmployeeType      *string
	PreferredLanguage *string
	TelephoneNumber   *string
	Manager           *string
	HomeDirectory     *string
	GIDNumber         *int
	Password          *string `masq:"secret"`
	NoPrivate         bool
}

// OTPToken is a one-time-password token registered to a user
type OTPToken struct {
	UniqueID string
	Owner    string
}

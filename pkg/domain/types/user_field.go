package types

import "fmt"

// UserField names one attribute of a user record. The string values double as
// CSV column names and JSON keys.
type UserField string

const (
	UserFieldEmail             UserField = "email"
	UserFieldAlias             UserField = "alias"
	UserFieldFullName          UserField = "full_name"
	UserFieldName              UserField = "name"
	UserFieldLastname          UserField = "lastname"
	UserFieldJobTitle          UserField = "job_title"
	UserFieldStreetAddress     UserField = "street_address"
	UserFieldCity              UserField = "city"
	UserFieldState             UserField = "state"
	UserFieldZipCode           UserField = "zip_code"
	UserFieldOrgUnit           UserField = "org_unit"
	UserFieldEmployeeNumber    UserField = "employee_number"
	UserFieldEmployeeType      UserField = "employee_type"
	UserFieldPreferredLanguage UserField = "preferred_language"
	UserFieldPhoneNumber       UserField = "phone_number"
	UserFieldManager           UserField = "manager"
	UserFieldMemberOf          UserField = "member_of"
)

// ComparableUserFields returns the single-valued fields both sources carry, in
// record order. Alias and group membership are multi-valued and owned by the
// identity system, so they never take part in a diff.
func ComparableUserFields() []UserField {
	return []UserField{
		UserFieldEmail,
		UserFieldFullName,
		UserFieldName,
		UserFieldLastname,
		UserFieldJobTitle,
		UserFieldStreetAddress,
		UserFieldCity,
		UserFieldState,
		UserFieldZipCode,
		UserFieldOrgUnit,
		UserFieldEmployeeNumber,
		UserFieldEmployeeType,
		UserFieldPreferredLanguage,
		UserFieldPhoneNumber,
		UserFieldManager,
	}
}

// IsValid checks if the field is a known user record field
func (f UserField) IsValid() bool {
	switch f {
	case UserFieldEmail,
		UserFieldAlias,
		UserFieldFullName,
		UserFieldName,
		UserFieldLastname,
		UserFieldJobTitle,
		UserFieldStreetAddress,
		UserFieldCity,
		UserFieldState,
		UserFieldZipCode,
		UserFieldOrgUnit,
		UserFieldEmployeeNumber,
		UserFieldEmployeeType,
		UserFieldPreferredLanguage,
		UserFieldPhoneNumber,
		UserFieldManager,
		UserFieldMemberOf:
		return true
	default:
		return false
	}
}

// String returns the string representation of the field
func (f UserField) String() string {
	return string(f)
}

// ParseUserField parses a string into a UserField
func ParseUserField(s string) (UserField, error) {
	field := UserField(s)
	if !field.IsValid() {
		return "", fmt.Errorf("invalid user field: %s", s)
	}
	return field, nil
}

package freeipa

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/secmon-lab/ipasync/pkg/domain/model"
)

// DefaultAPIVersion is sent with every call
const DefaultAPIVersion = "2.251"

// timestampLayout is the generalized time format of krb* attributes
const timestampLayout = "20060102150405Z"

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     int    `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Name    string `json:"name"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int             `json:"id"`
}

// findResult is the envelope of *_find calls
type findResult struct {
	Count     int                          `json:"count"`
	Truncated bool                         `json:"truncated"`
	Result    []map[string]json.RawMessage `json:"result"`
}

// entryResult is the envelope of calls returning one entry
type entryResult struct {
	Result map[string]json.RawMessage `json:"result"`
	Value  json.RawMessage            `json:"value"`
}

// boolResult is the envelope of user_enable and user_disable
type boolResult struct {
	Result bool `json:"result"`
}

// deleteResult is the envelope of *_del calls
type deleteResult struct {
	Result struct {
		Failed []string `json:"failed"`
	} `json:"result"`
}

// memberResult is the envelope of group_{add,remove}_member
type memberResult struct {
	Completed int `json:"completed"`
	Failed    struct {
		Member struct {
			User [][]string `json:"user"`
		} `json:"member"`
	} `json:"failed"`
}

// attribute decodes one attribute value, which the server sends as a scalar,
// a list of scalars, or a list of {"__datetime__": "..."} objects.
type attribute []string

func (a *attribute) UnmarshalJSON(data []byte) error {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		list = []json.RawMessage{data}
	}

	for _, raw := range list {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			*a = append(*a, s)
			continue
		}
		var dt struct {
			DateTime string `json:"__datetime__"`
		}
		if err := json.Unmarshal(raw, &dt); err == nil && dt.DateTime != "" {
			*a = append(*a, dt.DateTime)
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			if b {
				*a = append(*a, "TRUE")
			} else {
				*a = append(*a, "FALSE")
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			*a = append(*a, n.String())
		}
	}
	return nil
}

type entry map[string]json.RawMessage

func (e entry) values(name string) []string {
	raw, ok := e[name]
	if !ok {
		return nil
	}
	var a attribute
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil
	}
	return a
}

func (e entry) first(name string) string {
	if v := e.values(name); len(v) > 0 {
		return v[0]
	}
	return ""
}

func (e entry) flag(name string) bool {
	return strings.EqualFold(e.first(name), "true")
}

func (e entry) timestamp(name string) time.Time {
	v := e.first(name)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(timestampLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (e entry) toUser() *model.IdentityUser {
	return &model.IdentityUser{
		UID:                e.first("uid"),
		Mail:               e.first("mail"),
		Principals:         e.values("krbprincipalname"),
		CN:                 e.first("cn"),
		GivenName:          e.first("givenname"),
		SN:                 e.first("sn"),
		Title:              e.first("title"),
		Street:             e.first("street"),
		City:               e.first("l"),
		State:              e.first("st"),
		PostalCode:         e.first("postalcode"),
		OrgUnit:            e.first("ou"),
		EmployeeNumber:     e.first("employeenumber"),
		EmployeeType:       e.first("employeetype"),
		PreferredLanguage:  e.first("preferredlanguage"),
		TelephoneNumber:    e.first("telephonenumber"),
		Manager:            e.first("manager"),
		MemberOfGroup:      e.values("memberof_group"),
		PasswordExpiration: e.timestamp("krbpasswordexpiration"),
		LastPasswordChange: e.timestamp("krblastpwdchange"),
		Disabled:           e.flag("nsaccountlock"),
		Preserved:          e.flag("preserved"),
	}
}

// FormatTimestamp renders t the way krb* attributes are encoded
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func attributeOptions(attrs model.IdentityUserAttributes) map[string]any {
	opts := make(map[string]any)
	set := func(name string, v *string) {
		if v != nil {
			opts[name] = *v
		}
	}

	set("mail", attrs.Mail)
	set("givenname", attrs.GivenName)
	set("sn", attrs.SN)
	set("cn", attrs.CN)
	set("displayname", attrs.DisplayName)
	set("gecos", attrs.Gecos)
	set("initials", attrs.Initials)
	set("title", attrs.Title)
	set("street", attrs.Street)
	set("l", attrs.City)
	set("st", attrs.State)
	set("postalcode", attrs.PostalCode)
	set("ou", attrs.OrgUnit)
	set("employeenumber", attrs.EmployeeNumber)
	set("employeetype", attrs.EmployeeType)
	set("preferredlanguage", attrs.PreferredLanguage)
	set("telephonenumber", attrs.TelephoneNumber)
	set("manager", attrs.Manager)
	set("homedirectory", attrs.HomeDirectory)
	set("userpassword", attrs.Password)
	if attrs.GIDNumber != nil {
		opts["gidnumber"] = *attrs.GIDNumber
	}
	if attrs.NoPrivate {
		opts["noprivate"] = true
	}
	return opts
}

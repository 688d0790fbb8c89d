package types_test

import (
	"testing"

	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

func TestUserID_Validate(t *testing.T) {
	tests := []struct {
		name    string
		id      types.UserID
		wantErr bool
	}{
		{"valid", "jane.doe", false},
		{"valid with digits", "jane.doe2", false},
		{"empty", "", true},
		{"no dot", "janedoe", true},
		{"uppercase", "Jane.Doe", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.id.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewUserID(t *testing.T) {
	if got := types.NewUserID("  Jane.Doe \n"); got != "jane.doe" {
		t.Errorf("NewUserID() = %q, want %q", got, "jane.doe")
	}
}

func TestEmailDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jane.doe@Corp.Example", "corp.example"},
		{"a@b@partner.example", "partner.example"},
		{"no-at-sign", ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := types.EmailDomain(tt.email); got != tt.want {
				t.Errorf("EmailDomain() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmailLocalPart(t *testing.T) {
	if got := types.EmailLocalPart("jane.doe@corp.example"); got != "jane.doe" {
		t.Errorf("EmailLocalPart() = %q", got)
	}
	if got := types.EmailLocalPart("jane.doe"); got != "jane.doe" {
		t.Errorf("EmailLocalPart() = %q", got)
	}
}

func TestParseUserField(t *testing.T) {
	for _, f := range types.ComparableUserFields() {
		if _, err := types.ParseUserField(f.String()); err != nil {
			t.Errorf("ParseUserField(%q) error = %v", f, err)
		}
	}
	if _, err := types.ParseUserField("shoe_size"); err == nil {
		t.Error("ParseUserField() expected error for unknown field")
	}
}

func TestComparableUserFields(t *testing.T) {
	for _, f := range types.ComparableUserFields() {
		if f == types.UserFieldAlias || f == types.UserFieldMemberOf {
			t.Errorf("multi-valued field %q must not be comparable", f)
		}
	}
}

func TestParseCacheKind(t *testing.T) {
	for _, k := range types.AllCacheKinds() {
		got, err := types.ParseCacheKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseCacheKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := types.ParseCacheKind("users"); err == nil {
		t.Error("ParseCacheKind() expected error for unknown kind")
	}

	for _, k := range types.TimeBoundedCacheKinds() {
		if !k.TimeBounded() {
			t.Errorf("%q should be time bounded", k)
		}
	}
	if types.CacheKindDisabledLedger.TimeBounded() || types.CacheKindNotificationHistory.TimeBounded() {
		t.Error("history and ledger must not expire by age")
	}
}

func TestOutcome_OK(t *testing.T) {
	tests := []struct {
		outcome types.Outcome
		want    bool
	}{
		{types.OutcomeSuccess, true},
		{types.OutcomeUnchanged, false},
		{types.OutcomeRejected, false},
		{types.OutcomeFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			if got := tt.outcome.OK(); got != tt.want {
				t.Errorf("OK() = %v, want %v", got, tt.want)
			}
		})
	}
}

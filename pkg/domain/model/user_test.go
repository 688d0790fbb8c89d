package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

func TestUserRecord_GetSet(t *testing.T) {
	user := model.NewUserRecord()
	for _, field := range types.ComparableUserFields() {
		user.Set(field, "value of "+field.String())
	}
	for _, field := range types.ComparableUserFields() {
		gt.Value(t, user.Get(field)).Equal("value of " + field.String())
	}

	user.Set(types.UserFieldAlias, "ignored")
	gt.Array(t, user.Alias).Length(0)

	user.Alias = []string{"jdoe", "jdoe1"}
	gt.Value(t, user.Get(types.UserFieldAlias)).Equal("jdoe,jdoe1")
	gt.Value(t, user.PrimaryAlias()).Equal("jdoe")
}

func TestUserRecord_Clone(t *testing.T) {
	user := &model.UserRecord{Email: "jane.doe@corp.example", MemberOf: []string{"engineering"}}
	clone := user.Clone()
	clone.MemberOf[0] = "sales"

	gt.Value(t, user.MemberOf).Equal([]string{"engineering"})
	gt.Value(t, clone.Alias).Equal([]string{})

	var nilUser *model.UserRecord
	gt.Bool(t, nilUser.Clone() == nil).True()
}

func TestUserRecord_PasswordNeverChanged(t *testing.T) {
	set := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	temporary := &model.UserRecord{PasswordExpiration: set, PasswordLastChanged: set}
	gt.Bool(t, temporary.PasswordNeverChanged()).True()

	changed := &model.UserRecord{PasswordExpiration: set.AddDate(1, 0, 0), PasswordLastChanged: set}
	gt.Bool(t, changed.PasswordNeverChanged()).False()
}

func TestUserRecord_Mailbox(t *testing.T) {
	gt.Value(t, (&model.UserRecord{FullName: "Jane Doe", Email: "jane.doe@corp.example"}).Mailbox()).
		Equal("Jane Doe <jane.doe@corp.example>")
	gt.Value(t, (&model.UserRecord{Email: "jane.doe@corp.example"}).Mailbox()).
		Equal("jane.doe@corp.example")
}

func TestUserSnapshot(t *testing.T) {
	snapshot := model.UserSnapshot{
		"john.roe": model.NewUserRecord(),
		"jane.doe": model.NewUserRecord(),
	}

	gt.Value(t, snapshot.IDs()).Equal([]types.UserID{"jane.doe", "john.roe"})
	gt.Bool(t, snapshot.Has("jane.doe")).True()
	gt.Bool(t, snapshot.Has("max.mustermann")).False()

	clone := snapshot.Clone()
	clone["jane.doe"].Email = "changed@corp.example"
	gt.Value(t, snapshot["jane.doe"].Email).Equal("")
}

func TestUserDiff_Fields(t *testing.T) {
	diff := model.UserDiff{
		types.UserFieldManager:  "john.roe",
		types.UserFieldEmail:    "jane.doe@corp.example",
		types.UserFieldJobTitle: "CTO",
	}
	gt.Value(t, diff.Fields()).Equal([]types.UserField{
		types.UserFieldEmail,
		types.UserFieldJobTitle,
		types.UserFieldManager,
	})
}

package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/ipasync/pkg/domain/model"
	"github.com/secmon-lab/ipasync/pkg/domain/types"
)

func TestPasswordPolicy_Classify(t *testing.T) {
	policy := model.PasswordPolicy{GraciousPeriod: 6, NotificationDays: []int{359}}

	tests := []struct {
		delta int
		want  types.PasswordState
	}{
		{400, types.PasswordStateActive},
		{360, types.PasswordStateActive},
		{359, types.PasswordStateExpiring},
		{0, types.PasswordStateExpiring},
		{-1, types.PasswordStateExpiredWithinGrace},
		{-6, types.PasswordStateExpiredWithinGrace},
		{-7, types.PasswordStateExpiredBeyondGrace},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			gt.Value(t, policy.Classify(tt.delta)).Equal(tt.want)
		})
	}
}

func TestPasswordPolicy_ShouldNotify(t *testing.T) {
	policy := model.PasswordPolicy{GraciousPeriod: 6, NotificationDays: []int{14, 359}}

	gt.Value(t, policy.TriggerDay()).Equal(359)
	gt.Bool(t, policy.ShouldNotify(359, nil)).True()
	gt.Bool(t, policy.ShouldNotify(359, []int{359})).False()
	gt.Bool(t, policy.ShouldNotify(14, nil)).False()
	gt.Bool(t, policy.ShouldNotify(400, nil)).False()
	gt.Bool(t, policy.ShouldNotify(-1, nil)).False()
}

func TestPasswordPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  model.PasswordPolicy
		wantErr bool
	}{
		{"valid", model.PasswordPolicy{GraciousPeriod: 6, NotificationDays: []int{359}}, false},
		{"zero gracious period", model.PasswordPolicy{GraciousPeriod: 0, NotificationDays: []int{7}}, false},
		{"negative gracious period", model.PasswordPolicy{GraciousPeriod: -1, NotificationDays: []int{359}}, true},
		{"no notification days", model.PasswordPolicy{GraciousPeriod: 6}, true},
		{"negative notification day", model.PasswordPolicy{GraciousPeriod: 6, NotificationDays: []int{-3}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				gt.Value(t, err).NotNil()
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

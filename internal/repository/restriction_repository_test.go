package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
)

func TestDecodeRuleRollingWindow(t *testing.T) {
	raw := []byte(`{"restriction_type":"rolling_window_limit","window_size":6,"max_bookings":3}`)

	rule, err := decodeRule(model.RestrictionTypeUsageLimit, raw)
	require.NoError(t, err)
	require.NotNil(t, rule.RollingWindow)
	require.Equal(t, 6, rule.RollingWindow.WindowSize)
	require.Equal(t, 3, rule.RollingWindow.MaxBookings)
	require.Nil(t, rule.Year)
	require.Nil(t, rule.EmailPattern)
}

func TestDecodeRuleRejectsLegacyCooldownFormat(t *testing.T) {
	// Исторический формат "max_usages + cooldown" должен быть мигрирован,
	// движок допуска его не принимает
	raw := []byte(`{"max_usages":3,"cooldown_period_slots":6,"cooldown_usages":1}`)

	_, err := decodeRule(model.RestrictionTypeUsageLimit, raw)
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindConfiguration))
}

func TestDecodeRuleRejectsMalformedPayload(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{broken`},
		{"missing bounds", `{"restriction_type":"rolling_window_limit"}`},
		{"zero window", `{"restriction_type":"rolling_window_limit","window_size":0,"max_bookings":3}`},
		{"negative limit", `{"restriction_type":"rolling_window_limit","window_size":6,"max_bookings":-1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeRule(model.RestrictionTypeUsageLimit, []byte(tc.raw))
			require.Error(t, err)
			require.True(t, apperr.IsKind(err, apperr.KindConfiguration))
		})
	}
}

func TestDecodeRuleYearLimit(t *testing.T) {
	raw := []byte(`{"target_year":110,"operator":"gte"}`)

	rule, err := decodeRule(model.RestrictionTypeYearLimit, raw)
	require.NoError(t, err)
	require.NotNil(t, rule.Year)
	require.Equal(t, 110, rule.Year.TargetYear)
	require.Equal(t, "gte", rule.Year.Operator)

	_, err = decodeRule(model.RestrictionTypeYearLimit, []byte(`{"target_year":110,"operator":"between"}`))
	require.Error(t, err)
}

func TestDecodeRuleEmailPattern(t *testing.T) {
	rule, err := decodeRule(model.RestrictionTypeEmailPattern, []byte(`{"pattern":"113*"}`))
	require.NoError(t, err)
	require.Equal(t, "113*", rule.EmailPattern.Pattern)

	_, err = decodeRule(model.RestrictionTypeEmailPattern, []byte(`{}`))
	require.Error(t, err)
}

func TestDecodeRuleUnknownType(t *testing.T) {
	_, err := decodeRule(model.RestrictionType("weekday_limit"), []byte(`{}`))
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindConfiguration))
}

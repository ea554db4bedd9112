package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/makerlab/booking-api/internal/model"
)

func TestParseEmailYear(t *testing.T) {
	year, ok := parseEmailYear("113520001@school.edu")
	require.True(t, ok)
	require.Equal(t, 113, year)

	_, ok = parseEmailYear("alice@example.com")
	require.False(t, ok)

	_, ok = parseEmailYear("a@")
	require.False(t, ok)
}

func TestYearRuleDenies(t *testing.T) {
	cases := []struct {
		operator string
		target   int
		year     int
		denied   bool
	}{
		{"gt", 110, 111, true},
		{"gt", 110, 110, false},
		{"gte", 110, 110, true},
		{"lt", 110, 109, true},
		{"lt", 110, 110, false},
		{"lte", 110, 110, true},
		{"eq", 110, 110, true},
		{"eq", 110, 111, false},
		{"unknown", 110, 110, false},
	}

	for _, tc := range cases {
		rule := &model.YearRule{TargetYear: tc.target, Operator: tc.operator}
		require.Equalf(t, tc.denied, yearRuleDenies(rule, tc.year),
			"operator=%s target=%d year=%d", tc.operator, tc.target, tc.year)
	}
}

func TestEmailMatchesPattern(t *testing.T) {
	require.True(t, emailMatchesPattern("*@school.edu", "113520001@school.edu"))
	require.True(t, emailMatchesPattern("113*", "113520001@school.edu"))
	require.False(t, emailMatchesPattern("114*", "113520001@school.edu"))
	// Точки в маске не трактуются как регулярное выражение
	require.False(t, emailMatchesPattern("*@school.edu", "someone@schoolxedu"))
}

func TestRuleDeniesSkipsUsersWithoutYear(t *testing.T) {
	restriction := &model.MachineRestriction{
		Rule: &model.RestrictionRule{
			Year: &model.YearRule{TargetYear: 110, Operator: "gte"},
		},
	}

	// Email без годового префикса правило года не трогает
	_, denied := ruleDenies(restriction, "staff@school.edu")
	require.False(t, denied)

	reason, denied := ruleDenies(restriction, "113520001@school.edu")
	require.True(t, denied)
	require.NotEmpty(t, reason)
}

func TestRuleDeniesPrefersDescription(t *testing.T) {
	restriction := &model.MachineRestriction{
		Description: "freshmen only",
		Rule: &model.RestrictionRule{
			Year: &model.YearRule{TargetYear: 110, Operator: "lt"},
		},
	}

	reason, denied := ruleDenies(restriction, "109520001@school.edu")
	require.True(t, denied)
	require.Equal(t, "freshmen only", reason)
}

package resolve

import (
	"testing"

	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPriorityLabel(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"UTI", "Utility"},
		{"Utility first", "Utility"},
		{" utility ", "Utility"},
		{"SOL", "Solar"},
		{"Solar First", "Solar"},
		{"SBU", "SBU"},
		{"sbu first", "SBU"},
		{"SUB", "SUB"},
		{"SUF", "SUF"},
		// Unknown codes pass through upper-cased.
		{"weird", "WEIRD"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, OutputPriorityLabel(jsontree.String(tc.raw)), "raw=%q", tc.raw)
	}

	assert.Equal(t, "", OutputPriorityLabel(jsontree.Null()))
	assert.Equal(t, "3", OutputPriorityLabel(jsontree.Number(3)))
}

func TestChargePriorityNumericCodes(t *testing.T) {
	for raw, want := range map[string]string{
		"0": "Utility First",
		"1": "PV First",
		"2": "PV Is At The Same Level As Utility",
		"3": "PV Is At The Same Level As Utility",
	} {
		s := snap(`{"device_extra": {"ctrl_values": {"bt_eybond_ctrl_14": "` + raw + `"}}}`)
		label, ok := ChargePriority(s)
		require.True(t, ok)
		assert.Equal(t, want, label)
	}
}

func TestChargePriorityLegacySpellings(t *testing.T) {
	cases := map[string]string{
		"Solar priority":  "PV First",
		"Solar and mains": "PV Is At The Same Level As Utility",
		"Solar only":      "Only PV",
		"Utility first":   "Utility First",
		"N/A":             "None",
	}
	for raw, want := range cases {
		s := snap(`{"last_data": {"pars": [
			{"id": "cs_charger_source_priority", "val": "` + raw + `"}
		]}}`)
		label, ok := ChargePriority(s)
		require.True(t, ok)
		assert.Equal(t, want, label, "raw=%q", raw)
	}
}

func TestChargePriorityUnknownPassesThrough(t *testing.T) {
	s := snap(`{"last_data": {"pars": [
		{"id": "cs_charger_source_priority", "val": " Custom Mode "}
	]}}`)
	label, ok := ChargePriority(s)
	require.True(t, ok)
	assert.Equal(t, "Custom Mode", label)
}

func TestChargePriorityUnresolved(t *testing.T) {
	s := snap(`{"last_data": {"pars": []}}`)
	_, ok := ChargePriority(s)
	assert.False(t, ok)
}

package resolve

import (
	"strings"

	"github.com/solarmon/go-dess/internal/jsontree"
)

// outputPriorityLabels maps the short and long vendor spellings of the
// output-source priority to a closed set of canonical labels.
var outputPriorityLabels = map[string]string{
	"UTILITY FIRST": "Utility",
	"UTILITY":       "Utility",
	"UTI":           "Utility",
	"SOLAR FIRST":   "Solar",
	"SOLAR":         "Solar",
	"SOL":           "Solar",
	"SBU FIRST":     "SBU",
	"SBU":           "SBU",
	"SUB":           "SUB",
	"SUF":           "SUF",
}

// OutputPriorityLabel canonicalizes a raw output-priority code. The input
// is trimmed and upper-cased; unrecognized codes pass through upper-cased.
// Null input returns the empty string.
func OutputPriorityLabel(v jsontree.Value) string {
	if v.IsNull() {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(v.Text()))
	if label, ok := outputPriorityLabels[s]; ok {
		return label
	}
	return s
}

// chargePriorityNumeric maps the numeric charger-source codes used by the
// newer firmware; it is consulted before the string table.
var chargePriorityNumeric = map[string]string{
	"0": "Utility First",
	"1": "PV First",
	"2": "PV Is At The Same Level As Utility",
	"3": "PV Is At The Same Level As Utility",
}

var chargePriorityLabels = map[string]string{
	// Legacy format (devcode 2341)
	"solar priority":  "PV First",
	"solar and mains": "PV Is At The Same Level As Utility",
	"solar only":      "Only PV",
	// New format (devcode 2376 and similar)
	"utility first": "Utility First",
	"pv first":      "PV First",
	"pv is at the same level as utility": "PV Is At The Same Level As Utility",
	"pv is at the same level as mains":   "PV Is At The Same Level As Utility",
	"only pv": "Only PV",
	"n/a":     "None",
}

// ChargePriority resolves and canonicalizes the charger-source priority.
// Numeric codes are tried first, then the per-firmware string spellings;
// unrecognized values pass through trimmed but otherwise unchanged.
func ChargePriority(snap jsontree.Value) (string, bool) {
	raw, ok := Sensor("charge_priority", snap)
	if !ok || raw.IsNull() {
		return "", false
	}
	s := strings.TrimSpace(raw.Text())
	if label, ok := chargePriorityNumeric[s]; ok {
		return label, true
	}
	if label, ok := chargePriorityLabels[strings.ToLower(s)]; ok {
		return label, true
	}
	return s, true
}

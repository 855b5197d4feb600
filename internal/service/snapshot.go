// Package service provides implementation of the core monitoring service.
package service

import (
	"sort"

	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/solarmon/go-dess/internal/resolve"
)

// outputPriorityCondition matches the telemetry entry that carries the
// output-source priority: newer firmware labels it by par, older by id.
var outputPriorityCondition = jsontree.Condition{
	jsontree.Clause{"par": jsontree.String("Output priority")},
	jsontree.Clause{"id": jsontree.String("sy_eybond_read_49")},
}

// ExtractOutputPriority pulls the canonical output-priority label out of a
// telemetry document. The search is limited to the pars groups; an entry
// with a null val yields no label.
func ExtractOutputPriority(lastData jsontree.Value) (string, bool) {
	entry, ok := jsontree.Find(lastData, outputPriorityCondition, jsontree.Options{RootKeys: []string{"pars"}})
	if !ok {
		return "", false
	}
	val, ok := entry.Get("val")
	if !ok || val.IsNull() {
		return "", false
	}
	return resolve.OutputPriorityLabel(val), true
}

// BuildSnapshot assembles the device snapshot consumed by the resolvers:
// the telemetry document, the energy-flow document and the device_extra
// side-channel with the precomputed output priority and the control-value
// cache. The result is a plain value tree; resolution never mutates it.
func BuildSnapshot(lastData, energyFlow jsontree.Value, outputPriority string, ctrlValues map[string]string) jsontree.Value {
	cacheMembers := make([]jsontree.Member, 0, len(ctrlValues))
	for _, alias := range sortedKeys(ctrlValues) {
		cacheMembers = append(cacheMembers, jsontree.Field(alias, jsontree.String(ctrlValues[alias])))
	}

	priority := jsontree.Null()
	if outputPriority != "" {
		priority = jsontree.String(outputPriority)
	}

	return jsontree.Object(
		jsontree.Field("last_data", lastData),
		jsontree.Field("energy_flow", energyFlow),
		jsontree.Field("device_extra", jsontree.Object(
			jsontree.Field("output_priority", priority),
			jsontree.Field("ctrl_values", jsontree.Object(cacheMembers...)),
		)),
	)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

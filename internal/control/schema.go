// Package control implements the control-channel orchestration: locating
// control parameters inside a device's live control-field schema and
// reading/writing the output-source priority through the cloud
// collaborators, with hand-maintained per-model fallback tables.
package control

import (
	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/solarmon/go-dess/internal/resolve"
)

var ciOpts = jsontree.Options{CaseInsensitive: true}

// ResolveFieldID locates the control-parameter identifier for a logical
// control name inside a control-field schema. The same alias table that
// drives telemetry lookup is used here: for each alias, in order, the
// schema is searched on its id, name and par fields; the first descriptor
// carrying a non-null id wins. Returns "" when nothing matches.
func ResolveFieldID(schema jsontree.Value, logicalName string) string {
	for _, alias := range resolve.Aliases(logicalName) {
		for _, field := range [...]string{"id", "name", "par"} {
			entry, ok := jsontree.Find(schema, jsontree.Where(field, jsontree.String(alias)), ciOpts)
			if !ok {
				continue
			}
			if id, ok := entry.Get("id"); ok && !id.IsNull() {
				return id.Text()
			}
		}
	}
	return ""
}

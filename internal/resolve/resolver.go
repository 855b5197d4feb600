package resolve

import (
	"github.com/solarmon/go-dess/internal/jsontree"
)

// Entry is the extended resolution result: the vendor field key that
// matched, the raw value, and the unit string if the entry carried one.
type Entry struct {
	Key  string
	Raw  jsontree.Value
	Unit string
}

var ciOpts = jsontree.Options{CaseInsensitive: true}

// Sensor resolves a canonical sensor name against a device snapshot and
// returns the raw value. For each alias, in table order, three sources are
// tried before moving on: a telemetry entry keyed by id, a telemetry entry
// keyed by par (honoring its status validity flag), and finally the
// control-value cache under device_extra.ctrl_values. An id match always
// outranks a par match, which outranks the cache, for the same alias.
func Sensor(name string, snap jsontree.Value) (jsontree.Value, bool) {
	cache := ctrlValueCache(snap)

	for _, alias := range Aliases(name) {
		if entry, ok := jsontree.Find(snap, jsontree.Where("id", jsontree.String(alias)), ciOpts); ok {
			if val, ok := entry.Get("val"); ok && !val.IsNull() {
				return val, true
			}
		}
		if entry, ok := jsontree.Find(snap, jsontree.Where("par", jsontree.String(alias)), ciOpts); ok {
			if statusValid(entry) {
				if val, ok := entry.Get("val"); ok && !val.IsNull() {
					return val, true
				}
			}
		}
		// Some values are only available via the control-value channel.
		if cached, ok := cache.Get(alias); ok && !cached.IsNull() {
			return jsontree.String(cached.Text()), true
		}
	}
	return jsontree.Value{}, false
}

// SensorEntry resolves a canonical sensor name and additionally reports
// which field key matched and the unit of the entry. Unlike Sensor, the
// control-value cache is not consulted: cache values carry no unit and no
// field identity.
func SensorEntry(name string, snap jsontree.Value) (Entry, bool) {
	for _, alias := range Aliases(name) {
		if entry, ok := jsontree.Find(snap, jsontree.Where("id", jsontree.String(alias)), ciOpts); ok {
			if val, ok := entry.Get("val"); ok && !val.IsNull() {
				return makeEntry(entry, "id", val), true
			}
		}
		if entry, ok := jsontree.Find(snap, jsontree.Where("par", jsontree.String(alias)), ciOpts); ok {
			if !statusValid(entry) {
				continue
			}
			if val, ok := entry.Get("val"); ok && !val.IsNull() {
				return makeEntry(entry, "par", val), true
			}
		}
	}
	return Entry{}, false
}

func makeEntry(node jsontree.Value, keyField string, val jsontree.Value) Entry {
	e := Entry{Raw: val}
	if key, ok := node.Get(keyField); ok {
		e.Key = key.Text()
	}
	if unit, ok := node.Get("unit"); ok && !unit.IsNull() {
		e.Unit = unit.Text()
	}
	return e
}

// statusValid interprets the par-entry status field: numeric zero (or false)
// means the reading is currently invalid; anything else, including an absent
// status, means valid.
func statusValid(entry jsontree.Value) bool {
	status, ok := entry.Get("status")
	if !ok {
		return true
	}
	switch status.Kind() {
	case jsontree.KindNumber:
		f, _ := status.Float64()
		return f != 0
	case jsontree.KindBool:
		b, _ := status.BoolVal()
		return b
	default:
		return true
	}
}

func ctrlValueCache(snap jsontree.Value) jsontree.Value {
	extra, ok := snap.Get("device_extra")
	if !ok {
		return jsontree.Null()
	}
	cache, ok := extra.Get("ctrl_values")
	if !ok {
		return jsontree.Null()
	}
	return cache
}

// Package resolve maps vendor-specific telemetry fields to canonical sensor
// values. The alias table drives both telemetry lookup and control-schema
// lookup: for each canonical sensor name it lists the vendor field keys that
// may carry the value, in priority order.
package resolve

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed keys/sensor_keys.json
var embeddedKeys embed.FS

// sensorKeys is loaded once at init and never mutated afterwards.
var sensorKeys map[string][]string

func init() {
	data, err := embeddedKeys.ReadFile("keys/sensor_keys.json")
	if err != nil {
		panic(fmt.Sprintf("resolve: missing embedded sensor keys: %v", err))
	}
	if err := json.Unmarshal(data, &sensorKeys); err != nil {
		panic(fmt.Sprintf("resolve: invalid embedded sensor keys: %v", err))
	}
}

// Aliases returns the ordered alias list for a canonical sensor name. The
// first alias that yields a usable value wins; unknown names return nil.
func Aliases(name string) []string {
	return sensorKeys[name]
}

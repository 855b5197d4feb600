package resolve

import (
	"strconv"
	"strings"

	"github.com/solarmon/go-dess/internal/jsontree"
)

// Float coerces a raw sensor value to a float64. Strings are trimmed and
// parsed; booleans map to 0/1; anything unparseable, null or absent yields
// the supplied default. It never fails.
func Float(v jsontree.Value, def float64) float64 {
	switch v.Kind() {
	case jsontree.KindNumber:
		f, _ := v.Float64()
		return f
	case jsontree.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64)
		if err != nil {
			return def
		}
		return f
	case jsontree.KindBool:
		if b, _ := v.BoolVal(); b {
			return 1
		}
		return 0
	default:
		return def
	}
}

func sensorFloat(name string, snap jsontree.Value) float64 {
	v, _ := Sensor(name, snap)
	return Float(v, 0)
}

// kiloUnit is the unit string that triggers a ×1000 scale on power entries.
const kiloUnit = "kW"

func entryWatts(e Entry) float64 {
	v := Float(e.Raw, 0)
	if e.Unit == kiloUnit {
		v *= 1000
	}
	return v
}

// BatteryChargingCurrent returns the charging current clamped to >= 0.
func BatteryChargingCurrent(snap jsontree.Value) float64 {
	v := sensorFloat("battery_charging_current", snap)
	if v < 0 {
		return 0
	}
	return v
}

// BatteryChargingVoltage returns the charging-stage battery voltage.
func BatteryChargingVoltage(snap jsontree.Value) float64 {
	return sensorFloat("battery_charging_voltage", snap)
}

// BatteryVoltage returns the generic battery voltage.
func BatteryVoltage(snap jsontree.Value) float64 {
	return sensorFloat("battery_voltage", snap)
}

// negativeOnlyDischargeKeys lists the field keys whose discharge reading is
// a signed battery current: only its negative half is discharge, the
// positive half is charging and must read as 0 here.
var negativeOnlyDischargeKeys = map[string]bool{
	"bt_eybond_read_29": true,
	"Battery Current":   true,
}

// BatteryDischargeCurrent returns the discharge current. For the signed
// battery-current fields a negative raw value returns its magnitude and a
// non-negative one returns 0; every other resolved field passes through
// with its raw sign. Unresolved yields 0.
func BatteryDischargeCurrent(snap jsontree.Value) float64 {
	entry, ok := SensorEntry("battery_discharge_current", snap)
	if !ok {
		return 0
	}
	value := Float(entry.Raw, 0)
	if negativeOnlyDischargeKeys[entry.Key] {
		if value < 0 {
			return -value
		}
		return 0
	}
	return value
}

// BatteryChargingPower returns the charging power in watts. A direct
// battery active-power reading is split by sign; without one the value is
// computed as charging current times the charging voltage, falling back to
// the generic battery voltage when the former reads 0.
func BatteryChargingPower(snap jsontree.Value) float64 {
	if entry, ok := SensorEntry("battery_active_power", snap); ok {
		v := entryWatts(entry)
		if v > 0 {
			return v
		}
		return 0
	}
	voltage := BatteryChargingVoltage(snap)
	if voltage == 0 {
		voltage = BatteryVoltage(snap)
	}
	return BatteryChargingCurrent(snap) * voltage
}

// BatteryDischargePower returns the discharge power in watts, split from a
// direct active-power reading when present, else discharge current times
// battery voltage.
func BatteryDischargePower(snap jsontree.Value) float64 {
	if entry, ok := SensorEntry("battery_active_power", snap); ok {
		v := entryWatts(entry)
		if v < 0 {
			return -v
		}
		return 0
	}
	return BatteryDischargeCurrent(snap) * BatteryVoltage(snap)
}

// ActiveLoadPower returns the load power in watts. The source sensor is
// documented in kilowatts, so the value is scaled unconditionally, with no
// unit-field check.
func ActiveLoadPower(snap jsontree.Value) float64 {
	return sensorFloat("active_load_power", snap) * 1000
}

// ActiveLoadPercentage returns the output load percentage.
func ActiveLoadPercentage(snap jsontree.Value) float64 {
	return sensorFloat("active_load_percentage", snap)
}

// GridInPower returns the grid input power.
func GridInPower(snap jsontree.Value) float64 {
	return sensorFloat("grid_in_power", snap)
}

// BatteryCapacity returns the battery state of charge.
func BatteryCapacity(snap jsontree.Value) float64 {
	return sensorFloat("battery_capacity", snap)
}

// GridFrequency returns the raw grid frequency reading.
func GridFrequency(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("grid_frequency", snap)
	return v
}

func pvPower(name string, snap jsontree.Value) (float64, bool) {
	entry, ok := SensorEntry(name, snap)
	if !ok {
		return 0, false
	}
	return entryWatts(entry), true
}

// PVPower returns the PV input power in watts; absent when the snapshot
// carries no PV entry.
func PVPower(snap jsontree.Value) (float64, bool) {
	return pvPower("pv_power", snap)
}

// PV2Power returns the second PV string's input power in watts.
func PV2Power(snap jsontree.Value) (float64, bool) {
	return pvPower("pv2_power", snap)
}

// PVVoltage returns the raw PV input voltage.
func PVVoltage(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("pv_voltage", snap)
	return v
}

// PV2Voltage returns the raw second PV string voltage.
func PV2Voltage(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("pv2_voltage", snap)
	return v
}

// GridInputVoltage returns the raw grid-side input voltage.
func GridInputVoltage(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("grid_input_voltage", snap)
	return v
}

// GridOutputVoltage returns the raw inverter output voltage.
func GridOutputVoltage(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("grid_output_voltage", snap)
	return v
}

// DCModuleTemperature returns the raw DC module temperature.
func DCModuleTemperature(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("dc_module_temperature", snap)
	return v
}

// InvTemperature returns the raw inverter module temperature.
func InvTemperature(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("inv_temperature", snap)
	return v
}

// BTUtilityCharge returns the configured utility charging current.
func BTUtilityCharge(snap jsontree.Value) float64 {
	return sensorFloat("bt_utility_charge", snap)
}

// BTTotalChargeCurrent returns the configured total charging current.
func BTTotalChargeCurrent(snap jsontree.Value) float64 {
	return sensorFloat("bt_total_charge_current", snap)
}

// BTCutoffVoltage returns the configured battery cut-off voltage.
func BTCutoffVoltage(snap jsontree.Value) float64 {
	return sensorFloat("bt_cutoff_voltage", snap)
}

// BTComebackUtilityVoltage returns the back-to-utility threshold voltage.
func BTComebackUtilityVoltage(snap jsontree.Value) float64 {
	return sensorFloat("bt_comeback_utility_voltage", snap)
}

// BTComebackBatteryVoltage returns the back-to-battery threshold voltage.
func BTComebackBatteryVoltage(snap jsontree.Value) float64 {
	return sensorFloat("bt_comeback_battery_voltage", snap)
}

// SYNominalOutPower returns the raw rated output power.
func SYNominalOutPower(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("sy_nominal_out_power", snap)
	return v
}

// SYRatedBatteryVoltage returns the raw rated battery voltage.
func SYRatedBatteryVoltage(snap jsontree.Value) jsontree.Value {
	v, _ := Sensor("sy_rated_battery_voltage", snap)
	return v
}

// OutputPriority returns the snapshot's precomputed output priority from
// device_extra; it is filled in by the collector while assembling the
// snapshot.
func OutputPriority(snap jsontree.Value) (string, bool) {
	extra, ok := snap.Get("device_extra")
	if !ok {
		return "", false
	}
	v, ok := extra.Get("output_priority")
	if !ok || v.IsNull() {
		return "", false
	}
	return v.Text(), true
}

package resolve

import (
	"time"

	"github.com/solarmon/go-dess/internal/domain"
	"github.com/solarmon/go-dess/internal/jsontree"
)

// Readings runs every domain normalizer against a snapshot and assembles
// the canonical readings document published over MQTT and the HTTP API.
func Readings(snap jsontree.Value) *domain.Readings {
	r := &domain.Readings{
		Timestamp: time.Now(),

		BatteryVoltage:          BatteryVoltage(snap),
		BatteryCapacity:         BatteryCapacity(snap),
		BatteryChargingCurrent:  BatteryChargingCurrent(snap),
		BatteryChargingVoltage:  BatteryChargingVoltage(snap),
		BatteryDischargeCurrent: BatteryDischargeCurrent(snap),
		BatteryChargingPower:    BatteryChargingPower(snap),
		BatteryDischargePower:   BatteryDischargePower(snap),

		ActiveLoadPower:      ActiveLoadPower(snap),
		ActiveLoadPercentage: ActiveLoadPercentage(snap),

		GridInPower:       GridInPower(snap),
		GridFrequency:     Float(GridFrequency(snap), 0),
		GridInputVoltage:  Float(GridInputVoltage(snap), 0),
		GridOutputVoltage: Float(GridOutputVoltage(snap), 0),

		PVVoltage:  Float(PVVoltage(snap), 0),
		PV2Voltage: Float(PV2Voltage(snap), 0),

		DCModuleTemperature: Float(DCModuleTemperature(snap), 0),
		InvTemperature:      Float(InvTemperature(snap), 0),

		BTUtilityCharge:          BTUtilityCharge(snap),
		BTTotalChargeCurrent:     BTTotalChargeCurrent(snap),
		BTCutoffVoltage:          BTCutoffVoltage(snap),
		BTComebackUtilityVoltage: BTComebackUtilityVoltage(snap),
		BTComebackBatteryVoltage: BTComebackBatteryVoltage(snap),
		SYNominalOutPower:        SYNominalOutPower(snap).Text(),
		SYRatedBatteryVoltage:    SYRatedBatteryVoltage(snap).Text(),
	}

	if v, ok := PVPower(snap); ok {
		r.PVPower = &v
	}
	if v, ok := PV2Power(snap); ok {
		r.PV2Power = &v
	}
	if label, ok := OutputPriority(snap); ok {
		r.OutputPriority = label
	}
	if label, ok := ChargePriority(snap); ok {
		r.ChargePriority = label
	}

	return r
}

// Package domain provides core domain models and interfaces for the go-dess application.
package domain

import (
	"context"
	"time"

	"github.com/solarmon/go-dess/internal/jsontree"
)

// Device identifies one monitored inverter on the vendor cloud. Devcode is
// the numeric model code; it selects per-model control fallback tables.
type Device struct {
	PN      string `json:"pn"`
	SN      string `json:"sn"`
	Devcode int    `json:"devcode"`
	Devaddr int    `json:"devaddr"`
	Alias   string `json:"alias,omitempty"`
}

// Readings holds the canonical, unit- and sign-consistent sensor values
// derived from one device snapshot. Power values are watts, voltages volts,
// currents amperes.
type Readings struct {
	Timestamp time.Time `json:"timestamp"`

	BatteryVoltage          float64 `json:"battery_voltage"`
	BatteryCapacity         float64 `json:"battery_capacity"`
	BatteryChargingCurrent  float64 `json:"battery_charging_current"`
	BatteryChargingVoltage  float64 `json:"battery_charging_voltage"`
	BatteryDischargeCurrent float64 `json:"battery_discharge_current"`
	BatteryChargingPower    float64 `json:"battery_charging_power"`
	BatteryDischargePower   float64 `json:"battery_discharge_power"`

	ActiveLoadPower      float64 `json:"active_load_power"`
	ActiveLoadPercentage float64 `json:"active_load_percentage"`

	GridInPower       float64 `json:"grid_in_power"`
	GridFrequency     float64 `json:"grid_frequency"`
	GridInputVoltage  float64 `json:"grid_input_voltage"`
	GridOutputVoltage float64 `json:"grid_output_voltage"`

	PVPower    *float64 `json:"pv_power,omitempty"`
	PV2Power   *float64 `json:"pv2_power,omitempty"`
	PVVoltage  float64  `json:"pv_voltage"`
	PV2Voltage float64  `json:"pv2_voltage"`

	DCModuleTemperature float64 `json:"dc_module_temperature"`
	InvTemperature      float64 `json:"inv_temperature"`

	OutputPriority string `json:"output_priority,omitempty"`
	ChargePriority string `json:"charge_priority,omitempty"`

	// Configuration-class values, typically served by the control channel.
	BTUtilityCharge          float64 `json:"bt_utility_charge"`
	BTTotalChargeCurrent     float64 `json:"bt_total_charge_current"`
	BTCutoffVoltage          float64 `json:"bt_cutoff_voltage"`
	BTComebackUtilityVoltage float64 `json:"bt_comeback_utility_voltage"`
	BTComebackBatteryVoltage float64 `json:"bt_comeback_battery_voltage"`
	SYNominalOutPower        string  `json:"sy_nominal_out_power,omitempty"`
	SYRatedBatteryVoltage    string  `json:"sy_rated_battery_voltage,omitempty"`
}

// CtrlResult is the outcome of a control write. NoOp is set when no
// applicable mapping existed and no collaborator call was made.
type CtrlResult struct {
	ParamID  string         `json:"param_id,omitempty"`
	Value    string         `json:"value,omitempty"`
	NoOp     bool           `json:"noop"`
	Response jsontree.Value `json:"response,omitempty"`
}

// CtrlValue is the decoded payload of a control read. Val is the current
// encoded value; Raw is the full response document.
type CtrlValue struct {
	Val jsontree.Value
	Raw jsontree.Value
}

// ControlClient is the outbound collaborator contract for the control
// channel. Credentials live inside the implementation; callers pass only
// the device identity.
type ControlClient interface {
	// WriteParam sets a control parameter to an encoded value
	WriteParam(ctx context.Context, dev Device, paramID, value string) (jsontree.Value, error)

	// ReadParam reads the current encoded value of a control parameter
	ReadParam(ctx context.Context, dev Device, paramID string) (CtrlValue, error)

	// SendDirectCommand issues a raw command on the binary side-channel
	// and returns the undecoded response payload
	SendDirectCommand(ctx context.Context, dev Device, commandHex string) (jsontree.Value, error)
}

// SnapshotSource fetches the raw documents a device snapshot is built from.
type SnapshotSource interface {
	// LastData returns the latest telemetry document for the device
	LastData(ctx context.Context, dev Device) (jsontree.Value, error)

	// EnergyFlow returns the energy-flow document for the device
	EnergyFlow(ctx context.Context, dev Device) (jsontree.Value, error)

	// CtrlFields returns the live control-field schema for the device
	CtrlFields(ctx context.Context, dev Device) (jsontree.Value, error)

	// Devices lists the devices visible to the account
	Devices(ctx context.Context) ([]Device, error)
}

// MessagePublisher defines the interface for publishing canonical readings.
type MessagePublisher interface {
	// Connect establishes a connection to the messaging system
	Connect(ctx context.Context) error

	// Publish sends data to the specified topic
	Publish(ctx context.Context, topic string, data interface{}) error

	// Close terminates the connection to the messaging system
	Close() error
}

// Registry keeps track of monitored devices and their latest state.
type Registry interface {
	// RegisterDevice adds or updates a device in the registry
	RegisterDevice(dev Device) error

	// UpdateReadings stores the latest canonical readings for a device
	UpdateReadings(pn string, readings *Readings) error

	// GetDevice retrieves a device and its latest state by PN
	GetDevice(pn string) (*DeviceInfo, bool)

	// GetAllDevices returns all registered devices
	GetAllDevices() []*DeviceInfo
}

// DeviceInfo contains a registered device and its latest observed state.
type DeviceInfo struct {
	Device      Device
	LastContact time.Time
	Readings    *Readings
}

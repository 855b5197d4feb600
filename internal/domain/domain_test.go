package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewDeviceRegistry()

	dev := Device{PN: "P1", SN: "S1", Devcode: 2376, Devaddr: 1, Alias: "Garage"}
	require.NoError(t, registry.RegisterDevice(dev))

	info, found := registry.GetDevice("P1")
	require.True(t, found)
	assert.Equal(t, dev, info.Device)
	assert.WithinDuration(t, time.Now(), info.LastContact, time.Second)
	assert.Nil(t, info.Readings)

	_, found = registry.GetDevice("missing")
	assert.False(t, found)
}

func TestRegistryRejectsEmptyPN(t *testing.T) {
	registry := NewDeviceRegistry()
	err := registry.RegisterDevice(Device{SN: "S1"})
	require.Error(t, err)
}

func TestRegistryReRegisterUpdatesDevice(t *testing.T) {
	registry := NewDeviceRegistry()
	require.NoError(t, registry.RegisterDevice(Device{PN: "P1", Devcode: 2341}))
	require.NoError(t, registry.RegisterDevice(Device{PN: "P1", Devcode: 2376}))

	info, found := registry.GetDevice("P1")
	require.True(t, found)
	assert.Equal(t, 2376, info.Device.Devcode)

	assert.Len(t, registry.GetAllDevices(), 1)
}

func TestRegistryUpdateReadings(t *testing.T) {
	registry := NewDeviceRegistry()
	require.NoError(t, registry.RegisterDevice(Device{PN: "P1"}))

	readings := &Readings{BatteryVoltage: 52.1, OutputPriority: "SBU"}
	require.NoError(t, registry.UpdateReadings("P1", readings))

	info, _ := registry.GetDevice("P1")
	require.NotNil(t, info.Readings)
	assert.Equal(t, 52.1, info.Readings.BatteryVoltage)

	err := registry.UpdateReadings("missing", readings)
	require.Error(t, err)
}

func TestReadingsJSONOmitsAbsentOptionals(t *testing.T) {
	r := &Readings{BatteryVoltage: 48}
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Contains(t, fields, "battery_voltage")
	assert.NotContains(t, fields, "pv_power")
	assert.NotContains(t, fields, "output_priority")

	pv := 650.0
	r.PVPower = &pv
	r.OutputPriority = "SBU"
	raw, err = json.Marshal(r)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, 650.0, fields["pv_power"])
	assert.Equal(t, "SBU", fields["output_priority"])
}

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/solarmon/go-dess/internal/config"
	"github.com/solarmon/go-dess/internal/domain"
	"github.com/solarmon/go-dess/internal/jsontree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves canned documents and implements the control channel so
// the ctrl-value cache refresh path is exercised too.
type fakeSource struct {
	lastData    jsontree.Value
	lastDataErr error
	energyFlow  jsontree.Value
	ctrlValues  map[string]string
	devices     []domain.Device
}

func (f *fakeSource) LastData(_ context.Context, _ domain.Device) (jsontree.Value, error) {
	if f.lastDataErr != nil {
		return jsontree.Null(), f.lastDataErr
	}
	return f.lastData, nil
}

func (f *fakeSource) EnergyFlow(_ context.Context, _ domain.Device) (jsontree.Value, error) {
	return f.energyFlow, nil
}

func (f *fakeSource) CtrlFields(_ context.Context, _ domain.Device) (jsontree.Value, error) {
	return jsontree.Null(), nil
}

func (f *fakeSource) Devices(_ context.Context) ([]domain.Device, error) {
	return f.devices, nil
}

func (f *fakeSource) ReadParam(_ context.Context, _ domain.Device, paramID string) (domain.CtrlValue, error) {
	val, ok := f.ctrlValues[paramID]
	if !ok {
		return domain.CtrlValue{}, errors.New("no such param")
	}
	return domain.CtrlValue{Val: jsontree.String(val)}, nil
}

func (f *fakeSource) WriteParam(_ context.Context, _ domain.Device, _, _ string) (jsontree.Value, error) {
	return jsontree.Null(), nil
}

func (f *fakeSource) SendDirectCommand(_ context.Context, _ domain.Device, _ string) (jsontree.Value, error) {
	return jsontree.Null(), errors.New("not implemented")
}

// capturingPublisher records published messages.
type capturingPublisher struct {
	mutex    sync.Mutex
	messages map[string]interface{}
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{messages: make(map[string]interface{})}
}

func (p *capturingPublisher) Connect(_ context.Context) error { return nil }

func (p *capturingPublisher) Publish(_ context.Context, topic string, data interface{}) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.messages[topic] = data
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) get(topic string) (interface{}, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	data, ok := p.messages[topic]
	return data, ok
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.Enabled = false
	cfg.MQTT.Topic = "energy/test"
	cfg.Devices = []config.DeviceConfig{
		{PN: "P1", SN: "S1", Devcode: 2376, Devaddr: 1},
	}
	return cfg
}

func telemetryFixture() jsontree.Value {
	return jsontree.MustParse([]byte(`{"pars": [
		{"id": "bt_battery_voltage", "val": "52.0"},
		{"id": "bc_load_active_power_sole", "val": "1.0"},
		{"par": "Output priority", "val": "SBU first"}
	]}`))
}

func TestNewMonitorServerRequiresSource(t *testing.T) {
	_, err := NewMonitorServer(testConfig(), nil, nil, nil)
	require.Error(t, err)
}

func TestPollDevicePublishesCanonicalReadings(t *testing.T) {
	source := &fakeSource{
		lastData:   telemetryFixture(),
		energyFlow: jsontree.Null(),
		ctrlValues: map[string]string{"bt_eybond_ctrl_14": "0"},
	}
	publisher := newCapturingPublisher()

	srv, err := NewMonitorServer(testConfig(), source, source, publisher)
	require.NoError(t, err)

	dev := domain.Device{PN: "P1", Devcode: 2376}
	require.NoError(t, srv.Registry().RegisterDevice(dev))

	srv.PollDevice(context.Background(), dev)

	data, ok := publisher.get("energy/test/P1")
	require.True(t, ok, "readings should be published on the per-device topic")
	readings, ok := data.(*domain.Readings)
	require.True(t, ok)
	assert.Equal(t, 52.0, readings.BatteryVoltage)
	assert.Equal(t, 1000.0, readings.ActiveLoadPower)
	assert.Equal(t, "SBU", readings.OutputPriority)
	assert.Equal(t, "Utility First", readings.ChargePriority)

	info, found := srv.Registry().GetDevice("P1")
	require.True(t, found)
	require.NotNil(t, info.Readings)
	assert.Equal(t, 52.0, info.Readings.BatteryVoltage)
}

func TestPollDeviceFailureIsRecordedNotFatal(t *testing.T) {
	source := &fakeSource{lastDataErr: errors.New("cloud down")}
	publisher := newCapturingPublisher()

	srv, err := NewMonitorServer(testConfig(), source, source, publisher)
	require.NoError(t, err)

	dev := domain.Device{PN: "P1"}
	require.NoError(t, srv.Registry().RegisterDevice(dev))

	srv.PollDevice(context.Background(), dev)

	_, ok := publisher.get("energy/test/P1")
	assert.False(t, ok, "nothing is published on a failed poll")

	info, found := srv.Registry().GetDevice("P1")
	require.True(t, found)
	assert.Nil(t, info.Readings)
}

func TestPollDeviceCtrlCacheRefreshFailureIsNotFatal(t *testing.T) {
	// Only one of the configured cache aliases resolves; the others are
	// simply absent from the snapshot.
	source := &fakeSource{
		lastData:   telemetryFixture(),
		energyFlow: jsontree.Null(),
		ctrlValues: map[string]string{"bt_eybond_ctrl_15": "60"},
	}
	publisher := newCapturingPublisher()

	srv, err := NewMonitorServer(testConfig(), source, source, publisher)
	require.NoError(t, err)

	srv.PollDevice(context.Background(), domain.Device{PN: "P1"})

	_, ok := publisher.get("energy/test/P1")
	assert.True(t, ok)
}

func TestStartAndStopLifecycle(t *testing.T) {
	source := &fakeSource{
		lastData:   telemetryFixture(),
		energyFlow: jsontree.Null(),
	}
	publisher := newCapturingPublisher()

	cfg := testConfig()
	cfg.PollInterval = 3600 // only the immediate first poll fires

	srv, err := NewMonitorServer(cfg, source, source, publisher)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))

	// The first poll runs synchronously inside the loop goroutine.
	require.Eventually(t, func() bool {
		_, ok := publisher.get("energy/test/P1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, srv.Stop(ctx))
}

func TestStartDiscoversDevicesWhenNoneConfigured(t *testing.T) {
	source := &fakeSource{
		lastData:   telemetryFixture(),
		energyFlow: jsontree.Null(),
		devices:    []domain.Device{{PN: "AUTO1"}, {PN: "AUTO2"}},
	}
	publisher := newCapturingPublisher()

	cfg := testConfig()
	cfg.Devices = nil
	cfg.PollInterval = 3600

	srv, err := NewMonitorServer(cfg, source, source, publisher)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))
	defer func() { _ = srv.Stop(ctx) }()

	assert.Len(t, srv.Registry().GetAllDevices(), 2)
}

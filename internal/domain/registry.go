// Package domain provides core domain implementations.
package domain

import (
	"fmt"
	"sync"
	"time"
)

// DeviceRegistry implements the Registry interface.
type DeviceRegistry struct {
	devices map[string]*DeviceInfo
	mutex   sync.RWMutex
}

// NewDeviceRegistry creates a new device registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		devices: make(map[string]*DeviceInfo),
	}
}

// RegisterDevice adds or updates a device in the registry.
func (r *DeviceRegistry) RegisterDevice(dev Device) error {
	if dev.PN == "" {
		return fmt.Errorf("device PN is empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	info, exists := r.devices[dev.PN]
	if !exists {
		r.devices[dev.PN] = &DeviceInfo{
			Device:      dev,
			LastContact: time.Now(),
		}
	} else {
		info.Device = dev
		info.LastContact = time.Now()
	}

	return nil
}

// UpdateReadings stores the latest canonical readings for a device.
func (r *DeviceRegistry) UpdateReadings(pn string, readings *Readings) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	info, exists := r.devices[pn]
	if !exists {
		return fmt.Errorf("device %s not found", pn)
	}

	info.Readings = readings
	info.LastContact = time.Now()
	return nil
}

// GetDevice retrieves a device and its latest state by PN.
func (r *DeviceRegistry) GetDevice(pn string) (*DeviceInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	info, exists := r.devices[pn]
	return info, exists
}

// GetAllDevices returns all registered devices.
func (r *DeviceRegistry) GetAllDevices() []*DeviceInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	devices := make([]*DeviceInfo, 0, len(r.devices))
	for _, info := range r.devices {
		devices = append(devices, info)
	}
	return devices
}

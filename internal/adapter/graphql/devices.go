package graphql

import (
	"context"
	"fmt"

	"github.com/couchcryptid/station-telemetry-ingest/internal/domain"
)

const getDeviceQuery = `query GetDevice($device_id: String!) {
  getDevices(device_id: $device_id) {
    device_id
    owner
  }
}`

// Devices implements domain.DeviceDirectory on top of the GraphQL backend.
type Devices struct {
	client *Client
}

// NewDevices creates a device directory backed by client.
func NewDevices(client *Client) *Devices {
	return &Devices{client: client}
}

type getDeviceData struct {
	GetDevices *struct {
		DeviceID string  `json:"device_id"`
		Owner    *string `json:"owner"`
	} `json:"getDevices"`
}

// GetDevice looks up deviceID. The result is never cached.
func (d *Devices) GetDevice(ctx context.Context, deviceID string) (domain.DeviceOwnership, error) {
	var data getDeviceData
	err := d.client.Query(ctx, "get_device", getDeviceQuery, map[string]any{"device_id": deviceID}, &data)
	if err != nil {
		return domain.DeviceOwnership{}, fmt.Errorf("get device %s: %w", deviceID, err)
	}

	ownership := domain.DeviceOwnership{DeviceID: deviceID}
	if data.GetDevices != nil && data.GetDevices.Owner != nil && *data.GetDevices.Owner != "" {
		owner := *data.GetDevices.Owner
		ownership.Owner = &owner
	}
	return ownership, nil
}

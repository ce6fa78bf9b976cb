package platform

import (
	"context"
	"fmt"
)

// Device reports facts about the host platform.
var Device = &DeviceService{
	channel: NewMethodChannel("filebridge/device"),
}

// DeviceService queries device information.
type DeviceService struct {
	channel *MethodChannel
}

// SDKInt returns the platform SDK level. It is queried on every call.
func (s *DeviceService) SDKInt(ctx context.Context) (int, error) {
	result, err := s.channel.InvokeContext(ctx, "sdkInt", nil)
	if err != nil {
		return 0, err
	}
	v, err := responseField("device.sdkInt", result, "sdkInt")
	if err != nil {
		return 0, err
	}
	sdk, ok := toInt(v)
	if !ok {
		return 0, fmt.Errorf("device.sdkInt: %w: %v", ErrUnexpectedResponse, v)
	}
	return sdk, nil
}

package builtin

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/types/skills"
)

type listDevicesParams struct {
	OnlyConnected bool `mapstructure:"only_connected"`
}

type listDevices struct {
	sc skills.Context
}

// ListDevices lists the devices known to the device service.
func ListDevices() skills.Type {
	return skills.Type{
		Name:        "list_devices",
		Description: "List registered devices from the device service",
		Parameters: []skills.Parameter{
			{
				Name:        "only_connected",
				Type:        skills.TypeBool,
				Default:     true,
				Description: "When true, filter out devices that are not currently connected.",
			},
		},
		New: func(sc skills.Context) skills.Skill {
			return &listDevices{sc: sc}
		},
	}
}

func (s *listDevices) Run(ctx context.Context, args map[string]any) (*skills.Result, error) {
	var params listDevicesParams
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	svc, err := s.sc.Service(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := svc.ListDevices(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list devices")
	}

	normalized := make([]device.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if params.OnlyConnected && !d.Connected {
			continue
		}
		normalized = append(normalized, d)
	}

	return &skills.Result{
		Success: true,
		Message: fmt.Sprintf("%d device(s) returned", len(normalized)),
		Details: map[string]any{"devices": normalized},
	}, nil
}

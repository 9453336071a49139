package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gen2brain/malgo"

	"hotmic/internal/ports"
)

// MalgoDevice captures microphone PCM through miniaudio.
type MalgoDevice struct {
	ctx    *malgo.AllocatedContext
	logger *slog.Logger
}

// DeviceInfo describes a capture device.
type DeviceInfo struct {
	Index     int
	Name      string
	IsDefault bool
}

func NewMalgoDevice(logger *slog.Logger) (*MalgoDevice, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Backend log lines include overflow/underflow warnings; they never stop capture.
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("audio backend", "message", strings.TrimSpace(message))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &MalgoDevice{ctx: ctx, logger: logger}, nil
}

// Devices lists capture devices in backend order.
func (d *MalgoDevice) Devices() ([]DeviceInfo, error) {
	infos, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to list capture devices: %w", err)
	}
	out := make([]DeviceInfo, 0, len(infos))
	for i, info := range infos {
		out = append(out, DeviceInfo{Index: i, Name: info.Name(), IsDefault: info.IsDefault != 0})
	}
	return out, nil
}

func (d *MalgoDevice) Open(cfg ports.AudioConfig, onBlock func(block []byte)) (ports.AudioStream, error) {
	if onBlock == nil {
		return nil, errors.New("audio block handler is required")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.BlockSamples)

	if strings.TrimSpace(cfg.DeviceID) != "" {
		info, err := d.findDevice(cfg.DeviceID)
		if err != nil {
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
	}

	blocks := newBlocker(cfg.BlockBytes(), onBlock)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			blocks.write(input)
		},
	}

	device, err := malgo.InitDevice(d.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	return &malgoStream{device: device}, nil
}

// Close releases the miniaudio context.
func (d *MalgoDevice) Close() error {
	if d.ctx == nil {
		return nil
	}
	err := d.ctx.Uninit()
	d.ctx.Free()
	d.ctx = nil
	return err
}

// findDevice resolves an index ("2") or a case-insensitive name fragment.
func (d *MalgoDevice) findDevice(id string) (malgo.DeviceInfo, error) {
	infos, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, fmt.Errorf("failed to list capture devices: %w", err)
	}

	id = strings.TrimSpace(id)
	if index, err := strconv.Atoi(id); err == nil {
		if index < 0 || index >= len(infos) {
			return malgo.DeviceInfo{}, fmt.Errorf("capture device index %d out of range (%d devices)", index, len(infos))
		}
		return infos[index], nil
	}

	needle := strings.ToLower(id)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), needle) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("capture device %q not found", id)
}

type malgoStream struct {
	device *malgo.Device
}

func (s *malgoStream) Start() error {
	return s.device.Start()
}

func (s *malgoStream) Stop() error {
	return s.device.Stop()
}

func (s *malgoStream) Close() error {
	s.device.Uninit()
	return nil
}

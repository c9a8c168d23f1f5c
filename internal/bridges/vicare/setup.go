package vicare

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/vicare-bridge/internal/catalog"
	"github.com/nerrad567/vicare-bridge/internal/entity"
	"github.com/nerrad567/vicare-bridge/internal/heating"
	"github.com/nerrad567/vicare-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vicare-bridge/internal/registry"
	vc "github.com/nerrad567/vicare-bridge/internal/vicare"
)

// deviceEntities is one polled device and the entities built for it.
// The entity list is fixed after setup.
type deviceEntities struct {
	device   *vc.Device
	id       string
	entities []entity.Entity
}

// setup discovers devices and materialises their entities. Entities whose
// probe fails are skipped; setup itself only fails when the device list
// cannot be read.
func (b *Bridge) setup(ctx context.Context) error {
	devices, err := b.vendor.Devices(ctx)
	if err != nil {
		return err
	}

	var built []*deviceEntities
	for _, dev := range devices {
		if dev.IsGateway() {
			b.logger.Debug("skipping gateway", "device", dev.String())
			continue
		}
		if !dev.Online() {
			b.logger.Warn("device reported offline", "device", dev.String(), "status", dev.Status)
		}
		de := b.buildDevice(ctx, dev)
		b.logger.Info("device set up",
			"device_id", de.id,
			"model", dev.Model,
			"entities", len(de.entities))
		built = append(built, de)
	}

	b.mu.Lock()
	b.devices = built
	clear(b.index)
	byPlatform := make(map[string]int)
	for _, de := range built {
		for _, e := range de.entities {
			info := e.Info()
			if _, dup := b.index[info.ID]; dup {
				b.logger.Warn("duplicate entity id", "entity_id", info.ID)
				continue
			}
			b.index[info.ID] = e
			byPlatform[info.Platform]++
		}
	}
	b.mu.Unlock()

	b.metrics.setEntities(byPlatform)
	b.register(ctx, built)
	return nil
}

func (b *Bridge) buildDevice(ctx context.Context, dev *vc.Device) *deviceEntities {
	de := &deviceEntities{
		device: dev,
		id:     entity.DeviceID(dev.InstallationID, dev.GatewaySerial, dev.ID),
	}
	target := entity.Target{DeviceID: de.id, Scope: catalog.ScopeDevice}

	de.entities = append(de.entities,
		buildComponent(ctx, b.builder, target, dev, catalog.DeviceSensors, catalog.DeviceBinarySensors)...)
	for _, d := range catalog.DeviceSwitches {
		if s, ok := entity.BuildSwitch(ctx, b.builder, target, d, dev); ok {
			de.entities = append(de.entities, s)
		}
	}
	for _, d := range catalog.DeviceButtons {
		if btn, ok := entity.BuildButton(ctx, b.builder, target, d, dev); ok {
			de.entities = append(de.entities, btn)
		}
	}

	if dev.IsRadiatorActuator() {
		if th, ok := heating.NewThermostat(ctx, b.builder, target, dev); ok {
			b.seed(ctx, th)
			de.entities = append(de.entities, th)
		}
	}

	circuits := components(b, de.id, "circuits", func() ([]*vc.Circuit, error) { return dev.Circuits(ctx) })
	for _, c := range circuits {
		t := entity.Target{DeviceID: de.id, Scope: catalog.ScopeCircuit, Index: c.ID, Multiple: len(circuits) > 1}
		de.entities = append(de.entities,
			buildComponent(ctx, b.builder, t, c, catalog.CircuitSensors, catalog.CircuitBinarySensors)...)
		climate := heating.NewClimate(b.builder, t, c, dev, b.builder.Logger())
		b.seed(ctx, climate)
		de.entities = append(de.entities, climate)
	}

	if hasBurners(b.cfg.HeatingType) {
		burners := components(b, de.id, "burners", func() ([]*vc.Burner, error) { return dev.Burners(ctx) })
		for _, bu := range burners {
			t := entity.Target{DeviceID: de.id, Scope: catalog.ScopeBurner, Index: bu.ID, Multiple: len(burners) > 1}
			de.entities = append(de.entities,
				buildComponent(ctx, b.builder, t, bu, catalog.BurnerSensors, catalog.BurnerBinarySensors)...)
		}
	}
	if hasCompressors(b.cfg.HeatingType) {
		compressors := components(b, de.id, "compressors", func() ([]*vc.Compressor, error) { return dev.Compressors(ctx) })
		for _, cp := range compressors {
			t := entity.Target{DeviceID: de.id, Scope: catalog.ScopeCompressor, Index: cp.ID, Multiple: len(compressors) > 1}
			de.entities = append(de.entities,
				buildComponent(ctx, b.builder, t, cp, catalog.CompressorSensors, catalog.CompressorBinarySensors)...)
		}
	}

	// The first circuit carries the operating mode for devices without a
	// dedicated hot water mode.
	var modes heating.ModeAPI
	if len(circuits) > 0 {
		modes = circuits[0]
	}
	if w, ok := heating.NewWaterHeater(ctx, b.builder, target, dev, modes); ok {
		b.seed(ctx, w)
		de.entities = append(de.entities, w)
	}
	return de
}

// seed reads an entity once so it has a state before the first poll.
func (b *Bridge) seed(ctx context.Context, e entity.Entity) {
	if _, err := e.Update(ctx); err != nil {
		b.logger.Debug("initial read failed", "entity_id", e.Info().ID, "error", err)
	}
}

// buildComponent builds the sensors and binary sensors of one handle.
func buildComponent[H any](ctx context.Context, b *entity.Builder, t entity.Target, h H,
	sensors []catalog.Descriptor[H], binaries []catalog.BinaryDescriptor[H]) []entity.Entity {
	var out []entity.Entity
	for _, d := range sensors {
		if s, ok := entity.BuildSensor(ctx, b, t, d, h); ok {
			out = append(out, s)
		}
	}
	for _, d := range binaries {
		if s, ok := entity.BuildBinary(ctx, b, t, d, h); ok {
			out = append(out, s)
		}
	}
	return out
}

// components lists the components of one kind. A device without the kind
// yields none.
func components[T any](b *Bridge, deviceID, kind string, list func() ([]T, error)) []T {
	items, err := list()
	switch {
	case err == nil:
		return items
	case errors.Is(err, vc.ErrNotSupported):
		b.logger.Debug("no components", "device_id", deviceID, "kind", kind)
	default:
		b.logger.Warn("failed to list components", "device_id", deviceID, "kind", kind, "error", err)
	}
	return nil
}

func hasBurners(heatingType string) bool {
	switch heatingType {
	case "", config.HeatingTypeGeneric, config.HeatingTypeGas, config.HeatingTypeFuelCell:
		return true
	}
	return false
}

func hasCompressors(heatingType string) bool {
	switch heatingType {
	case "", config.HeatingTypeGeneric, config.HeatingTypeHeatPump:
		return true
	}
	return false
}

// register writes device and entity records and prunes entities that no
// longer exist. Failures are logged; the bridge runs without persistence.
func (b *Bridge) register(ctx context.Context, built []*deviceEntities) {
	if b.registry == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	seen := b.now().UTC()
	for _, de := range built {
		dev := de.device
		err := b.registry.RegisterDevice(ctx, &registry.Device{
			ID:             de.id,
			InstallationID: dev.InstallationID,
			GatewaySerial:  dev.GatewaySerial,
			DeviceID:       dev.ID,
			Model:          dev.Model,
			Roles:          dev.Roles,
			LastSeen:       &seen,
		})
		if err != nil {
			b.logger.Warn("failed to register device", "device_id", de.id, "error", err)
			continue
		}

		keep := make(map[string]bool, len(de.entities))
		for _, e := range de.entities {
			rec := recordFor(e.Info())
			keep[rec.ID] = true
			if err := b.registry.Register(ctx, rec); err != nil {
				b.logger.Warn("failed to register entity", "entity_id", rec.ID, "error", err)
			}
		}
		n, err := b.registry.Prune(ctx, de.id, keep)
		if err != nil {
			b.logger.Warn("failed to prune entities", "device_id", de.id, "error", err)
		} else if n > 0 {
			b.logger.Info("pruned stale entities", "device_id", de.id, "count", n)
		}
	}
}

func recordFor(info entity.Info) *registry.Entity {
	rec := &registry.Entity{
		ID:          info.ID,
		DeviceID:    info.DeviceID,
		Platform:    info.Platform,
		Key:         info.Key,
		Name:        info.Name,
		Unit:        info.Unit,
		DeviceClass: info.DeviceClass,
	}
	if info.Scope != "" && info.Scope != string(catalog.ScopeDevice) {
		rec.Component = info.Scope + "." + info.Index
	}
	return rec
}

// deviceName is the display name of a device block in discovery configs.
func deviceName(dev *vc.Device) string {
	model := strings.ReplaceAll(dev.Model, "_", " ")
	if model == "" {
		model = fmt.Sprintf("device %s", dev.ID)
	}
	return entity.DefaultNamePrefix + " " + model
}


package c3

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vbartusevicius/zktaccess-mqtt/internal/access"
)

// DefinitionParams are the device parameters read to build the inventory.
var DefinitionParams = []string{
	ParamSerialNumber,
	ParamLockCount,
	ParamReaderCount,
	ParamAuxInCount,
	ParamAuxOutCount,
	ParamFirmware,
	ParamIPAddress,
}

// ParamReader reads device parameters.
type ParamReader interface {
	GetDeviceParams(ctx context.Context, names ...string) (map[string]string, error)
}

// ResolveDefinition reads the panel parameters and builds its inventory.
//
// Doors and lock relays are numbered 1..LockCount, readers 1..ReaderCount,
// auxiliary relays 1..AuxOutCount and auxiliary inputs 1..AuxInCount.
// Missing counts are zero. The serial number is required because it is
// part of every topic.
func ResolveDefinition(ctx context.Context, p ParamReader, model string) (access.DeviceDefinition, error) {
	params, err := p.GetDeviceParams(ctx, DefinitionParams...)
	if err != nil {
		return access.DeviceDefinition{}, fmt.Errorf("resolving device definition: %w", err)
	}
	return DefinitionFromParams(params, model)
}

// DefinitionFromParams builds the inventory from already fetched parameters.
func DefinitionFromParams(params map[string]string, model string) (access.DeviceDefinition, error) {
	serial := params[ParamSerialNumber]
	if serial == "" {
		return access.DeviceDefinition{}, fmt.Errorf("%w: %s is missing", ErrInvalidParameter, ParamSerialNumber)
	}

	counts := make(map[string]int, 4)
	for _, name := range []string{ParamLockCount, ParamReaderCount, ParamAuxInCount, ParamAuxOutCount} {
		n, err := count(params, name)
		if err != nil {
			return access.DeviceDefinition{}, err
		}
		counts[name] = n
	}

	def := access.DeviceDefinition{
		SerialNumber:    serial,
		FirmwareVersion: params[ParamFirmware],
		IPAddress:       params[ParamIPAddress],
		Model:           model,
	}
	for i := 1; i <= counts[ParamLockCount]; i++ {
		def.Doors = append(def.Doors, access.Door{Number: i, Name: fmt.Sprintf("Door %d", i)})
		def.Relays = append(def.Relays, access.Relay{Number: i, Group: access.RelayGroupLock, Name: fmt.Sprintf("Lock Relay %d", i)})
	}
	for i := 1; i <= counts[ParamAuxOutCount]; i++ {
		def.Relays = append(def.Relays, access.Relay{Number: i, Group: access.RelayGroupAux, Name: fmt.Sprintf("Aux Relay %d", i)})
	}
	for i := 1; i <= counts[ParamReaderCount]; i++ {
		def.Readers = append(def.Readers, access.Reader{Number: i, Name: fmt.Sprintf("Reader %d", i)})
	}
	for i := 1; i <= counts[ParamAuxInCount]; i++ {
		def.AuxInputs = append(def.AuxInputs, access.AuxInput{Number: i, Name: fmt.Sprintf("Aux Input %d", i)})
	}
	return def, nil
}

func count(params map[string]string, name string) (int, error) {
	v, ok := params[name]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidParameter, name, v)
	}
	return n, nil
}

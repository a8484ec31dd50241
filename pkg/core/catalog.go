package core

import (
	"fmt"
	"strings"
)

// DeviceType identifies a class of hardware unit.
type DeviceType string

// Known device types
const (
	DeviceASIC      DeviceType = "asic"
	DeviceGPU       DeviceType = "gpu"
	DeviceAir       DeviceType = "air"
	DeviceHydro     DeviceType = "hydro"
	DeviceImmersion DeviceType = "immersion"
)

// DeviceKind groups device types by the market they earn in.
type DeviceKind string

const (
	// KindInference devices earn token revenue.
	KindInference DeviceKind = "inference"
	// KindMining devices earn hash revenue.
	KindMining DeviceKind = "mining"
)

// DeviceSpec is an immutable catalog entry for a device type.
type DeviceSpec struct {
	Type DeviceType
	Kind DeviceKind
	// Name is a human readable label.
	Name string
	// Hashrate is the hash yield per unit per period.
	Hashrate float64
	// Tokens is the inference token yield per unit per period.
	Tokens float64
	// Power is the draw per unit in kW.
	Power float64
	// MaxMachines is the default per-site cap.
	MaxMachines int
}

var defaultCatalog = map[DeviceType]DeviceSpec{
	DeviceAir: {
		Type: DeviceAir, Kind: KindMining, Name: "Air Cooled Miner",
		Hashrate: 1000, Power: 3500, MaxMachines: 10,
	},
	DeviceHydro: {
		Type: DeviceHydro, Kind: KindMining, Name: "Hydro Cooled Miner",
		Hashrate: 5000, Power: 5000, MaxMachines: 10,
	},
	DeviceImmersion: {
		Type: DeviceImmersion, Kind: KindMining, Name: "Immersion Miner",
		Hashrate: 10000, Power: 10000, MaxMachines: 10,
	},
	DeviceGPU: {
		Type: DeviceGPU, Kind: KindInference, Name: "GPU Cluster",
		Tokens: 1000, Power: 5000, MaxMachines: 10,
	},
	DeviceASIC: {
		Type: DeviceASIC, Kind: KindInference, Name: "ASIC Array",
		Tokens: 500, Power: 15000, MaxMachines: 10,
	},
}

// deviceOrder is the canonical order used whenever device lists are generated.
var deviceOrder = []DeviceType{DeviceAir, DeviceHydro, DeviceImmersion, DeviceGPU, DeviceASIC}

// LookupDevice returns the default spec for a device type.
func LookupDevice(name string) (DeviceSpec, error) {
	spec, ok := defaultCatalog[DeviceType(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return DeviceSpec{}, fmt.Errorf("unknown device type %q", name)
	}
	return spec, nil
}

// KnownDevices returns every catalog device type in canonical order.
func KnownDevices() []DeviceType {
	out := make([]DeviceType, len(deviceOrder))
	copy(out, deviceOrder)
	return out
}

// IsKnownDevice reports whether the name is a catalog device type.
func IsKnownDevice(name string) bool {
	_, ok := defaultCatalog[DeviceType(name)]
	return ok
}

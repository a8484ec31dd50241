package v1alpha1

// DeviceConfig is the per-site configuration of one device type.
// Unset fields inherit from the catalog defaults.
type DeviceConfig struct {
	// MaxMachines caps the units at the site. An explicit 0 disables the device.
	// +optional
	MaxMachines *int `json:"max_machines,omitempty" yaml:"max_machines,omitempty"`

	// Power is the draw per unit in kW.
	// +optional
	Power *float64 `json:"power,omitempty" yaml:"power,omitempty"`

	// Hashrate is the hash yield per unit per period (miners only).
	// +optional
	Hashrate *float64 `json:"hashrate,omitempty" yaml:"hashrate,omitempty"`

	// Tokens is the token yield per unit per period (inference only).
	// +optional
	Tokens *float64 `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// InferenceConfig holds the inference devices of a site.
type InferenceConfig struct {
	ASIC *DeviceConfig `json:"asic,omitempty" yaml:"asic,omitempty"`
	GPU  *DeviceConfig `json:"gpu,omitempty" yaml:"gpu,omitempty"`
}

// MinerConfig holds the mining devices of a site.
type MinerConfig struct {
	Air       *DeviceConfig `json:"air,omitempty" yaml:"air,omitempty"`
	Hydro     *DeviceConfig `json:"hydro,omitempty" yaml:"hydro,omitempty"`
	Immersion *DeviceConfig `json:"immersion,omitempty" yaml:"immersion,omitempty"`
}

// SiteConfig is the configuration of one site as stored in the catalog
// and accepted by POST /config.
type SiteConfig struct {
	// SiteID uniquely identifies the site.
	SiteID string `json:"site_id" yaml:"site_id"`

	// Name is a display name.
	// +optional
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// State is the state or region code.
	// +optional
	State string `json:"state,omitempty" yaml:"state,omitempty"`

	// Power is the site power cap in kW.
	// +optional
	Power *float64 `json:"power,omitempty" yaml:"power,omitempty"`

	// EnergyPrice is a fixed $/kWh series used by the static price source.
	// +optional
	EnergyPrice []float64 `json:"energy_price,omitempty" yaml:"energy_price,omitempty"`

	Inference InferenceConfig `json:"inference" yaml:"inference,omitempty"`
	Miners    MinerConfig     `json:"miners" yaml:"miners,omitempty"`

	// UpdatedAt is an RFC3339 timestamp set by the server.
	// +optional
	UpdatedAt string `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// SiteConfigList is the body of GET /sites.
type SiteConfigList struct {
	Items []SiteConfig `json:"items"`
}

// Device returns the config of the named device, or nil.
func (s *SiteConfig) Device(name string) *DeviceConfig {
	switch name {
	case "asic":
		return s.Inference.ASIC
	case "gpu":
		return s.Inference.GPU
	case "air":
		return s.Miners.Air
	case "hydro":
		return s.Miners.Hydro
	case "immersion":
		return s.Miners.Immersion
	}
	return nil
}

// SetDevice replaces the config of the named device. Unknown names are ignored.
func (s *SiteConfig) SetDevice(name string, cfg *DeviceConfig) {
	switch name {
	case "asic":
		s.Inference.ASIC = cfg
	case "gpu":
		s.Inference.GPU = cfg
	case "air":
		s.Miners.Air = cfg
	case "hydro":
		s.Miners.Hydro = cfg
	case "immersion":
		s.Miners.Immersion = cfg
	}
}

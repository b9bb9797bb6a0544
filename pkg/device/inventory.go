package device

// InventoryDevice is one device listed in the environment file.
type InventoryDevice struct {
	ID   uint32 `mapstructure:"id" json:"id" yaml:"id"`
	IP   string `mapstructure:"ip" json:"ip" yaml:"ip"`
	Port int    `mapstructure:"port" json:"port" yaml:"port"`
	Name string `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty"`
}

// Inventory is the device inventory of one test environment.
type Inventory struct {
	Devices []InventoryDevice `mapstructure:"devices" json:"devices" yaml:"devices"`
}

// IDs returns the device IDs in inventory order.
func (i *Inventory) IDs() []uint32 {
	if i == nil {
		return nil
	}
	ids := make([]uint32, 0, len(i.Devices))
	for _, d := range i.Devices {
		ids = append(ids, d.ID)
	}
	return ids
}

// ServiceConfig selects and configures the device service backend.
type ServiceConfig struct {
	Backend   string          `mapstructure:"backend" json:"backend" yaml:"backend"`
	Address   string          `mapstructure:"address" json:"address" yaml:"address"`
	Simulator SimulatorConfig `mapstructure:"simulator" json:"simulator" yaml:"simulator"`
}

// SimulatorConfig seeds the in-memory simulator.
type SimulatorConfig struct {
	Devices []SimulatedDevice `mapstructure:"devices" json:"devices" yaml:"devices"`
}

// SimulatedDevice describes one simulated device. Capabilities not listed
// fall back to the simulator defaults.
type SimulatedDevice struct {
	ID           uint32          `mapstructure:"id" json:"id" yaml:"id"`
	Name         string          `mapstructure:"name" json:"name" yaml:"name"`
	IP           string          `mapstructure:"ip" json:"ip" yaml:"ip"`
	Disconnected bool            `mapstructure:"disconnected" json:"disconnected" yaml:"disconnected"`
	Capabilities map[string]bool `mapstructure:"capabilities" json:"capabilities" yaml:"capabilities"`
}

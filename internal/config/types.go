// Package config loads and validates the simulator's settings snapshot.
package config

// Config is the root settings snapshot, loaded from a JSON file on disk.
// Every field is optional in the source file; omitted fields take the
// defaults documented alongside each struct below.
type Config struct {
	LAS                 LASConfig                 `json:"las"`
	LIS                 LISConfig                 `json:"lis"`
	Core                CoreConfig                `json:"core"`
	TestInventory       TestInventoryConfig       `json:"test_inventory"`
	ConsumableInventory ConsumableInventoryConfig `json:"consumable_inventory"`

	// Path is the file this config was loaded from, not serialized.
	Path string `json:"-"`
}

// LASConfig configures the LAS (lab-automation) listener and handshake reply.
type LASConfig struct {
	Host               string `json:"host"`                // default "0.0.0.0"
	Port               uint16 `json:"port"`                // default 10001
	ProtocolVersion    uint16 `json:"protocol_version"`     // default 0x0330
	InstrumentType     uint16 `json:"instrument_type"`      // default 0x0001
	CapabilityVersion  uint16 `json:"capability_version"`   // default 0x0104
	SoftwareVersion    uint16 `json:"software_version"`     // default 0x0100
	InstrumentID       uint8  `json:"instrument_id"`        // default 0xFF
	InstrumentSerial   string `json:"instrument_serial"`    // default "ATELLICA"
	AckTimeoutSeconds  int    `json:"ack_timeout"`          // reserved, default 20
	RespTimeoutSeconds int    `json:"response_timeout"`     // reserved, default 20
}

// LISConfig configures the LIS (lab-information-system) listener.
type LISConfig struct {
	Host              string `json:"host"`               // default "0.0.0.0"
	Port              uint16 `json:"port"`                // default 10002
	ResultDelaySecs   int    `json:"result_delay"`         // default 1800
	MaxConnections    int    `json:"max_connections"`      // default 10
}

// CoreConfig seeds the initial HealthSnapshot.
type CoreConfig struct {
	AutomationInterfaceStatus uint8   `json:"automation_interface_status"` // default 1
	InstrumentProcessStatus   uint8   `json:"instrument_process_status"`   // default 1
	LISConnectionStatus       uint8   `json:"lis_connection_status"`       // default 1
	InterfacePositions        int     `json:"interface_positions"`         // default 2
	RemoteControlStatus       []uint8 `json:"remote_control_status"`       // default [4,5]
	LockOwnership             []uint8 `json:"lock_ownership"`              // default [2,2]
	ProcessingBacklog         uint16  `json:"processing_backlog"`          // default 0
	SampleAcquisitionDelay    uint16  `json:"sample_acquisition_delay"`    // default 0
}

// TestInventoryConfig seeds the test-reagent inventory.
type TestInventoryConfig struct {
	Threshold int               `json:"threshold"` // default 10
	Tests     []TestItemConfig  `json:"tests"`
}

// TestItemConfig is one seeded reagent entry.
type TestItemConfig struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Status int    `json:"status"` // 1=green 2=yellow 3=red
}

// ConsumableInventoryConfig seeds the per-module consumable inventory.
type ConsumableInventoryConfig struct {
	Modules []ModuleConfig `json:"modules"`
}

// ModuleConfig is one analyzer module's consumable set.
type ModuleConfig struct {
	ID          string               `json:"id"`
	Consumables []ConsumableConfig   `json:"consumables"`
}

// ConsumableConfig is one consumable slot within a module.
type ConsumableConfig struct {
	ID     uint8 `json:"id"`
	Status uint8 `json:"status"`
}

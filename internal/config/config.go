package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Default returns the built-in default configuration, matching the
// seeded values the original instrument simulator shipped with.
func Default() *Config {
	return &Config{
		LAS: LASConfig{
			Host:               "0.0.0.0",
			Port:               10001,
			ProtocolVersion:    0x0330,
			InstrumentType:     0x0001,
			CapabilityVersion:  0x0104,
			SoftwareVersion:    0x0100,
			InstrumentID:       0xFF,
			InstrumentSerial:   "ATELLICA",
			AckTimeoutSeconds:  20,
			RespTimeoutSeconds: 20,
		},
		LIS: LISConfig{
			Host:            "0.0.0.0",
			Port:            10002,
			ResultDelaySecs: 1800,
			MaxConnections:  10,
		},
		Core: CoreConfig{
			AutomationInterfaceStatus: 1,
			InstrumentProcessStatus:   1,
			LISConnectionStatus:       1,
			InterfacePositions:        2,
			RemoteControlStatus:       []uint8{4, 5},
			LockOwnership:             []uint8{2, 2},
			ProcessingBacklog:         0,
			SampleAcquisitionDelay:    0,
		},
		TestInventory: TestInventoryConfig{
			Threshold: 10,
			Tests: []TestItemConfig{
				{Name: "TEST001", Count: 100, Status: 1},
				{Name: "TEST002", Count: 50, Status: 1},
				{Name: "TEST003", Count: 5, Status: 2},
				{Name: "TEST004", Count: 0, Status: 3},
			},
		},
		ConsumableInventory: ConsumableInventoryConfig{
			Modules: []ModuleConfig{
				{
					ID: "MODULE001",
					Consumables: []ConsumableConfig{
						{ID: 1, Status: 1},
						{ID: 2, Status: 1},
						{ID: 3, Status: 1},
						{ID: 4, Status: 1},
						{ID: 5, Status: 2},
						{ID: 25, Status: 1},
						{ID: 26, Status: 1},
						{ID: 27, Status: 1},
					},
				},
			},
		},
	}
}

// Load reads the JSON config file at path, filling any fields absent from
// the file with defaults. If the file does not exist, a default config is
// written to path and returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		cfg.Path = path
		if werr := Save(cfg); werr != nil {
			return nil, fmt.Errorf("writing default config: %w", werr)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// Parse parses configuration from JSON bytes, applying defaults for
// omitted fields and validating the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing json: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to its Path as indented JSON.
func Save(cfg *Config) error {
	if cfg.Path == "" {
		return fmt.Errorf("save config: no path set")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(cfg.Path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// OnChange is invoked with a freshly reloaded and validated config snapshot
// whenever the watched file changes. A decode or validation failure is
// reported via onError and the previous snapshot stays in effect.
type OnChange func(*Config)

// Watch watches path's directory for writes/renames of the config file and
// invokes onChange with each successfully reloaded snapshot. It runs until
// ctx is canceled. A malformed edit is reported through onError rather than
// propagated — a bad edit never tears down the watch loop.
func Watch(ctx context.Context, path string, onChange OnChange, onError func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watching config dir: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				evAbs, err := filepath.Abs(ev.Name)
				if err != nil || evAbs != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				cfg, err := Load(path)
				if err != nil {
					if onError != nil {
						onError(fmt.Errorf("reloading config: %w", err))
					}
					continue
				}
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onError != nil {
					onError(err)
				}
			}
		}
	}()

	return nil
}

package config

import (
	"errors"
	"fmt"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks cfg for internally-consistent values. It never rejects
// omitted-and-defaulted fields — Default/Parse fill those before Validate
// runs — it only catches values an operator explicitly set to something
// nonsensical.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Core.InterfacePositions < 0 {
		errs = append(errs, ValidationError{"core.interface_positions", "must be non-negative"})
	}
	if len(cfg.Core.RemoteControlStatus) != cfg.Core.InterfacePositions {
		errs = append(errs, ValidationError{
			Field:   "core.remote_control_status",
			Message: fmt.Sprintf("must have exactly interface_positions (%d) entries, got %d", cfg.Core.InterfacePositions, len(cfg.Core.RemoteControlStatus)),
		})
	}
	if len(cfg.Core.LockOwnership) != cfg.Core.InterfacePositions {
		errs = append(errs, ValidationError{
			Field:   "core.lock_ownership",
			Message: fmt.Sprintf("must have exactly interface_positions (%d) entries, got %d", cfg.Core.InterfacePositions, len(cfg.Core.LockOwnership)),
		})
	}

	if cfg.TestInventory.Threshold < 0 {
		errs = append(errs, ValidationError{"test_inventory.threshold", "must be non-negative"})
	}
	seen := make(map[string]bool, len(cfg.TestInventory.Tests))
	for i, t := range cfg.TestInventory.Tests {
		if t.Name == "" {
			errs = append(errs, ValidationError{fmt.Sprintf("test_inventory.tests[%d].name", i), "must not be empty"})
			continue
		}
		if seen[t.Name] {
			errs = append(errs, ValidationError{fmt.Sprintf("test_inventory.tests[%d].name", i), "duplicate test name " + t.Name})
		}
		seen[t.Name] = true
	}

	for i, m := range cfg.ConsumableInventory.Modules {
		if m.ID == "" {
			errs = append(errs, ValidationError{fmt.Sprintf("consumable_inventory.modules[%d].id", i), "must not be empty"})
		}
		if len(m.ID) > 255 {
			errs = append(errs, ValidationError{fmt.Sprintf("consumable_inventory.modules[%d].id", i), "must be at most 255 bytes"})
		}
	}

	if cfg.LIS.ResultDelaySecs < 0 {
		errs = append(errs, ValidationError{"lis.result_delay", "must be non-negative"})
	}
	if cfg.LIS.MaxConnections < 0 {
		errs = append(errs, ValidationError{"lis.max_connections", "must be non-negative"})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

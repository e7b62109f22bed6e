// Package operator is the façade the (out-of-scope) operator GUI drives:
// a thin, synchronous pass-through onto the state store's snapshot getters
// and mutators. It adds no behavior of its own: every argument and result
// is passed through unchanged.
package operator

import "github.com/labsim/atellica-sim/internal/simstate"

// Store is the subset of simstate.Store the operator façade depends on.
type Store interface {
	GetHealth() simstate.HealthSnapshot
	UpdateAutomationInterfaceStatus(v uint8)
	UpdateInstrumentProcessStatus(v uint8)
	UpdateLISConnectionStatus(v uint8)
	UpdateRemoteControlStatus(index int, v uint8) bool
	UpdateLockOwnership(index int, v uint8) bool
	UpdateProcessingBacklog(v uint16)
	UpdateSampleAcquisitionDelay(v uint16)

	GetTestInventory() (threshold int, items []simstate.TestInventoryItem)
	UpdateTestInventory(name string, count *int, status *int) simstate.LookupOutcome

	GetConsumableInventory() []simstate.Module
	UpdateConsumable(moduleID string, consumableID uint8, status uint8) simstate.LookupOutcome

	ListSamples() []simstate.Sample
	ListOnboardSamples() []simstate.Sample
	GetSample(id string) (simstate.Sample, bool)
}

// Operator wraps a Store for the GUI collaborator. Every method is a direct
// call into the store; no additional locking is needed since the store is
// already safe for concurrent use.
type Operator struct {
	store Store
}

// New builds an Operator façade over store.
func New(store Store) *Operator {
	return &Operator{store: store}
}

// Health returns the current instrument health snapshot.
func (o *Operator) Health() simstate.HealthSnapshot {
	return o.store.GetHealth()
}

// SetAutomationInterfaceStatus sets the automation interface status byte.
func (o *Operator) SetAutomationInterfaceStatus(v uint8) {
	o.store.UpdateAutomationInterfaceStatus(v)
}

// SetInstrumentProcessStatus sets the instrument process status byte.
func (o *Operator) SetInstrumentProcessStatus(v uint8) {
	o.store.UpdateInstrumentProcessStatus(v)
}

// SetLISConnectionStatus sets the LIS connection status byte.
func (o *Operator) SetLISConnectionStatus(v uint8) {
	o.store.UpdateLISConnectionStatus(v)
}

// SetRemoteControlStatus sets one interface position's remote control
// status. It reports false if index is out of range.
func (o *Operator) SetRemoteControlStatus(index int, v uint8) bool {
	return o.store.UpdateRemoteControlStatus(index, v)
}

// SetLockOwnership sets one interface position's lock owner. It reports
// false if index is out of range.
func (o *Operator) SetLockOwnership(index int, v uint8) bool {
	return o.store.UpdateLockOwnership(index, v)
}

// SetProcessingBacklog sets the operator-visible backlog counter.
func (o *Operator) SetProcessingBacklog(v uint16) {
	o.store.UpdateProcessingBacklog(v)
}

// SetSampleAcquisitionDelay sets the operator-visible acquisition delay.
func (o *Operator) SetSampleAcquisitionDelay(v uint16) {
	o.store.UpdateSampleAcquisitionDelay(v)
}

// TestInventory returns the low-stock threshold and every reagent's count
// and status.
func (o *Operator) TestInventory() (threshold int, items []simstate.TestInventoryItem) {
	return o.store.GetTestInventory()
}

// SetTestInventory updates a named reagent's count and/or status. Either
// pointer may be nil to leave that field unchanged.
func (o *Operator) SetTestInventory(name string, count *int, status *int) simstate.LookupOutcome {
	return o.store.UpdateTestInventory(name, count, status)
}

// ConsumableInventory returns every module's consumable set.
func (o *Operator) ConsumableInventory() []simstate.Module {
	return o.store.GetConsumableInventory()
}

// SetConsumable sets one consumable's status within a module.
func (o *Operator) SetConsumable(moduleID string, consumableID uint8, status uint8) simstate.LookupOutcome {
	return o.store.UpdateConsumable(moduleID, consumableID, status)
}

// Samples returns every sample on file, received or completed.
func (o *Operator) Samples() []simstate.Sample {
	return o.store.ListSamples()
}

// OnboardSamples returns every sample still awaiting a result.
func (o *Operator) OnboardSamples() []simstate.Sample {
	return o.store.ListOnboardSamples()
}

// Sample looks up a single sample by id.
func (o *Operator) Sample(id string) (simstate.Sample, bool) {
	return o.store.GetSample(id)
}

package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim/atellica-sim/internal/config"
	"github.com/labsim/atellica-sim/internal/simstate"
)

func newTestStore() *simstate.Store {
	return simstate.New(config.Default(), nil)
}

func TestOperatorHealthReflectsStoreMutations(t *testing.T) {
	store := newTestStore()
	op := New(store)

	op.SetAutomationInterfaceStatus(2)
	op.SetInstrumentProcessStatus(3)
	op.SetLISConnectionStatus(0)

	health := op.Health()
	assert.Equal(t, uint8(2), health.AutomationInterfaceStatus)
	assert.Equal(t, uint8(3), health.InstrumentProcessStatus)
	assert.Equal(t, uint8(0), health.LISConnectionStatus)
}

func TestOperatorRemoteControlAndLockOwnershipBounds(t *testing.T) {
	store := newTestStore()
	op := New(store)

	assert.True(t, op.SetRemoteControlStatus(0, 9))
	assert.False(t, op.SetRemoteControlStatus(99, 9))
	assert.True(t, op.SetLockOwnership(1, 3))
	assert.False(t, op.SetLockOwnership(-1, 3))
}

func TestOperatorTestInventoryRoundTrip(t *testing.T) {
	store := newTestStore()
	op := New(store)

	threshold, items := op.TestInventory()
	require.Equal(t, 10, threshold)
	require.NotEmpty(t, items)

	count := 3
	outcome := op.SetTestInventory("TEST001", &count, nil)
	assert.Equal(t, simstate.Found, outcome)

	_, items = op.TestInventory()
	for _, item := range items {
		if item.Name == "TEST001" {
			assert.Equal(t, 3, item.Count)
			assert.Equal(t, 2, item.Status, "below threshold should derive to yellow")
		}
	}

	assert.Equal(t, simstate.NotFound, op.SetTestInventory("NOPE", &count, nil))
}

func TestOperatorConsumableInventoryRoundTrip(t *testing.T) {
	store := newTestStore()
	op := New(store)

	modules := op.ConsumableInventory()
	require.NotEmpty(t, modules)

	outcome := op.SetConsumable(modules[0].ID, modules[0].Consumables[0].ID, 3)
	assert.Equal(t, simstate.Found, outcome)
	assert.Equal(t, simstate.NotFound, op.SetConsumable("NOPE", 1, 3))
}

func TestOperatorSampleViews(t *testing.T) {
	store := newTestStore()
	op := New(store)

	outcome := store.ReceiveSample("S100", []string{"TEST001"}, nil)
	require.Equal(t, simstate.Accepted, outcome)

	onboard := op.OnboardSamples()
	require.Len(t, onboard, 1)

	sample, ok := op.Sample("S100")
	require.True(t, ok)
	assert.Equal(t, "S100", sample.ID)

	_, ok = op.Sample("MISSING")
	assert.False(t, ok)

	assert.Len(t, op.Samples(), 1)
}

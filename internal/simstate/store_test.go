package simstate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsim/atellica-sim/internal/config"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.Default()
	cfg.LIS.ResultDelaySecs = 0
	return New(cfg, nil)
}

func TestReceiveSampleAcceptsKnownTests(t *testing.T) {
	s := testStore(t)
	outcome := s.ReceiveSample("SAMPLE001", []string{"TEST001", "UNKNOWN"}, nil)
	assert.Equal(t, Accepted, outcome)

	sample, ok := s.GetSample("SAMPLE001")
	require.True(t, ok)
	assert.Equal(t, []string{"TEST001"}, sample.Tests)
	assert.Equal(t, StatusReceived, sample.Status)
}

func TestReceiveSampleRejectsDuplicate(t *testing.T) {
	s := testStore(t)
	require.Equal(t, Accepted, s.ReceiveSample("SAMPLE001", []string{"TEST001"}, nil))
	assert.Equal(t, RejectedDuplicate, s.ReceiveSample("SAMPLE001", []string{"TEST002"}, nil))
}

func TestReceiveSampleRejectsNoValidTests(t *testing.T) {
	s := testStore(t)
	assert.Equal(t, RejectedNoValidTests, s.ReceiveSample("SAMPLE001", []string{"BOGUS"}, nil))
	_, ok := s.GetSample("SAMPLE001")
	assert.False(t, ok, "a rejected sample must not be on file")
}

func TestGenerateResultCompletesSampleAndNotifiesOnce(t *testing.T) {
	s := testStore(t)
	require.Equal(t, Accepted, s.ReceiveSample("SAMPLE001", []string{"TEST001", "TEST002"}, nil))

	var mu sync.Mutex
	var notified []Sample
	s.SubscribeResult(func(sample Sample) {
		mu.Lock()
		notified = append(notified, sample)
		mu.Unlock()
	})

	due := s.DueSampleIDs(time.Now())
	require.Contains(t, due, "SAMPLE001")

	assert.True(t, s.GenerateResult("SAMPLE001"))
	assert.False(t, s.GenerateResult("SAMPLE001"), "a sample must complete at most once")

	sample, ok := s.GetSample("SAMPLE001")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, sample.Status)
	assert.NotNil(t, sample.CompletedAt)
	assert.Len(t, sample.Results, 2)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notified, 1)
	assert.Equal(t, "SAMPLE001", notified[0].ID)
}

func TestGenerateResultUnitFollowsTrailingDigitParity(t *testing.T) {
	s := testStore(t)
	require.Equal(t, Accepted, s.ReceiveSample("SAMPLE001", []string{"TEST001", "TEST002"}, nil))
	require.True(t, s.GenerateResult("SAMPLE001"))

	sample, _ := s.GetSample("SAMPLE001")
	assert.Equal(t, "mmol/L", sample.Results["TEST001"].Unit, "odd trailing digit trails a mmol/L value")
	assert.Equal(t, "mg/dL", sample.Results["TEST002"].Unit, "even trailing digit trails a mg/dL value")
}

func TestUpdateRemoteControlStatusRejectsOutOfRange(t *testing.T) {
	s := testStore(t)
	assert.True(t, s.UpdateRemoteControlStatus(0, 7))
	assert.False(t, s.UpdateRemoteControlStatus(99, 7))
}

func TestUpdateTestInventoryUnknownName(t *testing.T) {
	s := testStore(t)
	count := 3
	assert.Equal(t, NotFound, s.UpdateTestInventory("NOPE", &count, nil))
	assert.Equal(t, Found, s.UpdateTestInventory("TEST001", &count, nil))

	_, items := s.GetTestInventory()
	for _, item := range items {
		if item.Name == "TEST001" {
			assert.Equal(t, 3, item.Count)
		}
	}
}

func TestUpdateConsumableUnknownModuleOrID(t *testing.T) {
	s := testStore(t)
	assert.Equal(t, NotFound, s.UpdateConsumable("NOPE", 1, 2))
	assert.Equal(t, NotFound, s.UpdateConsumable("MODULE001", 250, 2))
	assert.Equal(t, Found, s.UpdateConsumable("MODULE001", 1, 3))

	mods := s.GetConsumableInventory()
	require.Len(t, mods, 1)
	for _, c := range mods[0].Consumables {
		if c.ID == 1 {
			assert.Equal(t, uint8(3), c.Status)
		}
	}
}

func TestConcurrentReceiveSampleIsLinearizable(t *testing.T) {
	s := testStore(t)
	const workers = 50

	var wg sync.WaitGroup
	results := make(chan ReceiveOutcome, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.ReceiveSample("SHARED", []string{"TEST001"}, nil)
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for r := range results {
		if r == Accepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted, "exactly one concurrent ReceiveSample call for the same id must win")
}

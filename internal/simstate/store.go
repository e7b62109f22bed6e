package simstate

import (
	"sync"
	"time"

	"github.com/labsim/atellica-sim/internal/config"
	"github.com/labsim/atellica-sim/internal/logging"
)

// ResultListener is invoked, outside the store's lock, every time a sample
// completes. The LIS engine is the store's single subscriber: it pushes
// each completed sample out as a result transmission to every connected
// socket.
type ResultListener func(Sample)

// Store is the simulator's single source of truth: sample lifecycle,
// pending-result timers, reagent and consumable inventory, and the health
// snapshot exposed to both protocol engines and the operator façade.
//
// Every exported method is atomic with respect to every other: state never
// observes a partial mutation. The lock is held only across in-memory
// bookkeeping; it is always released before a listener is invoked or any
// I/O is attempted.
type Store struct {
	mu sync.Mutex

	logger logging.Logger

	resultDelay time.Duration

	samples map[string]Sample
	pending map[string]time.Time

	testOrder     []string
	testInventory map[string]*TestInventoryItem
	testThreshold int

	moduleOrder []string
	modules     map[string]*Module

	automationInterfaceStatus uint8
	instrumentProcessStatus   uint8
	lisConnectionStatus       uint8
	interfacePositions        uint8
	remoteControlStatus       []uint8
	lockOwnership             []uint8
	processingBacklog         uint16
	sampleAcquisitionDelay    uint16
	onBoardTubeCount          uint16
	completedTubeCount        uint16

	resultListener ResultListener
}

// New builds a Store seeded from cfg's initial inventory and health values.
func New(cfg *config.Config, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Discard{}
	}

	s := &Store{
		logger:        logger,
		resultDelay:   time.Duration(cfg.LIS.ResultDelaySecs) * time.Second,
		samples:       make(map[string]Sample),
		pending:       make(map[string]time.Time),
		testInventory: make(map[string]*TestInventoryItem),
		testThreshold: cfg.TestInventory.Threshold,
		modules:       make(map[string]*Module),

		automationInterfaceStatus: cfg.Core.AutomationInterfaceStatus,
		instrumentProcessStatus:   cfg.Core.InstrumentProcessStatus,
		lisConnectionStatus:       cfg.Core.LISConnectionStatus,
		interfacePositions:        uint8(cfg.Core.InterfacePositions),
		remoteControlStatus:       append([]uint8(nil), cfg.Core.RemoteControlStatus...),
		lockOwnership:             append([]uint8(nil), cfg.Core.LockOwnership...),
		processingBacklog:         cfg.Core.ProcessingBacklog,
		sampleAcquisitionDelay:    cfg.Core.SampleAcquisitionDelay,
	}

	for _, t := range cfg.TestInventory.Tests {
		item := &TestInventoryItem{Name: t.Name, Count: t.Count, Status: t.Status}
		s.testInventory[t.Name] = item
		s.testOrder = append(s.testOrder, t.Name)
	}

	for _, m := range cfg.ConsumableInventory.Modules {
		mod := &Module{ID: m.ID}
		for _, c := range m.Consumables {
			mod.Consumables = append(mod.Consumables, Consumable{ID: c.ID, Status: c.Status})
		}
		s.modules[m.ID] = mod
		s.moduleOrder = append(s.moduleOrder, m.ID)
	}

	return s
}

// SubscribeResult registers fn as the store's single result listener,
// replacing any previous subscriber.
func (s *Store) SubscribeResult(fn ResultListener) {
	s.mu.Lock()
	s.resultListener = fn
	s.mu.Unlock()
}

// ReceiveSample admits a new sample, filtering its test list down to codes
// present in the test inventory. A sample id already on file is rejected
// as a duplicate; a sample whose test list has no recognized code is
// rejected outright. An accepted sample is scheduled for delayed result
// generation per the store's configured result delay.
func (s *Store) ReceiveSample(id string, tests []string, patient *PatientInfo) ReceiveOutcome {
	id = capField(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.samples[id]; exists {
		return RejectedDuplicate
	}

	valid := make([]string, 0, len(tests))
	for _, t := range tests {
		t = capField(t)
		if _, ok := s.testInventory[t]; ok {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		return RejectedNoValidTests
	}

	var p *PatientInfo
	if patient != nil {
		cp := PatientInfo{
			PatientID: capField(patient.PatientID),
			LastName:  capField(patient.LastName),
			FirstName: capField(patient.FirstName),
			DOB:       capField(patient.DOB),
			Gender:    capField(patient.Gender),
		}
		p = &cp
	}

	now := time.Now()
	s.samples[id] = Sample{
		ID:         id,
		Tests:      valid,
		Patient:    p,
		ReceivedAt: now,
		Status:     StatusReceived,
	}
	s.pending[id] = now.Add(s.resultDelay)
	s.onBoardTubeCount++

	return Accepted
}

// GetSample returns a deep copy of the named sample.
func (s *Store) GetSample(id string) (Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample, ok := s.samples[id]
	if !ok {
		return Sample{}, false
	}
	return sample.clone(), true
}

// ListSamples returns a deep copy of every sample on file.
func (s *Store) ListSamples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sample, 0, len(s.samples))
	for _, sample := range s.samples {
		out = append(out, sample.clone())
	}
	return out
}

// ListOnboardSamples returns every sample still awaiting a result.
func (s *Store) ListOnboardSamples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sample, 0, len(s.samples))
	for _, sample := range s.samples {
		if sample.Status == StatusReceived {
			out = append(out, sample.clone())
		}
	}
	return out
}

// DueSampleIDs returns the ids of every pending sample whose fire time has
// elapsed by now, without removing them from the pending set. Used by the
// scheduler to take a consistent snapshot of work to drive.
func (s *Store) DueSampleIDs(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []string
	for id, fireAt := range s.pending {
		if !fireAt.After(now) {
			due = append(due, id)
		}
	}
	return due
}

// GenerateResult completes sampleID if it is still pending: it removes the
// pending timer, synthesizes a result per test, marks the sample completed,
// and notifies the result listener. It returns false if the sample was
// already completed or removed by a concurrent call, which is a benign
// race the scheduler tolerates.
func (s *Store) GenerateResult(sampleID string) bool {
	s.mu.Lock()
	if _, ok := s.pending[sampleID]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.pending, sampleID)

	sample, ok := s.samples[sampleID]
	if !ok {
		s.mu.Unlock()
		return false
	}

	now := time.Now()
	sample.Results = synthesizeResults(sample.Tests)
	sample.Status = StatusCompleted
	sample.CompletedAt = &now
	s.samples[sampleID] = sample

	if s.onBoardTubeCount > 0 {
		s.onBoardTubeCount--
	}
	s.completedTubeCount++

	out := sample.clone()
	listener := s.resultListener
	s.mu.Unlock()

	s.logger.Info("state", "sample_completed", "sample result generated", map[string]any{"sample_id": sampleID})

	if listener != nil {
		listener(out)
	}
	return true
}

// GetHealth returns a deep copy of the current health snapshot.
func (s *Store) GetHealth() HealthSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HealthSnapshot{
		AutomationInterfaceStatus: s.automationInterfaceStatus,
		InstrumentProcessStatus:   s.instrumentProcessStatus,
		LISConnectionStatus:       s.lisConnectionStatus,
		InterfacePositions:        s.interfacePositions,
		RemoteControlStatus:       append([]uint8(nil), s.remoteControlStatus...),
		LockOwnership:             append([]uint8(nil), s.lockOwnership...),
		ProcessingBacklog:         s.processingBacklog,
		SampleAcquisitionDelay:    s.sampleAcquisitionDelay,
		OnBoardTubeCount:          s.onBoardTubeCount,
		CompletedTubeCount:        s.completedTubeCount,
	}
}

func (s *Store) UpdateAutomationInterfaceStatus(v uint8) {
	s.mu.Lock()
	s.automationInterfaceStatus = v
	s.mu.Unlock()
}

func (s *Store) UpdateInstrumentProcessStatus(v uint8) {
	s.mu.Lock()
	s.instrumentProcessStatus = v
	s.mu.Unlock()
}

func (s *Store) UpdateLISConnectionStatus(v uint8) {
	s.mu.Lock()
	s.lisConnectionStatus = v
	s.mu.Unlock()
}

// UpdateRemoteControlStatus sets the interface position's remote control
// status. It reports false, leaving state unchanged, if index is out of
// range for the configured interface position count.
func (s *Store) UpdateRemoteControlStatus(index int, v uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.remoteControlStatus) {
		return false
	}
	s.remoteControlStatus[index] = v
	return true
}

// UpdateLockOwnership sets the interface position's lock owner. It reports
// false, leaving state unchanged, if index is out of range.
func (s *Store) UpdateLockOwnership(index int, v uint8) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.lockOwnership) {
		return false
	}
	s.lockOwnership[index] = v
	return true
}

// UpdateProcessingBacklog sets the read/write-only backlog counter the
// operator surface exposes. The store attaches no further semantics to it.
func (s *Store) UpdateProcessingBacklog(v uint16) {
	s.mu.Lock()
	s.processingBacklog = v
	s.mu.Unlock()
}

// UpdateSampleAcquisitionDelay sets the read/write-only acquisition delay
// the operator surface exposes. The store attaches no further semantics to
// it.
func (s *Store) UpdateSampleAcquisitionDelay(v uint16) {
	s.mu.Lock()
	s.sampleAcquisitionDelay = v
	s.mu.Unlock()
}

// GetTestInventory returns the configured low-stock threshold and a
// deep copy of every reagent's count and status, in seed order.
func (s *Store) GetTestInventory() (threshold int, items []TestInventoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items = make([]TestInventoryItem, 0, len(s.testOrder))
	for _, name := range s.testOrder {
		items = append(items, *s.testInventory[name])
	}
	return s.testThreshold, items
}

// UpdateTestInventory sets count and/or status for a named reagent. A nil
// pointer leaves that field unchanged. When count is supplied without an
// explicit status, status is derived from count against the store's
// threshold (0 → red, below threshold → yellow, at or above → green); an
// explicit status always wins. It reports NotFound for an unknown test
// name.
func (s *Store) UpdateTestInventory(name string, count *int, status *int) LookupOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.testInventory[name]
	if !ok {
		return NotFound
	}
	if count != nil {
		item.Count = *count
		if status == nil {
			item.Status = derivedStatus(*count, s.testThreshold)
		}
	}
	if status != nil {
		item.Status = *status
	}
	return Found
}

func derivedStatus(count, threshold int) int {
	switch {
	case count <= 0:
		return 3
	case count < threshold:
		return 2
	default:
		return 1
	}
}

// GetConsumableInventory returns a deep copy of every module's consumables,
// in seed order.
func (s *Store) GetConsumableInventory() []Module {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Module, 0, len(s.moduleOrder))
	for _, id := range s.moduleOrder {
		mod := s.modules[id]
		out = append(out, Module{ID: mod.ID, Consumables: append([]Consumable(nil), mod.Consumables...)})
	}
	return out
}

// UpdateConsumable sets a single consumable's status within a module. It
// reports NotFound if the module or consumable id is unknown.
func (s *Store) UpdateConsumable(moduleID string, consumableID uint8, status uint8) LookupOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	mod, ok := s.modules[moduleID]
	if !ok {
		return NotFound
	}
	for i := range mod.Consumables {
		if mod.Consumables[i].ID == consumableID {
			mod.Consumables[i].Status = status
			return Found
		}
	}
	return NotFound
}

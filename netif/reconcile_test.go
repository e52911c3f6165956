// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package netif

import (
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"
)

// scriptedService returns canned errors for each call, in order. Once
// a script is exhausted, calls succeed. All calls are counted.
type scriptedService struct {
	mu           sync.Mutex
	stopScript   []error
	setScript    []error
	startScript  []error
	stopCalls    int
	setCalls     int
	startCalls   int
	lastAssigned Assignment
}

func (s *scriptedService) Stop(handle *Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	return s.next(&s.stopScript)
}

func (s *scriptedService) SetAssignment(handle *Handle, assignment Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCalls++
	err := s.next(&s.setScript)
	if err == nil {
		s.lastAssigned = assignment
	}
	return err
}

func (s *scriptedService) Start(handle *Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++
	return s.next(&s.startScript)
}

func (s *scriptedService) next(script *[]error) error {
	if len(*script) == 0 {
		return nil
	}
	err := (*script)[0]
	*script = (*script)[1:]
	return err
}

func (s *scriptedService) counts() (stop, set, start int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls, s.setCalls, s.startCalls
}

func testAssignment() Assignment {
	addr := netip.AddrFrom4([4]byte{192, 168, 42, 1})
	return Assignment{Addr: addr, Netmask: DefaultNetmask, Gateway: addr}
}

func fastReconciler(service AddressService) *Reconciler {
	return &Reconciler{
		Service:       service,
		StopInterval:  time.Millisecond,
		SetInterval:   time.Millisecond,
		StartInterval: time.Millisecond,
	}
}

func attachedHandle(name string) *Handle {
	handle := NewHandle(name)
	handle.AttachBackend(discardInput, discardOutput)
	return handle
}

func TestReconcile_CleanPath(t *testing.T) {
	service := &scriptedService{stopScript: []error{ErrAlreadyStopped}}
	reconciler := fastReconciler(service)
	handle := attachedHandle("exposed")
	desired := testAssignment()

	outcome, err := reconciler.Reconcile(handle, desired)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}
	if got := handle.Assignment(); got != desired {
		t.Fatalf("handle assignment = %s, want %s", got, desired)
	}
	if service.lastAssigned != desired {
		t.Fatalf("service saw %s, want %s", service.lastAssigned, desired)
	}

	stop, set, start := service.counts()
	if stop != 1 || set != 1 {
		t.Fatalf("stop=%d set=%d, want 1/1", stop, set)
	}
	if start != 0 {
		t.Fatalf("service started without StartService: start=%d", start)
	}
}

// Conflict on the first two assignment attempts, then success: applied
// through the service after exactly three attempts, no fallback.
func TestReconcile_ConflictThenSuccess(t *testing.T) {
	service := &scriptedService{
		setScript: []error{ErrConflict, ErrConflict},
	}
	reconciler := fastReconciler(service)
	handle := attachedHandle("exposed")

	outcome, err := reconciler.Reconcile(handle, testAssignment())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied", outcome)
	}

	_, set, _ := service.counts()
	if set != 3 {
		t.Fatalf("SetAssignment called %d times, want exactly 3", set)
	}
}

// With the backend never attached, the service path must not be
// touched at all; the link-layer fallback is the only path.
func TestReconcile_UnattachedBackendSkipsService(t *testing.T) {
	service := &scriptedService{}
	reconciler := fastReconciler(service)
	handle := NewHandle("exposed")
	desired := testAssignment()

	outcome, err := reconciler.Reconcile(handle, desired)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if outcome != OutcomeAppliedViaFallback {
		t.Fatalf("outcome = %s, want applied_via_fallback", outcome)
	}
	if got := handle.Assignment(); got != desired {
		t.Fatalf("fallback did not assign: %s", got)
	}

	stop, set, start := service.counts()
	if stop != 0 || set != 0 || start != 0 {
		t.Fatalf("service path must be skipped: stop=%d set=%d start=%d", stop, set, start)
	}
}

// Every assignment attempt conflicts: the retry budget bounds the loop
// and the fallback still addresses the interface.
func TestReconcile_ExhaustedBudgetFallsBack(t *testing.T) {
	conflicts := make([]error, 64)
	for i := range conflicts {
		conflicts[i] = ErrConflict
	}
	service := &scriptedService{setScript: conflicts}
	reconciler := fastReconciler(service)
	reconciler.SetRetries = 4
	handle := attachedHandle("exposed")
	desired := testAssignment()

	done := make(chan struct{})
	var outcome Outcome
	var reconcileErr error
	go func() {
		defer close(done)
		outcome, reconcileErr = reconciler.Reconcile(handle, desired)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Reconcile did not terminate within the retry budget")
	}

	if reconcileErr != nil {
		t.Fatalf("Reconcile: %v", reconcileErr)
	}
	if outcome != OutcomeAppliedViaFallback {
		t.Fatalf("outcome = %s, want applied_via_fallback", outcome)
	}
	if got := handle.Assignment(); got != desired {
		t.Fatalf("fallback did not assign: %s", got)
	}

	_, set, _ := service.counts()
	if set != 4 {
		t.Fatalf("SetAssignment called %d times, want the 4-attempt budget", set)
	}
}

func TestReconcile_StopBudgetExhaustionIsNotFatal(t *testing.T) {
	busy := make([]error, 64)
	for i := range busy {
		busy[i] = ErrBusy
	}
	service := &scriptedService{stopScript: busy}
	reconciler := fastReconciler(service)
	reconciler.StopRetries = 3
	handle := attachedHandle("exposed")

	outcome, err := reconciler.Reconcile(handle, testAssignment())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("outcome = %s, want applied despite stop budget exhaustion", outcome)
	}

	stop, _, _ := service.counts()
	if stop != 3 {
		t.Fatalf("Stop called %d times, want the 3-attempt budget", stop)
	}
}

func TestReconcile_StartFailureDoesNotDowngrade(t *testing.T) {
	startFailures := make([]error, 64)
	for i := range startFailures {
		startFailures[i] = errors.New("lease pool unavailable")
	}
	service := &scriptedService{startScript: startFailures}
	reconciler := fastReconciler(service)
	reconciler.StartService = true
	reconciler.StartRetries = 2
	handle := attachedHandle("exposed")
	desired := testAssignment()

	outcome, err := reconciler.Reconcile(handle, desired)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if outcome != OutcomeApplied {
		t.Fatalf("start failure downgraded outcome to %s", outcome)
	}
	if got := handle.Assignment(); got != desired {
		t.Fatalf("interface lost its assignment: %s", got)
	}
}

func TestReconcile_StartConflictTriggersRecoveryStop(t *testing.T) {
	service := &scriptedService{startScript: []error{ErrConflict}}
	reconciler := fastReconciler(service)
	reconciler.StartService = true
	handle := attachedHandle("exposed")

	if _, err := reconciler.Reconcile(handle, testAssignment()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	stop, _, start := service.counts()
	if start != 2 {
		t.Fatalf("Start called %d times, want 2 (conflict then success)", start)
	}
	// One initial stop plus one recovery stop after the start conflict.
	if stop != 2 {
		t.Fatalf("Stop called %d times, want 2", stop)
	}
}

func TestReconcile_NilHandleFails(t *testing.T) {
	reconciler := fastReconciler(&scriptedService{})

	outcome, err := reconciler.Reconcile(nil, testAssignment())
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}
	if !errors.Is(err, ErrNoInterface) {
		t.Fatalf("err = %v, want ErrNoInterface", err)
	}
}

// Randomized conflict sequences must all terminate with a definite
// outcome inside the budget.
func TestReconcile_TerminatesUnderArbitraryConflicts(t *testing.T) {
	scripts := [][]error{
		{},
		{ErrConflict},
		{ErrBusy, ErrConflict, ErrConflict},
		{ErrConflict, errors.New("transient io"), ErrConflict, ErrConflict, ErrConflict, ErrConflict, ErrConflict, ErrConflict},
	}
	for i, script := range scripts {
		service := &scriptedService{setScript: append([]error(nil), script...)}
		reconciler := fastReconciler(service)
		handle := attachedHandle("exposed")

		outcome, err := reconciler.Reconcile(handle, testAssignment())
		if err != nil {
			t.Fatalf("script %d: Reconcile: %v", i, err)
		}
		if outcome != OutcomeApplied && outcome != OutcomeAppliedViaFallback {
			t.Fatalf("script %d: indefinite outcome %s", i, outcome)
		}
	}
}

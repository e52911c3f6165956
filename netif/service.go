// Copyright 2026 The Wifi Adapter Authors
// SPDX-License-Identifier: Apache-2.0

package netif

import (
	"errors"
	"sync"
)

// Sentinel errors for the address service contract. Implementations
// return these (possibly wrapped) so the reconciler can classify
// transient conflicts with errors.Is.
var (
	// ErrBusy means the service could not act right now; the caller
	// may retry.
	ErrBusy = errors.New("address service busy")

	// ErrAlreadyStopped means a stop request found the service not
	// running. The reconciler treats this as success.
	ErrAlreadyStopped = errors.New("address service already stopped")

	// ErrConflict means an assignment was refused because the service
	// has not fully stopped. Inherently racy against the service's
	// background timers; retried with bounded backoff.
	ErrConflict = errors.New("address service not fully stopped")

	// ErrNoBackend means an interface operation required backend
	// callbacks that are not attached.
	ErrNoBackend = errors.New("interface backend not attached")

	// ErrNoInterface means an operation was invoked with no interface
	// handle at all.
	ErrNoInterface = errors.New("no interface handle")
)

// AddressService is the network-configuration service that owns an
// interface's address assignment and lease handout (a DHCP server
// manager, on most platforms). Stop/SetAssignment/Start are not atomic
// against the service's own background work, which is why the
// reconciler exists.
type AddressService interface {
	// Stop halts lease handout on the interface. Returns nil on
	// success, ErrAlreadyStopped if it was not running, or ErrBusy
	// for a transient failure.
	Stop(handle *Handle) error

	// SetAssignment applies a static assignment through the service.
	// Returns ErrConflict while the service is not fully stopped.
	SetAssignment(handle *Handle, assignment Assignment) error

	// Start resumes lease handout. Start failures are never fatal to
	// reconciliation; the interface keeps its address either way.
	Start(handle *Handle) error
}

// StaticAddressService is an AddressService for deployments with no
// lease service: assignments are recorded and the host configures
// itself statically. Stop always reports ErrAlreadyStopped and Start
// is a no-op.
type StaticAddressService struct {
	mu       sync.Mutex
	assigned map[string]Assignment
}

var _ AddressService = (*StaticAddressService)(nil)

// NewStaticAddressService returns an empty static service.
func NewStaticAddressService() *StaticAddressService {
	return &StaticAddressService{assigned: make(map[string]Assignment)}
}

// Stop implements AddressService. There is nothing to stop.
func (s *StaticAddressService) Stop(handle *Handle) error {
	return ErrAlreadyStopped
}

// SetAssignment implements AddressService by recording the assignment.
func (s *StaticAddressService) SetAssignment(handle *Handle, assignment Assignment) error {
	if handle == nil {
		return ErrNoInterface
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned[handle.Name()] = assignment
	return nil
}

// Start implements AddressService as a no-op.
func (s *StaticAddressService) Start(handle *Handle) error {
	return nil
}

// Assigned returns the recorded assignment for an interface name.
func (s *StaticAddressService) Assigned(name string) (Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assignment, ok := s.assigned[name]
	return assignment, ok
}

// Package correlator implements the request/response correlator shared
// by the poller and (eventually) any other outbound-request issuer:
// per-EID instance-id allocation, one-shot response callbacks, and
// mandatory release on response, send failure, or timeout.
package correlator

import (
	"context"
	"errors"
	"sync"

	"github.com/obmc-pldm/pldm/internal/constants"
	"github.com/obmc-pldm/pldm/internal/interfaces"
)

// Errors returned by Correlator methods. Each corresponds to one of the
// named Result variants in the correlator's contract.
var (
	ErrNoFreeSlot       = errors.New("correlator: no free instance id for this eid")
	ErrDuplicateRequest = errors.New("correlator: request already live on this (eid, iid)")
	ErrSendFailed       = errors.New("correlator: transport send failed")
)

// OnResponse is a one-shot callback matched to the (eid, iid) a request
// was registered under. It is invoked at most once, then discarded.
type OnResponse func(data []byte)

type pending struct {
	typ      uint8
	command  uint8
	callback OnResponse
}

// endpointSlots is the per-EID instance-id pool: a bitmap of allocated
// ids plus the live callback for each allocated id.
type endpointSlots struct {
	mu       sync.Mutex
	assigned [constants.MaxInstanceID + 1]bool
	pending  [constants.MaxInstanceID + 1]*pending
}

// Correlator allocates instance ids per EID and matches the next
// response on that (eid, iid) pair to a one-shot callback. Safe for
// concurrent use across EIDs; within a single EID, allocation and the
// pending-callback table are guarded by that EID's mutex. A callback
// itself runs after the mutex is released.
type Correlator struct {
	transport interfaces.Transport
	logger    interfaces.Logger

	mu   sync.Mutex // guards the eids map only, not its contents
	eids map[uint8]*endpointSlots
}

// New constructs a Correlator bound to the given transport. logger may
// be nil.
func New(transport interfaces.Transport, logger interfaces.Logger) *Correlator {
	return &Correlator{
		transport: transport,
		logger:    logger,
		eids:      make(map[uint8]*endpointSlots),
	}
}

func (c *Correlator) slotsFor(eid uint8) *endpointSlots {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.eids[eid]
	if !ok {
		s = &endpointSlots{}
		c.eids[eid] = s
	}
	return s
}

// GetInstanceID returns a free instance id in [0,31] for eid, or
// ErrNoFreeSlot if every id on this EID is currently outstanding. The
// returned id is reserved (marked assigned) but has no callback until
// RegisterRequest is called for it.
func (c *Correlator) GetInstanceID(eid uint8) (uint8, error) {
	s := c.slotsFor(eid)
	s.mu.Lock()
	defer s.mu.Unlock()
	for iid := 0; iid <= constants.MaxInstanceID; iid++ {
		if !s.assigned[iid] {
			s.assigned[iid] = true
			return uint8(iid), nil
		}
	}
	return 0, ErrNoFreeSlot
}

// RegisterRequest installs a one-shot callback matched to (eid, iid) and
// transmits bytes over the transport. iid must already have been
// reserved via GetInstanceID. Returns ErrDuplicateRequest if a callback
// is already live on this (eid, iid) — the id was reserved but a prior
// registration was never matched or released. Returns ErrSendFailed if
// the transport send fails, in which case no callback is installed and
// the caller is responsible for calling MarkFree.
func (c *Correlator) RegisterRequest(ctx context.Context, eid, iid, typ, command uint8, data []byte, onResponse OnResponse) error {
	s := c.slotsFor(eid)

	s.mu.Lock()
	if s.pending[iid] != nil {
		s.mu.Unlock()
		return ErrDuplicateRequest
	}
	s.pending[iid] = &pending{typ: typ, command: command, callback: onResponse}
	s.mu.Unlock()

	if err := c.transport.Send(ctx, eid, data); err != nil {
		if c.logger != nil {
			c.logger.Warn("request send failed", "eid", eid, "iid", iid, "err", err)
		}
		s.mu.Lock()
		s.pending[iid] = nil
		s.mu.Unlock()
		return ErrSendFailed
	}
	return nil
}

// Deliver matches an inbound response to its (eid, iid) pending request
// and invokes its callback exactly once. A response with no matching
// pending request (already freed, wrong type/command, or never
// registered) is discarded silently and reports false — this is the
// expected outcome for a late response arriving after its instance id
// was already reused, per spec.md §4.2.
func (c *Correlator) Deliver(eid, iid, typ, command uint8, data []byte) bool {
	s := c.slotsFor(eid)

	s.mu.Lock()
	p := s.pending[iid]
	if p == nil || p.typ != typ || p.command != command {
		s.mu.Unlock()
		return false
	}
	s.pending[iid] = nil
	s.mu.Unlock()

	p.callback(data)
	return true
}

// MarkFree releases iid on eid, making it available for future
// allocation. Mandatory on response, timeout, or any early-exit path
// from a request cycle; idempotent.
func (c *Correlator) MarkFree(eid, iid uint8) {
	s := c.slotsFor(eid)
	s.mu.Lock()
	s.assigned[iid] = false
	s.pending[iid] = nil
	s.mu.Unlock()
}

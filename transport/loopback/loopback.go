// Package loopback provides an in-memory Transport fixture: a
// simulated terminus per EID that answers requests without any real
// MCTP link, for tests and local demos (spec.md §1 Non-goals excludes a
// real MCTP transport; only this boundary and a fixture implementing it
// live in this module).
package loopback

import (
	"context"
	"sync"

	"github.com/obmc-pldm/pldm/internal/errs"
	"github.com/obmc-pldm/pldm/internal/interfaces"
	"github.com/obmc-pldm/pldm/internal/wire"
)

// RequestHandler simulates a terminus's reaction to one request's raw
// bytes. It returns the raw response bytes to deliver back, and whether
// a response should be delivered at all (Datagram requests get none).
type RequestHandler func(ctx context.Context, requestData []byte) (responseData []byte, hasResponse bool)

// DeliverFunc is how Transport hands a simulated terminus's response
// bytes back to the caller — ordinarily Responder.DeliverResponse.
type DeliverFunc func(eid uint8, data []byte)

type terminus struct {
	mu      sync.RWMutex
	handler RequestHandler
}

// Transport implements interfaces.Transport by dispatching each Send to
// a registered per-EID RequestHandler on its own goroutine, then handing
// the simulated response to DeliverFunc asynchronously — mirroring how a
// real MCTP round trip would never block the sender on the reply.
//
// Per-EID locking (rather than one lock guarding the whole registry)
// lets concurrent sends to different termini proceed without
// contending on each other, the same shape as a sharded in-memory
// backend guards disjoint byte ranges instead of the whole device.
type Transport struct {
	mu      sync.RWMutex
	termini map[uint8]*terminus
	deliver DeliverFunc
}

// New creates a Transport that hands every simulated response to
// deliver. deliver must be safe for concurrent use.
func New(deliver DeliverFunc) *Transport {
	return &Transport{
		termini: make(map[uint8]*terminus),
		deliver: deliver,
	}
}

// RegisterTerminus installs (or replaces) the simulated terminus
// answering requests sent to eid.
func (t *Transport) RegisterTerminus(eid uint8, handler RequestHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if term, ok := t.termini[eid]; ok {
		term.mu.Lock()
		term.handler = handler
		term.mu.Unlock()
		return
	}
	t.termini[eid] = &terminus{handler: handler}
}

// RemoveTerminus uninstalls eid's simulated terminus. Sends to eid fail
// with ErrNoTerminus afterward.
func (t *Transport) RemoveTerminus(eid uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.termini, eid)
}

// ErrNoTerminus is returned by Send when no terminus is registered for
// the given EID.
var ErrNoTerminus = errs.New("loopback.Send", errs.CodeNotReady, "no terminus registered for eid")

// Send implements interfaces.Transport. It looks up eid's simulated
// terminus, runs its handler on a separate goroutine so Send itself
// never blocks on the simulated round trip, and delivers any response
// through the configured DeliverFunc.
func (t *Transport) Send(ctx context.Context, eid uint8, data []byte) error {
	t.mu.RLock()
	term, ok := t.termini[eid]
	t.mu.RUnlock()
	if !ok {
		return ErrNoTerminus
	}

	term.mu.RLock()
	handler := term.handler
	term.mu.RUnlock()
	if handler == nil {
		return ErrNoTerminus
	}

	go func() {
		resp, hasResponse := handler(ctx, data)
		if hasResponse && t.deliver != nil {
			t.deliver(eid, resp)
		}
	}()
	return nil
}

var _ interfaces.Transport = (*Transport)(nil)

// IdleTerminusHandler builds a RequestHandler for a simulated terminus
// with no platform event ever pending: every PollForPlatformEventMessage
// request is acked with EventIDNone, tid identifying the terminus in the
// response. Anything else yields CcUnsupportedPldmCmd.
func IdleTerminusHandler(tid uint8) RequestHandler {
	return func(ctx context.Context, requestData []byte) ([]byte, bool) {
		hdr, err := wire.DecodeHeader(requestData)
		if err != nil || !hdr.Request {
			return nil, false
		}

		if hdr.Type != wire.PldmTypePlatform || hdr.Command != wire.CmdPollForPlatformEventMsg {
			body, err := wire.EncodeResponseHeader(hdr, wire.CcUnsupportedPldmCmd)
			if err != nil {
				return nil, false
			}
			return body, true
		}

		respHdr, err := wire.Header{InstanceID: hdr.InstanceID, Type: hdr.Type, Command: hdr.Command}.Encode()
		if err != nil {
			return nil, false
		}
		resp := &wire.PollForPlatformEventMessageResponse{
			CompletionCode: wire.CcSuccess,
			TID:            tid,
			EventID:        wire.EventIDNone,
			TransferFlag:   wire.TransferStartAndEnd,
		}
		return append(respHdr, resp.Encode()...), true
	}
}

// Package poller implements the per-EID Event Poller: two periodic
// triggers that discover events to poll, a request/response cycle that
// reassembles multi-part platform events, and delivery of completed
// events to the Platform Event Dispatcher (spec.md §4.2).
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/obmc-pldm/pldm/internal/constants"
	"github.com/obmc-pldm/pldm/internal/correlator"
	"github.com/obmc-pldm/pldm/internal/dispatch"
	"github.com/obmc-pldm/pldm/internal/errs"
	"github.com/obmc-pldm/pldm/internal/interfaces"
	"github.com/obmc-pldm/pldm/internal/wire"
)

// state names the per-EID poller's position in its transfer lifecycle.
type state int

const (
	StateIdle state = iota
	StatePolling
	StateReassembling
	StateTerminated
)

func (s state) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePolling:
		return "Polling"
	case StateReassembling:
		return "Reassembling"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// EnqueueResult is returned by EnqueueCritical.
type EnqueueResult int

const (
	EnqueueOk EnqueueResult = iota
	EnqueueFull
	EnqueueDuplicate
)

type enqueueRequest struct {
	eventID uint16
	result  chan EnqueueResult
}

type responseResult struct {
	resp *wire.PollForPlatformEventMessageResponse
	err  error
}

// Config supplies a Poller's collaborators.
type Config struct {
	EID        uint8
	Transport  interfaces.Transport
	Correlator *correlator.Correlator
	Dispatcher *dispatch.Dispatcher
	Logger     interfaces.Logger
	Observer   interfaces.Observer

	// Tunables. Zero values fall back to internal/constants' defaults,
	// which cmd/pldmd overrides from environment variables per
	// spec.md §6 before constructing a Responder.
	NormalTimer       time.Duration
	CriticalTimer     time.Duration
	PollRequestTimer  time.Duration
	PollTimeout       time.Duration
	MaxQueueSize      int
}

// Poller runs the single-goroutine event loop for one EID. All mutable
// state below the Config fields is owned exclusively by that goroutine;
// external callers (EnqueueCritical, response delivery) communicate
// through channels rather than shared memory.
type Poller struct {
	eid        uint8
	transport  interfaces.Transport
	corr       *correlator.Correlator
	dispatcher *dispatch.Dispatcher
	logger     interfaces.Logger
	observer   interfaces.Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	enqueueCh  chan enqueueRequest
	responseCh chan responseResult

	// Loop-owned state from here down.
	state state

	normalQueue   []uint16
	criticalQueue []uint16

	isProcessPolling  bool
	isPolling         bool
	responseReceived  bool
	isCritical        bool
	awaitingFinalAck  bool

	operationFlag      uint8
	dataTransferHandle uint32
	eventIDToAck       uint16
	instanceID         uint8

	normalTimerPeriod   time.Duration
	criticalTimerPeriod time.Duration
	pollRequestPeriod   time.Duration
	pollTimeoutPeriod   time.Duration
	maxQueueSize        int

	recvEventClass uint8
	recvTotalSize  uint32
	recvBuf        *bytebufferpool.ByteBuffer

	pollRequestTimer *time.Timer
	pollTimeoutTimer *time.Timer
}

func durationOrDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

// New constructs a Poller for one EID. Call Start to launch its loop.
func New(cfg Config) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	maxQueue := cfg.MaxQueueSize
	if maxQueue <= 0 {
		maxQueue = constants.MaxQueueSize
	}
	return &Poller{
		eid:        cfg.EID,
		transport:  cfg.Transport,
		corr:       cfg.Correlator,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		observer:   cfg.Observer,
		ctx:        ctx,
		cancel:     cancel,
		enqueueCh:  make(chan enqueueRequest),
		responseCh: make(chan responseResult, 1),
		state:      StateIdle,

		normalTimerPeriod:   durationOrDefault(cfg.NormalTimer, constants.NormalRasEventTimer),
		criticalTimerPeriod: durationOrDefault(cfg.CriticalTimer, constants.CriticalRasEventTimer),
		pollRequestPeriod:   durationOrDefault(cfg.PollRequestTimer, constants.PollRequestEventTimer),
		pollTimeoutPeriod:   durationOrDefault(cfg.PollTimeout, constants.PollTimeout()),
		maxQueueSize:        maxQueue,
	}
}

// Start launches the poller's event loop goroutine.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
}

// Close stops the poller's loop and releases its resources. Safe to
// call once; blocks until the loop goroutine has exited.
func (p *Poller) Close() {
	p.cancel()
	p.wg.Wait()
	if p.recvBuf != nil {
		bytebufferpool.Put(p.recvBuf)
		p.recvBuf = nil
	}
}

// EnqueueCritical admits event_id to the critical queue, per spec.md
// §4.2's admission rule: Full when the queue already holds more than
// MaxQueueSize entries, Duplicate when event_id is already queued, Ok
// otherwise (appended to the tail).
func (p *Poller) EnqueueCritical(eventID uint16) EnqueueResult {
	req := enqueueRequest{eventID: eventID, result: make(chan EnqueueResult, 1)}
	select {
	case p.enqueueCh <- req:
	case <-p.ctx.Done():
		return EnqueueFull
	}
	select {
	case res := <-req.result:
		return res
	case <-p.ctx.Done():
		return EnqueueFull
	}
}

// State reports the poller's current state, for observability/tests.
func (p *Poller) State() state {
	return p.state
}

func (p *Poller) run() {
	defer p.wg.Done()

	normalTimer := time.NewTicker(p.normalTimerPeriod)
	criticalTimer := time.NewTicker(p.criticalTimerPeriod)
	defer normalTimer.Stop()
	defer criticalTimer.Stop()

	for {
		var pollReqC, pollTimeoutC <-chan time.Time
		if p.pollRequestTimer != nil {
			pollReqC = p.pollRequestTimer.C
		}
		if p.pollTimeoutTimer != nil {
			pollTimeoutC = p.pollTimeoutTimer.C
		}

		select {
		case <-p.ctx.Done():
			return

		case req := <-p.enqueueCh:
			req.result <- p.handleEnqueueCritical(req.eventID)

		case <-normalTimer.C:
			p.handleNormalTimer()

		case <-criticalTimer.C:
			p.handleCriticalTimer()

		case res := <-p.responseCh:
			p.handleResponse(res)

		case <-pollReqC:
			p.pollRequestTimer = nil
			p.handlePollRequestTimer()

		case <-pollTimeoutC:
			p.pollTimeoutTimer = nil
			p.handlePollTimeout()
		}
	}
}

func (p *Poller) handleEnqueueCritical(eventID uint16) EnqueueResult {
	for _, id := range p.criticalQueue {
		if id == eventID {
			if p.observer != nil {
				p.observer.ObserveQueueRejected(p.eid, false)
			}
			return EnqueueDuplicate
		}
	}
	if len(p.criticalQueue) > p.maxQueueSize {
		if p.observer != nil {
			p.observer.ObserveQueueRejected(p.eid, true)
		}
		return EnqueueFull
	}
	p.criticalQueue = append(p.criticalQueue, eventID)
	return EnqueueOk
}

func (p *Poller) handleNormalTimer() {
	if p.state != StateIdle || p.isCritical {
		return
	}
	probe := uint16(wire.EventIDNone)
	p.startPoll(&probe, false)
}

func (p *Poller) handleCriticalTimer() {
	if p.state != StateIdle || len(p.criticalQueue) == 0 {
		return
	}
	head := p.criticalQueue[0]
	p.criticalQueue = p.criticalQueue[1:]
	p.startPoll(&head, true)
}

// startPoll begins a new transfer: probe (eventID=0, normal) or a
// specific critical event id. critical selects which queue/flag this
// cycle is attributed to for the concurrency invariant in spec.md §5
// ("critical only defers when a poll is in flight").
func (p *Poller) startPoll(eventID *uint16, critical bool) {
	if p.recvBuf == nil {
		p.recvBuf = bytebufferpool.Get()
	}
	p.recvBuf.Reset()
	p.recvEventClass = 0
	p.recvTotalSize = 0
	p.operationFlag = wire.OperationGetFirstPart
	p.dataTransferHandle = 0
	p.eventIDToAck = *eventID
	p.isCritical = critical
	p.isProcessPolling = true
	p.awaitingFinalAck = false

	if p.observer != nil {
		p.observer.ObservePollIssued(p.eid, critical)
	}

	p.sendPollRequest()
}

// sendPollRequest transmits the current operationFlag/dataTransferHandle
// as a new pollForPlatformEventMessage request, using a freshly
// allocated instance id. Any failure along this path ends the cycle via
// reset() — encode errors, allocation exhaustion, and transport send
// failures are all "silently retry on the next timer tick" per spec.md
// §4.2's failure semantics.
func (p *Poller) sendPollRequest() {
	iid, err := p.corr.GetInstanceID(p.eid)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("poller: no free instance id", "eid", p.eid)
		}
		p.reset()
		return
	}
	p.instanceID = iid

	req := &wire.PollForPlatformEventMessageRequest{
		FormatVersion:         1,
		TransferOperationFlag: p.operationFlag,
		DataTransferHandle:    p.dataTransferHandle,
	}
	hdr := wire.Header{
		Request:    true,
		InstanceID: iid,
		Type:       wire.PldmTypePlatform,
		Command:    wire.CmdPollForPlatformEventMsg,
	}
	hdrBytes, err := hdr.Encode()
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("poller: header encode failed", "eid", p.eid, "err", err)
		}
		p.reset()
		return
	}
	data := append(hdrBytes, req.Encode()...)

	p.responseReceived = false
	p.isPolling = true
	p.state = StatePolling

	err = p.corr.RegisterRequest(p.ctx, p.eid, iid, wire.PldmTypePlatform, wire.CmdPollForPlatformEventMsg, data, p.onResponse)
	if err != nil {
		if p.logger != nil {
			p.logger.Warn("poller: send failed", "eid", p.eid, "err", err)
		}
		p.reset()
		return
	}

	p.armPollTimeout()
}

// onResponse runs on whatever goroutine delivers the inbound response
// (via correlator.Deliver); it only decodes and forwards, keeping all
// state mutation on the loop goroutine.
func (p *Poller) onResponse(data []byte) {
	resp, err := decodeResponse(data)
	select {
	case p.responseCh <- responseResult{resp: resp, err: err}:
	case <-p.ctx.Done():
	}
}

func decodeResponse(data []byte) (*wire.PollForPlatformEventMessageResponse, error) {
	if len(data) < 10 {
		return nil, errs.New("pollForPlatformEventMessage", errs.CodeDecodeFailed, "response too short")
	}
	hasChecksum := data[9] == wire.TransferEnd
	resp, err := wire.DecodePollForPlatformEventMessageResponse(data, hasChecksum)
	if err != nil {
		return nil, errs.Wrap("pollForPlatformEventMessage", errs.CodeDecodeFailed, err)
	}
	return resp, nil
}

func (p *Poller) handlePollRequestTimer() {
	if p.state == StateIdle {
		return
	}
	p.sendPollRequest()
}

func (p *Poller) handlePollTimeout() {
	if p.responseReceived {
		return
	}
	if p.observer != nil {
		p.observer.ObservePollTimeout(p.eid)
	}
	if p.logger != nil {
		p.logger.Warn("poller: poll timeout", "eid", p.eid)
	}
	p.reset()
}

func (p *Poller) handleResponse(res responseResult) {
	p.corr.MarkFree(p.eid, p.instanceID)
	p.cancelPollTimeout()
	p.isPolling = false

	if res.err != nil {
		if p.logger != nil {
			p.logger.Warn("poller: decode failed", "eid", p.eid, "err", res.err)
		}
		p.reset()
		return
	}
	resp := res.resp

	if p.awaitingFinalAck {
		// The ack's own response content carries nothing this poller
		// needs; its arrival just means the transfer is fully closed.
		p.reset()
		return
	}

	if resp.CompletionCode != wire.CcSuccess {
		if p.logger != nil {
			p.logger.Warn("poller: response error", "eid", p.eid, "completion_code", resp.CompletionCode)
		}
		p.reset()
		return
	}

	if resp.EventID == wire.EventIDNone || resp.EventID == wire.EventIDTerminate {
		p.reset()
		return
	}
	if p.eventIDToAck != 0 && resp.EventID != p.eventIDToAck {
		if p.logger != nil {
			p.logger.Warn("poller: event id mismatch", "eid", p.eid, "expected", p.eventIDToAck, "got", resp.EventID)
		}
		p.reset()
		return
	}
	if p.eventIDToAck == 0 {
		p.eventIDToAck = resp.EventID
	}
	p.responseReceived = true

	if (resp.TransferFlag == wire.TransferMiddle || resp.TransferFlag == wire.TransferEnd) && p.dataTransferHandle != p.recvTotalSize {
		if p.logger != nil {
			p.logger.Warn("poller: non-monotonic data transfer handle", "eid", p.eid, "handle", p.dataTransferHandle, "expected", p.recvTotalSize)
		}
		p.reset()
		return
	}

	switch resp.TransferFlag {
	case wire.TransferStart:
		if !p.insertAt(0, resp.EventData) {
			return
		}
		p.recvEventClass = resp.EventClass
		p.recvTotalSize = uint32(len(resp.EventData))
		p.state = StateReassembling
		p.dataTransferHandle = resp.NextDataTransferHandle
		p.operationFlag = wire.OperationGetNextPart
		p.armPollRequestTimer()

	case wire.TransferMiddle:
		if !p.insertAt(p.dataTransferHandle, resp.EventData) {
			return
		}
		p.recvTotalSize += uint32(len(resp.EventData))
		p.state = StateReassembling
		p.dataTransferHandle = resp.NextDataTransferHandle
		p.operationFlag = wire.OperationGetNextPart
		p.armPollRequestTimer()

	case wire.TransferEnd:
		if !p.insertAt(p.dataTransferHandle, resp.EventData) {
			return
		}
		p.recvTotalSize += uint32(len(resp.EventData))
		p.completeWithCRCCheck(resp)

	case wire.TransferStartAndEnd:
		if !p.insertAt(0, resp.EventData) {
			return
		}
		p.recvEventClass = resp.EventClass
		p.recvTotalSize = uint32(len(resp.EventData))
		p.completeWithoutCRCCheck(resp)

	default:
		if p.logger != nil {
			p.logger.Warn("poller: unknown transfer flag", "eid", p.eid, "flag", resp.TransferFlag)
		}
		p.reset()
	}
}

// insertAt writes data into the receive buffer at offset, growing it as
// needed; positional, never append — per spec.md §4.2's reassembly
// semantics. Bounded by MaxEventSize to cap a misbehaving terminus's
// advertised handles: past that bound it resets the cycle and reports
// false.
func (p *Poller) insertAt(offset uint32, data []byte) bool {
	end := int(offset) + len(data)
	if end > constants.MaxEventSize {
		if p.logger != nil {
			p.logger.Warn("poller: event exceeds max size, dropping", "eid", p.eid, "size", end)
		}
		p.reset()
		return false
	}
	if end > len(p.recvBuf.B) {
		if end > cap(p.recvBuf.B) {
			grown := make([]byte, end)
			copy(grown, p.recvBuf.B)
			p.recvBuf.B = grown
		} else {
			p.recvBuf.B = p.recvBuf.B[:end]
		}
	}
	copy(p.recvBuf.B[offset:end], data)
	return true
}

// completeWithCRCCheck handles an END-terminated transfer: the handler
// is invoked only if the trailing checksum matches; either way the
// transfer ends cleanly with an ack.
func (p *Poller) completeWithCRCCheck(resp *wire.PollForPlatformEventMessageResponse) {
	payload := append([]byte(nil), p.recvBuf.B...)
	if wire.Checksum(payload) != resp.Checksum {
		if p.observer != nil {
			p.observer.ObserveChecksumMismatch(p.eid)
		}
		if p.logger != nil {
			p.logger.Warn("poller: checksum mismatch, dropping event", "eid", p.eid)
		}
	} else {
		p.deliver(resp, payload)
	}
	p.finishWithAck()
}

// completeWithoutCRCCheck handles a START_AND_END transfer: no CRC is
// carried or checked, per spec.md §3.
func (p *Poller) completeWithoutCRCCheck(resp *wire.PollForPlatformEventMessageResponse) {
	payload := append([]byte(nil), p.recvBuf.B...)
	p.deliver(resp, payload)
	p.finishWithAck()
}

func (p *Poller) deliver(resp *wire.PollForPlatformEventMessageResponse, payload []byte) {
	if p.dispatcher != nil {
		if err := p.dispatcher.Dispatch(p.ctx, p.eid, resp.TID, p.recvEventClass, payload); err != nil {
			if p.logger != nil {
				p.logger.Warn("poller: dispatch failed", "eid", p.eid, "err", err)
			}
		}
	}
	if p.observer != nil {
		p.observer.ObserveEventDelivered(p.eid, p.recvEventClass, len(payload))
	}
}

// finishWithAck issues one further AcknowledgementOnly request to close
// the transfer, per spec.md §4.2; the poller returns to Idle once that
// request's response (or timeout) lands.
func (p *Poller) finishWithAck() {
	p.operationFlag = wire.OperationAcknowledgeOnly
	p.awaitingFinalAck = true
	p.state = StateReassembling
	p.armPollRequestTimer()
}

func (p *Poller) armPollRequestTimer() {
	if p.pollRequestTimer != nil {
		p.pollRequestTimer.Stop()
	}
	p.pollRequestTimer = time.NewTimer(p.pollRequestPeriod)
}

func (p *Poller) armPollTimeout() {
	if p.pollTimeoutTimer != nil {
		p.pollTimeoutTimer.Stop()
	}
	p.pollTimeoutTimer = time.NewTimer(p.pollTimeoutPeriod)
}

func (p *Poller) cancelPollTimeout() {
	if p.pollTimeoutTimer != nil {
		p.pollTimeoutTimer.Stop()
		p.pollTimeoutTimer = nil
	}
}

// reset clears all per-transfer state and returns the poller to Idle.
// Mandatory on timeout, decode failure, termination sentinel, or any
// send-path failure.
func (p *Poller) reset() {
	p.corr.MarkFree(p.eid, p.instanceID)
	if p.pollRequestTimer != nil {
		p.pollRequestTimer.Stop()
		p.pollRequestTimer = nil
	}
	p.cancelPollTimeout()

	p.isPolling = false
	p.isProcessPolling = false
	p.isCritical = false
	p.responseReceived = false
	p.awaitingFinalAck = false
	p.eventIDToAck = 0
	p.operationFlag = 0
	p.dataTransferHandle = 0
	p.recvEventClass = 0
	p.recvTotalSize = 0
	if p.recvBuf != nil {
		p.recvBuf.Reset()
	}
	p.state = StateIdle
}

package pldm

import (
	"context"
	"sync"

	"github.com/obmc-pldm/pldm/internal/bios"
	"github.com/obmc-pldm/pldm/internal/correlator"
	"github.com/obmc-pldm/pldm/internal/dispatch"
	"github.com/obmc-pldm/pldm/internal/interfaces"
	"github.com/obmc-pldm/pldm/internal/logging"
	"github.com/obmc-pldm/pldm/internal/pdr"
	"github.com/obmc-pldm/pldm/internal/poller"
	"github.com/obmc-pldm/pldm/internal/wire"
)

// Params configures a new Responder.
type Params struct {
	// Transport carries PLDM request bytes to, and response/event bytes
	// from, every endpoint this Responder talks to.
	Transport interfaces.Transport

	// PDRDirectory, if non-empty, seeds the shared PDR repository from
	// the JSON descriptor layout internal/pdr.BuildFromDirectory reads.
	PDRDirectory string

	// TerminusLocator overrides the compiled-in terminus identity used
	// to seed the terminus-locator PDR. Zero value uses
	// internal/constants' defaults (spec.md §6's TERMINUS_HANDLE/
	// TERMINUS_ID/BMC_MCTP_EID).
	TerminusLocator *pdr.TerminusLocatorPDR

	// BIOSDirectory, if non-empty, seeds the shared BIOS attribute
	// registry from internal/bios.SetupFromFiles' JSON layout.
	BIOSDirectory string

	// DBusReader resolves BIOS enum attributes' live values. May be nil.
	DBusReader bios.DBusReader

	// OnWatchdogReset performs the side effect of a HeartbeatTimerElapsed
	// event (spec.md §4.4). May be nil.
	OnWatchdogReset dispatch.WatchdogResetCallback

	// OnStateSensor is invoked once a validated StateSensorState sensor
	// event has been matched to its PDR. May be nil.
	OnStateSensor dispatch.StateSensorCallback

	// OnPdrFetch schedules a host PDR fetch for the given handles
	// (RecordsAdded/RecordsModified). May be nil.
	OnPdrFetch dispatch.PdrFetchCallback

	// OnRefresh triggers a full PDR refetch for a terminus, after its
	// local records have been removed by RefreshEntireRepository. May be
	// nil.
	OnRefresh dispatch.RefreshCallback

	// Poller tunables, passed straight through to every poller.Config
	// this Responder creates. Zero values use internal/constants'
	// compiled-in defaults.
	PollerTunables poller.Config
}

// Options carries cross-cutting collaborators that aren't part of a
// Responder's wiring decisions: context, logger, observer.
type Options struct {
	Context  context.Context
	Logger   *logging.Logger
	Observer interfaces.Observer
}

// Responder owns the shared correlator, PDR repository, BIOS registry,
// and dispatcher, plus one Poller per added endpoint.
type Responder struct {
	transport  interfaces.Transport
	logger     *logging.Logger
	metrics    *Metrics
	observer   interfaces.Observer
	corr       *correlator.Correlator
	dispatcher *dispatch.Dispatcher
	repo       *pdr.Repository
	biosReg    *bios.Registry

	pollerTunables poller.Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pollers map[uint8]*poller.Poller
}

// NewResponder constructs a Responder: it builds the shared PDR
// repository and BIOS registry (optionally seeded from disk), wires the
// Platform Event Dispatcher's built-in handler chains, and prepares the
// correlator every endpoint's Poller will share. It does not add any
// endpoints; call AddEndpoint once a terminus is discovered.
func NewResponder(ctx context.Context, params Params, options *Options) (*Responder, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if options == nil {
		options = &Options{}
	}
	if options.Context != nil {
		ctx = options.Context
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Default()
	}

	metrics := NewMetrics()
	var observer interfaces.Observer = NoOpObserver{}
	if options.Observer != nil {
		observer = options.Observer
	} else {
		observer = NewMetricsObserver(metrics)
	}

	repo := pdr.New()
	if params.PDRDirectory != "" {
		var err error
		if params.TerminusLocator != nil {
			err = pdr.BuildFromDirectoryWithLocator(repo, params.PDRDirectory, *params.TerminusLocator, logger)
		} else {
			err = pdr.BuildFromDirectory(repo, params.PDRDirectory, logger)
		}
		if err != nil {
			return nil, WrapError("NewResponder", CodeInternalFailure, err)
		}
	}

	registry := bios.New(params.DBusReader)
	if params.BIOSDirectory != "" {
		count, err := bios.SetupFromFiles(registry, params.BIOSDirectory, logger)
		if err != nil {
			return nil, WrapError("NewResponder", CodeInternalFailure, err)
		}
		if count == -1 {
			logger.Warn("BIOS attribute registry is empty after ingestion", "dir", params.BIOSDirectory)
		}
	}

	// Forward-declared so the PldmMessagePoll handler can enqueue onto
	// r's own pollers; the handler is only ever invoked after New
	// returns, once r is fully built.
	var r *Responder

	dispatcher := dispatch.New(dispatch.Config{
		Repo:            repo,
		Observer:        observer,
		Logger:          logger,
		OnWatchdogReset: params.OnWatchdogReset,
		OnStateSensor:   params.OnStateSensor,
		OnPollEvent: func(eid uint8, eventID uint16, dataTransferHandle uint32) {
			if r != nil {
				_, _ = r.EnqueueCriticalEvent(eid, eventID)
			}
		},
		OnPdrFetch: params.OnPdrFetch,
		OnRefresh:  params.OnRefresh,
	})

	corr := correlator.New(params.Transport, logger)

	rctx, cancel := context.WithCancel(ctx)
	r = &Responder{
		transport:      params.Transport,
		logger:         logger,
		metrics:        metrics,
		observer:       observer,
		corr:           corr,
		dispatcher:     dispatcher,
		repo:           repo,
		biosReg:        registry,
		pollerTunables: params.PollerTunables,
		ctx:            rctx,
		cancel:         cancel,
		pollers:        make(map[uint8]*poller.Poller),
	}
	return r, nil
}

// AddEndpoint materializes a Poller for eid and starts it. It plays the
// role of the MCTP endpoint-added signal handler, spec.md §4.6.
func (r *Responder) AddEndpoint(eid uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pollers[eid]; exists {
		return ErrEndpointExists
	}

	cfg := r.pollerTunables
	cfg.EID = eid
	cfg.Transport = r.transport
	cfg.Correlator = r.corr
	cfg.Dispatcher = r.dispatcher
	cfg.Logger = r.logger.Named("poller")
	cfg.Observer = r.observer

	p := poller.New(cfg)
	p.Start()
	r.pollers[eid] = p
	return nil
}

// RemoveEndpoint stops and discards eid's Poller, if one is active.
func (r *Responder) RemoveEndpoint(eid uint8) error {
	r.mu.Lock()
	p, exists := r.pollers[eid]
	if exists {
		delete(r.pollers, eid)
	}
	r.mu.Unlock()

	if !exists {
		return ErrEndpointNotFound
	}
	p.Close()
	return nil
}

// EnqueueCriticalEvent admits eventID to eid's critical queue. See
// poller.EnqueueResult for the possible outcomes.
func (r *Responder) EnqueueCriticalEvent(eid uint8, eventID uint16) (poller.EnqueueResult, error) {
	r.mu.Lock()
	p, exists := r.pollers[eid]
	r.mu.Unlock()
	if !exists {
		return poller.EnqueueFull, ErrEndpointNotFound
	}
	return p.EnqueueCritical(eventID), nil
}

// DeliverResponse routes an inbound response frame to the correlator.
// The caller (the concrete transport's receive loop) is responsible for
// recognizing that header.Request is false before calling this.
func (r *Responder) DeliverResponse(eid uint8, header wire.Header, body []byte) bool {
	return r.corr.Deliver(eid, header.InstanceID, header.Type, header.Command, body)
}

// DeliverPlatformEventMessage decodes and dispatches an unsolicited
// PlatformEventMessage request a terminus pushed directly to this
// responder (as opposed to an event discovered by polling), and returns
// the completion-code response body to send back.
func (r *Responder) DeliverPlatformEventMessage(ctx context.Context, eid uint8, body []byte) []byte {
	req, err := wire.DecodePlatformEventMessageRequest(body)
	if err != nil {
		return (&wire.PlatformEventMessageResponse{CompletionCode: wire.CcInvalidLength}).Encode()
	}

	if err := r.dispatcher.Dispatch(ctx, eid, req.TID, req.EventClass, req.EventData); err != nil {
		cc := CompletionCodeFor(CodeOf(err))
		return (&wire.PlatformEventMessageResponse{CompletionCode: cc}).Encode()
	}
	return (&wire.PlatformEventMessageResponse{CompletionCode: wire.CcSuccess}).Encode()
}

// DeliverGetPDR decodes and serves a GetPDR request against the shared
// PDR repository, spec.md §4.3/§8 scenario 7. A miss on RecordHandle
// responds with CcInvalidRecordHandle and no payload beyond the
// completion code; a hit serves the record's raw bytes and its
// successor handle for continued multi-part transfer.
func (r *Responder) DeliverGetPDR(ctx context.Context, eid uint8, body []byte) []byte {
	req, err := wire.DecodeGetPDRRequest(body)
	if err != nil {
		return (&wire.GetPDRResponse{CompletionCode: wire.CcInvalidLength}).Encode()
	}

	rec, ok := r.repo.GetByHandle(req.RecordHandle)
	if !ok {
		return (&wire.GetPDRResponse{CompletionCode: CompletionCodeFor(CodeInvalidRecordHandle)}).Encode()
	}

	return (&wire.GetPDRResponse{
		CompletionCode:   wire.CcSuccess,
		NextRecordHandle: rec.NextHandle,
		TransferFlag:     wire.TransferStartAndEnd,
		RecordData:       rec.RecordData,
	}).Encode()
}

// Repository returns the shared PDR repository, for GetPDR handling.
func (r *Responder) Repository() *pdr.Repository { return r.repo }

// BIOSRegistry returns the shared BIOS attribute registry.
func (r *Responder) BIOSRegistry() *bios.Registry { return r.biosReg }

// Metrics returns the Responder's metrics instance.
func (r *Responder) Metrics() *Metrics { return r.metrics }

// MetricsSnapshot returns a point-in-time snapshot of the Responder's
// metrics.
func (r *Responder) MetricsSnapshot() MetricsSnapshot {
	if r.metrics == nil {
		return MetricsSnapshot{}
	}
	return r.metrics.Snapshot()
}

// Close stops every active endpoint's Poller and releases the
// Responder's resources.
func (r *Responder) Close() error {
	r.cancel()
	if r.metrics != nil {
		r.metrics.Stop()
	}

	r.mu.Lock()
	pollers := r.pollers
	r.pollers = make(map[uint8]*poller.Poller)
	r.mu.Unlock()

	for _, p := range pollers {
		p.Close()
	}
	return nil
}

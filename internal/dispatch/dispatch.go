// Package dispatch implements the Platform Event Dispatcher: decoding
// PlatformEventMessage bodies and routing them, by event class, through
// an ordered chain of handlers (spec.md §4.4).
package dispatch

import (
	"context"

	"github.com/obmc-pldm/pldm/internal/constants"
	"github.com/obmc-pldm/pldm/internal/errs"
	"github.com/obmc-pldm/pldm/internal/interfaces"
	"github.com/obmc-pldm/pldm/internal/pdr"
	"github.com/obmc-pldm/pldm/internal/wire"
)

// Handler processes one event's class-specific payload. Returning a
// non-nil error aborts the remainder of its class's chain; the error is
// returned to the dispatcher's caller (ultimately surfaced as a
// completion code).
type Handler func(ctx context.Context, eid, tid uint8, eventData []byte) error

// StateSensorCallback is invoked once a StateSensorState sensor event
// has been validated against its PDR.
type StateSensorCallback func(containerID, entityType, entityInstance uint16, sensorOffset, eventState uint8)

// PollEventCallback is invoked when a PldmMessagePoll event arrives; the
// Event Poller observes this to enqueue the advertised event id.
type PollEventCallback func(eid uint8, eventID uint16, dataTransferHandle uint32)

// PdrFetchCallback schedules a host PDR fetch for the given handles
// (RecordsAdded/RecordsModified).
type PdrFetchCallback func(handles []uint32)

// RefreshCallback triggers a full PDR refetch for the given terminus id
// (RefreshEntireRepository), after local records for that terminus have
// been removed.
type RefreshCallback func(tid uint8)

// WatchdogResetCallback performs the OEM watchdog reset side effect of
// a HeartbeatTimerElapsed event.
type WatchdogResetCallback func()

// Dispatcher holds the event-class → handler-chain table and the
// built-in handlers' collaborators.
type Dispatcher struct {
	repo     *pdr.Repository
	observer interfaces.Observer
	logger   interfaces.Logger

	chains map[uint8][]Handler
}

// Config supplies the built-in handlers' side-effect callbacks. Any
// callback left nil is treated as a no-op.
type Config struct {
	Repo           *pdr.Repository
	Observer       interfaces.Observer
	Logger         interfaces.Logger
	OnWatchdogReset WatchdogResetCallback
	OnStateSensor   StateSensorCallback
	OnPollEvent     PollEventCallback
	OnPdrFetch      PdrFetchCallback
	OnRefresh       RefreshCallback
}

// New constructs a Dispatcher with the four built-in event-class chains
// installed, per spec.md §4.4's table.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		repo:     cfg.Repo,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		chains:   make(map[uint8][]Handler),
	}

	d.RegisterHandler(wire.EventClassHeartbeatTimerElapsed, heartbeatHandler(cfg.OnWatchdogReset))
	d.RegisterHandler(wire.EventClassSensorEvent, d.sensorEventHandler(cfg.OnStateSensor))
	d.RegisterHandler(wire.EventClassPldmMessagePoll, pollEventHandler(cfg.OnPollEvent))
	d.RegisterHandler(wire.EventClassPdrRepositoryChg, d.pdrRepositoryChgHandler(cfg.OnPdrFetch, cfg.OnRefresh))

	return d
}

// RegisterHandler appends handler to the end of class's chain. Order of
// registration is the order of invocation.
func (d *Dispatcher) RegisterHandler(class uint8, handler Handler) {
	d.chains[class] = append(d.chains[class], handler)
}

// Dispatch decodes nothing itself beyond routing: it runs eventData
// through class's handler chain in order, stopping at the first error.
// A class with no registered chain fails with CodeInvalidData.
func (d *Dispatcher) Dispatch(ctx context.Context, eid, tid, class uint8, eventData []byte) error {
	chain, ok := d.chains[class]
	if !ok {
		return errs.New("PlatformEventMessage", errs.CodeInvalidData, "unknown event class")
	}
	for _, h := range chain {
		if err := h(ctx, eid, tid, eventData); err != nil {
			return err
		}
	}
	return nil
}

func heartbeatHandler(onReset WatchdogResetCallback) Handler {
	return func(ctx context.Context, eid, tid uint8, eventData []byte) error {
		if onReset != nil {
			onReset()
		}
		return nil
	}
}

func pollEventHandler(onPoll PollEventCallback) Handler {
	return func(ctx context.Context, eid, tid uint8, eventData []byte) error {
		p, err := wire.DecodePldmMessagePollEventData(eventData)
		if err != nil {
			return errs.Wrap("PldmMessagePoll", errs.CodeDecodeFailed, err)
		}
		if onPoll != nil {
			onPoll(eid, p.EventID, p.DataTransferHandle)
		}
		return nil
	}
}

func (d *Dispatcher) sensorEventHandler(onStateSensor StateSensorCallback) Handler {
	return func(ctx context.Context, eid, tid uint8, eventData []byte) error {
		sensor, err := wire.DecodeSensorEventData(eventData)
		if err != nil {
			return errs.Wrap("SensorEvent", errs.CodeDecodeFailed, err)
		}

		switch sensor.SensorEventClassType {
		case wire.SensorEventNumericSensorState:
			if d.observer != nil {
				d.observer.ObserveEventDelivered(eid, wire.EventClassSensorEvent, len(eventData))
			}
			return nil

		case wire.SensorEventStateSensorState:
			rec := d.lookupStateSensor(tid, sensor.SensorID)
			if rec == nil {
				return errs.New("SensorEvent", errs.CodeInvalidData, "sensor id not found in PDR repository")
			}
			if int(sensor.SensorOffset) >= int(rec.CompositeCount) {
				return errs.New("SensorEvent", errs.CodeInvalidData, "sensor_offset exceeds composite_count")
			}
			if !stateInPossibleStates(rec.PossibleStates[sensor.SensorOffset], sensor.EventState) {
				return errs.New("SensorEvent", errs.CodeInvalidData, "event_state not in possible_states")
			}
			if onStateSensor != nil {
				onStateSensor(rec.ContainerID, rec.EntityType, rec.EntityInstance, sensor.SensorOffset, sensor.EventState)
			}
			return nil

		default:
			return errs.New("SensorEvent", errs.CodeInvalidData, "unknown sensor event class type")
		}
	}
}

// lookupStateSensor finds the StateSensorPDR for (tid, sensorID),
// falling back to (TID_RESERVED, sensorID) per spec.md §4.4: a sensor's
// owning terminus is resolved indirectly, via the terminus-locator PDR
// for its TerminusHandle.
func (d *Dispatcher) lookupStateSensor(tid uint8, sensorID uint16) *pdr.StateSensorPDR {
	if d.repo == nil {
		return nil
	}
	if rec := d.findStateSensor(sensorID, tid); rec != nil {
		return rec
	}
	return d.findStateSensor(sensorID, constants.TidReserved)
}

func (d *Dispatcher) findStateSensor(sensorID uint16, tid uint8) *pdr.StateSensorPDR {
	cursor, rec, ok := d.repo.GetFirst()
	for ok {
		if s, isSensor := rec.Payload.(pdr.StateSensorPDR); isSensor && s.SensorID == sensorID {
			if d.resolveTID(s.TerminusHandle) == tid {
				return &s
			}
		}
		cursor, rec, ok = d.repo.GetNext(cursor)
	}
	return nil
}

// resolveTID looks up the TID a terminus-locator PDR records for
// terminusHandle, or TID_RESERVED if no such locator exists.
func (d *Dispatcher) resolveTID(terminusHandle uint16) uint8 {
	cursor, rec, ok := d.repo.GetFirst()
	for ok {
		if loc, isLocator := rec.Payload.(pdr.TerminusLocatorPDR); isLocator && loc.TerminusHandle == terminusHandle {
			return loc.TID
		}
		cursor, rec, ok = d.repo.GetNext(cursor)
	}
	return constants.TidReserved
}

func stateInPossibleStates(possible []uint8, state uint8) bool {
	for _, s := range possible {
		if s == state {
			return true
		}
	}
	return false
}

func (d *Dispatcher) pdrRepositoryChgHandler(onFetch PdrFetchCallback, onRefresh RefreshCallback) Handler {
	return func(ctx context.Context, eid, tid uint8, eventData []byte) error {
		chg, err := wire.DecodePdrRepositoryChgEventData(eventData)
		if err != nil {
			return errs.Wrap("PdrRepositoryChg", errs.CodeDecodeFailed, err)
		}

		switch chg.EventDataFormat {
		case wire.EventDataFormatIsPdrTypes:
			return errs.New("PdrRepositoryChg", errs.CodeInvalidData, "format_is_pdr_types is not a valid change-event format")

		case wire.EventDataFormatRefreshEntireRepo:
			if d.repo != nil {
				d.repo.RemoveByTerminusHandle(uint16(tid))
			}
			if onRefresh != nil {
				onRefresh(tid)
			}
			return nil

		case wire.EventDataFormatRecordsAdded, wire.EventDataFormatRecordsModified:
			var handles []uint32
			for _, rec := range chg.ChangeRecords {
				handles = append(handles, rec.ChangeEntries...)
			}
			if onFetch != nil {
				onFetch(handles)
			}
			return nil

		default:
			return errs.New("PdrRepositoryChg", errs.CodeInvalidData, "unknown change-event format")
		}
	}
}

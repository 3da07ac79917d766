package pldm

import (
	"time"

	"github.com/obmc-pldm/pldm/internal/constants"
)

// Re-exported tunables and protocol limits, for callers that don't want
// to import internal/constants directly. cmd/pldmd reads these names'
// environment-variable counterparts and overrides them per endpoint via
// poller.Config rather than mutating these package constants.
const (
	NormalRasEventTimer    = constants.NormalRasEventTimer
	CriticalRasEventTimer  = constants.CriticalRasEventTimer
	PollRequestEventTimer  = constants.PollRequestEventTimer
	ResponseTimeOut        = constants.ResponseTimeOut
	NumberOfRequestRetries = constants.NumberOfRequestRetries
	MaxQueueSize           = constants.MaxQueueSize
	TerminusHandle         = constants.TerminusHandle
	TerminusID             = constants.TerminusID
	BmcMctpEID             = constants.BmcMctpEID
	MaxInstanceID          = constants.MaxInstanceID
	MaxEventSize           = constants.MaxEventSize
)

// PollTimeout returns the default poll-timeout deadline; see
// internal/constants.PollTimeout.
func PollTimeout() time.Duration {
	return constants.PollTimeout()
}

// Command pldmd runs a PLDM platform responder against simulated
// loopback termini: it polls every registered terminus for pending
// platform events and dispatches whatever events it collects. It does
// not answer inbound PLDM commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/obmc-pldm/pldm"
	"github.com/obmc-pldm/pldm/internal/logging"
	"github.com/obmc-pldm/pldm/internal/pdr"
	"github.com/obmc-pldm/pldm/internal/poller"
	"github.com/obmc-pldm/pldm/internal/wire"
	"github.com/obmc-pldm/pldm/transport/loopback"
)

func main() {
	var (
		pdrDir  = flag.String("pdr-dir", "", "directory of JSON PDR descriptors to seed the repository from")
		biosDir = flag.String("bios-dir", "", "directory of JSON BIOS attribute descriptors to seed the registry from")
		eidList = flag.String("eids", "", "comma-separated list of MCTP endpoint ids to poll (e.g. 9,10)")
		useDemo = flag.Bool("loopback", false, "use an in-process simulated terminus instead of a real transport")
		verbose = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	eids, err := parseEIDs(*eidList)
	if err != nil {
		logger.Error("invalid -eids", "error", err)
		os.Exit(1)
	}

	if !*useDemo {
		logger.Error("no real MCTP transport is available; rerun with -loopback for a simulated terminus")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	params := pldm.Params{
		PDRDirectory:    *pdrDir,
		BIOSDirectory:   *biosDir,
		PollerTunables:  tunablesFromEnv(),
		TerminusLocator: terminusLocatorFromEnv(),
	}

	responder, err := newLoopbackResponder(ctx, params, eids, logger)
	if err != nil {
		logger.Error("failed to construct responder", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("stopping responder")
		if err := responder.Close(); err != nil {
			logger.Error("error stopping responder", "error", err)
		} else {
			logger.Info("responder stopped")
		}
	}()

	for _, eid := range eids {
		if err := responder.AddEndpoint(eid); err != nil {
			logger.Error("failed to add endpoint", "eid", eid, "error", err)
			os.Exit(1)
		}
		logger.Info("polling endpoint", "eid", eid)
	}

	fmt.Printf("pldmd running, polling eids %v\n", eids)
	fmt.Printf("Press Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	cancel()
}

// newLoopbackResponder wires a simulated idle terminus per eid using
// transport/loopback and builds a Responder against it. Every incoming
// loopback frame is a response (the idle fixture never pushes
// unsolicited events), so the delivery callback always routes through
// DeliverResponse.
func newLoopbackResponder(ctx context.Context, params pldm.Params, eids []uint8, logger *logging.Logger) (*pldm.Responder, error) {
	var responder *pldm.Responder

	lb := loopback.New(func(eid uint8, data []byte) {
		hdr, err := wire.DecodeHeader(data)
		if err != nil {
			logger.Warn("dropping malformed loopback frame", "eid", eid, "error", err)
			return
		}
		responder.DeliverResponse(eid, hdr, data[wire.HeaderSize:])
	})
	for _, eid := range eids {
		lb.RegisterTerminus(eid, loopback.IdleTerminusHandler(pldm.TerminusID))
	}

	params.Transport = lb
	r, err := pldm.NewResponder(ctx, params, &pldm.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	responder = r
	return responder, nil
}

// tunablesFromEnv reads the documented environment-variable overrides,
// falling back to internal/constants' compiled-in defaults whenever a
// variable is unset or fails to parse.
func tunablesFromEnv() poller.Config {
	return poller.Config{
		NormalTimer:      envDurationMillis("NORMAL_RAS_EVENT_TIMER"),
		CriticalTimer:    envDurationMillis("CRITICAL_RAS_EVENT_TIMER"),
		PollRequestTimer: envDurationMillis("POLL_REQ_EVENT_TIMER"),
		PollTimeout:      envPollTimeout(),
		MaxQueueSize:     envInt("MAX_QUEUE_SIZE"),
	}
}

func envPollTimeout() time.Duration {
	retries := envInt("NUMBER_OF_REQUEST_RETRIES")
	timeout := envDurationMillis("RESPONSE_TIME_OUT")
	if retries <= 0 && timeout <= 0 {
		return 0
	}
	if retries <= 0 {
		retries = pldm.NumberOfRequestRetries
	}
	if timeout <= 0 {
		timeout = pldm.ResponseTimeOut
	}
	return time.Duration(retries+1) * timeout
}

func envDurationMillis(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// terminusLocatorFromEnv builds an override terminus-locator PDR from
// TERMINUS_HANDLE/TERMINUS_ID/BMC_MCTP_EID, or returns nil (use
// internal/constants' compiled-in identity) when none of the three are
// set.
func terminusLocatorFromEnv() *pdr.TerminusLocatorPDR {
	handle := envInt("TERMINUS_HANDLE")
	tid := envInt("TERMINUS_ID")
	eid := envInt("BMC_MCTP_EID")
	if handle == 0 && tid == 0 && eid == 0 {
		return nil
	}
	locator := &pdr.TerminusLocatorPDR{
		TerminusHandle: pldm.TerminusHandle,
		TID:            pldm.TerminusID,
		MCTPEID:        pldm.BmcMctpEID,
	}
	if handle != 0 {
		locator.TerminusHandle = uint16(handle)
	}
	if tid != 0 {
		locator.TID = uint8(tid)
	}
	if eid != 0 {
		locator.MCTPEID = uint8(eid)
	}
	return locator
}

// parseEIDs parses a comma-separated list of decimal endpoint ids.
func parseEIDs(s string) ([]uint8, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	eids := make([]uint8, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid eid %q: %w", p, err)
		}
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("eid %d out of range", n)
		}
		eids = append(eids, uint8(n))
	}
	return eids, nil
}

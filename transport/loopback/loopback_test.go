package loopback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/obmc-pldm/pldm/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendToUnregisteredTerminusFails(t *testing.T) {
	tp := New(func(eid uint8, data []byte) {})
	err := tp.Send(context.Background(), 9, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrNoTerminus)
}

func TestSendDeliversHandlerResponseAsynchronously(t *testing.T) {
	var mu sync.Mutex
	var delivered []byte
	done := make(chan struct{})

	tp := New(func(eid uint8, data []byte) {
		mu.Lock()
		delivered = data
		mu.Unlock()
		close(done)
	})
	tp.RegisterTerminus(9, func(ctx context.Context, req []byte) ([]byte, bool) {
		return []byte{0xAA, 0xBB}, true
	})

	require.NoError(t, tp.Send(context.Background(), 9, []byte{1}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("response never delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte{0xAA, 0xBB}, delivered)
}

func TestSendSkipsDeliveryWhenHandlerHasNoResponse(t *testing.T) {
	called := make(chan struct{}, 1)
	tp := New(func(eid uint8, data []byte) { called <- struct{}{} })
	tp.RegisterTerminus(9, func(ctx context.Context, req []byte) ([]byte, bool) {
		return nil, false
	})

	require.NoError(t, tp.Send(context.Background(), 9, []byte{1}))

	select {
	case <-called:
		t.Fatal("deliver should not have been called")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRemoveTerminusStopsFurtherSends(t *testing.T) {
	tp := New(func(eid uint8, data []byte) {})
	tp.RegisterTerminus(9, func(ctx context.Context, req []byte) ([]byte, bool) { return nil, false })
	tp.RemoveTerminus(9)

	err := tp.Send(context.Background(), 9, []byte{1})
	assert.ErrorIs(t, err, ErrNoTerminus)
}

func TestIdleTerminusHandlerAcksPollWithNoEvent(t *testing.T) {
	handler := IdleTerminusHandler(7)

	req := wire.Header{Request: true, InstanceID: 3, Type: wire.PldmTypePlatform, Command: wire.CmdPollForPlatformEventMsg}
	hdrBytes, err := req.Encode()
	require.NoError(t, err)
	body := (&wire.PollForPlatformEventMessageRequest{FormatVersion: 1, TransferOperationFlag: wire.OperationGetFirstPart}).Encode()

	respBytes, ok := handler(context.Background(), append(hdrBytes, body...))
	require.True(t, ok)

	respHdr, err := wire.DecodeHeader(respBytes)
	require.NoError(t, err)
	assert.False(t, respHdr.Request)
	assert.Equal(t, uint8(3), respHdr.InstanceID)

	resp, err := wire.DecodePollForPlatformEventMessageResponse(respBytes[wire.HeaderSize:], false)
	require.NoError(t, err)
	assert.Equal(t, wire.CcSuccess, resp.CompletionCode)
	assert.Equal(t, uint8(7), resp.TID)
	assert.Equal(t, wire.EventIDNone, resp.EventID)
}

func TestIdleTerminusHandlerRejectsUnsupportedCommand(t *testing.T) {
	handler := IdleTerminusHandler(7)

	req := wire.Header{Request: true, InstanceID: 1, Type: wire.PldmTypePlatform, Command: wire.CmdGetPDR}
	hdrBytes, err := req.Encode()
	require.NoError(t, err)

	respBytes, ok := handler(context.Background(), hdrBytes)
	require.True(t, ok)

	respHdr, err := wire.DecodeHeader(respBytes)
	require.NoError(t, err)
	assert.False(t, respHdr.Request)
	assert.Equal(t, wire.CcUnsupportedPldmCmd, respBytes[wire.HeaderSize])
}

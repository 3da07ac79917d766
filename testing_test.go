package pldm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockTransportRecordsSends(t *testing.T) {
	m := NewMockTransport()

	require.NoError(t, m.Send(context.Background(), 9, []byte{1, 2, 3}))
	require.NoError(t, m.Send(context.Background(), 9, []byte{4, 5}))

	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, uint8(9), sent[0].EID)
	assert.Equal(t, []byte{1, 2, 3}, sent[0].Data)

	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, []byte{4, 5}, last.Data)
}

func TestMockTransportFailNextSend(t *testing.T) {
	m := NewMockTransport()
	m.FailNextSend(2, nil)

	err := m.Send(context.Background(), 9, []byte{1})
	assert.ErrorIs(t, err, ErrMockSendFailed)

	err = m.Send(context.Background(), 9, []byte{2})
	assert.ErrorIs(t, err, ErrMockSendFailed)

	require.NoError(t, m.Send(context.Background(), 9, []byte{3}))
	assert.Len(t, m.Sent(), 1)
}

func TestMockTransportFailNextSendCustomError(t *testing.T) {
	m := NewMockTransport()
	wantErr := errors.New("no route to endpoint")
	m.FailNextSend(1, wantErr)

	err := m.Send(context.Background(), 1, []byte{1})
	assert.ErrorIs(t, err, wantErr)
}

func TestMockTransportReset(t *testing.T) {
	m := NewMockTransport()
	require.NoError(t, m.Send(context.Background(), 1, []byte{1}))
	m.FailNextSend(1, nil)

	m.Reset()

	assert.Empty(t, m.Sent())
	require.NoError(t, m.Send(context.Background(), 1, []byte{1}))
}

func TestMockTransportSentReturnsACopy(t *testing.T) {
	m := NewMockTransport()
	data := []byte{1, 2, 3}
	require.NoError(t, m.Send(context.Background(), 1, data))

	data[0] = 99
	sent := m.Sent()
	assert.Equal(t, uint8(1), sent[0].Data[0])
}

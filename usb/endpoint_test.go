package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEndpointAtMostOneArmed exercises the at-most-one-armed invariant:
// Arm must fail while a transfer is already in flight.
func TestEndpointAtMostOneArmed(t *testing.T) {
	ep := NewEndpoint(1, InMode, 64)
	ep.Enable()

	_, err := ep.Arm(In, func(data []byte, e Error) ([]byte, bool) {
		return nil, true
	})
	require.NoError(t, err)
	assert.Equal(t, TransferringIn, ep.State())

	_, err = ep.Arm(In, func(data []byte, e Error) ([]byte, bool) {
		return nil, true
	})
	assert.Error(t, err, "Arm should reject a second transfer while one is in flight")
}

// TestEndpointCompleteReArms verifies a continuation that reports it is not
// done keeps the endpoint in the transferring state for the next stage.
func TestEndpointCompleteReArms(t *testing.T) {
	ep := NewEndpoint(2, OutMode, 64)
	ep.Enable()

	calls := 0
	_, err := ep.Arm(Out, func(data []byte, e Error) ([]byte, bool) {
		calls++
		return nil, calls == 2
	})
	require.NoError(t, err)

	_, done := ep.Complete([]byte("first"), NoError)
	assert.False(t, done)
	assert.Equal(t, TransferringOut, ep.State())

	_, done = ep.Complete([]byte("second"), NoError)
	assert.True(t, done)
	assert.Equal(t, Idle, ep.State())
}

func TestEndpointStallUnStallOrdering(t *testing.T) {
	ep := NewEndpoint(3, InMode, 64)
	ep.Enable()

	ep.Stall()
	assert.Equal(t, Stalled, ep.State())

	// UnStall must be a no-op (rather than panic) when called on an
	// already-idle endpoint, matching the check-before-clear ordering
	// design note.
	ep.UnStall()
	assert.Equal(t, Idle, ep.State())

	ep.UnStall()
	assert.Equal(t, Idle, ep.State())
}

func TestEndpointSpuriousCompletionPanics(t *testing.T) {
	ep := NewEndpoint(4, InMode, 64)
	ep.Enable()

	assert.Panics(t, func() {
		ep.Complete(nil, NoError)
	})
}

// TestEndpointDisableInvokesArmedContinuation covers testable property 8:
// a bus reset (Disable) invokes whatever continuation was armed at the time,
// exactly once, with err == Reset.
func TestEndpointDisableInvokesArmedContinuation(t *testing.T) {
	ep := NewEndpoint(5, OutMode, 64)
	ep.Enable()

	calls := 0
	var gotErr Error

	_, err := ep.Arm(Out, func(data []byte, e Error) ([]byte, bool) {
		calls++
		gotErr = e
		return nil, true
	})
	require.NoError(t, err)

	ep.Disable()

	assert.Equal(t, 1, calls, "armed continuation must be invoked exactly once on reset")
	assert.Equal(t, Reset, gotErr)
	assert.Equal(t, EndpointDisabled, ep.State())
}

// TestEndpointDisableWithoutArmedTransferDoesNotPanic covers the case where
// a bus reset lands on an endpoint with nothing armed: no continuation to
// call, no panic.
func TestEndpointDisableWithoutArmedTransferDoesNotPanic(t *testing.T) {
	ep := NewEndpoint(6, InMode, 64)
	ep.Enable()

	assert.NotPanics(t, func() {
		ep.Disable()
	})
	assert.Equal(t, EndpointDisabled, ep.State())
}

// TestEndpointOutPendingReplay covers testable property 7's replay half: an
// OUT interrupt latched while idle (NotifyOutPending) is reported back by
// the next Arm(Out, ...) as replay == true, and does not recur on the Arm
// after that.
func TestEndpointOutPendingReplay(t *testing.T) {
	ep := NewEndpoint(7, OutMode, 64)
	ep.Enable()

	latched := ep.NotifyOutPending()
	require.True(t, latched, "NotifyOutPending must latch while idle")

	replay, err := ep.Arm(Out, func(data []byte, e Error) ([]byte, bool) {
		return nil, true
	})
	require.NoError(t, err)
	assert.True(t, replay, "Arm must report the latched OUT interrupt as a replay")

	_, done := ep.Complete([]byte("cbw"), NoError)
	assert.True(t, done)

	replay, err = ep.Arm(Out, func(data []byte, e Error) ([]byte, bool) {
		return nil, true
	})
	require.NoError(t, err)
	assert.False(t, replay, "a stale latch must not replay on a later, unrelated Arm")
}

// TestEndpointClearPendingInterruptDiscardsLatch covers testable property
// 7's preemption half: a setup packet preempting a pending OUT clears the
// latch before it can replay.
func TestEndpointClearPendingInterruptDiscardsLatch(t *testing.T) {
	ep := NewEndpoint(8, OutMode, 64)
	ep.Enable()

	require.True(t, ep.NotifyOutPending())

	ep.clearPendingInterrupt()

	replay, err := ep.Arm(Out, func(data []byte, e Error) ([]byte, bool) {
		return nil, true
	})
	require.NoError(t, err)
	assert.False(t, replay, "a cleared latch must not replay")
}

// TestEndpointArmRxTracksTransferredBytes exercises ArmRx's
// requested/transferred bookkeeping across a multi-stage OUT transfer.
func TestEndpointArmRxTracksTransferredBytes(t *testing.T) {
	ep := NewEndpoint(9, OutMode, 64)
	ep.Enable()

	calls := 0
	_, err := ep.ArmRx(func(data []byte, e Error) ([]byte, bool) {
		calls++
		return nil, calls == 2
	}, 10, 10)
	require.NoError(t, err)

	ep.Complete([]byte("12345"), NoError)
	assert.Equal(t, 5, ep.TransferredBytes())

	ep.Complete([]byte("67890"), NoError)
	assert.Equal(t, 10, ep.TransferredBytes())
}

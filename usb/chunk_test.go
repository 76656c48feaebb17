package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChunkTxSplitsIntoMaxPacketSizedPackets exercises a transfer longer
// than one packet: a 500-byte payload over a 64-byte max packet size must
// be sent as seven 64-byte packets and a 52-byte final packet, with no
// trailing ZLP (500 is not a multiple of 64 -- see the next test for the
// case that needs one).
func TestChunkTxSplitsIntoMaxPacketSizedPackets(t *testing.T) {
	data := make([]byte, 500)
	for i := range data {
		data[i] = byte(i)
	}

	var sent [][]byte
	err := ChunkTx(data, 64, func(chunk []byte) error {
		cp := append([]byte(nil), chunk...)
		sent = append(sent, cp)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, sent, 8)
	for i := 0; i < 7; i++ {
		assert.Len(t, sent[i], 64)
	}
	assert.Len(t, sent[7], 500-7*64)

	var reassembled []byte
	for _, chunk := range sent {
		reassembled = append(reassembled, chunk...)
	}
	assert.Equal(t, data, reassembled)
}

// TestChunkTxInsertsZeroLengthPacketOnExactMultiple covers §4.3.1's ZLP
// rule: when the transfer length is an exact multiple of max_packet, one
// more, empty, packet must follow so the host doesn't wait for more data.
func TestChunkTxInsertsZeroLengthPacketOnExactMultiple(t *testing.T) {
	data := make([]byte, 512)

	var sent [][]byte
	err := ChunkTx(data, 64, func(chunk []byte) error {
		cp := append([]byte(nil), chunk...)
		sent = append(sent, cp)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, sent, 9, "512/64 full packets plus one trailing ZLP")
	for i := 0; i < 8; i++ {
		assert.Len(t, sent[i], 64)
	}
	assert.Len(t, sent[8], 0, "final packet must be zero-length")
}

// TestChunkTxEmptyTransferSendsOnePacket covers the zero-length-transfer
// edge case: ChunkTx must still call send exactly once (there is no prior
// packet to be an "exact multiple" of, so no second ZLP).
func TestChunkTxEmptyTransferSendsOnePacket(t *testing.T) {
	var sent [][]byte
	err := ChunkTx(nil, 64, func(chunk []byte) error {
		sent = append(sent, chunk)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Len(t, sent[0], 0)
}

// TestChunkTxDisabledWhenNoMaxPacketSizeRecorded covers the fallback for an
// endpoint a Controller hasn't recorded a max packet size for yet.
func TestChunkTxDisabledWhenNoMaxPacketSizeRecorded(t *testing.T) {
	data := make([]byte, 200)

	var sent [][]byte
	err := ChunkTx(data, 0, func(chunk []byte) error {
		sent = append(sent, chunk)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Len(t, sent[0], 200)
}

// TestChunkRxAccumulatesMultiplePackets covers the OUT side of the same
// transfer longer than one packet: a 200-byte read over a 64-byte max
// packet must issue four hardware reads (64, 64, 64, 8) and return the
// concatenation.
func TestChunkRxAccumulatesMultiplePackets(t *testing.T) {
	var requested []int
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}

	got, err := ChunkRx(200, 64, func(length int) ([]byte, error) {
		requested = append(requested, length)
		start := 0
		for _, r := range requested[:len(requested)-1] {
			start += r
		}
		return data[start : start+length], nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{64, 64, 64, 8}, requested)
	assert.Equal(t, data, got)
}

// TestChunkRxStopsOnShortPacket covers §4.3.1's OUT completion rule: a
// packet shorter than requested ends the transfer even if fewer than
// maxSize bytes have been collected.
func TestChunkRxStopsOnShortPacket(t *testing.T) {
	calls := 0
	got, err := ChunkRx(256, 64, func(length int) ([]byte, error) {
		calls++
		if calls == 2 {
			return make([]byte, 10), nil
		}
		return make([]byte, length), nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Len(t, got, 64+10)
}

package usb

// ChunkTx drives a (possibly multi-packet) IN transfer by repeatedly
// invoking send with up to maxPacketSize bytes of data, per §4.3.1's IN
// transition: the driver "copies up to max_packet bytes into the endpoint
// FIFO/buffer descriptor and arms the IN", and on each completion "if more
// remains, arms the next packet; otherwise if the last packet was exactly
// max_packet and requested_bytes is a multiple of max_packet, queues one
// Zero-Length Packet."
//
// Grounded on original_source/targets/core/nxp/lpc17xx/usb.hpp's write()/
// endpoint_in_callback pairing (state[endpoint].max_size-bounded chunk, one
// hardware packet per callback invocation): this module's soc/*/usb
// Controller implementations are themselves specified to block a single
// Tx/Rx call until the hardware transaction completes, so klib's
// interrupt-driven continuation collapses here into one blocking loop
// issuing one send call per hardware packet.
//
// maxPacketSize <= 0 disables chunking (send is called exactly once, with
// all of data); a Controller that hasn't recorded a max packet size for
// this endpoint yet falls back to the pre-chunking behaviour rather than
// silently truncating or looping incorrectly.
func ChunkTx(data []byte, maxPacketSize int, send func(chunk []byte) error) error {
	if maxPacketSize <= 0 {
		return send(data)
	}

	sent := 0

	for {
		end := sent + maxPacketSize
		if end > len(data) {
			end = len(data)
		}

		if err := send(data[sent:end]); err != nil {
			return err
		}

		sent = end

		if sent >= len(data) {
			break
		}
	}

	if len(data) != 0 && len(data)%maxPacketSize == 0 {
		// the transfer's last packet filled the endpoint exactly; a host
		// reading a bulk/interrupt IN transfer treats a full-size packet
		// as "more may follow" and only recognizes the end on a short
		// packet, so one more, empty, packet is required.
		return send(nil)
	}

	return nil
}

// ChunkRx drives a (possibly multi-packet) OUT transfer by repeatedly
// invoking recv (one hardware packet read, up to maxPacketSize bytes) until
// maxSize bytes have been collected or recv returns fewer bytes than asked
// for, per §4.3.1's OUT completion rule: "completes when either
// transferred_bytes >= requested_bytes or a short packet is received."
//
// Grounded on original_source/targets/core/nxp/lpc17xx/usb.hpp's read()/
// endpoint_out_callback pairing (state[endpoint].max_requested_size bound,
// one read_impl call per hardware packet).
//
// maxPacketSize <= 0 disables chunking (recv is called exactly once, for
// the whole of maxSize).
func ChunkRx(maxSize, maxPacketSize int, recv func(length int) ([]byte, error)) ([]byte, error) {
	if maxPacketSize <= 0 {
		return recv(maxSize)
	}

	out := make([]byte, 0, maxSize)

	for len(out) < maxSize {
		length := maxPacketSize
		if remaining := maxSize - len(out); remaining < length {
			length = remaining
		}

		chunk, err := recv(length)
		if err != nil {
			return out, err
		}

		out = append(out, chunk...)

		if len(chunk) < length {
			break
		}
	}

	return out, nil
}

package msc

// Memory is the block storage backend a Handler serves over Bulk-Only
// Transport, grounded on klib::usb::msc::bulk_only_transfer::helper's
// adapter contract (init/start/stop/ready/can_remove/size/is_writable/
// read/write). fat.VirtualFAT implements this interface as the module's
// in-RAM test fixture; a real target would back it with on-chip flash, an
// SD card, or external SPI NOR.
type Memory interface {
	// Init prepares the backend for use, called once before Start.
	Init() error
	// Start spins up the medium (e.g. enables a card's power rail);
	// matched by Stop.
	Start() error
	// Stop powers down the medium.
	Stop() error
	// Ready reports whether the medium currently responds to commands.
	Ready() bool
	// CanRemove reports whether the medium may be ejected. Handler does
	// not call it: PREVENT_ALLOW_MEDIUM_REMOVAL always passes, and the
	// MODE SENSE write-protect bit comes from IsWritable.
	CanRemove() bool
	// Size returns the medium's total size in bytes.
	Size() uint64
	// IsWritable reports whether Write is permitted.
	IsWritable() bool
	// ReadBlock reads exactly len(buf) bytes (a multiple of BlockSize)
	// starting at the given zero-based logical block address.
	ReadBlock(lba uint32, buf []byte) error
	// WriteBlock writes exactly len(buf) bytes (a multiple of BlockSize)
	// starting at the given zero-based logical block address.
	WriteBlock(lba uint32, buf []byte) error
}

package fat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	created []DirectoryEntry
	deleted []DirectoryEntry
	changed [][2]DirectoryEntry
}

func (h *recordingHandler) OnCreate(e DirectoryEntry)      { h.created = append(h.created, e) }
func (h *recordingHandler) OnDelete(e DirectoryEntry)      { h.deleted = append(h.deleted, e) }
func (h *recordingHandler) OnChange(old, updated DirectoryEntry) {
	h.changed = append(h.changed, [2]DirectoryEntry{old, updated})
}

// TestBootSectorRead exercises the "Virtual FAT boot-sector read"
// scenario: sector 0 is a 512-byte packed MBR ending with 55 AA at bytes
// 510-511, with the documented BPB fields.
func TestBootSectorRead(t *testing.T) {
	h := &recordingHandler{}
	v := NewVirtualFAT(32, 1*1024*1024, 64, "ARMHALFS", h)

	buf := make([]byte, BlockSize)
	require.NoError(t, v.ReadBlock(0, buf))

	assert.Equal(t, byte(0x55), buf[510])
	assert.Equal(t, byte(0xaa), buf[511])
	assert.Equal(t, uint16(BlockSize), leUint16(buf[11:13]))
	assert.Equal(t, byte(0xf8), buf[21])
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func TestSizeMatchesConstructor(t *testing.T) {
	v := NewVirtualFAT(32, 1*1024*1024, 64, "ARMHALFS", &recordingHandler{})
	assert.Equal(t, uint64(1*1024*1024), v.Size())
}

// TestDirectoryCreateDispatch exercises "FAT dispatch": writing a new
// valid 8.3 name at an empty slot fires exactly one on_create.
func TestDirectoryCreateDispatch(t *testing.T) {
	h := &recordingHandler{}
	v := NewVirtualFAT(32, 1*1024*1024, 64, "ARMHALFS", h)

	// directory region starts after boot sector (1) + FAT sectors.
	dirStartLBA := uint32(1) + uint32(len(v.fat))/BlockSize

	sector := make([]byte, BlockSize)
	v.readDirectory(0, sector) // seed with current directory contents (entry 0 = volume label)

	entry := DirectoryEntry{FileSize: 4096}
	copy(entry.Name[:], "README  TXT")
	copy(sector[32:64], entry.Bytes())

	require.NoError(t, v.WriteBlock(dirStartLBA, sector))

	require.Len(t, h.created, 1)
	assert.Equal(t, entry.Name, h.created[0].Name)
	assert.Empty(t, h.deleted)
}

// TestDirectoryDeleteDispatch exercises "FAT dispatch": writing a
// directory entry whose name byte 0 becomes 0xE5 fires exactly one
// on_delete.
func TestDirectoryDeleteDispatch(t *testing.T) {
	h := &recordingHandler{}
	v := NewVirtualFAT(32, 1*1024*1024, 64, "ARMHALFS", h)

	dirStartLBA := uint32(1) + uint32(len(v.fat))/BlockSize

	sector := make([]byte, BlockSize)
	v.readDirectory(0, sector)

	entry := DirectoryEntry{FileSize: 1024}
	copy(entry.Name[:], "A       TXT")
	copy(sector[32:64], entry.Bytes())
	require.NoError(t, v.WriteBlock(dirStartLBA, sector))
	require.Len(t, h.created, 1)

	v.readDirectory(0, sector)
	deleted := entry
	deleted.Name[0] = 0xe5
	copy(sector[32:64], deleted.Bytes())
	require.NoError(t, v.WriteBlock(dirStartLBA, sector))

	require.Len(t, h.deleted, 1)
	assert.Equal(t, entry.Name, h.deleted[0].Name)
}

func TestReadBlockOutsideRegionsReadsZero(t *testing.T) {
	v := NewVirtualFAT(32, 1*1024*1024, 64, "ARMHALFS", &recordingHandler{})

	buf := make([]byte, BlockSize)
	for i := range buf {
		buf[i] = 0xff
	}

	require.NoError(t, v.ReadBlock(2000, buf))

	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

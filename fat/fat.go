// Virtual FAT12/FAT16 in-RAM filesystem image
// https://github.com/armhal/hal
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package fat implements a virtual FAT12/FAT16 filesystem image entirely
// in RAM, grounded on klib::filesystem::virtual_fat
// (original_source/klib/filesystem/virtual_fat.hpp): an MBR boot sector,
// N file allocation tables, and a fixed-size root directory, composed
// over block-addressed reads/writes so it can serve as a
// usb/class/msc.Memory backend for exercising the Mass-Storage class
// device without real storage hardware.
package fat

import (
	"encoding/binary"
)

// BlockSize is this package's sector size, matching msc.BlockSize.
const BlockSize = 512

// Directory entry attribute bits (klib::filesystem::attributes).
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
)

// deletedMarker is the byte fat_directory.name[0] is set to when a file
// has been deleted.
const deletedMarker = 0xe5

// DirectoryEntry is the 32-byte FAT directory structure
// (klib::filesystem::fat_directory).
type DirectoryEntry struct {
	Name             [11]byte
	Attributes       uint8
	CreationTimeMS   uint8
	CreationTime     uint16
	CreationDate     uint16
	AccessedDate     uint16
	FirstClusterHigh uint16
	ModificationTime uint16
	ModificationDate uint16
	FirstClusterLow  uint16
	FileSize         uint32
}

// Bytes renders the 32-byte directory entry.
func (e DirectoryEntry) Bytes() []byte {
	buf := make([]byte, 32)
	copy(buf[0:11], e.Name[:])
	buf[11] = e.Attributes
	buf[12] = 0 // reserved
	buf[13] = e.CreationTimeMS
	binary.LittleEndian.PutUint16(buf[14:16], e.CreationTime)
	binary.LittleEndian.PutUint16(buf[16:18], e.CreationDate)
	binary.LittleEndian.PutUint16(buf[18:20], e.AccessedDate)
	binary.LittleEndian.PutUint16(buf[20:22], e.FirstClusterHigh)
	binary.LittleEndian.PutUint16(buf[22:24], e.ModificationTime)
	binary.LittleEndian.PutUint16(buf[24:26], e.ModificationDate)
	binary.LittleEndian.PutUint16(buf[26:28], e.FirstClusterLow)
	binary.LittleEndian.PutUint32(buf[28:32], e.FileSize)
	return buf
}

func parseDirectoryEntry(buf []byte) DirectoryEntry {
	var e DirectoryEntry
	copy(e.Name[:], buf[0:11])
	e.Attributes = buf[11]
	e.CreationTimeMS = buf[13]
	e.CreationTime = binary.LittleEndian.Uint16(buf[14:16])
	e.CreationDate = binary.LittleEndian.Uint16(buf[16:18])
	e.AccessedDate = binary.LittleEndian.Uint16(buf[18:20])
	e.FirstClusterHigh = binary.LittleEndian.Uint16(buf[20:22])
	e.ModificationTime = binary.LittleEndian.Uint16(buf[22:24])
	e.ModificationDate = binary.LittleEndian.Uint16(buf[24:26])
	e.FirstClusterLow = binary.LittleEndian.Uint16(buf[26:28])
	e.FileSize = binary.LittleEndian.Uint32(buf[28:32])
	return e
}

func (e DirectoryEntry) isValidFilename() bool {
	switch e.Name[0] {
	case deletedMarker, 0x00, 0x20:
		return false
	}
	for _, c := range e.Name {
		if c >= 'a' && c <= 'z' {
			return false
		}
		if c < 0x20 && c != 0x05 {
			return false
		}
		switch c {
		case 0x22, 0x2a, 0x2b, 0x2c, 0x2e, 0x2f, 0x3a, 0x3b,
			0x3c, 0x3d, 0x3e, 0x3f, 0x5b, 0x5c, 0x5d, 0x7c:
			return false
		}
	}
	return true
}

// Handler receives directory-change notifications as the host writes to
// the emulated root directory (klib's on_create/on_delete/on_change
// hooks, spec §4.5 and §8 property 11).
type Handler interface {
	OnCreate(entry DirectoryEntry)
	OnDelete(entry DirectoryEntry)
	OnChange(old, updated DirectoryEntry)
}

// BootSector is the FAT12/16 boot sector + BIOS Parameter Block
// (klib::filesystem::fat_boot_sector), reduced to the fields this
// package actually populates; the 54-byte extended section is always
// zero-filled.
type BootSector struct {
	OEMName           [8]byte
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	MediaType         uint8
	FATSize16         uint16
	SectorsPerTrack   uint16
	HeadCount         uint16
	HiddenSectorCount uint32
	TotalSectors32    uint32
}

// Bytes renders the 512-byte boot sector, ending with the 0x55 0xAA
// signature at bytes 510-511 per the "Virtual FAT boot-sector read"
// scenario.
func (b BootSector) Bytes() []byte {
	buf := make([]byte, BlockSize)

	buf[0], buf[1], buf[2] = 0xeb, 0x3c, 0x90 // jump instruction
	copy(buf[3:11], b.OEMName[:])

	binary.LittleEndian.PutUint16(buf[11:13], b.BytesPerSector)
	buf[13] = b.SectorsPerCluster
	binary.LittleEndian.PutUint16(buf[14:16], b.ReservedSectors)
	buf[16] = b.NumFATs
	binary.LittleEndian.PutUint16(buf[17:19], b.RootEntryCount)
	binary.LittleEndian.PutUint16(buf[19:21], b.TotalSectors16)
	buf[21] = b.MediaType
	binary.LittleEndian.PutUint16(buf[22:24], b.FATSize16)
	binary.LittleEndian.PutUint16(buf[24:26], b.SectorsPerTrack)
	binary.LittleEndian.PutUint16(buf[26:28], b.HeadCount)
	binary.LittleEndian.PutUint32(buf[28:32], b.HiddenSectorCount)
	binary.LittleEndian.PutUint32(buf[32:36], b.TotalSectors32)

	buf[510] = 0x55
	buf[511] = 0xaa

	return buf
}

// cluster bit-width selection, grounded on
// klib::filesystem::detail::cluster<ClusterCount, fat12, fat32>: FAT12
// for <= 4084 clusters, FAT16 for <= 65524, FAT32 (not supported by this
// fixture, per the teacher's own static_assert) above that.
const (
	fat12Clusters = 4084
	fat16Clusters = 65524
)

type clusterWidth int

const (
	width12 clusterWidth = 12
	width16 clusterWidth = 16
)

func setClusterEntry(fat []byte, index uint32, value uint16, w clusterWidth) {
	switch w {
	case width12:
		offset := index + index/2
		if index&1 != 0 {
			fat[offset] = byte((value&0xf)<<4) | (fat[offset] & 0xf)
			fat[offset+1] = byte((value >> 4) & 0xff)
		} else {
			fat[offset] = byte(value & 0xff)
			fat[offset+1] = byte((value>>8)&0xf) | (fat[offset+1] & 0xf0)
		}
	case width16:
		offset := index * 2
		fat[offset] = byte(value & 0xff)
		fat[offset+1] = byte(value >> 8)
	}
}

// region is one readable (and sometimes writable) span of the virtual
// disk, addressed in whole sectors (klib's virtual_media).
type region struct {
	read    func(sectorOffset uint32, buf []byte)
	write   func(sectorOffset uint32, buf []byte)
	sectors uint32
}

// VirtualFAT is an in-RAM FAT12/FAT16 image implementing
// usb/class/msc.Memory. It is a test fixture, not a general filesystem:
// only the boot sector, file allocation table, and root directory are
// backed by real state; any sector beyond those regions reads as zero
// and ignores writes, since this package exists to let the MSC package's
// tests drive the SCSI path, not to store real file data (spec.md §1,
// "the tiny virtual FAT image emulator (used only as a test fixture for
// MSC)").
type VirtualFAT struct {
	boot      BootSector
	fat       []byte
	width     clusterWidth
	directory []DirectoryEntry
	handler   Handler
	regions   []region
	ready     bool
}

// NewVirtualFAT constructs an image with room for maxFiles directory
// entries (must be a multiple of 16, per klib's static_assert) and a
// total size of totalSize bytes, using sectorsPerCluster sectors per
// allocation unit, one FAT, and volumeName as the root directory's
// volume-label entry. Directory-change events are delivered to handler.
func NewVirtualFAT(maxFiles uint32, totalSize uint32, sectorsPerCluster uint8, volumeName string, handler Handler) *VirtualFAT {
	if maxFiles%16 != 0 {
		panic("fat: maxFiles must be a multiple of 16")
	}

	sectorCount := totalSize / BlockSize
	rootDirSectors := ((maxFiles * 32) + (BlockSize - 1)) / BlockSize

	fatSize := ((sectorCount - (1 + rootDirSectors)) + ((256*uint32(sectorsPerCluster) + 1) - 1)) /
		(256*uint32(sectorsPerCluster) + 1)
	if fatSize == 0 {
		fatSize = 1
	}

	dataSectorCount := sectorCount - (1 + fatSize + rootDirSectors)
	clusterCount := dataSectorCount / uint32(sectorsPerCluster)

	width := width16
	if clusterCount <= fat12Clusters {
		width = width12
	} else if clusterCount > fat16Clusters {
		panic("fat: too many clusters for FAT12/FAT16; FAT32 is not supported")
	}

	fatBytes := fatSize * BlockSize

	v := &VirtualFAT{
		boot: BootSector{
			OEMName:           [8]byte{'M', 'S', 'D', 'O', 'S', '5', '.', '0'},
			BytesPerSector:    BlockSize,
			SectorsPerCluster: sectorsPerCluster,
			ReservedSectors:   1,
			NumFATs:           1,
			RootEntryCount:    uint16(maxFiles),
			MediaType:         0xf8,
			FATSize16:         uint16(fatSize),
			SectorsPerTrack:   1,
			HeadCount:         1,
		},
		fat:       make([]byte, fatBytes),
		width:     width,
		directory: make([]DirectoryEntry, maxFiles),
		handler:   handler,
		ready:     true,
	}

	if sectorCount > 0xffff {
		v.boot.TotalSectors32 = sectorCount
	} else {
		v.boot.TotalSectors16 = uint16(sectorCount)
	}

	setClusterEntry(v.fat, 0, uint16(v.boot.MediaType)|0xff00, v.width)
	setClusterEntry(v.fat, 1, 0xffff, v.width)

	var vol DirectoryEntry
	copy(vol.Name[:], volumeName)
	vol.Attributes = AttrVolumeID | AttrArchive
	v.directory[0] = vol

	v.regions = []region{
		{read: v.readBoot, sectors: 1},
		{read: v.readFAT, sectors: fatSize},
		{read: v.readDirectory, write: v.writeDirectory, sectors: rootDirSectors},
	}

	return v
}

func (v *VirtualFAT) readBoot(sectorOffset uint32, buf []byte) {
	if sectorOffset != 0 {
		return
	}
	copy(buf, v.boot.Bytes())
}

func (v *VirtualFAT) readFAT(sectorOffset uint32, buf []byte) {
	start := sectorOffset * BlockSize
	end := start + uint32(len(buf))
	if int(end) > len(v.fat) {
		end = uint32(len(v.fat))
	}
	if start < end {
		copy(buf, v.fat[start:end])
	}
}

func (v *VirtualFAT) readDirectory(sectorOffset uint32, buf []byte) {
	entriesPerSector := BlockSize / 32
	start := sectorOffset * uint32(entriesPerSector)

	for i := range buf {
		buf[i] = 0
	}

	for i := 0; i < entriesPerSector; i++ {
		idx := start + uint32(i)
		if int(idx) >= len(v.directory) {
			break
		}
		copy(buf[i*32:(i+1)*32], v.directory[idx].Bytes())
	}
}

// writeDirectory diffs the incoming sector against the stored directory
// and dispatches on_create/on_delete/on_change, per spec §4.5 and §8
// property 11.
func (v *VirtualFAT) writeDirectory(sectorOffset uint32, buf []byte) {
	entriesPerSector := BlockSize / 32
	start := sectorOffset * uint32(entriesPerSector)

	for i := 0; i < entriesPerSector; i++ {
		idx := start + uint32(i)
		if int(idx) >= len(v.directory) {
			break
		}

		next := parseDirectoryEntry(buf[i*32 : (i+1)*32])
		old := v.directory[idx]

		if next == old {
			continue
		}

		switch {
		case next.Name[0] == deletedMarker:
			if v.handler != nil {
				v.handler.OnDelete(old)
			}
		case next.Name != old.Name && next.isValidFilename():
			if v.handler != nil {
				v.handler.OnCreate(next)
			}
		default:
			if v.handler != nil {
				v.handler.OnChange(old, next)
			}
		}

		v.directory[idx] = next
	}
}

// Init implements msc.Memory.
func (v *VirtualFAT) Init() error { return nil }

// Start implements msc.Memory.
func (v *VirtualFAT) Start() error {
	v.ready = true
	return nil
}

// Stop implements msc.Memory.
func (v *VirtualFAT) Stop() error {
	v.ready = false
	return nil
}

// Ready implements msc.Memory.
func (v *VirtualFAT) Ready() bool { return v.ready }

// CanRemove implements msc.Memory: this fixture has no eject mechanism
// to refuse with.
func (v *VirtualFAT) CanRemove() bool { return true }

// Size implements msc.Memory.
func (v *VirtualFAT) Size() uint64 {
	if v.boot.TotalSectors16 != 0 {
		return uint64(v.boot.TotalSectors16) * BlockSize
	}
	return uint64(v.boot.TotalSectors32) * BlockSize
}

// IsWritable implements msc.Memory: only the root directory region
// accepts writes; everything else silently discards them.
func (v *VirtualFAT) IsWritable() bool { return true }

// ReadBlock implements msc.Memory, reading len(buf)/BlockSize sectors
// starting at lba, routing each sector to whichever region covers it
// (klib's read_write_impl).
func (v *VirtualFAT) ReadBlock(lba uint32, buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}

	sector := lba
	remaining := uint32(len(buf)) / BlockSize
	offset := 0
	current := uint32(0)

	for _, r := range v.regions {
		end := current + r.sectors

		if sector >= current && sector < end && remaining > 0 {
			count := end - sector
			if count > remaining {
				count = remaining
			}

			chunk := buf[offset : offset+int(count)*BlockSize]
			for s := uint32(0); s < count; s++ {
				if r.read != nil {
					r.read(sector-current+s, chunk[s*BlockSize:(s+1)*BlockSize])
				}
			}

			sector += count
			remaining -= count
			offset += int(count) * BlockSize
		}

		if remaining == 0 {
			break
		}

		current = end
	}

	return nil
}

// WriteBlock implements msc.Memory, dispatching each sector to whichever
// region covers it; sectors outside every region, or in a region with no
// write callback (boot sector, FAT), are silently discarded, matching
// klib's virtual_media entries with a nil write callback.
func (v *VirtualFAT) WriteBlock(lba uint32, buf []byte) error {
	sector := lba
	remaining := uint32(len(buf)) / BlockSize
	offset := 0
	current := uint32(0)

	for _, r := range v.regions {
		end := current + r.sectors

		if sector >= current && sector < end && remaining > 0 {
			count := end - sector
			if count > remaining {
				count = remaining
			}

			chunk := buf[offset : offset+int(count)*BlockSize]
			if r.write != nil {
				for s := uint32(0); s < count; s++ {
					r.write(sector-current+s, chunk[s*BlockSize:(s+1)*BlockSize])
				}
			}

			sector += count
			remaining -= count
			offset += int(count) * BlockSize
		}

		if remaining == 0 {
			break
		}

		current = end
	}

	return nil
}

// Package trfile reads and writes the .tr transition-file format of
// spec.md §6: a 16-byte preamble, a little-endian header, and either a
// delta-encoded pulse stream per track (the "transition" variant) or a
// fixed-size raw data block per track (the "emulator" variant).
package trfile

import "github.com/dbehnke/dmr-nexus/pkg/crc"

// Magic is the 8-byte file preamble: "\xEE MFM \r\n\x1A\x00".
var Magic = [8]byte{0xEE, 'M', 'F', 'M', '\r', '\n', 0x1A, 0x00}

// FileType distinguishes the two per-track body layouts.
type FileType uint8

const (
	TypeTransition FileType = 1
	TypeEmulator   FileType = 2
)

// EmulatorTrackMagic prefixes every emulator-variant track header.
const EmulatorTrackMagic uint32 = 0x12345678

// EndMarkerCylHead marks the final transition-variant track: both
// Cylinder and Head are -1.
const EndMarkerCylHead int32 = -1

// headerCRC is the CRC-32 context the spec mandates for both the file
// header and each transition track: poly 0x140a0445, init 0xFFFFFFFF,
// MSB-first, no reflection, no final XOR — exactly pkg/crc's table
// algorithm parameterized at width 32, reused rather than reimplemented.
var headerCRC = mustCRC()

func mustCRC() *crc.Engine {
	e, err := crc.New(crc.Width32, 0x140a0445, 0xFFFFFFFF)
	if err != nil {
		panic(err) // fixed parameters; New only fails on an unsupported width
	}
	return e
}

// Header is the parsed file header, common to both variants.
type Header struct {
	Type  FileType
	Major uint8
	Minor uint8

	// TrackDataSize is only present (and meaningful) for TypeEmulator;
	// it is the fixed per-track data length.
	TrackDataSize uint32

	TrackHeaderSize uint32
	NumCylinders    uint32
	NumHeads        uint32
	BitRate         uint32 // must be 200,000,000 for transition files

	CmdLine string
	Note    string

	StartTimeNS uint32
}

// Track is one decoded track, populated according to the file's Type.
type Track struct {
	Cylinder int32
	Head     int32

	// Deltas holds the pulse-interval stream (TypeTransition).
	Deltas []uint32

	// Data holds the raw track bytes (TypeEmulator).
	Data []byte
}

// IsEndMarker reports whether t is the transition-variant end-of-track
// sentinel (cyl=-1, head=-1).
func (t *Track) IsEndMarker() bool {
	return t.Cylinder == EndMarkerCylHead && t.Head == EndMarkerCylHead
}

package format

import "github.com/dbehnke/dmr-nexus/pkg/crc"

// SyncMark is one recognized pulse-width sequence (in half-bit cells)
// that realigns the bit stream to a byte boundary, together with the
// already-pending half-bit count at the moment of the match.
type SyncMark struct {
	Widths     []int
	ShiftIndex int // pre-adjusted: offset minus the mark's last pulse width
}

// Descriptor is an immutable, per-run Format Descriptor (spec.md §3).
// Once built it is shared by reference between the PLL and the record
// state machine and never mutated.
type Descriptor struct {
	Kind Kind

	// LimitsMin/LimitsMax bound the accepted half-bit-cell span k of a
	// single pulse interval; k outside [Min,Max] is out-of-tolerance.
	LimitsMin, LimitsMax int

	Codemap   Codemap
	SyncPulse int // nominal half-bit-cell width of the lock preamble pulse
	SyncMarks []SyncMark

	IDDataMark   []byte
	IDMark       []byte
	DataMark     []byte
	IDPrefixMark []byte
	NopMark      []byte
	NopA1Mark    []byte

	// TriplePrefix requires three consecutive IDDataMark bytes before
	// the address mark is recognized (MFM floppy convention); MFM hard
	// disk and the RLL variants bypass it.
	TriplePrefix bool

	// IndexMarkByte is the FM Index Mark byte (0xFC), nil if unused.
	IndexMarkByte *byte
	// IndexMarkTriple is the MFM floppy triple-C2 Index Mark preamble
	// byte, nil if unused.
	IndexMarkTriple *byte

	// DeletedDataMarks lists DR mark bytes that classify a Data record
	// as Deleted Data (FM only).
	DeletedDataMarks []byte

	HeaderKind HeaderKind

	HeaderCRC *crc.Engine
	DataCRC   *crc.Engine

	// SectorSize is the Data record payload size in bytes, or 0 to
	// mean "auto" (take IDlenv from the decoded ID record).
	SectorSize int
}

// HeaderCRCBytes/DataCRCBytes report the stored-CRC field width.
func (d *Descriptor) HeaderCRCBytes() int { return (int(d.HeaderCRC.Width()) + 7) / 8 }
func (d *Descriptor) DataCRCBytes() int   { return (int(d.DataCRC.Width()) + 7) / 8 }

// containsByte reports whether b is a member of set.
func containsByte(set []byte, b byte) bool {
	for _, s := range set {
		if s == b {
			return true
		}
	}
	return false
}

func (d *Descriptor) IsIDDataMark(b byte) bool   { return containsByte(d.IDDataMark, b) }
func (d *Descriptor) IsIDMark(b byte) bool       { return containsByte(d.IDMark, b) }
func (d *Descriptor) IsDataMark(b byte) bool     { return containsByte(d.DataMark, b) }
func (d *Descriptor) IsIDPrefixMark(b byte) bool { return containsByte(d.IDPrefixMark, b) }
func (d *Descriptor) IsNopMark(b byte) bool      { return containsByte(d.NopMark, b) }
func (d *Descriptor) IsNopA1Mark(b byte) bool    { return containsByte(d.NopA1Mark, b) }
func (d *Descriptor) IsDeletedData(b byte) bool  { return containsByte(d.DeletedDataMarks, b) }

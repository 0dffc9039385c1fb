// Package record implements the byte-level record state machine: it
// consumes the bytes the PLL's code translator emits and assembles ID
// and Data records, verifying their CRCs and recognizing Index Marks
// and Deleted Data, per spec.md §5.
package record

import (
	"fmt"

	"github.com/dbehnke/dmr-nexus/pkg/format"
)

// State is the record state machine's current byte-role expectation.
type State int

const (
	StateSyncMark State = iota
	StateIDDataAddressMark
	StateIDRecord
	StateIDRecordCRC
	StateDataRecord
	StateDataRecordCRC
	StateSecondPrefix
	StateThirdPrefix
	StateIndexMark
	StateFirstGapByte
)

// EventKind classifies what, if anything, a PushByte call produced.
type EventKind int

const (
	EventNone EventKind = iota
	EventIDAddressMark
	EventDataAddressMark
	EventIDHeader
	EventIDCRCResult
	EventDataCRCResult
	EventIndexMark
	EventUnknownByte
)

// Event reports one significant transition of the record state
// machine, if PushByte's byte caused one.
type Event struct {
	Kind EventKind

	ID      ID
	IDBytes []byte // A1 + address mark + header bytes, for the 'id' annotation

	IDCRCOK    bool
	IDCRCBytes []byte // A1 + IDmark + IDrec + stored CRC, for the 'idcrc' framed binary

	Data        []byte
	DeletedData bool
	DataCRCOK   bool
	DataBytes   []byte // A1 + DRmark + DRrec + stored CRC, for the 'datacrc' framed binary
	IDDataBytes []byte // IDrec + DRrec, for the 'iddata' binary

	// Resync is true when the byte was unrecognized in its state and
	// the caller (the owning decoder) should treat this as the start
	// of a gap and force a PLL resync, matching process_byte's `return
	// False`.
	Resync bool
}

// Machine is the stateful record assembler for one Descriptor.
type Machine struct {
	desc           *format.Descriptor
	sectorSize     int
	autoSectorSize bool

	state   State
	byteCnt int

	a1     []byte
	idMark []byte
	drMark []byte

	idRec []byte
	drRec []byte

	idCRC uint64
	drCRC uint64

	lastIDBytesRaw []byte // most recently completed IDrec, for iddata pairing
}

// New builds a record state machine for desc. sectorSize of 0 means
// "auto": the active sector size is taken from each decoded ID
// record's length field.
func New(desc *format.Descriptor, sectorSize int) *Machine {
	return &Machine{
		desc:           desc,
		sectorSize:     sectorSize,
		autoSectorSize: sectorSize <= 0,
	}
}

// Reset returns the machine to its idle, sync-mark-seeking state.
// Called whenever the owning PLL performs a full reset, so the two
// layers stay synchronized (spec.md §3 Lifecycle note).
func (m *Machine) Reset() {
	m.state = StateSyncMark
	m.byteCnt = 0
	m.a1 = nil
	m.idMark = nil
	m.drMark = nil
	m.idRec = nil
	m.drRec = nil
	m.idCRC = 0
	m.drCRC = 0
}

// State reports the machine's current state, for annotation/debugging.
func (m *Machine) State() State { return m.state }

// SectorSize reports the currently active Data record payload size,
// which may have been derived from the most recent ID record when the
// machine was constructed with sectorSize 0 ("auto").
func (m *Machine) SectorSize() int { return m.sectorSize }

func concatBytes(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// PushByte feeds one decoded byte through the state machine.
func (m *Machine) PushByte(b byte) (Event, error) {
	switch m.state {
	case StateSyncMark:
		return m.atSyncMark(b)
	case StateIDDataAddressMark:
		return m.atIDDataAddressMark(b)
	case StateIDRecord:
		return m.atIDRecord(b)
	case StateIDRecordCRC:
		return m.atIDRecordCRC(b)
	case StateDataRecord:
		return m.atDataRecord(b)
	case StateDataRecordCRC:
		return m.atDataRecordCRC(b)
	case StateSecondPrefix, StateThirdPrefix:
		return m.atTriplePrefix(b)
	case StateIndexMark:
		return m.atIndexMark(b)
	case StateFirstGapByte:
		m.state = StateSyncMark
		return Event{}, nil
	default:
		m.state = StateSyncMark
		return Event{}, nil
	}
}

func (m *Machine) atSyncMark(b byte) (Event, error) {
	m.byteCnt = 0
	m.idCRC = 0
	m.drCRC = 0

	d := m.desc
	switch {
	case d.IsIDDataMark(b):
		m.a1 = []byte{0xA1}
		m.state = StateIDDataAddressMark
		if len(m.idMark) > 0 {
			m.idMark = nil
			m.state = StateIDRecord
			m.idRec = make([]byte, 0, d.HeaderKind.HeaderSize())
			return Event{Kind: EventIDAddressMark}, nil
		}
		return Event{}, nil
	case d.IsIDMark(b):
		m.idMark = []byte{b}
		m.state = StateIDRecord
		m.idRec = make([]byte, 0, d.HeaderKind.HeaderSize())
		return Event{Kind: EventIDAddressMark}, nil
	case d.IsDataMark(b):
		m.drMark = []byte{b}
		return m.enterDataRecord()
	case d.IsDeletedData(b):
		// FM's F8h-FAh Deleted Data Address Marks: spec.md names these
		// as a recognized Data Record entry point distinct from the
		// regular 0xFBh Data Mark, even though they share its layout.
		m.drMark = []byte{b}
		return m.enterDataRecord()
	case d.IsIDPrefixMark(b):
		m.idMark = []byte{b}
		return Event{}, nil
	case d.IsNopMark(b):
		return Event{}, nil
	case d.IsNopA1Mark(b):
		m.a1 = []byte{0xA1}
		return Event{}, nil
	case d.IndexMarkByte != nil && b == *d.IndexMarkByte:
		m.state = StateFirstGapByte
		return Event{Kind: EventIndexMark}, nil
	case d.IndexMarkTriple != nil && b == *d.IndexMarkTriple:
		m.state = StateSecondPrefix
		return Event{}, nil
	default:
		return Event{Kind: EventUnknownByte, Resync: true}, nil
	}
}

func (m *Machine) atIDDataAddressMark(b byte) (Event, error) {
	if b == 0xA1 {
		if m.desc.TriplePrefix && len(m.a1) >= 3 {
			return Event{Kind: EventUnknownByte, Resync: true}, nil
		}
		m.a1 = append(m.a1, 0xA1)
		return Event{}, nil
	}
	if m.desc.TriplePrefix && len(m.a1) != 3 {
		return Event{Kind: EventUnknownByte, Resync: true}, nil
	}
	if b&0xF4 == 0xF4 {
		m.idMark = []byte{b}
		m.state = StateIDRecord
		m.idRec = make([]byte, 0, m.desc.HeaderKind.HeaderSize())
		return Event{Kind: EventIDAddressMark}, nil
	}
	if b >= 0xF8 && b <= 0xFB {
		m.drMark = []byte{b}
		return m.enterDataRecord()
	}
	return Event{Kind: EventUnknownByte, Resync: true}, nil
}

func (m *Machine) enterDataRecord() (Event, error) {
	if m.sectorSize <= 0 {
		return Event{}, fmt.Errorf("record: data record reached before any ID record established a sector size")
	}
	m.state = StateDataRecord
	m.drRec = make([]byte, 0, m.sectorSize)
	return Event{Kind: EventDataAddressMark}, nil
}

func (m *Machine) atIDRecord(b byte) (Event, error) {
	m.idRec = append(m.idRec, b)
	m.byteCnt++
	headerSize := m.desc.HeaderKind.HeaderSize()
	if m.byteCnt != headerSize {
		return Event{}, nil
	}
	id := DecodeHeader(m.desc.HeaderKind, m.idMark[0], m.idRec)
	if m.autoSectorSize && id.LenValue != m.sectorSize {
		m.sectorSize = id.LenValue
	}
	m.lastIDBytesRaw = append([]byte(nil), m.idRec...)
	ev := Event{
		Kind:    EventIDHeader,
		ID:      id,
		IDBytes: concatBytes(m.a1, m.idMark, m.idRec),
	}
	m.byteCnt = 0
	m.state = StateIDRecordCRC
	return ev, nil
}

func (m *Machine) atIDRecordCRC(b byte) (Event, error) {
	m.idCRC = (m.idCRC << 8) | uint64(b)
	m.byteCnt++
	if m.byteCnt != m.desc.HeaderCRCBytes() {
		return Event{}, nil
	}
	computed := m.desc.HeaderCRC.Sum(m.a1, m.idMark, m.idRec)
	ev := Event{
		Kind:       EventIDCRCResult,
		IDCRCOK:    computed == m.idCRC,
		IDCRCBytes: concatBytes(m.a1, m.idMark, m.idRec, m.desc.HeaderCRC.Bytes(m.idCRC)),
	}
	m.state = StateFirstGapByte
	return ev, nil
}

func (m *Machine) atDataRecord(b byte) (Event, error) {
	if len(m.drRec) >= m.sectorSize {
		return Event{}, fmt.Errorf("record: data record overflowed configured sector size %d", m.sectorSize)
	}
	m.drRec = append(m.drRec, b)
	if len(m.drRec) != m.sectorSize {
		return Event{}, nil
	}
	m.byteCnt = 0
	m.state = StateDataRecordCRC
	return Event{}, nil
}

func (m *Machine) atDataRecordCRC(b byte) (Event, error) {
	m.drCRC = (m.drCRC << 8) | uint64(b)
	m.byteCnt++
	if m.byteCnt != m.desc.DataCRCBytes() {
		return Event{}, nil
	}
	computed := m.desc.DataCRC.Sum(m.a1, m.drMark, m.drRec)
	ev := Event{
		Kind:        EventDataCRCResult,
		Data:        append([]byte(nil), m.drRec...),
		DeletedData: m.desc.IsDeletedData(drMarkByte(m.drMark)),
		DataCRCOK:   computed == m.drCRC,
		DataBytes:   concatBytes(m.a1, m.drMark, m.drRec, m.desc.DataCRC.Bytes(m.drCRC)),
		IDDataBytes: concatBytes(m.lastIDBytesRaw, m.drRec),
	}
	m.state = StateFirstGapByte
	return ev, nil
}

func drMarkByte(mark []byte) byte {
	if len(mark) == 0 {
		return 0
	}
	return mark[0]
}

// atTriplePrefix handles the MFM floppy triple-C2h Index Mark preamble
// (spec.md §5's "triple-prefix discipline"); IDData_Address_Mark is
// reused for the A1 triple too, but the C2 triple needs its own states
// since its terminal byte differs (0xFC vs an address-mark byte).
func (m *Machine) atTriplePrefix(b byte) (Event, error) {
	if b != 0xC2 {
		return Event{Kind: EventUnknownByte, Resync: true}, nil
	}
	if m.state == StateSecondPrefix {
		m.state = StateThirdPrefix
		return Event{}, nil
	}
	m.state = StateIndexMark
	return Event{}, nil
}

func (m *Machine) atIndexMark(b byte) (Event, error) {
	if b != 0xFC {
		return Event{Kind: EventUnknownByte, Resync: true}, nil
	}
	m.state = StateFirstGapByte
	return Event{Kind: EventIndexMark}, nil
}

package format

import (
	"fmt"

	"github.com/dbehnke/dmr-nexus/pkg/crc"
)

// Options configures a decode run: which Kind, CRC parameters, and
// the handful of PLL tuning knobs spec.md §6 exposes. Built-in Kinds
// fill in everything except the CRC parameters and sector size from
// the catalog; Custom requires every field to be supplied explicitly.
type Options struct {
	Kind       Kind
	HeaderKind HeaderKind

	HeaderCRCWidth crc.Width
	HeaderCRCPoly  uint64
	HeaderCRCInit  uint64

	DataCRCWidth crc.Width
	DataCRCPoly  uint64
	DataCRCInit  uint64

	// SectorSize is 0 for "auto" (derive from the ID record).
	SectorSize int

	PLLKp             float64
	PLLKi             float64
	PLLSyncToleranceF float64 // fraction of halfbit_nom, e.g. 0.25

	// AllowExperimentalFormats must be set to select RLLDTC7287; the
	// header decoder for that format is explicitly unverified
	// (spec.md §9 Open Questions).
	AllowExperimentalFormats bool

	// Custom-format fields, only consulted when Kind == Custom.
	CustomLimitsMin, CustomLimitsMax int
	CustomCodemap                    Codemap
	CustomSyncPulse                  int
	CustomSyncMarks                  [][]int
	CustomShiftIndex                 []int
	CustomIDDataMark                 []byte
	CustomIDMark                     []byte
	CustomDataMark                   []byte
}

// DefaultOptions returns the zero-value-safe defaults spec.md §4.1
// names: kp=0.5, ki=0.0005, sync tolerance 25%.
func DefaultOptions() Options {
	return Options{
		Kind:              MFM,
		HeaderKind:        Header4Byte,
		HeaderCRCWidth:    crc.Width16,
		HeaderCRCPoly:     0x1021,
		HeaderCRCInit:     0xFFFF,
		DataCRCWidth:      crc.Width16,
		DataCRCPoly:       0x1021,
		DataCRCInit:       0xFFFF,
		PLLKp:             0.5,
		PLLKi:             0.0005,
		PLLSyncToleranceF: 0.25,
	}
}

func byteVal(v int) byte { return byte(v) }

// Build realizes a Descriptor for the given options, validating CRC
// widths and the experimental-format gate.
func Build(opt Options) (*Descriptor, error) {
	if opt.Kind == RLLDTC7287 && !opt.AllowExperimentalFormats {
		return nil, fmt.Errorf("format: RLL_DTC7287_unknown requires AllowExperimentalFormats (spec.md open question: header layout unverified)")
	}

	headerCRC, err := crc.New(opt.HeaderCRCWidth, opt.HeaderCRCPoly, opt.HeaderCRCInit)
	if err != nil {
		return nil, fmt.Errorf("format: header crc: %w", err)
	}
	dataCRC, err := crc.New(opt.DataCRCWidth, opt.DataCRCPoly, opt.DataCRCInit)
	if err != nil {
		return nil, fmt.Errorf("format: data crc: %w", err)
	}

	var d *Descriptor
	switch opt.Kind {
	case FM:
		d = builtinFM()
	case MFM:
		d = builtinMFM()
	case RLLSeagate:
		d = builtinRLLSeagate()
	case RLLAdaptec:
		d = builtinRLLAdaptec()
	case RLLAdaptec4070:
		d = builtinRLLAdaptec4070()
	case RLLWD:
		d = builtinRLLWD()
	case RLLOMTI:
		d = builtinRLLOMTI()
	case RLLDTC7287:
		d = builtinRLLDTC7287()
	case Custom:
		d = customDescriptor(opt)
	default:
		return nil, fmt.Errorf("format: unknown kind %v", opt.Kind)
	}

	d.HeaderKind = opt.HeaderKind
	d.HeaderCRC = headerCRC
	d.DataCRC = dataCRC
	d.SectorSize = opt.SectorSize
	return d, nil
}

// shiftIndexFor mirrors the reference decoder: a single common
// shift_index value is distributed across every sync_marks variant by
// subtracting that variant's own last pulse width; an explicit
// per-variant list is used as-is (after the same subtraction).
func shiftIndexFor(marks [][]int, common []int) []SyncMark {
	out := make([]SyncMark, len(marks))
	for i, m := range marks {
		var base int
		switch {
		case len(common) == 1:
			base = common[0]
		case i < len(common):
			base = common[i]
		}
		out[i] = SyncMark{Widths: m, ShiftIndex: base - m[len(m)-1]}
	}
	return out
}

func builtinFM() *Descriptor {
	idxFC := byteVal(0xFC)
	return &Descriptor{
		Kind:       FM,
		LimitsMin:  1,
		LimitsMax:  2,
		Codemap:    CodemapFMMFM,
		SyncPulse:  2,
		SyncMarks: shiftIndexFor([][]int{
			{1, 1, 1, 2, 2, 2, 1, 1, 1, 1, 1, 2},
			{1, 1, 1, 2, 2, 2, 1, 2, 1, 1, 1},
			{1, 1, 1, 2, 1, 1, 2, 1, 1, 1, 2, 2},
		}, []int{17}),
		IDMark:           []byte{0xFE},
		DataMark:         []byte{0xFB},
		DeletedDataMarks: []byte{0xF8, 0xF9, 0xFA},
		IndexMarkByte:    &idxFC,
	}
}

func builtinMFM() *Descriptor {
	idxC2 := byteVal(0xC2)
	return &Descriptor{
		Kind:      MFM,
		LimitsMin: 2,
		LimitsMax: 4,
		Codemap:   CodemapFMMFM,
		SyncPulse: 2,
		SyncMarks: shiftIndexFor([][]int{
			{3, 4, 3, 4, 3},
			{3, 2, 3, 4, 3, 4},
		}, []int{16, 18}),
		IDDataMark:      []byte{0xA1},
		TriplePrefix:    true,
		IndexMarkTriple: &idxC2,
	}
}

func builtinRLLSeagate() *Descriptor {
	return &Descriptor{
		Kind:      RLLSeagate,
		LimitsMin: 3,
		LimitsMax: 8,
		Codemap:   CodemapRLLIBM,
		SyncPulse: 3,
		SyncMarks: shiftIndexFor([][]int{
			{4, 3, 8, 3},
			{5, 6, 8, 3},
		}, []int{18}),
		IDDataMark:   []byte{0xA1},
		IDPrefixMark: []byte{0x1E},
		NopMark:      []byte{0xDE},
	}
}

func builtinRLLAdaptec() *Descriptor {
	return &Descriptor{
		Kind:      RLLAdaptec,
		LimitsMin: 3,
		LimitsMax: 8,
		Codemap:   CodemapRLLIBM,
		SyncPulse: 3,
		SyncMarks: shiftIndexFor([][]int{
			{4, 3, 8, 3},
			{5, 6, 8, 3},
			{8, 3},
		}, []int{18}),
		IDMark:     []byte{0xA1},
		IDDataMark: []byte{0xA0},
		NopMark:    []byte{0x1E, 0x5E, 0xDE},
	}
}

func builtinRLLAdaptec4070() *Descriptor {
	return &Descriptor{
		Kind:      RLLAdaptec4070,
		LimitsMin: 3,
		LimitsMax: 8,
		Codemap:   CodemapRLLIBM,
		SyncPulse: 3,
		SyncMarks: shiftIndexFor([][]int{
			{4, 3, 8, 3},
			{5, 6, 8, 3},
			{8, 3},
		}, []int{18}),
		IDMark:   []byte{0xA1},
		DataMark: []byte{0xA0},
		NopMark:  []byte{0x1E, 0x5E, 0xDE},
	}
}

func builtinRLLWD() *Descriptor {
	return &Descriptor{
		Kind:      RLLWD,
		LimitsMin: 3,
		LimitsMax: 8,
		Codemap:   CodemapRLLWD,
		SyncPulse: 3,
		SyncMarks: shiftIndexFor([][]int{
			{8, 3},
			{5, 8, 3},
			{7, 8, 3},
		}, []int{12}),
		IDDataMark: []byte{0xF0},
	}
}

func builtinRLLOMTI() *Descriptor {
	return &Descriptor{
		Kind:      RLLOMTI,
		LimitsMin: 3,
		LimitsMax: 8,
		Codemap:   CodemapRLLIBM,
		SyncPulse: 3,
		SyncMarks: shiftIndexFor([][]int{
			{6, 8, 3, 3},
			{5, 3, 8, 3, 3},
		}, []int{17}),
		IDDataMark: []byte{0xA1},
	}
}

// builtinRLLDTC7287 is the tentative, not-fully-understood variant
// (spec.md §9 Open Questions); its header decoder XORs input with
// 0xFF before interpreting it.
func builtinRLLDTC7287() *Descriptor {
	return &Descriptor{
		Kind:      RLLDTC7287,
		LimitsMin: 3,
		LimitsMax: 8,
		Codemap:   CodemapRLLWD,
		SyncPulse: 3,
		SyncMarks: shiftIndexFor([][]int{
			{4, 3, 8, 3},
			{5, 6, 8, 3},
		}, []int{18}),
		IDDataMark: []byte{0xA1},
	}
}

func customDescriptor(opt Options) *Descriptor {
	return &Descriptor{
		Kind:       Custom,
		LimitsMin:  opt.CustomLimitsMin,
		LimitsMax:  opt.CustomLimitsMax,
		Codemap:    opt.CustomCodemap,
		SyncPulse:  opt.CustomSyncPulse,
		SyncMarks:  shiftIndexFor(opt.CustomSyncMarks, opt.CustomShiftIndex),
		IDDataMark: opt.CustomIDDataMark,
		IDMark:     opt.CustomIDMark,
		DataMark:   opt.CustomDataMark,
	}
}

package format

// RLLCodeword is one entry of a variable-length RLL prefix table: a
// raw bit pattern of rawBits length decodes to the given number of
// data bits (value, packed MSB-first in the low decodedBits of the
// returned value).
type RLLCodeword struct {
	RawBits     int
	RawPattern  uint8 // right-aligned, rawBits wide
	DecodedBits int
	Decoded     uint8 // right-aligned, decodedBits wide
}

// RLLTable is a closed, variable-length prefix code: pll.DecodeRLL
// (pkg/pll/translate.go) walks it longest-pattern-first.
type RLLTable []RLLCodeword

// rllIBM and rllWD differ only in the decoded values of the two 6-bit
// patterns 0b000100 and 0b100100, matching decoding_codemap in the
// reference decoder.
var rllIBM = RLLTable{
	{RawBits: 4, RawPattern: 0b1000, DecodedBits: 2, Decoded: 0b11},
	{RawBits: 4, RawPattern: 0b0100, DecodedBits: 2, Decoded: 0b10},
	{RawBits: 6, RawPattern: 0b100100, DecodedBits: 3, Decoded: 0b010},
	{RawBits: 6, RawPattern: 0b001000, DecodedBits: 3, Decoded: 0b011},
	{RawBits: 6, RawPattern: 0b000100, DecodedBits: 3, Decoded: 0b000},
	{RawBits: 8, RawPattern: 0b00100100, DecodedBits: 4, Decoded: 0b0010},
	{RawBits: 8, RawPattern: 0b00001000, DecodedBits: 4, Decoded: 0b0011},
}

var rllWD = RLLTable{
	{RawBits: 4, RawPattern: 0b1000, DecodedBits: 2, Decoded: 0b11},
	{RawBits: 4, RawPattern: 0b0100, DecodedBits: 2, Decoded: 0b10},
	{RawBits: 6, RawPattern: 0b100100, DecodedBits: 3, Decoded: 0b000},
	{RawBits: 6, RawPattern: 0b000100, DecodedBits: 3, Decoded: 0b010},
	{RawBits: 6, RawPattern: 0b001000, DecodedBits: 3, Decoded: 0b011},
	{RawBits: 8, RawPattern: 0b00100100, DecodedBits: 4, Decoded: 0b0010},
	{RawBits: 8, RawPattern: 0b00001000, DecodedBits: 4, Decoded: 0b0011},
}

// RLLTableFor returns the codeword table for an RLL codemap selector.
func RLLTableFor(cm Codemap) RLLTable {
	switch cm {
	case CodemapRLLWD:
		return rllWD
	default:
		return rllIBM
	}
}

// SyncMarkXORFixup returns the value an RLL shift register must be
// XORed with, immediately after a sync mark match, so the illegal
// half-bit sequence that encoded the mark becomes a legal codeword
// again. OMTI uses a different fixup than the other RLL variants.
func SyncMarkXORFixup(k Kind) uint32 {
	if k == RLLOMTI {
		return 3
	}
	return 16
}

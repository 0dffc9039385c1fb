package pll

import "github.com/dbehnke/dmr-nexus/pkg/format"

// DecodeFMMFM extracts one byte of decoded data from a 16-half-bit-cell
// raw window using the population-count deinterleave trick: data bits
// occupy the even positions (clock bits the odd ones), so masking to
// 0x5555 and folding pairs together with OR-shift steps packs the 8
// data bits down into the low byte. Grounded on the reference
// decoder's fm_mfm_decode.
func DecodeFMMFM(raw uint16) byte {
	x := uint32(raw) & 0x5555
	x = (x | (x >> 1)) & 0x3333
	x = (x | (x >> 2)) & 0x0f0f
	x = (x | (x >> 4)) & 0x00ff
	return byte(x)
}

// DecodeRLL attempts to pull one codeword off the top of the pending
// shift register, trying the longest raw-bit-width patterns first and
// falling back to shorter ones, per the reference decoder's
// rll_decode. unrecoverable is set only when at least 8 raw bits are
// pending and none of the 8/6/4-bit patterns match — spec.md's "a
// stretch of >= 8 unmatched raw bits" failure.
func DecodeRLL(table format.RLLTable, shift uint32, shiftIndex int) (decoded uint8, decodedBits, consumed int, unrecoverable, ok bool) {
	lookup := func(bits int, val uint32) (format.RLLCodeword, bool) {
		for _, e := range table {
			if e.RawBits == bits && uint32(e.RawPattern) == val {
				return e, true
			}
		}
		return format.RLLCodeword{}, false
	}

	switch {
	case shiftIndex >= 8:
		top8 := (shift >> uint(shiftIndex-8)) & 0xff
		if e, found := lookup(8, top8); found {
			return e.Decoded, e.DecodedBits, 8, false, true
		}
		top6 := (shift >> uint(shiftIndex-6)) & 0x3f
		if e, found := lookup(6, top6); found {
			return e.Decoded, e.DecodedBits, 6, false, true
		}
		top4 := (shift >> uint(shiftIndex-4)) & 0xf
		if e, found := lookup(4, top4); found {
			return e.Decoded, e.DecodedBits, 4, false, true
		}
		return 0, 0, 8, true, false
	case shiftIndex >= 6:
		top6 := (shift >> uint(shiftIndex-6)) & 0x3f
		if e, found := lookup(6, top6); found {
			return e.Decoded, e.DecodedBits, 6, false, true
		}
		top4 := (shift >> uint(shiftIndex-4)) & 0xf
		if e, found := lookup(4, top4); found {
			return e.Decoded, e.DecodedBits, 4, false, true
		}
		return 0, 0, 0, false, false
	case shiftIndex >= 4:
		top4 := (shift >> uint(shiftIndex-4)) & 0xf
		if e, found := lookup(4, top4); found {
			return e.Decoded, e.DecodedBits, 4, false, true
		}
		return 0, 0, 0, false, false
	default:
		return 0, 0, 0, false, false
	}
}

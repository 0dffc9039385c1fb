// Package crc implements a table-driven, width-parameterized CRC
// engine shared by the ID and Data record checks.
package crc

import "fmt"

// Width is a supported CRC width in bits.
type Width int

const (
	Width16 Width = 16
	Width32 Width = 32
	Width48 Width = 48
	Width56 Width = 56
)

func (w Width) valid() bool {
	switch w {
	case Width16, Width32, Width48, Width56:
		return true
	default:
		return false
	}
}

// Engine computes a CRC of the given width/polynomial/init over one or
// more byte slices concatenated in order, using a 256-entry lookup
// table built once at construction time.
type Engine struct {
	width Width
	poly  uint64
	init  uint64
	mask  uint64
	table [256]uint64
}

// New builds a CRC engine. poly and init are interpreted modulo the
// CRC width; bits outside the width are ignored.
func New(width Width, poly, init uint64) (*Engine, error) {
	if !width.valid() {
		return nil, fmt.Errorf("crc: unsupported width %d", width)
	}
	mask := widthMask(width)
	e := &Engine{
		width: width,
		poly:  poly & mask,
		init:  init & mask,
		mask:  mask,
	}
	e.buildTable()
	return e, nil
}

func widthMask(w Width) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

// buildTable mirrors the reference decoder's make_crc_table: for each
// candidate leading byte, shift it into the top of the register and
// divide by the polynomial, topbit at a time.
func (e *Engine) buildTable() {
	topbit := uint64(1) << (uint(e.width) - 1)
	shift := uint(e.width) - 8
	for i := 0; i < 256; i++ {
		reg := uint64(i) << shift
		for b := 0; b < 8; b++ {
			if reg&topbit != 0 {
				reg = ((reg << 1) ^ e.poly) & e.mask
			} else {
				reg = (reg << 1) & e.mask
			}
		}
		e.table[i] = reg
	}
}

// Width reports the configured CRC width in bits.
func (e *Engine) Width() Width { return e.width }

// Sum computes the CRC over the concatenation of arrays, in order,
// using the shared table. The update rule is
//
//	idx = ((crc >> (width-8)) ^ b) & 0xFF
//	crc = ((crc << 8) ^ table[idx]) & mask
func (e *Engine) Sum(arrays ...[]byte) uint64 {
	crc := e.init
	shift := uint(e.width) - 8
	for _, arr := range arrays {
		for _, b := range arr {
			idx := (crc>>shift ^ uint64(b)) & 0xFF
			crc = ((crc << 8) ^ e.table[idx]) & e.mask
		}
	}
	return crc
}

// Bytes renders a CRC value as big-endian bytes of the engine's width.
func (e *Engine) Bytes(v uint64) []byte {
	n := (int(e.width) + 7) / 8
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// Shared reports whether two engines were built from the same width
// and polynomial, in which case they can share one lookup table (the
// header and data CRC contexts, when configured identically).
func Shared(a, b *Engine) bool {
	return a.width == b.width && a.poly == b.poly
}

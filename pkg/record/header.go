package record

import "github.com/dbehnke/dmr-nexus/pkg/format"

// ID is the decoded address-mark payload of one ID record: cylinder,
// side, sector and the sector-length class/value it implies.
type ID struct {
	Cylinder int
	Side     int
	Sector   int
	LenClass int
	LenValue int
}

// DecodeHeader interprets raw (the header_size bytes read after the
// address mark) according to kind, using idMark (the address-mark
// byte itself) where the layout encodes extra bits there. Grounded on
// the reference decoder's decode_id_rec_* family.
func DecodeHeader(kind format.HeaderKind, idMark byte, raw []byte) ID {
	switch kind {
	case format.Header3Byte:
		return decode3Byte(idMark, raw)
	case format.Header4Byte:
		return decode4Byte(raw)
	case format.Header4ByteSeagate:
		return decode4ByteSeagate(raw)
	case format.Header4ByteOMTI:
		return decode4ByteOMTI(raw)
	case format.Header4ByteAdaptec:
		return decode4ByteAdaptec(raw)
	case format.Header4ByteAdaptec4070:
		return decode4ByteAdaptec4070(raw)
	case format.Header3ByteDTC7287:
		return decode3ByteDTC7287(idMark, raw)
	default:
		return ID{}
	}
}

// decode3Byte: the address-mark byte smuggles 3 extra high bits of
// cylinder (the FC-FFh ID Address Mark range only has room for 2 free
// bits plus one XOR-complemented bit).
func decode3Byte(idMark byte, raw []byte) ID {
	msb := (idMark ^ 0xE) & 0x0F
	cyl := (int(msb&0b11) << 8) + (int(msb&0b1000) << 7) + int(raw[0])
	lenc := int(raw[1] >> 4)
	return ID{
		Cylinder: cyl,
		Side:     int(raw[1] & 0x0F),
		Sector:   int(raw[2]),
		LenClass: lenc,
		LenValue: 128 << uint(lenc&7),
	}
}

func decode4Byte(raw []byte) ID {
	lenc := int(raw[3])
	return ID{
		Cylinder: int(raw[0]),
		Side:     int(raw[1]),
		Sector:   int(raw[2]),
		LenClass: lenc,
		LenValue: 128 << uint(lenc&7),
	}
}

func decode4ByteSeagate(raw []byte) ID {
	return ID{
		Cylinder: (int(raw[0]&0b11000000) << 2) + int(raw[1]),
		Side:     int(raw[0] & 0xF),
		Sector:   int(raw[2]), // a spare/unused sector is marked 254 by convention
		LenClass: 2,
		LenValue: 512,
	}
}

func decode4ByteOMTI(raw []byte) ID {
	return ID{
		Cylinder: (int(raw[0]) << 8) + int(raw[1]),
		Side:     int(raw[2]),
		Sector:   int(raw[3]),
		LenClass: 2,
		LenValue: 512,
	}
}

func decode4ByteAdaptec(raw []byte) ID {
	return ID{
		Cylinder: (int(raw[1]&0xF0) << 4) + int(raw[0]),
		Side:     int(raw[1] & 0xF),
		Sector:   int(raw[2]),
		LenClass: 2,
		LenValue: 512,
	}
}

// decode4ByteAdaptec4070 is the Adaptec RLL-to-SCSI bridge format,
// which stores a flat LBA instead of CHS; the decoder reconstructs
// cylinder/head/sector assuming the bridge's fixed 6 heads, 26
// sectors/track geometry.
func decode4ByteAdaptec4070(raw []byte) ID {
	lba := (int(raw[0]) << 16) + (int(raw[1]) << 8) + int(raw[2])
	const headsPerCyl = 6
	const sectorsPerTrack = 26
	track := lba / sectorsPerTrack
	cyl := track / headsPerCyl
	side := track - cyl*headsPerCyl
	sector := lba - track*sectorsPerTrack
	return ID{Cylinder: cyl, Side: side, Sector: sector, LenClass: 2, LenValue: 512}
}

// decode3ByteDTC7287 is the tentative, not-fully-understood DTC7287
// layout (spec.md §9 Open Questions): every field is recovered from
// the bitwise complement of the raw bytes, and side 7 is folded to 5
// by a quirk in the reference decoder this port preserves as-is.
func decode3ByteDTC7287(idMark byte, raw []byte) ID {
	rec := make([]byte, len(raw))
	for i, b := range raw {
		rec[i] = b ^ 0xff
	}
	mark := idMark ^ 0xff
	msb := (mark ^ 0x0c) & 0x0F
	cyl := (int(msb&0b11) << 8) + (int(msb&0b1000) << 7) + int(rec[0]>>1)
	side := int(rec[1]&0x0F) >> 1
	if side == 7 {
		side = 5
	}
	id := ID{
		Cylinder: cyl,
		Side:     side,
		Sector:   int(rec[2]&0b111110) >> 1,
		LenClass: 2,
		LenValue: 512,
	}
	if rec[1]&0b00000001 != 0 {
		id.LenValue = 64
		id.Sector = 254
	}
	return id
}

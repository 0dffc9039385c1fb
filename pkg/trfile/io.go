package trfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader parses a .tr file from an underlying io.Reader, track by
// track, after the header has been read.
type Reader struct {
	r io.Reader
	h *Header
}

// ReadHeader parses the file preamble and header, leaving r positioned
// at the first track.
func ReadHeader(r io.Reader) (*Reader, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("trfile: read preamble: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("trfile: bad preamble %x", magic)
	}

	var versionRaw, offsetFirstTrack uint32
	if err := binary.Read(r, binary.LittleEndian, &versionRaw); err != nil {
		return nil, fmt.Errorf("trfile: read file_type_version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &offsetFirstTrack); err != nil {
		return nil, fmt.Errorf("trfile: read offset_first_track: %w", err)
	}

	h := &Header{
		Type:  FileType(versionRaw >> 24),
		Major: uint8(versionRaw >> 16),
		Minor: uint8(versionRaw >> 8),
	}

	headerBody := make([]byte, 0, 64)
	buf := bufferedReader{r: r, captured: &headerBody}

	if h.Type == TypeEmulator {
		if err := readU32(&buf, &h.TrackDataSize); err != nil {
			return nil, fmt.Errorf("trfile: read track_data_size: %w", err)
		}
	}
	if err := readU32(&buf, &h.TrackHeaderSize); err != nil {
		return nil, fmt.Errorf("trfile: read track_header_size: %w", err)
	}
	if err := readU32(&buf, &h.NumCylinders); err != nil {
		return nil, fmt.Errorf("trfile: read num_cylinders: %w", err)
	}
	if err := readU32(&buf, &h.NumHeads); err != nil {
		return nil, fmt.Errorf("trfile: read num_heads: %w", err)
	}
	if err := readU32(&buf, &h.BitRate); err != nil {
		return nil, fmt.Errorf("trfile: read bit_rate: %w", err)
	}
	if h.Type == TypeTransition && h.BitRate != 200_000_000 {
		return nil, fmt.Errorf("trfile: transition file bit_rate must be 200000000, got %d", h.BitRate)
	}

	cmdLine, err := readLenPrefixed(&buf)
	if err != nil {
		return nil, fmt.Errorf("trfile: read cmd_line: %w", err)
	}
	h.CmdLine = string(cmdLine)

	note, err := readLenPrefixed(&buf)
	if err != nil {
		return nil, fmt.Errorf("trfile: read note: %w", err)
	}
	h.Note = string(note)

	if err := readU32(&buf, &h.StartTimeNS); err != nil {
		return nil, fmt.Errorf("trfile: read start_time_ns: %w", err)
	}

	if h.Type == TypeTransition {
		var storedCRC uint32
		if err := binary.Read(r, binary.LittleEndian, &storedCRC); err != nil {
			return nil, fmt.Errorf("trfile: read header CRC: %w", err)
		}
		computed := uint32(headerCRC.Sum(headerBody))
		if computed != storedCRC {
			return nil, fmt.Errorf("trfile: header CRC mismatch: got %#08x, want %#08x", computed, storedCRC)
		}
	}

	return &Reader{r: r, h: h}, nil
}

// Header returns the parsed file header.
func (rd *Reader) Header() *Header { return rd.h }

// ReadTrack reads the next track. For TypeTransition files, a track
// with IsEndMarker() true signals the end of the file and no further
// reads should be attempted. TypeEmulator files are read until r
// returns io.EOF.
func (rd *Reader) ReadTrack() (*Track, error) {
	if rd.h.Type == TypeEmulator {
		return rd.readEmulatorTrack()
	}
	return rd.readTransitionTrack()
}

func (rd *Reader) readTransitionTrack() (*Track, error) {
	var raw bytes.Buffer
	tee := io.TeeReader(rd.r, &raw)

	var cyl, head int32
	if err := binary.Read(tee, binary.LittleEndian, &cyl); err != nil {
		return nil, fmt.Errorf("trfile: read track cylinder: %w", err)
	}
	if err := binary.Read(tee, binary.LittleEndian, &head); err != nil {
		return nil, fmt.Errorf("trfile: read track head: %w", err)
	}

	t := &Track{Cylinder: cyl, Head: head}
	if t.IsEndMarker() {
		return t, nil
	}

	var numDataBytes uint32
	if err := binary.Read(tee, binary.LittleEndian, &numDataBytes); err != nil {
		return nil, fmt.Errorf("trfile: read track num_data_bytes: %w", err)
	}

	data := make([]byte, numDataBytes)
	if _, err := io.ReadFull(tee, data); err != nil {
		return nil, fmt.Errorf("trfile: read track data: %w", err)
	}
	deltas, err := decodeDeltas(data)
	if err != nil {
		return nil, fmt.Errorf("trfile: decode deltas: %w", err)
	}
	t.Deltas = deltas

	var storedCRC uint32
	if err := binary.Read(rd.r, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("trfile: read track CRC: %w", err)
	}
	computed := uint32(headerCRC.Sum(raw.Bytes()))
	if computed != storedCRC {
		return nil, fmt.Errorf("trfile: track (%d,%d) CRC mismatch: got %#08x, want %#08x", cyl, head, computed, storedCRC)
	}

	return t, nil
}

func (rd *Reader) readEmulatorTrack() (*Track, error) {
	var trackMagic, cylU, headU uint32
	if err := binary.Read(rd.r, binary.LittleEndian, &trackMagic); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("trfile: read emulator track magic: %w", err)
	}
	if trackMagic != EmulatorTrackMagic {
		return nil, fmt.Errorf("trfile: bad emulator track magic %#08x", trackMagic)
	}
	if err := binary.Read(rd.r, binary.LittleEndian, &cylU); err != nil {
		return nil, fmt.Errorf("trfile: read emulator track cylinder: %w", err)
	}
	if err := binary.Read(rd.r, binary.LittleEndian, &headU); err != nil {
		return nil, fmt.Errorf("trfile: read emulator track head: %w", err)
	}

	data := make([]byte, rd.h.TrackDataSize)
	if _, err := io.ReadFull(rd.r, data); err != nil {
		return nil, fmt.Errorf("trfile: read emulator track data: %w", err)
	}

	return &Track{Cylinder: int32(cylU), Head: int32(headU), Data: data}, nil
}

// bufferedReader wraps an io.Reader and appends every byte it reads
// into *captured, so the header body bytes can be fed to the CRC
// engine afterward without a second pass over the stream.
type bufferedReader struct {
	r        io.Reader
	captured *[]byte
}

func (b *bufferedReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	*b.captured = append(*b.captured, p[:n]...)
	return n, err
}

func readU32(r io.Reader, out *uint32) error {
	return binary.Read(r, binary.LittleEndian, out)
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// decodeDeltas expands the delta-encoded pulse stream: 0..253 is a
// literal 1-byte delta, 254 introduces a 2-byte LE delta, 255
// introduces a 3-byte LE delta.
func decodeDeltas(data []byte) ([]uint32, error) {
	var out []uint32
	i := 0
	for i < len(data) {
		b := data[i]
		i++
		switch {
		case b < 254:
			out = append(out, uint32(b))
		case b == 254:
			if i+2 > len(data) {
				return nil, fmt.Errorf("truncated 2-byte delta at offset %d", i)
			}
			out = append(out, uint32(data[i])|uint32(data[i+1])<<8)
			i += 2
		default: // 255
			if i+3 > len(data) {
				return nil, fmt.Errorf("truncated 3-byte delta at offset %d", i)
			}
			out = append(out, uint32(data[i])|uint32(data[i+1])<<8|uint32(data[i+2])<<16)
			i += 3
		}
	}
	return out, nil
}

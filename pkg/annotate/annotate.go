// Package annotate defines the decoder's two output shapes — region
// annotations and framed binary records — and sinks that accept them,
// per spec.md §4.5/§4.6.
package annotate

import "encoding/json"

// StreamID enumerates the annotation rows a decode run produces.
type StreamID int

const (
	StreamPulses StreamID = iota
	StreamWindows
	StreamPrefixes
	StreamBits
	StreamBytes
	StreamFields
	StreamErrors
	StreamReports
)

func (s StreamID) String() string {
	switch s {
	case StreamPulses:
		return "pulses"
	case StreamWindows:
		return "windows"
	case StreamPrefixes:
		return "prefixes"
	case StreamBits:
		return "bits"
	case StreamBytes:
		return "bytes"
	case StreamFields:
		return "fields"
	case StreamErrors:
		return "errors"
	case StreamReports:
		return "reports"
	default:
		return "unknown"
	}
}

// Region is one annotation row: a sample span tagged with a class and
// a list of variant strings, ordered longest-to-shortest so a UI can
// abbreviate when space is tight (spec.md §4.5).
type Region struct {
	Start, End uint64
	Stream     StreamID
	Class      string
	Variants   []string
}

// BinaryKind enumerates the framed binary artifacts the record state
// machine emits (spec.md §4.5/§6).
type BinaryKind int

const (
	BinaryID BinaryKind = iota
	BinaryData
	BinaryIDData
	BinaryIDCRC
	BinaryDataCRC
	BinaryTR
	BinaryEx
)

func (k BinaryKind) String() string {
	switch k {
	case BinaryID:
		return "id"
	case BinaryData:
		return "data"
	case BinaryIDData:
		return "iddata"
	case BinaryIDCRC:
		return "idcrc"
	case BinaryDataCRC:
		return "datacrc"
	case BinaryTR:
		return "tr"
	case BinaryEx:
		return "ex"
	default:
		return "unknown"
	}
}

// Binary is one completed binary artifact.
type Binary struct {
	Start, End uint64
	Kind       BinaryKind
	Bytes      []byte
}

// wireRegion and wireBinary are the JSON shapes Region and Binary
// marshal to: stream/kind as their string names rather than raw enum
// ints, and field names a browser-side consumer (pkg/livestream) or a
// WriterSink-fed file can rely on.
type wireRegion struct {
	Start    uint64   `json:"start"`
	End      uint64   `json:"end"`
	Stream   string   `json:"stream"`
	Class    string   `json:"class"`
	Variants []string `json:"variants,omitempty"`
}

type wireBinary struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	Kind  string `json:"kind"`
	Bytes []byte `json:"bytes"` // base64 via encoding/json
}

// MarshalJSON implements json.Marshaler.
func (r Region) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireRegion{
		Start: r.Start, End: r.End,
		Stream: r.Stream.String(), Class: r.Class, Variants: r.Variants,
	})
}

// MarshalJSON implements json.Marshaler.
func (b Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireBinary{
		Start: b.Start, End: b.End, Kind: b.Kind.String(), Bytes: b.Bytes,
	})
}

// Sink accepts region annotations as the decode loop produces them.
type Sink interface {
	Put(r Region)
}

// BinarySink accepts completed binary artifacts.
type BinarySink interface {
	PutBinary(b Binary)
}

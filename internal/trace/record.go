// Package trace defines the on-disk and wire data model for the tensor
// access tracer: the fixed-size binary record, the tensor registry
// entry, the model memory map, buffer events, graph dumps, and the
// JSON artifacts the offline pipeline produces.
package trace

import (
	"encoding/binary"
	"fmt"
)

// RecordSize is the fixed, wire-compatible size of a Record in bytes.
// This is the single compatibility contract between the tracer and
// every offline reader; it must never change without a format bump.
const RecordSize = 256

const (
	nameFieldSize  = 20
	headerSize     = 40 // 8+4+2+2+1+1+1+1+20
	sourceSlotSize = 52 // 20+8+4+2+1+1+8+8
	maxSources     = 4
	maxExperts     = 8 // also the byte width of the trailing expert-id array

	// LayerIDNone is the sentinel layer id for a destination that is
	// not owned by any transformer block.
	LayerIDNone uint16 = 0xFFFF

	// MaxSourceSlots and MaxExpertIDs are the public names for the two
	// capacity constants callers outside this package (the hook) need
	// to size their own fixed arrays against.
	MaxSourceSlots = maxSources
	MaxExpertIDs   = maxExperts
)

func init() {
	const total = headerSize + maxSources*sourceSlotSize + maxExperts
	if total != RecordSize {
		panic(fmt.Sprintf("trace: record layout sums to %d bytes, want %d", total, RecordSize))
	}
}

// MemorySource classifies where a source tensor's bytes physically
// live: inside the memory-mapped model file, or in a runtime buffer.
type MemorySource uint8

const (
	SourceDisk   MemorySource = 0
	SourceBuffer MemorySource = 1
)

func (s MemorySource) String() string {
	if s == SourceDisk {
		return "DISK"
	}
	return "BUFFER"
}

// Phase is the coarse run state recorded with every op.
type Phase uint8

const (
	PhasePrompt   Phase = 0
	PhaseGenerate Phase = 1
)

func (p Phase) String() string {
	if p == PhasePrompt {
		return "prompt"
	}
	return "generate"
}

// SourceSlot is one populated source-tensor descriptor inside a Record.
type SourceSlot struct {
	Name        string
	Ptr         uint64
	Size        uint32
	SourceLayer uint16
	Memory      MemorySource
	OffsetOrID  uint64
}

// Record is one executed operation, exactly RecordSize bytes on the
// wire. Field order and widths follow spec.md §3.1; the total of the
// per-field widths spec.md lists for a source slot (name 20 + ptr 8 +
// size 4 + source-layer 2 + memory_source 1 + padding 1 +
// offset_or_buffer_id 8 + reserved 8 = 52) is what actually makes the
// record sum to exactly 256 bytes once the trailing expert-id array
// is accounted for; this struct is never passed through
// encoding/binary's struct-reflection path — Encode/Decode pack and
// unpack every field by explicit byte offset, never by Go struct
// layout.
type Record struct {
	TimestampNS   uint64
	TokenID       uint32
	LayerID       uint16
	ThreadID      uint16
	Phase         Phase
	OperationType uint8
	NumSources    uint8
	NumExperts    uint8
	DstName       string
	Sources       [maxSources]SourceSlot
	ExpertIDs     [maxExperts]uint8
}

// Encode packs r into a RecordSize-byte buffer in little-endian order.
func (r *Record) Encode() [RecordSize]byte {
	var buf [RecordSize]byte

	binary.LittleEndian.PutUint64(buf[0:8], r.TimestampNS)
	binary.LittleEndian.PutUint32(buf[8:12], r.TokenID)
	binary.LittleEndian.PutUint16(buf[12:14], r.LayerID)
	binary.LittleEndian.PutUint16(buf[14:16], r.ThreadID)
	buf[16] = byte(r.Phase)
	buf[17] = r.OperationType
	buf[18] = r.NumSources
	buf[19] = r.NumExperts
	putFixedName(buf[20:40], r.DstName)

	off := headerSize
	for i := 0; i < maxSources; i++ {
		encodeSourceSlot(buf[off:off+sourceSlotSize], r.Sources[i])
		off += sourceSlotSize
	}
	copy(buf[off:off+maxExperts], r.ExpertIDs[:])
	return buf
}

func encodeSourceSlot(b []byte, s SourceSlot) {
	putFixedName(b[0:20], s.Name)
	binary.LittleEndian.PutUint64(b[20:28], s.Ptr)
	binary.LittleEndian.PutUint32(b[28:32], s.Size)
	binary.LittleEndian.PutUint16(b[32:34], s.SourceLayer)
	b[34] = byte(s.Memory)
	b[35] = 0 // padding
	binary.LittleEndian.PutUint64(b[36:44], s.OffsetOrID)
	// bytes 44:52 are "reserved" and left zero.
}

func decodeSourceSlot(b []byte) SourceSlot {
	return SourceSlot{
		Name:        readFixedName(b[0:20]),
		Ptr:         binary.LittleEndian.Uint64(b[20:28]),
		Size:        binary.LittleEndian.Uint32(b[28:32]),
		SourceLayer: binary.LittleEndian.Uint16(b[32:34]),
		Memory:      MemorySource(b[34]),
		OffsetOrID:  binary.LittleEndian.Uint64(b[36:44]),
	}
}

// Decode unpacks a RecordSize-byte buffer into a Record.
func Decode(buf [RecordSize]byte) (Record, error) {
	var r Record
	r.TimestampNS = binary.LittleEndian.Uint64(buf[0:8])
	r.TokenID = binary.LittleEndian.Uint32(buf[8:12])
	r.LayerID = binary.LittleEndian.Uint16(buf[12:14])
	r.ThreadID = binary.LittleEndian.Uint16(buf[14:16])
	r.Phase = Phase(buf[16])
	r.OperationType = buf[17]
	r.NumSources = buf[18]
	r.NumExperts = buf[19]
	if r.NumSources > maxSources {
		return r, fmt.Errorf("trace: record has num_sources=%d > %d", r.NumSources, maxSources)
	}
	if r.NumExperts > maxExperts {
		return r, fmt.Errorf("trace: record has num_experts=%d > %d", r.NumExperts, maxExperts)
	}
	r.DstName = readFixedName(buf[20:40])

	off := headerSize
	for i := 0; i < maxSources; i++ {
		r.Sources[i] = decodeSourceSlot(buf[off : off+sourceSlotSize])
		off += sourceSlotSize
	}
	copy(r.ExpertIDs[:], buf[off:off+maxExperts])
	return r, nil
}

// maxNameChars is the longest name that fits with a guaranteed
// trailing NUL in a nameFieldSize-byte field (spec.md §4.11: names are
// truncated to 19 characters, never to the full 20, so the parser can
// always find the terminator).
const maxNameChars = nameFieldSize - 1

func putFixedName(b []byte, name string) {
	if len(name) > maxNameChars {
		name = name[:maxNameChars]
	}
	n := copy(b, name)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

func readFixedName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

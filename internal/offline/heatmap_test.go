package offline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tensortrace/internal/trace"
)

func TestHeatmapConservation(t *testing.T) {
	mm := &trace.MemoryMap{Tensors: []trace.TensorLayout{
		{Name: "block.0.attn_q.weight", Offset: 0, OffsetEnd: 100},
	}}

	records := []trace.Record{
		{
			TimestampNS: 10,
			DstName:     "out0",
			NumSources:  2,
			Sources: [trace.MaxSourceSlots]trace.SourceSlot{
				{Name: "block.0.attn_q.weight", Memory: trace.SourceDisk, OffsetOrID: 5},
				{Name: "scratch", Memory: trace.SourceBuffer},
			},
		},
		{
			TimestampNS: 20,
			DstName:     "out1",
			NumSources:  1,
			Sources: [trace.MaxSourceSlots]trace.SourceSlot{
				{Name: "scratch", Memory: trace.SourceBuffer},
			},
		},
	}

	b := NewHeatmapBuilder(mm)
	diag := b.Ingest(records)
	assert.True(t, diag.Clean())

	var totalReads, totalWrites int64
	var totalSources int
	for _, r := range records {
		totalSources += int(r.NumSources)
	}
	for _, e := range b.Entries() {
		totalReads += e.SourceReads
		totalWrites += e.DestWrites
	}
	assert.Equal(t, int64(len(records)+totalSources), totalReads+totalWrites)
}

func TestHeatmapTracksUnregisteredBufferByName(t *testing.T) {
	mm := &trace.MemoryMap{Tensors: []trace.TensorLayout{
		{Name: "block.0.attn_q.weight", Offset: 0, OffsetEnd: 10},
	}}
	records := []trace.Record{
		{
			DstName:    "scratch",
			NumSources: 1,
			Sources: [trace.MaxSourceSlots]trace.SourceSlot{
				{Name: "block.0.attn_q.weight", Memory: trace.SourceDisk, OffsetOrID: 5},
			},
		},
	}
	b := NewHeatmapBuilder(mm)
	b.Ingest(records)

	entries := map[string]trace.HeatmapEntry{}
	for _, e := range b.Entries() {
		entries[e.Name] = e
	}
	scratch := entries["scratch"]
	assert.False(t, scratch.IsDiskResident)
	assert.Equal(t, int64(1), scratch.DestWrites)

	disk := entries["block.0.attn_q.weight"]
	assert.True(t, disk.IsDiskResident)
	assert.Equal(t, int64(1), disk.SourceReads)
}

func TestSortedHeatmapEntriesOrdersByName(t *testing.T) {
	entries := []trace.HeatmapEntry{{Name: "c"}, {Name: "a"}, {Name: "b"}}
	sorted := SortedHeatmapEntries(entries)
	want := []string{"a", "b", "c"}
	for i, e := range sorted {
		assert.Equal(t, want[i], e.Name)
	}
}

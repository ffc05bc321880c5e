package trace

// RegistryEntry is one immutable entry in the tensor registry (spec.md
// §3.2): a runtime pointer resolved to its logical name, model-file
// byte offset (0 if not disk-resident), byte size, and inferred layer
// id. Created once during model load and never mutated afterward.
type RegistryEntry struct {
	Ptr        uint64
	Name       string
	FileOffset uint64
	Size       uint64
	LayerID    uint16 // LayerIDNone if the name carries no block.N. prefix
}

// TensorCategory classifies a tensor's functional role, inferred from
// its name, for the model memory map (spec.md §3.3).
type TensorCategory string

const (
	CategoryEmbedding   TensorCategory = "embedding"
	CategoryAttention   TensorCategory = "attention"
	CategoryFeedForward TensorCategory = "feed_forward"
	CategoryNorm        TensorCategory = "norm"
	CategoryOutput      TensorCategory = "output"
	CategoryOther       TensorCategory = "other"
)

// TensorLayout is one entry in the model memory map: the full,
// untruncated tensor metadata as recovered from the model's on-disk
// layout dump. Component is the name's trailing dotted segment (e.g.
// "weight", "bias"); ComponentType is the segment identifying the
// tensor's specific role within its layer (e.g. "attn_q", "ffn_gate"),
// distinct from the broader Category.
type TensorLayout struct {
	Name          string         `json:"name"`
	Offset        uint64         `json:"offset_start"`
	OffsetEnd     uint64         `json:"offset_end"`
	Size          uint64         `json:"size_bytes"`
	DType         string         `json:"dtype"`
	Shape         []int64        `json:"shape"`
	Category      TensorCategory `json:"category"`
	LayerID       *uint16        `json:"layer_id"`
	Component     string         `json:"component"`
	ComponentType string         `json:"component_type"`
	ExpertID      *int           `json:"expert_id,omitempty"`
}

// MemoryMap is the offline "model memory map" artifact (spec.md §3.3,
// §6.6): the ordered list of a model's on-disk tensors plus summary
// metadata used by the visualizer.
type MemoryMap struct {
	ModelName     string         `json:"model_name"`
	TotalSizeByte uint64         `json:"total_size_bytes"`
	Metadata      MapMetadata    `json:"metadata"`
	Tensors       []TensorLayout `json:"tensors"`
}

// MapMetadata carries model-shape summary fields for MemoryMap.
type MapMetadata struct {
	NLayers  int `json:"n_layers"`
	NVocab   int `json:"n_vocab"`
	NEmbd    int `json:"n_embd"`
	NTensors int `json:"n_tensors"`
}

// BufferEventKind distinguishes allocation from deallocation in the
// buffer event log (spec.md §3.4, §6.2).
type BufferEventKind string

const (
	BufferEventAlloc   BufferEventKind = "alloc"
	BufferEventDealloc BufferEventKind = "dealloc"
)

// BufferEvent is one JSONL record in the buffer event log.
type BufferEvent struct {
	TimestampMS int64           `json:"timestamp_ms"`
	Event       BufferEventKind `json:"event"`
	ID          uint64          `json:"id"`
	Ptr         uint64          `json:"ptr"`
	Size        uint64          `json:"size"`
	Layer       int32           `json:"layer"` // -1 sentinel, matches §6.2
	Label       string          `json:"label"`
}

// GraphNodeKind classifies a graph node for the offline graph parser
// (spec.md §3.5).
type GraphNodeKind string

const (
	NodeEmbedding     GraphNodeKind = "embedding"
	NodeLayerInternal GraphNodeKind = "layer_internal"
	NodeOutput        GraphNodeKind = "output"
	NodeInfra         GraphNodeKind = "infrastructure"
)

// GraphNode is one node of a per-token computation graph dump.
type GraphNode struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	OpKind   string        `json:"op_kind"`
	Shape    []int64       `json:"shape"`
	DType    string        `json:"dtype"`
	OutPtr   uint64        `json:"output_ptr"`
	LayerID  *uint16       `json:"layer_id"`
	Kind     GraphNodeKind `json:"kind"`
}

// GraphEdge is a directed producer->consumer edge labeled by the
// consumer's source slot index.
type GraphEdge struct {
	From      string `json:"from"`
	To        string `json:"to"`
	SlotIndex int    `json:"slot_index"`
}

// GraphDump is the parsed form of one token's text graph dump.
type GraphDump struct {
	TokenID uint32      `json:"token_id"`
	Nodes   []GraphNode `json:"nodes"`
	Edges   []GraphEdge `json:"edges"`
}

// TokenMetadata carries the per-token JSON metadata block (spec.md
// §3.6, §6.5).
type TokenMetadata struct {
	Phase            string `json:"phase"`
	TokenID          uint32 `json:"token_id"`
	TotalEntries     int    `json:"total_entries"`
	DurationMS       int64  `json:"duration_ms"`
	TimestampStartNs uint64 `json:"timestamp_start_ns"`
	ClockEpochUnixNs int64  `json:"clock_epoch_unix_ns"`
	FormatVersion    int    `json:"format_version"`
}

// TokenSourceEntry is one source-tensor reference inside a TokenEntry.
type TokenSourceEntry struct {
	Name         string  `json:"name"`
	TensorPtr    string  `json:"tensor_ptr"` // hex string, per §6.5
	SizeBytes    uint32  `json:"size_bytes"`
	LayerID      *uint16 `json:"layer_id"`
	MemorySource string  `json:"memory_source"` // "DISK" | "BUFFER"
	DiskOffset   *uint64 `json:"disk_offset,omitempty"`
	BufferID     *uint64 `json:"buffer_id,omitempty"`
}

// TokenEntry is one reconstructed record in the per-token JSON (spec.md
// §6.5), with truncated names resolved against the memory map.
type TokenEntry struct {
	EntryID             int                `json:"entry_id"`
	TimestampNS         uint64             `json:"timestamp_ns"`
	TimestampRelativeMS float64            `json:"timestamp_relative_ms"`
	TokenID             uint32             `json:"token_id"`
	LayerID             *uint16            `json:"layer_id"`
	ThreadID            uint16             `json:"thread_id"`
	Phase               string             `json:"phase"`
	OperationType       uint8              `json:"operation_type"`
	DstName             string             `json:"dst_name"`
	NumSources          uint8              `json:"num_sources"`
	Sources             []TokenSourceEntry `json:"sources"`
	ExpertIDs           []uint8            `json:"expert_ids"`
	NumExperts          uint8              `json:"num_experts"`
}

// TokenDocument is the complete per-token JSON artifact consumed by
// the visualizer.
type TokenDocument struct {
	Metadata TokenMetadata `json:"metadata"`
	Entries  []TokenEntry  `json:"entries"`
}

// HeatmapEntry is one derived per-tensor access-frequency record
// (spec.md §3.7).
type HeatmapEntry struct {
	Name             string  `json:"name"`
	TotalAccesses    int64   `json:"total_accesses"`
	SourceReads      int64   `json:"source_reads"`
	DestWrites       int64   `json:"dest_writes"`
	DiskAccesses     int64   `json:"disk_accesses"`
	BufferAccesses   int64   `json:"buffer_accesses"`
	FirstAccessNS    uint64  `json:"first_access_ns"`
	LastAccessNS     uint64  `json:"last_access_ns"`
	Offset           *uint64 `json:"offset,omitempty"`
	SizeBytes        uint64  `json:"size_bytes"`
	IsDiskResident   bool    `json:"is_disk_resident"`
}

// layerPointer is a small helper so callers building TokenEntry/
// HeatmapEntry values don't need to spell out &x everywhere.
func layerPointer(id uint16) *uint16 {
	if id == LayerIDNone {
		return nil
	}
	v := id
	return &v
}

// LayerIDOrNil converts a record's raw layer id into the nullable form
// used by every JSON artifact.
func LayerIDOrNil(id uint16) *uint16 { return layerPointer(id) }

package offline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"tensortrace/internal/terrors"
	"tensortrace/internal/trace"
	"tensortrace/internal/tracer"
)

// expertSuffix matches an "expert.M" component anywhere in a tensor
// name, per spec.md §4.10's "expert id from 'expert.M' pattern".
var expertSuffix = regexp.MustCompile(`expert\.(\d+)`)

// ParseLayoutCSV reads the tensor-layout CSV dump (spec.md §6.4: a
// required header line, columns name/offset/size/dtype/shape) and
// builds the model memory map. Rows are re-sorted by offset
// regardless of on-disk order; a non-zero gap between consecutive
// tensors is a warning, an overlap is a hard failure (spec.md §4.10:
// "validates strictly-increasing offsets (warn on gap, fail on
// overlap)").
func ParseLayoutCSV(path, modelName string) (*trace.MemoryMap, Diagnostics, error) {
	var diag Diagnostics

	f, err := os.Open(path)
	if err != nil {
		return nil, diag, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, diag, terrors.MalformedCSV("ParseLayoutCSV", 1, err)
	}
	if len(header) < 5 {
		return nil, diag, terrors.MalformedCSV("ParseLayoutCSV", 1, fmt.Errorf("expected at least 5 columns, got %d", len(header)))
	}

	var tensors []trace.TensorLayout
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			diag.WarnSkip(int64(line), "row %d: %v", line, err)
			continue
		}
		if len(row) < 5 {
			diag.WarnSkip(int64(line), "row %d: expected 5 columns, got %d", line, len(row))
			continue
		}

		offset, err := strconv.ParseUint(strings.TrimSpace(row[1]), 10, 64)
		if err != nil {
			diag.WarnSkip(int64(line), "row %d: malformed offset %q: %v", line, row[1], err)
			continue
		}
		size, err := strconv.ParseUint(strings.TrimSpace(row[2]), 10, 64)
		if err != nil {
			diag.WarnSkip(int64(line), "row %d: malformed size %q: %v", line, row[2], err)
			continue
		}
		shape, err := parseShape(row[4])
		if err != nil {
			diag.WarnSkip(int64(line), "row %d: malformed shape %q: %v", line, row[4], err)
			continue
		}

		name := strings.TrimSpace(row[0])
		layerID := tracer.ParseLayerID(name)

		tensors = append(tensors, trace.TensorLayout{
			Name:          name,
			Offset:        offset,
			OffsetEnd:     offset + size,
			Size:          size,
			DType:         strings.TrimSpace(row[3]),
			Shape:         shape,
			Category:      classifyCategory(name),
			LayerID:       trace.LayerIDOrNil(layerID),
			Component:     deriveComponent(name),
			ComponentType: deriveComponentType(name),
			ExpertID:      parseExpertID(name),
		})
	}

	sort.Slice(tensors, func(i, j int) bool { return tensors[i].Offset < tensors[j].Offset })

	var total uint64
	nLayers := 0
	for i, t := range tensors {
		if t.OffsetEnd > total {
			total = t.OffsetEnd
		}
		if t.LayerID != nil && int(*t.LayerID)+1 > nLayers {
			nLayers = int(*t.LayerID) + 1
		}
		if i == 0 {
			continue
		}
		prev := tensors[i-1]
		switch {
		case t.Offset > prev.OffsetEnd:
			diag.Warn(int64(t.Offset), "gap of %d bytes between %q and %q", t.Offset-prev.OffsetEnd, prev.Name, t.Name)
		case t.Offset < prev.OffsetEnd:
			return nil, diag, terrors.MalformedCSV("ParseLayoutCSV", 0,
				fmt.Errorf("tensor %q at offset %d overlaps %q ending at %d", t.Name, t.Offset, prev.Name, prev.OffsetEnd))
		}
	}

	mm := &trace.MemoryMap{
		ModelName:     modelName,
		TotalSizeByte: total,
		Metadata: trace.MapMetadata{
			NLayers:  nLayers,
			NTensors: len(tensors),
		},
		Tensors: tensors,
	}
	return mm, diag, nil
}

// classifyCategory infers a tensor's functional role from its name,
// matching spec.md §4.10's "infers category from name prefixes".
func classifyCategory(name string) trace.TensorCategory {
	switch {
	case strings.Contains(name, "token_embd"), strings.Contains(name, "embedding"):
		return trace.CategoryEmbedding
	case strings.Contains(name, "attn"):
		return trace.CategoryAttention
	case strings.Contains(name, "ffn"), strings.Contains(name, "feed_forward"):
		return trace.CategoryFeedForward
	case strings.Contains(name, "norm"):
		return trace.CategoryNorm
	case strings.Contains(name, "output"):
		return trace.CategoryOutput
	default:
		return trace.CategoryOther
	}
}

// deriveComponent returns the trailing dotted component of a tensor
// name (e.g. "attn_q.weight" -> "weight"), used by the memory-map
// JSON's "component" field.
func deriveComponent(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return name
	}
	return name[idx+1:]
}

// deriveComponentType returns the dotted segment identifying a
// tensor's specific role within its layer (e.g. "blk.0.attn_q.weight"
// -> "attn_q", "token_embd.weight" -> "token_embd"), used by the
// memory-map JSON's "component_type" field. Layer-index pairs
// ("blk"/"block" + a number) and expert-index pairs ("expert" + a
// number) are stripped first so they never get mistaken for the role
// segment.
func deriveComponentType(name string) string {
	parts := strings.Split(name, ".")
	filtered := parts[:0:0]
	for i := 0; i < len(parts); i++ {
		p := parts[i]
		if (p == "blk" || p == "block" || p == "expert") && i+1 < len(parts) {
			if _, err := strconv.Atoi(parts[i+1]); err == nil {
				i++
				continue
			}
		}
		filtered = append(filtered, p)
	}
	switch len(filtered) {
	case 0:
		return name
	case 1:
		return filtered[0]
	default:
		return filtered[len(filtered)-2]
	}
}

// parseExpertID extracts the integer M from an "expert.M" component,
// returning nil when the name carries no expert suffix.
func parseExpertID(name string) *int {
	m := expertSuffix.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

// parseShape parses a "[d0,d1,d2]" shape column into its dimensions.
func parseShape(col string) ([]int64, error) {
	col = strings.TrimSpace(col)
	col = strings.TrimPrefix(col, "[")
	col = strings.TrimSuffix(col, "]")
	if col == "" {
		return nil, nil
	}
	parts := strings.Split(col, ",")
	dims := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		dims[i] = v
	}
	return dims, nil
}

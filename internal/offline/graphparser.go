package offline

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"tensortrace/internal/trace"
)

// graphFileRe matches a graph-dump filename and extracts its token
// ordinal (spec.md §6.3: "token-<05-digit id>.dot").
var graphFileRe = regexp.MustCompile(`^token-(\d{5})\.dot$`)

// nodeLineRe matches a two-space-indented node definition, e.g.:
//
//	  node3 [label="blk.2.attn_q.weight-2" dtype=f32 shape=[10,10] ptr=0x7f0010]
//
// Attributes beyond label are optional; order is not significant.
var nodeLineRe = regexp.MustCompile(`^\s*(\S+)\s*\[label="([^"]*)"(.*)\]\s*$`)

// edgeLineRe matches a two-space-indented producer->consumer edge,
// e.g. "  node1 -> node3 [slot=0]".
var edgeLineRe = regexp.MustCompile(`^\s*(\S+)\s*->\s*(\S+)\s*(?:\[slot=(\d+)\])?\s*$`)

var attrRe = regexp.MustCompile(`(\w+)=("[^"]*"|\[[^\]]*\]|\S+)`)

// trailingLayerSuffix matches a "-N" trailing suffix on an
// intermediate-tensor label, restricted to 0..99 to avoid treating an
// arbitrary numeric token suffix (e.g. a dimension) as a layer id
// (spec.md §4.10: "ranges 0..99 only, to reject false positives").
var trailingLayerSuffix = regexp.MustCompile(`-([0-9]{1,2})$`)

// ParseGraphDumpFile parses one token's text graph dump (spec.md
// §4.9/§6.3: two-space indented nodes, "->" edges, no binary
// encoding) into a structured GraphDump.
func ParseGraphDumpFile(path string, tokenID uint32) (*trace.GraphDump, Diagnostics, error) {
	var diag Diagnostics

	f, err := os.Open(path)
	if err != nil {
		return nil, diag, err
	}
	defer f.Close()

	dump := &trace.GraphDump{TokenID: tokenID}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := nodeLineRe.FindStringSubmatch(line); m != nil {
			dump.Nodes = append(dump.Nodes, parseNode(m[1], m[2], m[3]))
			continue
		}
		if m := edgeLineRe.FindStringSubmatch(line); m != nil {
			slot := 0
			if m[3] != "" {
				slot, _ = strconv.Atoi(m[3])
			}
			dump.Edges = append(dump.Edges, trace.GraphEdge{From: m[1], To: m[2], SlotIndex: slot})
			continue
		}
		diag.WarnSkip(int64(lineNo), "line %d: unrecognized graph-dump syntax: %q", lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, diag, err
	}
	return dump, diag, nil
}

// ParseGraphDumpsDir parses every token-NNNNN.dot file in dir,
// returning one GraphDump per discovered token id.
func ParseGraphDumpsDir(dir string) (map[uint32]*trace.GraphDump, Diagnostics, error) {
	var diag Diagnostics

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, diag, err
	}

	dumps := make(map[uint32]*trace.GraphDump)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := graphFileRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		tokenID := uint32(id)
		dump, fileDiag, err := ParseGraphDumpFile(filepath.Join(dir, entry.Name()), tokenID)
		diag.Warnings = append(diag.Warnings, fileDiag.Warnings...)
		diag.ByteOffsets = append(diag.ByteOffsets, fileDiag.ByteOffsets...)
		diag.Skipped += fileDiag.Skipped
		if err != nil {
			diag.Warn(0, "token %d: %v", tokenID, err)
			continue
		}
		dumps[tokenID] = dump
	}
	return dumps, diag, nil
}

func parseNode(id, label, attrs string) trace.GraphNode {
	n := trace.GraphNode{ID: id, Label: label}

	for _, m := range attrRe.FindAllStringSubmatch(attrs, -1) {
		key, val := m[1], strings.Trim(m[2], `"`)
		switch key {
		case "dtype":
			n.DType = val
		case "op":
			n.OpKind = val
		case "shape":
			n.Shape = parseShapeBrackets(val)
		case "ptr":
			n.OutPtr = parseHexOrDec(val)
		}
	}

	n.Kind = classifyNode(label)
	n.LayerID = layerIDFromLabel(label)
	return n
}

func classifyNode(label string) trace.GraphNodeKind {
	switch {
	case strings.Contains(label, "token_embd"), strings.Contains(label, "embedding"):
		return trace.NodeEmbedding
	case strings.Contains(label, "output"), strings.Contains(label, "lm_head"):
		return trace.NodeOutput
	case strings.HasPrefix(label, "block.") || trailingLayerSuffix.MatchString(label):
		return trace.NodeLayerInternal
	default:
		return trace.NodeInfra
	}
}

// layerIDFromLabel extracts a layer id from either a "block.N."
// weight-name prefix or a "-N" trailing suffix (spec.md §4.10).
func layerIDFromLabel(label string) *uint16 {
	const prefix = "block."
	if strings.HasPrefix(label, prefix) {
		rest := label[len(prefix):]
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			if n, err := strconv.ParseUint(rest[:dot], 10, 16); err == nil {
				v := uint16(n)
				return &v
			}
		}
	}
	if m := trailingLayerSuffix.FindStringSubmatch(label); m != nil {
		if n, err := strconv.ParseUint(m[1], 10, 16); err == nil {
			v := uint16(n)
			return &v
		}
	}
	return nil
}

func parseShapeBrackets(s string) []int64 {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	dims := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		dims = append(dims, v)
	}
	return dims
}

func parseHexOrDec(s string) uint64 {
	base := 10
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0
	}
	return v
}

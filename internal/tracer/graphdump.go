package tracer

import (
	"fmt"
	"os"
	"path/filepath"

	"tensortrace/internal/terrors"
)

// GraphDumper writes one text file per token (spec.md §4.9): the
// engine's existing human-readable computation-graph dump, verbatim,
// named by the token ordinal. Duplicate emission for the same token
// overwrites the prior file.
//
// Grounded on the teacher's internal/sinks.LocalFileSink rotation
// convention (atomic write-then-rename rather than writing the final
// path directly, so a reader never observes a partial file),
// generalized here from an append-and-rotate file to a single-shot
// full-file write.
type GraphDumper struct {
	dir string
}

// NewGraphDumper ensures dir exists and returns a dumper rooted there.
func NewGraphDumper(dir string) (*GraphDumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, terrors.New(terrors.KindInitFailure, terrors.CodeSinkUnavailable, "graphdump", "NewGraphDumper", "graph dump directory could not be created").Wrap(err)
	}
	return &GraphDumper{dir: dir}, nil
}

// Dump writes content as the graph dump for tokenID, replacing any
// prior dump for the same token.
func (d *GraphDumper) Dump(tokenID uint32, content string) error {
	final := filepath.Join(d.dir, fmt.Sprintf("token-%05d.dot", tokenID))
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return terrors.New(terrors.KindDegraded, terrors.CodeSinkWriteFailed, "graphdump", "Dump", "failed writing temporary graph dump").WithMetadata("token_id", tokenID).Wrap(err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return terrors.New(terrors.KindDegraded, terrors.CodeSinkWriteFailed, "graphdump", "Dump", "failed to publish graph dump").WithMetadata("token_id", tokenID).Wrap(err)
	}
	return nil
}

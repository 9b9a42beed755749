// Package snapshot derives the per-frame query structures (thread lane
// layout plus LOD tree) and owns the publish slot that hands complete
// Frame/Cache pairs from the collector to readers.
package snapshot

import (
	"github.com/flamedeck/flamedeck/internal/lod"
	"github.com/flamedeck/flamedeck/internal/trace"
)

// Cache bundles everything derived from one Frame. Both members are
// shared-immutable: cloning a Cache is pointer duplication, never a
// structural copy. Invalidation is wholesale — a new Frame gets a new
// Cache via Build, nothing is ever mutated incrementally. Rebuilds are
// bounded by the collector's polling interval, not by render frames, so
// the simple policy is also the cheap one.
type Cache struct {
	Offsets trace.ThreadOffsets
	Tree    *lod.Tree
}

// Build computes the thread lane layout and the LOD ladder for a frame.
// Pure: identical frames produce structurally identical caches.
func Build(f *trace.Frame) *Cache {
	offsets := trace.ComputeThreadOffsets(f)
	return &Cache{
		Offsets: offsets,
		Tree:    lod.BuildTree(f, offsets),
	}
}

package scene

import "github.com/mogaika/vrm_transform/graph"

// IsUnused reports whether p is referenced only by the root or by animation
// channels and carries no extras worth keeping.
func IsUnused(p graph.Property) bool {
	for _, parent := range p.ListParents() {
		switch parent.Kind() {
		case KindRoot, KindAnimationChannel:
		default:
			return false
		}
	}
	return len(graph.BaseOf(p).Extras) == 0
}

// TreeShake disposes p when it is unused and reports whether it did.
func TreeShake(p graph.Property) bool {
	if p.IsDisposed() || !IsUnused(p) {
		return false
	}
	p.Dispose()
	return true
}

package objective

import "maps"

// Progress is an immutable snapshot of an actor's progress toward an
// objective target. Current never exceeds Target.
type Progress struct {
	Current  int            `json:"current"`
	Target   int            `json:"target"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Complete reports whether the target has been reached.
func (p Progress) Complete() bool {
	return p.Current >= p.Target
}

// withMetadata returns a copy carrying a cloned metadata map, so callers
// can never mutate shared state through a snapshot.
func (p Progress) withMetadata(md map[string]any) Progress {
	if len(md) > 0 {
		p.Metadata = maps.Clone(md)
	}
	return p
}

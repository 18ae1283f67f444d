package core

import "time"

// TableMetadata is the namespace entry a data lake keeps for every table name.
type TableMetadata struct {
	TableType Level          `json:"table_type"`
	CreatedAt *time.Time     `json:"created_at"`
	Generated bool           `json:"generated"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Clone returns a deep-enough copy for read-only callers.
func (m TableMetadata) Clone() TableMetadata {
	out := m
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		out.CreatedAt = &t
	}
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

package catalog

import (
	"strconv"
	"strings"
)

const (
	// MetadataNamespace is the metadata key under which sync flags are stored.
	MetadataNamespace = "supplier_sync"

	// FlagIgnore marks an item (or category) as ignored by supplier sync.
	FlagIgnore = "ignore"

	// FlagExclude marks a category as excluded from supplier sync.
	FlagExclude = "exclude"

	legacyNamespace = "SupplierSyncPlugin"
	legacyIgnoreKey = "SyncIgnore"
)

// Metadata is the opaque key/value document attached to items and categories.
type Metadata map[string]any

// Flag reads a boolean flag stored as metadata[namespace][key]. The value may
// be a JSON boolean or a string accepted by strconv.ParseBool ("True", "1"...).
// ok is false when the flag is absent or not interpretable as a boolean.
func (m Metadata) Flag(namespace, key string) (value bool, ok bool) {
	if m == nil {
		return false, false
	}
	ns, found := m[namespace].(map[string]any)
	if !found {
		return false, false
	}
	switch v := ns[key].(type) {
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

// IsSet reports whether the flag is present and true.
func (m Metadata) IsSet(namespace, key string) bool {
	v, ok := m.Flag(namespace, key)
	return ok && v
}

// WithFlag returns a copy of m with metadata[namespace][key] set to value.
// The receiver is left untouched.
func (m Metadata) WithFlag(namespace, key string, value bool) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	ns := map[string]any{}
	if existing, ok := m[namespace].(map[string]any); ok {
		for k, v := range existing {
			ns[k] = v
		}
	}
	ns[key] = value
	out[namespace] = ns
	return out
}

// Ignored reports whether the sync ignore flag is set. Both the current
// supplier_sync.ignore key and the legacy SupplierSyncPlugin.SyncIgnore key
// are honoured.
func (m Metadata) Ignored() bool {
	return m.IsSet(MetadataNamespace, FlagIgnore) || m.IsSet(legacyNamespace, legacyIgnoreKey)
}

// Excluded reports whether a category carries the exclude flag (or any of
// the ignore spellings).
func (m Metadata) Excluded() bool {
	return m.IsSet(MetadataNamespace, FlagExclude) || m.Ignored()
}

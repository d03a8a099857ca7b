package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Flag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		namespace string
		key       string
		wantValue bool
		wantOK    bool
	}{
		{name: "nil metadata", raw: `null`, namespace: MetadataNamespace, key: FlagIgnore},
		{name: "missing namespace", raw: `{"other":{}}`, namespace: MetadataNamespace, key: FlagIgnore},
		{name: "namespace not an object", raw: `{"supplier_sync":"yes"}`, namespace: MetadataNamespace, key: FlagIgnore},
		{name: "bool true", raw: `{"supplier_sync":{"ignore":true}}`, namespace: MetadataNamespace, key: FlagIgnore, wantValue: true, wantOK: true},
		{name: "bool false", raw: `{"supplier_sync":{"ignore":false}}`, namespace: MetadataNamespace, key: FlagIgnore, wantOK: true},
		{name: "string True", raw: `{"supplier_sync":{"exclude":"True"}}`, namespace: MetadataNamespace, key: FlagExclude, wantValue: true, wantOK: true},
		{name: "string false", raw: `{"supplier_sync":{"exclude":"false"}}`, namespace: MetadataNamespace, key: FlagExclude, wantOK: true},
		{name: "garbage string", raw: `{"supplier_sync":{"exclude":"maybe"}}`, namespace: MetadataNamespace, key: FlagExclude},
		{name: "number", raw: `{"supplier_sync":{"exclude":1}}`, namespace: MetadataNamespace, key: FlagExclude},
		{name: "legacy namespace", raw: `{"SupplierSyncPlugin":{"SyncIgnore":true}}`, namespace: legacyNamespace, key: legacyIgnoreKey, wantValue: true, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var m Metadata
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &m))

			value, ok := m.Flag(tt.namespace, tt.key)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestMetadata_WithFlag(t *testing.T) {
	t.Parallel()

	original := Metadata{
		"unrelated":       "keep",
		MetadataNamespace: map[string]any{FlagExclude: "True"},
	}

	updated := original.WithFlag(MetadataNamespace, FlagIgnore, true)

	assert.True(t, updated.Ignored())
	assert.True(t, updated.IsSet(MetadataNamespace, FlagExclude), "sibling keys are preserved")
	assert.Equal(t, "keep", updated["unrelated"])
	assert.False(t, original.Ignored(), "receiver is not mutated")

	var empty Metadata
	assert.True(t, empty.WithFlag(MetadataNamespace, FlagIgnore, true).Ignored())
}

func TestMetadata_IgnoredAndExcluded(t *testing.T) {
	t.Parallel()

	assert.True(t, Metadata{legacyNamespace: map[string]any{legacyIgnoreKey: true}}.Ignored())
	assert.True(t, Metadata{MetadataNamespace: map[string]any{FlagExclude: "True"}}.Excluded())
	assert.True(t, Metadata{MetadataNamespace: map[string]any{FlagIgnore: true}}.Excluded())
	assert.False(t, Metadata{MetadataNamespace: map[string]any{FlagExclude: false}}.Excluded())
	assert.False(t, Metadata(nil).Excluded())
}

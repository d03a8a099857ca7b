package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEligible_AllCombinations(t *testing.T) {
	t.Parallel()

	excluded := &Category{ID: 1, Name: "Excluded", Metadata: Metadata{
		MetadataNamespace: map[string]any{FlagExclude: "True"},
	}}
	included := &Category{ID: 2, Name: "Included"}
	ignored := Metadata{MetadataNamespace: map[string]any{FlagIgnore: true}}

	for mask := 0; mask < 16; mask++ {
		categoryExcluded := mask&1 != 0
		purchasable := mask&2 != 0
		active := mask&4 != 0
		itemIgnored := mask&8 != 0

		t.Run(fmt.Sprintf("excluded=%t/purchasable=%t/active=%t/ignored=%t",
			categoryExcluded, purchasable, active, itemIgnored), func(t *testing.T) {
			t.Parallel()

			item := &Item{ID: 1, Name: "R1", Purchasable: purchasable, Active: active, Category: included}
			if categoryExcluded {
				item.Category = excluded
			}
			if itemIgnored {
				item.Metadata = ignored
			}

			want := !categoryExcluded && purchasable && active && !itemIgnored
			assert.Equal(t, want, IsEligible(item))
		})
	}
}

func TestCheck_Reasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item Item
		want Reason
	}{
		{
			name: "eligible without category",
			item: Item{Purchasable: true, Active: true},
			want: ReasonEligible,
		},
		{
			name: "category carries legacy ignore flag",
			item: Item{Purchasable: true, Active: true, Category: &Category{Metadata: Metadata{
				legacyNamespace: map[string]any{legacyIgnoreKey: true},
			}}},
			want: ReasonCategoryExcluded,
		},
		{
			name: "not purchasable",
			item: Item{Active: true},
			want: ReasonNotPurchasable,
		},
		{
			name: "inactive",
			item: Item{Purchasable: true},
			want: ReasonInactive,
		},
		{
			name: "item ignored",
			item: Item{Purchasable: true, Active: true, Metadata: Metadata{
				MetadataNamespace: map[string]any{FlagIgnore: "true"},
			}},
			want: ReasonIgnored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Check(&tt.item))
		})
	}
}

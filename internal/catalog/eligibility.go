package catalog

// Reason explains why an item is or is not eligible for sync.
type Reason string

const (
	// ReasonEligible means the item takes part in sync.
	ReasonEligible Reason = ""
	// ReasonCategoryExcluded means the item's category is excluded.
	ReasonCategoryExcluded Reason = "category excluded"
	// ReasonNotPurchasable means the item cannot be bought.
	ReasonNotPurchasable Reason = "not purchasable"
	// ReasonInactive means the item is not active.
	ReasonInactive Reason = "inactive"
	// ReasonIgnored means the item carries the ignore flag.
	ReasonIgnored Reason = "ignored"
)

// Check evaluates the eligibility predicate and returns the first failing
// condition, or ReasonEligible.
func Check(item *Item) Reason {
	switch {
	case item.Category != nil && item.Category.Metadata.Excluded():
		return ReasonCategoryExcluded
	case !item.Purchasable:
		return ReasonNotPurchasable
	case !item.Active:
		return ReasonInactive
	case item.Metadata.Ignored():
		return ReasonIgnored
	default:
		return ReasonEligible
	}
}

// IsEligible reports whether the item should be reconciled.
func IsEligible(item *Item) bool {
	return Check(item) == ReasonEligible
}

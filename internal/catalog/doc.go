// Package catalog models the local part catalog that is reconciled against a
// remote supplier: items, categories, their metadata flags, the eligibility
// predicate and the canonical round-robin ordering used by the sync engine.
package catalog

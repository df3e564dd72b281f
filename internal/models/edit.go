package models

// EditResult reports the before/after delta of a criterion write so
// callers can show what changed.
type EditResult struct {
	Key      string
	OldValue float64
	NewValue float64
}

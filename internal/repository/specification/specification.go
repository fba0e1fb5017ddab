package specification

import "gorm.io/gorm"

// Specification is a composable query predicate. Repositories apply
// each one to the base query in order, so callers can combine status,
// time-window and batch constraints without repository-per-query
// methods.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

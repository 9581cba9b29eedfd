// Package models contains GORM persistence models for the ledger tables.
// They are kept apart from the domain entities so the domain stays free of
// ORM tags; each model converts to and from its entity with
// FromDomain/ToDomain.
//
// Files:
// - base.go: columns shared by tenant-scoped aggregates
// - stock_line.go, movement.go: the ledger and its movement history
// - reservation.go, count.go, adjustment.go: workflow aggregates
// - outbox.go: transactional outbox entries
package models

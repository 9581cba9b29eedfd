package models

import (
	"time"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationModel is the persistence model for the Reservation aggregate
type ReservationModel struct {
	TenantAggregateModel
	ReservationNumber string                      `gorm:"type:varchar(50);not null;index"`
	ProductID         uuid.UUID                   `gorm:"type:uuid;not null;index"`
	WarehouseID       uuid.UUID                   `gorm:"type:uuid;not null;index"`
	LocationID        *uuid.UUID                  `gorm:"type:uuid"`
	VariantID         *uuid.UUID                  `gorm:"type:uuid"`
	Quantity          decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	FulfilledQuantity decimal.Decimal             `gorm:"type:decimal(18,4);not null;default:0"`
	Status            inventory.ReservationStatus `gorm:"type:varchar(30);not null;index:idx_reservation_status_expiry,priority:1"`
	ReservationType   inventory.ReservationType   `gorm:"type:varchar(30);not null"`
	ReferenceType     string                      `gorm:"type:varchar(50)"`
	ReferenceNumber   string                      `gorm:"type:varchar(100)"`
	ReferenceID       *uuid.UUID                  `gorm:"type:uuid;index"`
	ReservationDate   time.Time                   `gorm:"not null"`
	ExpirationDate    *time.Time                  `gorm:"index:idx_reservation_status_expiry,priority:2"`
	FulfilledDate     *time.Time
	CancelledDate     *time.Time
	CancelReason      string `gorm:"type:varchar(255)"`
	Notes             string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ReservationModel) TableName() string {
	return "stock_reservations"
}

// ToDomain converts the model to a domain Reservation
func (m *ReservationModel) ToDomain() *inventory.Reservation {
	return &inventory.Reservation{
		TenantAggregateRoot: m.ToDomainTenantAggregateRoot(),
		ReservationNumber:   m.ReservationNumber,
		ProductID:           m.ProductID,
		WarehouseID:         m.WarehouseID,
		LocationID:          m.LocationID,
		VariantID:           m.VariantID,
		Quantity:            m.Quantity,
		FulfilledQuantity:   m.FulfilledQuantity,
		Status:              m.Status,
		ReservationType:     m.ReservationType,
		Reference: inventory.ReferenceDocument{
			Type:   m.ReferenceType,
			Number: m.ReferenceNumber,
			ID:     m.ReferenceID,
		},
		ReservationDate: m.ReservationDate,
		ExpirationDate:  m.ExpirationDate,
		FulfilledDate:   m.FulfilledDate,
		CancelledDate:   m.CancelledDate,
		CancelReason:    m.CancelReason,
		Notes:           m.Notes,
	}
}

// ReservationModelFromDomain creates a model from a domain Reservation
func ReservationModelFromDomain(r *inventory.Reservation) *ReservationModel {
	m := &ReservationModel{
		ReservationNumber: r.ReservationNumber,
		ProductID:         r.ProductID,
		WarehouseID:       r.WarehouseID,
		LocationID:        r.LocationID,
		VariantID:         r.VariantID,
		Quantity:          r.Quantity,
		FulfilledQuantity: r.FulfilledQuantity,
		Status:            r.Status,
		ReservationType:   r.ReservationType,
		ReferenceType:     r.Reference.Type,
		ReferenceNumber:   r.Reference.Number,
		ReferenceID:       r.Reference.ID,
		ReservationDate:   r.ReservationDate,
		ExpirationDate:    r.ExpirationDate,
		FulfilledDate:     r.FulfilledDate,
		CancelledDate:     r.CancelledDate,
		CancelReason:      r.CancelReason,
		Notes:             r.Notes,
	}
	m.FromDomainTenantAggregateRoot(r.TenantAggregateRoot)
	return m
}

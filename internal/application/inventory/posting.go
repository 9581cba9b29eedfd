package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/inventory-ledger/internal/domain/inventory"
	"github.com/erp/inventory-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ledgerOp is the quantity mutation a posting applies to its stock line
type ledgerOp string

const (
	opIncrease ledgerOp = "increase"
	opDecrease ledgerOp = "decrease"
	opReserve  ledgerOp = "reserve"
	opRelease  ledgerOp = "release"
	opAdjust   ledgerOp = "adjust"
)

// posting is one ledger mutation plus the movement that records it.
// For opAdjust, quantity is the new absolute quantity.
type posting struct {
	op       ledgerOp
	key      inventory.StockKey
	quantity decimal.Decimal
	tracking *inventory.TrackingInfo
	reason   string
	movement inventory.MovementInput
}

type postingResult struct {
	op       ledgerOp
	line     *inventory.StockLine
	movement *inventory.Movement
	variance decimal.Decimal
	events   []shared.DomainEvent
}

// movementSequenceKey is the sequence generator key for movements of a stock key
func movementSequenceKey(key inventory.StockKey) string {
	return "movement:" + key.SequenceKey()
}

// post locks the stock line, applies the mutation, numbers and appends the
// movement and records all events. It must run inside TransactionScope.Execute;
// a failure anywhere leaves the transaction to be rolled back.
func post(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, p posting) (*postingResult, error) {
	if err := p.key.Validate(); err != nil {
		return nil, err
	}

	line, err := lockLine(ctx, repos, tenantID, p.key, p.op == opIncrease || p.op == opAdjust)
	if err != nil {
		return nil, err
	}

	res := &postingResult{op: p.op, line: line}
	in := p.movement
	in.ProductID = p.key.ProductID
	in.WarehouseID = p.key.WarehouseID
	in.VariantID = p.key.VariantID

	switch p.op {
	case opIncrease:
		if in.MovementType != inventory.MovementTypeTransfer && !in.MovementType.IsReceipt() {
			return nil, shared.Errorf(shared.ErrInvalidArgument, "%s is not a receipt movement type", in.MovementType)
		}
		res.events, err = line.Increase(p.quantity, p.tracking)
		in.Quantity = p.quantity
		in.ToLocationID = p.key.LocationID
	case opDecrease:
		if in.MovementType != inventory.MovementTypeTransfer && !in.MovementType.IsIssue() {
			return nil, shared.Errorf(shared.ErrInvalidArgument, "%s is not an issue movement type", in.MovementType)
		}
		res.events, err = line.Decrease(p.quantity)
		in.Quantity = p.quantity
		in.FromLocationID = p.key.LocationID
	case opReserve:
		res.events, err = line.Reserve(p.quantity)
		in.MovementType = inventory.MovementTypeReservation
		in.Quantity = p.quantity
		in.ToLocationID = p.key.LocationID
	case opRelease:
		res.events, err = line.Release(p.quantity)
		in.MovementType = inventory.MovementTypeReservationRelease
		in.Quantity = p.quantity
		in.FromLocationID = p.key.LocationID
	case opAdjust:
		res.variance, res.events, err = line.Adjust(p.quantity, p.reason)
		in.Quantity = res.variance.Abs()
		if res.variance.IsNegative() {
			in.MovementType = inventory.MovementTypeAdjustmentDecrease
			in.FromLocationID = p.key.LocationID
		} else {
			in.MovementType = inventory.MovementTypeAdjustmentIncrease
			in.ToLocationID = p.key.LocationID
		}
		if in.Description == "" {
			in.Description = p.reason
		}
	default:
		return nil, fmt.Errorf("unknown ledger operation %q", p.op)
	}
	if err != nil {
		return nil, err
	}

	movement, err := inventory.NewMovement(tenantID, in)
	if err != nil {
		return nil, err
	}
	if movement.DocumentNumber == "" {
		movement.DocumentNumber = defaultDocumentNumber("MV", movement.ID)
	}

	seq, err := repos.Sequences().Next(ctx, tenantID, movementSequenceKey(p.key))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate movement sequence: %w", err)
	}
	if err := movement.SetSequenceNumber(seq); err != nil {
		return nil, err
	}
	inventory.StampSequence(res.events, seq)

	if err := repos.StockLines().Save(ctx, line); err != nil {
		return nil, err
	}
	if err := repos.Movements().Create(ctx, movement); err != nil {
		return nil, err
	}
	res.events = append(res.events, inventory.NewMovementCreatedEvent(movement))
	if err := repos.Events().Record(ctx, res.events...); err != nil {
		return nil, fmt.Errorf("failed to record ledger events: %w", err)
	}

	res.movement = movement
	return res, nil
}

// lockLine returns the stock line for the key under a row lock. When the row
// does not exist and create is false, an unsaved empty line is returned so
// the mutation fails with the proper quantity error.
func lockLine(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, key inventory.StockKey, create bool) (*inventory.StockLine, error) {
	if create {
		return repos.StockLines().GetOrCreateLocked(ctx, tenantID, key)
	}
	line, err := repos.StockLines().LockByKey(ctx, tenantID, key)
	if errors.Is(err, shared.ErrNotFound) {
		return inventory.NewStockLine(tenantID, key)
	}
	return line, err
}

// compensatingPosting maps a compensating movement input onto the ledger operation it implies
func compensatingPosting(in inventory.MovementInput) (posting, error) {
	key := inventory.StockKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID, VariantID: in.VariantID}
	p := posting{quantity: in.Quantity, movement: in}

	switch {
	case in.MovementType == inventory.MovementTypeReservation:
		p.op = opReserve
		key.LocationID = in.ToLocationID
	case in.MovementType == inventory.MovementTypeReservationRelease:
		p.op = opRelease
		key.LocationID = in.FromLocationID
	case in.MovementType == inventory.MovementTypeTransfer:
		switch {
		case in.ToLocationID != nil && in.FromLocationID == nil:
			p.op = opIncrease
			key.LocationID = in.ToLocationID
		case in.FromLocationID != nil && in.ToLocationID == nil:
			p.op = opDecrease
			key.LocationID = in.FromLocationID
		default:
			return posting{}, shared.Errorf(shared.ErrInvalidArgument, "transfer legs must be reversed one at a time")
		}
	case in.MovementType.IsReceipt():
		p.op = opIncrease
		key.LocationID = in.ToLocationID
	case in.MovementType.IsIssue():
		p.op = opDecrease
		key.LocationID = in.FromLocationID
	default:
		return posting{}, shared.Errorf(shared.ErrInvalidArgument, "movement type %s cannot be compensated", in.MovementType)
	}
	p.key = key
	return p, nil
}

// defaultDocumentNumber builds a document number for callers that did not supply one
func defaultDocumentNumber(prefix string, id uuid.UUID) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
}

// nextDocumentNumber allocates a per-tenant running number such as RS-000042
func nextDocumentNumber(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, prefix string) (string, error) {
	n, err := repos.Sequences().Next(ctx, tenantID, "document:"+prefix)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%06d", prefix, n), nil
}

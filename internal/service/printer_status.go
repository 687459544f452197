package service

import (
	"context"

	"printhub/internal/apperr"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/repository"

	"github.com/google/uuid"
)

// printerTransitions is the whole printer lifecycle. sold is terminal, and a
// rented or serviced printer only ever returns to available.
var printerTransitions = map[model.PrinterStatus][]model.PrinterStatus{
	model.PrinterAvailable:   {model.PrinterRented, model.PrinterSold, model.PrinterMaintenance},
	model.PrinterRented:      {model.PrinterAvailable},
	model.PrinterMaintenance: {model.PrinterAvailable},
}

// CanTransitionPrinter reports whether from → to is allowed. Same-state is allowed.
func CanTransitionPrinter(from, to model.PrinterStatus) bool {
	if from == to {
		return true
	}
	for _, next := range printerTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PrinterStatusCoordinator is the only writer of Printer.Status.
// Sales and maintenance call into it instead of updating the column.
type PrinterStatusCoordinator interface {
	// Transition moves the printer to `to` or fails with Conflict
	Transition(ctx context.Context, printerID uuid.UUID, to model.PrinterStatus) (*model.Printer, error)
	// TransitionFrom moves the printer only when it is currently `from`; otherwise it is a no-op
	TransitionFrom(ctx context.Context, printerID uuid.UUID, from, to model.PrinterStatus) (bool, error)
	// ReleaseFromMaintenance returns a printer in maintenance to available
	// once openRequests reports zero. The printer row is locked before counting.
	ReleaseFromMaintenance(ctx context.Context, printerID uuid.UUID, openRequests func(ctx context.Context) (int64, error)) (bool, error)
}

type printerStatusCoordinator struct {
	printers  repository.PrinterRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewPrinterStatusCoordinator(
	printers repository.PrinterRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) PrinterStatusCoordinator {
	return &printerStatusCoordinator{printers: printers, auditRepo: auditRepo, txManager: txManager}
}

func (c *printerStatusCoordinator) Transition(ctx context.Context, printerID uuid.UUID, to model.PrinterStatus) (*model.Printer, error) {
	if !to.Valid() {
		return nil, apperr.InvalidInput("invalid printer status %q", to)
	}

	var printer *model.Printer
	err := c.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := c.printers.FindByIDForUpdate(txCtx, printerID)
		if err != nil {
			return dbError(err, "printer")
		}
		if !CanTransitionPrinter(p.Status, to) {
			return apperr.Conflict("printer cannot move from %s to %s", p.Status, to)
		}
		if err := c.apply(txCtx, p, to); err != nil {
			return err
		}
		printer = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return printer, nil
}

func (c *printerStatusCoordinator) TransitionFrom(ctx context.Context, printerID uuid.UUID, from, to model.PrinterStatus) (bool, error) {
	changed := false
	err := c.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := c.printers.FindByIDForUpdate(txCtx, printerID)
		if err != nil {
			return dbError(err, "printer")
		}
		if p.Status != from || from == to {
			return nil
		}
		if !CanTransitionPrinter(from, to) {
			return apperr.Conflict("printer cannot move from %s to %s", from, to)
		}
		if err := c.apply(txCtx, p, to); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func (c *printerStatusCoordinator) ReleaseFromMaintenance(
	ctx context.Context,
	printerID uuid.UUID,
	openRequests func(ctx context.Context) (int64, error),
) (bool, error) {
	changed := false
	err := c.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := c.printers.FindByIDForUpdate(txCtx, printerID)
		if err != nil {
			return dbError(err, "printer")
		}
		if p.Status != model.PrinterMaintenance {
			return nil
		}
		open, err := openRequests(txCtx)
		if err != nil {
			return dbError(err, "maintenance request")
		}
		if open > 0 {
			return nil
		}
		if err := c.apply(txCtx, p, model.PrinterAvailable); err != nil {
			return err
		}
		changed = true
		return nil
	})
	return changed, err
}

func (c *printerStatusCoordinator) apply(ctx context.Context, p *model.Printer, to model.PrinterStatus) error {
	from := p.Status
	if from == to {
		return nil
	}
	if err := c.printers.SetStatus(ctx, p.ID, to); err != nil {
		return dbError(err, "printer")
	}
	p.Status = to
	return c.auditRepo.Record(ctx, rbac.ActorID(ctx), model.ActionPrinterStatus, p.ID.String(), p.SerialNumber,
		map[string]string{"from": string(from), "to": string(to)})
}

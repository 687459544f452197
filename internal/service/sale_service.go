package service

import (
	"context"
	"strings"

	"printhub/internal/apperr"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/repository"

	"github.com/shopspring/decimal"
)

// DTOs
type CreateSaleRequest struct {
	PrinterID     string          `json:"printer_id" binding:"required"`
	ClientID      string          `json:"client_id" binding:"required"`
	Type          string          `json:"type" binding:"required,oneof=sale rental"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" binding:"required,oneof=cash card transfer"`
	InvoiceNumber string          `json:"invoice_number"`
	RentalStart   string          `json:"rental_start"` // YYYY-MM-DD
	RentalEnd     string          `json:"rental_end"`
	Notes         string          `json:"notes"`
}

type CancelSaleRequest struct {
	Reason string `json:"reason"`
}

type SaleListQuery struct {
	Status    string
	Type      string
	ClientID  string
	PrinterID string
	Page      int
	Limit     int
}

type SaleService interface {
	Create(ctx context.Context, req CreateSaleRequest) (*model.Sale, error)
	Complete(ctx context.Context, id string) (*model.Sale, error)
	Cancel(ctx context.Context, id string, req CancelSaleRequest) (*model.Sale, error)
	Get(ctx context.Context, id string) (*model.Sale, error)
	List(ctx context.Context, query SaleListQuery) ([]model.Sale, int64, error)
}

type saleService struct {
	repo        repository.SaleRepository
	printerRepo repository.PrinterRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	printers    PrinterStatusCoordinator
	txManager   repository.TransactionManager
	events      EventPublisher
}

func NewSaleService(
	repo repository.SaleRepository,
	printerRepo repository.PrinterRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	printers PrinterStatusCoordinator,
	txManager repository.TransactionManager,
	events EventPublisher,
) SaleService {
	if events == nil {
		events = NopPublisher
	}
	return &saleService{
		repo:        repo,
		printerRepo: printerRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		printers:    printers,
		txManager:   txManager,
		events:      events,
	}
}

func (s *saleService) Create(ctx context.Context, req CreateSaleRequest) (*model.Sale, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	printerID, err := parseID(req.PrinterID, "printer")
	if err != nil {
		return nil, err
	}
	clientID, err := parseID(req.ClientID, "client")
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.InvalidInput("amount must be greater than zero")
	}

	sale := &model.Sale{
		PrinterID:     printerID,
		ClientID:      clientID,
		Type:          req.Type,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Status:        model.SalePending,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		Notes:         req.Notes,
	}

	if req.Type == model.SaleTypeRental {
		start, err := parseOptionalDate(req.RentalStart, "rental_start")
		if err != nil {
			return nil, err
		}
		end, err := parseOptionalDate(req.RentalEnd, "rental_end")
		if err != nil {
			return nil, err
		}
		if start == nil || end == nil {
			return nil, apperr.InvalidInput("rental_start and rental_end are required for rentals")
		}
		if end.Before(*start) {
			return nil, apperr.InvalidInput("rental_end is before rental_start")
		}
		sale.RentalStart, sale.RentalEnd = start, end
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		printer, err := s.printerRepo.FindByID(txCtx, printerID)
		if err != nil {
			return dbError(err, "printer")
		}
		if printer.Status != model.PrinterAvailable {
			return apperr.Conflict("printer %s is %s", printer.SerialNumber, printer.Status)
		}
		if _, err := s.userRepo.GetByID(txCtx, clientID); err != nil {
			return dbError(err, "client")
		}
		if err := s.repo.Create(txCtx, sale); err != nil {
			return dbError(err, "sale")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCreateSale, sale.ID.String(), printer.SerialNumber,
			map[string]string{"type": sale.Type, "amount": sale.Amount.String()})
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// Complete marks the sale completed and moves the printer to sold or rented in one transaction
func (s *saleService) Complete(ctx context.Context, id string) (*model.Sale, error) {
	saleID, err := parseID(id, "sale")
	if err != nil {
		return nil, err
	}

	var sale *model.Sale
	var printer *model.Printer
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		sale, err = s.repo.FindByIDForUpdate(txCtx, saleID)
		if err != nil {
			return dbError(err, "sale")
		}
		if sale.Status != model.SalePending {
			return apperr.Conflict("sale is already %s", sale.Status)
		}

		target := model.PrinterSold
		if sale.Type == model.SaleTypeRental {
			target = model.PrinterRented
		}
		if printer, err = s.printers.Transition(txCtx, sale.PrinterID, target); err != nil {
			return err
		}

		sale.Status = model.SaleCompleted
		if err := s.repo.Update(txCtx, sale); err != nil {
			return dbError(err, "sale")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCompleteSale, sale.ID.String(), printer.SerialNumber,
			map[string]string{"printer_status": string(target)})
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(EventPrinterStatus, map[string]any{"printer_id": printer.ID, "status": printer.Status})
	s.events.Publish(EventSaleCompleted, map[string]any{"sale_id": sale.ID, "printer_id": sale.PrinterID, "type": sale.Type})
	return sale, nil
}

// Cancel voids a pending sale, or ends a completed rental and returns the printer
func (s *saleService) Cancel(ctx context.Context, id string, req CancelSaleRequest) (*model.Sale, error) {
	saleID, err := parseID(id, "sale")
	if err != nil {
		return nil, err
	}

	var sale *model.Sale
	var released bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		sale, err = s.repo.FindByIDForUpdate(txCtx, saleID)
		if err != nil {
			return dbError(err, "sale")
		}

		switch {
		case sale.Status == model.SaleCancelled:
			return apperr.Conflict("sale is already cancelled")
		case sale.Status == model.SaleCompleted && sale.Type == model.SaleTypeSale:
			return apperr.Conflict("a completed sale cannot be cancelled")
		case sale.Status == model.SaleCompleted:
			if released, err = s.printers.TransitionFrom(txCtx, sale.PrinterID, model.PrinterRented, model.PrinterAvailable); err != nil {
				return err
			}
		}

		sale.Status = model.SaleCancelled
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			if sale.Notes != "" {
				sale.Notes += "\n"
			}
			sale.Notes += "Cancelled: " + reason
		}
		if err := s.repo.Update(txCtx, sale); err != nil {
			return dbError(err, "sale")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCancelSale, sale.ID.String(), sale.InvoiceNumber,
			map[string]string{"reason": req.Reason})
	})
	if err != nil {
		return nil, err
	}

	if released {
		s.events.Publish(EventPrinterStatus, map[string]any{"printer_id": sale.PrinterID, "status": model.PrinterAvailable})
	}
	return sale, nil
}

func (s *saleService) Get(ctx context.Context, id string) (*model.Sale, error) {
	saleID, err := parseID(id, "sale")
	if err != nil {
		return nil, err
	}
	sale, err := s.repo.FindByID(ctx, saleID)
	if err != nil {
		return nil, dbError(err, "sale")
	}
	return sale, nil
}

func (s *saleService) List(ctx context.Context, query SaleListQuery) ([]model.Sale, int64, error) {
	clientID, err := parseOptionalID(query.ClientID, "client")
	if err != nil {
		return nil, 0, err
	}
	printerID, err := parseOptionalID(query.PrinterID, "printer")
	if err != nil {
		return nil, 0, err
	}
	page, limit := normalizePage(query.Page, query.Limit)

	sales, total, err := s.repo.List(ctx, repository.SaleFilter{
		Status:    query.Status,
		Type:      query.Type,
		ClientID:  clientID,
		PrinterID: printerID,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, dbError(err, "sale")
	}
	return sales, total, nil
}

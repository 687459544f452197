package service

import (
	"context"
	"strings"
	"time"

	"printhub/internal/apperr"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/repository"
	"printhub/internal/telemetry"

	"go.uber.org/zap"
)

// DTOs
type CreatePrinterRequest struct {
	Model        string `json:"model" binding:"required"`
	SerialNumber string `json:"serial_number" binding:"required"`
	Type         string `json:"type" binding:"required,oneof=color monochrome"`
	Condition    string `json:"condition" binding:"omitempty,oneof=new used refurbished"`
	Brand        string `json:"brand"`
	Location     string `json:"location"`
	Address      string `json:"address"`
}

type UpdatePrinterRequest struct {
	Model        *string `json:"model" binding:"omitempty,min=1"`
	SerialNumber *string `json:"serial_number" binding:"omitempty,min=1"`
	Type         *string `json:"type" binding:"omitempty,oneof=color monochrome"`
	Condition    *string `json:"condition" binding:"omitempty,oneof=new used refurbished"`
	Brand        *string `json:"brand"`
	Location     *string `json:"location"`
	Address      *string `json:"address"`
}

type UpdatePrinterStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=available rented maintenance sold"`
}

type PrinterListQuery struct {
	Status string
	Type   string
	Search string
	Page   int
	Limit  int
}

type PrinterService interface {
	Create(ctx context.Context, req CreatePrinterRequest) (*model.Printer, error)
	Update(ctx context.Context, id string, req UpdatePrinterRequest) (*model.Printer, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Printer, error)
	List(ctx context.Context, query PrinterListQuery) ([]model.Printer, int64, error)
	ListForClient(ctx context.Context, clientID string) ([]model.Printer, error)
	UpdateStatus(ctx context.Context, id string, req UpdatePrinterStatusRequest) (*model.Printer, error)
	RefreshTelemetry(ctx context.Context, id string) (*model.Printer, error)
}

type printerService struct {
	repo      repository.PrinterRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	status    PrinterStatusCoordinator
	prober    telemetry.Prober
	txManager repository.TransactionManager
	events    EventPublisher
	log       *zap.Logger
}

func NewPrinterService(
	repo repository.PrinterRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	status PrinterStatusCoordinator,
	prober telemetry.Prober,
	txManager repository.TransactionManager,
	events EventPublisher,
	log *zap.Logger,
) PrinterService {
	if events == nil {
		events = NopPublisher
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &printerService{
		repo:      repo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		status:    status,
		prober:    prober,
		txManager: txManager,
		events:    events,
		log:       log,
	}
}

func (s *printerService) Create(ctx context.Context, req CreatePrinterRequest) (*model.Printer, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	condition := req.Condition
	if condition == "" {
		condition = model.ConditionNew
	}

	printer := &model.Printer{
		Model:        strings.TrimSpace(req.Model),
		SerialNumber: strings.TrimSpace(req.SerialNumber),
		Type:         req.Type,
		Status:       model.PrinterAvailable,
		Condition:    condition,
		Brand:        req.Brand,
		Location:     req.Location,
		Address:      strings.TrimSpace(req.Address),
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, printer); err != nil {
			return dbError(err, "printer")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCreatePrinter, printer.ID.String(), printer.SerialNumber, req)
	})
	if err != nil {
		return nil, err
	}
	return printer, nil
}

func (s *printerService) Update(ctx context.Context, id string, req UpdatePrinterRequest) (*model.Printer, error) {
	printerID, err := parseID(id, "printer")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var printer *model.Printer
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		printer, err = s.repo.FindByIDForUpdate(txCtx, printerID)
		if err != nil {
			return dbError(err, "printer")
		}

		if req.Model != nil {
			printer.Model = strings.TrimSpace(*req.Model)
		}
		if req.SerialNumber != nil {
			printer.SerialNumber = strings.TrimSpace(*req.SerialNumber)
		}
		if req.Type != nil {
			printer.Type = *req.Type
		}
		if req.Condition != nil {
			printer.Condition = *req.Condition
		}
		if req.Brand != nil {
			printer.Brand = *req.Brand
		}
		if req.Location != nil {
			printer.Location = *req.Location
		}
		if req.Address != nil {
			printer.Address = strings.TrimSpace(*req.Address)
		}

		if err := s.repo.Update(txCtx, printer); err != nil {
			return dbError(err, "printer")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionUpdatePrinter, printer.ID.String(), printer.SerialNumber, req)
	})
	if err != nil {
		return nil, err
	}
	return printer, nil
}

func (s *printerService) Delete(ctx context.Context, id string) error {
	printerID, err := parseID(id, "printer")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		printer, err := s.repo.FindByIDForUpdate(txCtx, printerID)
		if err != nil {
			return dbError(err, "printer")
		}
		if printer.Status == model.PrinterRented || printer.Status == model.PrinterMaintenance {
			return apperr.Conflict("printer is %s and cannot be deleted", printer.Status)
		}
		if err := s.repo.Delete(txCtx, printerID); err != nil {
			return dbError(err, "printer")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionDeletePrinter, printer.ID.String(), printer.SerialNumber, nil)
	})
}

func (s *printerService) Get(ctx context.Context, id string) (*model.Printer, error) {
	printerID, err := parseID(id, "printer")
	if err != nil {
		return nil, err
	}
	printer, err := s.repo.FindByID(ctx, printerID)
	if err != nil {
		return nil, dbError(err, "printer")
	}
	return printer, nil
}

func (s *printerService) List(ctx context.Context, query PrinterListQuery) ([]model.Printer, int64, error) {
	if query.Status != "" && !model.PrinterStatus(query.Status).Valid() {
		return nil, 0, apperr.InvalidInput("invalid status %q", query.Status)
	}
	page, limit := normalizePage(query.Page, query.Limit)
	printers, total, err := s.repo.List(ctx, repository.PrinterFilter{
		Status: query.Status,
		Type:   query.Type,
		Search: strings.TrimSpace(query.Search),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, 0, dbError(err, "printer")
	}
	return printers, total, nil
}

func (s *printerService) ListForClient(ctx context.Context, clientID string) ([]model.Printer, error) {
	userID, err := parseID(clientID, "user")
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, dbError(err, "user")
	}
	printers, err := s.repo.ListSoldOrRentedTo(ctx, userID)
	if err != nil {
		return nil, dbError(err, "printer")
	}
	return printers, nil
}

func (s *printerService) UpdateStatus(ctx context.Context, id string, req UpdatePrinterStatusRequest) (*model.Printer, error) {
	printerID, err := parseID(id, "printer")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	printer, err := s.status.Transition(ctx, printerID, model.PrinterStatus(req.Status))
	if err != nil {
		return nil, err
	}
	s.events.Publish(EventPrinterStatus, map[string]any{"printer_id": printer.ID, "status": printer.Status})
	return printer, nil
}

// RefreshTelemetry probes the device outside any transaction, then stores the reading
func (s *printerService) RefreshTelemetry(ctx context.Context, id string) (*model.Printer, error) {
	printerID, err := parseID(id, "printer")
	if err != nil {
		return nil, err
	}
	printer, err := s.repo.FindByID(ctx, printerID)
	if err != nil {
		return nil, dbError(err, "printer")
	}
	if printer.Address == "" {
		return nil, apperr.InvalidInput("printer %s has no network address", printer.SerialNumber)
	}

	reading, err := s.prober.Probe(ctx, printer.Address)
	if err != nil {
		s.log.Warn("telemetry probe failed",
			zap.String("printer_id", printer.ID.String()),
			zap.String("address", printer.Address),
			zap.Error(err))
		return nil, apperr.Internal(err, "telemetry probe failed for %s", printer.SerialNumber)
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.FindByIDForUpdate(txCtx, printerID)
		if err != nil {
			return dbError(err, "printer")
		}
		ApplyReading(locked, reading)
		if err := s.repo.Update(txCtx, locked); err != nil {
			return dbError(err, "printer")
		}
		printer = locked
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionPrinterTelemetry, locked.ID.String(), locked.SerialNumber,
			map[string]any{"supplies": reading.Supplies, "page_total": reading.PageTotal})
	})
	if err != nil {
		return nil, err
	}
	return printer, nil
}

// ApplyReading copies supply levels and page counters onto the printer.
// Fields the device did not report keep their previous value.
func ApplyReading(p *model.Printer, r *telemetry.Reading) {
	// Split drums out so "black drum" never lands on the toner field
	drums := &telemetry.Reading{Supplies: map[string]int{}}
	toners := &telemetry.Reading{Supplies: map[string]int{}}
	for name, level := range r.Supplies {
		if strings.Contains(name, "drum") || strings.Contains(name, "imaging") {
			drums.Supplies[name] = level
		} else {
			toners.Supplies[name] = level
		}
	}

	setFrom := func(src *telemetry.Reading, dst *int, keywords ...string) {
		if level, ok := src.SupplyLevel(keywords...); ok {
			*dst = level
		}
	}
	setFrom(toners, &p.InkC, "cyan")
	setFrom(toners, &p.InkM, "magenta")
	setFrom(toners, &p.InkY, "yellow")
	setFrom(toners, &p.InkK, "black")
	setFrom(drums, &p.DrumC, "cyan")
	setFrom(drums, &p.DrumM, "magenta")
	setFrom(drums, &p.DrumY, "yellow")
	setFrom(drums, &p.DrumK, "black")

	if p.Type == model.PrinterTypeMonochrome {
		p.InkBW = p.InkK
		if len(drums.Supplies) == 1 {
			for _, level := range drums.Supplies {
				p.DrumBW = level
			}
		} else {
			setFrom(drums, &p.DrumBW, "black")
		}
	}

	if r.PageTotal > 0 {
		p.CounterTotal = r.PageTotal
	}
	if r.PageBW > 0 {
		p.CounterBW = r.PageBW
	}
	if r.PageColor > 0 {
		p.CounterColor = r.PageColor
	}
	if p.Type == model.PrinterTypeMonochrome && r.PageBW == 0 && r.PageTotal > 0 {
		p.CounterBW = r.PageTotal
	}

	polled := r.PolledAt
	if polled.IsZero() {
		polled = time.Now()
	}
	p.LastPolledAt = &polled
}

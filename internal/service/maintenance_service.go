package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"printhub/internal/apperr"
	"printhub/internal/export"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type PartUsageInput struct {
	PartID    string          `json:"part_id" binding:"required,uuid"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateMaintenanceRequest struct {
	PrinterID     string `json:"printer_id" binding:"required"`
	ClientID      string `json:"client_id"` // the handler fills in the caller when empty
	Issue         string `json:"issue" binding:"required"`
	Description   string `json:"description"`
	Priority      string `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	ScheduledDate string `json:"scheduled_date"` // YYYY-MM-DD
}

type AssignTechnicianRequest struct {
	TechnicianID string `json:"technician_id" binding:"required"`
}

type RecordWorkRequest struct {
	PartsUsed      []PartUsageInput `json:"parts_used" binding:"dive"`
	LaborCost      *decimal.Decimal `json:"labor_cost"`
	StartTime      *time.Time       `json:"start_time"`
	EndTime        *time.Time       `json:"end_time"`
	TechnicalNotes string           `json:"technical_notes"`
	Status         string           `json:"status"`
}

type CompleteMaintenanceRequest struct {
	Diagnosis string           `json:"diagnosis"`
	Solution  string           `json:"solution"`
	LaborCost *decimal.Decimal `json:"labor_cost"`
	PartsUsed []PartUsageInput `json:"parts_used" binding:"dive"`
	Version   *int             `json:"version"` // optional optimistic check against the caller's copy
}

type CancelMaintenanceRequest struct {
	Reason string `json:"reason"`
}

type MaintenanceListQuery struct {
	Status       string
	Priority     string
	TechnicianID string
	ClientID     string
	PrinterID    string
	StartDate    string
	EndDate      string
	SortBy       string
	SortOrder    string
	Page         int
	Limit        int
}

type MaintenanceStats struct {
	Total        int64                       `json:"total"`
	Pending      int64                       `json:"pending"`
	InProgress   int64                       `json:"in_progress"`
	Completed    int64                       `json:"completed"`
	Cancelled    int64                       `json:"cancelled"`
	TotalRevenue decimal.Decimal             `json:"total_revenue"`
	Technicians  []repository.TechnicianLoad `json:"technicians"`
}

// MaintenanceEvent is the websocket payload for maintenance.* events
type MaintenanceEvent struct {
	ID           uuid.UUID               `json:"id"`
	PrinterID    uuid.UUID               `json:"printer_id"`
	ClientID     uuid.UUID               `json:"client_id"`
	TechnicianID *uuid.UUID              `json:"technician_id,omitempty"`
	Status       model.MaintenanceStatus `json:"status"`
	Priority     string                  `json:"priority"`
	Issue        string                  `json:"issue"`
	TotalCost    decimal.Decimal         `json:"total_cost"`
}

type MaintenanceService interface {
	Create(ctx context.Context, req CreateMaintenanceRequest) (*model.MaintenanceRequest, error)
	AssignTechnician(ctx context.Context, id string, req AssignTechnicianRequest) (*model.MaintenanceRequest, error)
	RecordWork(ctx context.Context, id string, req RecordWorkRequest) (*model.MaintenanceRequest, error)
	Complete(ctx context.Context, id string, req CompleteMaintenanceRequest) (*model.MaintenanceRequest, error)
	Cancel(ctx context.Context, id string, req CancelMaintenanceRequest) (*model.MaintenanceRequest, error)
	Get(ctx context.Context, id string) (*model.MaintenanceRequest, error)
	List(ctx context.Context, query MaintenanceListQuery) ([]model.MaintenanceRequest, int64, error)
	Stats(ctx context.Context) (*MaintenanceStats, error)
	Export(ctx context.Context, query MaintenanceListQuery) ([]byte, error)
}

type maintenanceService struct {
	repo        repository.MaintenanceRepository
	printerRepo repository.PrinterRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	inventory   InventoryService
	printers    PrinterStatusCoordinator
	txManager   repository.TransactionManager
	events      EventPublisher
}

func NewMaintenanceService(
	repo repository.MaintenanceRepository,
	printerRepo repository.PrinterRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	inventory InventoryService,
	printers PrinterStatusCoordinator,
	txManager repository.TransactionManager,
	events EventPublisher,
) MaintenanceService {
	if events == nil {
		events = NopPublisher
	}
	return &maintenanceService{
		repo:        repo,
		printerRepo: printerRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		inventory:   inventory,
		printers:    printers,
		txManager:   txManager,
		events:      events,
	}
}

func (s *maintenanceService) Create(ctx context.Context, req CreateMaintenanceRequest) (*model.MaintenanceRequest, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	printerID, err := parseID(req.PrinterID, "printer")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ClientID) == "" {
		return nil, apperr.InvalidInput("client_id is required")
	}
	clientID, err := parseID(req.ClientID, "client")
	if err != nil {
		return nil, err
	}
	issue := strings.TrimSpace(req.Issue)
	if issue == "" {
		return nil, apperr.InvalidInput("issue is required")
	}
	scheduled, err := parseOptionalDate(req.ScheduledDate, "scheduled_date")
	if err != nil {
		return nil, err
	}
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}

	request := &model.MaintenanceRequest{
		PrinterID:     printerID,
		ClientID:      clientID,
		Issue:         issue,
		Description:   req.Description,
		Priority:      priority,
		Status:        model.MaintenancePending,
		ScheduledDate: scheduled,
		LaborCost:     decimal.Zero,
		TotalCost:     decimal.Zero,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		printer, err := s.printerRepo.FindByID(txCtx, printerID)
		if err != nil {
			return dbError(err, "printer")
		}
		if _, err := s.userRepo.GetByID(txCtx, clientID); err != nil {
			return dbError(err, "client")
		}
		if err := s.repo.Create(txCtx, request); err != nil {
			return dbError(err, "maintenance request")
		}
		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCreateMaintenance, request.ID.String(), printer.SerialNumber,
			map[string]string{"issue": issue, "priority": priority})
	})
	if err != nil {
		return nil, err
	}

	s.publish(EventMaintenanceCreated, request)
	return request, nil
}

func (s *maintenanceService) AssignTechnician(ctx context.Context, id string, req AssignTechnicianRequest) (*model.MaintenanceRequest, error) {
	requestID, err := parseID(id, "maintenance request")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	technicianID, err := parseID(req.TechnicianID, "technician")
	if err != nil {
		return nil, err
	}

	var request *model.MaintenanceRequest
	var printerMoved bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.lockOpen(txCtx, requestID)
		if err != nil {
			return err
		}
		technician, err := s.userRepo.GetByID(txCtx, technicianID)
		if err != nil {
			return dbError(err, "technician")
		}

		request.TechnicianID = &technician.ID
		request.Status = model.MaintenanceInProgress
		if err := s.save(txCtx, request); err != nil {
			return err
		}

		printerMoved, err = s.printers.TransitionFrom(txCtx, request.PrinterID, model.PrinterAvailable, model.PrinterMaintenance)
		if err != nil {
			return err
		}

		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionAssignTechnician, request.ID.String(), technician.Name,
			map[string]string{"technician_id": technician.ID.String()})
	})
	if err != nil {
		return nil, err
	}

	if printerMoved {
		s.publishPrinter(request.PrinterID, model.PrinterMaintenance)
	}
	s.publish(EventMaintenanceAssigned, request)
	return request, nil
}

func (s *maintenanceService) RecordWork(ctx context.Context, id string, req RecordWorkRequest) (*model.MaintenanceRequest, error) {
	requestID, err := parseID(id, "maintenance request")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	parts, err := toPartUsages(req.PartsUsed)
	if err != nil {
		return nil, err
	}
	if req.LaborCost != nil && req.LaborCost.IsNegative() {
		return nil, apperr.InvalidInput("labor_cost must not be negative")
	}
	if req.StartTime != nil && req.EndTime != nil && req.EndTime.Before(*req.StartTime) {
		return nil, apperr.InvalidInput("end_time is before start_time")
	}

	target := model.MaintenanceStatus(req.Status)
	switch target {
	case "", model.MaintenanceInProgress, model.MaintenanceCompleted:
	case model.MaintenanceCancelled:
		return nil, apperr.InvalidInput("use the cancel operation to cancel a request")
	default:
		return nil, apperr.InvalidInput("invalid status %q", req.Status)
	}

	var request *model.MaintenanceRequest
	var low []model.InventoryItem
	var printerMoved bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.lockOpen(txCtx, requestID)
		if err != nil {
			return err
		}

		if len(parts) > 0 {
			low, err = s.inventory.ConsumeParts(txCtx, &request.ID, parts)
			if err != nil {
				return err
			}
			request.PartsUsed = append(request.PartsUsed, parts...)
		}
		if req.LaborCost != nil {
			request.LaborCost = *req.LaborCost
		}
		request.TotalCost = model.ComputeTotalCost(request.LaborCost, request.PartsUsed)
		if req.StartTime != nil {
			request.StartTime = req.StartTime
		}
		if req.EndTime != nil {
			request.EndTime = req.EndTime
		}
		if req.TechnicalNotes != "" {
			request.TechnicalNotes = req.TechnicalNotes
		}

		switch {
		case target == model.MaintenanceCompleted:
			now := time.Now()
			request.Status = model.MaintenanceCompleted
			request.CompletionDate = &now
		case target == model.MaintenanceInProgress || request.Status == model.MaintenancePending:
			request.Status = model.MaintenanceInProgress
		}

		if err := s.save(txCtx, request); err != nil {
			return err
		}
		if request.Status == model.MaintenanceCompleted {
			if printerMoved, err = s.releasePrinter(txCtx, request); err != nil {
				return err
			}
		}

		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionRecordWork, request.ID.String(), request.Issue,
			map[string]any{"parts": parts, "status": request.Status, "total_cost": request.TotalCost})
	})
	if err != nil {
		return nil, err
	}

	s.inventory.PublishLowStock(low)
	if printerMoved {
		s.publishPrinter(request.PrinterID, model.PrinterAvailable)
	}
	if request.Status == model.MaintenanceCompleted {
		s.publish(EventMaintenanceCompleted, request)
	} else {
		s.publish(EventMaintenanceUpdated, request)
	}
	return request, nil
}

func (s *maintenanceService) Complete(ctx context.Context, id string, req CompleteMaintenanceRequest) (*model.MaintenanceRequest, error) {
	requestID, err := parseID(id, "maintenance request")
	if err != nil {
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	parts, err := toPartUsages(req.PartsUsed)
	if err != nil {
		return nil, err
	}
	if req.LaborCost != nil && req.LaborCost.IsNegative() {
		return nil, apperr.InvalidInput("labor_cost must not be negative")
	}

	var request *model.MaintenanceRequest
	var low []model.InventoryItem
	var printerMoved bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.lockOpen(txCtx, requestID)
		if err != nil {
			return err
		}
		if req.Version != nil && *req.Version != request.Version {
			return apperr.Conflict("maintenance request was modified, reload and retry")
		}

		if len(parts) > 0 {
			low, err = s.inventory.ConsumeParts(txCtx, &request.ID, parts)
			if err != nil {
				return err
			}
			request.PartsUsed = append(request.PartsUsed, parts...)
		}
		if req.LaborCost != nil {
			request.LaborCost = *req.LaborCost
		}
		if req.Diagnosis != "" {
			request.Diagnosis = req.Diagnosis
		}
		if req.Solution != "" {
			request.Solution = req.Solution
		}
		now := time.Now()
		request.TotalCost = model.ComputeTotalCost(request.LaborCost, request.PartsUsed)
		request.Status = model.MaintenanceCompleted
		request.CompletionDate = &now

		if err := s.save(txCtx, request); err != nil {
			return err
		}
		if printerMoved, err = s.releasePrinter(txCtx, request); err != nil {
			return err
		}

		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCompleteRequest, request.ID.String(), request.Issue,
			map[string]any{"parts": parts, "labor_cost": request.LaborCost, "total_cost": request.TotalCost})
	})
	if err != nil {
		return nil, err
	}

	s.inventory.PublishLowStock(low)
	if printerMoved {
		s.publishPrinter(request.PrinterID, model.PrinterAvailable)
	}
	s.publish(EventMaintenanceCompleted, request)
	return request, nil
}

func (s *maintenanceService) Cancel(ctx context.Context, id string, req CancelMaintenanceRequest) (*model.MaintenanceRequest, error) {
	requestID, err := parseID(id, "maintenance request")
	if err != nil {
		return nil, err
	}

	var request *model.MaintenanceRequest
	var printerMoved bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		request, err = s.lockOpen(txCtx, requestID)
		if err != nil {
			return err
		}

		request.Status = model.MaintenanceCancelled
		request.CancelReason = strings.TrimSpace(req.Reason)
		if err := s.save(txCtx, request); err != nil {
			return err
		}
		if printerMoved, err = s.releasePrinter(txCtx, request); err != nil {
			return err
		}

		return s.auditRepo.Record(txCtx, rbac.ActorID(ctx), model.ActionCancelRequest, request.ID.String(), request.Issue,
			map[string]string{"reason": request.CancelReason})
	})
	if err != nil {
		return nil, err
	}

	if printerMoved {
		s.publishPrinter(request.PrinterID, model.PrinterAvailable)
	}
	s.publish(EventMaintenanceCancelled, request)
	return request, nil
}

func (s *maintenanceService) Get(ctx context.Context, id string) (*model.MaintenanceRequest, error) {
	requestID, err := parseID(id, "maintenance request")
	if err != nil {
		return nil, err
	}
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, dbError(err, "maintenance request")
	}
	return request, nil
}

func (s *maintenanceService) List(ctx context.Context, query MaintenanceListQuery) ([]model.MaintenanceRequest, int64, error) {
	filter, err := buildMaintenanceFilter(query)
	if err != nil {
		return nil, 0, err
	}
	filter.Page, filter.Limit = normalizePage(query.Page, query.Limit)

	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, dbError(err, "maintenance request")
	}
	return requests, total, nil
}

func (s *maintenanceService) Stats(ctx context.Context) (*MaintenanceStats, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, dbError(err, "maintenance statistics")
	}
	technicians := counts.Technician
	if technicians == nil {
		technicians = []repository.TechnicianLoad{}
	}
	return &MaintenanceStats{
		Total:        counts.Total,
		Pending:      counts.ByStatus[model.MaintenancePending],
		InProgress:   counts.ByStatus[model.MaintenanceInProgress],
		Completed:    counts.ByStatus[model.MaintenanceCompleted],
		Cancelled:    counts.ByStatus[model.MaintenanceCancelled],
		TotalRevenue: counts.Revenue,
		Technicians:  technicians,
	}, nil
}

func (s *maintenanceService) Export(ctx context.Context, query MaintenanceListQuery) ([]byte, error) {
	filter, err := buildMaintenanceFilter(query)
	if err != nil {
		return nil, err
	}
	requests, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, dbError(err, "maintenance request")
	}

	columns := []export.Column{
		{Title: "ID", Width: 38},
		{Title: "Printer", Width: 20},
		{Title: "Client", Width: 24},
		{Title: "Technician", Width: 24},
		{Title: "Issue", Width: 40},
		{Title: "Priority", Width: 10},
		{Title: "Status", Width: 12},
		{Title: "Scheduled", Width: 22},
		{Title: "Completed", Width: 22},
		{Title: "Labor Cost", Width: 12},
		{Title: "Total Cost", Width: 12},
		{Title: "Created", Width: 22},
	}
	rows := make([][]any, 0, len(requests))
	for _, r := range requests {
		var printer, client, technician string
		if r.Printer != nil {
			printer = r.Printer.SerialNumber
		}
		if r.Client != nil {
			client = r.Client.Name
		}
		if r.Technician != nil {
			technician = r.Technician.Name
		}
		rows = append(rows, []any{
			r.ID.String(),
			printer,
			client,
			technician,
			r.Issue,
			r.Priority,
			string(r.Status),
			formatTime(r.ScheduledDate),
			formatTime(r.CompletionDate),
			r.LaborCost.InexactFloat64(),
			r.TotalCost.InexactFloat64(),
			formatTime(&r.CreatedAt),
		})
	}

	data, err := export.Workbook("Maintenance", columns, rows)
	if err != nil {
		return nil, apperr.Internal(err, "failed to build maintenance export")
	}
	return data, nil
}

// lockOpen loads the request under a row lock and rejects terminal states
func (s *maintenanceService) lockOpen(ctx context.Context, id uuid.UUID) (*model.MaintenanceRequest, error) {
	request, err := s.repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, dbError(err, "maintenance request")
	}
	if request.Status.Terminal() {
		return nil, apperr.Conflict("maintenance request is already %s", request.Status)
	}
	return request, nil
}

func (s *maintenanceService) save(ctx context.Context, request *model.MaintenanceRequest) error {
	err := s.repo.SaveVersioned(ctx, request)
	if errors.Is(err, repository.ErrStaleVersion) {
		return apperr.Conflict("maintenance request was modified concurrently")
	}
	return dbError(err, "maintenance request")
}

// releasePrinter returns the printer to available when it is in maintenance
// and no other assigned request on it is still open
func (s *maintenanceService) releasePrinter(ctx context.Context, request *model.MaintenanceRequest) (bool, error) {
	return s.printers.ReleaseFromMaintenance(ctx, request.PrinterID, func(txCtx context.Context) (int64, error) {
		return s.repo.CountOpenForPrinter(txCtx, request.PrinterID, request.ID)
	})
}

func (s *maintenanceService) publish(event string, r *model.MaintenanceRequest) {
	s.events.Publish(event, MaintenanceEvent{
		ID:           r.ID,
		PrinterID:    r.PrinterID,
		ClientID:     r.ClientID,
		TechnicianID: r.TechnicianID,
		Status:       r.Status,
		Priority:     r.Priority,
		Issue:        r.Issue,
		TotalCost:    r.TotalCost,
	})
}

func (s *maintenanceService) publishPrinter(printerID uuid.UUID, status model.PrinterStatus) {
	s.events.Publish(EventPrinterStatus, map[string]any{"printer_id": printerID, "status": status})
}

func toPartUsages(inputs []PartUsageInput) ([]model.PartUsage, error) {
	parts := make([]model.PartUsage, 0, len(inputs))
	for _, in := range inputs {
		partID, err := parseID(in.PartID, "part")
		if err != nil {
			return nil, err
		}
		if in.Quantity <= 0 {
			return nil, apperr.InvalidInput("quantity for part %s must be positive", partID)
		}
		if in.UnitPrice.IsNegative() {
			return nil, apperr.InvalidInput("unit_price for part %s must not be negative", partID)
		}
		parts = append(parts, model.PartUsage{PartID: partID, Quantity: in.Quantity, UnitPrice: in.UnitPrice})
	}
	return parts, nil
}

func buildMaintenanceFilter(q MaintenanceListQuery) (repository.MaintenanceFilter, error) {
	var filter repository.MaintenanceFilter
	var err error

	if q.Status != "" {
		switch model.MaintenanceStatus(q.Status) {
		case model.MaintenancePending, model.MaintenanceInProgress, model.MaintenanceCompleted, model.MaintenanceCancelled:
			filter.Status = q.Status
		default:
			return filter, apperr.InvalidInput("invalid status %q", q.Status)
		}
	}
	if q.Priority != "" {
		switch q.Priority {
		case model.PriorityLow, model.PriorityNormal, model.PriorityHigh, model.PriorityUrgent:
			filter.Priority = q.Priority
		default:
			return filter, apperr.InvalidInput("invalid priority %q", q.Priority)
		}
	}
	if filter.TechnicianID, err = parseOptionalID(q.TechnicianID, "technician"); err != nil {
		return filter, err
	}
	if filter.ClientID, err = parseOptionalID(q.ClientID, "client"); err != nil {
		return filter, err
	}
	if filter.PrinterID, err = parseOptionalID(q.PrinterID, "printer"); err != nil {
		return filter, err
	}
	if filter.StartDate, err = parseOptionalDate(q.StartDate, "start_date"); err != nil {
		return filter, err
	}
	end, err := parseOptionalDate(q.EndDate, "end_date")
	if err != nil {
		return filter, err
	}
	if end != nil {
		// end_date names a whole day
		next := end.AddDate(0, 0, 1)
		filter.EndDate = &next
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	if _, ok := repository.MaintenanceSortColumns[sortBy]; !ok {
		return filter, apperr.InvalidInput("cannot sort by %q", q.SortBy)
	}
	filter.SortBy = sortBy

	switch strings.ToLower(q.SortOrder) {
	case "", "desc":
		filter.SortDesc = true
	case "asc":
		filter.SortDesc = false
	default:
		return filter, apperr.InvalidInput("sort_order must be asc or desc")
	}

	return filter, nil
}

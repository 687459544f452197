package service

import (
	"context"
	"time"

	"printhub/internal/model"
	"printhub/internal/repository"

	"github.com/shopspring/decimal"
)

type PrinterCounts struct {
	Total       int64 `json:"total"`
	Available   int64 `json:"available"`
	Rented      int64 `json:"rented"`
	Maintenance int64 `json:"maintenance"`
	Sold        int64 `json:"sold"`
}

type DashboardStatistics struct {
	Printers       PrinterCounts    `json:"printers"`
	SalesRevenue   decimal.Decimal  `json:"sales_revenue"`
	CompletedSales int64            `json:"completed_sales"`
	Maintenance    MaintenanceStats `json:"maintenance"`
	LowStockCount  int              `json:"low_stock_count"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

type StatisticsService interface {
	GetStatistics(ctx context.Context) (*DashboardStatistics, error)
}

type statisticsService struct {
	printerRepo repository.PrinterRepository
	saleRepo    repository.SaleRepository
	maintenance MaintenanceService
	inventory   InventoryService
}

func NewStatisticsService(
	printerRepo repository.PrinterRepository,
	saleRepo repository.SaleRepository,
	maintenance MaintenanceService,
	inventory InventoryService,
) StatisticsService {
	return &statisticsService{
		printerRepo: printerRepo,
		saleRepo:    saleRepo,
		maintenance: maintenance,
		inventory:   inventory,
	}
}

// GetStatistics aggregates the dashboard counters in one pass over each table
func (s *statisticsService) GetStatistics(ctx context.Context) (*DashboardStatistics, error) {
	byStatus, err := s.printerRepo.CountByStatus(ctx)
	if err != nil {
		return nil, dbError(err, "printer statistics")
	}
	printers := PrinterCounts{
		Available:   byStatus[model.PrinterAvailable],
		Rented:      byStatus[model.PrinterRented],
		Maintenance: byStatus[model.PrinterMaintenance],
		Sold:        byStatus[model.PrinterSold],
	}
	for _, n := range byStatus {
		printers.Total += n
	}

	revenue, completed, err := s.saleRepo.CompletedRevenue(ctx)
	if err != nil {
		return nil, dbError(err, "sales statistics")
	}

	maintenance, err := s.maintenance.Stats(ctx)
	if err != nil {
		return nil, err
	}

	low, err := s.inventory.LowStockItems(ctx)
	if err != nil {
		return nil, err
	}

	return &DashboardStatistics{
		Printers:       printers,
		SalesRevenue:   revenue,
		CompletedSales: completed,
		Maintenance:    *maintenance,
		LowStockCount:  len(low),
		GeneratedAt:    time.Now(),
	}, nil
}

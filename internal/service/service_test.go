package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"printhub/internal/apperr"
	"printhub/internal/auth"
	"printhub/internal/config"
	"printhub/internal/database/dbtest"
	"printhub/internal/model"
	"printhub/internal/rbac"
	"printhub/internal/repository"
	"printhub/internal/service"
	"printhub/internal/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recorder captures published events by name
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type stubProber struct {
	reading *telemetry.Reading
	err     error
	calls   int
}

func (s *stubProber) Probe(context.Context, string) (*telemetry.Reading, error) {
	s.calls++
	return s.reading, s.err
}

// fixture wires the real repositories and services over a throwaway SQLite database
type fixture struct {
	ctx    context.Context
	db     *gorm.DB
	events *recorder
	prober *stubProber

	printerRepo     repository.PrinterRepository
	inventoryRepo   repository.InventoryRepository
	maintenanceRepo repository.MaintenanceRepository
	saleRepo        repository.SaleRepository
	roleRepo        repository.RoleRepository
	resolver        *rbac.Resolver

	coordinator service.PrinterStatusCoordinator
	inventory   service.InventoryService
	maintenance service.MaintenanceService
	printers    service.PrinterService
	sales       service.SaleService
	users       service.UserService
	roles       service.RoleService
	audit       service.AuditService
	stats       service.StatisticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.New(t)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	printerRepo := repository.NewPrinterRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	f := &fixture{
		ctx:             context.Background(),
		db:              db,
		events:          &recorder{},
		prober:          &stubProber{},
		printerRepo:     printerRepo,
		inventoryRepo:   inventoryRepo,
		maintenanceRepo: maintenanceRepo,
		saleRepo:        saleRepo,
		roleRepo:        roleRepo,
		resolver:        rbac.NewResolver(roleRepo, userRepo),
	}

	tokens := auth.NewTokenManager(&config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour})

	f.coordinator = service.NewPrinterStatusCoordinator(printerRepo, auditRepo, txManager)
	f.inventory = service.NewInventoryService(inventoryRepo, auditRepo, txManager, f.events)
	f.maintenance = service.NewMaintenanceService(maintenanceRepo, printerRepo, userRepo, auditRepo, f.inventory, f.coordinator, txManager, f.events)
	f.printers = service.NewPrinterService(printerRepo, userRepo, auditRepo, f.coordinator, f.prober, txManager, f.events, zap.NewNop())
	f.sales = service.NewSaleService(saleRepo, printerRepo, userRepo, auditRepo, f.coordinator, txManager, f.events)
	f.users = service.NewUserService(userRepo, roleRepo, maintenanceRepo, saleRepo, auditRepo, f.coordinator, txManager, tokens, f.resolver)
	f.roles = service.NewRoleService(roleRepo, auditRepo, txManager)
	f.audit = service.NewAuditService(auditRepo)
	f.stats = service.NewStatisticsService(printerRepo, saleRepo, f.maintenance, f.inventory)

	if err := f.roles.SeedDefaultRolesAndPermissions(f.ctx); err != nil {
		t.Fatalf("seed roles: %v", err)
	}
	return f
}

func (f *fixture) user(t *testing.T, email, role string) uuid.UUID {
	t.Helper()
	u, err := f.users.CreateUser(f.ctx, service.CreateUserRequest{
		Name:     email,
		Email:    email,
		Password: "secret123",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u.ID
}

func (f *fixture) printer(t *testing.T, serial string, status model.PrinterStatus) uuid.UUID {
	t.Helper()
	p := &model.Printer{
		Model:        "LaserJet M404",
		SerialNumber: serial,
		Type:         model.PrinterTypeMonochrome,
		Status:       status,
		Condition:    model.ConditionNew,
	}
	if err := f.printerRepo.Create(f.ctx, p); err != nil {
		t.Fatalf("create printer %s: %v", serial, err)
	}
	return p.ID
}

func (f *fixture) part(t *testing.T, sku string, quantity, minQuantity int) uuid.UUID {
	t.Helper()
	item := &model.InventoryItem{
		Name:         sku,
		SKU:          sku,
		Category:     model.CategoryInk,
		Quantity:     quantity,
		MinQuantity:  minQuantity,
		CostPrice:    decimal.NewFromInt(10),
		SellingPrice: decimal.NewFromInt(20),
	}
	if err := f.inventoryRepo.Create(f.ctx, item); err != nil {
		t.Fatalf("create item %s: %v", sku, err)
	}
	return item.ID
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	item, err := f.inventoryRepo.FindByID(f.ctx, id)
	if err != nil {
		t.Fatalf("load item: %v", err)
	}
	return item.Quantity
}

func (f *fixture) printerStatus(t *testing.T, id uuid.UUID) model.PrinterStatus {
	t.Helper()
	p, err := f.printerRepo.FindByID(f.ctx, id)
	if err != nil {
		t.Fatalf("load printer: %v", err)
	}
	return p.Status
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

package service_test

import (
	"sync"
	"testing"

	"printhub/internal/apperr"
	"printhub/internal/model"
	"printhub/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func usage(id uuid.UUID, qty int, price int64) service.PartUsageInput {
	return service.PartUsageInput{PartID: id.String(), Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

func TestMaintenanceLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "c1@example.com", "client")
	tech := f.user(t, "t1@example.com", "employee")
	printer := f.printer(t, "P1", model.PrinterAvailable)
	ink := f.part(t, "ink-1", 5, 1)

	req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
		PrinterID: printer.String(),
		ClientID:  client.String(),
		Issue:     "jam",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != model.MaintenancePending {
		t.Errorf("status = %s, want pending", req.Status)
	}
	if req.Priority != model.PriorityNormal {
		t.Errorf("priority = %s, want normal", req.Priority)
	}

	req, err = f.maintenance.AssignTechnician(f.ctx, req.ID.String(), service.AssignTechnicianRequest{TechnicianID: tech.String()})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if req.Status != model.MaintenanceInProgress {
		t.Errorf("status after assign = %s, want in_progress", req.Status)
	}
	if req.TechnicianID == nil || *req.TechnicianID != tech {
		t.Errorf("technician = %v, want %s", req.TechnicianID, tech)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterMaintenance {
		t.Errorf("printer status after assign = %s, want maintenance", got)
	}

	completion := service.CompleteMaintenanceRequest{
		PartsUsed: []service.PartUsageInput{usage(ink, 1, 20)},
		LaborCost: dec(30),
	}
	req, err = f.maintenance.Complete(f.ctx, req.ID.String(), completion)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if req.Status != model.MaintenanceCompleted {
		t.Errorf("status after complete = %s, want completed", req.Status)
	}
	if !req.TotalCost.Equal(decimal.NewFromInt(50)) {
		t.Errorf("total cost = %s, want 50", req.TotalCost)
	}
	if req.CompletionDate == nil {
		t.Error("completion date not set")
	}
	if got := f.stock(t, ink); got != 4 {
		t.Errorf("stock after complete = %d, want 4", got)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterAvailable {
		t.Errorf("printer status after complete = %s, want available", got)
	}

	_, err = f.maintenance.Complete(f.ctx, req.ID.String(), completion)
	wantKind(t, err, apperr.KindConflict)
	if got := f.stock(t, ink); got != 4 {
		t.Errorf("stock after second complete = %d, want 4", got)
	}

	moves, err := f.inventoryRepo.CountMovementsForRequest(f.ctx, req.ID)
	if err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if moves != 1 {
		t.Errorf("movements for request = %d, want 1", moves)
	}

	stored, err := f.maintenance.Get(f.ctx, req.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.TotalCost.Equal(decimal.NewFromInt(50)) || len(stored.PartsUsed) != 1 {
		t.Errorf("stored request = total %s parts %d, want 50 and 1", stored.TotalCost, len(stored.PartsUsed))
	}

	if f.events.count(service.EventMaintenanceCreated) != 1 ||
		f.events.count(service.EventMaintenanceAssigned) != 1 ||
		f.events.count(service.EventMaintenanceCompleted) != 1 {
		t.Errorf("unexpected events: %v", f.events.events)
	}
}

func TestTerminalRequestsRejectEveryTransition(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	tech := f.user(t, "tech@example.com", "employee")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	open := func(t *testing.T) string {
		t.Helper()
		req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
			PrinterID: printer.String(),
			ClientID:  client.String(),
			Issue:     "streaks",
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return req.ID.String()
	}

	completed := open(t)
	if _, err := f.maintenance.Complete(f.ctx, completed, service.CompleteMaintenanceRequest{LaborCost: dec(10)}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	cancelled := open(t)
	if _, err := f.maintenance.Cancel(f.ctx, cancelled, service.CancelMaintenanceRequest{Reason: "duplicate"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ops := map[string]func(id string) error{
		"assign": func(id string) error {
			_, err := f.maintenance.AssignTechnician(f.ctx, id, service.AssignTechnicianRequest{TechnicianID: tech.String()})
			return err
		},
		"record work": func(id string) error {
			_, err := f.maintenance.RecordWork(f.ctx, id, service.RecordWorkRequest{TechnicalNotes: "late note"})
			return err
		},
		"complete": func(id string) error {
			_, err := f.maintenance.Complete(f.ctx, id, service.CompleteMaintenanceRequest{})
			return err
		},
		"cancel": func(id string) error {
			_, err := f.maintenance.Cancel(f.ctx, id, service.CancelMaintenanceRequest{})
			return err
		},
	}

	for state, id := range map[string]string{"completed": completed, "cancelled": cancelled} {
		for name, op := range ops {
			t.Run(state+"/"+name, func(t *testing.T) {
				wantKind(t, op(id), apperr.KindConflict)
			})
		}
	}
}

func TestRecordWorkComputesTotalCost(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	printer := f.printer(t, "P1", model.PrinterAvailable)
	drum := f.part(t, "drum-1", 10, 2)
	fuser := f.part(t, "fuser-1", 3, 1)

	req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
		PrinterID: printer.String(),
		ClientID:  client.String(),
		Issue:     "ghosting",
		Priority:  model.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req, err = f.maintenance.RecordWork(f.ctx, req.ID.String(), service.RecordWorkRequest{
		PartsUsed: []service.PartUsageInput{usage(drum, 2, 15), usage(fuser, 1, 50)},
		LaborCost: dec(100),
	})
	if err != nil {
		t.Fatalf("record work: %v", err)
	}
	if !req.TotalCost.Equal(decimal.NewFromInt(180)) {
		t.Errorf("total cost = %s, want 180", req.TotalCost)
	}
	if req.Status != model.MaintenanceInProgress {
		t.Errorf("status = %s, want in_progress", req.Status)
	}
	if got := f.stock(t, drum); got != 8 {
		t.Errorf("drum stock = %d, want 8", got)
	}
	if got := f.stock(t, fuser); got != 2 {
		t.Errorf("fuser stock = %d, want 2", got)
	}

	// Later labor replaces the earlier figure, parts keep accumulating
	req, err = f.maintenance.RecordWork(f.ctx, req.ID.String(), service.RecordWorkRequest{
		PartsUsed: []service.PartUsageInput{usage(fuser, 1, 50)},
		LaborCost: dec(40),
		Status:    string(model.MaintenanceCompleted),
	})
	if err != nil {
		t.Fatalf("record work: %v", err)
	}
	if !req.TotalCost.Equal(decimal.NewFromInt(170)) {
		t.Errorf("total cost = %s, want 170", req.TotalCost)
	}
	if req.Status != model.MaintenanceCompleted {
		t.Errorf("status = %s, want completed", req.Status)
	}
}

func TestInsufficientStockLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	printer := f.printer(t, "P1", model.PrinterAvailable)
	plenty := f.part(t, "toner-1", 5, 0)
	scarce := f.part(t, "roller-1", 1, 0)

	req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
		PrinterID: printer.String(),
		ClientID:  client.String(),
		Issue:     "paper feed",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.maintenance.Complete(f.ctx, req.ID.String(), service.CompleteMaintenanceRequest{
		PartsUsed: []service.PartUsageInput{usage(plenty, 2, 10), usage(scarce, 3, 10)},
	})
	wantKind(t, err, apperr.KindInsufficientStock)

	if got := f.stock(t, plenty); got != 5 {
		t.Errorf("toner stock = %d, want 5", got)
	}
	if got := f.stock(t, scarce); got != 1 {
		t.Errorf("roller stock = %d, want 1", got)
	}
	stored, err := f.maintenance.Get(f.ctx, req.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != model.MaintenancePending || stored.Version != 1 {
		t.Errorf("request = %s v%d, want pending v1", stored.Status, stored.Version)
	}
}

func TestLowStockBoundary(t *testing.T) {
	f := newFixture(t)
	atMin := f.part(t, "at-min", 3, 3)
	f.part(t, "above-min", 4, 3)

	items, err := f.inventory.LowStockItems(f.ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(items) != 1 || items[0].ID != atMin {
		t.Fatalf("low stock items = %+v, want only at-min", items)
	}
}

func TestConsumePartsPublishesLowStock(t *testing.T) {
	f := newFixture(t)
	item := f.part(t, "ink-2", 4, 3)

	low, err := f.inventory.ConsumeParts(f.ctx, nil, []model.PartUsage{{PartID: item, Quantity: 1}})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(low) != 1 || low[0].Quantity != 3 {
		t.Fatalf("low = %+v, want one item at 3", low)
	}
	if n := f.events.count(service.EventLowStock); n != 1 {
		t.Errorf("low stock events = %d, want 1", n)
	}

	_, err = f.inventory.ConsumeParts(f.ctx, nil, []model.PartUsage{{PartID: uuid.New(), Quantity: 1}})
	wantKind(t, err, apperr.KindNotFound)
}

func TestCompleteRejectsStaleVersion(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
		PrinterID: printer.String(),
		ClientID:  client.String(),
		Issue:     "noise",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stale := 7
	_, err = f.maintenance.Complete(f.ctx, req.ID.String(), service.CompleteMaintenanceRequest{Version: &stale})
	wantKind(t, err, apperr.KindConflict)

	current := req.Version
	if _, err := f.maintenance.Complete(f.ctx, req.ID.String(), service.CompleteMaintenanceRequest{Version: &current}); err != nil {
		t.Fatalf("complete with current version: %v", err)
	}
}

func TestCancelReturnsPrinterFromMaintenance(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	tech := f.user(t, "tech@example.com", "employee")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
		PrinterID: printer.String(),
		ClientID:  client.String(),
		Issue:     "error 49",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.maintenance.AssignTechnician(f.ctx, req.ID.String(), service.AssignTechnicianRequest{TechnicianID: tech.String()}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	req, err = f.maintenance.Cancel(f.ctx, req.ID.String(), service.CancelMaintenanceRequest{Reason: "  customer withdrew "})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if req.Status != model.MaintenanceCancelled || req.CancelReason != "customer withdrew" {
		t.Errorf("request = %s %q", req.Status, req.CancelReason)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterAvailable {
		t.Errorf("printer status = %s, want available", got)
	}
}

func TestPrinterStaysInMaintenanceWhileRequestsOpen(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	tech := f.user(t, "tech@example.com", "employee")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	open := func(issue string) string {
		t.Helper()
		req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
			PrinterID: printer.String(),
			ClientID:  client.String(),
			Issue:     issue,
		})
		if err != nil {
			t.Fatalf("create %s: %v", issue, err)
		}
		if _, err := f.maintenance.AssignTechnician(f.ctx, req.ID.String(), service.AssignTechnicianRequest{TechnicianID: tech.String()}); err != nil {
			t.Fatalf("assign %s: %v", issue, err)
		}
		return req.ID.String()
	}
	first := open("paper jam")
	second := open("streaks")
	third := open("fuser noise")

	if _, err := f.maintenance.Complete(f.ctx, first, service.CompleteMaintenanceRequest{}); err != nil {
		t.Fatalf("complete first: %v", err)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterMaintenance {
		t.Errorf("printer after first completion = %s, want maintenance", got)
	}

	if _, err := f.maintenance.Cancel(f.ctx, second, service.CancelMaintenanceRequest{Reason: "duplicate"}); err != nil {
		t.Fatalf("cancel second: %v", err)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterMaintenance {
		t.Errorf("printer after cancel = %s, want maintenance", got)
	}

	if _, err := f.maintenance.RecordWork(f.ctx, third, service.RecordWorkRequest{Status: string(model.MaintenanceCompleted)}); err != nil {
		t.Fatalf("record work on third: %v", err)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterAvailable {
		t.Errorf("printer after last request = %s, want available", got)
	}
	if n := f.events.count(service.EventPrinterStatus); n != 2 {
		t.Errorf("printer status events = %d, want 2", n)
	}
}

func TestConcurrentCompleteConsumesOnce(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	printer := f.printer(t, "P1", model.PrinterAvailable)
	toner := f.part(t, "toner-1", 10, 1)

	req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
		PrinterID: printer.String(),
		ClientID:  client.String(),
		Issue:     "faded print",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.maintenance.Complete(f.ctx, req.ID.String(), service.CompleteMaintenanceRequest{
				PartsUsed: []service.PartUsageInput{usage(toner, 1, 25)},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.KindOf(err) != apperr.KindConflict:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("successful completions = %d, want 1", succeeded)
	}
	if got := f.stock(t, toner); got != 9 {
		t.Errorf("stock = %d, want 9", got)
	}
}

func TestCreateMaintenanceValidation(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	tests := []struct {
		name string
		req  service.CreateMaintenanceRequest
		want apperr.Kind
	}{
		{
			name: "missing client",
			req:  service.CreateMaintenanceRequest{PrinterID: printer.String(), Issue: "jam"},
			want: apperr.KindInvalidInput,
		},
		{
			name: "blank issue",
			req:  service.CreateMaintenanceRequest{PrinterID: printer.String(), ClientID: client.String(), Issue: "   "},
			want: apperr.KindInvalidInput,
		},
		{
			name: "bad priority",
			req:  service.CreateMaintenanceRequest{PrinterID: printer.String(), ClientID: client.String(), Issue: "jam", Priority: "asap"},
			want: apperr.KindInvalidInput,
		},
		{
			name: "unknown printer",
			req:  service.CreateMaintenanceRequest{PrinterID: uuid.NewString(), ClientID: client.String(), Issue: "jam"},
			want: apperr.KindNotFound,
		},
		{
			name: "unknown client",
			req:  service.CreateMaintenanceRequest{PrinterID: printer.String(), ClientID: uuid.NewString(), Issue: "jam"},
			want: apperr.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.maintenance.Create(f.ctx, tt.req)
			wantKind(t, err, tt.want)
		})
	}
}

func TestMaintenanceStatsAndList(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	tech := f.user(t, "tech@example.com", "employee")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	var ids []string
	for _, issue := range []string{"jam", "smudge", "offline"} {
		req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
			PrinterID: printer.String(),
			ClientID:  client.String(),
			Issue:     issue,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, req.ID.String())
	}
	if _, err := f.maintenance.AssignTechnician(f.ctx, ids[0], service.AssignTechnicianRequest{TechnicianID: tech.String()}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.maintenance.Complete(f.ctx, ids[0], service.CompleteMaintenanceRequest{LaborCost: dec(25)}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := f.maintenance.Cancel(f.ctx, ids[1], service.CancelMaintenanceRequest{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	stats, err := f.maintenance.Stats(f.ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Completed != 1 || stats.Cancelled != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !stats.TotalRevenue.Equal(decimal.NewFromInt(25)) {
		t.Errorf("revenue = %s, want 25", stats.TotalRevenue)
	}
	if len(stats.Technicians) != 1 || stats.Technicians[0].Completed != 1 {
		t.Errorf("technicians = %+v", stats.Technicians)
	}

	pending, total, err := f.maintenance.List(f.ctx, service.MaintenanceListQuery{Status: "pending"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(pending) != 1 || pending[0].ID.String() != ids[2] {
		t.Errorf("pending = %d rows (total %d)", len(pending), total)
	}

	_, _, err = f.maintenance.List(f.ctx, service.MaintenanceListQuery{SortBy: "password"})
	wantKind(t, err, apperr.KindInvalidInput)
}

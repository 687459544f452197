package service_test

import (
	"testing"

	"printhub/internal/apperr"
	"printhub/internal/model"
	"printhub/internal/service"
)

func TestCanTransitionPrinter(t *testing.T) {
	tests := []struct {
		from, to model.PrinterStatus
		want     bool
	}{
		{model.PrinterAvailable, model.PrinterRented, true},
		{model.PrinterAvailable, model.PrinterSold, true},
		{model.PrinterAvailable, model.PrinterMaintenance, true},
		{model.PrinterRented, model.PrinterAvailable, true},
		{model.PrinterMaintenance, model.PrinterAvailable, true},
		{model.PrinterRented, model.PrinterRented, true},
		{model.PrinterRented, model.PrinterMaintenance, false},
		{model.PrinterRented, model.PrinterSold, false},
		{model.PrinterMaintenance, model.PrinterRented, false},
		{model.PrinterSold, model.PrinterAvailable, false},
		{model.PrinterSold, model.PrinterMaintenance, false},
	}

	for _, tt := range tests {
		if got := service.CanTransitionPrinter(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransitionPrinter(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestUpdateStatusEnforcesLifecycle(t *testing.T) {
	f := newFixture(t)
	sold := f.printer(t, "SOLD-1", model.PrinterSold)
	rented := f.printer(t, "RENT-1", model.PrinterRented)
	free := f.printer(t, "FREE-1", model.PrinterAvailable)

	_, err := f.printers.UpdateStatus(f.ctx, sold.String(), service.UpdatePrinterStatusRequest{Status: "available"})
	wantKind(t, err, apperr.KindConflict)

	_, err = f.printers.UpdateStatus(f.ctx, rented.String(), service.UpdatePrinterStatusRequest{Status: "maintenance"})
	wantKind(t, err, apperr.KindConflict)

	_, err = f.printers.UpdateStatus(f.ctx, free.String(), service.UpdatePrinterStatusRequest{Status: "broken"})
	wantKind(t, err, apperr.KindInvalidInput)

	p, err := f.printers.UpdateStatus(f.ctx, free.String(), service.UpdatePrinterStatusRequest{Status: "maintenance"})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if p.Status != model.PrinterMaintenance {
		t.Errorf("status = %s, want maintenance", p.Status)
	}
	if f.events.count(service.EventPrinterStatus) != 1 {
		t.Errorf("printer status events = %d, want 1", f.events.count(service.EventPrinterStatus))
	}

	logs, total, err := f.audit.GetAuditLogs(f.ctx, 1, 10, "PRINTER_STATUS")
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if total != 1 || logs[0].EntityID != free.String() || logs[0].UserName != "System" {
		t.Errorf("audit = %d rows, first %+v", total, logs)
	}
}

func TestServicingRentedPrinterKeepsItRented(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	tech := f.user(t, "tech@example.com", "employee")
	printer := f.printer(t, "RENT-1", model.PrinterRented)

	req, err := f.maintenance.Create(f.ctx, service.CreateMaintenanceRequest{
		PrinterID: printer.String(),
		ClientID:  client.String(),
		Issue:     "on-site jam",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.maintenance.AssignTechnician(f.ctx, req.ID.String(), service.AssignTechnicianRequest{TechnicianID: tech.String()}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterRented {
		t.Errorf("after assign = %s, want rented", got)
	}
	if _, err := f.maintenance.Complete(f.ctx, req.ID.String(), service.CompleteMaintenanceRequest{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterRented {
		t.Errorf("after complete = %s, want rented", got)
	}
}

package service_test

import (
	"testing"

	"printhub/internal/apperr"
	"printhub/internal/model"
	"printhub/internal/service"

	"github.com/shopspring/decimal"
)

func TestRentalCompleteAndReturn(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	sale, err := f.sales.Create(f.ctx, service.CreateSaleRequest{
		PrinterID:     printer.String(),
		ClientID:      client.String(),
		Type:          model.SaleTypeRental,
		Amount:        decimal.NewFromInt(120),
		PaymentMethod: "card",
		RentalStart:   "2026-01-01",
		RentalEnd:     "2026-06-30",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sale.Status != model.SalePending {
		t.Errorf("status = %s, want pending", sale.Status)
	}

	if _, err := f.sales.Complete(f.ctx, sale.ID.String()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterRented {
		t.Errorf("printer after complete = %s, want rented", got)
	}

	_, err = f.sales.Complete(f.ctx, sale.ID.String())
	wantKind(t, err, apperr.KindConflict)

	sale, err = f.sales.Cancel(f.ctx, sale.ID.String(), service.CancelSaleRequest{Reason: "returned early"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sale.Status != model.SaleCancelled || sale.Notes != "Cancelled: returned early" {
		t.Errorf("sale = %s %q", sale.Status, sale.Notes)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterAvailable {
		t.Errorf("printer after return = %s, want available", got)
	}
	if n := f.events.count(service.EventSaleCompleted); n != 1 {
		t.Errorf("sale completed events = %d, want 1", n)
	}
}

func TestCompletedSaleIsFinal(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	sale, err := f.sales.Create(f.ctx, service.CreateSaleRequest{
		PrinterID:     printer.String(),
		ClientID:      client.String(),
		Type:          model.SaleTypeSale,
		Amount:        decimal.NewFromInt(900),
		PaymentMethod: "transfer",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.sales.Complete(f.ctx, sale.ID.String()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := f.printerStatus(t, printer); got != model.PrinterSold {
		t.Errorf("printer = %s, want sold", got)
	}

	_, err = f.sales.Cancel(f.ctx, sale.ID.String(), service.CancelSaleRequest{})
	wantKind(t, err, apperr.KindConflict)

	// A sold printer cannot be offered again
	_, err = f.sales.Create(f.ctx, service.CreateSaleRequest{
		PrinterID:     printer.String(),
		ClientID:      client.String(),
		Type:          model.SaleTypeSale,
		Amount:        decimal.NewFromInt(800),
		PaymentMethod: "cash",
	})
	wantKind(t, err, apperr.KindConflict)
}

func TestCreateSaleValidation(t *testing.T) {
	f := newFixture(t)
	client := f.user(t, "client@example.com", "client")
	printer := f.printer(t, "P1", model.PrinterAvailable)

	base := service.CreateSaleRequest{
		PrinterID:     printer.String(),
		ClientID:      client.String(),
		Type:          model.SaleTypeSale,
		Amount:        decimal.NewFromInt(100),
		PaymentMethod: "cash",
	}

	tests := []struct {
		name   string
		mutate func(r *service.CreateSaleRequest)
		want   apperr.Kind
	}{
		{"zero amount", func(r *service.CreateSaleRequest) { r.Amount = decimal.Zero }, apperr.KindInvalidInput},
		{"unknown payment", func(r *service.CreateSaleRequest) { r.PaymentMethod = "barter" }, apperr.KindInvalidInput},
		{"rental without dates", func(r *service.CreateSaleRequest) { r.Type = model.SaleTypeRental }, apperr.KindInvalidInput},
		{"rental ends before start", func(r *service.CreateSaleRequest) {
			r.Type = model.SaleTypeRental
			r.RentalStart = "2026-05-01"
			r.RentalEnd = "2026-04-01"
		}, apperr.KindInvalidInput},
		{"bad printer id", func(r *service.CreateSaleRequest) { r.PrinterID = "p1" }, apperr.KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := f.sales.Create(f.ctx, req)
			wantKind(t, err, tt.want)
		})
	}
}

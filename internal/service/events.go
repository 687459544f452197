package service

// EventPublisher fans realtime events out to dashboard clients.
// Implementations must not block.
type EventPublisher interface {
	Publish(event string, data any)
}

const (
	EventMaintenanceCreated   = "maintenance.created"
	EventMaintenanceAssigned  = "maintenance.assigned"
	EventMaintenanceUpdated   = "maintenance.updated"
	EventMaintenanceCompleted = "maintenance.completed"
	EventMaintenanceCancelled = "maintenance.cancelled"
	EventLowStock             = "inventory.low_stock"
	EventStockChanged         = "inventory.stock_changed"
	EventPrinterStatus        = "printer.status"
	EventSaleCompleted        = "sale.completed"
)

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) {}

// NopPublisher discards every event
var NopPublisher EventPublisher = nopPublisher{}

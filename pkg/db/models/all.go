package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// SQLite-backed tests and local runs.
func All() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&Address{},
		&Coupon{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&OrderStatusHistory{},
		&InventoryRecord{},
		&Reservation{},
		&InventoryLedgerEntry{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

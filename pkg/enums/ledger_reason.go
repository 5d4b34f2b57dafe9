package enums

// LedgerReason explains why an inventory ledger entry exists.
type LedgerReason string

const (
	LedgerReasonOrderReserved         LedgerReason = "ORDER_RESERVED"
	LedgerReasonOrderCommitted        LedgerReason = "ORDER_COMMITTED"
	LedgerReasonOrderCancelledRelease LedgerReason = "ORDER_CANCELLED_RELEASE"
	LedgerReasonStockAdjustment       LedgerReason = "STOCK_ADJUSTMENT"
)

var ledgerReasons = newValueSet[LedgerReason]("ledger reason",
	LedgerReasonOrderReserved,
	LedgerReasonOrderCommitted,
	LedgerReasonOrderCancelledRelease,
	LedgerReasonStockAdjustment,
)

func (l LedgerReason) String() string {
	return string(l)
}

func (l LedgerReason) IsValid() bool {
	return ledgerReasons.has(l)
}

// ParseLedgerReason rejects anything outside the declared LedgerReason values.
func ParseLedgerReason(value string) (LedgerReason, error) {
	return ledgerReasons.parse(value)
}

package enums

// ReservationStatus is the state of a stock hold.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "ACTIVE"
	ReservationStatusCommitted ReservationStatus = "COMMITTED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

var reservationStatuses = newValueSet[ReservationStatus]("reservation status",
	ReservationStatusActive,
	ReservationStatusCommitted,
	ReservationStatusCancelled,
)

func (r ReservationStatus) String() string {
	return string(r)
}

func (r ReservationStatus) IsValid() bool {
	return reservationStatuses.has(r)
}

// ParseReservationStatus rejects anything outside the declared ReservationStatus values.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	return reservationStatuses.parse(value)
}

package enums

// ReservationMode records which mechanism reserved a stock line. Release
// logic dispatches on it so a compensation always mirrors the reservation.
type ReservationMode string

const (
	// ReservedViaProcedure means an atomic server-side function performed the
	// check-and-decrement in one round trip.
	ReservedViaProcedure ReservationMode = "procedure"
	// ReservedViaOptimisticRetry means the client fallback reserved the line
	// with a compare-and-swap loop.
	ReservedViaOptimisticRetry ReservationMode = "optimistic"
)

// String implements fmt.Stringer.
func (m ReservationMode) String() string {
	return string(m)
}

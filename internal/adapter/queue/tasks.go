package queue

import "fmt"

// Task types routed by the asynq mux.
const (
	TypeReserve = "flashline:reserve"
	TypeRelease = "flashline:release_hold"
)

// Queue names. Reservations get more weight so a backlog of expiry sweeps
// cannot starve new grants.
const (
	QueueReservations = "reservations"
	QueueReleases     = "releases"
)

// Task ids are deterministic in (sale, buyer): repeated admission calls
// collapse into one queued reserve attempt, and each granted hold has at
// most one pending release sweep.
func reserveTaskID(saleID, email string) string {
	return fmt.Sprintf("reserve:%s:%s", saleID, email)
}

func releaseTaskID(saleID, email string) string {
	return fmt.Sprintf("release:%s:%s", saleID, email)
}

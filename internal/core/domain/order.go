package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPaid PaymentStatus = "paid"
)

// Order is the durable record of a completed purchase. At most one exists
// per (campaign, buyer); the database enforces the uniqueness.
type Order struct {
	ID            string
	CampaignID    string
	BuyerEmail    string
	AmountCents   int64
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
}

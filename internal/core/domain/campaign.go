package domain

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusActive CampaignStatus = "active"
	CampaignStatusEnded  CampaignStatus = "ended"
)

type Campaign struct {
	ID               string
	Slug             string
	Name             string
	Status           CampaignStatus
	StartsAt         time.Time
	EndsAt           time.Time
	StartingQuantity int
	CurrentQuantity  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SaleMeta is the minimal campaign projection the reservation worker needs
// per job. It is cached in the fast store with a short TTL so a burst of
// reserve jobs does not hit the durable store once per job.
type SaleMeta struct {
	SaleID           string         `json:"saleId"`
	Status           CampaignStatus `json:"status"`
	StartsAt         time.Time      `json:"startsAt"`
	EndsAt           time.Time      `json:"endsAt"`
	StartingQuantity int            `json:"startingQuantity"`
}

// Schedulable reports whether the sale can still grant holds at some point:
// it is active and its window has not closed.
func (m SaleMeta) Schedulable(now time.Time) bool {
	return m.Status == CampaignStatusActive && now.Before(m.EndsAt)
}

// Started reports whether the sale window has opened.
func (m SaleMeta) Started(now time.Time) bool {
	return !now.Before(m.StartsAt)
}

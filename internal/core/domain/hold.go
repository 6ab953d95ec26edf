package domain

import "time"

// LineStatus is what the position endpoint reports for a buyer.
type LineStatus string

const (
	LineStatusReady  LineStatus = "ready"
	LineStatusQueued LineStatus = "queued"
	LineStatusNone   LineStatus = "none"
)

// Position describes where a buyer stands for a sale: holding, waiting, or
// out of the picture.
type Position struct {
	Status   LineStatus
	Rank     int64 // 0-based rank in the line, valid when Status == queued
	LineSize int64
	HoldTTL  time.Duration // valid when Status == ready
}

// Admission is the outcome of a buy request.
type Admission struct {
	Queued        bool
	Rank          int64
	LineSize      int64
	HasActiveHold bool
	HoldTTL       time.Duration
}

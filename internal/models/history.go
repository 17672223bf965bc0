package models

import "time"

type EndReason string

const (
	EndReasonOwner   EndReason = "owner"
	EndReasonExpired EndReason = "expired"
)

// HistoryRecord is the immutable terminal summary of one completed session.
type HistoryRecord struct {
	SessionID     string    `json:"session_id"`
	OwnerID       int64     `json:"owner_id"`
	SecretPath    string    `json:"secret_path"`
	TotalRequests int64     `json:"total_requests"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DisplayName   string    `json:"display_name"`
	Reason        EndReason `json:"reason"`
}

func NewHistoryRecord(ss *Session, endTime time.Time, reason EndReason) HistoryRecord {
	return HistoryRecord{
		SessionID:     ss.ID,
		OwnerID:       ss.OwnerID,
		SecretPath:    ss.SecretPath,
		TotalRequests: ss.RequestCount,
		StartTime:     ss.StartTime,
		EndTime:       endTime,
		DisplayName:   ss.DisplayName,
		Reason:        reason,
	}
}

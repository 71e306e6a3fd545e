package model

import "time"

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralCredited  ReferralStatus = "credited"
)

// Referral links a referrer to one booking made with their code. Status moves
// pending -> completed -> credited; credited is terminal. A referral whose
// booking is cancelled stays pending (see the stats stale_pending count).
type Referral struct {
	ID                int64          `json:"id"`
	ReferrerID        int64          `json:"referrer_id"`
	ReferredBookingID int64          `json:"referred_booking_id"`
	Code              string         `json:"code"`
	Status            ReferralStatus `json:"status"`
	Tier              int            `json:"tier"`
	CreditAmount      int64          `json:"credit_amount"`
	CreatedAt         time.Time      `json:"created_at"`
	CreditedAt        *time.Time     `json:"credited_at"`
}

package model

import "time"

type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking mirrors the booking system's record. Contact fields are captured at
// intake and kept in normalized form alongside the originals so fraud checks
// can compare them with plain equality.
type Booking struct {
	ID           int64         `json:"id"`
	CustomerID   int64         `json:"customer_id"`
	Email        string        `json:"email"`
	Phone        string        `json:"phone"`
	Address      string        `json:"address"`
	IPAddress    string        `json:"ip_address,omitempty"`
	ReferralCode *string       `json:"referral_code"`
	Status       BookingStatus `json:"status"`
	ServicePrice int64         `json:"service_price"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at"`
}

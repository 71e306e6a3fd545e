package model

import "time"

// Customer is the narrow mirror of the customer directory record that the
// referral engine reads and writes. Only ReferralCode and TotalBookings are
// owned here; everything else is intake data.
type Customer struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	ReferralCode  *string   `json:"referral_code"`
	TotalBookings int       `json:"total_bookings"`
	CreatedAt     time.Time `json:"created_at"`
}

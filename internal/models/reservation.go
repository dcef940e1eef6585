package models

import "time"

// Reservation is a booking read from the channel manager. CheckIn and
// CheckOut are calendar dates; their time of day is ignored.
type Reservation struct {
	ID           string    `json:"id"`
	PropertyName string    `json:"property_name"`
	CheckIn      time.Time `json:"check_in_date"`
	CheckOut     time.Time `json:"check_out_date"`
}

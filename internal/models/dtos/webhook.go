package dtos

import "encoding/json"

// MarketplaceEvent is the webhook delivery body pushed by the marketplace.
// ID is the marketplace's own message id (the dedup key), not a sync_id.
type MarketplaceEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Sender  EventSender     `json:"sender"`
	Payload json.RawMessage `json:"payload"`
}

// EventSender identifies who triggered the event on the marketplace side
type EventSender struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// BookingPayload is the payload sub-object for booking-shaped events
type BookingPayload struct {
	GuestName  string `json:"guest_name"`
	Phone      string `json:"phone,omitempty"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	Property   string `json:"property,omitempty"`
	Rate       string `json:"rate,omitempty"`
	Prepayment string `json:"prepayment,omitempty"`
	Note       string `json:"note,omitempty"`
}

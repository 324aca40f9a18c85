package models

import (
	"strings"

	"hostdesk/syncengine/internal/record"
)

// Booking field names as they appear in the flat file and the remote tab
const (
	FieldGuest      = "guest"
	FieldPhone      = "phone"
	FieldCheckIn    = "check_in"
	FieldCheckOut   = "check_out"
	FieldProperty   = "property"
	FieldRate       = "rate"
	FieldPrepayment = "prepayment"
	FieldSource     = "source"
	FieldExternalID = "external_id"
	FieldNote       = "note"
)

// BookingSchema is the payload column order for booking tables
var BookingSchema = []string{
	FieldGuest,
	FieldPhone,
	FieldCheckIn,
	FieldCheckOut,
	FieldProperty,
	FieldRate,
	FieldPrepayment,
	FieldSource,
	FieldExternalID,
	FieldNote,
}

// Booking is the typed view of one booking record. The engine itself works on
// string payloads; this struct gives the handlers and the bot compile-time
// coverage of the field names.
type Booking struct {
	SyncID     string
	Guest      string
	Phone      string
	CheckIn    string
	CheckOut   string
	Property   string
	Rate       string
	Prepayment string
	Source     string
	ExternalID string
	Note       string
}

// ToRecord converts the booking into an engine record.
func (b *Booking) ToRecord() *record.Record {
	r := record.NewRecord()
	r.SyncID = b.SyncID
	r.Set(FieldGuest, strings.TrimSpace(b.Guest))
	r.Set(FieldPhone, strings.TrimSpace(b.Phone))
	r.Set(FieldCheckIn, strings.TrimSpace(b.CheckIn))
	r.Set(FieldCheckOut, strings.TrimSpace(b.CheckOut))
	r.Set(FieldProperty, strings.TrimSpace(b.Property))
	r.Set(FieldRate, strings.TrimSpace(b.Rate))
	r.Set(FieldPrepayment, strings.TrimSpace(b.Prepayment))
	r.Set(FieldSource, strings.TrimSpace(b.Source))
	r.Set(FieldExternalID, strings.TrimSpace(b.ExternalID))
	r.Set(FieldNote, strings.TrimSpace(b.Note))
	return r
}

// BookingFromRecord builds the typed view from an engine record.
func BookingFromRecord(r *record.Record) *Booking {
	return &Booking{
		SyncID:     r.SyncID,
		Guest:      r.Get(FieldGuest),
		Phone:      r.Get(FieldPhone),
		CheckIn:    r.Get(FieldCheckIn),
		CheckOut:   r.Get(FieldCheckOut),
		Property:   r.Get(FieldProperty),
		Rate:       r.Get(FieldRate),
		Prepayment: r.Get(FieldPrepayment),
		Source:     r.Get(FieldSource),
		ExternalID: r.Get(FieldExternalID),
		Note:       r.Get(FieldNote),
	}
}

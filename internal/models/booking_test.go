package models

import (
	"testing"
)

func TestBooking_ToRecordTrimsAndMaps(t *testing.T) {
	b := &Booking{
		SyncID:  "b-1",
		Guest:   "  Ann  ",
		CheckIn: "01.06.2025",
		Note:    "",
	}

	r := b.ToRecord()
	if r.SyncID != "b-1" {
		t.Errorf("Expected sync_id b-1, got %s", r.SyncID)
	}
	if r.Get(FieldGuest) != "Ann" {
		t.Errorf("Expected trimmed guest, got %q", r.Get(FieldGuest))
	}
	if r.Get(FieldCheckIn) != "01.06.2025" {
		t.Errorf("Unexpected check_in: %q", r.Get(FieldCheckIn))
	}
}

func TestBookingFromRecord_RoundTrip(t *testing.T) {
	in := &Booking{
		SyncID:     "b-2",
		Guest:      "Ann",
		Phone:      "+123",
		CheckIn:    "01.06.2025",
		CheckOut:   "05.06.2025",
		Property:   "Seaside 2",
		Rate:       "80",
		Prepayment: "40",
		Source:     "marketplace",
		ExternalID: "m-9",
		Note:       "late arrival",
	}

	out := BookingFromRecord(in.ToRecord())
	if *out != *in {
		t.Errorf("Round trip changed the booking:\n in=%+v\nout=%+v", in, out)
	}
}

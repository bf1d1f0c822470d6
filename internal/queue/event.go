// Package queue defines the payloads the simulator puts on the message
// broker and a small reader for draining them again.
package queue

import (
	"github.com/goccy/go-json"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// Default queue names.
const (
	SeatUpdatesQueue = "seatupdates"
	APIStatusQueue   = "apistatus"
)

// SeatUpdateMessage is published on every seat status change.  Status is
// serialized by name, e.g. "Held".
type SeatUpdateMessage struct {
	Row    int              `json:"row"`
	Number int              `json:"number"`
	Status model.SeatStatus `json:"status"`
	Movie  string           `json:"movie"`
}

// ApiStatusMessage is published when the circuit breaker takes the
// booking API down and when it brings it back up.
type ApiStatusMessage struct {
	Status model.BreakerState `json:"status"`
}

func NewSeatUpdateMessage(ev model.SeatEvent) SeatUpdateMessage {
	return SeatUpdateMessage{Row: ev.Row, Number: ev.Number, Status: ev.Status, Movie: ev.Movie}
}

func NewApiStatusMessage(ev model.BreakerEvent) ApiStatusMessage {
	return ApiStatusMessage{Status: ev.State}
}

// Encode serializes a message body.
func Encode(msg any) ([]byte, error) { return json.Marshal(msg) }

// DecodeSeatUpdate parses a seatupdates body.
func DecodeSeatUpdate(body []byte) (SeatUpdateMessage, error) {
	var m SeatUpdateMessage
	err := json.Unmarshal(body, &m)
	return m, err
}

// DecodeApiStatus parses an apistatus body.
func DecodeApiStatus(body []byte) (ApiStatusMessage, error) {
	var m ApiStatusMessage
	err := json.Unmarshal(body, &m)
	return m, err
}

package domain

import (
	"errors"
	"math"
	"strconv"
)

type Status string

const (
	StatusSafe          Status = "Safe"
	StatusNightMode     Status = "In Night Mode"
	StatusNightModeLive Status = "In Night Mode (LIVE)"
	StatusSosActive     Status = "SOS ACTIVE"
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// MapsLink renders the point as a link any phone can open.
func (p Point) MapsLink() string {
	return "https://maps.google.com/?q=" +
		strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// PresenceEvent is a single position/status sample for one code.
// Timestamp is unix milliseconds.
type PresenceEvent struct {
	Code      string  `json:"code,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Status    Status  `json:"status"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

var (
	ErrInvalidEventCode  = errors.New("event code is invalid")
	ErrInvalidCoordinate = errors.New("event coordinates are out of range")
)

func (e PresenceEvent) Point() Point {
	return Point{Lat: e.Lat, Lng: e.Lng}
}

func (e PresenceEvent) Validate() error {
	if !ValidCode(e.Code) {
		return ErrInvalidEventCode
	}
	if !e.Point().Valid() {
		return ErrInvalidCoordinate
	}
	return nil
}

// Package region persists the last viewed map viewport
package region

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
)

// Region describes a map viewport
type Region struct {
	Center geo.Coordinate `json:"center"`
	Span   geo.Span       `json:"span"`
}

// DecodeError is returned when a persisted region blob cannot be read back
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("Corrupt region data: %s", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errEmpty = errors.New("empty blob")

// wire format, kept flat for compatibility with existing blobs
type encoded struct {
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	LatitudeDelta  *float64 `json:"latitudeDelta"`
	LongitudeDelta *float64 `json:"longitudeDelta"`
}

// Encode serializes r. Values are written in their shortest exact decimal
// form so Decode(Encode(r)) == r for every finite value.
func Encode(r Region) ([]byte, error) {
	if err := r.Center.Validate(); err != nil {
		return nil, err
	}
	if err := r.Span.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(encoded{
		Latitude:       &r.Center.Lat,
		Longitude:      &r.Center.Lon,
		LatitudeDelta:  &r.Span.LatDelta,
		LongitudeDelta: &r.Span.LonDelta,
	})
}

// Decode is the inverse of Encode
func Decode(data []byte) (Region, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Region{}, &DecodeError{Err: errEmpty}
	}
	var e encoded
	if err := json.Unmarshal(data, &e); err != nil {
		return Region{}, &DecodeError{Err: err}
	}
	if e.Latitude == nil || e.Longitude == nil || e.LatitudeDelta == nil || e.LongitudeDelta == nil {
		return Region{}, &DecodeError{Err: errors.New("missing field")}
	}
	r := Region{
		Center: geo.NewCoordinate(*e.Latitude, *e.Longitude),
		Span:   geo.Span{LatDelta: *e.LatitudeDelta, LonDelta: *e.LongitudeDelta},
	}
	// only what Encode accepts is a valid blob
	if err := r.Center.Validate(); err != nil {
		return Region{}, &DecodeError{Err: err}
	}
	if err := r.Span.Validate(); err != nil {
		return Region{}, &DecodeError{Err: err}
	}
	return r, nil
}

// Slot is a single-entry persistent configuration store
type Slot interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, data []byte) error
}

// Persister stores and restores the region through a Slot
type Persister struct {
	slot Slot
}

func NewPersister(slot Slot) *Persister {
	return &Persister{slot: slot}
}

// Load returns the persisted region. found is false when nothing has been
// persisted yet, which is the normal state on first launch.
func (p *Persister) Load(ctx context.Context) (r Region, found bool, err error) {
	data, found, err := p.slot.Load(ctx)
	if err != nil || !found {
		return Region{}, false, err
	}
	r, err = Decode(data)
	if err != nil {
		return Region{}, false, err
	}
	return r, true, nil
}

// Save overwrites the persisted region
func (p *Persister) Save(ctx context.Context, r Region) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	return p.slot.Save(ctx, data)
}

// Package album implements the pins and their cached photo albums, and the
// protocol deciding when an album is served from the cache and when it is
// fetched from the photo service.
package album

import (
	"time"

	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/photoservice"
)

// PinID is the stable identifier assigned to a pin at creation
type PinID string

func (id PinID) String() string {
	return string(id)
}

// PhotoID identifies a photo within the album of its pin
type PhotoID string

func (id PhotoID) String() string {
	return string(id)
}

// Pin is a saved map location
type Pin struct {
	ID         PinID                 `json:"id"`
	Coordinate geo.Coordinate        `json:"coordinate"`
	Created    time.Time             `json:"created"`
	LastPage   photoservice.PageInfo `json:"lastPage"`
}

// Photo is the cached reference to a remote photo. The image bytes are kept
// separately and only present once HasImage is true.
type Photo struct {
	ID       PhotoID    `json:"id"`
	Pin      PinID      `json:"pin"`
	RemoteID string     `json:"remoteId,omitempty"`
	URL      string     `json:"url"`
	Position int        `json:"position"`
	HasImage bool       `json:"hasImage"`
	Mime     string     `json:"mime,omitempty"`
	TakenAt  *time.Time `json:"takenAt,omitempty"`
}

// NewPhoto is a photo to be added to an album
type NewPhoto struct {
	RemoteID string
	URL      string
}

// ImageData is the downloaded content of a photo
type ImageData struct {
	Bytes   []byte
	Mime    string
	TakenAt *time.Time
}

// State is the state of the album of a pin
type State string

const (
	Empty     = State("empty")
	Populated = State("populated")
	Loading   = State("loading")
	Error     = State("error")
)

// Album is the view of the photos cached for a pin
type Album struct {
	Pin    *Pin     `json:"pin"`
	State  State    `json:"state"`
	Photos []*Photo `json:"photos"`
	// Err is the error of the last failed fetch while State is Error
	Err error `json:"-"`
}

func stateOf(photos []*Photo) State {
	if len(photos) == 0 {
		return Empty
	}
	return Populated
}

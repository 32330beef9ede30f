package album

import (
	"context"

	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/photoservice"
)

// PinStore is the durable collection of pins
type PinStore interface {
	CreatePin(ctx context.Context, c geo.Coordinate) (*Pin, error)
	ListPins(ctx context.Context) ([]*Pin, error)
	GetPin(ctx context.Context, id PinID) (*Pin, error)
	// FindPin looks a pin up by exact coordinate equality
	FindPin(ctx context.Context, c geo.Coordinate) (*Pin, error)
	// DeletePin removes the pin and all its photos
	DeletePin(ctx context.Context, id PinID) error
}

// PhotoStore holds the cached album of each pin
type PhotoStore interface {
	Photos(ctx context.Context, pin PinID) ([]*Photo, error)
	GetPhoto(ctx context.Context, pin PinID, id PhotoID) (*Photo, error)
	// ReplacePhotos atomically swaps the album of pin with photos and records
	// page as the last page fetched for it
	ReplacePhotos(ctx context.Context, pin PinID, page photoservice.PageInfo, photos []NewPhoto) ([]*Photo, error)
	DeletePhoto(ctx context.Context, pin PinID, id PhotoID) error
	// AttachImage stores the image bytes of a photo, if none are stored yet
	AttachImage(ctx context.Context, pin PinID, id PhotoID, image ImageData) error
	Image(ctx context.Context, pin PinID, id PhotoID) ([]byte, error)
}

type Store interface {
	PinStore
	PhotoStore
}

// ClosableStore is a Store that can be closed
type ClosableStore interface {
	Store

	Close() error
}

// PhotoService is the remote photo search
type PhotoService interface {
	Search(ctx context.Context, c geo.Coordinate, page int) (*photoservice.Page, error)
	DownloadImage(ctx context.Context, url string) ([]byte, error)
}

// PagePicker chooses the page to fetch for a pin given the last one fetched
type PagePicker interface {
	Pick(last photoservice.PageInfo) int
}

// Package views holds the JSON representations served by the REST API
package views

import (
	"fmt"
	"time"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/photoservice"
)

type Links map[string]string

func (l Links) Add(name, link string) Links {
	l[name] = link
	return l
}

type Pin struct {
	ID         album.PinID            `json:"id"`
	Coordinate geo.Coordinate         `json:"coordinate"`
	Created    time.Time              `json:"created"`
	LastPage   *photoservice.PageInfo `json:"lastPage,omitempty"`
	Links      Links                  `json:"links"`
}

type Photo struct {
	ID       album.PhotoID `json:"id"`
	URL      string        `json:"url"`
	Position int           `json:"position"`
	HasImage bool          `json:"hasImage"`
	Mime     string        `json:"mime,omitempty"`
	TakenAt  *time.Time    `json:"takenAt,omitempty"`
	Links    Links         `json:"links"`
}

type Album struct {
	Pin    Pin         `json:"pin"`
	State  album.State `json:"state"`
	Photos []Photo     `json:"photos"`
}

func PinFrom(p *album.Pin) Pin {
	v := Pin{
		ID:         p.ID,
		Coordinate: p.Coordinate,
		Created:    p.Created,
		Links: Links{}.
			Add("self", fmt.Sprintf("/pins/%s", p.ID)).
			Add("album", fmt.Sprintf("/pins/%s/album", p.ID)),
	}
	if p.LastPage.Known() {
		last := p.LastPage
		v.LastPage = &last
	}
	return v
}

func PinsFrom(pins []*album.Pin) []Pin {
	v := make([]Pin, len(pins))
	for i, p := range pins {
		v[i] = PinFrom(p)
	}
	return v
}

func PhotoFrom(p *album.Photo) Photo {
	base := fmt.Sprintf("/pins/%s/album/photos/%s", p.Pin, p.ID)
	return Photo{
		ID:       p.ID,
		URL:      p.URL,
		Position: p.Position,
		HasImage: p.HasImage,
		Mime:     p.Mime,
		TakenAt:  p.TakenAt,
		Links: Links{}.
			Add("self", base).
			Add("image", base+"/image").
			Add("thumb", base+"/thumb"),
	}
}

func AlbumFrom(a *album.Album) Album {
	v := Album{
		Pin:    PinFrom(a.Pin),
		State:  a.State,
		Photos: make([]Photo, len(a.Photos)),
	}
	for i, p := range a.Photos {
		v.Photos[i] = PhotoFrom(p)
	}
	return v
}

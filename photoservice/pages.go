package photoservice

import (
	"math/rand"
	"sync"
	"time"
)

// MaxRandomPage bounds the page chosen when nothing is known about a location
const MaxRandomPage = 3

// PageInfo is the position of a pin within the search results for its location.
// The zero value means nothing is known yet.
type PageInfo struct {
	Page  int `json:"page,omitempty"`
	Pages int `json:"pages,omitempty"`
}

func (p PageInfo) Known() bool {
	return p.Page > 0
}

func (p PageInfo) HasNext() bool {
	return p.Known() && p.Page < p.Pages
}

// PagePicker chooses the page to request next for a location
type PagePicker struct {
	lock sync.Mutex
	rnd  *rand.Rand
}

func NewPagePicker() *PagePicker {
	return NewPagePickerWithSource(rand.NewSource(time.Now().UnixNano()))
}

func NewPagePickerWithSource(src rand.Source) *PagePicker {
	return &PagePicker{rnd: rand.New(src)}
}

// Pick returns the page following last if there is one, otherwise a random
// page in [1, MaxRandomPage] to vary the photos shown for a location
func (p *PagePicker) Pick(last PageInfo) int {
	if last.HasNext() {
		return last.Page + 1
	}
	max := MaxRandomPage
	if last.Known() && last.Pages > 0 && last.Pages < max {
		max = last.Pages
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.rnd.Intn(max) + 1
}

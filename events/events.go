// Package events dispatches state changes to any number of listeners
package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const bufferSize = 64

var dropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "events_dropped_total",
	Help: "Events not delivered because the stream or a listener was too slow",
})

type Event struct {
	Name    string      `json:"name"`
	Action  string      `json:"action"`
	Subject string      `json:"subject,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Stream fans published events out to all listeners. Publishing never blocks:
// events are dropped when the stream or a listener falls behind.
type Stream struct {
	channel chan Event

	subcriptions chan *subscription
	unsubcribes  chan *subscription
	stopped      chan struct{}
}

type subscription struct {
	events chan Event
}

func NewStream() *Stream {
	return &Stream{
		channel:      make(chan Event, bufferSize),
		subcriptions: make(chan *subscription),
		unsubcribes:  make(chan *subscription),
		stopped:      make(chan struct{}),
	}
}

func (s *Stream) Publish(e Event) {
	select {
	case s.channel <- e:
	default:
		dropped.Inc()
	}
}

// Listen calls f for every event until ctx is done
func (s *Stream) Listen(ctx context.Context, f func(e Event)) {
	subscription, ok := s.subscribe(ctx)
	if !ok {
		return
	}
	for {
		select {
		case e := <-subscription.events:
			f(e)
		case <-ctx.Done():
			select {
			case s.unsubcribes <- subscription:
			case <-s.stopped:
			}
			return
		case <-s.stopped:
			return
		}
	}
}

func (s *Stream) subscribe(ctx context.Context) (*subscription, bool) {
	sub := &subscription{
		events: make(chan Event, bufferSize),
	}
	select {
	case s.subcriptions <- sub:
		return sub, true
	case <-ctx.Done():
		return nil, false
	case <-s.stopped:
		return nil, false
	}
}

// Dispatch delivers published events until ctx is done. It must be called once.
func (s *Stream) Dispatch(ctx context.Context) {
	defer close(s.stopped)
	var subscribers []*subscription
	for {
		select {
		case sub := <-s.subcriptions:
			subscribers = append(subscribers, sub)
		case sub := <-s.unsubcribes:
			idx := -1
			for i := range subscribers {
				if subscribers[i] == sub {
					idx = i
					break
				}
			}
			if idx != -1 {
				subscribers = append(subscribers[:idx], subscribers[idx+1:]...)
			}
		case e := <-s.channel:
			for _, s := range subscribers {
				select {
				case s.events <- e:
				default:
					dropped.Inc()
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

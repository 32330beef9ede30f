package album

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	views = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "album_views_total",
		Help: "Number of album views, by source (cache or fetch)",
	}, []string{"source"})
	fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "album_fetches_total",
		Help: "Number of completed album fetches, by outcome",
	}, []string{"outcome"})
	refreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "album_refreshes_total",
		Help: "Number of album refreshes requested",
	})
	downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "album_downloads_total",
		Help: "Number of completed image downloads, by outcome",
	}, []string{"outcome"})
)

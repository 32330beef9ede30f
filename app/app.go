package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/album/boltstore"
	"github.com/Aanu1995/Virtual-Tourist/config"
	"github.com/Aanu1995/Virtual-Tourist/consts"
	"github.com/Aanu1995/Virtual-Tourist/events"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/Aanu1995/Virtual-Tourist/photoservice"
	"github.com/Aanu1995/Virtual-Tourist/region"
	"github.com/Aanu1995/Virtual-Tourist/rest"
	"github.com/gorilla/mux"
	"github.com/kleinnic74/fflags"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

const (
	dbName = "tourist.db"

	shutdownTimeout = 5 * time.Second
)

var (
	prefetchFlag = fflags.Define("album.prefetch")
	mapFlag      = fflags.Define("map.svg")
)

type App struct {
	store    *boltstore.BoltStore
	bus      *events.Stream
	albums   *album.Manager
	regions  *region.Persister
	router   *mux.Router
	addr     string
	maxConns int

	shutdownHandlers shutdownHandlers
}

type shutdownHandler func(context.Context, *App)

type shutdownHandlers struct {
	h []shutdownHandler
}

func (hdls *shutdownHandlers) Add(h shutdownHandler) {
	hdls.h = append(hdls.h, h)
}

func (hdls shutdownHandlers) Execute(ctx context.Context, a *App) {
	for i := len(hdls.h) - 1; i >= 0; i-- {
		hdls.h[i](ctx, a)
	}
}

// OpenStore opens the pin and album database in dir
func OpenStore(ctx context.Context, dir string) (*boltstore.BoltStore, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	store, err := boltstore.Open(ctx, filepath.Join(dir, dbName))
	if err != nil {
		return nil, fmt.Errorf("Failed to initialize data store: %w", err)
	}
	return store, nil
}

func NewApp(ctx context.Context, o config.Options) (a *App, err error) {
	logger, ctx := logging.SubFrom(ctx, "app")
	logger.Info("Starting", zap.String("version", consts.Version), zap.Object("options", o))

	a = &App{
		addr:     fmt.Sprintf(":%d", o.Port),
		maxConns: o.MaxConns,
		router:   mux.NewRouter(),
		bus:      events.NewStream(),
	}
	defer func() {
		if err != nil {
			a.shutdownHandlers.Execute(ctx, a)
		}
	}()

	if a.store, err = OpenStore(ctx, o.Dir); err != nil {
		return nil, err
	}
	a.shutdownHandlers.Add(func(ctx context.Context, a *App) {
		a.store.Close()
		logging.From(ctx).Info("Closed data store")
	})
	a.regions = region.NewPersister(a.store.Region())

	var enabled logging.Strings
	albumOptions := album.Options{Downloads: o.Downloads, Notifier: a.bus}
	fflags.IfEnabled(prefetchFlag, func() error {
		albumOptions.Prefetch = true
		enabled = append(enabled, "album.prefetch")
		return nil
	})
	a.albums = album.NewManager(a.store, photoservice.NewClient(o.PhotoService()), albumOptions)

	// REST Handlers

	metrics := rest.NewMetricsHandler()
	metrics.InitRoutes(a.router)

	if consts.IsDevMode() {
		logs := rest.NewLogsHandler()
		logs.InitRoutes(a.router)
	}

	sse := rest.NewSSEHandler(a.bus)
	sse.InitRoutes(a.router)

	albums := rest.NewAlbumHandler(a.albums)
	albums.InitRoutes(a.router)

	regions := rest.NewRegionHandler(a.regions)
	regions.InitRoutes(a.router)

	fflags.IfEnabled(mapFlag, func() error {
		m := rest.NewMapHandler(a.albums, a.regions)
		m.InitRoutes(a.router)
		enabled = append(enabled, "map.svg")
		return nil
	})

	logger.Info("Initialized", zap.Array("features", enabled))
	return a, nil
}

// Run serves the API until ctx is done, then shuts everything down gracefully
func (a *App) Run(ctx context.Context) error {
	logger, ctx := logging.SubFrom(ctx, "app")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		a.shutdownHandlers.Execute(ctx, a)
		return fmt.Errorf("Cannot listen on %s: %w", a.addr, err)
	}
	listener = netutil.LimitListener(listener, a.maxConns)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		logger, ctx := logging.SubFrom(ctx, "eventbus")
		a.bus.Dispatch(ctx)
		logger.Info("DONE")
		wg.Done()
	}()
	wg.Add(1)
	go func() {
		a.albums.Run(ctx)
		wg.Done()
	}()
	if r, found, err := a.regions.Load(ctx); err != nil {
		logger.Warn("Persisted region not readable, starting with default", zap.Error(err))
	} else if found {
		logger.Info("Restored map region", zap.Object("center", r.Center))
	}

	server := http.Server{
		Handler:     rest.WithMiddleWares(a.router, "rest"),
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}
	serverErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		logger, _ := logging.SubFrom(ctx, "http")
		logger.Info("Starting HTTP server...", zap.String("bindAddr", a.addr), zap.Int("maxConns", a.maxConns))
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			serverErr <- err
		}
		logger.Info("DONE")
		wg.Done()
	}()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
	}

	logger.Info("Stopping...")
	// also ends the requests still streaming events
	cancel()

	ctxShutdown, cancelServerShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelServerShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	wg.Wait()
	a.shutdownHandlers.Execute(ctx, a)

	logger.Info("Terminated gracefully")
	return err
}

package album

import (
	"context"
	"errors"

	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/events"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/Aanu1995/Virtual-Tourist/media"
	"github.com/Aanu1995/Virtual-Tourist/photoservice"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultDownloads = 4

// Notifier receives the state changes of albums and pins
type Notifier interface {
	Publish(events.Event)
}

type Options struct {
	// Downloads is the maximum number of concurrent image downloads
	Downloads int64
	// Prefetch starts downloading all images of an album as soon as it is stored
	Prefetch bool
	Pages    PagePicker
	Notifier Notifier
}

// Manager drives the album protocol. A single goroutine, started with Run,
// owns every state transition and every access to the store; searches and
// downloads run in the background and report back to it.
type Manager struct {
	store    Store
	service  PhotoService
	pages    PagePicker
	notifier Notifier
	prefetch bool

	slots      *semaphore.Weighted
	requests   chan request
	fetched    chan fetchResult
	downloaded chan downloadResult
	done       chan struct{}
}

type result struct {
	album *Album
	pin   *Pin
	pins  []*Pin
	image *ImageData
	err   error
}

type request func(l *loop)

type fetch struct {
	pin     *Pin
	page    int
	refresh bool
	waiters []chan<- result
}

type fetchResult struct {
	pin  PinID
	page int
	res  *photoservice.Page
	err  error
}

type photoKey struct {
	pin   PinID
	photo PhotoID
}

type download struct {
	photo   *Photo
	waiters []chan<- result
}

type downloadResult struct {
	key  photoKey
	data []byte
	meta media.Meta
	err  error
}

func NewManager(store Store, service PhotoService, o Options) *Manager {
	if o.Downloads <= 0 {
		o.Downloads = defaultDownloads
	}
	if o.Pages == nil {
		o.Pages = photoservice.NewPagePicker()
	}
	return &Manager{
		store:      store,
		service:    service,
		pages:      o.Pages,
		notifier:   o.Notifier,
		prefetch:   o.Prefetch,
		slots:      semaphore.NewWeighted(o.Downloads),
		requests:   make(chan request),
		fetched:    make(chan fetchResult),
		downloaded: make(chan downloadResult),
		done:       make(chan struct{}),
	}
}

// View returns the album of a pin, fetching a page of photos if nothing is
// cached yet. A view while a fetch is in flight waits for that fetch. On a
// failed fetch the returned album is in state Error and err is the failure.
func (m *Manager) View(ctx context.Context, pin PinID) (*Album, error) {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		l.view(pin, reply)
	})
	if err != nil {
		return nil, err
	}
	return res.album, res.err
}

// Refresh replaces the album of a pin with a new page of photos. The current
// photos stay in place until the new page has been received.
func (m *Manager) Refresh(ctx context.Context, pin PinID) (*Album, error) {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		l.refresh(pin, reply)
	})
	if err != nil {
		return nil, err
	}
	return res.album, res.err
}

// Album returns the current album of a pin without fetching anything
func (m *Manager) Album(ctx context.Context, pin PinID) (*Album, error) {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		album, err := l.current(pin)
		reply <- result{album: album, err: err}
	})
	if err != nil {
		return nil, err
	}
	return res.album, res.err
}

// DeletePhoto removes a single photo from the album of a pin
func (m *Manager) DeletePhoto(ctx context.Context, pin PinID, photo PhotoID) (*Album, error) {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		album, err := l.deletePhoto(pin, photo)
		reply <- result{album: album, err: err}
	})
	if err != nil {
		return nil, err
	}
	return res.album, res.err
}

// Image returns the image bytes of a photo, downloading them on first access
func (m *Manager) Image(ctx context.Context, pin PinID, photo PhotoID) (*ImageData, error) {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		l.image(pin, photo, reply)
	})
	if err != nil {
		return nil, err
	}
	return res.image, res.err
}

func (m *Manager) CreatePin(ctx context.Context, c geo.Coordinate) (*Pin, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		pin, err := m.store.CreatePin(l.ctx, c)
		if err == nil {
			l.notify(events.Event{Name: "pin", Action: "created", Subject: pin.ID.String(), Data: pin.Coordinate})
		}
		reply <- result{pin: pin, err: storeError("createPin", err)}
	})
	if err != nil {
		return nil, err
	}
	return res.pin, res.err
}

func (m *Manager) ListPins(ctx context.Context) ([]*Pin, error) {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		pins, err := m.store.ListPins(l.ctx)
		reply <- result{pins: pins, err: storeError("listPins", err)}
	})
	if err != nil {
		return nil, err
	}
	return res.pins, res.err
}

func (m *Manager) GetPin(ctx context.Context, id PinID) (*Pin, error) {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		pin, err := m.store.GetPin(l.ctx, id)
		reply <- result{pin: pin, err: storeError("getPin", err)}
	})
	if err != nil {
		return nil, err
	}
	return res.pin, res.err
}

func (m *Manager) FindPin(ctx context.Context, c geo.Coordinate) (*Pin, error) {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		pin, err := m.store.FindPin(l.ctx, c)
		reply <- result{pin: pin, err: storeError("findPin", err)}
	})
	if err != nil {
		return nil, err
	}
	return res.pin, res.err
}

// DeletePin removes a pin with its album. A fetch still in flight for the pin
// is discarded when it completes.
func (m *Manager) DeletePin(ctx context.Context, id PinID) error {
	res, err := m.call(ctx, func(l *loop, reply chan<- result) {
		err := m.store.DeletePin(l.ctx, id)
		if err == nil {
			delete(l.failed, id)
			l.notify(events.Event{Name: "pin", Action: "deleted", Subject: id.String()})
		}
		reply <- result{err: storeError("deletePin", err)}
	})
	if err != nil {
		return err
	}
	return res.err
}

func (m *Manager) call(ctx context.Context, f func(*loop, chan<- result)) (result, error) {
	reply := make(chan result, 1)
	req := func(l *loop) {
		f(l, reply)
	}
	select {
	case m.requests <- req:
	case <-m.done:
		return result{}, ErrNotRunning
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Done is closed once Run has returned
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Run processes requests until ctx is done
func (m *Manager) Run(ctx context.Context) {
	logger, ctx := logging.SubFrom(ctx, "albums")
	l := &loop{
		Manager:     m,
		ctx:         ctx,
		logger:      logger,
		loading:     make(map[PinID]*fetch),
		failed:      make(map[PinID]error),
		downloading: make(map[photoKey]*download),
	}
	defer close(m.done)
	logger.Info("Album manager started")
	for {
		select {
		case req := <-m.requests:
			req(l)
		case res := <-m.fetched:
			l.fetched(res)
		case res := <-m.downloaded:
			l.downloaded(res)
		case <-ctx.Done():
			l.abort()
			logger.Info("Album manager stopped")
			return
		}
	}
}

// loop is the state owned by the Run goroutine
type loop struct {
	*Manager
	ctx    context.Context
	logger *zap.Logger

	loading     map[PinID]*fetch
	failed      map[PinID]error
	downloading map[photoKey]*download
}

func (l *loop) notify(e events.Event) {
	if l.notifier != nil {
		l.notifier.Publish(e)
	}
}

func (l *loop) stateChanged(pin PinID, state State) {
	l.logger.Debug("Album state changed", zap.Stringer("pin", pin), zap.String("state", string(state)))
	l.notify(events.Event{Name: "album", Action: "stateChanged", Subject: pin.String(), Data: state})
}

func (l *loop) stateOf(pin PinID, photos []*Photo) State {
	if _, found := l.loading[pin]; found {
		return Loading
	}
	if _, found := l.failed[pin]; found {
		return Error
	}
	return stateOf(photos)
}

func (l *loop) current(id PinID) (*Album, error) {
	pin, err := l.store.GetPin(l.ctx, id)
	if err != nil {
		return nil, storeError("getPin", err)
	}
	photos, err := l.store.Photos(l.ctx, id)
	if err != nil {
		return nil, storeError("photos", err)
	}
	return &Album{Pin: pin, State: l.stateOf(id, photos), Photos: photos, Err: l.failed[id]}, nil
}

func (l *loop) view(id PinID, reply chan<- result) {
	if f, found := l.loading[id]; found {
		f.waiters = append(f.waiters, reply)
		return
	}
	pin, err := l.store.GetPin(l.ctx, id)
	if err != nil {
		reply <- result{err: storeError("getPin", err)}
		return
	}
	photos, err := l.store.Photos(l.ctx, id)
	if err != nil {
		reply <- result{err: storeError("photos", err)}
		return
	}
	if len(photos) > 0 {
		views.WithLabelValues("cache").Inc()
		if _, failed := l.failed[id]; failed {
			delete(l.failed, id)
			l.stateChanged(id, Populated)
		}
		reply <- result{album: &Album{Pin: pin, State: Populated, Photos: photos}}
		return
	}
	views.WithLabelValues("fetch").Inc()
	l.startFetch(pin, false, reply)
}

func (l *loop) refresh(id PinID, reply chan<- result) {
	if _, found := l.loading[id]; found {
		reply <- result{err: ErrBusy}
		return
	}
	pin, err := l.store.GetPin(l.ctx, id)
	if err != nil {
		reply <- result{err: storeError("getPin", err)}
		return
	}
	refreshes.Inc()
	l.startFetch(pin, true, reply)
}

func (l *loop) startFetch(pin *Pin, refresh bool, reply chan<- result) {
	page := l.pages.Pick(pin.LastPage)
	l.logger.Info("Fetching photos",
		zap.Stringer("pin", pin.ID),
		zap.Object("coord", pin.Coordinate),
		zap.Int("page", page),
		zap.Bool("refresh", refresh))
	l.loading[pin.ID] = &fetch{pin: pin, page: page, refresh: refresh, waiters: []chan<- result{reply}}
	delete(l.failed, pin.ID)
	l.stateChanged(pin.ID, Loading)

	ctx := l.ctx
	go func(pin PinID, coord geo.Coordinate) {
		res, err := l.service.Search(ctx, coord, page)
		select {
		case l.Manager.fetched <- fetchResult{pin: pin, page: page, res: res, err: err}:
		case <-ctx.Done():
		}
	}(pin.ID, pin.Coordinate)
}

func (l *loop) fetched(res fetchResult) {
	f, found := l.loading[res.pin]
	if !found {
		return
	}
	delete(l.loading, res.pin)
	logger := l.logger.With(zap.Stringer("pin", res.pin), zap.Int("page", res.page))

	album, err := l.swap(res, f)
	if err != nil {
		if IsNotFound(err) {
			logger.Info("Pin deleted while fetching photos")
			fetches.WithLabelValues("discarded").Inc()
		} else {
			logger.Warn("Fetching photos failed", zap.Error(err))
			fetches.WithLabelValues("error").Inc()
			l.failed[res.pin] = err
			album = l.failedAlbum(f.pin, err)
			l.stateChanged(res.pin, Error)
		}
	} else {
		logger.Info("Album stored", zap.Int("photos", len(album.Photos)), zap.String("state", string(album.State)))
		fetches.WithLabelValues(string(album.State)).Inc()
		l.stateChanged(res.pin, album.State)
		if l.prefetch {
			for _, p := range album.Photos {
				l.startDownload(p, nil)
			}
		}
	}
	for _, w := range f.waiters {
		w <- result{album: album, err: err}
	}
}

// swap replaces the album with the fetched page
func (l *loop) swap(res fetchResult, f *fetch) (*Album, error) {
	if res.err != nil {
		return nil, res.err
	}
	info := res.res.Info()
	if info.Page == 0 {
		info.Page = res.page
	}
	photos := make([]NewPhoto, len(res.res.Photos))
	for i, p := range res.res.Photos {
		photos[i] = NewPhoto{RemoteID: p.ID, URL: p.URL}
	}
	stored, err := l.Manager.store.ReplacePhotos(l.ctx, res.pin, info, photos)
	if err != nil {
		return nil, storeError("replacePhotos", err)
	}
	pin := *f.pin
	pin.LastPage = info
	return &Album{Pin: &pin, State: stateOf(stored), Photos: stored}, nil
}

// failedAlbum is what remains servable after a failed fetch
func (l *loop) failedAlbum(pin *Pin, err error) *Album {
	photos, perr := l.Manager.store.Photos(l.ctx, pin.ID)
	if perr != nil {
		l.logger.Warn("Cannot read cached photos", zap.Stringer("pin", pin.ID), zap.Error(perr))
	}
	return &Album{Pin: pin, State: Error, Photos: photos, Err: err}
}

func (l *loop) deletePhoto(pin PinID, id PhotoID) (*Album, error) {
	if err := l.Manager.store.DeletePhoto(l.ctx, pin, id); err != nil {
		return nil, storeError("deletePhoto", err)
	}
	// editing the album acknowledges a failed refresh
	_, wasFailed := l.failed[pin]
	delete(l.failed, pin)
	album, err := l.current(pin)
	if err != nil {
		return nil, err
	}
	if wasFailed || album.State == Empty {
		l.stateChanged(pin, album.State)
	}
	return album, nil
}

func (l *loop) image(pin PinID, id PhotoID, reply chan<- result) {
	key := photoKey{pin, id}
	if d, found := l.downloading[key]; found {
		d.waiters = append(d.waiters, reply)
		return
	}
	photo, err := l.Manager.store.GetPhoto(l.ctx, pin, id)
	if err != nil {
		reply <- result{err: storeError("getPhoto", err)}
		return
	}
	if photo.HasImage {
		data, err := l.Manager.store.Image(l.ctx, pin, id)
		if err != nil {
			reply <- result{err: storeError("image", err)}
			return
		}
		reply <- result{image: &ImageData{Bytes: data, Mime: photo.Mime, TakenAt: photo.TakenAt}}
		return
	}
	l.startDownload(photo, reply)
}

func (l *loop) startDownload(photo *Photo, reply chan<- result) {
	key := photoKey{photo.Pin, photo.ID}
	d, found := l.downloading[key]
	if !found {
		d = &download{photo: photo}
		l.downloading[key] = d
		ctx := l.ctx
		go func(url string) {
			res := downloadResult{key: key}
			if err := l.slots.Acquire(ctx, 1); err != nil {
				return
			}
			res.data, res.err = l.service.DownloadImage(ctx, url)
			l.slots.Release(1)
			if res.err == nil {
				if res.meta, res.err = media.Inspect(res.data); res.err != nil {
					res.err = &photoservice.DecodeError{Msg: url, Err: res.err}
				}
			}
			select {
			case l.Manager.downloaded <- res:
			case <-ctx.Done():
			}
		}(photo.URL)
	}
	if reply != nil {
		d.waiters = append(d.waiters, reply)
	}
}

func (l *loop) downloaded(res downloadResult) {
	d, found := l.downloading[res.key]
	if !found {
		return
	}
	delete(l.downloading, res.key)
	logger := l.logger.With(zap.Stringer("pin", res.key.pin), zap.Stringer("photo", res.key.photo))

	var image *ImageData
	err := res.err
	if err == nil {
		image = &ImageData{Bytes: res.data, Mime: res.meta.Kind.Mime, TakenAt: res.meta.TakenAt}
		err = storeError("attachImage", l.Manager.store.AttachImage(l.ctx, res.key.pin, res.key.photo, *image))
	}
	if err != nil {
		logger.Warn("Image not stored", zap.String("url", d.photo.URL), zap.Error(err))
		downloads.WithLabelValues("error").Inc()
		image = nil
	} else {
		logger.Debug("Image stored", zap.Int("bytes", len(res.data)), zap.String("mime", image.Mime))
		downloads.WithLabelValues("ok").Inc()
	}
	for _, w := range d.waiters {
		w <- result{image: image, err: err}
	}
}

// abort releases everybody still waiting when the loop stops
func (l *loop) abort() {
	for _, f := range l.loading {
		for _, w := range f.waiters {
			w <- result{err: ErrNotRunning}
		}
	}
	for _, d := range l.downloading {
		for _, w := range d.waiters {
			w <- result{err: ErrNotRunning}
		}
	}
}

// storeError wraps store failures, NotFound and PinAlreadyExists are passed as is
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var exists PinAlreadyExists
	var storeErr *StoreError
	if IsNotFound(err) || errors.As(err, &exists) || errors.As(err, &storeErr) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

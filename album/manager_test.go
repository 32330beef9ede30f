package album_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/album/boltstore"
	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/events"
	"github.com/Aanu1995/Virtual-Tourist/photoservice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	lock      sync.Mutex
	pages     []int
	search    func(page int) (*photoservice.Page, error)
	downloads int
	download  func(url string) ([]byte, error)
}

func (s *fakeService) Search(ctx context.Context, c geo.Coordinate, page int) (*photoservice.Page, error) {
	s.lock.Lock()
	s.pages = append(s.pages, page)
	search := s.search
	s.lock.Unlock()
	return search(page)
}

func (s *fakeService) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	s.lock.Lock()
	s.downloads++
	download := s.download
	s.lock.Unlock()
	return download(url)
}

func (s *fakeService) requestedPages() []int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]int{}, s.pages...)
}

func (s *fakeService) downloadCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.downloads
}

type recorder struct {
	lock   sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) states(pin album.PinID) []album.State {
	r.lock.Lock()
	defer r.lock.Unlock()
	var states []album.State
	for _, e := range r.events {
		if e.Name == "album" && e.Subject == pin.String() {
			states = append(states, e.Data.(album.State))
		}
	}
	return states
}

func resultPage(page, pages int, prefix string, count int) *photoservice.Page {
	p := &photoservice.Page{Page: page, Pages: pages, PerPage: photoservice.PerPage}
	for i := 0; i < count; i++ {
		p.Photos = append(p.Photos, photoservice.Result{
			ID:  fmt.Sprintf("%s%d", prefix, i),
			URL: fmt.Sprintf("https://live.staticflickr.com/%s/%d_s.jpg", prefix, i),
		})
	}
	return p
}

func pngBytes(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{255, 0, 0, 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func runManager(t *testing.T, service album.PhotoService, o album.Options) (*album.Manager, *boltstore.BoltStore) {
	ctx, cancel := context.WithCancel(context.Background())
	store, err := boltstore.Open(ctx, filepath.Join(t.TempDir(), "album.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	if o.Pages == nil {
		o.Pages = photoservice.NewPagePickerWithSource(rand.NewSource(42))
	}
	m := album.NewManager(store, service, o)
	go m.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	return m, store
}

func urls(photos []*album.Photo) []string {
	u := make([]string, len(photos))
	for i, p := range photos {
		u[i] = p.URL
	}
	return u
}

func TestViewServesCacheAfterFirstFetch(t *testing.T) {
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		return resultPage(1, 5, "a", 3), nil
	}}
	m, _ := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, err := m.CreatePin(ctx, geo.NewCoordinate(48.2, 16.37))
	require.NoError(t, err)

	first, err := m.View(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, album.Populated, first.State)
	assert.Len(t, first.Photos, 3)

	second, err := m.View(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, album.Populated, second.State)
	assert.Equal(t, urls(first.Photos), urls(second.Photos))
	assert.Len(t, service.requestedPages(), 1, "Cached album must not trigger a search")
}

func TestFirstFetchPicksPageInRange(t *testing.T) {
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		return resultPage(page, 10, "r", 1), nil
	}}
	m, _ := runManager(t, service, album.Options{})
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		pin, err := m.CreatePin(ctx, geo.NewCoordinate(float64(i), 0))
		require.NoError(t, err)
		_, err = m.View(ctx, pin.ID)
		require.NoError(t, err)
	}
	for _, page := range service.requestedPages() {
		assert.True(t, page >= 1 && page <= photoservice.MaxRandomPage, "Page %d out of range", page)
	}
}

func TestRefreshDeleteScenario(t *testing.T) {
	var calls int
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		calls++
		if calls == 1 {
			return resultPage(1, 5, "first", 3), nil
		}
		return resultPage(page, 5, "second", 3), nil
	}}
	notifier := &recorder{}
	m, store := runManager(t, service, album.Options{Notifier: notifier})
	ctx := context.Background()
	pin, err := m.CreatePin(ctx, geo.NewCoordinate(10.0, 20.0))
	require.NoError(t, err)

	a, err := m.View(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, album.Populated, a.State)
	assert.Len(t, a.Photos, 3)
	assert.Equal(t, photoservice.PageInfo{Page: 1, Pages: 5}, a.Pin.LastPage)

	a, err = m.Refresh(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, service.requestedPages()[1], "Refresh should request the next page")
	assert.Equal(t, album.Populated, a.State)
	assert.Equal(t, urls(resultPageAlbum(resultPage(2, 5, "second", 3))), urls(a.Photos))

	a, err = m.DeletePhoto(ctx, pin.ID, a.Photos[1].ID)
	require.NoError(t, err)
	assert.Equal(t, album.Populated, a.State)
	assert.Equal(t, []string{
		"https://live.staticflickr.com/second/0_s.jpg",
		"https://live.staticflickr.com/second/2_s.jpg",
	}, urls(a.Photos))

	stored, err := store.Photos(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, urls(a.Photos), urls(stored))
	assert.Len(t, service.requestedPages(), 2, "Deleting a photo must not trigger a search")

	assert.Equal(t, []album.State{album.Loading, album.Populated, album.Loading, album.Populated}, notifier.states(pin.ID))
}

func resultPageAlbum(p *photoservice.Page) []*album.Photo {
	photos := make([]*album.Photo, len(p.Photos))
	for i, r := range p.Photos {
		photos[i] = &album.Photo{URL: r.URL}
	}
	return photos
}

func TestDeletingLastPhotoEmptiesAlbum(t *testing.T) {
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		return resultPage(1, 1, "one", 1), nil
	}}
	m, _ := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(1, 1))
	a, err := m.View(ctx, pin.ID)
	require.NoError(t, err)

	a, err = m.DeletePhoto(ctx, pin.ID, a.Photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, album.Empty, a.State)
	assert.Empty(t, a.Photos)
	assert.Len(t, service.requestedPages(), 1)
}

func TestNetworkErrorOnFirstView(t *testing.T) {
	failure := &photoservice.NetworkError{URL: "https://api.flickr.com/services/rest", Msg: "connection refused"}
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		return nil, failure
	}}
	m, store := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(3, 4))

	a, err := m.View(ctx, pin.ID)
	var networkErr *photoservice.NetworkError
	require.True(t, errors.As(err, &networkErr), "Expected a NetworkError, got %v", err)
	require.NotNil(t, a)
	assert.Equal(t, album.Error, a.State)
	assert.Empty(t, a.Photos)

	photos, err := store.Photos(ctx, pin.ID)
	require.NoError(t, err)
	assert.Empty(t, photos, "No photo must be persisted after a failed fetch")

	peek, err := m.Album(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, album.Error, peek.State)
	assert.Len(t, service.requestedPages(), 1, "Album must not fetch")
}

func TestRefreshWithNoResultsIsEmpty(t *testing.T) {
	var calls int
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		calls++
		if calls == 1 {
			return resultPage(1, 2, "x", 4), nil
		}
		return resultPage(2, 2, "x", 0), nil
	}}
	m, _ := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(5, 6))
	_, err := m.View(ctx, pin.ID)
	require.NoError(t, err)

	a, err := m.Refresh(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, album.Empty, a.State)
	assert.Empty(t, a.Photos)
}

func TestFailedRefreshKeepsPreviousPhotos(t *testing.T) {
	var calls int
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		calls++
		if calls == 2 {
			return nil, &photoservice.DecodeError{Msg: "unexpected body"}
		}
		return resultPage(1, 3, "keep", 3), nil
	}}
	m, _ := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(7, 8))
	before, err := m.View(ctx, pin.ID)
	require.NoError(t, err)

	a, err := m.Refresh(ctx, pin.ID)
	var decodeErr *photoservice.DecodeError
	require.True(t, errors.As(err, &decodeErr), "Expected a DecodeError, got %v", err)
	assert.Equal(t, album.Error, a.State)
	assert.Equal(t, urls(before.Photos), urls(a.Photos))

	a, err = m.View(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, album.Populated, a.State)
	assert.Len(t, service.requestedPages(), 2, "Cached photos are served after a failed refresh")
}

func TestDeletePhotoAfterFailedRefresh(t *testing.T) {
	var calls int
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		calls++
		if calls == 2 {
			return nil, &photoservice.NetworkError{URL: "https://api.flickr.com/services/rest", Msg: "timeout"}
		}
		return resultPage(1, 3, "edit", 3), nil
	}}
	rec := &recorder{}
	m, _ := runManager(t, service, album.Options{Notifier: rec})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(3, 4))
	before, err := m.View(ctx, pin.ID)
	require.NoError(t, err)
	a, err := m.Refresh(ctx, pin.ID)
	require.Error(t, err)
	require.Equal(t, album.Error, a.State)

	a, err = m.DeletePhoto(ctx, pin.ID, before.Photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, album.Populated, a.State)
	assert.Nil(t, a.Err)
	assert.Len(t, a.Photos, 2)
	assert.Equal(t, []album.State{album.Loading, album.Populated, album.Loading, album.Error, album.Populated}, rec.states(pin.ID))
}

func TestRefreshWhileLoadingIsBusy(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		entered <- struct{}{}
		<-release
		return resultPage(1, 1, "slow", 2), nil
	}}
	m, _ := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(9, 9))

	type viewResult struct {
		album *album.Album
		err   error
	}
	views := make(chan viewResult, 2)
	go func() {
		a, err := m.View(ctx, pin.ID)
		views <- viewResult{a, err}
	}()
	<-entered

	peek, err := m.Album(ctx, pin.ID)
	require.NoError(t, err)
	assert.Equal(t, album.Loading, peek.State)

	_, err = m.Refresh(ctx, pin.ID)
	assert.Equal(t, album.ErrBusy, err)

	go func() {
		a, err := m.View(ctx, pin.ID)
		views <- viewResult{a, err}
	}()
	// the second view must join the search in flight
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		select {
		case v := <-views:
			require.NoError(t, v.err)
			assert.Equal(t, album.Populated, v.album.State)
			assert.Len(t, v.album.Photos, 2)
		case <-time.After(5 * time.Second):
			t.Fatalf("View #%d did not complete", i)
		}
	}
	assert.Len(t, service.requestedPages(), 1)
}

func TestDeletePinWhileLoading(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	service := &fakeService{search: func(page int) (*photoservice.Page, error) {
		entered <- struct{}{}
		<-release
		return resultPage(1, 1, "gone", 2), nil
	}}
	m, store := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(11, 12))

	done := make(chan error, 1)
	go func() {
		_, err := m.View(ctx, pin.ID)
		done <- err
	}()
	<-entered
	require.NoError(t, m.DeletePin(ctx, pin.ID))
	close(release)

	select {
	case err := <-done:
		assert.True(t, album.IsNotFound(err), "Expected NotFound, got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("View did not complete")
	}
	pins, err := store.ListPins(ctx)
	require.NoError(t, err)
	assert.Empty(t, pins)
}

func TestImageIsDownloadedOnce(t *testing.T) {
	data := pngBytes(t)
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	service := &fakeService{
		search: func(page int) (*photoservice.Page, error) {
			return resultPage(1, 1, "img", 2), nil
		},
		download: func(url string) ([]byte, error) {
			entered <- struct{}{}
			<-release
			return data, nil
		},
	}
	m, store := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(13, 14))
	a, err := m.View(ctx, pin.ID)
	require.NoError(t, err)
	photo := a.Photos[0]
	assert.False(t, photo.HasImage)

	images := make(chan *album.ImageData, 2)
	for i := 0; i < 2; i++ {
		go func() {
			img, err := m.Image(ctx, pin.ID, photo.ID)
			assert.NoError(t, err)
			images <- img
		}()
	}
	<-entered
	time.Sleep(20 * time.Millisecond)
	close(release)
	for i := 0; i < 2; i++ {
		select {
		case img := <-images:
			require.NotNil(t, img)
			assert.Equal(t, data, img.Bytes)
			assert.Equal(t, "image/png", img.Mime)
		case <-time.After(5 * time.Second):
			t.Fatalf("Image #%d not delivered", i)
		}
	}

	img, err := m.Image(ctx, pin.ID, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, data, img.Bytes)
	assert.Equal(t, 1, service.downloadCount())

	stored, err := store.GetPhoto(ctx, pin.ID, photo.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasImage)
	assert.Equal(t, "image/png", stored.Mime)
}

func TestImageThatIsNotAnImage(t *testing.T) {
	service := &fakeService{
		search: func(page int) (*photoservice.Page, error) {
			return resultPage(1, 1, "html", 1), nil
		},
		download: func(url string) ([]byte, error) {
			return []byte("<html>rate limited</html>"), nil
		},
	}
	m, store := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(15, 16))
	a, err := m.View(ctx, pin.ID)
	require.NoError(t, err)

	_, err = m.Image(ctx, pin.ID, a.Photos[0].ID)
	var decodeErr *photoservice.DecodeError
	assert.True(t, errors.As(err, &decodeErr), "Expected a DecodeError, got %v", err)

	stored, err := store.GetPhoto(ctx, pin.ID, a.Photos[0].ID)
	require.NoError(t, err)
	assert.False(t, stored.HasImage)
}

func TestPrefetchDownloadsAllImages(t *testing.T) {
	data := pngBytes(t)
	service := &fakeService{
		search: func(page int) (*photoservice.Page, error) {
			return resultPage(1, 1, "pre", 3), nil
		},
		download: func(url string) ([]byte, error) {
			return data, nil
		},
	}
	m, _ := runManager(t, service, album.Options{Prefetch: true, Downloads: 2})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(17, 18))
	_, err := m.View(ctx, pin.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		a, err := m.Album(ctx, pin.ID)
		if err != nil {
			return false
		}
		for _, p := range a.Photos {
			if !p.HasImage {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, service.downloadCount())
}

func TestCreatePinTwice(t *testing.T) {
	m, _ := runManager(t, &fakeService{}, album.Options{})
	ctx := context.Background()
	first, err := m.CreatePin(ctx, geo.NewCoordinate(10, 20))
	require.NoError(t, err)
	_, err = m.CreatePin(ctx, geo.NewCoordinate(10, 20))
	assert.Equal(t, album.PinAlreadyExists(first.ID), err)

	found, err := m.FindPin(ctx, geo.NewCoordinate(10, 20))
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = m.CreatePin(ctx, geo.NewCoordinate(91, 0))
	assert.Equal(t, geo.ErrInvalidCoordinate, err)
}

func TestViewOfUnknownPin(t *testing.T) {
	m, _ := runManager(t, &fakeService{}, album.Options{})
	_, err := m.View(context.Background(), "nope")
	assert.True(t, album.IsNotFound(err), "Expected NotFound, got %v", err)
}

func TestCallsAfterStop(t *testing.T) {
	store, err := boltstore.Open(context.Background(), filepath.Join(t.TempDir(), "album.db"))
	require.NoError(t, err)
	defer store.Close()
	m := album.NewManager(store, &fakeService{}, album.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)
	cancel()
	<-m.Done()

	_, err = m.ListPins(context.Background())
	assert.Equal(t, album.ErrNotRunning, err)
}

func TestFailedDownloadIsRetried(t *testing.T) {
	img := pngBytes(t)
	var attempts int
	service := &fakeService{
		search: func(page int) (*photoservice.Page, error) {
			return resultPage(1, 1, "big", 1), nil
		},
		download: func(url string) ([]byte, error) {
			attempts++
			if attempts == 1 {
				return nil, &photoservice.NetworkError{URL: url, Msg: "response larger than 33554432 bytes"}
			}
			return img, nil
		},
	}
	m, store := runManager(t, service, album.Options{})
	ctx := context.Background()
	pin, _ := m.CreatePin(ctx, geo.NewCoordinate(17, 18))
	a, err := m.View(ctx, pin.ID)
	require.NoError(t, err)
	photo := a.Photos[0].ID

	_, err = m.Image(ctx, pin.ID, photo)
	var networkErr *photoservice.NetworkError
	require.True(t, errors.As(err, &networkErr), "Expected a NetworkError, got %v", err)
	stored, err := store.GetPhoto(ctx, pin.ID, photo)
	require.NoError(t, err)
	assert.False(t, stored.HasImage, "Nothing is attached after a failed download")

	data, err := m.Image(ctx, pin.ID, photo)
	require.NoError(t, err)
	assert.Equal(t, img, data.Bytes)
	assert.Equal(t, 2, service.downloadCount())
}

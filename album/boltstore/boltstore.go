// Package boltstore is an implementation of the pin and album store
// using BoltDB for storing data persistently
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/Aanu1995/Virtual-Tourist/photoservice"
	"github.com/google/uuid"
	"github.com/reusee/mmh3"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var (
	pinsBucket   = []byte("pins")
	coordsBucket = []byte("pinsByCoordinate")
	photosBucket = []byte("photos")
	imagesBucket = []byte("images")
)

// BoltStore uses BoltDB as the storage implementation for pins and their albums
type BoltStore struct {
	db *bolt.DB
}

// Open opens or creates the database at path. The needed buckets are created
// if not yet available.
func Open(ctx context.Context, path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	store, err := NewBoltStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewBoltStore creates a store on an already opened database
func NewBoltStore(ctx context.Context, db *bolt.DB) (*BoltStore, error) {
	if err := migrate(ctx, db); err != nil {
		return nil, err
	}
	for _, b := range [][]byte{pinsBucket, coordsBucket, photosBucket, imagesBucket, settingsBucket} {
		if err := createBucket(db, b); err != nil {
			return nil, err
		}
	}
	return &BoltStore{db: db}, nil
}

func createBucket(db *bolt.DB, name []byte) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
}

// Close closes the underlying database
func (store *BoltStore) Close() error {
	return store.db.Close()
}

// CreatePin adds a pin at c, failing with album.PinAlreadyExists if there is
// already one at exactly that coordinate
func (store *BoltStore) CreatePin(ctx context.Context, c geo.Coordinate) (*album.Pin, error) {
	pin := &album.Pin{
		ID:         album.PinID(uuid.New().String()),
		Coordinate: c,
		Created:    time.Now().UTC(),
	}
	encoded, err := json.Marshal(pin)
	if err != nil {
		return nil, err
	}
	ckey := coordinateKey(c)
	err = store.db.Update(func(tx *bolt.Tx) error {
		coords := tx.Bucket(coordsBucket)
		if existing := coords.Get(ckey); existing != nil {
			return album.PinAlreadyExists(existing)
		}
		if err := tx.Bucket(pinsBucket).Put([]byte(pin.ID), encoded); err != nil {
			return err
		}
		return coords.Put(ckey, []byte(pin.ID))
	})
	if err != nil {
		return nil, err
	}
	return pin, nil
}

func (store *BoltStore) ListPins(ctx context.Context) ([]*album.Pin, error) {
	pins := make([]*album.Pin, 0)
	err := store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(pinsBucket).ForEach(func(k, v []byte) error {
			var pin album.Pin
			if err := json.Unmarshal(v, &pin); err != nil {
				logging.From(ctx).Warn("Could not unmarshal pin", zap.ByteString("pin", k), zap.Error(err))
				return err
			}
			pins = append(pins, &pin)
			return nil
		})
	})
	return pins, err
}

func (store *BoltStore) GetPin(ctx context.Context, id album.PinID) (pin *album.Pin, err error) {
	err = store.db.View(func(tx *bolt.Tx) (err error) {
		pin, err = getPin(tx, id)
		return
	})
	return
}

func (store *BoltStore) FindPin(ctx context.Context, c geo.Coordinate) (pin *album.Pin, err error) {
	err = store.db.View(func(tx *bolt.Tx) (err error) {
		id := tx.Bucket(coordsBucket).Get(coordinateKey(c))
		if id == nil {
			return album.NotFound(c.String())
		}
		pin, err = getPin(tx, album.PinID(id))
		return
	})
	return
}

// DeletePin removes the pin together with its photos and images
func (store *BoltStore) DeletePin(ctx context.Context, id album.PinID) error {
	return store.db.Update(func(tx *bolt.Tx) error {
		pin, err := getPin(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Bucket(coordsBucket).Delete(coordinateKey(pin.Coordinate)); err != nil {
			return err
		}
		if err := tx.Bucket(pinsBucket).Delete([]byte(id)); err != nil {
			return err
		}
		return deleteAlbum(tx, id)
	})
}

// Photos returns the album of a pin in page order
func (store *BoltStore) Photos(ctx context.Context, pin album.PinID) ([]*album.Photo, error) {
	photos := make([]*album.Photo, 0)
	err := store.db.View(func(tx *bolt.Tx) error {
		if _, err := getPin(tx, pin); err != nil {
			return err
		}
		b := tx.Bucket(photosBucket).Bucket([]byte(pin))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var photo album.Photo
			if err := json.Unmarshal(v, &photo); err != nil {
				logging.From(ctx).Warn("Could not unmarshal photo", zap.Stringer("pin", pin), zap.Error(err))
				return err
			}
			photos = append(photos, &photo)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (store *BoltStore) GetPhoto(ctx context.Context, pin album.PinID, id album.PhotoID) (photo *album.Photo, err error) {
	err = store.db.View(func(tx *bolt.Tx) (err error) {
		photo, err = getPhoto(tx, pin, id)
		return
	})
	return
}

// ReplacePhotos swaps the album of pin in a single transaction and records
// page as the last page fetched for the pin
func (store *BoltStore) ReplacePhotos(ctx context.Context, id album.PinID, page photoservice.PageInfo, photos []album.NewPhoto) ([]*album.Photo, error) {
	stored := make([]*album.Photo, len(photos))
	err := store.db.Update(func(tx *bolt.Tx) error {
		pin, err := getPin(tx, id)
		if err != nil {
			return err
		}
		if err := deleteAlbum(tx, id); err != nil {
			return err
		}
		b, err := tx.Bucket(photosBucket).CreateBucket([]byte(id))
		if err != nil {
			return err
		}
		for i, p := range photos {
			key := photoKey(i, p.URL)
			stored[i] = &album.Photo{
				ID:       album.PhotoID(hex.EncodeToString(key)),
				Pin:      id,
				RemoteID: p.RemoteID,
				URL:      p.URL,
				Position: i,
			}
			if err := putJSON(b, key, stored[i]); err != nil {
				return err
			}
		}
		pin.LastPage = page
		return putJSON(tx.Bucket(pinsBucket), []byte(id), pin)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (store *BoltStore) DeletePhoto(ctx context.Context, pin album.PinID, id album.PhotoID) error {
	return store.db.Update(func(tx *bolt.Tx) error {
		if _, err := getPhoto(tx, pin, id); err != nil {
			return err
		}
		key, _ := hex.DecodeString(string(id))
		if err := tx.Bucket(photosBucket).Bucket([]byte(pin)).Delete(key); err != nil {
			return err
		}
		if images := tx.Bucket(imagesBucket).Bucket([]byte(pin)); images != nil {
			return images.Delete(key)
		}
		return nil
	})
}

// AttachImage stores the bytes of a photo. Once a photo has an image, it is
// never replaced.
func (store *BoltStore) AttachImage(ctx context.Context, pin album.PinID, id album.PhotoID, image album.ImageData) error {
	return store.db.Update(func(tx *bolt.Tx) error {
		photo, err := getPhoto(tx, pin, id)
		if err != nil {
			return err
		}
		if photo.HasImage {
			return nil
		}
		key, _ := hex.DecodeString(string(id))
		images, err := tx.Bucket(imagesBucket).CreateBucketIfNotExists([]byte(pin))
		if err != nil {
			return err
		}
		if err := images.Put(key, image.Bytes); err != nil {
			return err
		}
		photo.HasImage = true
		photo.Mime = image.Mime
		photo.TakenAt = image.TakenAt
		return putJSON(tx.Bucket(photosBucket).Bucket([]byte(pin)), key, photo)
	})
}

func (store *BoltStore) Image(ctx context.Context, pin album.PinID, id album.PhotoID) (data []byte, err error) {
	err = store.db.View(func(tx *bolt.Tx) error {
		if _, err := getPhoto(tx, pin, id); err != nil {
			return err
		}
		key, _ := hex.DecodeString(string(id))
		var v []byte
		if images := tx.Bucket(imagesBucket).Bucket([]byte(pin)); images != nil {
			v = images.Get(key)
		}
		if v == nil {
			return album.NotFound("image of " + string(id))
		}
		// bolt values are only valid during the transaction
		data = bytes.Clone(v)
		return nil
	})
	return
}

func getPin(tx *bolt.Tx, id album.PinID) (*album.Pin, error) {
	v := tx.Bucket(pinsBucket).Get([]byte(id))
	if v == nil {
		return nil, album.PinNotFound(id)
	}
	var pin album.Pin
	if err := json.Unmarshal(v, &pin); err != nil {
		return nil, err
	}
	return &pin, nil
}

func getPhoto(tx *bolt.Tx, pin album.PinID, id album.PhotoID) (*album.Photo, error) {
	if _, err := getPin(tx, pin); err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(string(id))
	if err != nil {
		return nil, album.PhotoNotFound(pin, id)
	}
	b := tx.Bucket(photosBucket).Bucket([]byte(pin))
	if b == nil {
		return nil, album.PhotoNotFound(pin, id)
	}
	v := b.Get(key)
	if v == nil {
		return nil, album.PhotoNotFound(pin, id)
	}
	var photo album.Photo
	if err := json.Unmarshal(v, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

func deleteAlbum(tx *bolt.Tx, id album.PinID) error {
	for _, name := range [][]byte{photosBucket, imagesBucket} {
		b := tx.Bucket(name)
		if b.Bucket([]byte(id)) == nil {
			continue
		}
		if err := b.DeleteBucket([]byte(id)); err != nil {
			return err
		}
	}
	return nil
}

func putJSON(b *bolt.Bucket, key []byte, v interface{}) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, encoded)
}

// photoKey orders photos by their position in the page they were fetched
// from, the hash of the URL keeps keys unique across refreshes
func photoKey(position int, url string) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint32(key, uint32(position))
	h := mmh3.New32()
	h.Write([]byte(url))
	copy(key[4:], h.Sum(nil))
	return key
}

func coordinateKey(c geo.Coordinate) []byte {
	key := make([]byte, 16)
	binary.BigEndian.PutUint64(key, math.Float64bits(positiveZero(c.Lat)))
	binary.BigEndian.PutUint64(key[8:], math.Float64bits(positiveZero(c.Lon)))
	return key
}

// positiveZero maps -0 to 0, both compare equal
func positiveZero(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}

// View runs f in a read-only transaction on the underlying database
func (store *BoltStore) View(f func(*bolt.Tx) error) error {
	return store.db.View(f)
}

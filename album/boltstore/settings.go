package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/Aanu1995/Virtual-Tourist/album"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/Aanu1995/Virtual-Tourist/region"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// schemaVersion is increased whenever the layout of the album buckets changes
const schemaVersion = uint32(1)

var (
	settingsBucket = []byte("settings")
	regionKey      = []byte("region")
	versionKey     = []byte("schemaVersion")
)

// migrate drops the cached albums written with an older layout. Pins and
// settings are kept, albums are fetched again on next view.
func migrate(ctx context.Context, db *bolt.DB) error {
	log, _ := logging.SubFrom(ctx, "boltMigration")
	return db.Update(func(tx *bolt.Tx) error {
		settings, err := tx.CreateBucketIfNotExists(settingsBucket)
		if err != nil {
			return err
		}
		var version uint32
		if v := settings.Get(versionKey); len(v) == 4 {
			version = binary.BigEndian.Uint32(v)
		} else if tx.Bucket(pinsBucket) == nil {
			// new database
			version = schemaVersion
		}
		if version < schemaVersion {
			log.Info("Resetting cached albums", zap.Uint32("from", version), zap.Uint32("to", schemaVersion))
			for _, b := range [][]byte{photosBucket, imagesBucket} {
				if tx.Bucket(b) == nil {
					continue
				}
				if err := tx.DeleteBucket(b); err != nil {
					return err
				}
				log.Info("Deleted old bucket", zap.ByteString("bucket", b))
			}
			if err := resetLastPages(tx); err != nil {
				return err
			}
		}
		v := make([]byte, 4)
		binary.BigEndian.PutUint32(v, schemaVersion)
		return settings.Put(versionKey, v)
	})
}

func resetLastPages(tx *bolt.Tx) error {
	pins := tx.Bucket(pinsBucket)
	if pins == nil {
		return nil
	}
	var ids [][]byte
	if err := pins.ForEach(func(k, _ []byte) error {
		ids = append(ids, bytes.Clone(k))
		return nil
	}); err != nil {
		return err
	}
	for _, id := range ids {
		pin, err := getPin(tx, album.PinID(id))
		if err != nil {
			return err
		}
		pin.LastPage.Page, pin.LastPage.Pages = 0, 0
		if err := putJSON(pins, id, pin); err != nil {
			return err
		}
	}
	return nil
}

// Region returns the single-entry slot holding the persisted map region
func (store *BoltStore) Region() region.Slot {
	return regionSlot{db: store.db}
}

type regionSlot struct {
	db *bolt.DB
}

func (s regionSlot) Load(ctx context.Context) (data []byte, found bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(settingsBucket).Get(regionKey); v != nil {
			data, found = bytes.Clone(v), true
		}
		return nil
	})
	if err != nil {
		return nil, false, &album.StoreError{Op: "loadRegion", Err: err}
	}
	return
}

func (s regionSlot) Save(ctx context.Context, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put(regionKey, data)
	})
	if err != nil {
		return &album.StoreError{Op: "saveRegion", Err: err}
	}
	return nil
}

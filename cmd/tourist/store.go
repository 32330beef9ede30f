package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Aanu1995/Virtual-Tourist/album/boltstore"
	"github.com/Aanu1995/Virtual-Tourist/app"
	"github.com/Aanu1995/Virtual-Tourist/config"
	"github.com/Aanu1995/Virtual-Tourist/region"
	"github.com/urfave/cli"
	bolt "go.etcd.io/bbolt"
)

var pinsCommand = cli.Command{
	Name:   "pins",
	Usage:  "Lists the stored pins with the size of their album",
	Action: withStore(listPins),
}

var regionCommand = cli.Command{
	Name:   "region",
	Usage:  "Prints the persisted map region",
	Action: withStore(printRegion),
}

var bucketsCommand = cli.Command{
	Name:   "buckets",
	Usage:  "Lists the buckets of the database with their number of entries",
	Action: withStore(listBuckets),
}

type storeAction func(context.Context, *boltstore.BoltStore) error

func withStore(action storeAction) func(*cli.Context) error {
	return func(c *cli.Context) error {
		o := config.FromContext(c)
		ctx := context.Background()
		store, err := app.OpenStore(ctx, o.Dir)
		if err != nil {
			return err
		}
		defer store.Close()
		return action(ctx, store)
	}
}

func listPins(ctx context.Context, store *boltstore.BoltStore) error {
	pins, err := store.ListPins(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLAT\tLON\tPHOTOS\tPAGE\tCREATED")
	for _, p := range pins {
		photos, err := store.Photos(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%g\t%g\t%d\t%d/%d\t%s\n", p.ID, p.Coordinate.Lat, p.Coordinate.Lon,
			len(photos), p.LastPage.Page, p.LastPage.Pages, p.Created.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func printRegion(ctx context.Context, store *boltstore.BoltStore) error {
	r, found, err := region.NewPersister(store.Region()).Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(os.Stderr, "No region persisted yet")
		return nil
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func listBuckets(ctx context.Context, store *boltstore.BoltStore) error {
	return store.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			stats := b.Stats()
			fmt.Fprintf(os.Stdout, "%s\t%d keys\t%d nested buckets\n", name, stats.KeyN, stats.BucketN-1)
			return nil
		})
	})
}

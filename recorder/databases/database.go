package databases

import (
	"context"

	"github.com/the-mace/evtools/recorder/car"
)

// Database mirrors recorded snapshots into a time-series store.
type Database interface {
	Insert(ctx context.Context, carName string, snapshot car.Snapshot) error

	Close() error
}

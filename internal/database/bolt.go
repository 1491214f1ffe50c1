package database

import (
	"time"

	bolt "github.com/boltdb/bolt"
)

// OpenBolt opens (or creates) the embedded BoltDB file at path.
func OpenBolt(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MegaGrindStone/streamchat/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the Archive interface using a BoltDB backend. Every finalized interaction is
// stored as one JSON record, keyed so that iteration returns them in the order they were added.
type BoltDB struct {
	db *bolt.DB
}

var interactionsBucket = []byte("interactions")

// NewBoltDB opens (or creates, with 0600 permissions) the database at path and makes sure the
// interactions bucket exists. Opening fails after a second if another process holds the file.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(interactionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create interactions bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// AddInteraction stores an interaction and returns its stored ID, which is the interaction's own ID
// prefixed with a zero-padded sequence number.
func (b BoltDB) AddInteraction(_ context.Context, interaction models.Interaction) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(interactionsBucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s not found", interactionsBucket)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		// Zero padding keeps the byte order of keys equal to insertion order.
		newID = fmt.Sprintf("%020d-%s", seq, interaction.ID)
		interaction.ID = newID

		v, err := json.Marshal(interaction)
		if err != nil {
			return fmt.Errorf("failed to marshal interaction: %w", err)
		}

		return bucket.Put([]byte(newID), v)
	})

	return newID, err
}

// Interactions returns every stored interaction, oldest first. A limit greater than zero keeps only
// the most recent limit entries.
func (b BoltDB) Interactions(_ context.Context, limit int) ([]models.Interaction, error) {
	var interactions []models.Interaction
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(interactionsBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(_, v []byte) error {
			var interaction models.Interaction
			if err := json.Unmarshal(v, &interaction); err != nil {
				return fmt.Errorf("failed to unmarshal interaction: %w", err)
			}
			interactions = append(interactions, interaction)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(interactions) > limit {
		interactions = interactions[len(interactions)-limit:]
	}
	return interactions, nil
}

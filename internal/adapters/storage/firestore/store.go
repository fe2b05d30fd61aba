package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collection = "kv"

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (RYOKAI_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) entriesCol() *firestore.CollectionRef {
	return s.client.Collection(collection)
}

func (s *Store) entryDoc(key string) *firestore.DocumentRef {
	return s.entriesCol().Doc(key)
}

type entryDoc struct {
	Value     []byte    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	snap, err := s.entryDoc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("firestore Load %s: %w", key, err)
	}

	var doc entryDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, false, fmt.Errorf("firestore Load %s decode: %w", key, err)
	}
	return doc.Value, true, nil
}

func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	doc := entryDoc{
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := s.entryDoc(key).Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore Save %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.entryDoc(key).Delete(ctx); err != nil {
		return fmt.Errorf("firestore Delete %s: %w", key, err)
	}
	return nil
}

// Clear deletes every document of the collection.
func (s *Store) Clear(ctx context.Context) error {
	iter := s.entriesCol().Documents(ctx)
	defer iter.Stop()

	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return fmt.Errorf("firestore Clear: %w", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("firestore Clear %s: %w", snap.Ref.ID, err)
		}
	}
	return nil
}

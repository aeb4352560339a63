package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
)

// Document pairs a decoded payload with its Firestore identity.
type Document[T any] struct {
	ID         string
	Data       T
	UpdateTime time.Time
}

// BaseRepository binds one collection to a payload type T decoded with Firestore struct tags.
// Reads and writes that must be atomic go through Provider.RunTransaction with DocumentRef.
type BaseRepository[T any] struct {
	provider   *Provider
	collection string
}

// NewBaseRepository binds collection to T.
func NewBaseRepository[T any](provider *Provider, collection string) *BaseRepository[T] {
	return &BaseRepository[T]{provider: provider, collection: strings.TrimSpace(collection)}
}

// Set writes value under id outside any transaction.
func (r *BaseRepository[T]) Set(ctx context.Context, id string, value T, opts ...firestore.SetOption) error {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, value, opts...); err != nil {
		return WrapError(r.collection+".set", err)
	}
	return nil
}

// Get reads and decodes the document stored under id.
func (r *BaseRepository[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := r.DocumentRef(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snapshot, err := ref.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(r.collection+".get", err)
	}
	return r.Decode(ctx, snapshot)
}

// Decode converts a snapshot read elsewhere, typically inside a transaction.
func (r *BaseRepository[T]) Decode(_ context.Context, snapshot *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snapshot.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("%s: decode %s: %w", r.collection, snapshot.Ref.ID, err)
	}
	return Document[T]{ID: snapshot.Ref.ID, Data: data, UpdateTime: snapshot.UpdateTime}, nil
}

// Collection resolves the collection reference for cursor queries and subcollections.
func (r *BaseRepository[T]) Collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r.provider == nil || r.collection == "" {
		return nil, WrapError("firestore.collection", errors.New("firestore: repository is not bound to a collection"))
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection), nil
}

// DocumentRef resolves the reference for id without reading it.
func (r *BaseRepository[T]) DocumentRef(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(r.collection+".document", errors.New("firestore: document id is required"))
	}
	coll, err := r.Collection(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

package registry

import (
	"context"
	"fmt"
	"io"

	"github.com/bassista/go_refresh/internal/reader"
	"github.com/bassista/go_refresh/internal/repository"
)

type itemType[T any] struct {
	name string
}

func (t itemType[T]) Name() string {
	return t.name
}

func (t itemType[T]) NewStore() repository.Store {
	return repository.New[T](t.name)
}

func (t itemType[T]) Accepts(store repository.Store) bool {
	_, ok := store.(*repository.Repository[T])
	return ok
}

func (t itemType[T]) Open(src io.Reader, source string, opts reader.Options, onError reader.ErrorHandler) (Stream, error) {
	r, err := reader.NewCSV[T](src, source, opts, onError)
	if err != nil {
		return nil, err
	}
	return stream[T]{r: r}, nil
}

func (t itemType[T]) Append(store repository.Store, batch any) error {
	repo, ok := store.(*repository.Repository[T])
	if !ok {
		return fmt.Errorf("%w: store for %s has type %T", ErrTypeMismatch, t.name, store)
	}
	items, ok := batch.([]T)
	if !ok {
		return fmt.Errorf("%w: batch for %s has type %T", ErrTypeMismatch, t.name, batch)
	}
	repo.Add(items)
	return nil
}

type stream[T any] struct {
	r reader.BatchReader[T]
}

func (s stream[T]) EndOfStream() bool {
	return s.r.EndOfStream()
}

func (s stream[T]) ReadBatch(ctx context.Context, max int) (any, int, error) {
	batch, err := s.r.ReadBatch(ctx, max)
	if err != nil {
		return nil, 0, err
	}
	return batch, len(batch), nil
}

// Package loader streams source files into repositories.
//
// A load call selects descriptors by item type, orders them by type name and
// clears each target repository once, before the first batch for it is
// appended. A file that fails aborts only its own remaining batches.
package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"github.com/bassista/go_refresh/internal/logger"
	"github.com/bassista/go_refresh/internal/reader"
	"github.com/bassista/go_refresh/internal/registry"
	"github.com/bassista/go_refresh/internal/repository"
	"github.com/bassista/go_refresh/internal/telemetry"
)

// AllTypes selects every descriptor when passed to Load.
const AllTypes = "*"

const DefaultBatchSize = 1000

// FileDescriptor binds a source path to an item type and the store it fills.
type FileDescriptor struct {
	Path    string
	Type    registry.ItemType
	Store   repository.Store
	Options reader.Options
}

// DataLoadedFunc is called after every appended batch; items is a []T.
type DataLoadedFunc func(itemType string, items any)

// Loader loads a fixed set of descriptors.
type Loader struct {
	mu            *sync.Mutex
	fs            afero.Fs
	files         []FileDescriptor
	batchSize     int
	onDataLoaded  DataLoadedFunc
	onReaderError reader.ErrorHandler
	metrics       *telemetry.Metrics
}

// Option is a function that configures the loader
type Option func(*Loader)

// WithDataLoaded attaches a callback fired after every appended batch.
func WithDataLoaded(fn DataLoadedFunc) Option {
	return func(l *Loader) {
		l.onDataLoaded = fn
	}
}

// WithReaderError attaches a record-error consumer. Without one, a bad
// record aborts the load of its file.
func WithReaderError(fn reader.ErrorHandler) Option {
	return func(l *Loader) {
		l.onReaderError = fn
	}
}

// WithMetrics records loaded items, failures and repository sizes on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithLock serializes Load with every other loader sharing mu. Loaders built
// for successive configurations fill the same named repositories.
func WithLock(mu *sync.Mutex) Option {
	return func(l *Loader) {
		if mu != nil {
			l.mu = mu
		}
	}
}

// New creates a loader. batchSize <= 0 selects DefaultBatchSize.
func New(fs afero.Fs, files []FileDescriptor, batchSize int, opts ...Option) (*Loader, error) {
	if fs == nil {
		return nil, errors.New("filesystem is nil")
	}
	for i, fd := range files {
		if fd.Path == "" {
			return nil, fmt.Errorf("file descriptor %d: path is empty", i)
		}
		if fd.Type == nil || fd.Store == nil {
			return nil, fmt.Errorf("file descriptor %s: item type and store are required", fd.Path)
		}
		if !fd.Type.Accepts(fd.Store) {
			return nil, fmt.Errorf("file descriptor %s: %w", fd.Path, registry.ErrTypeMismatch)
		}
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	sorted := slices.Clone(files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Type.Name() < sorted[j].Type.Name()
	})

	l := &Loader{mu: &sync.Mutex{}, fs: fs, files: sorted, batchSize: batchSize}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Files returns the descriptors in load order.
func (l *Loader) Files() []FileDescriptor {
	return slices.Clone(l.files)
}

// Stores returns the distinct stores by item type name. When several
// stores share a type the first in load order wins.
func (l *Loader) Stores() map[string]repository.Store {
	out := make(map[string]repository.Store)
	for _, fd := range l.files {
		if _, ok := out[fd.Type.Name()]; !ok {
			out[fd.Type.Name()] = fd.Store
		}
	}
	return out
}

// Load reloads the descriptors whose item type is in types. An empty list
// or one containing AllTypes loads everything. Errors of individual files
// are joined; the other files still load. A call waits for any load in
// progress to finish before clearing.
func (l *Loader) Load(ctx context.Context, types []string) error {
	log := logger.WithComponent("loader")

	l.mu.Lock()
	defer l.mu.Unlock()

	selected := l.selectFiles(types)
	if len(selected) == 0 {
		log.Debugf("no file descriptors match types %v", types)
		return nil
	}

	cleared := make(map[repository.Store]bool, len(selected))
	touched := make(map[string]repository.Store, len(selected))
	var errs []error
	for _, fd := range selected {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if !cleared[fd.Store] {
			fd.Store.Clear()
			cleared[fd.Store] = true
			log.Debugf("cleared repository for %s", fd.Type.Name())
		}
		touched[fd.Type.Name()] = fd.Store

		n, err := l.loadFile(ctx, fd)
		if err != nil {
			l.metrics.RecordLoadFailure(fd.Type.Name())
			log.Errorf("load %s failed after %d items: %v", fd.Path, n, err)
			errs = append(errs, fmt.Errorf("load %s: %w", fd.Path, err))
			continue
		}
		log.Infof("loaded %d %s items from %s", n, fd.Type.Name(), fd.Path)
	}

	for itemType, store := range touched {
		l.metrics.SetRepositoryItems(itemType, store.Len())
	}
	return errors.Join(errs...)
}

func (l *Loader) selectFiles(types []string) []FileDescriptor {
	if len(types) == 0 || slices.Contains(types, AllTypes) {
		return l.files
	}
	out := make([]FileDescriptor, 0, len(l.files))
	for _, fd := range l.files {
		if slices.Contains(types, fd.Type.Name()) {
			out = append(out, fd)
		}
	}
	return out
}

func (l *Loader) loadFile(ctx context.Context, fd FileDescriptor) (int, error) {
	f, err := l.fs.Open(fd.Path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	stream, err := fd.Type.Open(f, fd.Path, fd.Options, l.onReaderError)
	if err != nil {
		return 0, err
	}

	total := 0
	for !stream.EndOfStream() {
		batch, n, err := stream.ReadBatch(ctx, l.batchSize)
		if err != nil {
			return total, err
		}
		if n == 0 {
			continue
		}
		if err := fd.Type.Append(fd.Store, batch); err != nil {
			return total, err
		}
		total += n
		l.metrics.RecordItemsLoaded(fd.Type.Name(), n)
		if l.onDataLoaded != nil {
			l.onDataLoaded(fd.Type.Name(), batch)
		}
	}
	return total, nil
}

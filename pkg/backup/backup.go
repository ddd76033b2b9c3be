package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

const (
	namePrefix = "snapshot-"
	nameSuffix = ".json"
	nameLayout = "20060102T150405.000000000Z"
)

var ErrInvalidName = errors.New("invalid snapshot name")

// Snapshot is the on-disk envelope around a list of items.
type Snapshot[T any] struct {
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Items     []T               `json:"items"`
}

type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Service writes and reads snapshots of T. Snapshot names embed a UTC
// timestamp, so lexical order is chronological order.
type Service[T any] struct {
	storage Storage
	version string
	now     func() time.Time
}

func NewService[T any](storage Storage, version string) *Service[T] {
	return &Service[T]{
		storage: storage,
		version: version,
		now:     time.Now,
	}
}

func (s *Service[T]) Create(ctx context.Context, items []T, metadata map[string]string) (string, error) {
	snap := Snapshot[T]{
		Version:   s.version,
		Timestamp: s.now().UTC(),
		Metadata:  metadata,
		Items:     items,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	name := namePrefix + snap.Timestamp.Format(nameLayout) + nameSuffix
	if err := s.storage.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return name, nil
}

func (s *Service[T]) Restore(ctx context.Context, name string) (*Snapshot[T], error) {
	if !IsSnapshotName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	reader, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer reader.Close()

	var snap Snapshot[T]
	if err := json.NewDecoder(reader).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	return &snap, nil
}

// List returns snapshot names oldest first.
func (s *Service[T]) List(ctx context.Context) ([]string, error) {
	names, err := s.storage.List(ctx, namePrefix)
	if err != nil {
		return nil, err
	}

	out := names[:0]
	for _, n := range names {
		if IsSnapshotName(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Latest returns the newest snapshot name, or "" when there is none.
func (s *Service[T]) Latest(ctx context.Context) (string, error) {
	names, err := s.List(ctx)
	if err != nil || len(names) == 0 {
		return "", err
	}
	return names[len(names)-1], nil
}

// Prune deletes all but the newest keep snapshots.
func (s *Service[T]) Prune(ctx context.Context, keep int) ([]string, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}

	stale := names[:len(names)-keep]
	for _, name := range stale {
		if err := s.storage.Delete(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to delete snapshot %s: %w", name, err)
		}
	}
	return stale, nil
}

func IsSnapshotName(name string) bool {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return false
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
	_, err := time.Parse(nameLayout, ts)
	return err == nil
}

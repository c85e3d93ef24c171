package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/justapithecus/lode/lode"

	storage "github.com/justapithecus/crease/lode"
)

// ObjectStore keeps artifacts in a Lode store (filesystem, memory, S3).
//
// Object stores have no rename, so publish is a two-step commit: the
// payload goes to a unique path under the artifact's prefix, then a small
// commit marker pointing at it is written. Only the marker makes an
// artifact visible.
type ObjectStore struct {
	store lode.Store
	now   func() time.Time
}

// NewObjectStore wraps a Lode store.
func NewObjectStore(store lode.Store) *ObjectStore {
	return &ObjectStore{store: store, now: time.Now}
}

type commitRecord struct {
	Payload     string    `json:"payload"`
	Size        int       `json:"size"`
	CommittedAt time.Time `json:"committed_at"`
}

func markerPath(name string) string {
	return name + "/" + commitMarker
}

// Exists reports whether name has a commit marker.
func (s *ObjectStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	ok, err := s.store.Exists(ctx, markerPath(name))
	if err != nil {
		return false, storage.Wrap(err, "exists", markerPath(name))
	}
	return ok, nil
}

// Open follows the commit marker to the payload.
func (s *ObjectStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	ok, err := s.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &NotFoundError{Name: name}
	}

	rec, err := s.readMarker(ctx, name)
	if err != nil {
		return nil, err
	}
	rc, err := s.store.Get(ctx, rec.Payload)
	if err != nil {
		return nil, storage.Wrap(err, "get", rec.Payload)
	}
	return rc, nil
}

func (s *ObjectStore) readMarker(ctx context.Context, name string) (*commitRecord, error) {
	rc, err := s.store.Get(ctx, markerPath(name))
	if err != nil {
		return nil, storage.Wrap(err, "get", markerPath(name))
	}
	defer func() { _ = rc.Close() }()

	var rec commitRecord
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode commit marker for %q: %w", name, err)
	}
	if rec.Payload == "" {
		return nil, fmt.Errorf("commit marker for %q has no payload", name)
	}
	return &rec, nil
}

// Write buffers produce's output, stores it at a fresh payload path, then
// writes the commit marker. A failure before the marker leaves name absent.
func (s *ObjectStore) Write(ctx context.Context, name string, produce Producer) error {
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, name)
	}

	var buf bytes.Buffer
	if err := produce(&buf); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := fmt.Sprintf("%s/%spayload-%s", name, stagingPrefix, uuid.NewString())
	size := buf.Len()
	if err := s.store.Put(ctx, payload, &buf); err != nil {
		s.discard(payload)
		return storage.Wrap(err, "put", payload)
	}

	marker, err := json.Marshal(commitRecord{
		Payload:     payload,
		Size:        size,
		CommittedAt: s.now().UTC(),
	})
	if err != nil {
		s.discard(payload)
		return fmt.Errorf("encode commit marker: %w", err)
	}
	if err := s.store.Put(ctx, markerPath(name), bytes.NewReader(marker)); err != nil {
		s.discard(payload)
		return storage.Wrap(err, "put", markerPath(name))
	}
	return nil
}

// discard removes an orphaned payload. Orphans are invisible without a
// marker, so failures here are ignored.
func (s *ObjectStore) discard(payload string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.store.Delete(ctx, payload)
}

package artifact

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/justapithecus/lode/lode"

	storage "github.com/justapithecus/crease/lode"
)

// flakyStore wraps a Lode store and fails Put for paths matching failOn.
type flakyStore struct {
	lode.Store
	failOn  string
	putErr  error
	deleted []string
}

func (s *flakyStore) Put(ctx context.Context, path string, r io.Reader) error {
	if strings.Contains(path, s.failOn) {
		return s.putErr
	}
	return s.Store.Put(ctx, path, r)
}

func (s *flakyStore) Delete(ctx context.Context, path string) error {
	s.deleted = append(s.deleted, path)
	return s.Store.Delete(ctx, path)
}

func TestObjectStore_MarkerFailureDiscardsPayload(t *testing.T) {
	inner := lode.NewMemory()
	flaky := &flakyStore{
		Store:  inner,
		failOn: commitMarker,
		putErr: errors.New("SlowDown: please reduce request rate"),
	}
	s := NewObjectStore(flaky)

	err := s.Write(t.Context(), "clean/goalies", func(w io.Writer) error {
		_, err := w.Write([]byte("rows"))
		return err
	})
	if err == nil {
		t.Fatal("expected marker write failure")
	}
	if !errors.Is(err, storage.ErrThrottled) {
		t.Errorf("expected throttled classification, got %v", err)
	}

	ok, err := s.Exists(t.Context(), "clean/goalies")
	if err != nil || ok {
		t.Fatalf("Exists = %v, %v; want false, nil", ok, err)
	}
	if len(flaky.deleted) != 1 || !strings.HasPrefix(flaky.deleted[0], "clean/goalies/"+stagingPrefix) {
		t.Errorf("expected orphan payload delete, got %v", flaky.deleted)
	}
}

func TestObjectStore_PayloadAtUniquePath(t *testing.T) {
	inner := lode.NewMemory()
	s := NewObjectStore(inner)

	if err := s.Write(t.Context(), "raw/teams", func(w io.Writer) error {
		_, err := w.Write([]byte("{}"))
		return err
	}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	paths, err := inner.List(t.Context(), "raw/teams/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var markers, payloads int
	for _, p := range paths {
		switch {
		case strings.HasSuffix(p, "/"+commitMarker):
			markers++
		case strings.Contains(p, stagingPrefix+"payload-"):
			payloads++
		}
	}
	if markers != 1 || payloads != 1 {
		t.Errorf("paths = %v, want one marker and one payload", paths)
	}

	rc, err := s.Open(t.Context(), "raw/teams")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = rc.Close() }()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(rc)
	if buf.String() != "{}" {
		t.Errorf("payload = %q", buf.String())
	}
}

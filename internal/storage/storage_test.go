package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/teilehaus/serviceportal/pkg/errors"
)

func TestNewKey(t *testing.T) {
	now := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		suffix string
	}{
		{"Rechnung 42.pdf", "-Rechnung_42.pdf"},
		{`C:\Users\kd\foto.jpg`, "-foto.jpg"},
		{"../../etc/passwd", "-passwd"},
		{"...", "-file"},
	}
	for _, tt := range tests {
		key := NewKey(tt.name, now)
		if !strings.HasPrefix(key, "attachments/2024/03/") {
			t.Errorf("%q: unexpected prefix in %s", tt.name, key)
		}
		if !strings.HasSuffix(key, tt.suffix) {
			t.Errorf("%q: expected suffix %s in %s", tt.name, tt.suffix, key)
		}
		if _, err := CleanKey(key); err != nil {
			t.Errorf("%q: generated key rejected: %v", tt.name, err)
		}
	}
	if NewKey("a.pdf", now) == NewKey("a.pdf", now) {
		t.Fatal("keys must be unique")
	}
}

func TestCleanKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "..", "../x", "a/../../x", "a//b", "./a"} {
		if _, err := CleanKey(key); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
	if got, err := CleanKey("/attachments/a.pdf"); err != nil || got != "attachments/a.pdf" {
		t.Fatalf("unexpected %q, %v", got, err)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := "attachments/2024/03/x-scan.pdf"
	body := "%PDF-1.4 diagnose"
	if err := s.Put(ctx, key, strings.NewReader(body), int64(len(body)), "application/pdf"); err != nil {
		t.Fatal(err)
	}

	obj, err := s.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(obj.Body)
	obj.Body.Close()
	if string(data) != body || obj.Size != int64(len(body)) {
		t.Fatalf("unexpected object %q size %d", data, obj.Size)
	}
	if obj.ContentType != "application/pdf" {
		t.Fatalf("unexpected content type %s", obj.ContentType)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, key); err == nil {
		t.Fatal("deleted object still readable")
	} else if _, ok := err.(*errors.ErrNotFound); !ok {
		t.Fatalf("expected ErrNotFound, got %T", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing key must succeed: %v", err)
	}
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
)

func TestLocalStoragePutAndPresign(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "http://localhost:8080/files/")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	ctx := context.Background()

	key := "statements/u1/2026-01.csv"
	if err := s.Put(ctx, key, strings.NewReader("a,b\n"), "text/csv"); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, key))
	if err != nil || string(data) != "a,b\n" {
		t.Fatalf("unexpected file contents %q (%v)", data, err)
	}

	ok, err := s.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected object to exist: %v", err)
	}

	url, err := s.PresignGet(ctx, key, time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if url != "http://localhost:8080/files/statements/u1/2026-01.csv" {
		t.Fatalf("unexpected url %s", url)
	}
}

func TestLocalStorageKeepsKeysInsideBase(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewLocalStorage(filepath.Join(dir, "base"), "http://x")
	if err := s.Put(context.Background(), "../../escape.csv", strings.NewReader("x"), "text/csv"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.csv")); !os.IsNotExist(err) {
		t.Fatal("key escaped the base directory")
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&smithy.GenericAPIError{Code: "NotFound"}) {
		t.Fatal("expected NotFound to be recognised")
	}
	if isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}) {
		t.Fatal("AccessDenied is not a missing object")
	}
	if isNotFound(errors.New("boom")) {
		t.Fatal("plain errors are not API errors")
	}
}

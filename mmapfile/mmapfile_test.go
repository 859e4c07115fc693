package mmapfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func withTempDir(t *testing.T, fn func(dir string)) {
	dir, err := os.MkdirTemp("", "mmapfile-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	fn(dir)
}

func TestOpenCreatesParentDirs(t *testing.T) {
	withTempDir(t, func(dir string) {
		path := filepath.Join(dir, "nested", "deeper", "col.f64")

		f, err := Open(path, 64)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		if f.Size() < 64 {
			t.Fatalf("expected size >= 64, got %d", f.Size())
		}
	})
}

func TestWriteReadRoundTrip(t *testing.T) {
	withTempDir(t, func(dir string) {
		path := filepath.Join(dir, "col.i64")

		f, err := Open(path, 16)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		copy(f.Data(), []byte("hello world"))

		if err := f.Sync(); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(f.Data()[:11], []byte("hello world")) {
			t.Fatalf("data mismatch: %q", f.Data()[:11])
		}
	})
}

func TestGrowPreservesData(t *testing.T) {
	withTempDir(t, func(dir string) {
		path := filepath.Join(dir, "col.i64")

		f, err := Open(path, 16)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		copy(f.Data(), []byte("preserve-me"))

		if err := f.Grow(1024); err != nil {
			t.Fatal(err)
		}

		if f.Size() < 1024 {
			t.Fatalf("expected grown size >= 1024, got %d", f.Size())
		}

		if !bytes.Equal(f.Data()[:11], []byte("preserve-me")) {
			t.Fatalf("data lost across grow: %q", f.Data()[:11])
		}
	})
}

func TestOpenExistingResumesFile(t *testing.T) {
	withTempDir(t, func(dir string) {
		path := filepath.Join(dir, "col.i64")

		f, err := Open(path, 16)
		if err != nil {
			t.Fatal(err)
		}
		copy(f.Data(), []byte("resumed"))
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}

		f2, err := OpenExisting(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f2.Close()

		if !bytes.Equal(f2.Data()[:7], []byte("resumed")) {
			t.Fatalf("data mismatch on reopen: %q", f2.Data()[:7])
		}
	})
}

func TestTruncateSeals(t *testing.T) {
	withTempDir(t, func(dir string) {
		path := filepath.Join(dir, "col.i64")

		f, err := Open(path, 1024)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		if err := f.Truncate(8); err != nil {
			t.Fatal(err)
		}

		if f.Size() != 8 {
			t.Fatalf("expected sealed size 8, got %d", f.Size())
		}
	})
}

package files

import (
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestSaveAndOpenOrderFile(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	fileID, err := s.SaveOrderFile(123456789, "draft.docx", strings.NewReader("contents"))
	if err != nil {
		t.Fatal(err)
	}
	if fileID == "" {
		t.Fatal("expected a file id")
	}

	rc, name, err := s.Open(fileID)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	if name != "draft.docx" {
		t.Fatalf("expected original name, got %q", name)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "contents" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestSaveSupportFile(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	fileID, err := s.SaveSupportFile(42, "invoice.pdf", strings.NewReader("pdf"))
	if err != nil {
		t.Fatal(err)
	}

	path, name, err := s.Find(fileID)
	if err != nil {
		t.Fatal(err)
	}
	if path == "" || name != "invoice.pdf" {
		t.Fatalf("unexpected find result: %q %q", path, name)
	}
}

func TestFindMissing(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Find("01ARZ3NDEKTSV4RRFFQ69G5FAV"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUniqueFileIDs(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	a, err := s.SaveOrderFile(1, "a.txt", strings.NewReader("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.SaveOrderFile(1, "a.txt", strings.NewReader("b"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("file ids must be unique for identical names")
	}
}

func TestConcurrentSaves(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	const workers = 8
	const perWorker = 25

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := s.SaveOrderFile(int64(w+1), "doc.txt", strings.NewReader("x"))
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate file id %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d distinct ids, got %d", workers*perWorker, len(seen))
	}
}

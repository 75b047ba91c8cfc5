package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestURL_AbsoluteAndRelative(t *testing.T) {
	tmpDir := t.TempDir()

	c, err := NewLocalStorage(tmpDir, "/files", "http://example.com:8060")
	if err != nil {
		t.Fatalf("failed create storage: %v", err)
	}

	got, _ := c.URL(context.Background(), "a.xlsx")
	want := "http://example.com:8060/files/a.xlsx"
	if got != want {
		t.Fatalf("expected %s; got %s", want, got)
	}

	c2, _ := NewLocalStorage(tmpDir, "files/", "")
	if got2, _ := c2.URL(context.Background(), "b.xlsx"); got2 != "/files/b.xlsx" {
		t.Fatalf("expected /files/b.xlsx; got %s", got2)
	}
}

func TestSaveAndServeFileHandler(t *testing.T) {
	tmpDir := t.TempDir()
	c, err := NewLocalStorage(tmpDir, "/files", "")
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}

	content := []byte("hello world")
	saved, err := c.Save(context.Background(), "historico 1.xlsx", content)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if OriginalName(saved) != "historico 1.xlsx" {
		t.Fatalf("unexpected stored name %s", saved)
	}

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, ok := c.Path(strings.TrimPrefix(r.URL.Path, "/files/"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=\""+OriginalName(filepath.Base(path))+"\"")
		http.ServeFile(w, r, path)
	})

	ts := httptest.NewServer(h)
	defer ts.Close()

	link, _ := c.URL(context.Background(), saved)
	resp, err := http.Get(ts.URL + link)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("bad status: %d", resp.StatusCode)
	}

	cd := resp.Header.Get("Content-Disposition")
	if !strings.Contains(cd, "historico 1.xlsx") {
		t.Fatalf("expected Content-Disposition with original filename, got %s", cd)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(content) {
		t.Fatalf("content mismatch: %s", string(body))
	}
}

func TestSave_StripsDirectories(t *testing.T) {
	c, _ := NewLocalStorage(t.TempDir(), "/files", "")

	saved, err := c.Save(context.Background(), "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if strings.Contains(saved, "/") || OriginalName(saved) != "passwd" {
		t.Fatalf("expected base name only, got %s", saved)
	}
}

func TestPath_RejectsTraversal(t *testing.T) {
	c, _ := NewLocalStorage(t.TempDir(), "/files", "")

	for _, name := range []string{"", "../x", "a/b", ".hidden"} {
		if _, ok := c.Path(name); ok {
			t.Errorf("expected %q to be rejected", name)
		}
	}
	if _, ok := c.Path("abc_file.xlsx"); !ok {
		t.Error("expected plain name to be accepted")
	}
}

func TestCleanupOlderThan(t *testing.T) {
	c, _ := NewLocalStorage(t.TempDir(), "/files", "")

	oldName, _ := c.Save(context.Background(), "old.xlsx", []byte("old"))
	newName, _ := c.Save(context.Background(), "new.xlsx", []byte("new"))

	oldPath := filepath.Join(c.BaseDir, oldName)
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := c.CleanupOlderThan(24 * time.Hour); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Errorf("expected old file removed")
	}
	if _, err := os.Stat(filepath.Join(c.BaseDir, newName)); err != nil {
		t.Errorf("expected new file kept: %v", err)
	}
}

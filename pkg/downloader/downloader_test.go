package downloader

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/debridui/debridui/pkg/debrid/types"
)

func waitForState(t *testing.T, dl *Downloader, id string, want State) Snapshot {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			snap, _ := dl.Get(id)
			t.Fatalf("download never reached %s: %+v", want, snap)
		case <-time.After(50 * time.Millisecond):
			snap, ok := dl.Get(id)
			if !ok {
				t.Fatalf("download %s disappeared", id)
			}
			if snap.State == want {
				return snap
			}
			if snap.State == StateFailed && want != StateFailed {
				t.Fatalf("download failed: %s", snap.Error)
			}
		}
	}
}

func TestAddDownloadsFile(t *testing.T) {
	content := []byte("some file content for the queue")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(content)))
		_, _ = w.Write(content)
	}))
	defer server.Close()

	folder := t.TempDir()
	dl, err := New(folder, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	id, err := dl.Add(&types.DownloadLink{
		Filename:     "payload.bin",
		DownloadLink: server.URL + "/payload.bin",
		Size:         int64(len(content)),
		Generated:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	snap := waitForState(t, dl, id, StateCompleted)
	if snap.Progress != 100 {
		t.Errorf("progress = %f, want 100", snap.Progress)
	}

	data, err := os.ReadFile(filepath.Join(folder, "payload.bin"))
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("downloaded content mismatch")
	}
}

func TestAddRejectsEmptyLink(t *testing.T) {
	dl, err := New(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := dl.Add(&types.DownloadLink{}); err == nil {
		t.Fatal("expected an error for an empty link")
	}
}

func TestFailedDownloadKeepsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	dl, err := New(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := dl.Add(&types.DownloadLink{Filename: "x.bin", DownloadLink: server.URL + "/x.bin"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	snap := waitForState(t, dl, id, StateFailed)
	if snap.Error == "" {
		t.Error("failed download has no error message")
	}
}

func TestRemoveActiveDownloadRefused(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	dl, err := New(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := dl.Add(&types.DownloadLink{Filename: "slow.bin", DownloadLink: server.URL + "/slow.bin"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	waitForState(t, dl, id, StateDownloading)

	if err := dl.Remove(id); err == nil {
		t.Error("Remove accepted an active download")
	}
	if err := dl.Cancel(id); err != nil {
		t.Errorf("Cancel: %v", err)
	}
	waitForState(t, dl, id, StateCancelled)
	if err := dl.Remove(id); err != nil {
		t.Errorf("Remove after cancel: %v", err)
	}
	if _, ok := dl.Get(id); ok {
		t.Error("download still listed after Remove")
	}
}

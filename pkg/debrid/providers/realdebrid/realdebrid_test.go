package realdebrid

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/pkg/debrid/types"
)

func newTestClient(t *testing.T, handler http.Handler) *RealDebrid {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	rd, err := New(config.Debrid{Name: "rd-test", Provider: "realdebrid", APIKey: "key", RateLimit: "1000/second"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rd.host = server.URL
	rd.isFolderLink = func(ctx context.Context, link string) bool { return false }
	return rd
}

func TestBuildFileTree(t *testing.T) {
	info := torrentInfo{
		Id: "T1",
		Files: []struct {
			ID       int    `json:"id"`
			Path     string `json:"path"`
			Bytes    int64  `json:"bytes"`
			Selected int    `json:"selected"`
		}{
			{ID: 1, Path: "/S1/e1.mkv", Bytes: 100, Selected: 1},
			{ID: 2, Path: "/S1/e2.mkv", Bytes: 200, Selected: 1},
			{ID: 3, Path: "/f.txt", Bytes: 5, Selected: 1},
		},
		Links: []string{"https://rd/l1", "https://rd/l2", "https://rd/l3"},
	}
	tree := buildFileTree(info)

	if len(tree) != 2 {
		t.Fatalf("got %d root nodes, want 2", len(tree))
	}
	folders := 0
	for _, node := range tree {
		if node.IsDir() {
			folders++
			if node.Name != "S1" {
				t.Errorf("folder name = %s, want S1", node.Name)
			}
			if len(node.Children) != 2 {
				t.Errorf("S1 has %d children, want 2", len(node.Children))
			}
			for _, child := range node.Children {
				if child.IsDir() {
					t.Errorf("unexpected nested folder %s", child.Name)
				}
			}
		} else if node.Name != "f.txt" || node.ID != "3" {
			t.Errorf("unexpected top-level file: %+v", node)
		}
	}
	if folders != 1 {
		t.Fatalf("got %d folder nodes, want exactly 1 (no duplicates)", folders)
	}
}

func TestBuildFileTreeZipsLinksOverSelectedOnly(t *testing.T) {
	info := torrentInfo{
		Files: []struct {
			ID       int    `json:"id"`
			Path     string `json:"path"`
			Bytes    int64  `json:"bytes"`
			Selected int    `json:"selected"`
		}{
			{ID: 1, Path: "/sample.mkv", Bytes: 10, Selected: 0},
			{ID: 2, Path: "/movie.mkv", Bytes: 100, Selected: 1},
		},
		Links: []string{"https://rd/only"},
	}
	tree := buildFileTree(info)
	if len(tree) != 1 {
		t.Fatalf("got %d nodes, want 1 (unselected files excluded)", len(tree))
	}
	if tree[0].Link != "https://rd/only" {
		t.Errorf("link = %s, want the first links entry", tree[0].Link)
	}
}

func TestGetStatusTotal(t *testing.T) {
	cases := map[string]types.TorrentStatus{
		"queued":                  types.StatusWaiting,
		"magnet_conversion":       types.StatusWaiting,
		"waiting_files_selection": types.StatusWaiting,
		"downloading":             types.StatusDownloading,
		"uploading":               types.StatusUploading,
		"compressing":             types.StatusProcessing,
		"downloaded":              types.StatusCompleted,
		"error":                   types.StatusFailed,
		"magnet_error":            types.StatusFailed,
		"virus":                   types.StatusFailed,
		"dead":                    types.StatusInactive,
		"some_future_status":      types.StatusUnknown,
		"":                        types.StatusUnknown,
	}
	rd := &RealDebrid{name: "realdebrid"}
	for input, want := range cases {
		if got := rd.getStatus(input); got != want {
			t.Errorf("getStatus(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestListTorrentsPageConversion(t *testing.T) {
	var gotPage, gotLimit string
	mux := http.NewServeMux()
	mux.HandleFunc("/torrents", func(w http.ResponseWriter, r *http.Request) {
		gotPage = r.URL.Query().Get("page")
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, `[{"id":"X","filename":"x.mkv","bytes":1,"status":"downloaded","progress":100,"added":"2025-01-02T10:00:00Z"}]`)
	})
	rd := newTestClient(t, mux)

	torrents, err := rd.ListTorrents(context.Background(), 100, 50)
	if err != nil {
		t.Fatalf("ListTorrents: %v", err)
	}
	if gotPage != "3" || gotLimit != "50" {
		t.Errorf("page=%s limit=%s, want page=3 limit=50", gotPage, gotLimit)
	}
	if len(torrents) != 1 || torrents[0].Status != types.StatusCompleted {
		t.Fatalf("unexpected torrents: %+v", torrents)
	}
}

func TestGetTorrentMissingReturnsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/torrents/info/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"unknown_ressource","error_code":7}`)
	})
	rd := newTestClient(t, mux)

	torrent, err := rd.GetTorrent(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetTorrent: %v", err)
	}
	if torrent != nil {
		t.Fatalf("torrent = %+v, want nil", torrent)
	}
}

func TestAuthErrorCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad_token","error_code":8}`)
	})
	rd := newTestClient(t, mux)

	_, err := rd.Profile(context.Background())
	if !types.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
}

func TestRestartTorrentsUnsupported(t *testing.T) {
	rd := &RealDebrid{name: "realdebrid"}
	results := rd.RestartTorrents(context.Background(), []string{"a", "b"})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for id, status := range results {
		if status.Success {
			t.Errorf("restart of %s reported success", id)
		}
		if status.Message == "" {
			t.Errorf("restart of %s has no message", id)
		}
	}
}

func TestAddMagnetsSelectsFiles(t *testing.T) {
	selected := false
	mux := http.NewServeMux()
	mux.HandleFunc("/torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.FormValue("magnet") == "" {
			t.Error("addMagnet called without magnet form value")
		}
		fmt.Fprint(w, `{"id":"NEW1","uri":"/torrents/info/NEW1"}`)
	})
	mux.HandleFunc("/torrents/selectFiles/NEW1", func(w http.ResponseWriter, r *http.Request) {
		selected = true
		w.WriteHeader(http.StatusNoContent)
	})
	rd := newTestClient(t, mux)

	results := rd.AddMagnets(context.Background(), []string{"magnet:?xt=urn:btih:abc"})
	status := results["magnet:?xt=urn:btih:abc"]
	if status == nil || !status.Success || status.Id != "NEW1" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !selected {
		t.Error("selectFiles was not called after addMagnet")
	}
}

func TestGetDownloadLinkExpandsFolderLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unrestrict/folder", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `["https://host/file1","https://host/file2"]`)
	})
	mux.HandleFunc("/unrestrict/link", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.FormValue("link"); got != "https://host/file1" {
			t.Errorf("unrestricted link = %s, want first folder member", got)
		}
		fmt.Fprint(w, `{"id":"DL1","filename":"file1.mkv","filesize":100,"link":"https://host/file1","download":"https://rd/dl/file1"}`)
	})
	rd := newTestClient(t, mux)
	rd.isFolderLink = func(ctx context.Context, link string) bool { return true }

	link, err := rd.GetDownloadLink(context.Background(), &types.FileNode{Name: "f", ID: "1", Link: "https://host/folder/x"}, false)
	if err != nil {
		t.Fatalf("GetDownloadLink: %v", err)
	}
	if link.DownloadLink != "https://rd/dl/file1" {
		t.Errorf("download link = %s", link.DownloadLink)
	}
}

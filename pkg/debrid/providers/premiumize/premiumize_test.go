package premiumize

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/pkg/debrid/types"
)

func newTestClient(t *testing.T, apiKey string, handler http.Handler) *Premiumize {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	p, err := New(config.Debrid{Name: "pm-test", Provider: "premiumize", APIKey: apiKey, RateLimit: "1000/second"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.host = server.URL
	return p
}

func listingMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/transfer/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","transfers":[
			{"id":"t1","name":"running.mkv","status":"running","progress":0.5,"src":"magnet:?xt=urn:btih:abc"},
			{"id":"t2","name":"done.mkv","status":"finished","progress":1,"src":"magnet:?xt=urn:btih:def","file_id":"i1"}
		]}`)
	})
	mux.HandleFunc("/item/listall", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","files":[
			{"id":"i1","name":"done.mkv","size":100,"created_at":1700000000},
			{"id":"i2","name":"old.mkv","size":200,"created_at":1600000000}
		]}`)
	})
	return mux
}

func TestListTorrentsConcatenatesAndSlices(t *testing.T) {
	p := newTestClient(t, "key", listingMux(t))

	all, err := p.ListTorrents(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("ListTorrents: %v", err)
	}
	// Two transfers plus one stored item; the i1 item is claimed by the
	// finished transfer and must not appear twice.
	if len(all) != 3 {
		t.Fatalf("got %d torrents, want 3", len(all))
	}
	if all[0].Id != "t1" || all[0].Status != types.StatusDownloading || all[0].Progress != 50 {
		t.Errorf("unexpected first entry: %+v", all[0])
	}
	if all[2].Id != "i2" || all[2].Status != types.StatusCompleted {
		t.Errorf("unexpected stored item entry: %+v", all[2])
	}

	page, err := p.ListTorrents(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("ListTorrents: %v", err)
	}
	if len(page) != 1 || page[0].Id != "t2" {
		t.Errorf("client-side slice = %+v, want [t2]", page)
	}
}

func TestGetTorrentMissingReturnsNil(t *testing.T) {
	p := newTestClient(t, "key", listingMux(t))

	torrent, err := p.GetTorrent(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetTorrent: %v", err)
	}
	if torrent != nil {
		t.Fatalf("torrent = %+v, want nil", torrent)
	}
}

func TestAPIKeyAuthUsesQueryParam(t *testing.T) {
	var gotKey, gotHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("/account/info", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		gotHeader = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"status":"success","customer_id":1,"premium_until":9999999999}`)
	})
	p := newTestClient(t, "plainkey", mux)

	if _, err := p.Profile(context.Background()); err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if gotKey != "plainkey" {
		t.Errorf("apikey param = %q, want plainkey", gotKey)
	}
	if gotHeader != "" {
		t.Errorf("unexpected Authorization header %q", gotHeader)
	}
}

func TestBearerAuthUsesHeader(t *testing.T) {
	var gotKey, gotHeader string
	mux := http.NewServeMux()
	mux.HandleFunc("/account/info", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		gotHeader = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"status":"success","customer_id":1,"premium_until":9999999999}`)
	})
	p := newTestClient(t, "Bearer oauth-token", mux)

	if _, err := p.Profile(context.Background()); err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if gotHeader != "Bearer oauth-token" {
		t.Errorf("Authorization header = %q", gotHeader)
	}
	if gotKey != "" {
		t.Errorf("unexpected apikey param %q", gotKey)
	}
}

func TestGetDownloadLinkFallsBackToDirectDL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/item/details", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","message":"item not found"}`)
	})
	mux.HandleFunc("/transfer/directdl", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.FormValue("src") == "" {
			t.Error("directdl called without src")
		}
		fmt.Fprint(w, `{"status":"success","content":[{"path":"movie.mkv","size":100,"link":"https://pm/dl/movie.mkv"}]}`)
	})
	p := newTestClient(t, "key", mux)

	node := &types.FileNode{Name: "movie.mkv", ID: "gone", Link: "magnet:?xt=urn:btih:abc"}
	link, err := p.GetDownloadLink(context.Background(), node, false)
	if err != nil {
		t.Fatalf("GetDownloadLink: %v", err)
	}
	if link.DownloadLink != "https://pm/dl/movie.mkv" {
		t.Errorf("download link = %s", link.DownloadLink)
	}
}

func TestListWebDownloadsFiltersHTTPSources(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transfer/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","transfers":[
			{"id":"t1","name":"torrent","status":"running","progress":0.2,"src":"magnet:?xt=urn:btih:abc"},
			{"id":"t2","name":"file.zip","status":"finished","progress":1,"src":"https://example.com/file.zip"},
			{"id":"t3","name":"bad.zip","status":"error","message":"dead link","src":"http://example.com/bad.zip"}
		]}`)
	})
	p := newTestClient(t, "key", mux)

	downloads, err := p.ListWebDownloads(context.Background())
	if err != nil {
		t.Fatalf("ListWebDownloads: %v", err)
	}
	if len(downloads) != 2 {
		t.Fatalf("got %d web downloads, want 2 (magnet transfers excluded)", len(downloads))
	}
	if downloads[0].Id != "t2" || downloads[0].Status != types.WebDownloadCompleted {
		t.Errorf("unexpected first entry: %+v", downloads[0])
	}
	if downloads[1].Status != types.WebDownloadFailed || downloads[1].Error != "dead link" {
		t.Errorf("unexpected failed entry: %+v", downloads[1])
	}
}

func TestStatusMappingTotal(t *testing.T) {
	p := &Premiumize{name: "premiumize"}
	cases := map[string]types.TorrentStatus{
		"waiting":  types.StatusWaiting,
		"queued":   types.StatusWaiting,
		"running":  types.StatusDownloading,
		"finished": types.StatusCompleted,
		"seeding":  types.StatusSeeding,
		"error":    types.StatusFailed,
		"banned":   types.StatusFailed,
		"timeout":  types.StatusFailed,
		"deleted":  types.StatusInactive,
		"woah":     types.StatusUnknown,
		"":         types.StatusUnknown,
	}
	for input, want := range cases {
		if got := p.getTransferStatus(transfer{Status: input}); got != want {
			t.Errorf("getTransferStatus(%q) = %s, want %s", input, got, want)
		}
	}
}

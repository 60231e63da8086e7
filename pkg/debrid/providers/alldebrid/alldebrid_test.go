package alldebrid

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/debridui/debridui/internal/config"
	"github.com/debridui/debridui/pkg/debrid/types"
)

func newTestClient(t *testing.T, handler http.Handler) *AllDebrid {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	ad, err := New(config.Debrid{Name: "ad-test", Provider: "alldebrid", APIKey: "key", RateLimit: "1000/second"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ad.host = server.URL
	return ad
}

func TestListTorrentsLiveMode(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/magnet/status", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("session") == "" {
			t.Error("missing session parameter")
		}
		calls++
		switch calls {
		case 1:
			if got := r.FormValue("counter"); got != "0" {
				t.Errorf("first counter = %s, want 0", got)
			}
			fmt.Fprint(w, `{"status":"success","data":{"fullsync":true,"counter":1,"magnets":[
				{"id":1,"filename":"A","size":10,"statusCode":1,"status":"Downloading"},
				{"id":2,"filename":"B","size":20,"statusCode":4,"status":"Ready"}
			]}}`)
		default:
			if got := r.FormValue("counter"); got != "1" {
				t.Errorf("second counter = %s, want 1", got)
			}
			fmt.Fprint(w, `{"status":"success","data":{"counter":2,"magnets":[
				{"id":3,"filename":"C","size":30,"statusCode":0,"status":"In Queue"}
			]}}`)
		}
	})
	ad := newTestClient(t, mux)

	first, err := ad.ListTorrents(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("ListTorrents: %v", err)
	}
	if len(first) != 2 || first[0].Name != "A" || first[1].Status != types.StatusCompleted {
		t.Fatalf("unexpected first page: %+v", first)
	}

	second, err := ad.ListTorrents(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("ListTorrents: %v", err)
	}
	if len(second) != 3 {
		t.Fatalf("got %d torrents after diff, want 3", len(second))
	}
	// The new magnet is prepended.
	if second[0].Name != "C" || second[1].Name != "A" || second[2].Name != "B" {
		t.Errorf("order = [%s %s %s], want [C A B]", second[0].Name, second[1].Name, second[2].Name)
	}
}

func TestGetTorrentMissingReturnsNil(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/magnet/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","error":{"code":"MAGNET_INVALID_ID","message":"This magnet ID does not exist"}}`)
	})
	ad := newTestClient(t, mux)

	torrent, err := ad.GetTorrent(context.Background(), "404")
	if err != nil {
		t.Fatalf("GetTorrent: %v", err)
	}
	if torrent != nil {
		t.Fatalf("torrent = %+v, want nil", torrent)
	}
}

func TestAuthErrorClassification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","error":{"code":"AUTH_BAD_APIKEY","message":"The auth apikey is invalid"}}`)
	})
	ad := newTestClient(t, mux)

	_, err := ad.Profile(context.Background())
	if !types.IsAuthError(err) {
		t.Fatalf("err = %v, want auth error", err)
	}
}

func TestAddMagnetsPerItemResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/magnet/upload", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","data":{"magnets":[
			{"magnet":"magnet:?xt=urn:btih:aaa","id":11,"ready":true},
			{"magnet":"magnet:?xt=urn:btih:bbb","error":{"code":"MAGNET_INVALID_URI","message":"Magnet is not valid"}}
		]}}`)
	})
	ad := newTestClient(t, mux)

	results := ad.AddMagnets(context.Background(), []string{
		"magnet:?xt=urn:btih:aaa",
		"magnet:?xt=urn:btih:bbb",
	})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	ok := results["magnet:?xt=urn:btih:aaa"]
	if !ok.Success || ok.Id != "11" || !ok.IsCached {
		t.Errorf("unexpected success status: %+v", ok)
	}
	bad := results["magnet:?xt=urn:btih:bbb"]
	if bad.Success || bad.Message == "" {
		t.Errorf("unexpected failure status: %+v", bad)
	}
}

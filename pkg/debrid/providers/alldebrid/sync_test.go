package alldebrid

import (
	"reflect"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

func magnet(id int64, name string, statusCode int) Magnet {
	return Magnet{Id: id, Filename: strPtr(name), StatusCode: intPtr(statusCode)}
}

func TestApplySyncFullsync(t *testing.T) {
	state := newSyncState()
	state = applySync(state, magnetStatusData{
		Fullsync: true,
		Counter:  1,
		Magnets:  []Magnet{magnet(1, "A", 1), magnet(2, "B", 1), magnet(3, "C", 4)},
	})

	if got, want := state.order, []string{"1", "2", "3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if state.counter != 1 {
		t.Errorf("counter = %d, want 1", state.counter)
	}
	if len(state.magnets) != 3 {
		t.Errorf("magnets = %d entries, want 3", len(state.magnets))
	}
}

func TestApplySyncIncrementalMergesAndPrepends(t *testing.T) {
	state := newSyncState()
	old := magnet(2, "B", 1)
	old.Size = int64Ptr(1000)
	state = applySync(state, magnetStatusData{
		Fullsync: true,
		Counter:  1,
		Magnets:  []Magnet{magnet(1, "A", 1), old, magnet(3, "C", 4)},
	})

	// B changes status only; D is brand new.
	changedB := Magnet{Id: 2, StatusCode: intPtr(4), Downloaded: int64Ptr(1000)}
	state = applySync(state, magnetStatusData{
		Counter: 2,
		Magnets: []Magnet{changedB, magnet(4, "D", 0)},
	})

	if got, want := state.order, []string{"4", "1", "2", "3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if state.counter != 2 {
		t.Errorf("counter = %d, want 2", state.counter)
	}

	b := state.magnets["2"]
	if b.Filename == nil || *b.Filename != "B" {
		t.Errorf("B lost its filename in the merge: %+v", b)
	}
	if b.Size == nil || *b.Size != 1000 {
		t.Errorf("B lost its size in the merge: %+v", b)
	}
	if b.StatusCode == nil || *b.StatusCode != 4 {
		t.Errorf("B statusCode = %v, want 4", b.StatusCode)
	}
	if b.Downloaded == nil || *b.Downloaded != 1000 {
		t.Errorf("B downloaded = %v, want 1000", b.Downloaded)
	}
}

func TestApplySyncFullsyncReplacesState(t *testing.T) {
	state := newSyncState()
	state = applySync(state, magnetStatusData{
		Fullsync: true,
		Counter:  1,
		Magnets:  []Magnet{magnet(1, "A", 1), magnet(2, "B", 1)},
	})
	state = applySync(state, magnetStatusData{
		Fullsync: true,
		Counter:  5,
		Magnets:  []Magnet{magnet(9, "Z", 4)},
	})

	if got, want := state.order, []string{"9"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if _, stale := state.magnets["1"]; stale {
		t.Error("fullsync kept a stale magnet")
	}
}

func TestGetStatusTotal(t *testing.T) {
	for code := -2; code <= 20; code++ {
		status := getStatus(code)
		if status == "" {
			t.Errorf("status for code %d is empty", code)
		}
	}
	cases := map[int]string{
		0: "waiting", 1: "downloading", 2: "processing", 3: "uploading",
		4: "completed", 5: "failed", 7: "inactive", 99: "unknown",
	}
	for code, want := range cases {
		if got := string(getStatus(code)); got != want {
			t.Errorf("getStatus(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestToFileTree(t *testing.T) {
	files := []magnetFile{
		{
			Name: "Season 1",
			Entries: []magnetFile{
				{Name: "e1.mkv", Size: 100, Link: "https://host/l1"},
				{Name: "e2.mkv", Size: 200, Link: "https://host/l2"},
			},
		},
		{Name: "readme.txt", Size: 5, Link: "https://host/l3"},
	}
	tree := toFileTree(files, "")
	if len(tree) != 2 {
		t.Fatalf("got %d root nodes, want 2", len(tree))
	}
	folder := tree[0]
	if !folder.IsDir() || folder.Name != "Season 1" || len(folder.Children) != 2 {
		t.Fatalf("unexpected folder node: %+v", folder)
	}
	file := tree[1]
	if file.IsDir() || file.ID != "https://host/l3" {
		t.Fatalf("unexpected file node: %+v", file)
	}
	if folder.Children[0].Path != "/Season 1/e1.mkv" {
		t.Errorf("child path = %s", folder.Children[0].Path)
	}
}

package utils

import (
	"strings"
	"testing"
)

var testTorrent = []byte("d4:infod6:lengthi10e4:name4:test12:piece lengthi16384e6:pieces20:01234567890123456789ee")

func TestGetMagnetInfo(t *testing.T) {
	m, err := GetMagnetInfo("magnet:?xt=urn:btih:0123456789012345678901234567890123456789&dn=My+Show")
	if err != nil {
		t.Fatalf("GetMagnetInfo: %v", err)
	}
	if m.InfoHash != "0123456789012345678901234567890123456789" {
		t.Errorf("infohash = %s", m.InfoHash)
	}
	if m.Name != "My Show" {
		t.Errorf("name = %s", m.Name)
	}
}

func TestGetMagnetInfoEmpty(t *testing.T) {
	if _, err := GetMagnetInfo(""); err == nil {
		t.Fatal("expected an error for an empty link")
	}
}

func TestGetMagnetFromBytes(t *testing.T) {
	m, err := GetMagnetFromBytes(testTorrent)
	if err != nil {
		t.Fatalf("GetMagnetFromBytes: %v", err)
	}
	if m.Name != "test" {
		t.Errorf("name = %s, want test", m.Name)
	}
	if m.Size != 10 {
		t.Errorf("size = %d, want 10", m.Size)
	}
	if !m.IsTorrent() {
		t.Error("IsTorrent() = false for raw torrent bytes")
	}
	if len(m.InfoHash) != 40 {
		t.Errorf("infohash = %q, want 40 hex chars", m.InfoHash)
	}
}

func TestGetMagnetFromBytesGarbage(t *testing.T) {
	if _, err := GetMagnetFromBytes([]byte("<html>nope</html>")); err == nil {
		t.Fatal("expected an error for non-bencode bytes")
	}
}

func TestExtractInfoHash(t *testing.T) {
	hex := "0123456789abcdef0123456789abcdef01234567"
	cases := []struct {
		magnet string
		want   string
	}{
		{"magnet:?xt=urn:btih:" + hex + "&dn=x", hex},
		{"magnet:?xt=urn:btih:" + strings.ToUpper(hex), hex},
		// base32 of twenty 'a' bytes
		{"magnet:?xt=urn:btih:MFRGGZDFMZTWQ2LKNNWG23TPOBYXE43U&dn=x", "6162636465666768696a6b6c6d6e6f7071727374"},
		{"magnet:?dn=nohash", ""},
		{"magnet:?xt=urn:btih:tooshort", ""},
	}
	for _, tc := range cases {
		if got := ExtractInfoHash(tc.magnet); got != tc.want {
			t.Errorf("ExtractInfoHash(%q) = %q, want %q", tc.magnet, got, tc.want)
		}
	}
}

func TestConstructMagnet(t *testing.T) {
	m := ConstructMagnet("0123456789012345678901234567890123456789", " My Show ")
	if !strings.HasPrefix(m.Link, "magnet:?xt=urn:btih:0123456789012345678901234567890123456789") {
		t.Errorf("link = %s", m.Link)
	}
	if strings.Contains(m.Link, " ") {
		t.Errorf("link contains unescaped spaces: %s", m.Link)
	}
}

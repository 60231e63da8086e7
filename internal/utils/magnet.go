package utils

import (
	"bufio"
	"bytes"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
)

var hexRegex = regexp.MustCompile("^[0-9a-fA-F]{40}$")

type Magnet struct {
	Name     string `json:"name"`
	InfoHash string `json:"infoHash"`
	Size     int64  `json:"size"`
	Link     string `json:"link"`
	File     []byte `json:"-"`
}

// IsTorrent reports whether the magnet was built from raw .torrent bytes.
func (m *Magnet) IsTorrent() bool {
	return m.File != nil
}

// GetMagnetFromFile parses a .torrent or .magnet file into a Magnet.
func GetMagnetFromFile(file io.Reader, filePath string) (*Magnet, error) {
	if filepath.Ext(filePath) == ".torrent" {
		torrentData, err := io.ReadAll(file)
		if err != nil {
			return nil, err
		}
		m, err := GetMagnetFromBytes(torrentData)
		if err != nil {
			return nil, err
		}
		m.Name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
		return m, nil
	}
	// .magnet file: first non-empty line is the URI
	magnetLink := readMagnetFile(file)
	m, err := GetMagnetInfo(magnetLink)
	if err != nil {
		return nil, err
	}
	m.Name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	return m, nil
}

// GetMagnetFromBytes parses raw .torrent metainfo.
func GetMagnetFromBytes(torrentData []byte) (*Magnet, error) {
	mi, err := metainfo.Load(bytes.NewReader(torrentData))
	if err != nil {
		return nil, err
	}

	hash := mi.HashInfoBytes()
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return nil, err
	}
	magnetMeta := mi.Magnet(&hash, &info)
	return &Magnet{
		InfoHash: hash.HexString(),
		Name:     info.Name,
		Size:     info.Length,
		Link:     magnetMeta.String(),
		File:     torrentData,
	}, nil
}

func readMagnetFile(file io.Reader) string {
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		content := scanner.Text()
		if content != "" {
			return content
		}
	}
	return ""
}

// GetMagnetInfo parses a magnet URI.
func GetMagnetInfo(magnetLink string) (*Magnet, error) {
	if magnetLink == "" {
		return nil, fmt.Errorf("empty magnet link")
	}

	mi, err := metainfo.ParseMagnetUri(magnetLink)
	if err != nil {
		return nil, fmt.Errorf("error parsing magnet link: %w", err)
	}

	return &Magnet{
		InfoHash: mi.InfoHash.HexString(),
		Name:     mi.DisplayName,
		Size:     0,
		Link:     mi.String(),
	}, nil
}

// ExtractInfoHash pulls the btih hash out of a magnet URI, converting base32
// encodings to hex.
func ExtractInfoHash(magnetDesc string) string {
	const prefix = "xt=urn:btih:"
	start := strings.Index(magnetDesc, prefix)
	if start == -1 {
		return ""
	}
	start += len(prefix)
	var hash string
	end := strings.IndexAny(magnetDesc[start:], "&#")
	if end == -1 {
		hash = magnetDesc[start:]
	} else {
		hash = magnetDesc[start : start+end]
	}
	hash, _ = processInfoHash(hash)
	return hash
}

func processInfoHash(input string) (string, error) {
	if hexRegex.MatchString(input) {
		return strings.ToLower(input), nil
	}

	if len(input) == 32 {
		input = strings.ToUpper(strings.TrimRight(input, "="))
		decoded, err := base32.StdEncoding.DecodeString(input)
		if err == nil && len(decoded) == 20 {
			return hex.EncodeToString(decoded), nil
		}
	}

	return "", fmt.Errorf("invalid infohash: %s", input)
}

// ConstructMagnet builds a minimal magnet URI from an infohash and name.
func ConstructMagnet(infoHash, name string) *Magnet {
	name = url.QueryEscape(strings.TrimSpace(name))
	magnetUri := fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", infoHash, name)
	return &Magnet{
		InfoHash: infoHash,
		Name:     name,
		Link:     magnetUri,
	}
}

package realdebrid

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debridui/debridui/internal/request"
)

const patternTTL = 24 * time.Hour

// folderClassifier detects "folder links", single hoster links that unpack
// into multiple files. The provider publishes the patterns as JS-style
// regexes at hosts/regexFolder; they are fetched lazily and cached.
type folderClassifier struct {
	client *request.Client
	logger zerolog.Logger

	mu       sync.Mutex
	patterns []*regexp.Regexp
	fetched  time.Time
}

// fallbackPatterns cover the common folder hosts when the pattern endpoint
// is unreachable.
var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(www\.)?real-debrid\.com/folder/`),
	regexp.MustCompile(`^https?://(www\.)?mega\.nz/folder/`),
	regexp.MustCompile(`/folder/`),
}

func newFolderClassifier(client *request.Client, logger zerolog.Logger) *folderClassifier {
	return &folderClassifier{client: client, logger: logger}
}

func (c *folderClassifier) isFolder(ctx context.Context, link string) bool {
	for _, p := range c.getPatterns(ctx) {
		if p.MatchString(link) {
			return true
		}
	}
	return false
}

func (c *folderClassifier) getPatterns(ctx context.Context) []*regexp.Regexp {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.patterns != nil && time.Since(c.fetched) < patternTTL {
		return c.patterns
	}
	patterns, err := c.fetchPatterns(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("falling back to built-in folder patterns")
		patterns = fallbackPatterns
	}
	c.patterns = patterns
	c.fetched = time.Now()
	return c.patterns
}

func (c *folderClassifier) fetchPatterns(ctx context.Context) ([]*regexp.Regexp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.real-debrid.com/rest/1.0/hosts/regexFolder", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.client.MakeRequest(req)
	if err != nil {
		return nil, err
	}
	var raw []string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, expr := range raw {
		compiled, err := regexp.Compile(stripRegexDelimiters(expr))
		if err != nil {
			c.logger.Debug().Str("pattern", expr).Msg("skipping uncompilable folder pattern")
			continue
		}
		patterns = append(patterns, compiled)
	}
	return patterns, nil
}

// stripRegexDelimiters converts a JS-style "/expr/flags" literal into a bare
// expression.
func stripRegexDelimiters(expr string) string {
	if !strings.HasPrefix(expr, "/") {
		return expr
	}
	end := strings.LastIndex(expr, "/")
	if end <= 0 {
		return expr
	}
	return expr[1:end]
}

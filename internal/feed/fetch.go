package feed

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/jusunglee/hankyu-go/internal/models"
)

// Fetcher retrieves one timetable document by its relative resource path
type Fetcher interface {
	Fetch(ctx context.Context, resource string) ([]byte, error)
}

// Resource builds the locator for one line's table:
// <direction>/<line>_<variant>.json
func Resource(d models.Direction, l models.Line, v models.Variant) string {
	return path.Join(string(d), fmt.Sprintf("%s_%s.json", l, v))
}

// NewFetcher picks an HTTP fetcher for http(s) URLs and a directory fetcher
// for everything else
func NewFetcher(source string) (Fetcher, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("new fetcher: empty data source")
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewHTTPFetcher(source, nil), nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("new fetcher: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("new fetcher: %s is not a directory", source)
	}
	return NewFSFetcher(os.DirFS(source)), nil
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// HTTPFetcher reads documents relative to a base URL
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher rooted at baseURL. A nil client gets a
// client with a 30 second timeout.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{
			Timeout: 30 * time.Second,
		}
	}
	return &HTTPFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, resource string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/"+resource, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}

	return io.ReadAll(resp.Body)
}

// FSFetcher reads documents from a file system, usually os.DirFS of the
// data directory
type FSFetcher struct {
	fsys fs.FS
}

func NewFSFetcher(fsys fs.FS) *FSFetcher {
	return &FSFetcher{fsys: fsys}
}

func (f *FSFetcher) Fetch(ctx context.Context, resource string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.ReadFile(f.fsys, resource)
}

// Package media downloads event attachments into a local vault and
// resolves page links to their direct media URLs via Open Graph tags.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/marhthing/pipebot/internal/bus"
)

const (
	fetchTimeout = 30 * time.Second
	maxMediaSize = 64 << 20 // 64 MiB
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// FirstURL extracts the first http(s) link from a message body, or ""
// when there is none.
func FirstURL(text string) string {
	return urlPattern.FindString(text)
}

// Fetcher downloads attachments into dir. Zero value is not usable;
// construct with NewFetcher.
type Fetcher struct {
	dir    string
	client *http.Client
}

func NewFetcher(dir string) *Fetcher {
	return &Fetcher{
		dir:    dir,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch stores the event's attachment in the vault and returns the
// local path. When the attachment URL points at an HTML page instead of
// a media file, the page's Open Graph tags are consulted for the direct
// media URL first.
func (f *Fetcher) Fetch(ctx context.Context, evt *bus.InboundEvent) (string, error) {
	att := evt.Attachment
	if att == nil || att.URL == "" {
		return "", fmt.Errorf("event %s has no fetchable attachment", evt.ID)
	}

	url := att.URL
	if resolved, err := f.ResolvePage(ctx, url); err == nil && resolved != "" {
		url = resolved
	}

	resp, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create media vault: %w", err)
	}
	path := filepath.Join(f.dir, uuid.NewString()+extensionFor(att, resp))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(resp.Body, maxMediaSize)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	return path, nil
}

// ResolvePage fetches an HTML page and returns the media URL its Open
// Graph tags advertise (og:video, og:audio, then og:image). Returns ""
// for pages without media tags and for non-HTML responses.
func (f *Fetcher) ResolvePage(ctx context.Context, pageURL string) (string, error) {
	resp, err := f.get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", pageURL, err)
	}

	for _, prop := range []string{"og:video", "og:video:url", "og:audio", "og:image"} {
		sel := fmt.Sprintf(`meta[property=%q]`, prop)
		if content, ok := doc.Find(sel).First().Attr("content"); ok && content != "" {
			return content, nil
		}
	}
	return "", nil
}

func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func extensionFor(att *bus.Attachment, resp *http.Response) string {
	if att.FileName != "" {
		if ext := filepath.Ext(att.FileName); ext != "" {
			return ext
		}
	}
	switch {
	case strings.Contains(resp.Header.Get("Content-Type"), "image/jpeg"):
		return ".jpg"
	case strings.Contains(resp.Header.Get("Content-Type"), "image/png"):
		return ".png"
	case strings.Contains(resp.Header.Get("Content-Type"), "video/mp4"):
		return ".mp4"
	case strings.Contains(resp.Header.Get("Content-Type"), "audio/"):
		return ".ogg"
	default:
		return ".bin"
	}
}

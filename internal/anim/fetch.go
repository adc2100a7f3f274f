// Package anim turns a remote image listing (NOAA space-weather style
// directory pages) into a short video: scrape the anchors, download the
// frames, hand them to ffmpeg.
package anim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"sunbot/internal/log"
)

// Fetcher downloads listing pages and their frames. Per-frame failures are
// logged and skipped; the animation is attempted with whatever arrived.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with a bounded HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchAndAnimate downloads every image linked from listingURL into
// destDir and encodes them into destDir/outName. holdLast freezes the
// final frame for that duration. Returns the output path.
func (f *Fetcher) FetchAndAnimate(ctx context.Context, listingURL, destDir, outName string, framerate int, holdLast time.Duration) (string, error) {
	if !strings.HasSuffix(listingURL, "/") {
		listingURL += "/"
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	links, err := f.listImages(ctx, listingURL)
	if err != nil {
		return "", err
	}

	count := 0
	ext := ""
	for _, name := range links {
		if err := f.download(ctx, listingURL+name, filepath.Join(destDir, name)); err != nil {
			log.Error("frame download failed", err, "url", listingURL+name)
			continue
		}
		count++
		ext = strings.ToLower(path.Ext(name))
	}
	if count < 2 {
		return "", fmt.Errorf("anim: only %d frame(s) from %s, need at least 2", count, listingURL)
	}
	log.Info("frames downloaded", "url", listingURL, "count", count)

	return encode(ctx, destDir, ext, outName, framerate, holdLast)
}

// listImages fetches the listing page and returns the image hrefs in page
// order.
func (f *Fetcher) listImages(ctx context.Context, listingURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anim: listing %s: %s", listingURL, resp.Status)
	}

	links := imageLinks(resp.Body)
	if len(links) == 0 {
		return nil, errors.New("anim: listing has no image links")
	}
	return links, nil
}

// imageLinks extracts anchor hrefs pointing at gif/png/jpg files.
func imageLinks(r io.Reader) []string {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				switch strings.ToLower(path.Ext(attr.Val)) {
				case ".gif", ".png", ".jpg":
					links = append(links, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func (f *Fetcher) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(resp.Status)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

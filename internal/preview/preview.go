// Package preview finds a thumbnail image for a product page.
package preview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// maxBody bounds how much of a page is read while looking for the image.
const maxBody = 2 << 20

const userAgent = "Mozilla/5.0 (compatible; GiftboT/1.0; +https://github.com/Kerhoff/GiftboT)"

// Fetcher fetches product pages and extracts a preview image.
type Fetcher struct {
	client *http.Client
	logger *logrus.Logger
}

// NewFetcher creates a fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// FetchImage returns the absolute image URL advertised by the page, or ""
// when the page has none. A failed fetch is logged and reported as "".
func (f *Fetcher) FetchImage(ctx context.Context, pageURL string) string {
	image, err := f.fetch(ctx, pageURL)
	if err != nil {
		f.logger.WithField("url", pageURL).WithError(err).Debug("Preview image fetch failed")
		return ""
	}
	return image
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") {
		return "", fmt.Errorf("unsupported url %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	found := ExtractImage(io.LimitReader(resp.Body, maxBody))
	if found == "" {
		return "", nil
	}

	ref, err := url.Parse(found)
	if err != nil {
		return "", fmt.Errorf("invalid image url %q: %w", found, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// ExtractImage scans an HTML document for, in order of preference,
// og:image, twitter:image and <link rel="image_src">. Scanning stops at
// </head>.
func ExtractImage(r io.Reader) string {
	candidates := map[string]string{}
	z := html.NewTokenizer(r)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return pick(candidates)
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "head" {
				return pick(candidates)
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				continue
			}
			attrs := readAttrs(z)
			switch string(name) {
			case "meta":
				key := strings.ToLower(attrs["property"])
				if key == "" {
					key = strings.ToLower(attrs["name"])
				}
				if (key == "og:image" || key == "og:image:url" || key == "twitter:image") && attrs["content"] != "" {
					if _, seen := candidates[key]; !seen {
						candidates[key] = strings.TrimSpace(attrs["content"])
					}
				}
			case "link":
				if strings.EqualFold(attrs["rel"], "image_src") && attrs["href"] != "" {
					if _, seen := candidates["image_src"]; !seen {
						candidates["image_src"] = strings.TrimSpace(attrs["href"])
					}
				}
			}
		}
	}
}

func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := map[string]string{}
	for {
		key, val, more := z.TagAttr()
		attrs[strings.ToLower(string(key))] = string(val)
		if !more {
			return attrs
		}
	}
}

func pick(candidates map[string]string) string {
	for _, key := range []string{"og:image", "og:image:url", "twitter:image", "image_src"} {
		if v := candidates[key]; v != "" {
			return v
		}
	}
	return ""
}

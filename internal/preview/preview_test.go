package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func TestExtractImage(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og image",
			html: `<html><head><meta property="og:image" content="https://cdn.example/a.jpg"></head></html>`,
			want: "https://cdn.example/a.jpg",
		},
		{
			name: "og preferred over twitter",
			html: `<head><meta name="twitter:image" content="/t.png"><meta property="OG:IMAGE" content="/og.png"></head>`,
			want: "/og.png",
		},
		{
			name: "image_src fallback",
			html: `<head><link rel="image_src" href="/fallback.gif"/></head>`,
			want: "/fallback.gif",
		},
		{
			name: "stops at end of head",
			html: `<head><title>x</title></head><body><meta property="og:image" content="/late.jpg"></body>`,
			want: "",
		},
		{
			name: "empty content ignored",
			html: `<head><meta property="og:image" content=""><meta name="twitter:image" content="/t.png"></head>`,
			want: "/t.png",
		},
		{
			name: "not html",
			html: `{"image": "/x.png"}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractImage(strings.NewReader(tt.html)))
		})
	}
}

func TestFetchImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bike":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><meta property="og:image" content="/img/bike.jpg"></head></html>`))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	f := NewFetcher(100*time.Millisecond, logger)
	ctx := context.Background()

	assert.Equal(t, srv.URL+"/img/bike.jpg", f.FetchImage(ctx, srv.URL+"/bike"))
	assert.Empty(t, f.FetchImage(ctx, srv.URL+"/missing"))
	assert.Empty(t, f.FetchImage(ctx, srv.URL+"/slow"))
	assert.Empty(t, f.FetchImage(ctx, "ftp://example.com/file"))
}

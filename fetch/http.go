package fetch

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/langurmonkey/virtualtexture-tools/raster"
)

const DefaultRetries = 3

// HTTPImagery fetches tile images with GET requests built from a URL template.
// Placeholders: {level} {col} {row} {lon0} {lat0} {lon1} {lat1} {width} {height} {from} {to}.
// lon0/lat0 is the northwest corner of the tile, lon1/lat1 the southeast corner.
type HTTPImagery struct {
	Template string
	Client   *http.Client
	// Attempts per tile, at least one
	Retries int
}

// StatusError is a non-200 response
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status code %d for %s", e.Code, e.URL)
}

// URL fills in the template for req
func (h *HTTPImagery) URL(req Request) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	r := strings.NewReplacer(
		"{level}", strconv.Itoa(req.Tile.Level),
		"{col}", strconv.Itoa(req.Tile.Col),
		"{row}", strconv.Itoa(req.Tile.Row),
		"{lon0}", f(req.Extent.Lon0),
		"{lat0}", f(req.Extent.Lat0),
		"{lon1}", f(req.Extent.Lon1),
		"{lat1}", f(req.Extent.Lat1),
		"{width}", strconv.Itoa(req.Width),
		"{height}", strconv.Itoa(req.Height),
		"{from}", req.From.UTC().Format(DateLayout),
		"{to}", req.To.UTC().Format(DateLayout),
	)
	return r.Replace(h.Template)
}

func (h *HTTPImagery) Fetch(ctx context.Context, req Request) (image.Image, error) {
	url := h.URL(req)
	body, err := h.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return raster.Decode(body, url)
}

// get downloads url, retrying on transport errors, 429 and 5xx responses.
// Make sure to close the returned io.ReadCloser
func (h *HTTPImagery) get(ctx context.Context, url string) (io.ReadCloser, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	var lastErr error
	for i := 0; i < max(h.Retries, 1); i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}
		resp.Body.Close()
		lastErr = &StatusError{URL: url, Code: resp.StatusCode}
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			break
		}
	}
	return nil, lastErr
}

// Package photoservice is the client of the remote photo search API
package photoservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Aanu1995/Virtual-Tourist/domain/geo"
	"github.com/Aanu1995/Virtual-Tourist/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.flickr.com/services/rest"
	DefaultMethod  = "flickr.photos.search"
	PerPage        = 30

	userAgent = "VirtualTourist/1.0"
	maxImage  = 32 << 20
)

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photoservice_requests_total",
		Help: "Requests sent to the photo service by operation and outcome",
	}, []string{"op", "outcome"})
)

// Result is one photo of a search result page
type Result struct {
	ID  string `json:"id"`
	URL string `json:"url_s"`
}

// Page is one page of search results, photos in the order returned by the server
type Page struct {
	Page    int      `json:"page"`
	Pages   int      `json:"pages"`
	PerPage int      `json:"perpage"`
	Photos  []Result `json:"photo"`
}

func (p *Page) Info() PageInfo {
	return PageInfo{Page: p.Page, Pages: p.Pages}
}

type searchResponse struct {
	Photos  *Page  `json:"photos"`
	Stat    string `json:"stat"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Options configures a Client
type Options struct {
	BaseURL string
	Method  string
	APIKey  string
}

type Client struct {
	baseURL string
	method  string
	apiKey  string
	client  *http.Client
}

func NewClient(o Options) *Client {
	return NewClientWithHTTP(o, &http.Client{Timeout: 20 * time.Second})
}

func NewClientWithHTTP(o Options, client *http.Client) *Client {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Method == "" {
		o.Method = DefaultMethod
	}
	return &Client{
		baseURL: o.BaseURL,
		method:  o.Method,
		apiKey:  o.APIKey,
		client:  client,
	}
}

// SearchURL builds the search request for the given coordinate and page
func (c *Client) SearchURL(coord geo.Coordinate, page int) string {
	return fmt.Sprintf("%s?method=%s&nojsoncallback=1&api_key=%s&extras=url_s&per_page=%d&page=%d&format=json&lat=%s&lon=%s",
		c.baseURL,
		url.QueryEscape(c.method),
		url.QueryEscape(c.apiKey),
		PerPage,
		page,
		strconv.FormatFloat(coord.Lat, 'f', -1, 64),
		strconv.FormatFloat(coord.Lon, 'f', -1, 64))
}

// Search returns the given page of photos taken around coord
func (c *Client) Search(ctx context.Context, coord geo.Coordinate, page int) (*Page, error) {
	logger, ctx := logging.FromWithNameAndFields(ctx, "photoservice", zap.Object("coord", coord), zap.Int("page", page))
	target := c.SearchURL(coord, page)
	data, err := c.get(ctx, target)
	if err != nil {
		requests.WithLabelValues("search", "network").Inc()
		return nil, err
	}
	logger.Debug("search response", zap.Int("bytes", len(data)))
	var res searchResponse
	if err := json.Unmarshal(data, &res); err != nil {
		requests.WithLabelValues("search", "decode").Inc()
		return nil, &DecodeError{Err: err}
	}
	if res.Stat == "fail" {
		requests.WithLabelValues("search", "network").Inc()
		return nil, &NetworkError{URL: c.baseURL, Msg: fmt.Sprintf("%s (code %d)", res.Message, res.Code)}
	}
	if res.Photos == nil {
		requests.WithLabelValues("search", "decode").Inc()
		return nil, &DecodeError{Msg: "no photos in response"}
	}
	result := res.Photos
	photos := make([]Result, 0, len(result.Photos))
	for _, p := range result.Photos {
		if p.URL == "" {
			logger.Debug("Skipping photo without URL", zap.String("id", p.ID))
			continue
		}
		photos = append(photos, p)
	}
	result.Photos = photos
	requests.WithLabelValues("search", "ok").Inc()
	logger.Info("Photos found", zap.Int("count", len(photos)), zap.Int("pages", result.Pages))
	return result, nil
}

// DownloadImage returns the raw bytes found at the given photo URL
func (c *Client) DownloadImage(ctx context.Context, photoURL string) ([]byte, error) {
	data, err := c.get(ctx, photoURL)
	if err != nil {
		requests.WithLabelValues("download", "network").Inc()
		return nil, err
	}
	requests.WithLabelValues("download", "ok").Inc()
	return data, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &NetworkError{URL: redact(target), Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	res, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: redact(target), Err: unwrapURLError(err)}
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, &NetworkError{URL: redact(target), Status: res.StatusCode}
	}
	// one byte past the limit tells a full body from a cut one
	data, err := io.ReadAll(io.LimitReader(res.Body, maxImage+1))
	if err != nil {
		return nil, &NetworkError{URL: redact(target), Err: err}
	}
	if len(data) > maxImage {
		return nil, &NetworkError{URL: redact(target), Msg: fmt.Sprintf("response larger than %d bytes", maxImage)}
	}
	return data, nil
}

// redact strips the query, it carries the API key
func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

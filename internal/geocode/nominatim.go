package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/On-Jun9/TakeoutPipe/pkg/types"
)

const (
	DefaultNominatimEndpoint = "https://nominatim.openstreetmap.org/reverse"
	DefaultUserAgent         = "TakeoutPipe/1.0"
	DefaultTimeout           = 10 * time.Second
)

// NominatimOptions configures the OpenStreetMap Nominatim backend.
type NominatimOptions struct {
	Endpoint          string
	UserAgent         string
	Language          string
	Timeout           time.Duration
	RequestsPerSecond float64
	Zoom              int
	Client            *http.Client
}

// NominatimBackend queries the Nominatim /reverse endpoint.
type NominatimBackend struct {
	endpoint  string
	userAgent string
	language  string
	zoom      int
	client    *http.Client
	limiter   *rate.Limiter
}

func NewNominatimBackend(opts NominatimOptions) *NominatimBackend {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultNominatimEndpoint
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 10 // city level
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &NominatimBackend{
		endpoint:  opts.Endpoint,
		userAgent: opts.UserAgent,
		language:  opts.Language,
		zoom:      opts.Zoom,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

func (b *NominatimBackend) Name() string { return "nominatim" }

type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		County  string `json:"county"`
		Country string `json:"country"`
	} `json:"address"`
}

func (b *NominatimBackend) Lookup(ctx context.Context, coord types.Coordinate) (types.Place, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return types.Place{}, err
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(coord.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Longitude, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("zoom", strconv.Itoa(b.zoom))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return types.Place{}, err
	}
	req.Header.Set("User-Agent", b.userAgent)
	if b.language != "" {
		req.Header.Set("Accept-Language", b.language)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return types.Place{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Place{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Place{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Error != "" {
		return types.Place{}, fmt.Errorf("%w: %s", ErrNoResult, body.Error)
	}

	a := body.Address
	locality := firstNonEmpty(a.City, a.Town, a.Village, a.County)
	if locality == "" && a.Country == "" {
		return types.Place{}, ErrNoResult
	}
	return types.Place{Locality: locality, Country: a.Country}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

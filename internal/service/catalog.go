package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/NainishK/smartsubs/api/internal/model"
)

var ErrCatalogNotFound = errors.New("catalog item not found")

// CatalogClient talks to the TMDB-compatible catalog API for search, detail
// and availability lookups. Catalog data is never written, only read.
type CatalogClient struct {
	baseURL string
	apiKey  string
	region  string
	http    *http.Client
}

func NewCatalogClient() *CatalogClient {
	base := os.Getenv("CATALOG_API_URL")
	if base == "" {
		base = "https://api.themoviedb.org/3"
	}
	region := os.Getenv("CATALOG_WATCH_REGION")
	if region == "" {
		region = "US"
	}
	return &CatalogClient{
		baseURL: base,
		apiKey:  os.Getenv("CATALOG_API_KEY"),
		region:  region,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type catalogSearchResponse struct {
	Results []catalogItemPayload `json:"results"`
}

type catalogItemPayload struct {
	ID           int64    `json:"id"`
	MediaType    string   `json:"media_type"`
	Title        string   `json:"title"`
	Name         string   `json:"name"` // series use "name" instead of "title"
	Overview     string   `json:"overview"`
	PosterPath   *string  `json:"poster_path"`
	VoteAverage  *float64 `json:"vote_average"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

func (p catalogItemPayload) toItem(fallbackType model.MediaType) *model.CatalogItem {
	mt := fallbackType
	switch p.MediaType {
	case "movie":
		mt = model.MediaTypeMovie
	case "tv", "series":
		mt = model.MediaTypeSeries
	}
	item := &model.CatalogItem{
		ExternalID:  p.ID,
		MediaType:   mt,
		Overview:    p.Overview,
		PosterPath:  p.PosterPath,
		VoteAverage: p.VoteAverage,
	}
	item.Title = p.Title
	if item.Title == "" {
		item.Title = p.Name
	}
	date := p.ReleaseDate
	if date == "" {
		date = p.FirstAirDate
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			item.ReleaseYear = &y
		}
	}
	for _, g := range p.Genres {
		if g.Name != "" {
			item.Genres = append(item.Genres, g.Name)
		}
	}
	return item
}

func mediaTypePath(t model.MediaType) string {
	if t == model.MediaTypeSeries {
		return "tv"
	}
	return "movie"
}

func (c *CatalogClient) Search(ctx context.Context, query string) ([]model.CatalogItem, error) {
	var resp catalogSearchResponse
	if err := c.get(ctx, "/search/multi", url.Values{"query": {query}}, &resp); err != nil {
		return nil, err
	}
	out := make([]model.CatalogItem, 0, len(resp.Results))
	for _, p := range resp.Results {
		if p.MediaType != "movie" && p.MediaType != "tv" {
			continue
		}
		out = append(out, *p.toItem(model.MediaTypeMovie))
	}
	return out, nil
}

func (c *CatalogClient) Details(ctx context.Context, mediaType model.MediaType, externalID int64) (*model.CatalogItem, error) {
	var p catalogItemPayload
	path := fmt.Sprintf("/%s/%d", mediaTypePath(mediaType), externalID)
	if err := c.get(ctx, path, nil, &p); err != nil {
		return nil, err
	}
	return p.toItem(mediaType), nil
}

type watchProvidersResponse struct {
	Results map[string]struct {
		Flatrate []struct {
			ProviderName string `json:"provider_name"`
		} `json:"flatrate"`
	} `json:"results"`
}

// Availability returns the name of a streaming service carrying the item in
// the configured region, or nil when none is known.
func (c *CatalogClient) Availability(ctx context.Context, mediaType model.MediaType, externalID int64) (*string, error) {
	var resp watchProvidersResponse
	path := fmt.Sprintf("/%s/%d/watch/providers", mediaTypePath(mediaType), externalID)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	regional, ok := resp.Results[c.region]
	if !ok || len(regional.Flatrate) == 0 {
		return nil, nil
	}
	name := regional.Flatrate[0].ProviderName
	if name == "" {
		return nil, nil
	}
	return &name, nil
}

// AvailabilityBatch resolves availability badges for a set of items in one
// call from the caller's point of view. IDs that fail or have no known
// provider are simply absent from the result.
func (c *CatalogClient) AvailabilityBatch(ctx context.Context, refs []model.CatalogRef) (map[int64]string, error) {
	out := make(map[int64]string, len(refs))
	for _, ref := range refs {
		badge, err := c.Availability(ctx, ref.MediaType, ref.ExternalID)
		if err != nil {
			continue
		}
		if badge != nil {
			out[ref.ExternalID] = *badge
		}
	}
	return out, nil
}

func (c *CatalogClient) get(ctx context.Context, path string, params url.Values, dst any) error {
	if params == nil {
		params = url.Values{}
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("catalog %s: %w", path, ErrCatalogNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("catalog %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

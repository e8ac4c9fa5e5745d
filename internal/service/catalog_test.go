package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NainishK/smartsubs/api/internal/model"
)

func newCatalogServer(t *testing.T, handler http.HandlerFunc) *CatalogClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("CATALOG_API_URL", srv.URL)
	t.Setenv("CATALOG_API_KEY", "k")
	return NewCatalogClient()
}

func TestSearchKeepsOnlyMoviesAndSeries(t *testing.T) {
	c := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/multi" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("query") != "fight" {
			t.Fatalf("query = %s", r.URL.Query().Get("query"))
		}
		fmt.Fprint(w, `{"results":[
			{"id":550,"media_type":"movie","title":"Fight Club","release_date":"1999-10-15"},
			{"id":1399,"media_type":"tv","name":"Game of Thrones","first_air_date":"2011-04-17"},
			{"id":287,"media_type":"person","name":"Brad Pitt"}
		]}`)
	})

	items, err := c.Search(context.Background(), "fight")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2 (person dropped)", len(items))
	}
	if items[0].MediaType != model.MediaTypeMovie || items[0].Title != "Fight Club" {
		t.Fatalf("item 0 = %+v", items[0])
	}
	if items[0].ReleaseYear == nil || *items[0].ReleaseYear != 1999 {
		t.Fatalf("release year = %v", items[0].ReleaseYear)
	}
	if items[1].MediaType != model.MediaTypeSeries || items[1].Title != "Game of Thrones" {
		t.Fatalf("item 1 = %+v", items[1])
	}
}

func TestDetailsNotFound(t *testing.T) {
	c := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.Details(context.Background(), model.MediaTypeMovie, 99999999)
	if !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("err = %v, want ErrCatalogNotFound", err)
	}
}

func TestAvailabilityUsesConfiguredRegion(t *testing.T) {
	t.Setenv("CATALOG_WATCH_REGION", "GB")
	c := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":{
			"US":{"flatrate":[{"provider_name":"Hulu"}]},
			"GB":{"flatrate":[{"provider_name":"NOW"}]}
		}}`)
	})

	badge, err := c.Availability(context.Background(), model.MediaTypeSeries, 1399)
	if err != nil {
		t.Fatalf("Availability: %v", err)
	}
	if badge == nil || *badge != "NOW" {
		t.Fatalf("badge = %v, want NOW", badge)
	}
}

func TestAvailabilityBatchToleratesFailures(t *testing.T) {
	c := newCatalogServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/movie/1/watch/providers":
			fmt.Fprint(w, `{"results":{"US":{"flatrate":[{"provider_name":"Netflix"}]}}}`)
		case "/movie/2/watch/providers":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `{"results":{}}`)
		}
	})

	refs := []model.CatalogRef{
		{ExternalID: 1, MediaType: model.MediaTypeMovie},
		{ExternalID: 2, MediaType: model.MediaTypeMovie},
		{ExternalID: 3, MediaType: model.MediaTypeMovie},
	}
	badges, err := c.AvailabilityBatch(context.Background(), refs)
	if err != nil {
		t.Fatalf("AvailabilityBatch: %v", err)
	}
	if len(badges) != 1 || badges[1] != "Netflix" {
		t.Fatalf("badges = %v", badges)
	}
}

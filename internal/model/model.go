package model

import "time"

type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeSeries MediaType = "series"
)

func ValidMediaType(t MediaType) bool {
	return t == MediaTypeMovie || t == MediaTypeSeries
}

// CatalogItem describes a piece of content from the external catalog.
// Search results may carry only a subset of the fields a detail fetch fills.
type CatalogItem struct {
	ExternalID  int64     `json:"external_id"`
	MediaType   MediaType `json:"media_type"`
	Title       string    `json:"title"`
	Overview    string    `json:"overview,omitempty"`
	PosterPath  *string   `json:"poster_path,omitempty"`
	VoteAverage *float64  `json:"vote_average,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	ReleaseYear *int      `json:"release_year,omitempty"`
}

// CatalogRef identifies a catalog item without its display fields.
type CatalogRef struct {
	ExternalID int64     `json:"external_id"`
	MediaType  MediaType `json:"media_type"`
}

type WatchStatus string

const (
	StatusPlanToWatch WatchStatus = "plan_to_watch"
	StatusWatching    WatchStatus = "watching"
	StatusPaused      WatchStatus = "paused"
	StatusDropped     WatchStatus = "dropped"
	StatusWatched     WatchStatus = "watched"
)

// All five statuses are mutually reachable; there is no transition order.
func ValidWatchStatus(s WatchStatus) bool {
	switch s {
	case StatusPlanToWatch, StatusWatching, StatusPaused, StatusDropped, StatusWatched:
		return true
	}
	return false
}

// Ratings are stored as the 1-5 star count multiplied by two.
func ValidRating(r int) bool {
	return r >= 2 && r <= 10 && r%2 == 0
}

func RatingStars(r int) int { return r / 2 }

type WatchlistRecord struct {
	ID                string      `json:"id,omitempty"` // assigned by the store on create
	Item              CatalogItem `json:"item"`
	Status            WatchStatus `json:"status"`
	UserRating        *int        `json:"user_rating,omitempty"`
	AddedAt           time.Time   `json:"added_at"`
	AvailabilityBadge *string     `json:"availability_badge,omitempty"`
}

type RecommendationKind string

const (
	RecWatchNow       RecommendationKind = "watch_now"
	RecCancel         RecommendationKind = "cancel"
	RecSubscribe      RecommendationKind = "subscribe"
	RecSimilarContent RecommendationKind = "similar_content"
	RecPick           RecommendationKind = "pick"
	RecStrategyAction RecommendationKind = "strategy_action"
	RecGap            RecommendationKind = "gap"
)

func ValidRecommendationKind(k RecommendationKind) bool {
	switch k {
	case RecWatchNow, RecCancel, RecSubscribe, RecSimilarContent, RecPick, RecStrategyAction, RecGap:
		return true
	}
	return false
}

// Recommendation is a tagged variant keyed by Kind. Item is absent for
// generic advice (a subscribe/cancel action may name only a service).
// WatchStatus and UserRating are decoration fields resolved against the
// user's watchlist at read time; they are never persisted alongside the
// recommendation itself.
type Recommendation struct {
	Kind        RecommendationKind `json:"kind"`
	Reason      string             `json:"reason"`
	Item        *CatalogItem       `json:"item,omitempty"`
	ServiceName *string            `json:"service_name,omitempty"`

	WatchStatus *WatchStatus `json:"watch_status,omitempty"`
	UserRating  *int         `json:"user_rating,omitempty"`
}

// AIInsights is the compound result of one AI generation call. A
// quota-exhausted attempt yields empty collections with QuotaExceeded set,
// so the caller can render the dedicated exhausted state.
type AIInsights struct {
	Picks         []Recommendation `json:"picks"`
	Strategy      []Recommendation `json:"strategy"`
	Gaps          []Recommendation `json:"gaps"`
	QuotaExceeded bool             `json:"quota_exceeded"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

type AccessState string

const (
	AccessNone      AccessState = "none"
	AccessRequested AccessState = "requested"
	AccessApproved  AccessState = "approved"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WatchlistStats struct {
	Total    int                 `json:"total"`
	ByStatus map[WatchStatus]int `json:"by_status"`
}

// StreamSnapshot is the render view of one recommendation slot.
type StreamSnapshot struct {
	Items           []Recommendation `json:"items"`
	Loading         bool             `json:"loading"`
	LastRefreshedAt *time.Time       `json:"last_refreshed_at,omitempty"`
}

type AISnapshot struct {
	Insights        *AIInsights `json:"insights,omitempty"`
	Loading         bool        `json:"loading"`
	LastRefreshedAt *time.Time  `json:"last_refreshed_at,omitempty"`
}

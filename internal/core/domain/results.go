package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type Category string

const (
	CategoryPerson      Category = "PERSON"
	CategoryPlace       Category = "PLACE"
	CategoryEvent       Category = "EVENT"
	CategoryDynasty     Category = "DYNASTY"
	CategoryConcept     Category = "CONCEPT"
	CategoryArtifact    Category = "ARTIFACT"
	CategoryInstitution Category = "INSTITUTION"
	CategoryCulture     Category = "CULTURE"
	CategoryTechnology  Category = "TECHNOLOGY"
	CategoryOther       Category = "OTHER"
)

// ParseCategory is case-insensitive and falls back to CategoryOther.
func ParseCategory(raw string) Category {
	switch category := Category(strings.ToUpper(strings.TrimSpace(raw))); category {
	case CategoryPerson, CategoryPlace, CategoryEvent, CategoryDynasty, CategoryConcept,
		CategoryArtifact, CategoryInstitution, CategoryCulture, CategoryTechnology:
		return category
	default:
		return CategoryOther
	}
}

type LocationType string

const (
	LocationCity        LocationType = "CITY"
	LocationProvince    LocationType = "PROVINCE"
	LocationCountry     LocationType = "COUNTRY"
	LocationMountain    LocationType = "MOUNTAIN"
	LocationRiver       LocationType = "RIVER"
	LocationLake        LocationType = "LAKE"
	LocationBattlefield LocationType = "BATTLEFIELD"
	LocationPalace      LocationType = "PALACE"
	LocationTemple      LocationType = "TEMPLE"
	LocationTomb        LocationType = "TOMB"
	LocationBorder      LocationType = "BORDER"
	LocationTradeRoute  LocationType = "TRADE_ROUTE"
	LocationOther       LocationType = "OTHER"
)

// ParseLocationType is case-insensitive and falls back to LocationOther.
func ParseLocationType(raw string) LocationType {
	switch locationType := LocationType(strings.ToUpper(strings.TrimSpace(raw))); locationType {
	case LocationCity, LocationProvince, LocationCountry, LocationMountain, LocationRiver,
		LocationLake, LocationBattlefield, LocationPalace, LocationTemple, LocationTomb,
		LocationBorder, LocationTradeRoute:
		return locationType
	default:
		return LocationOther
	}
}

type WordFrequencyRecord struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id"`
	Word           string    `json:"word"`
	Category       Category  `json:"category"`
	Frequency      int       `json:"frequency"`
	RelevanceScore float64   `json:"relevance_score"`
	CreatedAt      time.Time `json:"created_at"`
}

type TimelineEventRecord struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"task_id"`
	EventName   string          `json:"event_name"`
	Description string          `json:"description,omitempty"`
	EventDate   *time.Time      `json:"event_date,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type GeoLocationRecord struct {
	ID           string          `json:"id"`
	TaskID       string          `json:"task_id"`
	LocationName string          `json:"location_name"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	LocationType LocationType    `json:"location_type"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// HasCoordinates reports whether both latitude and longitude are known.
func (r GeoLocationRecord) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// AnalysisResults groups the typed child records produced by one run.
type AnalysisResults struct {
	WordFrequencies []WordFrequencyRecord `json:"word_frequencies,omitempty"`
	TimelineEvents  []TimelineEventRecord `json:"timeline_events,omitempty"`
	GeoLocations    []GeoLocationRecord   `json:"geo_locations,omitempty"`
}

func (r AnalysisResults) Len() int {
	return len(r.WordFrequencies) + len(r.TimelineEvents) + len(r.GeoLocations)
}

// AnalysisReport is what gets serialized by exports.
type AnalysisReport struct {
	Task    AnalysisTask    `json:"task"`
	Results AnalysisResults `json:"results"`
}

type WordFrequencyQuery struct {
	Category     Category
	MinFrequency int
	MinRelevance float64
}

type TimelineQuery struct {
	From *time.Time
	To   *time.Time
}

type BoundingBox struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

type GeoQuery struct {
	LocationType LocationType
	Box          *BoundingBox
}

type NearbyQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKM  float64
}

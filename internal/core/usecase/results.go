package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

const (
	earthRadiusKM     = 6371.0
	kmPerDegreeLat    = 111.32
	maxNearbyRadiusKM = 5000.0
	overviewRecent    = 5
)

var (
	wordSortColumns     = []string{"frequency", "relevance_score", "word", "category", "created_at"}
	timelineSortColumns = []string{"event_date", "event_name", "created_at"}
	geoSortColumns      = []string{"location_name", "location_type", "latitude", "longitude", "created_at"}
)

// ResultQueryUseCase serves typed results, aggregate statistics and exports.
type ResultQueryUseCase struct {
	tasks    ports.AnalysisRepository
	results  ports.ResultRepository
	guard    *AccessGuard
	storage  ports.ObjectStorage
	encoders map[domain.ExportFormat]ports.ReportEncoder

	now func() time.Time
}

func NewResultQueryUseCase(
	tasks ports.AnalysisRepository,
	results ports.ResultRepository,
	guard *AccessGuard,
	storage ports.ObjectStorage,
	encoders ...ports.ReportEncoder,
) *ResultQueryUseCase {
	byFormat := make(map[domain.ExportFormat]ports.ReportEncoder, len(encoders))
	for _, encoder := range encoders {
		byFormat[encoder.Format()] = encoder
	}
	return &ResultQueryUseCase{
		tasks:    tasks,
		results:  results,
		guard:    guard,
		storage:  storage,
		encoders: byFormat,
		now:      time.Now,
	}
}

func (uc *ResultQueryUseCase) WordFrequencies(
	ctx context.Context,
	taskID, userID string,
	query domain.WordFrequencyQuery,
	page domain.PageRequest,
) (domain.Page[domain.WordFrequencyRecord], error) {
	if _, err := uc.guard.authorizeTask(ctx, taskID, userID); err != nil {
		return domain.Page[domain.WordFrequencyRecord]{}, err
	}
	if query.MinFrequency < 0 || query.MinRelevance < 0 {
		return domain.Page[domain.WordFrequencyRecord]{}, domain.WrapError(domain.ErrInvalidInput, "list word frequencies", errors.New("thresholds must not be negative"))
	}

	page = page.Normalize(domain.SortOrder{Column: "frequency", Desc: true}, wordSortColumns...)
	out, err := uc.results.ListWordFrequencies(ctx, taskID, query, page)
	if err != nil {
		return domain.Page[domain.WordFrequencyRecord]{}, persistenceError("list word frequencies", err)
	}
	return out, nil
}

func (uc *ResultQueryUseCase) TimelineEvents(
	ctx context.Context,
	taskID, userID string,
	query domain.TimelineQuery,
	page domain.PageRequest,
) (domain.Page[domain.TimelineEventRecord], error) {
	if _, err := uc.guard.authorizeTask(ctx, taskID, userID); err != nil {
		return domain.Page[domain.TimelineEventRecord]{}, err
	}
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return domain.Page[domain.TimelineEventRecord]{}, domain.WrapError(domain.ErrInvalidInput, "list timeline events", errors.New("from must not be after to"))
	}

	page = page.Normalize(domain.SortOrder{Column: "event_date"}, timelineSortColumns...)
	out, err := uc.results.ListTimelineEvents(ctx, taskID, query, page)
	if err != nil {
		return domain.Page[domain.TimelineEventRecord]{}, persistenceError("list timeline events", err)
	}
	return out, nil
}

func (uc *ResultQueryUseCase) GeoLocations(
	ctx context.Context,
	taskID, userID string,
	query domain.GeoQuery,
	page domain.PageRequest,
) (domain.Page[domain.GeoLocationRecord], error) {
	if _, err := uc.guard.authorizeTask(ctx, taskID, userID); err != nil {
		return domain.Page[domain.GeoLocationRecord]{}, err
	}
	if query.Box != nil {
		if err := validateBox(*query.Box); err != nil {
			return domain.Page[domain.GeoLocationRecord]{}, err
		}
	}

	page = page.Normalize(domain.SortOrder{Column: "location_name"}, geoSortColumns...)
	out, err := uc.results.ListGeoLocations(ctx, taskID, query, page)
	if err != nil {
		return domain.Page[domain.GeoLocationRecord]{}, persistenceError("list geo locations", err)
	}
	return out, nil
}

// NearbyLocations returns located records within RadiusKM of the point,
// nearest first. Candidates come from a bounding box and are then filtered
// by great-circle distance.
func (uc *ResultQueryUseCase) NearbyLocations(ctx context.Context, taskID, userID string, query domain.NearbyQuery) ([]domain.GeoLocationRecord, error) {
	if _, err := uc.guard.authorizeTask(ctx, taskID, userID); err != nil {
		return nil, err
	}
	if !validCoordinates(query.Latitude, query.Longitude) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "nearby locations", errors.New("coordinates out of range"))
	}
	if query.RadiusKM <= 0 || query.RadiusKM > maxNearbyRadiusKM {
		return nil, domain.WrapError(domain.ErrInvalidInput, "nearby locations", fmt.Errorf("radius must be in (0, %.0f] km", maxNearbyRadiusKM))
	}

	box := boundingBox(query)
	candidates := make([]domain.GeoLocationRecord, 0)
	page := domain.PageRequest{Size: domain.MaxPageSize, SortBy: "location_name"}
	for {
		batch, err := uc.results.ListGeoLocations(ctx, taskID, domain.GeoQuery{Box: &box}, page)
		if err != nil {
			return nil, persistenceError("nearby locations", err)
		}
		candidates = append(candidates, batch.Items...)
		if len(batch.Items) < page.Size || int64(len(candidates)) >= batch.Total {
			break
		}
		page.Page++
	}

	type scored struct {
		record   domain.GeoLocationRecord
		distance float64
	}
	matches := make([]scored, 0, len(candidates))
	for _, record := range candidates {
		if !record.HasCoordinates() {
			continue
		}
		distance := haversineKM(query.Latitude, query.Longitude, *record.Latitude, *record.Longitude)
		if distance <= query.RadiusKM {
			matches = append(matches, scored{record: record, distance: distance})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })

	out := make([]domain.GeoLocationRecord, len(matches))
	for i, match := range matches {
		out[i] = match.record
	}
	return out, nil
}

func (uc *ResultQueryUseCase) ResultStatistics(ctx context.Context, taskID, userID string) (domain.ResultStatistics, error) {
	if _, err := uc.guard.authorizeTask(ctx, taskID, userID); err != nil {
		return domain.ResultStatistics{}, err
	}

	categories, err := uc.results.CategoryCounts(ctx, taskID)
	if err != nil {
		return domain.ResultStatistics{}, persistenceError("category statistics", err)
	}
	locationTypes, err := uc.results.LocationTypeCounts(ctx, taskID)
	if err != nil {
		return domain.ResultStatistics{}, persistenceError("location type statistics", err)
	}
	timeline, err := uc.results.TimelineStatistics(ctx, taskID)
	if err != nil {
		return domain.ResultStatistics{}, persistenceError("timeline statistics", err)
	}

	stats := domain.ResultStatistics{
		TaskID:        taskID,
		Categories:    categories,
		LocationTypes: locationTypes,
		Timeline:      timeline,
	}
	for _, c := range categories {
		stats.WordCount += c.Count
	}
	for _, c := range locationTypes {
		stats.LocationCount += c.Count
	}
	return stats, nil
}

// Statistics aggregates by status and kind. A project scope needs project
// access, a user scope needs to be the caller or an admin, and the global
// scope is admin only.
func (uc *ResultQueryUseCase) Statistics(ctx context.Context, userID string, scope domain.StatisticsScope) (domain.AnalysisStatistics, error) {
	if err := uc.authorizeScope(ctx, userID, scope); err != nil {
		return domain.AnalysisStatistics{}, err
	}
	stats, err := uc.tasks.Statistics(ctx, domain.AnalysisFilter{ProjectID: scope.ProjectID, UserID: scope.UserID})
	if err != nil {
		return domain.AnalysisStatistics{}, persistenceError("analysis statistics", err)
	}
	return stats, nil
}

func (uc *ResultQueryUseCase) ProjectOverview(ctx context.Context, projectID, userID string) (domain.ProjectOverview, error) {
	if err := uc.guard.authorizeProject(ctx, projectID, userID); err != nil {
		return domain.ProjectOverview{}, err
	}
	filter := domain.AnalysisFilter{ProjectID: projectID}

	stats, err := uc.tasks.Statistics(ctx, filter)
	if err != nil {
		return domain.ProjectOverview{}, persistenceError("project statistics", err)
	}
	processing, err := uc.tasks.ProcessingStats(ctx, filter)
	if err != nil {
		return domain.ProjectOverview{}, persistenceError("project processing statistics", err)
	}
	recent, err := uc.tasks.List(ctx, filter, domain.PageRequest{Size: overviewRecent, SortBy: "created_at", Desc: true})
	if err != nil {
		return domain.ProjectOverview{}, persistenceError("recent analyses", err)
	}

	return domain.ProjectOverview{
		ProjectID:  projectID,
		Statistics: stats,
		Processing: processing,
		Recent:     recent.Items,
	}, nil
}

func (uc *ResultQueryUseCase) authorizeScope(ctx context.Context, userID string, scope domain.StatisticsScope) error {
	switch {
	case scope.ProjectID != "":
		return uc.guard.authorizeProject(ctx, scope.ProjectID, userID)
	case scope.UserID != "" && scope.UserID == userID:
		return nil
	case uc.guard.IsAdmin(ctx, userID):
		return nil
	default:
		return domain.WrapError(domain.ErrForbidden, "analysis statistics", fmt.Errorf("user %s may not read this scope", userID))
	}
}

func validateBox(box domain.BoundingBox) error {
	if box.MinLatitude > box.MaxLatitude || box.MinLongitude > box.MaxLongitude ||
		!validCoordinates(box.MinLatitude, box.MinLongitude) || !validCoordinates(box.MaxLatitude, box.MaxLongitude) {
		return domain.WrapError(domain.ErrInvalidInput, "geo bounding box", errors.New("invalid coordinate range"))
	}
	return nil
}

func boundingBox(query domain.NearbyQuery) domain.BoundingBox {
	latDelta := query.RadiusKM / kmPerDegreeLat
	lonDelta := 180.0
	if cos := math.Cos(query.Latitude * math.Pi / 180); cos > 1e-6 {
		lonDelta = math.Min(180, query.RadiusKM/(kmPerDegreeLat*cos))
	}
	return domain.BoundingBox{
		MinLatitude:  math.Max(-90, query.Latitude-latDelta),
		MaxLatitude:  math.Min(90, query.Latitude+latDelta),
		MinLongitude: math.Max(-180, query.Longitude-lonDelta),
		MaxLongitude: math.Min(180, query.Longitude+lonDelta),
	}
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

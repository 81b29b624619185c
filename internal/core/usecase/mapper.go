package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

// MappedResult is the outcome of turning one NLP response into storable data.
type MappedResult struct {
	Snapshot json.RawMessage
	Results  domain.AnalysisResults
	Skipped  int
}

// ResultMapper converts loosely-typed NLP payloads into typed records.
// Individual malformed items are skipped or defaulted; only a malformed
// response as a whole is an error.
type ResultMapper struct {
	newID func() string
}

func NewResultMapper() *ResultMapper {
	return &ResultMapper{newID: uuid.NewString}
}

func (m *ResultMapper) Map(kind domain.AnalysisKind, taskID string, raw json.RawMessage, now time.Time) (MappedResult, error) {
	payload, snapshot, err := decodeResponse(raw)
	if err != nil {
		return MappedResult{}, domain.WrapError(domain.ErrExternalService, "map nlp response", err)
	}

	out := MappedResult{Snapshot: snapshot}
	switch kind {
	case domain.KindWordFrequency:
		err = m.mapWordFrequencies(payload, taskID, now, &out, domain.SectionWordFrequency, domain.SectionWordFrequencies)
	case domain.KindTimeline:
		err = m.mapTimelineEvents(payload, taskID, now, &out)
	case domain.KindGeography:
		err = m.mapGeoLocations(payload, taskID, now, &out)
	case domain.KindTextSummary:
		// The summary is kept in the snapshot only.
	case domain.KindMultidimensional:
		err = m.mapMultidimensional(payload, taskID, now, &out)
	default:
		err = fmt.Errorf("unsupported analysis kind %q", kind)
	}
	if err != nil {
		return MappedResult{}, domain.WrapError(domain.ErrExternalService, "map nlp response", err)
	}

	if out.Skipped > 0 {
		slog.Warn("nlp_items_skipped", "task_id", taskID, "kind", kind, "skipped", out.Skipped)
	}
	return out, nil
}

func (m *ResultMapper) mapMultidimensional(payload map[string]any, taskID string, now time.Time, out *MappedResult) error {
	if err := m.mapWordFrequencies(payload, taskID, now, out, domain.SectionWordFrequencies, domain.SectionWordFrequency); err != nil {
		return err
	}
	if err := m.mapTimelineEvents(payload, taskID, now, out); err != nil {
		return err
	}
	return m.mapGeoLocations(payload, taskID, now, out)
}

// mapWordFrequencies reads the first present section among keys.
func (m *ResultMapper) mapWordFrequencies(payload map[string]any, taskID string, now time.Time, out *MappedResult, keys ...string) error {
	var items []any
	for _, key := range keys {
		list, present, err := sectionList(payload, key)
		if err != nil {
			return err
		}
		if present {
			items = list
			break
		}
	}

	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			out.Skipped++
			continue
		}
		word, ok := domain.LooseField(fields, "word").String()
		if !ok || word == "" {
			out.Skipped++
			continue
		}

		frequency, ok := domain.LooseField(fields, "frequency").Int()
		if !ok || frequency < 0 {
			frequency = 1
		}
		relevance, ok := domain.LooseField(fields, "relevance_score").Float()
		if !ok {
			relevance = 0
		}
		category, _ := domain.LooseField(fields, "category").String()

		out.Results.WordFrequencies = append(out.Results.WordFrequencies, domain.WordFrequencyRecord{
			ID:             m.newID(),
			TaskID:         taskID,
			Word:           word,
			Category:       domain.ParseCategory(category),
			Frequency:      frequency,
			RelevanceScore: relevance,
			CreatedAt:      now,
		})
	}
	return nil
}

func (m *ResultMapper) mapTimelineEvents(payload map[string]any, taskID string, now time.Time, out *MappedResult) error {
	items, _, err := sectionList(payload, domain.SectionTimelineEvents)
	if err != nil {
		return err
	}

	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			out.Skipped++
			continue
		}
		name, ok := domain.LooseField(fields, "event_name").String()
		if !ok || name == "" {
			out.Skipped++
			continue
		}
		description, _ := domain.LooseField(fields, "description").String()
		eventDate, _ := domain.LooseField(fields, "event_date").Date()

		out.Results.TimelineEvents = append(out.Results.TimelineEvents, domain.TimelineEventRecord{
			ID:          m.newID(),
			TaskID:      taskID,
			EventName:   name,
			Description: description,
			EventDate:   eventDate,
			Metadata:    objectJSON(fields, "metadata"),
			CreatedAt:   now,
		})
	}
	return nil
}

func (m *ResultMapper) mapGeoLocations(payload map[string]any, taskID string, now time.Time, out *MappedResult) error {
	items, _, err := sectionList(payload, domain.SectionGeoLocations)
	if err != nil {
		return err
	}

	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			out.Skipped++
			continue
		}
		name, ok := domain.LooseField(fields, "location_name").String()
		if !ok || name == "" {
			out.Skipped++
			continue
		}
		locationType, _ := domain.LooseField(fields, "location_type").String()

		record := domain.GeoLocationRecord{
			ID:           m.newID(),
			TaskID:       taskID,
			LocationName: name,
			LocationType: domain.ParseLocationType(locationType),
			Metadata:     objectJSON(fields, "metadata"),
			CreatedAt:    now,
		}
		lat, latOK := domain.LooseField(fields, "latitude").Float()
		lon, lonOK := domain.LooseField(fields, "longitude").Float()
		if latOK && lonOK && validCoordinates(lat, lon) {
			record.Latitude = &lat
			record.Longitude = &lon
		}
		out.Results.GeoLocations = append(out.Results.GeoLocations, record)
	}
	return nil
}

// decodeResponse requires a JSON object and returns it with a compacted copy for the snapshot.
func decodeResponse(raw json.RawMessage) (map[string]any, json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil, errors.New("empty nlp response")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var decoded any
	if err := decoder.Decode(&decoded); err != nil {
		return nil, nil, fmt.Errorf("decode nlp response: %w", err)
	}
	payload, ok := decoded.(map[string]any)
	if !ok {
		return nil, nil, errors.New("nlp response is not a JSON object")
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, trimmed); err != nil {
		return nil, nil, fmt.Errorf("compact nlp response: %w", err)
	}
	return payload, compacted.Bytes(), nil
}

// sectionList returns the list under key. A missing key is not an error;
// a present value of any other shape is.
func sectionList(payload map[string]any, key string) ([]any, bool, error) {
	value := domain.LooseField(payload, key)
	if !value.Present() {
		return nil, false, nil
	}
	list, ok := value.List()
	if !ok {
		return nil, true, fmt.Errorf("nlp response field %q is not a list", key)
	}
	return list, true, nil
}

func objectJSON(fields map[string]any, key string) json.RawMessage {
	value := domain.LooseField(fields, key)
	if _, ok := value.Object(); !ok {
		return nil
	}
	return value.JSON()
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// WorkerRecommendation is a read-only projection of one record returned by the
// recommendation backend, in the order the backend ranked it.
type WorkerRecommendation struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	ServiceType       string         `json:"service_type"`
	Rating            float64        `json:"rating"`
	ExperienceYears   int            `json:"experience_years"`
	JobsCompleted     int            `json:"jobs_completed"`
	Location          map[string]any `json:"location"`
	Pricing           map[string]any `json:"pricing"`
	Contact           map[string]any `json:"contact"`
	Availability      map[string]any `json:"availability"`
	Profile           map[string]any `json:"profile"`
	AIScore           float64        `json:"ai_score"`
	DistanceKm        float64        `json:"distance_km"`
	ServiceConfidence float64        `json:"service_confidence"`
}

// UnmarshalJSON never fails on a JSON object: missing or mistyped fields fall back to zero
// values and unknown fields are ignored. Older backend builds used different key names, so
// those are accepted as fallbacks.
func (w *WorkerRecommendation) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = WorkerFromRecord(raw)
	return nil
}

// WorkerFromRecord builds a recommendation from a decoded backend record.
func WorkerFromRecord(raw map[string]any) WorkerRecommendation {
	return WorkerRecommendation{
		ID:                stringField(raw, "id", "worker_id"),
		Name:              stringField(raw, "name", "worker_name"),
		ServiceType:       stringField(raw, "service_type", "service_category", "service"),
		Rating:            numberField(raw, "rating"),
		ExperienceYears:   int(numberField(raw, "experience_years")),
		JobsCompleted:     int(numberField(raw, "jobs_completed")),
		Location:          mapField(raw, "location"),
		Pricing:           mapField(raw, "pricing"),
		Contact:           mapField(raw, "contact"),
		Availability:      mapField(raw, "availability"),
		Profile:           mapField(raw, "profile"),
		AIScore:           numberField(raw, "ai_score", "score"),
		DistanceKm:        numberField(raw, "distance_km"),
		ServiceConfidence: numberField(raw, "service_confidence", "confidence"),
	}
}

// WorkerSummary is the simplified card returned for analysed issue descriptions.
type WorkerSummary struct {
	Name           string  `json:"name"`
	Service        string  `json:"service"`
	Rating         float64 `json:"rating"`
	Phone          string  `json:"phone"`
	DailyRate      float64 `json:"daily_rate"`
	AvailableToday bool    `json:"available_today"`
	DistanceKm     float64 `json:"distance_km"`
	Confidence     float64 `json:"confidence"`
}

func (s *WorkerSummary) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = WorkerSummary{
		Name:           stringField(raw, "name"),
		Service:        stringField(raw, "service"),
		Rating:         numberField(raw, "rating"),
		Phone:          stringField(raw, "phone"),
		DailyRate:      numberField(raw, "daily_rate"),
		AvailableToday: boolField(raw, "available_today"),
		DistanceKm:     numberField(raw, "distance_km"),
		Confidence:     numberField(raw, "confidence"),
	}
	return nil
}

func stringField(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func numberField(raw map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func boolField(raw map[string]any, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func mapField(raw map[string]any, key string) map[string]any {
	if m, ok := raw[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

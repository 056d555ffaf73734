package model

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	MinDescriptionLength = 3
	MaxDescriptionLength = 2000
	DefaultCountry       = "default"
)

// codePattern is the dotted-digit grammar for tariff codes, e.g. "6109.10.00".
var codePattern = regexp.MustCompile(`^\d{2,4}(\.\d{2,4})*$`)

type ClassificationQuery struct {
	Description         string  `json:"description"`
	Country             string  `json:"country"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IncludeAlternatives bool    `json:"include_alternatives"`
}

func (q *ClassificationQuery) Normalize() {
	q.Description = strings.TrimSpace(q.Description)
	q.Country = strings.ToLower(strings.TrimSpace(q.Country))
	if q.Country == "" {
		q.Country = DefaultCountry
	}
}

func (q ClassificationQuery) Validate() error {
	length := len(strings.TrimSpace(q.Description))
	if length < MinDescriptionLength {
		return NewValidationError("description", "must be at least 3 characters")
	}
	if length > MaxDescriptionLength {
		return NewValidationError("description", "must be at most 2000 characters")
	}
	if q.ConfidenceThreshold < 0 || q.ConfidenceThreshold > 1 {
		return NewValidationError("confidence_threshold", "must be between 0 and 1")
	}
	return nil
}

type MatchCandidate struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Chapter     string  `json:"chapter"`
	Section     string  `json:"section"`
	Reasoning   string  `json:"reasoning"`
}

// NewMatchCandidate clamps confidence into [0,1] so downstream TTL and
// ordering logic never sees an out-of-range score.
func NewMatchCandidate(code, description string, confidence float64, chapter, section, reasoning string) MatchCandidate {
	return MatchCandidate{
		Code:        code,
		Description: description,
		Confidence:  ClampConfidence(confidence),
		Chapter:     chapter,
		Section:     section,
		Reasoning:   reasoning,
	}
}

func (c MatchCandidate) ValidCode() bool {
	return codePattern.MatchString(c.Code)
}

func ClampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// SortCandidates orders candidates by descending confidence. The sort is
// stable: ties keep the classifier's original return order.
func SortCandidates(candidates []MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
}

type ClassificationResult struct {
	Primary          MatchCandidate   `json:"primary"`
	Alternatives     []MatchCandidate `json:"alternatives"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	Query            string           `json:"query"`
	Cached           bool             `json:"cached"`
}

type BatchRequest struct {
	Queries        []ClassificationQuery `json:"queries"`
	MaxConcurrency int                   `json:"max_concurrency"`
}

// BatchItem is one slot of a batch response. Exactly one of Result and
// Failure is set.
type BatchItem struct {
	Result  *ClassificationResult `json:"result,omitempty"`
	Failure *BatchItemFailure     `json:"failure,omitempty"`
}

type BatchItemFailure struct {
	Query string `json:"query"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type CacheStatistics struct {
	Hits            int64   `json:"hits"`
	Misses          int64   `json:"misses"`
	TotalEntries    int64   `json:"total_entries"`
	BatchEntries    int64   `json:"batch_entries"`
	HitRatioPercent float64 `json:"hit_ratio_percent"`
	MemoryUsageMB   float64 `json:"memory_usage_mb"`
	Available       bool    `json:"available"`
}

type WarmReport struct {
	AlreadyCached int `json:"already_cached"`
	Warmed        int `json:"newly_warmed"`
	Failed        int `json:"failed"`
}

type HealthStatus struct {
	Status           string        `json:"status"`
	CacheAvailable   bool          `json:"cache_available"`
	ClassifierOK     bool          `json:"classifier_ok"`
	ClassifierRTT    time.Duration `json:"-"`
	ClassifierRTTMS  int64         `json:"classifier_rtt_ms"`
	ClassifierDetail string        `json:"classifier_detail,omitempty"`
}

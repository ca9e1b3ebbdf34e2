// Package validator applies quality, range, and statistical anomaly checks
// to every reading between adapter emission and aggregator insertion.
package validator

import (
	"fmt"
	"math"
	"sync"

	"github.com/scadaflow/ingestcore/reading"
)

// Config controls which checks reject a reading.
type Config struct {
	RejectBadQuality       bool
	RejectUncertainQuality bool
	AnomalyStdDevThreshold float64
	AnomalyMinSamples      int
}

// DefaultConfig matches the spec's stated defaults: reject Bad quality,
// allow Uncertain, 3-sigma anomaly threshold after 100 samples.
func DefaultConfig() Config {
	return Config{
		RejectBadQuality:       true,
		RejectUncertainQuality: false,
		AnomalyStdDevThreshold: 3.0,
		AnomalyMinSamples:      100,
	}
}

// TagRule bounds acceptable values for one tag name.
type TagRule struct {
	TagName  string
	MinValue *float64
	MaxValue *float64
}

type RejectionError struct {
	TagName string
	Reason  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("reading rejected for tag %s: %s", e.TagName, e.Reason)
}

type tracker struct {
	count      int
	sum        float64
	sumSquared float64
}

func (t *tracker) mean() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

func (t *tracker) stdDev() float64 {
	if t.count < 2 {
		return 0
	}
	mean := t.mean()
	variance := t.sumSquared/float64(t.count) - mean*mean
	return math.Sqrt(math.Max(variance, 0))
}

func (t *tracker) isAnomaly(value float64, threshold float64, minSamples int) bool {
	if t.count < minSamples {
		return false
	}
	sd := t.stdDev()
	if sd == 0 {
		return false
	}
	return math.Abs(value-t.mean())/sd > threshold
}

func (t *tracker) addSample(value float64) {
	t.count++
	t.sum += value
	t.sumSquared += value * value
}

// Validator applies the quality, range, and statistical filters in order
// and rejects the first one that fails.
type Validator struct {
	cfg Config

	mu    sync.RWMutex
	rules map[string]TagRule
	stats map[string]*tracker
}

func New(cfg Config) *Validator {
	return &Validator{
		cfg:   cfg,
		rules: defaultTagRules(),
		stats: make(map[string]*tracker),
	}
}

func ptr(v float64) *float64 { return &v }

// defaultTagRules ships defaults for common upstream oil & gas points.
func defaultTagRules() map[string]TagRule {
	rules := map[string]TagRule{
		"oil_rate":         {TagName: "oil_rate", MinValue: ptr(0), MaxValue: ptr(10000)},
		"gas_rate":         {TagName: "gas_rate", MinValue: ptr(0), MaxValue: ptr(50000)},
		"water_rate":       {TagName: "water_rate", MinValue: ptr(0), MaxValue: ptr(20000)},
		"tubing_pressure":  {TagName: "tubing_pressure", MinValue: ptr(0), MaxValue: ptr(5000)},
		"casing_pressure":  {TagName: "casing_pressure", MinValue: ptr(0), MaxValue: ptr(5000)},
		"temperature":      {TagName: "temperature", MinValue: ptr(-40), MaxValue: ptr(300)},
		"flow_rate":        {TagName: "flow_rate", MinValue: ptr(0), MaxValue: ptr(500)},
	}
	return rules
}

// AddTagRule installs or overwrites a per-tag range rule.
func (v *Validator) AddTagRule(rule TagRule) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rules[rule.TagName] = rule
}

// Validate runs the quality, range, and anomaly filters in order. The
// first failing filter determines the rejection reason.
func (v *Validator) Validate(r reading.Reading) error {
	if err := v.validateQuality(r); err != nil {
		return err
	}
	if err := v.validateRange(r); err != nil {
		return err
	}
	return v.validateAnomaly(r)
}

func (v *Validator) validateQuality(r reading.Reading) error {
	switch r.Quality {
	case reading.QualityGood:
		return nil
	case reading.QualityBad:
		if v.cfg.RejectBadQuality {
			return &RejectionError{TagName: r.TagName, Reason: "Bad quality"}
		}
		return nil
	case reading.QualityUncertain:
		if v.cfg.RejectUncertainQuality {
			return &RejectionError{TagName: r.TagName, Reason: "Uncertain quality"}
		}
		return nil
	default:
		return &RejectionError{TagName: r.TagName, Reason: "unknown quality"}
	}
}

func (v *Validator) validateRange(r reading.Reading) error {
	v.mu.RLock()
	rule, ok := v.rules[r.TagName]
	v.mu.RUnlock()
	if !ok {
		return nil
	}

	if rule.MinValue != nil && r.Value < *rule.MinValue {
		return &RejectionError{TagName: r.TagName,
			Reason: fmt.Sprintf("value %v below minimum %v", r.Value, *rule.MinValue)}
	}
	if rule.MaxValue != nil && r.Value > *rule.MaxValue {
		return &RejectionError{TagName: r.TagName,
			Reason: fmt.Sprintf("value %v above maximum %v", r.Value, *rule.MaxValue)}
	}
	return nil
}

func (v *Validator) validateAnomaly(r reading.Reading) error {
	if v.cfg.AnomalyStdDevThreshold <= 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	t, ok := v.stats[r.TagName]
	if !ok {
		t = &tracker{}
		v.stats[r.TagName] = t
	}

	if t.isAnomaly(r.Value, v.cfg.AnomalyStdDevThreshold, v.cfg.AnomalyMinSamples) {
		return &RejectionError{TagName: r.TagName,
			Reason: fmt.Sprintf("statistical anomaly (value: %v, mean: %.2f, std_dev: %.2f)",
				r.Value, t.mean(), t.stdDev())}
	}

	// Only accepted samples feed the tracker, so an outlier never poisons
	// the running statistics.
	t.addSample(r.Value)
	return nil
}

// TagStatistics returns (mean, stdDev, count) for a tag, for monitoring.
func (v *Validator) TagStatistics(tagName string) (mean, stdDev float64, count int, ok bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	t, found := v.stats[tagName]
	if !found {
		return 0, 0, 0, false
	}
	return t.mean(), t.stdDev(), t.count, true
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"true-north/internal/logging"
	"true-north/internal/metrics"
	"true-north/internal/model"
)

const dailyKeyPrefix = "daily_challenge:"

// KeyValueStore is the device-local cache the selector persists to.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// CatalogReader lists the full challenge catalog.
type CatalogReader interface {
	ListAll(ctx context.Context) ([]model.Challenge, error)
}

// Picker chooses one element of a non-empty candidate list.
type Picker func(candidates []model.Challenge) model.Challenge

func randomPick(candidates []model.Challenge) model.Challenge {
	return candidates[rand.IntN(len(candidates))]
}

// dailyRecord is today's pick and every id ever picked, stored as one value so
// both change in a single write.
type dailyRecord struct {
	Day       string           `json:"day"`
	Challenge *model.Challenge `json:"challenge,omitempty"`
	Used      []string         `json:"used"`
}

// DailyService selects one challenge per scope per calendar day and never
// repeats a challenge within a scope.
type DailyService struct {
	catalog CatalogReader
	store   KeyValueStore
	pick    Picker
	loc     *time.Location
}

type DailyOption func(*DailyService)

// WithPicker replaces the uniform random choice.
func WithPicker(p Picker) DailyOption {
	return func(s *DailyService) { s.pick = p }
}

// WithLocation sets the timezone used to derive the calendar day.
func WithLocation(loc *time.Location) DailyOption {
	return func(s *DailyService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewDailyService(catalog CatalogReader, store KeyValueStore, opts ...DailyOption) *DailyService {
	s := &DailyService{
		catalog: catalog,
		store:   store,
		pick:    randomPick,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DayKey formats the calendar day of t in the service location.
func (s *DailyService) DayKey(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

// SelectToday returns the challenge for scope on today's date. A cached pick for
// the same day is returned verbatim. A nil challenge with a nil error means every
// catalog challenge has already been used; nothing is written in that case.
func (s *DailyService) SelectToday(ctx context.Context, scope string, today time.Time) (*model.Challenge, error) {
	log := logging.Component("daily").WithField("scope", scope)
	todayKey := s.DayKey(today)

	record, err := s.load(ctx, scope)
	if err != nil {
		metrics.DailySelections.WithLabelValues("error").Inc()
		return nil, err
	}
	if record.Day == todayKey && record.Challenge != nil {
		metrics.DailySelections.WithLabelValues("cache_hit").Inc()
		snapshot := *record.Challenge
		return &snapshot, nil
	}

	catalog, err := s.catalog.ListAll(ctx)
	if err != nil {
		metrics.DailySelections.WithLabelValues("error").Inc()
		return nil, err
	}

	used := make(map[string]struct{}, len(record.Used))
	for _, id := range record.Used {
		used[id] = struct{}{}
	}
	unused := make([]model.Challenge, 0, len(catalog))
	for _, ch := range catalog {
		if _, ok := used[ch.ID]; !ok {
			unused = append(unused, ch)
		}
	}

	if len(unused) == 0 {
		metrics.DailySelections.WithLabelValues("exhausted").Inc()
		log.WithField("day", todayKey).Info("all challenges used")
		return nil, nil
	}

	chosen := s.pick(unused)
	next := dailyRecord{
		Day:       todayKey,
		Challenge: &chosen,
		Used:      append(append([]string(nil), record.Used...), chosen.ID),
	}
	if err := s.save(ctx, scope, next); err != nil {
		metrics.DailySelections.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.DailySelections.WithLabelValues("picked").Inc()
	log.WithFields(map[string]any{"day": todayKey, "challenge_id": chosen.ID}).Info("daily challenge picked")
	return &chosen, nil
}

// Peek returns today's cached pick without selecting one.
func (s *DailyService) Peek(ctx context.Context, scope string, today time.Time) (*model.Challenge, error) {
	record, err := s.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	if record.Day != s.DayKey(today) || record.Challenge == nil {
		return nil, nil
	}
	snapshot := *record.Challenge
	return &snapshot, nil
}

// UsedCount returns how many challenges have been picked for scope so far.
func (s *DailyService) UsedCount(ctx context.Context, scope string) (int, error) {
	record, err := s.load(ctx, scope)
	if err != nil {
		return 0, err
	}
	return len(record.Used), nil
}

func (s *DailyService) load(ctx context.Context, scope string) (dailyRecord, error) {
	var record dailyRecord
	raw, ok, err := s.store.Get(ctx, dailyKeyPrefix+scope)
	if err != nil {
		logging.Component("daily").WithError(err).WithField("scope", scope).Error("read daily cache")
		return record, fmt.Errorf("%w: read daily cache: %w", ErrFetchFailed, err)
	}
	if !ok || raw == "" {
		return record, nil
	}
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// Unreadable entries count as empty.
		logging.Component("daily").WithError(err).WithField("scope", scope).Warn("discarding unreadable daily cache")
		return dailyRecord{}, nil
	}
	return record, nil
}

func (s *DailyService) save(ctx context.Context, scope string, record dailyRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode daily cache: %w", ErrWriteFailed, err)
	}
	if err := s.store.Set(ctx, dailyKeyPrefix+scope, string(raw)); err != nil {
		logging.Component("daily").WithError(err).WithField("scope", scope).Error("write daily cache")
		return fmt.Errorf("%w: write daily cache: %w", ErrWriteFailed, err)
	}
	return nil
}

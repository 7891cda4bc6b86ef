package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type AnalyticsService struct {
	store AnalyticsStore
	cache ReportCache
	log   *zap.Logger
}

// NewAnalyticsService wires the report engine to a store. cache and log may
// be nil.
func NewAnalyticsService(store AnalyticsStore, cache ReportCache, log *zap.Logger) *AnalyticsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalyticsService{store: store, cache: cache, log: log}
}

// Summary returns the analytics report of a form owned by ownerID.
func (s *AnalyticsService) Summary(ctx context.Context, ownerID, formID string) (*AnalyticsReport, error) {
	if _, err := loadOwnedForm(ctx, s.store, ownerID, formID); err != nil {
		return nil, err
	}
	if s.cache == nil {
		return s.Compute(ctx, formID)
	}
	// read the generation before the store: a report that races a write is
	// saved under the generation that write already retired
	gen, err := s.cache.Generation(ctx, formID)
	if err != nil {
		s.log.Warn("analytics cache generation read failed", zap.String("form_id", formID), zap.Error(err))
		return s.Compute(ctx, formID)
	}
	cached, err := s.cache.Get(ctx, formID, gen)
	if err != nil {
		s.log.Warn("analytics cache read failed", zap.String("form_id", formID), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}
	report, err := s.Compute(ctx, formID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, formID, gen, report); err != nil {
		s.log.Warn("analytics cache write failed", zap.String("form_id", formID), zap.Error(err))
	}
	return report, nil
}

// Authorize reports a not-found error unless ownerID owns formID.
func (s *AnalyticsService) Authorize(ctx context.Context, ownerID, formID string) error {
	_, err := loadOwnedForm(ctx, s.store, ownerID, formID)
	return err
}

// Compute fetches the catalog and responses and runs the engine, without
// ownership checks or caching.
func (s *AnalyticsService) Compute(ctx context.Context, formID string) (*AnalyticsReport, error) {
	questions, err := s.store.ListQuestions(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	responses, err := s.store.ListResponsesByForm(ctx, formID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return ComputeAnalytics(formID, questions, responses), nil
}

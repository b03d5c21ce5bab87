package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"donormatch/internal/matching/models"
	"donormatch/internal/matching/ports"
	"donormatch/pkg/requestcontext"
)

// MatchingService is the entry point for a search: it splits the criteria
// into cheaper variants, matches them concurrently, then hydrates and filters
// the union by donor record.
type MatchingService struct {
	donorMatching *DonorMatchingService
	donors        ports.DonorRepository
	opts          options
}

func NewMatchingService(donorMatching *DonorMatchingService, donors ports.DonorRepository, opts ...Option) (*MatchingService, error) {
	if donorMatching == nil {
		return nil, fmt.Errorf("donor matching service is required")
	}
	if donors == nil {
		return nil, fmt.Errorf("donor repository is required")
	}
	return &MatchingService{donorMatching: donorMatching, donors: donors, opts: newOptions(opts)}, nil
}

// Search runs FindMatches to completion.
func (s *MatchingService) Search(ctx context.Context, criteria models.AlleleLevelMatchCriteria) ([]*models.MatchResult, error) {
	var results []*models.MatchResult
	for r, err := range s.FindMatches(ctx, criteria) {
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// FindMatches streams fully populated results in ascending donor id order.
// Invalid criteria fail with an invalid_input domain error before any storage
// access. Results already yielded stay valid if the stream later fails or the
// context is cancelled.
func (s *MatchingService) FindMatches(ctx context.Context, criteria models.AlleleLevelMatchCriteria) iter.Seq2[*models.MatchResult, error] {
	return func(yield func(*models.MatchResult, error) bool) {
		searchID := uuid.NewString()
		ctx, span := tracer.Start(ctx, "MatchingService.FindMatches", trace.WithAttributes(
			attribute.String("search_id", searchID),
			attribute.String("criteria", criteria.String()),
		))
		defer span.End()
		start := time.Now()
		logger := s.opts.logger.With("search_id", searchID)
		if requestID := requestcontext.RequestID(ctx); requestID != "" {
			logger = logger.With("request_id", requestID)
		}

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "search failed")
			logger.Warn("search failed", "error", err)
			yield(nil, err)
		}

		if err := criteria.Validate(); err != nil {
			fail(err)
			return
		}

		variants := s.opts.simplifier.SplitSearch(criteria)
		s.opts.metrics.ObserveVariants(len(variants))
		span.SetAttributes(attribute.Int("variants", len(variants)))
		logger.Info("search started",
			"criteria", criteria.String(),
			"variants", len(variants),
		)

		matches, err := s.matchVariants(ctx, variants)
		if err != nil {
			fail(err)
			return
		}

		ids := make([]int, 0, len(matches))
		for id := range matches {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		returned := 0
		for batch := range slices.Chunk(ids, s.opts.hydrationBatchSize) {
			survivors, err := s.hydrate(ctx, logger, criteria, batch, matches)
			if err != nil {
				fail(err)
				return
			}
			for _, r := range survivors {
				returned++
				if !yield(r, nil) {
					return
				}
			}
		}

		s.opts.metrics.ObserveSearch(start, returned)
		span.SetAttributes(attribute.Int("results", returned))
		logger.Info("search complete",
			"candidates", len(matches),
			"results", returned,
			"duration", time.Since(start),
		)
	}
}

// matchVariants runs every variant with bounded concurrency and unions the
// results by donor id. Variants search the same loci with the same PGroups,
// so a donor found by several variants has identical details in each.
func (s *MatchingService) matchVariants(ctx context.Context, variants []models.AlleleLevelMatchCriteria) (map[int]*models.MatchResult, error) {
	var (
		mu    sync.Mutex
		union = make(map[int]*models.MatchResult)
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.maxConcurrentVariants)
	for i, variant := range variants {
		g.Go(func() error {
			ctx, span := tracer.Start(ctx, "MatchingService.variant", trace.WithAttributes(
				attribute.Int("variant", i),
				attribute.String("criteria", variant.String()),
			))
			defer span.End()

			found, err := s.donorMatching.FindMatches(ctx, variant)
			if err != nil {
				return err
			}
			s.opts.logger.Debug("variant matched",
				"variant", i,
				"criteria", variant.String(),
				"matches", len(found),
			)

			mu.Lock()
			defer mu.Unlock()
			for id, r := range found {
				if _, ok := union[id]; !ok {
					union[id] = r
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return union, nil
}

// hydrate loads donor records for ids and returns, in ids order, the results
// whose donor is available and passes the search-type rules. Donors missing
// from the repository are skipped.
func (s *MatchingService) hydrate(
	ctx context.Context,
	logger *slog.Logger,
	criteria models.AlleleLevelMatchCriteria,
	ids []int,
	matches map[int]*models.MatchResult,
) ([]*models.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "MatchingService.hydrate", trace.WithAttributes(attribute.Int("donors", len(ids))))
	defer span.End()

	donors, err := s.donors.GetDonors(ctx, ids)
	if err != nil {
		return nil, err
	}
	s.opts.metrics.IncrementHydrationBatches()

	survivors := make([]*models.MatchResult, 0, len(ids))
	missing := 0
	for _, id := range ids {
		donor, ok := donors[id]
		if !ok {
			missing++
			continue
		}
		if !donor.IsAvailableForSearch {
			continue
		}
		r := matches[id]
		r.Donor = donor
		if !s.opts.filtering.FulfilsSearchTypeCriteria(r, criteria) {
			continue
		}
		ok, err := s.opts.filtering.FulfilsSearchTypeSpecificCriteria(r, criteria)
		if err != nil {
			return nil, fmt.Errorf("donor %d: %w", id, err)
		}
		if !ok {
			continue
		}
		r.MarkFullyPopulated(donor)
		survivors = append(survivors, r)
	}

	if missing > 0 {
		s.opts.metrics.AddDonorsNotFound(missing)
		logger.Warn("matched donors missing from donor repository", "count", missing)
	}
	return survivors, nil
}

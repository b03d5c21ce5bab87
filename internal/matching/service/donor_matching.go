package service

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"donormatch/internal/matching/models"
)

const (
	stageSeed    = "seed"
	stageMerge   = "merge"
	stageBatched = "batched"
)

// DonorMatchingService matches one criteria variant locus by locus, joining
// each locus's relations onto the donors accumulated so far.
type DonorMatchingService struct {
	perLocus *PerLocusService
	opts     options
}

func NewDonorMatchingService(perLocus *PerLocusService, opts ...Option) (*DonorMatchingService, error) {
	if perLocus == nil {
		return nil, fmt.Errorf("per-locus service is required")
	}
	return &DonorMatchingService{perLocus: perLocus, opts: newOptions(opts)}, nil
}

// FindMatches returns every donor that satisfies criteria, keyed by donor id.
// Results carry match details for every searched locus and their mismatch
// annotations, but no donor record.
func (s *DonorMatchingService) FindMatches(ctx context.Context, criteria models.AlleleLevelMatchCriteria) (map[int]*models.MatchResult, error) {
	ctx, span := tracer.Start(ctx, "DonorMatchingService.FindMatches",
		trace.WithAttributes(attribute.String("criteria", criteria.String())))
	defer span.End()

	results := make(map[int]*models.MatchResult)
	for r, err := range s.matches(ctx, criteria) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "donor matching failed")
			return nil, err
		}
		results[r.DonorID] = r
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// matches chains the locus stages and the final criteria check into one lazy
// stream.
func (s *DonorMatchingService) matches(ctx context.Context, criteria models.AlleleLevelMatchCriteria) iter.Seq2[*models.MatchResult, error] {
	loci := s.opts.locusOrder.LociInMatchingOrder(criteria)
	if len(loci) == 0 {
		return func(yield func(*models.MatchResult, error) bool) {
			yield(nil, fmt.Errorf("%w: criteria search no loci", ErrUnsupportedLocus))
		}
	}

	stream := s.seed(ctx, criteria, loci[0])
	for i := 1; i < len(loci); i++ {
		stream = s.join(ctx, criteria, stream, loci[:i], loci[i])
	}
	return s.finalize(criteria, loci, stream)
}

func (s *DonorMatchingService) seed(ctx context.Context, criteria models.AlleleLevelMatchCriteria, locus models.Locus) iter.Seq2[*models.MatchResult, error] {
	return func(yield func(*models.MatchResult, error) bool) {
		ctx, span := s.startStage(ctx, locus, stageSeed)
		defer span.End()
		start := time.Now()

		count := 0
		for m, err := range s.perLocus.FindMatchesAtLocus(ctx, locus, criteria, nil) {
			if err != nil {
				span.RecordError(err)
				yield(nil, err)
				return
			}
			r := models.NewMatchResult(m.DonorID)
			r.SetMatchDetailsForLocus(locus, m.Details)
			count++
			if !yield(r, nil) {
				return
			}
		}
		s.endStage(span, locus, stageSeed, start, count)
	}
}

// join adds locus to the donors streamed by upstream, which have been
// evaluated at matched. See canFilterNow for how the join is executed.
func (s *DonorMatchingService) join(
	ctx context.Context,
	criteria models.AlleleLevelMatchCriteria,
	upstream iter.Seq2[*models.MatchResult, error],
	matched []models.Locus,
	locus models.Locus,
) iter.Seq2[*models.MatchResult, error] {
	evaluated := append(slices.Clone(matched), locus)
	if !canFilterNow(criteria, matched) {
		return s.mergeAll(ctx, criteria, upstream, matched, locus, evaluated)
	}
	return s.mergeBatched(ctx, criteria, upstream, matched, locus, evaluated)
}

// canFilterNow reports whether every donor that can still satisfy criteria
// is already in the accumulated stream. While all matched loci allow two
// mismatches and the total allowance is not exhausted by them, a donor with
// no relation at any matched locus may still qualify, so the next locus has to
// be queried in full.
func canFilterNow(criteria models.AlleleLevelMatchCriteria, matched []models.Locus) bool {
	for _, l := range matched {
		if allowed, _ := criteria.LocusMismatchCount(l); allowed != models.MaxLocusMismatchCount {
			return true
		}
	}
	return len(matched)*2 > criteria.DonorMismatchCount
}

// mergeAll materializes upstream, merges in every donor with a relation at
// locus and yields the per-locus survivors in donor id order.
func (s *DonorMatchingService) mergeAll(
	ctx context.Context,
	criteria models.AlleleLevelMatchCriteria,
	upstream iter.Seq2[*models.MatchResult, error],
	matched []models.Locus,
	locus models.Locus,
	evaluated []models.Locus,
) iter.Seq2[*models.MatchResult, error] {
	return func(yield func(*models.MatchResult, error) bool) {
		accumulated := make(map[int]*models.MatchResult)
		for r, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			accumulated[r.DonorID] = r
		}

		ctx, span := s.startStage(ctx, locus, stageMerge)
		defer span.End()
		start := time.Now()

		if err := s.mergeLocus(ctx, criteria, accumulated, matched, locus, nil); err != nil {
			span.RecordError(err)
			yield(nil, err)
			return
		}

		survivors := 0
		for _, id := range sortedKeys(accumulated) {
			r := accumulated[id]
			if !s.fulfilsLoci(r, criteria, evaluated) {
				continue
			}
			survivors++
			if !yield(r, nil) {
				return
			}
		}
		s.endStage(span, locus, stageMerge, start, survivors)
	}
}

// mergeBatched joins upstream onto locus a batch at a time, querying locus
// only for the donors in each batch.
func (s *DonorMatchingService) mergeBatched(
	ctx context.Context,
	criteria models.AlleleLevelMatchCriteria,
	upstream iter.Seq2[*models.MatchResult, error],
	matched []models.Locus,
	locus models.Locus,
	evaluated []models.Locus,
) iter.Seq2[*models.MatchResult, error] {
	return func(yield func(*models.MatchResult, error) bool) {
		ctx, span := s.startStage(ctx, locus, stageBatched)
		defer span.End()
		start := time.Now()

		survivors := 0
		batch := make([]*models.MatchResult, 0, min(s.opts.batchSize, 4096))

		flush := func() bool {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return false
			}
			byID := make(map[int]*models.MatchResult, len(batch))
			ids := make([]int, 0, len(batch))
			for _, r := range batch {
				byID[r.DonorID] = r
				ids = append(ids, r.DonorID)
			}
			if err := s.mergeLocus(ctx, criteria, byID, matched, locus, ids); err != nil {
				span.RecordError(err)
				yield(nil, err)
				return false
			}

			for _, r := range batch {
				delete(byID, r.DonorID)
				if !s.fulfilsLoci(r, criteria, evaluated) {
					continue
				}
				survivors++
				if !yield(r, nil) {
					return false
				}
			}
			// Donors the store returned outside the requested ids.
			for _, id := range sortedKeys(byID) {
				r := byID[id]
				if !s.fulfilsLoci(r, criteria, evaluated) {
					continue
				}
				survivors++
				if !yield(r, nil) {
					return false
				}
			}
			batch = batch[:0]
			return true
		}

		for r, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			batch = append(batch, r)
			if len(batch) >= s.opts.batchSize && !flush() {
				return
			}
		}
		if len(batch) > 0 && !flush() {
			return
		}
		s.endStage(span, locus, stageBatched, start, survivors)
	}
}

// mergeLocus fills locus on every result in accumulated from the relations at
// locus, adding results for donors only seen at locus. Slots with no
// relation on either side are set to an explicit zero match.
func (s *DonorMatchingService) mergeLocus(
	ctx context.Context,
	criteria models.AlleleLevelMatchCriteria,
	accumulated map[int]*models.MatchResult,
	matched []models.Locus,
	locus models.Locus,
	donorIDs []int,
) error {
	for m, err := range s.perLocus.FindMatchesAtLocus(ctx, locus, criteria, donorIDs) {
		if err != nil {
			return err
		}
		r, ok := accumulated[m.DonorID]
		if !ok {
			r = models.NewMatchResult(m.DonorID)
			zeroFill(r, matched)
			accumulated[m.DonorID] = r
		}
		r.SetMatchDetailsForLocus(locus, m.Details)
	}
	for _, r := range accumulated {
		zeroFill(r, []models.Locus{locus})
	}
	return nil
}

func (s *DonorMatchingService) fulfilsLoci(r *models.MatchResult, criteria models.AlleleLevelMatchCriteria, loci []models.Locus) bool {
	for _, l := range loci {
		if !s.opts.filtering.FulfilsPerLocusMatchCriteria(r, criteria, l) {
			return false
		}
	}
	return true
}

// finalize applies the per-locus criteria of every searched locus and then
// the total. A single-locus search never passes through a join, so the seed
// stream is only filtered here.
func (s *DonorMatchingService) finalize(
	criteria models.AlleleLevelMatchCriteria,
	loci []models.Locus,
	upstream iter.Seq2[*models.MatchResult, error],
) iter.Seq2[*models.MatchResult, error] {
	return func(yield func(*models.MatchResult, error) bool) {
		for r, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			if !s.fulfilsLoci(r, criteria, loci) || !s.opts.filtering.FulfilsTotalMatchCriteria(r, criteria) {
				continue
			}
			r.PopulateMismatches()
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (s *DonorMatchingService) startStage(ctx context.Context, locus models.Locus, mode string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "DonorMatchingService.locusStage", trace.WithAttributes(
		attribute.String("locus", locus.String()),
		attribute.String("mode", mode),
	))
}

func (s *DonorMatchingService) endStage(span trace.Span, locus models.Locus, mode string, start time.Time, survivors int) {
	span.SetAttributes(attribute.Int("survivors", survivors))
	s.opts.metrics.ObserveLocusStage(locus.String(), mode, start, survivors)
	s.opts.logger.Debug("locus stage complete",
		"locus", locus.String(),
		"mode", mode,
		"survivors", survivors,
		"duration", time.Since(start),
	)
}

func zeroFill(r *models.MatchResult, loci []models.Locus) {
	for _, l := range loci {
		if !r.IsLocusEvaluated(l) {
			r.SetMatchDetailsForLocus(l, models.NoMatch())
		}
	}
}

func sortedKeys(m map[int]*models.MatchResult) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Package e2e runs the donor search feature files against the HTTP surface
// backed by an in-memory donor registry.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"

	"github.com/cucumber/godog"
	"github.com/go-chi/chi/v5"

	"donormatch/internal/matching/handler"
	"donormatch/internal/matching/models"
	"donormatch/internal/matching/service"
	"donormatch/internal/matching/store/memory"
)

// searchWorld is the per-scenario state.
type searchWorld struct {
	store         *memory.Store
	router        http.Handler
	patient       map[models.Locus][2]string
	betterMatches bool
	response      *httptest.ResponseRecorder
	results       *handler.SearchResponse
}

func newSearchWorld() (*searchWorld, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()

	opts := []service.Option{service.WithLogger(logger), service.WithBatchSize(2), service.WithHydrationBatchSize(2)}
	perLocus, err := service.NewPerLocusService(store, store, opts...)
	if err != nil {
		return nil, err
	}
	donorMatching, err := service.NewDonorMatchingService(perLocus, opts...)
	if err != nil {
		return nil, err
	}
	matching, err := service.NewMatchingService(donorMatching, store, opts...)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	handler.New(matching, logger).Register(r)
	return &searchWorld{store: store, router: r, patient: map[models.Locus][2]string{}}, nil
}

// RegisterSteps binds the search vocabulary to a fresh world per scenario.
func RegisterSteps(sc *godog.ScenarioContext) {
	var w *searchWorld
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		var err error
		w, err = newSearchWorld()
		return ctx, err
	})

	sc.Step(`^the patient is typed:$`, func(t *godog.Table) error { return w.patientIsTyped(t) })
	sc.Step(`^the donor registry holds:$`, func(t *godog.Table) error { return w.registryHolds(t) })
	sc.Step(`^better matches are included$`, func() error { w.betterMatches = true; return nil })
	sc.Step(`^I search for (adult|cord) donors allowing (\d+) mismatch(?:es)? with up to (\d+) per locus$`,
		func(donorType string, total, perLocus int) error {
			return w.search(w.patientLoci(), donorType, total, perLocus)
		})
	sc.Step(`^I search at loci "([^"]*)" for (adult|cord) donors allowing (\d+) mismatch(?:es)? with up to (\d+) per locus$`,
		func(loci, donorType string, total, perLocus int) error {
			parsed, err := parseLoci(loci)
			if err != nil {
				return err
			}
			return w.search(parsed, donorType, total, perLocus)
		})
	sc.Step(`^the search succeeds$`, func() error { return w.searchSucceeds() })
	sc.Step(`^the matched donors are "([^"]*)"$`, func(ids string) error { return w.matchedDonorsAre(ids) })
	sc.Step(`^donor (\d+) is mismatched at (\w+) position (One|Two)$`,
		func(id int, locus, position string) error { return w.donorMismatchedAt(id, locus, position) })
	sc.Step(`^donor (\d+) matches locus (\w+) in the "(direct|cross)" orientation$`,
		func(id int, locus, orientation string) error { return w.donorOrientation(id, locus, orientation) })
	sc.Step(`^the search fails with status (\d+) and error "([^"]*)"$`,
		func(status int, code string) error { return w.searchFails(status, code) })
}

func (w *searchWorld) patientIsTyped(t *godog.Table) error {
	for _, row := range t.Rows[1:] {
		l, err := models.ParseLocus(row.Cells[0].Value)
		if err != nil {
			return err
		}
		w.patient[l] = [2]string{row.Cells[1].Value, row.Cells[2].Value}
	}
	return nil
}

// registryHolds reads one donor per row. Locus columns hold "one,two" or
// "untyped".
func (w *searchWorld) registryHolds(t *godog.Table) error {
	header := t.Rows[0].Cells
	donors := make([]*models.Donor, 0, len(t.Rows)-1)
	for _, row := range t.Rows[1:] {
		id, err := strconv.Atoi(row.Cells[0].Value)
		if err != nil {
			return fmt.Errorf("donor id %q: %w", row.Cells[0].Value, err)
		}
		donorType, err := models.ParseDonorType(row.Cells[1].Value)
		if err != nil {
			return err
		}
		d := &models.Donor{
			DonorID:              id,
			ExternalCode:         fmt.Sprintf("D%05d", id),
			DonorType:            donorType,
			IsAvailableForSearch: true,
		}
		for i := 2; i < len(header); i++ {
			l, err := models.ParseLocus(header[i].Value)
			if err != nil {
				return err
			}
			cell := row.Cells[i].Value
			if cell == "untyped" {
				continue
			}
			one, two, ok := strings.Cut(cell, ",")
			if !ok {
				return fmt.Errorf("donor %d locus %s: expected \"one,two\", got %q", id, l, cell)
			}
			d.Hla[l] = &models.LocusTyping{PositionOne: []string{one}, PositionTwo: []string{two}}
		}
		donors = append(donors, d)
	}
	return w.store.AddDonors(donors...)
}

func (w *searchWorld) patientLoci() []models.Locus {
	var loci []models.Locus
	for _, l := range models.AllLoci {
		if _, ok := w.patient[l]; ok {
			loci = append(loci, l)
		}
	}
	return loci
}

func parseLoci(s string) ([]models.Locus, error) {
	var loci []models.Locus
	for _, name := range strings.Split(s, ",") {
		l, err := models.ParseLocus(name)
		if err != nil {
			return nil, err
		}
		loci = append(loci, l)
	}
	return loci, nil
}

func (w *searchWorld) search(loci []models.Locus, donorType string, total, perLocus int) error {
	req := handler.SearchRequest{
		SearchType:           donorType,
		DonorMismatchCount:   &total,
		IncludeBetterMatches: w.betterMatches,
		Loci:                 map[string]handler.LocusRequest{},
	}
	for _, l := range loci {
		typing, ok := w.patient[l]
		if !ok {
			return fmt.Errorf("patient is not typed at %s", l)
		}
		req.Loci[l.String()] = handler.LocusRequest{
			PositionOne:   []string{typing[0]},
			PositionTwo:   []string{typing[1]},
			MismatchCount: perLocus,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/matching/searches", strings.NewReader(string(body)))
	httpReq.Header.Set("Content-Type", "application/json")
	w.response = httptest.NewRecorder()
	w.router.ServeHTTP(w.response, httpReq)

	w.results = nil
	if w.response.Code == http.StatusOK {
		w.results = &handler.SearchResponse{}
		return json.Unmarshal(w.response.Body.Bytes(), w.results)
	}
	return nil
}

func (w *searchWorld) searchSucceeds() error {
	if w.response == nil {
		return fmt.Errorf("no search was sent")
	}
	if w.response.Code != http.StatusOK {
		return fmt.Errorf("expected 200, got %d: %s", w.response.Code, w.response.Body.String())
	}
	return nil
}

func (w *searchWorld) matchedDonorsAre(want string) error {
	if w.results == nil {
		return fmt.Errorf("no successful search")
	}
	got := make([]string, 0, len(w.results.Results))
	for _, r := range w.results.Results {
		got = append(got, strconv.Itoa(r.DonorID))
	}
	if !slices.Equal(got, splitNonEmpty(want)) {
		return fmt.Errorf("expected donors [%s], got [%s]", want, strings.Join(got, ","))
	}
	return nil
}

func (w *searchWorld) result(id int) (*handler.MatchResponse, error) {
	if w.results == nil {
		return nil, fmt.Errorf("no successful search")
	}
	for i := range w.results.Results {
		if w.results.Results[i].DonorID == id {
			return &w.results.Results[i], nil
		}
	}
	return nil, fmt.Errorf("donor %d not in results", id)
}

func (w *searchWorld) donorMismatchedAt(id int, locus, position string) error {
	r, err := w.result(id)
	if err != nil {
		return err
	}
	want := handler.MismatchResponse{Locus: locus, Position: position}
	if !slices.Contains(r.Mismatches, want) {
		return fmt.Errorf("donor %d mismatches %+v do not include %+v", id, r.Mismatches, want)
	}
	return nil
}

func (w *searchWorld) donorOrientation(id int, locus, orientation string) error {
	r, err := w.result(id)
	if err != nil {
		return err
	}
	if !slices.Contains(r.Loci[locus].Orientations, orientation) {
		return fmt.Errorf("donor %d locus %s orientations %v do not include %s", id, locus, r.Loci[locus].Orientations, orientation)
	}
	return nil
}

func (w *searchWorld) searchFails(status int, code string) error {
	if w.response == nil {
		return fmt.Errorf("no search was sent")
	}
	if w.response.Code != status {
		return fmt.Errorf("expected status %d, got %d", status, w.response.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.response.Body.Bytes(), &body); err != nil {
		return err
	}
	if body["error"] != code {
		return fmt.Errorf("expected error %q, got %q", code, body["error"])
	}
	return nil
}

func splitNonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

package handler

import (
	"donormatch/internal/matching/models"
)

type SearchResponse struct {
	ResultCount int             `json:"result_count"`
	Results     []MatchResponse `json:"results"`
}

type MatchResponse struct {
	DonorID            int                      `json:"donor_id"`
	TotalMatchCount    int                      `json:"total_match_count"`
	TotalMismatchCount int                      `json:"total_mismatch_count"`
	Loci               map[string]LocusResponse `json:"loci"`
	Mismatches         []MismatchResponse       `json:"mismatches"`
	Donor              *DonorResponse           `json:"donor,omitempty"`
}

type LocusResponse struct {
	MatchCount   int      `json:"match_count"`
	Orientations []string `json:"orientations"`
}

type MismatchResponse struct {
	Locus    string `json:"locus"`
	Position string `json:"position"`
}

type DonorResponse struct {
	ExternalCode string `json:"external_code"`
	DonorType    string `json:"donor_type"`
	RegistryCode string `json:"registry_code"`
}

func toSearchResponse(results []*models.MatchResult) SearchResponse {
	resp := SearchResponse{
		ResultCount: len(results),
		Results:     make([]MatchResponse, 0, len(results)),
	}
	for _, r := range results {
		resp.Results = append(resp.Results, toMatchResponse(r))
	}
	return resp
}

func toMatchResponse(r *models.MatchResult) MatchResponse {
	m := MatchResponse{
		DonorID:            r.DonorID,
		TotalMatchCount:    r.TotalMatchCount(),
		TotalMismatchCount: r.TotalMismatchCount(),
		Loci:               make(map[string]LocusResponse),
		Mismatches:         make([]MismatchResponse, 0, len(r.Mismatches)),
	}
	for _, l := range r.EvaluatedLoci() {
		d := r.MatchDetailsForLocus(l)
		orientations := make([]string, 0, 2)
		for _, o := range d.Orientations() {
			orientations = append(orientations, string(o))
		}
		m.Loci[l.String()] = LocusResponse{MatchCount: d.MatchCount(), Orientations: orientations}
	}
	for _, mm := range r.Mismatches {
		m.Mismatches = append(m.Mismatches, MismatchResponse{Locus: mm.Locus.String(), Position: mm.Position.String()})
	}
	if r.Donor != nil {
		m.Donor = &DonorResponse{
			ExternalCode: r.Donor.ExternalCode,
			DonorType:    r.Donor.DonorType.String(),
			RegistryCode: r.Donor.RegistryCode,
		}
	}
	return m
}

package policy

import "donormatch/internal/matching/models"

// DatabaseFilteringAnalyser decides whether a locus query should also filter
// by donor type inside storage. Filtering there costs a join against the donor
// table, which only pays off when the requested type is a small share of the
// registry or the query is broad enough to return many rows.
type DatabaseFilteringAnalyser struct {
	filteredTypes        map[models.DonorType]bool
	broadPGroupThreshold int
}

// FilteringOption configures a DatabaseFilteringAnalyser.
type FilteringOption func(*DatabaseFilteringAnalyser)

// WithFilteredDonorTypes replaces the donor types always filtered in storage.
func WithFilteredDonorTypes(types ...models.DonorType) FilteringOption {
	return func(a *DatabaseFilteringAnalyser) {
		a.filteredTypes = make(map[models.DonorType]bool, len(types))
		for _, t := range types {
			a.filteredTypes[t] = true
		}
	}
}

// WithBroadPGroupThreshold filters in storage for any donor type once the
// patient's PGroups at the locus reach threshold. Zero disables the rule.
func WithBroadPGroupThreshold(threshold int) FilteringOption {
	return func(a *DatabaseFilteringAnalyser) {
		a.broadPGroupThreshold = threshold
	}
}

// NewDatabaseFilteringAnalyser defaults to filtering cord searches only.
func NewDatabaseFilteringAnalyser(opts ...FilteringOption) *DatabaseFilteringAnalyser {
	a := &DatabaseFilteringAnalyser{
		filteredTypes: map[models.DonorType]bool{models.DonorTypeCord: true},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ShouldFilterOnDonorTypeInDatabase reports whether the locus query for
// searchType should carry a donor-type restriction.
func (a *DatabaseFilteringAnalyser) ShouldFilterOnDonorTypeInDatabase(
	locusCriteria *models.AlleleLevelLocusMatchCriteria,
	searchType models.DonorType,
) bool {
	if a.filteredTypes[searchType] {
		return true
	}
	if a.broadPGroupThreshold > 0 && locusCriteria != nil {
		breadth := len(locusCriteria.PGroupsToMatchInPositionOne) + len(locusCriteria.PGroupsToMatchInPositionTwo)
		return breadth >= a.broadPGroupThreshold
	}
	return false
}

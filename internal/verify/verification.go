package verify

import (
	"fmt"
	"sort"

	"github.com/okian/innerscore/internal/domain/model"
)

// check compares the leaderboard with the collection it was ranked from.
func check(records []model.Repository, leaderboard []Entry, topN int) []string {
	problems := []string{}

	scores := make(map[string]int, len(records))
	for i, r := range records {
		if i > 0 && records[i-1].Name >= r.Name {
			problems = append(problems, fmt.Sprintf("collection not sorted by name at %q", r.Name))
		}
		if r.Score < 0 {
			problems = append(problems, fmt.Sprintf("%s has negative score %d", r.Name, r.Score))
		}
		if r.Manifest == nil {
			problems = append(problems, fmt.Sprintf("%s has no _InnerSourceMetadata", r.Name))
		}
		scores[r.Name] = r.Score
	}

	want := expectedLeaderboard(records, topN)
	if len(leaderboard) != len(want) {
		problems = append(problems, fmt.Sprintf("leaderboard has %d entries, want %d", len(leaderboard), len(want)))
	}

	for i, e := range leaderboard {
		if e.Rank != i+1 {
			problems = append(problems, fmt.Sprintf("entry %d has rank %d", i, e.Rank))
		}
		score, ok := scores[e.Name]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("leaderboard entry %s is not in the collection", e.Name))
		case score != e.Score:
			problems = append(problems, fmt.Sprintf("%s scores %d on the leaderboard and %d in the collection", e.Name, e.Score, score))
		}
		if i < len(want) && want[i].Name != e.Name {
			problems = append(problems, fmt.Sprintf("rank %d is %s, want %s", i+1, e.Name, want[i].Name))
		}
	}
	return problems
}

// expectedLeaderboard ranks records by score desc, then name asc.
func expectedLeaderboard(records []model.Repository, topN int) []Entry {
	sorted := make([]model.Repository, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Name < sorted[j].Name
	})
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}

	out := make([]Entry, len(sorted))
	for i, r := range sorted {
		out[i] = Entry{Rank: i + 1, Name: r.Name, Score: r.Score}
	}
	return out
}

// Package digest holds the domain types shared by the poller and the
// dispatch workers: the issue record and the per-cycle batch artifact.
package digest

// Category labels which search track produced an issue.
type Category string

const (
	// CategoryGeneral is the main track: popular repositories matching the
	// general topic and star/created criteria.
	CategoryGeneral Category = "general"
	// CategorySpotlight is the bonus track: repositories under the spotlight
	// topic, appended after the general quota is filled.
	CategorySpotlight Category = "spotlight"
)

// Issue is one newly discovered open issue. Immutable once accepted into a
// batch; only the ID is retained long-term (dedup), the rest lives in the
// cycle batch until the next cycle overwrites it.
type Issue struct {
	ID       int64    `json:"id"`
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	RepoURL  string   `json:"repo"`
	Category Category `json:"category"`
}

// Batch is the set of issues accepted for one cycle, in acceptance order.
// It is a value, not an entity: workers read it, the next cycle replaces it.
type Batch []Issue

// ByCategory returns the issues of one category, preserving order.
func (b Batch) ByCategory(c Category) []Issue {
	var out []Issue
	for _, is := range b {
		if is.Category == c {
			out = append(out, is)
		}
	}
	return out
}

// Count returns how many issues of the category the batch holds.
func (b Batch) Count(c Category) int {
	n := 0
	for _, is := range b {
		if is.Category == c {
			n++
		}
	}
	return n
}

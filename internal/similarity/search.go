package similarity

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/storyforge/internal/models"
	"gorm.io/gorm"
)

// DefaultLimit is used when a query does not set one.
const DefaultLimit = 5

// Threshold is the score a match must exceed to be returned.
const Threshold = 30

// ExcludedStates are never offered as duplicates.
var ExcludedStates = []string{"Closed", "Removed", "Done"}

// Query is a duplicate search request.
type Query struct {
	Title       string
	Description string
	Limit       int
}

// Match is one scored candidate.
type Match struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Type            string     `json:"type"`
	State           string     `json:"state"`
	CreatedDate     *time.Time `json:"createdDate"`
	Description     string     `json:"description"`
	SimilarityScore int        `json:"similarityScore"`
	Reason          string     `json:"reason"`
}

// Search looks for open cached work items that share keywords with the query
// title, scores them and returns those above Threshold, best first. A title
// with no usable keywords yields an empty result, not an error.
func Search(db *gorm.DB, q Query) ([]Match, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	keywords := ExtractKeywords(q.Title)
	if len(keywords) == 0 {
		return []Match{}, nil
	}

	conds := make([]string, 0, len(keywords))
	args := make([]interface{}, 0, 2*len(keywords))
	for _, k := range keywords {
		conds = append(conds, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		pattern := "%" + k + "%"
		args = append(args, pattern, pattern)
	}

	var candidates []models.CachedWorkItem
	err := db.Where("state NOT IN ?", ExcludedStates).
		Where("("+strings.Join(conds, " OR ")+")", args...).
		Order("created_date DESC").
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("similarity: search: %w", err)
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		score := Score(q.Title, c.Title, q.Description, c.Description)
		if score <= Threshold {
			continue
		}
		matches = append(matches, Match{
			ID:              c.ID,
			Title:           c.Title,
			Type:            c.Type,
			State:           c.State,
			CreatedDate:     c.CreatedDate,
			Description:     c.Description,
			SimilarityScore: score,
			Reason:          Reason(q.Title, c.Title),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

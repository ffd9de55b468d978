// Package taxonomy classifies content into fashion categories by keyword
// overlap against a fixed taxonomy.
package taxonomy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMinScore drops categories with a weaker match from Classify output.
const DefaultMinScore = 0.1

// Category is one fashion category definition.
type Category struct {
	Slug       string   `yaml:"slug"`
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords"`
	Weight     float64  `yaml:"weight"`
	ParentSlug string   `yaml:"parent_slug,omitempty"`
}

// Score is a classified category with its match score.
type Score struct {
	Slug  string
	Score float64
}

// Classifier matches hashtag/keyword sets against the taxonomy.
type Classifier struct {
	categories []Category
	keywordSet map[string]map[string]struct{} // slug -> keyword set
}

// NewClassifier builds a classifier over the built-in taxonomy.
func NewClassifier() *Classifier {
	return newClassifier(builtin)
}

// LoadClassifier reads a YAML taxonomy file (a list of categories) and
// builds a classifier from it. Weight defaults to 1.0 when omitted.
func LoadClassifier(path string) (*Classifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=taxonomy.load: %w", err)
	}
	var cats []Category
	if err := yaml.Unmarshal(b, &cats); err != nil {
		return nil, fmt.Errorf("op=taxonomy.parse: %w", err)
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("op=taxonomy.parse: empty taxonomy")
	}
	for i := range cats {
		if cats[i].Weight == 0 {
			cats[i].Weight = 1.0
		}
	}
	return newClassifier(cats), nil
}

func newClassifier(cats []Category) *Classifier {
	sets := make(map[string]map[string]struct{}, len(cats))
	for _, c := range cats {
		set := make(map[string]struct{}, len(c.Keywords))
		for _, k := range c.Keywords {
			set[strings.ToLower(k)] = struct{}{}
		}
		sets[c.Slug] = set
	}
	return &Classifier{categories: cats, keywordSet: sets}
}

// Categories returns the category definitions.
func (c *Classifier) Categories() []Category { return c.categories }

// Classify scores each category as |matches| / |category keywords| * weight
// over the union of hashtags and keywords, drops scores below minScore
// (<= 0 uses DefaultMinScore), and returns the rest descending.
func (c *Classifier) Classify(hashtags, keywords []string, minScore float64) []Score {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	terms := make(map[string]struct{}, len(hashtags)+len(keywords))
	for _, h := range hashtags {
		terms[strings.ToLower(h)] = struct{}{}
	}
	for _, k := range keywords {
		terms[strings.ToLower(k)] = struct{}{}
	}

	var scores []Score
	for _, cat := range c.categories {
		set := c.keywordSet[cat.Slug]
		if len(set) == 0 {
			continue
		}
		matches := 0
		for t := range terms {
			if _, ok := set[t]; ok {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		s := float64(matches) / float64(len(set)) * cat.Weight
		if s >= minScore {
			scores = append(scores, Score{Slug: cat.Slug, Score: s})
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Slug < scores[j].Slug
	})
	return scores
}

// Primary returns the highest scoring category, or ("", 0) on no match.
func (c *Classifier) Primary(hashtags, keywords []string) (string, float64) {
	scores := c.Classify(hashtags, keywords, 0)
	if len(scores) == 0 {
		return "", 0
	}
	return scores[0].Slug, scores[0].Score
}

// MatchScore is the Jaccard overlap of two category slug sets in [0,1];
// 0 when either side is empty.
func (c *Classifier) MatchScore(brandSlugs, influencerSlugs []string) float64 {
	if len(brandSlugs) == 0 || len(influencerSlugs) == 0 {
		return 0
	}
	a := make(map[string]struct{}, len(brandSlugs))
	for _, s := range brandSlugs {
		a[s] = struct{}{}
	}
	b := make(map[string]struct{}, len(influencerSlugs))
	for _, s := range influencerSlugs {
		b[s] = struct{}{}
	}
	inter := 0
	for s := range a {
		if _, ok := b[s]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Name returns the display name for a slug, or the slug itself when unknown.
func (c *Classifier) Name(slug string) string {
	for _, cat := range c.categories {
		if cat.Slug == slug {
			return cat.Name
		}
	}
	return slug
}

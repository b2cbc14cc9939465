package classifier

import (
	"log/slog"
	"strings"
)

// Category is a semantic bucket of the naming taxonomy.
type Category string

const (
	CategoryNone    Category = ""
	CategoryUser    Category = "user"
	CategoryData    Category = "data"
	CategoryService Category = "service"
	CategorySystem  Category = "system"
)

// Categories lists the taxonomy in tie-break order.
var Categories = []Category{CategoryUser, CategoryData, CategoryService, CategorySystem}

// Classifier assigns a taxonomy category to an identifier.
type Classifier interface {
	Classify(name string) Category
}

// KeywordClassifier uses keyword-based rules for classification.
type KeywordClassifier struct {
	keywords map[Category][]string
	logger   *slog.Logger
}

// NewClassifier creates a keyword classifier over the default taxonomy.
func NewClassifier(logger *slog.Logger) *KeywordClassifier {
	return &KeywordClassifier{keywords: DefaultKeywords(), logger: logger}
}

// NewClassifierWithKeywords creates a classifier over a custom taxonomy.
// Categories missing from keywords never match.
func NewClassifierWithKeywords(keywords map[Category][]string, logger *slog.Logger) *KeywordClassifier {
	return &KeywordClassifier{keywords: keywords, logger: logger}
}

// DefaultKeywords returns the built-in taxonomy.
func DefaultKeywords() map[Category][]string {
	return map[Category][]string{
		CategoryUser: {
			"user", "profile", "account", "customer", "member", "person",
			"login", "auth", "identity", "session",
		},
		CategoryData: {
			"data", "db", "database", "store", "storage", "record",
			"table", "dataset", "schema", "warehouse",
		},
		CategoryService: {
			"service", "api", "endpoint", "gateway", "server", "handler",
			"worker", "queue", "checkout", "payment",
		},
		CategorySystem: {
			"system", "config", "monitor", "log", "metric", "health",
			"infra", "admin", "alert", "deploy",
		},
	}
}

// Classify returns the category with the most keyword hits in name.
// Ties go to the category listed first in Categories; no hits yields CategoryNone.
func (c *KeywordClassifier) Classify(name string) Category {
	tokens := tokenize(name)
	if len(tokens) == 0 {
		return CategoryNone
	}

	best := CategoryNone
	bestScore := 0
	for _, cat := range Categories {
		score := 0
		for _, kw := range c.keywords[cat] {
			for _, tok := range tokens {
				if tok == kw || strings.HasPrefix(tok, kw) {
					score++
				}
			}
		}
		if score > bestScore {
			best = cat
			bestScore = score
		}
	}

	c.logger.Debug("classified name", "name", name, "category", best, "score", bestScore)
	return best
}

// tokenize lower-cases name and splits it on separators.
func tokenize(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == ':' || r == '/' || r == ' '
	})
}

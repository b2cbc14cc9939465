package classifier

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	cls := NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name     string
		input    string
		expected Category
	}{
		{name: "user profile", input: "user-profile", expected: CategoryUser},
		{name: "accounts plural", input: "accounts_v2", expected: CategoryUser},
		{name: "database", input: "orders-db", expected: CategoryData},
		{name: "api gateway", input: "public.api.gateway", expected: CategoryService},
		{name: "health monitor", input: "health-monitor", expected: CategorySystem},
		{name: "no keyword", input: "anchor-42", expected: CategoryNone},
		{name: "empty", input: "", expected: CategoryNone},
		{name: "tie goes to first category", input: "user-data", expected: CategoryUser},
		{name: "majority wins", input: "metrics-log-user", expected: CategorySystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cls.Classify(tt.input))
		})
	}
}

func TestClassifier_CustomKeywords(t *testing.T) {
	cls := NewClassifierWithKeywords(map[Category][]string{
		CategoryData: {"ledger"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, CategoryData, cls.Classify("ledger-main"))
	assert.Equal(t, CategoryNone, cls.Classify("user-profile"))
}

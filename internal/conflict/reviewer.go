package conflict

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/pkg/xmlutil"
)

// Reviewer recommends a resolution strategy for an escalated conflict.
// ok is false when no recommendation could be made.
type Reviewer interface {
	Review(ctx context.Context, conflict models.ConflictDetection) (strategy models.ResolutionStrategy, reason string, ok bool)
}

const reviewerMaxTokens = 512

// reviewPromptHeader precedes the escaped <conflict> block.
const reviewPromptHeader = `You review conflicts in an alias registry that maps human-chosen aliases to canonical anchor ids.

Recommend exactly one resolution strategy for the conflict below. Allowed strategies:
first_wins, last_wins, most_recent, highest_priority, merge, rename, deprecate, escalate.

Return ONLY a JSON object with this exact schema:
{"strategy": "<one allowed strategy>", "reason": "<brief explanation>"}

`

type reviewResponse struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}

// ClaudeReviewer asks Claude for a recommendation. Any API or parse failure
// yields no recommendation; review never blocks escalation.
type ClaudeReviewer struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// NewClaudeReviewer creates a ClaudeReviewer backed by the Anthropic API.
func NewClaudeReviewer(apiKey, model string, logger *slog.Logger) *ClaudeReviewer {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeReviewer{client: &c, model: model, logger: logger}
}

// Review implements Reviewer.
func (r *ClaudeReviewer) Review(ctx context.Context, c models.ConflictDetection) (models.ResolutionStrategy, string, bool) {
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: reviewerMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildReviewPrompt(c))),
		},
		System: []anthropic.TextBlockParam{
			{Text: "You are a precise data governance reviewer. Output only valid JSON."},
		},
	})
	if err != nil {
		r.logger.Warn("reviewer: Claude API call failed, skipping recommendation", "conflict_id", c.ID, "error", err)
		return "", "", false
	}

	var text string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text = strings.TrimSpace(resp.Content[i].Text)
			break
		}
	}
	return parseReview(text, r.logger)
}

func buildReviewPrompt(c models.ConflictDetection) string {
	evidence, err := json.Marshal(c.Evidence)
	if err != nil {
		evidence = []byte("{}")
	}
	return reviewPromptHeader + xmlutil.Block("conflict",
		xmlutil.Field{Tag: "type", Value: string(c.Type)},
		xmlutil.Field{Tag: "severity", Value: string(c.Severity)},
		xmlutil.Field{Tag: "description", Value: c.Description},
		xmlutil.Field{Tag: "affected", Value: strings.Join(c.AffectedEntities, ", ")},
		xmlutil.Field{Tag: "evidence", Value: string(evidence)},
	)
}

// parseReview decodes a reviewer reply, rejecting unknown strategies.
func parseReview(text string, logger *slog.Logger) (models.ResolutionStrategy, string, bool) {
	if text == "" {
		logger.Warn("reviewer: empty response from Claude")
		return "", "", false
	}
	var out reviewResponse
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		logger.Warn("reviewer: could not parse Claude response", "response", text, "error", err)
		return "", "", false
	}
	strategy := models.ResolutionStrategy(strings.ToLower(strings.TrimSpace(out.Strategy)))
	if !strategy.IsValid() {
		logger.Warn("reviewer: unknown strategy in Claude response", "strategy", out.Strategy)
		return "", "", false
	}
	return strategy, out.Reason, true
}

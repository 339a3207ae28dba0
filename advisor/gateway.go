/*
gateway.go - Advisory features over a fallible generative service

PURPOSE:
  Turns a read-only ledger Snapshot into prompts, calls the Generator and
  decodes the answers into typed records. The Generator is untrusted:
  every failure is logged and replaced by a static fallback or a nil
  result. Nothing here returns an error to the caller.

SEE ALSO:
  - prompts.go: Prompt construction
  - refresh.go: Concurrent fan-out and caching rules
*/
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/ledger"
)

// Static fallbacks for the text features.
const (
	FallbackInsight      = "Keep tracking to see your progress grow!"
	FallbackEmptyInsight = "You're building a great foundation for your finances!"
	FallbackChat         = "I'm having trouble reaching my advisor brain right now. Please try again in a moment."
)

// =============================================================================
// STRUCTURED RESULTS
// =============================================================================

// WealthScore rates overall financial health on a 0-100 scale.
type WealthScore struct {
	Score  int    `json:"score"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	Advice string `json:"advice"`
}

// SpendingAlert is one detected anomaly.
type SpendingAlert struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Milestone is a step on the way to financial independence.
type Milestone struct {
	Label      string  `json:"label"`
	EtaMonths  int     `json:"eta_months"`
	Confidence float64 `json:"confidence"`
	ActionItem string  `json:"action_item"`
}

// FreedomProjection estimates the path to financial independence.
type FreedomProjection struct {
	FreedomDate  string      `json:"freedom_date"`
	YearlyGrowth float64     `json:"yearly_growth"`
	Milestones   []Milestone `json:"milestones"`
}

// CategoryOptimization suggests per-category limits.
type CategoryOptimization struct {
	SuggestedLimits map[ledger.Category]decimal.Decimal `json:"suggested_limits"`
	Reasoning       string                              `json:"reasoning"`
}

// Link is a cited web source.
type Link struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// SavingsTip is a money-saving suggestion for the top spending category.
type SavingsTip struct {
	Category ledger.Category `json:"category"`
	Text     string          `json:"text"`
	Links    []Link          `json:"links"`
}

// =============================================================================
// GATEWAY
// =============================================================================

// Gateway exposes one method per advisory feature.
type Gateway struct {
	gen     Generator
	logger  *slog.Logger
	timeout time.Duration
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout bounds every request. Zero means no bound beyond the caller's context.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithGatewayLogger sets the logger used for failures.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger }
}

// NewGateway creates a Gateway. A nil generator behaves as Offline.
func NewGateway(gen Generator, opts ...GatewayOption) *Gateway {
	if gen == nil {
		gen = Offline{}
	}
	g := &Gateway{gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) generate(ctx context.Context, feature string, req Request) (string, bool) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if req.System == "" {
		req.System = systemInstruction
	}
	text, err := g.gen.Generate(ctx, req)
	if err != nil {
		g.logger.Warn("advisor request failed", "feature", feature, "error", err)
		return "", false
	}
	return text, true
}

// text runs a free-text feature. Empty answers get emptyFallback.
func (g *Gateway) text(ctx context.Context, feature, prompt, fallback, emptyFallback string) string {
	text, ok := g.generate(ctx, feature, Request{Prompt: prompt})
	if !ok {
		return fallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return emptyFallback
	}
	return text
}

// structured runs a JSON feature and decodes the answer into dst.
func (g *Gateway) structured(ctx context.Context, feature, prompt string, dst any) bool {
	text, ok := g.generate(ctx, feature, Request{Prompt: prompt, JSON: true})
	if !ok {
		return false
	}
	if err := decodeJSON(text, dst); err != nil {
		g.logger.Warn("advisor returned malformed JSON", "feature", feature, "error", err)
		return false
	}
	return true
}

// decodeJSON tolerates answers wrapped in a markdown code fence.
func decodeJSON(text string, dst any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return fmt.Errorf("decode advisor answer: %w", err)
	}
	return nil
}

// =============================================================================
// FEATURES
// =============================================================================

// Insight returns one short behavioral insight.
func (g *Gateway) Insight(ctx context.Context, s ledger.Snapshot) string {
	return g.text(ctx, "insight", insightPrompt(s), FallbackInsight, FallbackEmptyInsight)
}

// Forecast predicts month-end spending. Empty on failure.
func (g *Gateway) Forecast(ctx context.Context, s ledger.Snapshot) string {
	return g.text(ctx, "forecast", forecastPrompt(s), "", "")
}

// SubscriptionAudit reviews recurring expenses. Empty when there are none.
func (g *Gateway) SubscriptionAudit(ctx context.Context, s ledger.Snapshot) string {
	if len(s.Recurring) == 0 {
		return ""
	}
	return g.text(ctx, "subscription_audit", subscriptionPrompt(s), "", "")
}

// ValueAudit compares joyful and regretted spending.
func (g *Gateway) ValueAudit(ctx context.Context, s ledger.Snapshot) string {
	return g.text(ctx, "value_audit", valueAuditPrompt(s), "", "")
}

// GoalStrategy suggests how to reach the savings goal. Empty without a goal.
func (g *Gateway) GoalStrategy(ctx context.Context, s ledger.Snapshot) string {
	if s.Goal == nil {
		return ""
	}
	return g.text(ctx, "goal_strategy", goalStrategyPrompt(s), "", "")
}

// WealthScore rates financial health. The score is clamped to 0-100.
func (g *Gateway) WealthScore(ctx context.Context, s ledger.Snapshot) *WealthScore {
	var out WealthScore
	if !g.structured(ctx, "wealth_score", wealthScorePrompt(s), &out) {
		return nil
	}
	out.Score = min(max(out.Score, 0), 100)
	return &out
}

// Anomalies lists unusual spending. Never nil.
func (g *Gateway) Anomalies(ctx context.Context, s ledger.Snapshot) []SpendingAlert {
	var out []SpendingAlert
	if !g.structured(ctx, "anomalies", anomaliesPrompt(s), &out) || out == nil {
		return []SpendingAlert{}
	}
	return out
}

// FreedomHorizon projects the path to financial independence.
func (g *Gateway) FreedomHorizon(ctx context.Context, s ledger.Snapshot) *FreedomProjection {
	var out FreedomProjection
	if !g.structured(ctx, "freedom_horizon", freedomPrompt(s), &out) {
		return nil
	}
	if out.Milestones == nil {
		out.Milestones = []Milestone{}
	}
	for i := range out.Milestones {
		out.Milestones[i].Confidence = min(max(out.Milestones[i].Confidence, 0), 1)
	}
	return &out
}

// Quest suggests a savings challenge. New quests are always Available.
func (g *Gateway) Quest(ctx context.Context, s ledger.Snapshot) *ledger.SavingsQuest {
	var out ledger.SavingsQuest
	if !g.structured(ctx, "quest", questPrompt(s), &out) || out.Title == "" {
		return nil
	}
	out.Status = ledger.QuestAvailable
	if out.PotentialSavings.IsNegative() {
		out.PotentialSavings = decimal.Zero
	}
	return &out
}

// Persona classifies spending habits.
func (g *Gateway) Persona(ctx context.Context, s ledger.Snapshot) *ledger.SpendingPersona {
	var out ledger.SpendingPersona
	if !g.structured(ctx, "persona", personaPrompt(s), &out) || out.Name == "" {
		return nil
	}
	return &out
}

// CategoryOptimization suggests per-category limits. Negative and unknown
// entries are dropped.
func (g *Gateway) CategoryOptimization(ctx context.Context, s ledger.Snapshot) *CategoryOptimization {
	var out CategoryOptimization
	if !g.structured(ctx, "category_optimization", categoryPrompt(s), &out) {
		return nil
	}
	limits := make(map[ledger.Category]decimal.Decimal, len(out.SuggestedLimits))
	for c, v := range out.SuggestedLimits {
		if c.Known() && !v.IsNegative() {
			limits[c] = v
		}
	}
	out.SuggestedLimits = limits
	return &out
}

// MarketSavings looks for deals on the top spending category. Nil when
// nothing has been spent.
func (g *Gateway) MarketSavings(ctx context.Context, s ledger.Snapshot) *SavingsTip {
	top, ok := topCategory(s.Metrics.CategoryTotals)
	if !ok {
		return nil
	}
	var out SavingsTip
	if !g.structured(ctx, "market_savings", marketSavingsPrompt(top), &out) || out.Text == "" {
		return nil
	}
	out.Category = top
	if out.Links == nil {
		out.Links = []Link{}
	}
	return &out
}

// Chat answers the last user turn of history. Earlier turns are sent as
// conversation context.
func (g *Gateway) Chat(ctx context.Context, s ledger.Snapshot, history []Turn) string {
	if len(history) == 0 {
		return FallbackChat
	}
	last := history[len(history)-1]
	req := Request{
		Prompt:  chatPrompt(s, last.Text),
		History: history[:len(history)-1],
	}
	text, ok := g.generate(ctx, "chat", req)
	if !ok || strings.TrimSpace(text) == "" {
		return FallbackChat
	}
	return strings.TrimSpace(text)
}

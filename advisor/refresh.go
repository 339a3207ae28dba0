package advisor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/budget-engine/ledger"
)

// AdviceCache persists the advisory records that outlive a refresh.
// *ledger.Ledger satisfies it.
type AdviceCache interface {
	ReplaceAvailableQuest(ctx context.Context, fresh *ledger.SavingsQuest) (*ledger.SavingsQuest, error)
	Persona(ctx context.Context) (*ledger.SpendingPersona, error)
	SavePersona(ctx context.Context, p *ledger.SpendingPersona) error
}

// Report is the combined result of one refresh.
type Report struct {
	Fingerprint       string                  `json:"fingerprint"`
	GeneratedAt       time.Time               `json:"generated_at"`
	Skipped           bool                    `json:"skipped"`
	Insight           string                  `json:"insight"`
	SubscriptionAudit string                  `json:"subscription_audit,omitempty"`
	Forecast          string                  `json:"forecast,omitempty"`
	WealthScore       *WealthScore            `json:"wealth_score,omitempty"`
	Anomalies         []SpendingAlert         `json:"anomalies"`
	FreedomHorizon    *FreedomProjection      `json:"freedom_horizon,omitempty"`
	ValueAudit        string                  `json:"value_audit,omitempty"`
	GoalStrategy      string                  `json:"goal_strategy,omitempty"`
	Quest             *ledger.SavingsQuest    `json:"quest,omitempty"`
	Persona           *ledger.SpendingPersona `json:"persona,omitempty"`
}

// Refresh runs the independent advisory features concurrently and stores
// the quest and persona in cache. Nothing is requested while both income
// and the spending limit are zero.
//
// The cached quest is replaced only when none exists or it has not been
// accepted yet; an Active quest survives refreshes. A returned persona
// always replaces the cached one.
func (g *Gateway) Refresh(ctx context.Context, s ledger.Snapshot, cache AdviceCache) Report {
	report := Report{
		Fingerprint: Fingerprint(s),
		GeneratedAt: time.Now().UTC(),
		Anomalies:   []SpendingAlert{},
	}
	if s.Settings.Income.IsZero() && s.Settings.Amount.IsZero() {
		report.Skipped = true
		return report
	}

	var (
		quest   *ledger.SavingsQuest
		persona *ledger.SpendingPersona
	)

	// Each goroutine owns one field of report; the group only joins them.
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { report.Insight = g.Insight(gctx, s); return nil })
	grp.Go(func() error { report.SubscriptionAudit = g.SubscriptionAudit(gctx, s); return nil })
	grp.Go(func() error { report.Forecast = g.Forecast(gctx, s); return nil })
	grp.Go(func() error { report.WealthScore = g.WealthScore(gctx, s); return nil })
	grp.Go(func() error { report.Anomalies = g.Anomalies(gctx, s); return nil })
	grp.Go(func() error { report.FreedomHorizon = g.FreedomHorizon(gctx, s); return nil })
	grp.Go(func() error { report.ValueAudit = g.ValueAudit(gctx, s); return nil })
	grp.Go(func() error { quest = g.Quest(gctx, s); return nil })
	grp.Go(func() error { persona = g.Persona(gctx, s); return nil })
	if s.Goal != nil {
		grp.Go(func() error { report.GoalStrategy = g.GoalStrategy(gctx, s); return nil })
	}
	_ = grp.Wait()

	report.Quest = g.storeQuest(ctx, cache, quest)
	report.Persona = g.storePersona(ctx, cache, persona)
	return report
}

func (g *Gateway) storeQuest(ctx context.Context, cache AdviceCache, fresh *ledger.SavingsQuest) *ledger.SavingsQuest {
	kept, err := cache.ReplaceAvailableQuest(ctx, fresh)
	if err != nil {
		g.logger.Warn("store quest", "error", err)
		if kept == nil {
			return fresh
		}
	}
	return kept
}

func (g *Gateway) storePersona(ctx context.Context, cache AdviceCache, fresh *ledger.SpendingPersona) *ledger.SpendingPersona {
	if fresh == nil {
		current, err := cache.Persona(ctx)
		if err != nil {
			g.logger.Warn("load cached persona", "error", err)
			return nil
		}
		return current
	}
	if err := cache.SavePersona(ctx, fresh); err != nil {
		g.logger.Warn("save persona", "error", err)
	}
	return fresh
}

type fingerprintInput struct {
	Settings  ledger.BudgetSettings `json:"settings"`
	Period    string                `json:"period"`
	Expenses  []string              `json:"expenses"`
	Recurring []string              `json:"recurring"`
	Goal      *ledger.SavingsGoal   `json:"goal"`
	Rollover  string                `json:"rollover"`
}

// Fingerprint hashes the inputs a report was derived from. Two snapshots
// with the same fingerprint produce interchangeable reports.
func Fingerprint(s ledger.Snapshot) string {
	in := fingerprintInput{
		Settings:  s.Settings,
		Period:    s.Period.String(),
		Expenses:  expenseKeys(s.Expenses),
		Recurring: expenseKeys(s.Recurring),
		Goal:      s.Goal,
		Rollover:  s.Metrics.Rollover.String(),
	}
	data, err := json.Marshal(in)
	if err != nil {
		// Only reachable with unmarshalable values, which the ledger never stores.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func expenseKeys(expenses []ledger.Expense) []string {
	keys := make([]string, len(expenses))
	for i, e := range expenses {
		keys[i] = e.ID + ":" + e.Amount.String()
	}
	return keys
}

package advisor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/budget-engine/ledger"
)

// maxSampleExpenses bounds how many raw expenses are quoted in a prompt.
const maxSampleExpenses = 25

const systemInstruction = "You are a friendly personal finance coach. " +
	"Use plain English, be supportive and concrete, and never invent numbers that are not in the data."

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// summary renders the read-only financial state shared by every prompt.
func summary(s ledger.Snapshot) string {
	m := s.Metrics
	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s\n", s.Period)
	fmt.Fprintf(&b, "- Monthly Income: %s\n", money(s.Settings.Income))
	fmt.Fprintf(&b, "- Budget Limit (Spending Goal): %s\n", money(s.Settings.Amount))
	if s.Settings.RolloverEnabled {
		fmt.Fprintf(&b, "- Rollover From Last Month: %s\n", money(m.Rollover))
	}
	fmt.Fprintf(&b, "- Total Available: %s\n", money(m.TotalAvailable))
	fmt.Fprintf(&b, "- Actual Spending: %s\n", money(m.TotalSpent))
	fmt.Fprintf(&b, "- Remaining Budget: %s\n", money(m.Remaining))
	fmt.Fprintf(&b, "- Net Savings (Income - Spent): %s\n", money(m.NetSurplus))
	fmt.Fprintf(&b, "- Savings Rate: %s%%\n", m.SavingsRate.StringFixed(1))

	if len(m.CategoryTotals) > 0 {
		b.WriteString("Spending by category:\n")
		for _, c := range sortedCategories(m.CategoryTotals) {
			fmt.Fprintf(&b, "- %s: %s\n", c, money(m.CategoryTotals[c]))
		}
	}
	return b.String()
}

func expenseLines(expenses []ledger.Expense) string {
	if len(expenses) == 0 {
		return "No expenses recorded.\n"
	}
	var b strings.Builder
	start := 0
	if len(expenses) > maxSampleExpenses {
		start = len(expenses) - maxSampleExpenses
	}
	for _, e := range expenses[start:] {
		fmt.Fprintf(&b, "- %s | %s | %s | %s", e.Date.Format("2006-01-02"), e.Description, e.Category, money(e.Amount))
		if e.Recurring {
			fmt.Fprintf(&b, " | recurring %s", e.Frequency)
		}
		if e.Sentiment != "" {
			fmt.Fprintf(&b, " | felt %s", e.Sentiment)
		}
		if e.Note != "" {
			fmt.Fprintf(&b, " | note: %s", e.Note)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func goalLine(g *ledger.SavingsGoal) string {
	if g == nil {
		return "No savings goal set.\n"
	}
	return fmt.Sprintf("Savings goal: %q, target %s by %s\n", g.Title, money(g.TargetAmount), g.Deadline.Format("2006-01-02"))
}

func topCategory(totals map[ledger.Category]decimal.Decimal) (ledger.Category, bool) {
	var (
		best  ledger.Category
		found bool
	)
	for _, c := range sortedCategories(totals) {
		if !found || totals[c].GreaterThan(totals[best]) {
			best, found = c, true
		}
	}
	return best, found
}

func sortedCategories(totals map[ledger.Category]decimal.Decimal) []ledger.Category {
	out := make([]ledger.Category, 0, len(totals))
	for c := range totals {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// =============================================================================
// PER-FEATURE PROMPTS
// =============================================================================

func insightPrompt(s ledger.Snapshot) string {
	return "Analyze this user's monthly financial performance:\n" + summary(s) + `
Task: Provide one supportive, behavioral financial insight based on their savings rate and budget adherence.
Guidelines:
- Use plain English.
- Focus on the balance between income and spending.
- Keep it short (max 2 sentences).`
}

func forecastPrompt(s ledger.Snapshot) string {
	return "Current month so far:\n" + summary(s) + "Expenses:\n" + expenseLines(s.Expenses) + `
Task: Forecast whether the user will stay within the budget limit by month end at the current pace.
Keep it to 2 sentences and mention the projected month-end spending.`
}

func subscriptionPrompt(s ledger.Snapshot) string {
	return "Recurring expenses (annualized total " + money(s.AnnualRecurring) + "):\n" + expenseLines(s.Recurring) + `
Task: Audit these subscriptions. Point out the one most worth cancelling or renegotiating. Max 2 sentences.`
}

func wealthScorePrompt(s ledger.Snapshot) string {
	return summary(s) + goalLine(s.Goal) + `
Task: Rate the user's financial health from 0 to 100.
Answer as JSON: {"score": number, "label": string, "color": "#rrggbb", "advice": string}`
}

func anomaliesPrompt(s ledger.Snapshot) string {
	return summary(s) + "Expenses:\n" + expenseLines(s.Expenses) + `
Task: Detect unusual or risky spending. Return at most 3 alerts.
Answer as JSON: [{"title": string, "message": string, "severity": "low" | "medium" | "high"}]`
}

func freedomPrompt(s ledger.Snapshot) string {
	return summary(s) + `
Task: Project the user's path to financial independence if they keep this savings pace.
Answer as JSON: {"freedom_date": string, "yearly_growth": number, "milestones": [{"label": string, "eta_months": number, "confidence": number, "action_item": string}]}`
}

func valueAuditPrompt(s ledger.Snapshot) string {
	return "Expenses with how the user felt about them:\n" + expenseLines(s.Expenses) + `
Task: Compare spending the user found joyful with spending they regret. Suggest one reallocation. Max 2 sentences.`
}

func questPrompt(s ledger.Snapshot) string {
	return "Expenses:\n" + expenseLines(s.Expenses) + `
Task: Design one short savings challenge targeting the user's habits.
Answer as JSON: {"title": string, "description": string, "potential_savings": number, "difficulty": "Easy" | "Medium" | "Hard"}`
}

func personaPrompt(s ledger.Snapshot) string {
	return "Expenses:\n" + expenseLines(s.Expenses) + `
Task: Classify the user's spending personality.
Answer as JSON: {"name": string, "icon": string (one emoji), "description": string, "trait": string, "advice": string}`
}

func categoryPrompt(s ledger.Snapshot) string {
	cats := make([]string, len(ledger.Categories))
	for i, c := range ledger.Categories {
		cats[i] = string(c)
	}
	return summary(s) + "Expenses:\n" + expenseLines(s.Expenses) + `
Task: Suggest a monthly spending limit for each of these categories: ` + strings.Join(cats, ", ") + `.
The limits must add up to no more than the budget limit.
Answer as JSON: {"suggested_limits": {"<category>": number}, "reasoning": string}`
}

func goalStrategyPrompt(s ledger.Snapshot) string {
	return summary(s) + goalLine(s.Goal) + `
Task: Give a concrete 2-sentence strategy to reach the savings goal on time.`
}

func marketSavingsPrompt(category ledger.Category) string {
	return fmt.Sprintf(`Find specific ways or local deals to save money on %q expenses. Focus on recent news, discount sites, or trending saving hacks for this year.
Answer as JSON: {"text": string, "links": [{"title": string, "uri": string}]}`, category)
}

// chatPrompt quotes expenses from every period, not only the current one.
func chatPrompt(s ledger.Snapshot, question string) string {
	var b strings.Builder
	b.WriteString("Context about the user's finances:\n")
	b.WriteString(summary(s))
	b.WriteString(goalLine(s.Goal))
	if len(s.Trend) > 0 {
		b.WriteString("Monthly spending trend:\n")
		for _, p := range s.Trend {
			fmt.Fprintf(&b, "- %s: spent %s of %s\n", p.Period, money(p.Spent), money(p.Budget))
		}
	}
	if len(s.Recurring) > 0 {
		b.WriteString("Recurring expenses:\n")
		b.WriteString(expenseLines(s.Recurring))
	}
	b.WriteString("Expense history:\n")
	b.WriteString(expenseLines(s.History))
	b.WriteString("\nAnswer the user's latest message briefly:\n")
	b.WriteString(question)
	return b.String()
}

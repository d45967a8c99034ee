package budget

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// UngroupedName labels the section holding categories without a group.
const UngroupedName = "Ungrouped"

// CategoryStatus pairs a category with its derived status.
type CategoryStatus struct {
	CategoryID int64  `json:"category_id" yaml:"category_id"`
	Name       string `json:"name" yaml:"name"`
	SortOrder  int    `json:"sort_order" yaml:"sort_order"`
	Status     `yaml:",inline"`
}

// GroupReport is one category group with its categories in sort order.
type GroupReport struct {
	GroupID    *int64           `json:"group_id,omitempty" yaml:"group_id,omitempty"`
	Name       string           `json:"name" yaml:"name"`
	Collapsed  bool             `json:"collapsed" yaml:"collapsed"`
	Categories []CategoryStatus `json:"categories" yaml:"categories"`
	Budget     decimal.Decimal  `json:"budget" yaml:"budget"`
	Activity   decimal.Decimal  `json:"activity" yaml:"activity"`
	Remaining  decimal.Decimal  `json:"remaining" yaml:"remaining"`
}

// MonthReport summarizes one month in a single display currency.
type MonthReport struct {
	Year     int           `json:"year" yaml:"year"`
	Month    int           `json:"month" yaml:"month"`
	Currency string        `json:"currency" yaml:"currency"`
	Groups   []GroupReport `json:"groups" yaml:"groups"`

	TotalBudget    decimal.Decimal `json:"total_budget" yaml:"total_budget"`
	TotalActivity  decimal.Decimal `json:"total_activity" yaml:"total_activity"`
	TotalRemaining decimal.Decimal `json:"total_remaining" yaml:"total_remaining"`
	Income         decimal.Decimal `json:"income" yaml:"income"`
	Expenses       decimal.Decimal `json:"expenses" yaml:"expenses"`
	Net            decimal.Decimal `json:"net" yaml:"net"`

	Uncategorized      decimal.Decimal `json:"uncategorized" yaml:"uncategorized"`
	UncategorizedCount int             `json:"uncategorized_count" yaml:"uncategorized_count"`
	Unconverted        int             `json:"unconverted" yaml:"unconverted"`
	TransactionCount   int             `json:"transaction_count" yaml:"transaction_count"`
	RatesFetchedAt     *time.Time      `json:"rates_fetched_at,omitempty" yaml:"rates_fetched_at,omitempty"`
	GeneratedAt        time.Time       `json:"generated_at" yaml:"generated_at"`
}

// Category looks up a category's status in the report.
func (r MonthReport) Category(id int64) (CategoryStatus, bool) {
	for _, g := range r.Groups {
		for _, c := range g.Categories {
			if c.CategoryID == id {
				return c, true
			}
		}
	}
	return CategoryStatus{}, false
}

// TierCounts returns how many categories sit in each tier.
func (r MonthReport) TierCounts() map[Tier]int {
	counts := map[Tier]int{OnTrack: 0, Warning: 0, OverBudget: 0}
	for _, g := range r.Groups {
		for _, c := range g.Categories {
			counts[c.Tier]++
		}
	}
	return counts
}

// ReportInput is everything BuildMonthReport needs; callers load it from storage.
type ReportInput struct {
	Year         int
	Month        int
	Currency     string
	Groups       []core.CategoryGroup
	Categories   []core.Category
	Assignments  []core.BudgetAssignment
	Transactions []core.Transaction
	Converter    Converter
	Now          time.Time
}

// BudgetFor returns the category's budget for the month, honoring a monthly assignment.
func BudgetFor(c core.Category, year, month int, assignments []core.BudgetAssignment) decimal.Decimal {
	for _, a := range assignments {
		if a.CategoryID == c.ID && a.Year == year && a.Month == month {
			return a.Amount
		}
	}
	return c.Budget
}

// BuildMonthReport derives every category's status for the month and groups
// them by category group in sort order. Categories without a group, or whose
// group no longer exists, are collected in a trailing ungrouped section.
func BuildMonthReport(in ReportInput) MonthReport {
	rep := MonthReport{
		Year:           in.Year,
		Month:          in.Month,
		Currency:       in.Currency,
		TotalBudget:    decimal.Zero,
		TotalActivity:  decimal.Zero,
		TotalRemaining: decimal.Zero,
		Income:         decimal.Zero,
		Expenses:       decimal.Zero,
		Uncategorized:  decimal.Zero,
		GeneratedAt:    in.Now,
	}

	known := make(map[int64]bool, len(in.Categories))
	for _, c := range in.Categories {
		known[c.ID] = true
	}

	activity := make(map[int64]decimal.Decimal, len(in.Categories))
	for _, tx := range in.Transactions {
		if !tx.Date.InMonth(in.Year, in.Month) {
			continue
		}
		rep.TransactionCount++
		amount, ok := normalize(tx, in.Converter, in.Currency)
		if !ok {
			rep.Unconverted++
		}
		if tx.Type == core.Income {
			rep.Income = rep.Income.Add(amount)
			continue
		}
		rep.Expenses = rep.Expenses.Add(amount)
		if tx.CategoryID == 0 || !known[tx.CategoryID] {
			rep.Uncategorized = rep.Uncategorized.Add(amount)
			rep.UncategorizedCount++
			continue
		}
		activity[tx.CategoryID] = activity[tx.CategoryID].Add(amount)
	}
	rep.Net = rep.Income.Sub(rep.Expenses)

	groups := append([]core.CategoryGroup(nil), in.Groups...)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].SortOrder != groups[j].SortOrder {
			return groups[i].SortOrder < groups[j].SortOrder
		}
		return groups[i].ID < groups[j].ID
	})
	cats := append([]core.Category(nil), in.Categories...)
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].SortOrder != cats[j].SortOrder {
			return cats[i].SortOrder < cats[j].SortOrder
		}
		return cats[i].ID < cats[j].ID
	})

	groupIndex := make(map[int64]int, len(groups))
	for i, g := range groups {
		id := g.ID
		groupIndex[g.ID] = i
		rep.Groups = append(rep.Groups, newGroupReport(&id, g.Name, g.Collapsed))
	}
	ungrouped := newGroupReport(nil, UngroupedName, false)

	for _, c := range cats {
		st := CategoryStatus{
			CategoryID: c.ID,
			Name:       c.Name,
			SortOrder:  c.SortOrder,
			Status:     DeriveStatus(BudgetFor(c, in.Year, in.Month, in.Assignments), activity[c.ID]),
		}
		target := &ungrouped
		if c.GroupID != nil {
			if i, ok := groupIndex[*c.GroupID]; ok {
				target = &rep.Groups[i]
			}
		}
		target.add(st)
		rep.TotalBudget = rep.TotalBudget.Add(st.Budget)
		rep.TotalActivity = rep.TotalActivity.Add(st.Activity)
	}
	if len(ungrouped.Categories) > 0 {
		rep.Groups = append(rep.Groups, ungrouped)
	}
	rep.TotalRemaining = rep.TotalBudget.Sub(rep.TotalActivity)
	return rep
}

func newGroupReport(id *int64, name string, collapsed bool) GroupReport {
	return GroupReport{
		GroupID:    id,
		Name:       name,
		Collapsed:  collapsed,
		Categories: []CategoryStatus{},
		Budget:     decimal.Zero,
		Activity:   decimal.Zero,
		Remaining:  decimal.Zero,
	}
}

func (g *GroupReport) add(st CategoryStatus) {
	g.Categories = append(g.Categories, st)
	g.Budget = g.Budget.Add(st.Budget)
	g.Activity = g.Activity.Add(st.Activity)
	g.Remaining = g.Budget.Sub(g.Activity)
}

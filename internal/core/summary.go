package core

// BalancePoint is one step of a running balance.
type BalancePoint struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	ID      string  `json:"id"`
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

// MonthSummary is a compact summary for a specific month in the display currency.
type MonthSummary struct {
	Month      MonthKey `json:"month"`
	Net        float64  `json:"net"`
	Expense    float64  `json:"expense"`
	Budget     float64  `json:"budget"`
	OverBudget bool     `json:"over_budget"`
}

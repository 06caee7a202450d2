package accounting

// =============================================================================
// PROFITABILITY CALCULATOR - Rent income vs expenses
// =============================================================================

// NetProfit nets total allocated rent income against total expenses.
// The caller pre-filters both inputs to the relevant property/period
// scope; there is no filtering here. The result may be negative, and
// empty inputs yield zero.
func NetProfit(rentAllocations []Allocation, expenses []Expense) Money {
	totalIncome := SumAllocations(rentAllocations)

	totalExpense := ZeroMoney()
	for _, e := range expenses {
		totalExpense = totalExpense.Add(e.Amount)
	}

	return totalIncome.Sub(totalExpense)
}

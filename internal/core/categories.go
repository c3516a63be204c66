package core

// Primary personal-finance categories as reported by the aggregator feed.
// They are informational: the aggregation never excludes a category.
const (
	CategoryIncome             = "INCOME"
	CategoryTransferIn         = "TRANSFER_IN"
	CategoryTransferOut        = "TRANSFER_OUT"
	CategoryLoanPayments       = "LOAN_PAYMENTS"
	CategoryBankFees           = "BANK_FEES"
	CategoryEntertainment      = "ENTERTAINMENT"
	CategoryFoodAndDrink       = "FOOD_AND_DRINK"
	CategoryGeneralMerchandise = "GENERAL_MERCHANDISE"
	CategoryHomeImprovement    = "HOME_IMPROVEMENT"
	CategoryMedical            = "MEDICAL"
	CategoryPersonalCare       = "PERSONAL_CARE"
	CategoryGeneralServices    = "GENERAL_SERVICES"
	CategoryGovernment         = "GOVERNMENT_AND_NON_PROFIT"
	CategoryTransportation     = "TRANSPORTATION"
	CategoryTravel             = "TRAVEL"
	CategoryRentAndUtilities   = "RENT_AND_UTILITIES"
)

// IsInflow reports whether a category represents money coming in. Report
// totals use it to separate spending from income.
func IsInflow(category string) bool {
	return category == CategoryIncome || category == CategoryTransferIn
}

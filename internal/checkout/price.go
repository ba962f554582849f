package checkout

// FinalPrice derives the payable amount. Pure: no clock, no network.
// Only the absolute amount counts; the percent on an application is
// informational, the resolver folds it into the amount at validation
// time. Never returns a negative price.
func FinalPrice(basePrice int, d *DiscountApplication) int {
	if d == nil {
		return basePrice
	}
	final := basePrice - d.Amount
	if final < 0 {
		return 0
	}
	return final
}

package promo

// Plan is one promotion duration with its star price. The table is
// fixed configuration data, not derived from anything.
type Plan struct {
	Key   string
	Label string
	Stars int
	Days  int
}

// Plans in menu order.
var Plans = []Plan{
	{Key: "week", Label: "1 Week", Stars: 10, Days: 7},
	{Key: "month", Label: "1 Month", Stars: 30, Days: 30},
	{Key: "3months", Label: "3 Months", Stars: 80, Days: 90},
	{Key: "6months", Label: "6 Months", Stars: 160, Days: 180},
	{Key: "year", Label: "1 Year", Stars: 300, Days: 365},
}

// PlanByKey resolves a duration key to its plan.
func PlanByKey(key string) (Plan, bool) {
	for _, plan := range Plans {
		if plan.Key == key {
			return plan, true
		}
	}
	return Plan{}, false
}

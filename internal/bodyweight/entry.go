package bodyweight

// WeightEntry is one body-weight measurement. Date is a calendar day
// in YYYY-MM-DD form and is unique, a second entry for the same day
// replaces the first.
type WeightEntry struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

package shared

// Entrance is published once a vehicle entry has been recorded in the ledger.
type Entrance struct {
	VehiclePlate  string `json:"vehicle_plate"`
	EntryDateTime string `json:"entry_date_time"`
	EntryId       string `json:"entry_id"`
	Ts            string `json:"ts"`
}

// Exit is published once a parking session has been closed and billed.
// ForeignFee is nil when the exchange rate could not be fetched.
type Exit struct {
	VehiclePlate    string   `json:"vehicle_plate"`
	EntryDateTime   string   `json:"entry_date_time"`
	ExitDateTime    string   `json:"exit_date_time"`
	ElapsedSeconds  int64    `json:"elapsed_seconds"`
	Fee             float64  `json:"fee"`
	ForeignFee      *float64 `json:"foreign_fee,omitempty"`
	ForeignCurrency string   `json:"foreign_currency,omitempty"`
	ExitId          string   `json:"exit_id"`
	Ts              string   `json:"ts"`
}

package entity

// HistoryEntry is one past transaction of the active account, as reported by
// the explorer service. ValueWei is the raw amount in the smallest unit; a
// record the service returned without a value field carries "0".
type HistoryEntry struct {
	Hash      string `json:"hash"`
	ValueWei  string `json:"valueWei"`
	Succeeded bool   `json:"succeeded"`
}

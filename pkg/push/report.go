package push

import (
	"bytes"
	"encoding/json"
)

// Report is the body a device posts after executing delivered commands.
type Report struct {
	Response            json.RawMessage     `json:"response,omitempty"`
	Error               json.RawMessage     `json:"error,omitempty"`
	TransactionsResults []TransactionResult `json:"transactions_results,omitempty"`
}

// TransactionResult is the outcome of one command of a batch.
type TransactionResult struct {
	TransactionID string          `json:"transactionid"`
	Success       *bool           `json:"success,omitempty"`
	Response      json.RawMessage `json:"response,omitempty"`
	Error         json.RawMessage `json:"error,omitempty"`
}

// IsBatch reports whether the report carries per-transaction results.
func (r *Report) IsBatch() bool {
	return len(r.TransactionsResults) > 0
}

func (r *TransactionResult) failed() bool {
	return (r.Success != nil && !*r.Success) || !isEmptyJSON(r.Error)
}

// errorText renders an error field. Devices send strings or objects.
func errorText(raw json.RawMessage) string {
	if isEmptyJSON(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isEmptyJSON(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte(`""`))
}

package mccmnc

import (
	"encoding/json"
	"os"
	"sync"
)

// NetworkOperator is an entry in mcc_mnc.json.
type NetworkOperator struct {
	MCC         string `json:"mcc"`
	MNC         string `json:"mnc"`
	ISO         string `json:"iso"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Name        string `json:"name"`
}

var (
	mu        sync.RWMutex
	operators map[string]string
)

// LoadOperators loads the mcc_mnc.json lookup table. Safe to call
// more than once; the last successful load wins.
func LoadOperators(path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []NetworkOperator
	if err := json.Unmarshal(file, &entries); err != nil {
		return err
	}
	table := make(map[string]string, len(entries))
	for _, op := range entries {
		table[op.MCC+op.MNC] = op.Name
	}
	mu.Lock()
	operators = table
	mu.Unlock()
	return nil
}

// GetOperatorName resolves an operator name for a numeric MCC/MNC
// pair, or "" when the table is not loaded or has no entry.
func GetOperatorName(mcc, mnc string) string {
	mu.RLock()
	defer mu.RUnlock()
	return operators[mcc+mnc]
}

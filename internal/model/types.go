package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Command   string      `json:"command"`
	Prices    PriceStatus `json:"prices"`
	Partial   bool        `json:"partial"`
}

// PriceStatus reports how display prices were sourced for this invocation.
// Prices are advisory; "unavailable" never fails a command.
type PriceStatus struct {
	Status string `json:"status"` // fetched | cached | partial | unavailable | bypass
	AgeMS  int64  `json:"age_ms,omitempty"`
}

type AssetResolution struct {
	Input    string `json:"input"`
	ChainID  string `json:"chain_id"`
	Symbol   string `json:"symbol"`
	AssetID  string `json:"asset_id"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	Native   bool   `json:"native"`
}

package dhan

import "encoding/json"

// ChartRequest is the JSON body of both chart endpoints.
// Interval is only sent to the intraday endpoint.
type ChartRequest struct {
	SecurityID      int64  `json:"securityId"`
	ExchangeSegment string `json:"exchangeSegment"`
	Instrument      string `json:"instrument"`
	Interval        string `json:"interval,omitempty"`
	FromDate        string `json:"fromDate"`
	ToDate          string `json:"toDate"`
	OI              bool   `json:"oi"`
}

// ChartResponse holds the parallel arrays returned on success. Elements are
// pointers so a JSON null is told apart from a zero price.
type ChartResponse struct {
	Timestamp []*float64 `json:"timestamp"`
	Open      []*float64 `json:"open"`
	High      []*float64 `json:"high"`
	Low       []*float64 `json:"low"`
	Close     []*float64 `json:"close"`
	Volume    []*float64 `json:"volume,omitempty"`
}

// ErrorResponse is the body shape of a rejected request.
type ErrorResponse struct {
	ErrorType    string `json:"errorType"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Diagnostics is what a fetch keeps for the diagnostic panel.
type Diagnostics struct {
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers"`
	Request  ChartRequest      `json:"request"`
	Status   int               `json:"status,omitempty"`
	Response json.RawMessage   `json:"response,omitempty"`
}

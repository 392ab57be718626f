package dhan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"spreadboard/internal/ohlc"

	"github.com/tidwall/gjson"
)

const dateLayout = "2006-01-02"

// FetchError is a recoverable chart fetch failure.
type FetchError struct {
	Status  int
	Type    string
	Code    string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("chart fetch failed: %v", e.Err)
	case e.Code != "":
		return fmt.Sprintf("chart fetch failed: status=%d code=%s: %s", e.Status, e.Code, e.Message)
	default:
		return fmt.Sprintf("chart fetch failed: status=%d: %s", e.Status, e.Message)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// FetchRequest identifies one leg series to download.
type FetchRequest struct {
	SecurityID int64
	Leg        ohlc.Leg
	Interval   string
	From       time.Time
	To         time.Time
}

// FetchResult bundles the table with what was sent and received.
// Table is nil when the fetch failed.
type FetchResult struct {
	Table *ohlc.Table `json:"table"`
	Diagnostics
}

// Session is the intraday trading window sent with same-day requests.
type Session struct {
	Open  string
	Close string
}

var DefaultSession = Session{Open: "09:15:00", Close: "15:30:00"}

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialSource
	loc        *time.Location
	session    Session
}

// Option customizes a RESTClient.
type Option func(*RESTClient)

// WithLocation sets the zone timestamps are converted to.
func WithLocation(loc *time.Location) Option {
	return func(c *RESTClient) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithSession overrides the intraday window.
func WithSession(s Session) Option {
	return func(c *RESTClient) {
		if s.Open != "" && s.Close != "" {
			c.session = s
		}
	}
}

func NewRESTClient(baseURL string, timeout time.Duration, creds CredentialSource, opts ...Option) *RESTClient {
	c := &RESTClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		loc:        time.Local,
		session:    DefaultSession,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SameDay reports whether from and to fall on the same calendar date.
func SameDay(from, to time.Time) bool {
	return from.Format(dateLayout) == to.Format(dateLayout)
}

// BuildRequest picks the endpoint and body for req.
func (c *RESTClient) BuildRequest(req FetchRequest) (string, ChartRequest, error) {
	seg, err := SegmentFor(req.Leg)
	if err != nil {
		return "", ChartRequest{}, err
	}
	body := ChartRequest{
		SecurityID:      req.SecurityID,
		ExchangeSegment: seg.Exchange,
		Instrument:      seg.Instrument,
		OI:              false,
	}

	if SameDay(req.From, req.To) {
		day := req.From.Format(dateLayout)
		body.Interval = IntradayCode(req.Interval)
		body.FromDate = day + " " + c.session.Open
		body.ToDate = day + " " + c.session.Close
		return c.baseURL + IntradayPath, body, nil
	}

	body.FromDate = req.From.Format(dateLayout)
	body.ToDate = req.To.Format(dateLayout)
	return c.baseURL + HistoricalPath, body, nil
}

// FetchOHLC issues exactly one chart request. The returned result is never nil:
// on failure it carries the diagnostics and a nil Table alongside a *FetchError.
func (c *RESTClient) FetchOHLC(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	endpoint, body, err := c.BuildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var creds Credentials
	if c.creds != nil {
		creds = c.creds.Credentials()
	}
	headers := Headers(creds)
	result := &FetchResult{Diagnostics: Diagnostics{
		Endpoint: endpoint,
		Headers:  maskedHeaders(headers),
		Request:  body,
	}}

	payload, err := json.Marshal(body)
	if err != nil {
		return result, &FetchError{Err: fmt.Errorf("encode payload: %w", err)}
	}

	// Construct the POST request with context for timeout/cancel support
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return result, &FetchError{Err: fmt.Errorf("create request: %w", err)}
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return result, &FetchError{Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	result.Status = resp.StatusCode
	if gjson.ValidBytes(raw) {
		result.Response = json.RawMessage(raw)
	} else if len(raw) > 0 {
		quoted, _ := json.Marshal(string(raw))
		result.Response = quoted
	}

	if gjson.GetBytes(raw, "errorCode").Exists() || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, rejected(resp.StatusCode, raw)
	}

	var chart ChartResponse
	if err := json.Unmarshal(raw, &chart); err != nil {
		return result, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	table, err := ParseChart(chart, c.loc)
	if err != nil {
		return result, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("parse result: %w", err)}
	}

	result.Table = table
	return result, nil
}

// rejected builds the FetchError for an error body. Bodies that don't match
// ErrorResponse (numeric codes, plain text) fall back to raw lookups.
func rejected(status int, raw []byte) *FetchError {
	var body ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		body = ErrorResponse{
			ErrorType:    gjson.GetBytes(raw, "errorType").String(),
			ErrorCode:    gjson.GetBytes(raw, "errorCode").String(),
			ErrorMessage: gjson.GetBytes(raw, "errorMessage").String(),
		}
	}
	if body.ErrorMessage == "" {
		body.ErrorMessage = http.StatusText(status)
	}
	return &FetchError{Status: status, Type: body.ErrorType, Code: body.ErrorCode, Message: body.ErrorMessage}
}

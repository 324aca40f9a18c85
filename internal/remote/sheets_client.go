package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"hostdesk/syncengine/internal/constants"
	"hostdesk/syncengine/internal/metrics"
	"hostdesk/syncengine/internal/record"
)

// TokenProvider yields bearer tokens for the spreadsheet API. Implementations
// own refresh and expiry; callers just ask for a usable token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TableClient is the remote side of the engine: the spreadsheet tab as a CRUD
// table, nothing more. No merge logic lives here.
type TableClient interface {
	Pull(ctx context.Context, tableName, tab string, schema []string) (*record.Table, error)
	Push(ctx context.Context, tab string, tbl *record.Table) error
}

// SheetsClient implements TableClient against a Sheets-style values API
type SheetsClient struct {
	client        *http.Client
	baseURL       string
	spreadsheetID string
	tokens        TokenProvider
	limiter       *rate.Limiter
	metrics       *metrics.MetricsRegistry
}

// NewSheetsClient creates a client for one spreadsheet. The limiter guards
// the API quota; sheets allow roughly one request per second sustained.
func NewSheetsClient(baseURL, spreadsheetID string, tokens TokenProvider) *SheetsClient {
	return &SheetsClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:       baseURL,
		spreadsheetID: spreadsheetID,
		tokens:        tokens,
		limiter:       rate.NewLimiter(1, 3),
	}
}

var _ TableClient = (*SheetsClient)(nil)

// SetMetrics attaches the Prometheus registry. Optional.
func (c *SheetsClient) SetMetrics(m *metrics.MetricsRegistry) {
	c.metrics = m
}

func (c *SheetsClient) count(operation string, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.RemoteCallsTotal.WithLabelValues(operation, result).Inc()
}

// Pull reads the whole tab. The first row is the header; rows with fewer
// cells than the header are padded with empty strings and extra cells are
// dropped. Returned records have identities ensured and hashes computed.
func (c *SheetsClient) Pull(ctx context.Context, tableName, tab string, schema []string) (_ *record.Table, err error) {
	defer func() { c.count("pull", err) }()

	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s",
		c.baseURL,
		c.spreadsheetID,
		url.PathEscape(tab),
	)

	body, err := c.do(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}

	var valuesResp ValuesResponse
	if err := json.Unmarshal(body, &valuesResp); err != nil {
		return nil, fmt.Errorf("failed to decode values response: %w", err)
	}

	tbl := record.NewTable(tableName, schema)
	if len(valuesResp.Values) == 0 {
		return tbl, nil
	}

	header := valuesResp.Values[0]
	for _, row := range valuesResp.Values[1:] {
		r := record.NewRecord()
		for i, name := range header {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			switch name {
			case record.FieldSyncID:
				r.SyncID = value
			case record.FieldLastSync:
				r.LastSync = record.ParseTimestamp(value)
			case record.FieldContentHash:
				// Derived; never trusted from the remote side.
			default:
				r.Set(name, value)
			}
		}
		tbl.Append(r)
	}

	tbl.EnsureIDs()
	tbl.Rehash()
	return tbl, nil
}

// Push replaces the tab's entire contents with the table's rows, in order.
// Full overwrite on purpose: humans reorder rows in the sheet, and row-level
// patching would fight them.
func (c *SheetsClient) Push(ctx context.Context, tab string, tbl *record.Table) (err error) {
	defer func() { c.count("push", err) }()

	clearEndpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:clear",
		c.baseURL,
		c.spreadsheetID,
		url.PathEscape(tab),
	)
	if _, err := c.do(ctx, "POST", clearEndpoint, []byte("{}")); err != nil {
		return err
	}

	fields := tbl.FieldOrder()
	header := append([]string{record.FieldSyncID}, fields...)
	header = append(header, record.FieldLastSync)

	values := make([][]string, 0, len(tbl.Records)+1)
	values = append(values, header)
	for _, r := range tbl.Records {
		row := make([]string, 0, len(header))
		row = append(row, r.SyncID)
		for _, name := range fields {
			row = append(row, r.Get(name))
		}
		row = append(row, record.FormatTimestamp(r.LastSync))
		values = append(values, row)
	}

	payload := ValuesPayload{
		Range:          tab,
		MajorDimension: "ROWS",
		Values:         values,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal values payload: %w", err)
	}

	updateEndpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s?valueInputOption=RAW",
		c.baseURL,
		c.spreadsheetID,
		url.PathEscape(tab),
	)
	if _, err := c.do(ctx, "PUT", updateEndpoint, payloadBytes); err != nil {
		return err
	}
	return nil
}

// do executes one authenticated API call and returns the response body
func (c *SheetsClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RemoteError{
			Code:    constants.ErrCodeNetworkError,
			Message: constants.GetErrorMessage(constants.ErrCodeNetworkError),
			Err:     err,
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &RemoteError{
			Code:    constants.ErrCodeTokenExchange,
			Message: constants.GetErrorMessage(constants.ErrCodeTokenExchange),
			Err:     err,
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RemoteError{
			Code:    constants.ErrCodeNetworkError,
			Message: constants.GetErrorMessage(constants.ErrCodeNetworkError),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if err := c.handleHTTPError(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// handleHTTPError converts HTTP errors to RemoteError
func (c *SheetsClient) handleHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &RemoteError{
			Code:    constants.ErrCodeInvalidToken,
			Message: constants.GetErrorMessage(constants.ErrCodeInvalidToken),
			Details: string(body),
		}
	case http.StatusNotFound:
		return &RemoteError{
			Code:    constants.ErrCodeSpreadsheetMissing,
			Message: constants.GetErrorMessage(constants.ErrCodeSpreadsheetMissing),
			Details: string(body),
		}
	case http.StatusBadRequest:
		// The values API answers 400 "Unable to parse range" for a tab
		// that does not exist in the spreadsheet.
		return &RemoteError{
			Code:    constants.ErrCodeTabNotFound,
			Message: constants.GetErrorMessage(constants.ErrCodeTabNotFound),
			Details: string(body),
		}
	case http.StatusTooManyRequests:
		return &RemoteError{
			Code:    constants.ErrCodeRateLimited,
			Message: constants.GetErrorMessage(constants.ErrCodeRateLimited),
			Details: string(body),
		}
	default:
		return &RemoteError{
			Code:    constants.ErrCodeNetworkError,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
			Details: string(body),
		}
	}
}

// Sheets API payload structures

type ValuesResponse struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

type ValuesPayload struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// RemoteError represents a spreadsheet API error
type RemoteError struct {
	Code    string
	Message string
	Details string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

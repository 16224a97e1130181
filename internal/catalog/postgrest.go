// Package catalog reads the gym and trainer catalog, either from the managed
// Supabase project over PostgREST or from a seeded in-memory copy.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client issues PostgREST requests authenticated with the service role key.
type Client struct {
	restURL    string
	serviceKey string
	httpClient *http.Client
}

// NewClient builds a Client for the project at baseURL (https://<ref>.supabase.co).
func NewClient(baseURL, serviceKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		restURL:    strings.TrimRight(baseURL, "/") + "/rest/v1",
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is returned for non-2xx PostgREST responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase API error %d: %s", e.StatusCode, e.Message)
}

// OrderDirection for Order.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// QueryBuilder assembles a read query against one table.
type QueryBuilder struct {
	client   *Client
	table    string
	columns  string
	filters  []string
	orders   []string
	limitVal *int
}

// From starts a query on table.
func (c *Client) From(table string) *QueryBuilder {
	return &QueryBuilder{client: c, table: table, columns: "*"}
}

// Select sets the column list.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	return q.filter(column, "eq", fmt.Sprint(value))
}

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value interface{}) *QueryBuilder {
	return q.filter(column, "gte", fmt.Sprint(value))
}

// Lte adds a less-than-or-equal filter.
func (q *QueryBuilder) Lte(column string, value interface{}) *QueryBuilder {
	return q.filter(column, "lte", fmt.Sprint(value))
}

// Contains adds an array containment filter.
func (q *QueryBuilder) Contains(column string, values ...string) *QueryBuilder {
	return q.filter(column, "cs", "{"+strings.Join(values, ",")+"}")
}

func (q *QueryBuilder) filter(column, op, value string) *QueryBuilder {
	q.filters = append(q.filters, column+"="+url.QueryEscape(op+"."+value))
	return q
}

// Order appends an ordering clause.
func (q *QueryBuilder) Order(column string, dir OrderDirection) *QueryBuilder {
	q.orders = append(q.orders, column+"."+string(dir))
	return q
}

// Limit caps the number of rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limitVal = &n
	return q
}

func (q *QueryBuilder) buildURL() string {
	params := []string{"select=" + url.QueryEscape(q.columns)}
	params = append(params, q.filters...)
	if len(q.orders) > 0 {
		params = append(params, "order="+strings.Join(q.orders, ","))
	}
	if q.limitVal != nil {
		params = append(params, fmt.Sprintf("limit=%d", *q.limitVal))
	}
	return q.client.restURL + "/" + url.PathEscape(q.table) + "?" + strings.Join(params, "&")
}

// ExecuteInto runs the query and decodes the JSON array into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.buildURL(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", q.client.serviceKey)
	req.Header.Set("Authorization", "Bearer "+q.client.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := q.client.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", q.table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", q.table, err)
	}
	if resp.StatusCode >= 400 {
		return parseError(body, resp.StatusCode)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal %s response: %w", q.table, err)
	}
	return nil
}

func parseError(body []byte, statusCode int) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Message == "" {
		return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{StatusCode: statusCode, Code: errResp.Code, Message: errResp.Message}
}

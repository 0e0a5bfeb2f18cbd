package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DatabaseClient handles Supabase Database (PostgREST) operations.
type DatabaseClient struct {
	client *Client
}

// From starts a query builder for a table.
func (d *DatabaseClient) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  d.client,
		table:   table,
		method:  "GET",
		columns: "*",
		headers: make(map[string]string),
	}
}

// =============================================================================
// Query Builder
// =============================================================================

type authMode int

const (
	authAnon authMode = iota
	authToken
	authService
)

// QueryBuilder builds and executes database queries. A builder is single use.
type QueryBuilder struct {
	client      *Client
	table       string
	method      string
	columns     string
	filters     []string
	orders      []string
	limitVal    *int
	offsetVal   *int
	onConflict  string
	body        []byte
	headers     map[string]string
	single      bool
	mode        authMode
	accessToken string
	err         error
}

// Select specifies columns to select.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.method = "GET"
	q.columns = columns
	return q
}

// Insert inserts one record or a slice of records in a single request.
func (q *QueryBuilder) Insert(data any) *QueryBuilder {
	q.method = "POST"
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Upsert inserts records, merging rows that collide on onConflict.
func (q *QueryBuilder) Upsert(data any, onConflict string) *QueryBuilder {
	q.method = "POST"
	q.setBody(data)
	q.headers["Prefer"] = "return=representation,resolution=merge-duplicates"
	q.onConflict = onConflict
	return q
}

// Update updates records matching the filters.
func (q *QueryBuilder) Update(data any) *QueryBuilder {
	q.method = "PATCH"
	q.setBody(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Delete deletes records matching the filters.
func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = "DELETE"
	q.headers["Prefer"] = "return=representation"
	return q
}

// ReturnMinimal asks PostgREST not to echo written rows. Writes under row
// level security need this when the caller may insert rows it cannot read.
func (q *QueryBuilder) ReturnMinimal() *QueryBuilder {
	prefer := "return=minimal"
	if q.onConflict != "" {
		prefer += ",resolution=merge-duplicates"
	}
	q.headers["Prefer"] = prefer
	return q
}

func (q *QueryBuilder) setBody(data any) {
	body, err := json.Marshal(data)
	if err != nil {
		q.err = fmt.Errorf("marshal body: %w", err)
		return
	}
	q.body = body
}

// =============================================================================
// Filters
// =============================================================================

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value any) *QueryBuilder {
	return q.Filter(column, OpEq, value)
}

// Neq adds a not-equal filter.
func (q *QueryBuilder) Neq(column string, value any) *QueryBuilder {
	return q.Filter(column, OpNeq, value)
}

// Gt adds a greater-than filter.
func (q *QueryBuilder) Gt(column string, value any) *QueryBuilder {
	return q.Filter(column, OpGt, value)
}

// Gte adds a greater-than-or-equal filter.
func (q *QueryBuilder) Gte(column string, value any) *QueryBuilder {
	return q.Filter(column, OpGte, value)
}

// Lt adds a less-than filter.
func (q *QueryBuilder) Lt(column string, value any) *QueryBuilder {
	return q.Filter(column, OpLt, value)
}

// Lte adds a less-than-or-equal filter.
func (q *QueryBuilder) Lte(column string, value any) *QueryBuilder {
	return q.Filter(column, OpLte, value)
}

// Like adds a LIKE filter.
func (q *QueryBuilder) Like(column, pattern string) *QueryBuilder {
	return q.Filter(column, OpLike, pattern)
}

// ILike adds a case-insensitive LIKE filter.
func (q *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return q.Filter(column, OpILike, pattern)
}

// Is adds an IS filter (for null, true, false).
func (q *QueryBuilder) Is(column string, value any) *QueryBuilder {
	return q.Filter(column, OpIs, value)
}

// In adds an IN filter.
func (q *QueryBuilder) In(column string, values []any) *QueryBuilder {
	strValues := make([]string, len(values))
	for i, v := range values {
		strValues[i] = fmt.Sprintf("%v", v)
	}
	q.filters = append(q.filters, url.QueryEscape(column)+"=in.("+url.QueryEscape(strings.Join(strValues, ","))+")")
	return q
}

// Filter adds a filter with an explicit operator.
func (q *QueryBuilder) Filter(column string, op FilterOperator, value any) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=%s.%s", url.QueryEscape(column), op, url.QueryEscape(fmt.Sprint(value))))
	return q
}

// =============================================================================
// Ordering and Pagination
// =============================================================================

// Order adds an order clause.
func (q *QueryBuilder) Order(column string, opts ...OrderDirection) *QueryBuilder {
	dir := OrderAsc
	if len(opts) > 0 {
		dir = opts[0]
	}
	q.orders = append(q.orders, fmt.Sprintf("%s.%s", column, dir))
	return q
}

// Limit sets the maximum number of rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limitVal = &n
	return q
}

// Offset sets the number of rows to skip.
func (q *QueryBuilder) Offset(n int) *QueryBuilder {
	q.offsetVal = &n
	return q
}

// Single expects a single row result.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	q.headers["Accept"] = "application/vnd.pgrst.object+json"
	return q
}

// WithToken runs the query as the user owning token, under row level security.
func (q *QueryBuilder) WithToken(token string) *QueryBuilder {
	if token == "" {
		return q
	}
	q.mode = authToken
	q.accessToken = token
	return q
}

// WithServiceKey runs the query with the service role key.
func (q *QueryBuilder) WithServiceKey() *QueryBuilder {
	q.mode = authService
	return q
}

// =============================================================================
// Execution
// =============================================================================

// Execute executes the query and returns raw bytes.
func (q *QueryBuilder) Execute(ctx context.Context) ([]byte, error) {
	if q.err != nil {
		return nil, q.err
	}

	urlStr := q.buildURL()

	if q.mode == authAnon {
		if token := AccessTokenFromContext(ctx); token != "" {
			q.WithToken(token)
		}
	}

	var (
		respBody   []byte
		statusCode int
		err        error
	)
	switch q.mode {
	case authToken:
		respBody, statusCode, err = q.client.requestWithToken(ctx, q.method, urlStr, q.body, q.headers, q.accessToken)
	case authService:
		respBody, statusCode, err = q.client.requestWithServiceKey(ctx, q.method, urlStr, q.body, q.headers)
	default:
		respBody, statusCode, err = q.client.request(ctx, q.method, urlStr, q.body, q.headers)
	}
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	return respBody, nil
}

// ExecuteInto executes the query and unmarshals into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest any) error {
	data, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// buildURL builds the request URL.
func (q *QueryBuilder) buildURL() string {
	urlStr := q.client.restURL + "/" + url.PathEscape(q.table)

	params := make([]string, 0, len(q.filters)+4)

	if q.method == "GET" && q.columns != "" {
		params = append(params, "select="+url.QueryEscape(q.columns))
	}

	params = append(params, q.filters...)

	if len(q.orders) > 0 {
		params = append(params, "order="+strings.Join(q.orders, ","))
	}
	if q.limitVal != nil {
		params = append(params, fmt.Sprintf("limit=%d", *q.limitVal))
	}
	if q.offsetVal != nil {
		params = append(params, fmt.Sprintf("offset=%d", *q.offsetVal))
	}
	if q.onConflict != "" {
		params = append(params, "on_conflict="+url.QueryEscape(q.onConflict))
	}

	if len(params) > 0 {
		urlStr += "?" + strings.Join(params, "&")
	}

	return urlStr
}

// internal/clients/catalog_client.go
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"libracatalog/internal/catalog"
	"libracatalog/internal/eventstore"
)

var _ catalog.Service = (*CatalogClient)(nil)

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	Status int
	Code   string
	Detail string
	Errors []catalog.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog api: %d %s: %s", e.Status, e.Code, e.Detail)
}

// Is matches the catalog sentinel that corresponds to the error code, so
// callers can treat remote and local failures alike.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case catalog.CodeValidation:
		return target == catalog.ErrValidation
	case catalog.CodeDuplicate:
		return target == catalog.ErrConflict
	case catalog.CodeNotFound:
		return target == catalog.ErrNotFound
	case catalog.CodeRateLimited:
		return target == catalog.ErrRateLimited
	}
	return false
}

// CatalogClient talks to the catalog API over HTTP.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCatalogClient(baseURL string, httpClient *http.Client) *CatalogClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &CatalogClient{baseURL: baseURL, httpClient: httpClient}
}

func (c *CatalogClient) CreateBook(ctx context.Context, candidate catalog.BookCandidate) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodPost, "/books", nil, candidate, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *CatalogClient) ListBooks(ctx context.Context, q catalog.ListQuery) (*catalog.Page, error) {
	params := url.Values{}
	params.Set("skip", strconv.Itoa(q.Skip))
	params.Set("limit", strconv.Itoa(q.Limit))
	if q.Genre != nil {
		params.Set("genre", *q.Genre)
	}
	if q.Author != nil {
		params.Set("author", *q.Author)
	}
	if q.Year != nil {
		params.Set("year", strconv.Itoa(*q.Year))
	}

	var page catalog.Page
	if err := c.do(ctx, http.MethodGet, "/books", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *CatalogClient) GetBook(ctx context.Context, id int64) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodGet, bookPath(id), nil, nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *CatalogClient) UpdateBook(ctx context.Context, id int64, p catalog.BookPatch) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodPatch, bookPath(id), nil, p, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *CatalogClient) DeleteBook(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, bookPath(id), nil, nil, nil)
}

func (c *CatalogClient) Statistics(ctx context.Context) (*catalog.Statistics, error) {
	var stats catalog.Statistics
	if err := c.do(ctx, http.MethodGet, "/books/stats/summary", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *CatalogClient) BookHistory(ctx context.Context, id int64) ([]eventstore.Event, error) {
	var events []eventstore.Event
	if err := c.do(ctx, http.MethodGet, bookPath(id)+"/history", nil, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *CatalogClient) Changes(ctx context.Context, after int64, limit int) ([]eventstore.Event, error) {
	params := url.Values{}
	params.Set("after", strconv.FormatInt(after, 10))
	params.Set("limit", strconv.Itoa(limit))

	var events []eventstore.Event
	if err := c.do(ctx, http.MethodGet, "/books/changes", params, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func bookPath(id int64) string {
	return "/books/" + strconv.FormatInt(id, 10)
}

// do sends body as JSON when it is non-nil and decodes a 2xx response into
// out when out is non-nil. Other statuses become *APIError.
func (c *CatalogClient) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body catalog.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		apiErr.Detail = http.StatusText(resp.StatusCode)
		return apiErr
	}
	apiErr.Code = body.ErrorCode
	apiErr.Detail = body.Detail
	apiErr.Errors = body.Errors
	return apiErr
}

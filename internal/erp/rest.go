package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Filters selects documents by exact field match. An alias, like Record,
// so callers can satisfy lookup interfaces with plain maps.
type Filters = map[string]any

func (c *Client) resourceURL(collection string, name string) string {
	u := c.restBase + "/api/resource/" + url.PathEscape(collection)
	if name != "" {
		u += "/" + url.PathEscape(name)
	}
	return u
}

func encodeFilters(filters Filters) (string, error) {
	// Frappe filter triples: [["field", "=", value], ...]
	triples := make([][]any, 0, len(filters))
	for field, value := range filters {
		triples = append(triples, []any{field, "=", value})
	}
	data, err := json.Marshal(triples)
	if err != nil {
		return "", fmt.Errorf("encode filters: %w", err)
	}
	return string(data), nil
}

func (c *Client) list(ctx context.Context, collection string, filters Filters, fields []string, limit int) ([]Record, error) {
	q := url.Values{}
	if len(filters) > 0 {
		encoded, err := encodeFilters(filters)
		if err != nil {
			return nil, err
		}
		q.Set("filters", encoded)
	}
	if len(fields) > 0 {
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encode fields: %w", err)
		}
		q.Set("fields", string(data))
	}
	q.Set("limit_page_length", fmt.Sprint(limit))

	var resp struct {
		Data []Record `json:"data"`
	}
	if err := c.doJSON(ctx, "GET", c.resourceURL(collection, "")+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListOne returns the first document matching filters, or nil when none
// match. Used for existence lookups where any match is a match.
func (c *Client) ListOne(ctx context.Context, collection string, filters Filters, fields []string) (Record, error) {
	records, err := c.list(ctx, collection, filters, fields, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// FindOne returns the single document matching filters, nil when none
// match, and ErrAmbiguous when several do. Exploratory tooling that acts on
// the result must use this instead of ListOne.
func (c *Client) FindOne(ctx context.Context, collection string, filters Filters, fields []string) (Record, error) {
	records, err := c.list(ctx, collection, filters, fields, 2)
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
		return records[0], nil
	default:
		return nil, fmt.Errorf("%s: %w (narrow the filter)", collection, ErrAmbiguous)
	}
}

// GetDocument fetches one document with all fields, child tables included.
func (c *Client) GetDocument(ctx context.Context, collection, name string) (Record, error) {
	var resp struct {
		Data Record `json:"data"`
	}
	if err := c.doJSON(ctx, "GET", c.resourceURL(collection, name), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("%s/%s: empty document in response", collection, name)
	}
	return resp.Data, nil
}

// CreateDocument inserts a new document and returns it as stored, with the
// server-assigned name.
func (c *Client) CreateDocument(ctx context.Context, collection string, fields Record) (Record, error) {
	var resp struct {
		Data Record `json:"data"`
	}
	if err := c.doJSON(ctx, "POST", c.resourceURL(collection, ""), fields, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdateDocument merges fields into an existing document.
func (c *Client) UpdateDocument(ctx context.Context, collection, name string, fields Record) (Record, error) {
	var resp struct {
		Data Record `json:"data"`
	}
	if err := c.doJSON(ctx, "PUT", c.resourceURL(collection, name), fields, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Method calls a whitelisted RPC-style server method, e.g. "frappe.ping".
// Used by connectivity checks only.
func (c *Client) Method(ctx context.Context, method string) (any, error) {
	var resp map[string]any
	if err := c.doJSON(ctx, "GET", c.restBase+"/api/method/"+url.PathEscape(method), nil, &resp); err != nil {
		return nil, err
	}
	if msg, ok := resp["message"]; ok {
		return msg, nil
	}
	return resp, nil
}

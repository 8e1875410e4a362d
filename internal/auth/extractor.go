package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// Common errors for API key extraction.
var (
	ErrNoAPIKeyFound       = errors.New("no API key found")
	ErrMissingAPIKeyHeader = errors.New("missing API key header")
	ErrMissingAPIKeyQuery  = errors.New("missing API key query parameter")
)

// Request is the slice of an inbound request that authentication
// reads: the places credentials live, nothing else.
type Request struct {
	Headers http.Header
	Query   url.Values
}

// Extractor defines the interface for extracting API keys from requests.
type Extractor interface {
	// Extract extracts an API key from the request.
	Extract(req *Request) (string, error)
}

// HeaderExtractor extracts API keys from HTTP headers.
type HeaderExtractor struct {
	header string
}

// NewHeaderExtractor creates a new header extractor.
// If header is empty, it defaults to "X-API-Key".
func NewHeaderExtractor(header string) *HeaderExtractor {
	if header == "" {
		header = "X-API-Key"
	}
	return &HeaderExtractor{header: header}
}

// Extract extracts the API key from the header.
func (e *HeaderExtractor) Extract(req *Request) (string, error) {
	value := req.Headers.Get(e.header)
	if value == "" {
		return "", ErrMissingAPIKeyHeader
	}
	return strings.TrimSpace(value), nil
}

// QueryExtractor extracts API keys from query parameters.
type QueryExtractor struct {
	param string
}

// NewQueryExtractor creates a new query parameter extractor.
// If param is empty, it defaults to "api_key".
func NewQueryExtractor(param string) *QueryExtractor {
	if param == "" {
		param = "api_key"
	}
	return &QueryExtractor{param: param}
}

// Extract extracts the API key from the query parameter.
func (e *QueryExtractor) Extract(req *Request) (string, error) {
	key := req.Query.Get(e.param)
	if key == "" {
		return "", ErrMissingAPIKeyQuery
	}
	return key, nil
}

// CompositeExtractor tries multiple extractors in order.
type CompositeExtractor struct {
	extractors []Extractor
}

// NewCompositeExtractor creates a new composite extractor.
func NewCompositeExtractor(extractors ...Extractor) *CompositeExtractor {
	return &CompositeExtractor{extractors: extractors}
}

// Extract tries each extractor in order and returns the first successful result.
func (e *CompositeExtractor) Extract(req *Request) (string, error) {
	var lastErr error

	for _, extractor := range e.extractors {
		key, err := extractor.Extract(req)
		if err == nil && key != "" {
			return key, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", ErrNoAPIKeyFound
}

package http

import (
	"net/http"
	"strings"
)

type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	// DiscardBody closes the response without reading it
	DiscardBody bool
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// HasHeader reports whether key is set, ignoring case
func (r *Request) HasHeader(key string) bool {
	for k := range r.Headers {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

// AllowsBody reports whether the method may carry a request body
func (r *Request) AllowsBody() bool {
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

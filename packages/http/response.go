package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	// BodyErr is set when the body could not be read completely
	BodyErr  error
	Duration time.Duration
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// BodyJSON parses the body. Numbers are kept as json.Number so that large
// integer ids survive being chained into later requests.
func (r *Response) BodyJSON() (any, error) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()

	var result any
	if err := dec.Decode(&result); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid JSON: trailing data after top-level value")
	}
	return result, nil
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) mediaType() string {
	ct := r.ContentType()
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	return mt
}

func (r *Response) IsJSON() bool {
	return r.mediaType() == "application/json"
}

func (r *Response) IsText() bool {
	return strings.HasPrefix(r.mediaType(), "text/")
}

// StatusText returns the reason phrase, e.g. "Not Found"
func (r *Response) StatusText() string {
	text := strings.TrimSpace(strings.TrimPrefix(r.Status, strconv.Itoa(r.StatusCode)))
	if text == "" {
		return http.StatusText(r.StatusCode)
	}
	return text
}

// ParsedBody decodes the body according to its content type: JSON bodies are
// parsed (falling back to raw text), text/* is returned as a string, anything
// else is returned as text when it is valid UTF-8. Empty or unreadable bodies
// yield nil.
func (r *Response) ParsedBody() any {
	if r.BodyErr != nil || len(r.Body) == 0 {
		return nil
	}

	switch {
	case r.IsJSON():
		if v, err := r.BodyJSON(); err == nil {
			return v
		}
		return r.BodyString()
	case r.IsText():
		return r.BodyString()
	default:
		if utf8.Valid(r.Body) {
			return r.BodyString()
		}
		return nil
	}
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

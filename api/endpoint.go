package api

import (
	"net/http"
	"net/url"
	"strings"
)

// Endpoint is an immutable descriptor of what to call: method, path and
// optional query parameters. How the call is made (base URL, auth,
// retries) is the client's business.
type Endpoint struct {
	Method string
	Path   string
	Query  url.Values
}

// Get describes a GET of the given path.
func Get(path string) Endpoint {
	return Endpoint{Method: http.MethodGet, Path: path}
}

// Post describes a POST to the given path.
func Post(path string) Endpoint {
	return Endpoint{Method: http.MethodPost, Path: path}
}

// Put describes a PUT to the given path.
func Put(path string) Endpoint {
	return Endpoint{Method: http.MethodPut, Path: path}
}

// Delete describes a DELETE of the given path.
func Delete(path string) Endpoint {
	return Endpoint{Method: http.MethodDelete, Path: path}
}

// WithQuery returns a copy of the endpoint with the parameter added; the
// receiver is left untouched.
func (e Endpoint) WithQuery(key, value string) Endpoint {
	q := url.Values{}
	for k, vs := range e.Query {
		q[k] = append([]string(nil), vs...)
	}
	q.Add(key, value)
	e.Query = q
	return e
}

// URL joins the endpoint onto the given base URL.
func (e Endpoint) URL(base string) string {
	u := strings.TrimSuffix(base, "/") + e.Path
	if len(e.Query) > 0 {
		u += "?" + e.Query.Encode()
	}
	return u
}

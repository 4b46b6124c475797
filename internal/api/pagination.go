// Copyright (c) 2026 PanelApp Team
// PanelApp - gene panel curation service
// This source code is licensed under the MIT license found in the LICENSE file.

package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// page is the paginated list envelope: count, next, previous, results.
type page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// paginate slices items by the ?page= and ?page_size= query parameters and
// builds absolute next/previous links.
func paginate[T any](s *Server, r *http.Request, items []T) (page, error) {
	size := s.pageSize
	q := r.URL.Query()
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page{}, fmt.Errorf("%w: invalid page_size %q", errBadRequest, v)
		}
		size = min(n, maxPageSize)
	}
	num := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return page{}, fmt.Errorf("%w: invalid page %q", errBadRequest, v)
		}
		num = n
	}
	if num-1 > len(items)/size {
		return page{}, fmt.Errorf("%w: invalid page %d", errBadRequest, num)
	}
	start := (num - 1) * size
	if start > len(items) || (start == len(items) && num > 1) {
		return page{}, fmt.Errorf("%w: invalid page %d", errBadRequest, num)
	}
	end := min(start+size, len(items))
	results := items[start:end]
	if results == nil {
		results = []T{}
	}
	p := page{Count: len(items), Results: results}
	if end < len(items) {
		link := pageLink(r, num+1)
		p.Next = &link
	}
	if num > 1 {
		link := pageLink(r, num-1)
		p.Previous = &link
	}
	return p, nil
}

func pageLink(r *http.Request, num int) string {
	u := *r.URL
	q := u.Query()
	q.Set("page", strconv.Itoa(num))
	u.RawQuery = q.Encode()
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
		scheme = fwd
	}
	u.Scheme = scheme
	u.Host = r.Host
	return u.String()
}

// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"net/http"
)

type contextKey string

const rawQueryKey contextKey = "raw_query"

// StashQuery moves the raw query string out of the request URL and into the
// context, so that downstream tracing and logging never see the password.
func StashQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), rawQueryKey, r.URL.RawQuery)

		u := *r.URL
		u.RawQuery = ""
		r = r.WithContext(ctx)
		r.URL = &u
		r.RequestURI = u.RequestURI()

		next.ServeHTTP(w, r)
	})
}

// RawQuery returns the query string stashed by StashQuery, falling back to
// the request URL when the middleware is not installed.
func RawQuery(r *http.Request) string {
	if val, ok := r.Context().Value(rawQueryKey).(string); ok {
		return val
	}
	return r.URL.RawQuery
}

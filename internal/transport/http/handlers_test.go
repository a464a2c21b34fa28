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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/passhash/internal/audit"
	"github.com/opentrusty/passhash/internal/hasher"
	"github.com/opentrusty/passhash/internal/observability/metrics"
	"github.com/opentrusty/passhash/internal/params"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

type MockOutcomeRecorder struct {
	mock.Mock
}

func (m *MockOutcomeRecorder) RecordOutcome(ctx context.Context, outcome string) {
	m.Called(ctx, outcome)
}

func eventOfType(eventType string) any {
	return mock.MatchedBy(func(e audit.Event) bool { return e.Type == eventType })
}

func newTestRouter(t *testing.T, engine Engine, auditLogger audit.Logger, outcomes OutcomeRecorder) http.Handler {
	t.Helper()
	h := NewHandler(engine, auditLogger, outcomes, "passhash-test")
	return NewRouter(h, RouterConfig{CORSOrigins: []string{"*"}})
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HASH ENDPOINT TESTS
// Category: Hash API - Parameter Resolution & HTTP Behavior
// Type: Unit Test (UT)
// =============================================================================

// TestPurpose: Validates that a request without parameters hashes the default password with default costs.
// Scope: Unit Test
// Expected: HTTP 200, text/plain body holding a PHC string that verifies against "boson42".
// Test Case ID: HASH-01
func TestHash_Defaults(t *testing.T) {
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, eventOfType(audit.TypeHashIssued)).Once()
	outcomes := new(MockOutcomeRecorder)
	outcomes.On("RecordOutcome", mock.Anything, metrics.OutcomeIssued).Once()

	router := newTestRouter(t, hasher.NewEngine(), auditLogger, outcomes)
	w := serve(router, http.MethodGet, "/")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "$argon2id$v=19$m=1000,t=5,p=1$"), body)

	ok, err := hasher.Verify("boson42", body)
	require.NoError(t, err)
	assert.True(t, ok)

	auditLogger.AssertExpectations(t)
	outcomes.AssertExpectations(t)
}

// TestPurpose: Validates that the hash endpoint answers on any path and any method.
// Scope: Unit Test
// Expected: HTTP 200 for POST on a nested path, parameters taken from the query string.
// Test Case ID: HASH-02
func TestHash_AnyPathAnyMethod(t *testing.T) {
	router := newTestRouter(t, hasher.NewEngine(), nil, nil)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			w := serve(router, method, "/some/nested/path?password=s3cret&cpu=1&mem=64")

			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), "$m=64,t=1,p=1$")

			ok, err := hasher.Verify("s3cret", w.Body.String())
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

// TestPurpose: Validates that malformed numeric parameters are rejected before any hashing.
// Scope: Unit Test
// Security: Input validation; error bodies never echo the password (CWE-209)
// Expected: HTTP 400 with the parse error kind in the body.
// Test Case ID: HASH-03
func TestHash_ParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		kind  string
	}{
		{"bad mem", "password=hunter2&mem=abc", "invalid KiB count for memory"},
		{"bad cpu", "password=hunter2&cpu=-3", "invalid cpu iteration count"},
		{"bad sleep", "password=hunter2&sleep=soon", "invalid sleep duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := new(MockEngine)
			auditLogger := new(MockAuditLogger)
			auditLogger.On("Log", mock.Anything, eventOfType(audit.TypeHashRejected)).Once()
			outcomes := new(MockOutcomeRecorder)
			outcomes.On("RecordOutcome", mock.Anything, metrics.OutcomeRejected).Once()

			router := newTestRouter(t, engine, auditLogger, outcomes)
			w := serve(router, http.MethodGet, "/?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.kind)
			assert.NotContains(t, w.Body.String(), "hunter2")

			engine.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
			auditLogger.AssertExpectations(t)
			outcomes.AssertExpectations(t)
		})
	}
}

// TestPurpose: Validates that structurally invalid Argon2id parameters map to 422.
// Scope: Unit Test
// Expected: HTTP 422 for cpu=0 and for memory below 8 KiB.
// Test Case ID: HASH-04
func TestHash_InvalidParameters(t *testing.T) {
	router := newTestRouter(t, hasher.NewEngine(), nil, nil)

	for _, query := range []string{"cpu=0", "mem=0", "mem=7"} {
		t.Run(query, func(t *testing.T) {
			w := serve(router, http.MethodGet, "/?password=hunter2&"+query)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Contains(t, w.Body.String(), "invalid argon2id parameters")
			assert.NotContains(t, w.Body.String(), "hunter2")
		})
	}
}

// TestPurpose: Validates that an internal engine failure maps to 500 without leaking details.
// Scope: Unit Test
// Security: Error message sanitization (CWE-209)
// Expected: HTTP 500 with a generic body; hash_failed is audited.
// Test Case ID: HASH-05
func TestHash_InternalFailure(t *testing.T) {
	engine := hasher.NewEngine(hasher.WithSaltSource(iotest.ErrReader(errors.New("entropy pool drained"))))
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, eventOfType(audit.TypeHashFailed)).Once()

	router := newTestRouter(t, engine, auditLogger, nil)
	w := serve(router, http.MethodGet, "/?cpu=1&mem=64")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal hashing failure", w.Body.String())
	assert.NotContains(t, w.Body.String(), "entropy")
	auditLogger.AssertExpectations(t)
}

func TestHash_AuditEventCarriesCostsNotPassword(t *testing.T) {
	auditLogger := new(MockAuditLogger)
	auditLogger.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		if e.Type != audit.TypeHashIssued || e.RequestID == "" {
			return false
		}
		for _, v := range e.Metadata {
			if s, ok := v.(string); ok && strings.Contains(s, "hunter2") {
				return false
			}
		}
		return e.Metadata["time_cost"] == uint32(1) &&
			e.Metadata["memory_kib"] == uint32(64) &&
			e.Metadata["delay_ms"] == uint64(0)
	})).Once()

	router := newTestRouter(t, hasher.NewEngine(), auditLogger, nil)
	w := serve(router, http.MethodGet, "/?password=hunter2&cpu=1&mem=64")

	require.Equal(t, http.StatusOK, w.Code)
	auditLogger.AssertExpectations(t)
}

// captureLogs routes the default logger into a buffer for the duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func findLogLine(t *testing.T, logs string, msg string) map[string]any {
	t.Helper()
	sc := bufio.NewScanner(strings.NewReader(logs))
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line["msg"] == msg {
			return line
		}
	}
	t.Fatalf("no log line with msg %q", msg)
	return nil
}

func TestHash_FailureLogsCarryCostsAndErrorType(t *testing.T) {
	tests := []struct {
		name      string
		engine    Engine
		query     string
		msg       string
		errorType string
	}{
		{"invalid parameters", hasher.NewEngine(), "/?password=hunter2&cpu=0&mem=64&sleep=0", "hash request rejected", "invalid_parameters"},
		{"internal", hasher.NewEngine(hasher.WithSaltSource(iotest.ErrReader(errors.New("drained")))), "/?password=hunter2&cpu=1&mem=64&sleep=0", "hash request failed", "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			serve(newTestRouter(t, tt.engine, nil, nil), http.MethodGet, tt.query)

			logs := buf.String()
			line := findLogLine(t, logs, tt.msg)
			assert.Equal(t, tt.errorType, line["error_type"])
			assert.EqualValues(t, 64, line["memory_kib"])
			assert.EqualValues(t, 1, line["parallelism"])
			assert.EqualValues(t, 0, line["delay_ms"])
			assert.NotContains(t, logs, "hunter2")
		})
	}
}

func TestHash_ParseErrorLogsErrorType(t *testing.T) {
	buf := captureLogs(t)
	serve(newTestRouter(t, new(MockEngine), nil, nil), http.MethodGet, "/?mem=abc")

	line := findLogLine(t, buf.String(), "hash request rejected")
	assert.Equal(t, "parse", line["error_type"])
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, new(MockEngine), nil, nil)
	w := serve(router, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "passhash-test", body["service"])
}

func TestStashQuery_HidesQueryFromDownstream(t *testing.T) {
	var seenURL, seenURI, seenQuery string
	h := StashQuery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenURL = r.URL.String()
		seenURI = r.RequestURI
		seenQuery = RawQuery(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x?password=hunter2&cpu=1", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "/x", seenURL)
	assert.Equal(t, "/x", seenURI)
	assert.Equal(t, "password=hunter2&cpu=1", seenQuery)
	assert.Equal(t, "password=hunter2&cpu=1", req.URL.RawQuery, "caller's request must not be mutated")
}

func TestRouteName(t *testing.T) {
	assert.Equal(t, "/health", routeName("/health"))
	assert.Equal(t, "/metrics", routeName("/metrics"))
	assert.Equal(t, "hash", routeName("/"))
	assert.Equal(t, "hash", routeName("/anything/else"))
}

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Execute(ctx context.Context, req params.HashRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

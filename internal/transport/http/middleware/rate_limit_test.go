package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type fakeRateLimitStore struct {
	trimErr   error
	count     int
	countErr  error
	oldest    time.Time
	hasOldest bool
	oldestErr error
	recordErr error

	recordedKey string
	recordCalls int
}

func (f *fakeRateLimitStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return f.trimErr
}

func (f *fakeRateLimitStore) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	return f.count, f.countErr
}

func (f *fakeRateLimitStore) RecordAttempt(_ context.Context, key string, _ time.Time) error {
	f.recordedKey = key
	f.recordCalls++
	return f.recordErr
}

func (f *fakeRateLimitStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return f.oldest, f.hasOldest, f.oldestErr
}

var rateLimitNow = time.Date(2025, 10, 12, 10, 0, 0, 0, time.UTC)

func serveLimited(t *testing.T, store *fakeRateLimitStore, req *http.Request, rules ...RateLimitRule) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return rateLimitNow })
	router := gin.New()
	router.Use(limiter.RateLimit(rules...))
	router.Any("/*path", func(c *gin.Context) { c.Status(http.StatusOK) })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func fixedIdentifier(id string) IdentifierFunc {
	return func(*gin.Context) (string, bool) { return id, true }
}

func signinRule(limit int) RateLimitRule {
	return RateLimitRule{Name: "signin", Limit: limit, Window: time.Minute, Identifier: fixedIdentifier("192.0.2.1")}
}

func TestRateLimiterScopesKeysByRuleAndClientIP(t *testing.T) {
	store := &fakeRateLimitStore{}
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", nil)
	req.RemoteAddr = "198.51.100.7:4242"

	rr := serveLimited(t, store, req, RateLimitRule{
		Name:       "signin",
		Limit:      5,
		Window:     time.Minute,
		Identifier: ClientIPIdentifier(),
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.recordedKey != "signin:198.51.100.7" {
		t.Fatalf("unexpected storage key %q", store.recordedKey)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	oldest := rateLimitNow.Add(-30 * time.Second)

	cases := []struct {
		name          string
		store         *fakeRateLimitStore
		wantCode      int
		wantRecords   int
		wantRemaining string
		wantReset     int64
		wantRetry     string
	}{
		{
			name:          "below limit",
			store:         &fakeRateLimitStore{count: 2, oldest: oldest, hasOldest: true},
			wantCode:      http.StatusOK,
			wantRecords:   1,
			wantRemaining: "2",
			wantReset:     oldest.Add(time.Minute).Unix(),
		},
		{
			name:          "empty window resets one window from now",
			store:         &fakeRateLimitStore{},
			wantCode:      http.StatusOK,
			wantRecords:   1,
			wantRemaining: "4",
			wantReset:     rateLimitNow.Add(time.Minute).Unix(),
		},
		{
			name:          "at limit",
			store:         &fakeRateLimitStore{count: 5, oldest: oldest, hasOldest: true},
			wantCode:      http.StatusTooManyRequests,
			wantRemaining: "0",
			wantReset:     oldest.Add(time.Minute).Unix(),
			wantRetry:     "30",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serveLimited(t, tc.store, httptest.NewRequest(http.MethodGet, "/", nil), signinRule(5))

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if tc.store.recordCalls != tc.wantRecords {
				t.Fatalf("expected %d recorded attempts, got %d", tc.wantRecords, tc.store.recordCalls)
			}
			if got := rr.Header().Get("X-RateLimit-Limit"); got != "5" {
				t.Fatalf("expected limit header 5, got %q", got)
			}
			if got := rr.Header().Get("X-RateLimit-Remaining"); got != tc.wantRemaining {
				t.Fatalf("expected remaining %s, got %q", tc.wantRemaining, got)
			}
			if got := rr.Header().Get("X-RateLimit-Reset"); got != strconv.FormatInt(tc.wantReset, 10) {
				t.Fatalf("expected reset %d, got %q", tc.wantReset, got)
			}
			if got := rr.Header().Get("Retry-After"); got != tc.wantRetry {
				t.Fatalf("expected retry-after %q, got %q", tc.wantRetry, got)
			}
		})
	}
}

func TestRateLimiterRejectionBody(t *testing.T) {
	store := &fakeRateLimitStore{count: 5, oldest: rateLimitNow.Add(-30 * time.Second), hasOldest: true}
	rr := serveLimited(t, store, httptest.NewRequest(http.MethodGet, "/", nil), signinRule(5))

	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "Too many requests. Try again in 30 seconds." {
		t.Fatalf("unexpected error message %q", body.Error)
	}
}

func TestRateLimiterFailsOpenOnStoreError(t *testing.T) {
	storeErr := errors.New("redis down")
	stores := map[string]*fakeRateLimitStore{
		"trim":   {trimErr: storeErr},
		"count":  {countErr: storeErr},
		"oldest": {oldestErr: storeErr},
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			rr := serveLimited(t, store, httptest.NewRequest(http.MethodGet, "/", nil), signinRule(5))
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200 when failing open, got %d", rr.Code)
			}
			if store.recordCalls != 0 {
				t.Fatalf("expected no record attempt on failure, got %d", store.recordCalls)
			}
			if got := rr.Header().Get("X-RateLimit-Limit"); got != "" {
				t.Fatalf("expected no rate limit headers, got limit %q", got)
			}
		})
	}
}

func TestRateLimiterSkipsUnusableRules(t *testing.T) {
	store := &fakeRateLimitStore{count: 100}
	rr := serveLimited(t, store, httptest.NewRequest(http.MethodGet, "/", nil),
		RateLimitRule{Name: "no-identifier", Limit: 1, Window: time.Minute},
		RateLimitRule{Name: "no-limit", Window: time.Minute, Identifier: fixedIdentifier("x")},
		RateLimitRule{Name: "no-window", Limit: 1, Identifier: fixedIdentifier("x")},
		RateLimitRule{Name: "opted-out", Limit: 1, Window: time.Minute, Identifier: func(*gin.Context) (string, bool) { return "", false }},
	)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.recordCalls != 0 {
		t.Fatalf("expected no store traffic, got %d records", store.recordCalls)
	}
}

func TestRateLimiterDefaultsRuleName(t *testing.T) {
	store := &fakeRateLimitStore{}
	serveLimited(t, store, httptest.NewRequest(http.MethodGet, "/", nil),
		RateLimitRule{Limit: 3, Window: time.Minute, Identifier: fixedIdentifier("203.0.113.9")})

	if store.recordedKey != "default:203.0.113.9" {
		t.Fatalf("unexpected storage key %q", store.recordedKey)
	}
}

func TestRateLimiterReportsTightestRule(t *testing.T) {
	store := &fakeRateLimitStore{count: 1}
	rr := serveLimited(t, store, httptest.NewRequest(http.MethodGet, "/", nil),
		RateLimitRule{Name: "burst", Limit: 3, Window: time.Minute, Identifier: fixedIdentifier("192.0.2.1")},
		RateLimitRule{Name: "hourly", Limit: 10, Window: time.Hour, Identifier: fixedIdentifier("192.0.2.1")},
	)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Fatalf("expected headers from the burst rule, got limit %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Fatalf("expected remaining 1, got %q", got)
	}
	if store.recordCalls != 2 {
		t.Fatalf("expected one record per rule, got %d", store.recordCalls)
	}
}

package killsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_KillsSince(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		cursor  int64
		want    Delta
		wantErr error
		anyErr  bool
	}{
		{name: "progress", status: 200, body: `{"data":{"stats":{"all":{"overall":{"kills":17}}}}}`, cursor: 10, want: Delta{NewCursor: 17, Kills: 7}},
		{name: "no progress", status: 200, body: `{"data":{"stats":{"all":{"overall":{"kills":10}}}}}`, cursor: 10, want: Delta{NewCursor: 10}},
		{name: "counter reset clamps", status: 200, body: `{"data":{"stats":{"all":{"overall":{"kills":3}}}}}`, cursor: 10, want: Delta{NewCursor: 10}},
		{name: "rate limited upstream", status: 429, body: `{}`, cursor: 10, wantErr: ErrRateLimited},
		{name: "server error", status: 500, body: `{}`, cursor: 10, anyErr: true},
		{name: "missing path", status: 200, body: `{"data":{}}`, cursor: 10, anyErr: true},
		{name: "not a number", status: 200, body: `{"data":{"stats":{"all":{"overall":{"kills":"many"}}}}}`, cursor: 10, anyErr: true},
		{name: "garbage", status: 200, body: `<html>`, cursor: 10, anyErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/epic-1", r.URL.Path)
				assert.Equal(t, "secret", r.Header.Get("Authorization"))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			src := NewHTTP(srv.URL+"/", "secret", "data.stats.all.overall.kills", time.Second)

			got, err := src.KillsSince(context.Background(), "epic-1", tc.cursor)

			switch {
			case tc.wantErr != nil:
				require.ErrorIs(t, err, tc.wantErr)
			case tc.anyErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestRateLimited_SkipsWithoutBlocking(t *testing.T) {
	t.Parallel()

	src := NewRateLimited(NewStatic(map[string]int64{"a": 5}), 2)

	for i := 0; i < 2; i++ {
		got, err := src.KillsSince(context.Background(), "a", 0)
		require.NoError(t, err)
		assert.Equal(t, Delta{NewCursor: 5, Kills: 5}, got)
	}

	start := time.Now()
	_, err := src.KillsSince(context.Background(), "a", 0)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestStatic(t *testing.T) {
	t.Parallel()

	src := NewStatic(nil)

	got, err := src.KillsSince(context.Background(), "unknown", 4)
	require.NoError(t, err)
	assert.Equal(t, Delta{NewCursor: 4}, got)

	src.Set("p", 9)

	got, err = src.KillsSince(context.Background(), "p", 4)
	require.NoError(t, err)
	assert.Equal(t, Delta{NewCursor: 9, Kills: 5}, got)
}

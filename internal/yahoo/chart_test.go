package yahoo

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falcoza/marketreporternew/internal/market"
	"github.com/falcoza/marketreporternew/internal/retry"
)

var testPolicy = retry.Policy{MaxAttempts: 1, InitialDelay: time.Millisecond, BackoffFactor: 2}

func chartJSON(meta string, timestamps []int64, closes []string) string {
	ts := ""
	cl := ""
	for i := range timestamps {
		if i > 0 {
			ts += ","
			cl += ","
		}
		ts += fmt.Sprintf("%d", timestamps[i])
		cl += closes[i]
	}
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{%s},"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`, meta, ts, cl)
}

func unixAt(date string) int64 {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	// mid-session, noon UTC
	return t.Add(12 * time.Hour).Unix()
}

func TestLatest_UsesRegularMarketPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/%5EGSPC", r.URL.EscapedPath())
		assert.Equal(t, "5d", r.URL.Query().Get("range"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chartJSON(
			fmt.Sprintf(`"regularMarketPrice":5123.5,"regularMarketTime":%d`, unixAt("2025-03-14")),
			[]int64{unixAt("2025-03-13")}, []string{"5100.0"}))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.UTC, testPolicy)
	quote, ok, err := c.Latest(t.Context(), "^GSPC")

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "5123.5", quote.Price.String())
	assert.Equal(t, "2025-03-14", quote.Day.String())
	assert.Equal(t, "yahoo:^GSPC", quote.Source)
}

func TestLatest_FallsBackToTrailingClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chartJSON(`"symbol":"BZ=F"`,
			[]int64{unixAt("2025-03-12"), unixAt("2025-03-13")},
			[]string{"null", "71.25"}))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.UTC, testPolicy)
	quote, ok, err := c.Latest(t.Context(), "BZ=F")

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "71.25", quote.Price.String())
	assert.Equal(t, "2025-03-13", quote.Day.String())
}

func TestLatest_EmptyWindowIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"chart":{"result":[{"meta":{},"timestamp":[],"indicators":{"quote":[{"close":[]}]}}],"error":null}}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.UTC, testPolicy)
	_, ok, err := c.Latest(t.Context(), "^JN0U.JO")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLatest_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.UTC, testPolicy)
	_, _, err := c.Latest(t.Context(), "^GSPC")

	require.Error(t, err)
	var fe *market.FetchError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Retryable)
	assert.Equal(t, 502, fe.StatusCode)
}

func TestHistory_SkipsNullClosesAndConvertsDays(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("period1"))
		assert.NotEmpty(t, r.URL.Query().Get("period2"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chartJSON(`"symbol":"GC=F"`,
			[]int64{unixAt("2025-03-11"), unixAt("2025-03-12"), unixAt("2025-03-13")},
			[]string{"2900.0", "null", "2915.5"}))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.UTC, testPolicy)
	series, err := c.History(t.Context(), "GC=F",
		market.NewDay(2025, time.March, 1), market.NewDay(2025, time.March, 14))

	require.NoError(t, err)
	require.Equal(t, 2, series.Len(), "null closes are dropped")
	bars := series.Bars()
	assert.Equal(t, "2025-03-11", bars[0].Day.String())
	assert.Equal(t, "2025-03-13", bars[1].Day.String())
	assert.Equal(t, "2915.5", bars[1].Close.String())
}

func TestHistory_ChartErrorSurfacesAsValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.UTC, testPolicy)
	_, err := c.History(t.Context(), "NOPE",
		market.NewDay(2025, time.March, 1), market.NewDay(2025, time.March, 14))

	require.Error(t, err)
	var fe *market.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, market.ErrorTypeValidation, fe.Type)
	assert.False(t, fe.Retryable)
}

package spot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/fxquote/provider/currencies"
	"github.com/sig-0/fxquote/storage/types"
)

// newServer creates a test server serving a fixed response
func newServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))

	t.Cleanup(srv.Close)

	return srv
}

func TestBinanceProvider_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("first endpoint", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusOK, `{"symbol":"USDTTHB","price":"31.16000000"}`, func(r *http.Request) {
			assert.Equal(t, "USDTTHB", r.URL.Query().Get("symbol"))
		})

		rates, err := NewBinanceProvider(time.Second, srv.URL+"/api/v3/ticker/price").Fetch(context.Background())
		require.NoError(t, err)

		require.Len(t, rates, 1)
		assert.Equal(t, currencies.USDT, rates[0].Base)
		assert.Equal(t, currencies.THB, rates[0].Target)
		assert.Equal(t, types.SourceBinance, rates[0].Source)
		assert.Equal(t, types.RateTypeMID, rates[0].RateType)
		assert.InDelta(t, 31.16, rates[0].Rate, 1e-9)
	})

	t.Run("falls back to next endpoint", func(t *testing.T) {
		t.Parallel()

		var (
			down = newServer(t, http.StatusServiceUnavailable, ``, nil)
			up   = newServer(t, http.StatusOK, `{"symbol":"USDTTHB","price":"32.5"}`, nil)
		)

		rates, err := NewBinanceProvider(time.Second, down.URL, up.URL).Fetch(context.Background())
		require.NoError(t, err)

		require.Len(t, rates, 1)
		assert.InDelta(t, 32.5, rates[0].Rate, 1e-9)
	})

	t.Run("all endpoints fail", func(t *testing.T) {
		t.Parallel()

		var (
			down    = newServer(t, http.StatusInternalServerError, ``, nil)
			garbage = newServer(t, http.StatusOK, `{"price":"abc"}`, nil)
		)

		_, err := NewBinanceProvider(time.Second, down.URL, garbage.URL).Fetch(context.Background())

		assert.Error(t, err)
	})

	t.Run("zero price", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusOK, `{"price":"0"}`, nil)

		_, err := NewBinanceProvider(time.Second, srv.URL).Fetch(context.Background())

		assert.ErrorIs(t, err, errInvalidRate)
	})
}

func TestDoverkaProvider_Fetch(t *testing.T) {
	t.Parallel()

	checkAuth := func(t *testing.T) func(r *http.Request) {
		t.Helper()

		return func(r *http.Request) {
			assert.Equal(t, "/v1/currencies", r.URL.Path)
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		}
	}

	testTable := []struct {
		name     string
		body     string
		expected float64
	}{
		{
			"rate from RUB preferred",
			`[{"symbol":"EUR","rate_from_rub":"99.1"},{"symbol":"usdt","rate_to_rub":0.0119,"rate_from_rub":"84.23"}]`,
			84.23,
		},
		{
			"rate to RUB when from RUB is inverted",
			`[{"symbol":"USD","rate_to_rub":"83.9","rate_from_rub":"0.0119"}]`,
			83.9,
		},
		{
			"single object",
			`{"symbol":"USDT","rate_to_rub":85.1,"rate_from_rub":null}`,
			85.1,
		},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			srv := newServer(t, http.StatusOK, testCase.body, checkAuth(t))

			rates, err := NewDoverkaProvider(srv.URL, "key", time.Second).Fetch(context.Background())
			require.NoError(t, err)

			require.Len(t, rates, 1)
			assert.Equal(t, currencies.USDT, rates[0].Base)
			assert.Equal(t, currencies.RUB, rates[0].Target)
			assert.Equal(t, types.SourceDoverka, rates[0].Source)
			assert.InDelta(t, testCase.expected, rates[0].Rate, 1e-9)
		})
	}

	t.Run("no USD entry", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusOK, `[{"symbol":"EUR","rate_to_rub":"99"}]`, nil)

		_, err := NewDoverkaProvider(srv.URL, "key", time.Second).Fetch(context.Background())

		assert.ErrorIs(t, err, errNoUSDRate)
	})

	t.Run("missing API key", func(t *testing.T) {
		t.Parallel()

		_, err := NewDoverkaProvider("http://localhost", "", time.Second).Fetch(context.Background())

		assert.ErrorIs(t, err, errMissingAPIKey)
	})

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusUnauthorized, `{}`, nil)

		_, err := NewDoverkaProvider(srv.URL, "key", time.Second).Fetch(context.Background())

		assert.Error(t, err)
	})
}

const cbrPage = `<html><body>
<button class="datepicker-filter_button">17.10.2026</button>
<table class="data">
<tbody>
<tr><th>Цифр. код</th><th>Букв. код</th><th>Единиц</th><th>Валюта</th><th>Курс</th></tr>
<tr><td>840</td><td>USD</td><td>1</td><td>Доллар США</td><td>81,5123</td></tr>
<tr><td>978</td><td>EUR</td><td>1</td><td>Евро</td><td>95,0000</td></tr>
<tr><td>764</td><td>THB</td><td>10</td><td>Батов</td><td>24,9870</td></tr>
</tbody>
</table>
</body></html>`

func TestCBRProvider_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("reference rates", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusOK, cbrPage, nil)

		rates, err := NewCBRProvider(srv.URL, time.Second).Fetch(context.Background())
		require.NoError(t, err)

		require.Len(t, rates, 2)

		expectedDate := time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)

		assert.Equal(t, currencies.USD, rates[0].Base)
		assert.Equal(t, currencies.RUB, rates[0].Target)
		assert.InDelta(t, 81.5123, rates[0].Rate, 1e-9)
		assert.Equal(t, expectedDate, rates[0].AsOf)

		// quoted per 10 units
		assert.Equal(t, currencies.THB, rates[1].Base)
		assert.InDelta(t, 2.4987, rates[1].Rate, 1e-9)
		assert.Equal(t, types.SourceCBR, rates[1].Source)
	})

	t.Run("empty table", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t, http.StatusOK, `<html><table class="data"></table></html>`, nil)

		_, err := NewCBRProvider(srv.URL, time.Second).Fetch(context.Background())

		assert.ErrorIs(t, err, errInvalidRate)
	})
}

func TestParseRUNumber(t *testing.T) {
	t.Parallel()

	testTable := []struct {
		input    string
		expected float64
	}{
		{"81,5123", 81.5123},
		{" 1 234,56 ", 1234.56},
		{"1 234,5", 1234.5},
		{"1.234,5", 1234.5},
	}

	for _, testCase := range testTable {
		t.Run(testCase.input, func(t *testing.T) {
			t.Parallel()

			v, err := parseRUNumber(testCase.input)
			require.NoError(t, err)

			assert.InDelta(t, testCase.expected, v, 1e-9)
		})
	}

	_, err := parseRUNumber("  ")
	assert.ErrorIs(t, err, errInvalidRate)
}

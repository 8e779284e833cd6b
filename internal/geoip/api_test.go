package geoip

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ipInfoTestResponse = `{
  "ip": "80.36.233.153",
  "city": "Palma",
  "region": "Balearic Islands",
  "country": "ES",
  "loc": "39.5680,2.6835",
  "timezone": "Europe/Madrid"
}`

func TestGeoIp_Country(t *testing.T) {
	apiCallsCount := 0
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCallsCount++
		if r.Method == http.MethodGet && r.URL.Path == "/80.36.233.153" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(ipInfoTestResponse))
			return
		}
		http.Error(w, "unexpected path/method", http.StatusBadRequest)
	}))
	defer testServer.Close()

	db, mock := redismock.NewClientMock()
	geoIp, err := NewApi("dummy-token", testServer.Client(), db).WithBaseURL(testServer.URL + "/")
	require.NoError(t, err)

	ctx := context.Background()

	country, err := geoIp.Country(ctx, "localhost")
	require.NoError(t, err)
	assert.Equal(t, LocalCountry, country)

	mock.ExpectGet("ip-country::80.36.233.153").RedisNil()
	mock.ExpectSet("ip-country::80.36.233.153", "ES", countryCacheTTL).SetVal("OK")
	country, err = geoIp.Country(ctx, "80.36.233.153")
	require.NoError(t, err)
	assert.Equal(t, "ES", country)
	assert.Equal(t, 1, apiCallsCount)

	// second lookup comes from redis
	mock.ExpectGet("ip-country::80.36.233.153").SetVal("ES")
	country, err = geoIp.Country(ctx, "80.36.233.153")
	require.NoError(t, err)
	assert.Equal(t, "ES", country)
	assert.Equal(t, 1, apiCallsCount)

	_, err = geoIp.Country(ctx, "not-an-ip")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/2beens/portfolio/internal/telemetry/tracing"

	"github.com/go-redis/redis/v8"
	"github.com/ipinfo/go/v2/ipinfo"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	countryCacheTTL = 30 * 24 * time.Hour
	// LocalCountry is reported for development requests.
	LocalCountry = "local"
)

// Api resolves the country of an IP address, with results cached in redis.
type Api struct {
	mu          sync.Mutex
	client      *ipinfo.Client
	redisClient *redis.Client
}

func NewApi(ipInfoToken string, httpClient *http.Client, redisClient *redis.Client) *Api {
	return &Api{
		client:      ipinfo.NewClient(httpClient, nil, ipInfoToken),
		redisClient: redisClient,
	}
}

// WithBaseURL points the ipinfo client at another endpoint.
func (gi *Api) WithBaseURL(baseURL string) (*Api, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ipinfo base url: %w", err)
	}
	gi.client.BaseURL = u
	return gi, nil
}

// Country returns the ISO country code for userIp.
func (gi *Api) Country(ctx context.Context, userIp string) (string, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "geoIp.country")
	defer span.End()
	span.SetAttributes(attribute.String("user.ip", userIp))

	// used for development
	if userIp == "localhost" {
		return LocalCountry, nil
	}

	ip := net.ParseIP(userIp)
	if ip == nil {
		return "", fmt.Errorf("ip addr %s is invalid", userIp)
	}

	// concurrent lookups for the same sender would all miss the cache
	gi.mu.Lock()
	defer gi.mu.Unlock()

	cacheKey := fmt.Sprintf("ip-country::%s", userIp)
	country, err := gi.redisClient.Get(ctx, cacheKey).Result()
	switch {
	case err == nil && country != "":
		span.SetAttributes(attribute.Bool("user.ip.from-cache", true))
		return country, nil
	case err != nil && !errors.Is(err, redis.Nil):
		log.Errorf("failed to get ip country from redis for [%s]: %s", userIp, err)
	}
	span.SetAttributes(attribute.Bool("user.ip.from-cache", false))

	info, err := gi.client.GetIPInfo(ip)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("ipinfo lookup %s: %w", userIp, err)
	}
	if info.Bogon || info.Country == "" {
		return "", nil
	}

	if err := gi.redisClient.Set(ctx, cacheKey, info.Country, countryCacheTTL).Err(); err != nil {
		log.Errorf("failed to cache ip country in redis for %s: %s", userIp, err)
	}

	return info.Country, nil
}

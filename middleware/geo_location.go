package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"handyfix/utils"
)

const (
	locationKey      = "geoCity"
	geoCachePrefix   = "geo:"
	geoLookupTimeout = 3 * time.Second
)

// geoLookupURL is the ipapi.co endpoint; %s is replaced by the client IP.
var geoLookupURL = "https://ipapi.co/%s/json/"

// ipapiResult is the part of an ipapi.co reply the service uses.
type ipapiResult struct {
	City    string `json:"city"`
	Country string `json:"country_name"`
	Error   bool   `json:"error"`
	Reason  string `json:"reason"`
}

// Geolocator resolves a client IP to a city. Resolved cities are kept in Redis for ttl;
// without Redis every public address is looked up on each request.
type Geolocator struct {
	cache  *redis.Client
	ttl    time.Duration
	client *http.Client
}

func NewGeolocator(cache *redis.Client, ttl time.Duration) *Geolocator {
	return &Geolocator{
		cache:  cache,
		ttl:    ttl,
		client: &http.Client{Timeout: geoLookupTimeout},
	}
}

// publicAddr reports whether ip is a routable address worth looking up.
func publicAddr(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsUnspecified())
}

// City returns the city for ip, or "" when it cannot be determined.
func (g *Geolocator) City(ctx context.Context, ip string, logger *zap.Logger) string {
	if !publicAddr(ip) {
		return ""
	}
	if g.cache != nil {
		city, err := g.cache.Get(ctx, geoCachePrefix+ip).Result()
		switch {
		case err == nil:
			return city
		case err != redis.Nil:
			logger.Warn("Geolocation cache read failed", zap.String("ip", ip), zap.Error(err))
		}
	}

	res, err := g.lookup(ctx, ip)
	if err != nil {
		logger.Warn("Geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
		return ""
	}
	city := strings.TrimSpace(res.City)
	if city == "" {
		return ""
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, geoCachePrefix+ip, city, g.ttl).Err(); err != nil {
			logger.Warn("Geolocation cache write failed", zap.String("ip", ip), zap.Error(err))
		}
	}
	logger.Debug("Geolocation resolved", zap.String("ip", ip), zap.String("city", city), zap.String("country", res.Country))
	return city
}

func (g *Geolocator) lookup(ctx context.Context, ip string) (*ipapiResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(geoLookupURL, ip), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation API returned status %d", resp.StatusCode)
	}
	var res ipapiResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode geolocation response: %w", err)
	}
	if res.Error {
		return nil, fmt.Errorf("geolocation API error: %s", res.Reason)
	}
	return &res, nil
}

// LocationFromContext returns the geolocated city for the request, or "" when unknown.
func LocationFromContext(c *gin.Context) string {
	return c.GetString(locationKey)
}

// GeolocationMiddleware stores the client's city in the context for handlers that need a
// default location. A nil geolocator disables it. Lookups never fail the request.
func GeolocationMiddleware(g *Geolocator) gin.HandlerFunc {
	if g == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		logger := utils.GetLogger()
		if city := g.City(c.Request.Context(), getClientIP(c), logger); city != "" {
			c.Set(locationKey, city)
		}
		c.Next()
	}
}

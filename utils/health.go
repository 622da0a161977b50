package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"handyfix/models"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Redis          *bool     `json:"redis,omitempty"`
	Recommendation bool      `json:"recommendation"`
	MLReady        bool      `json:"mlReady"`
	Detail         string    `json:"detail,omitempty"`
	CheckedAt      time.Time `json:"checkedAt"`
}

// BackendProbe reports the recommendation backend's readiness.
type BackendProbe interface {
	Health(ctx context.Context) (*models.BackendHealth, error)
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// CheckHealth probes every dependency once and stores the snapshot.
func CheckHealth(ctx context.Context, redisClient *redis.Client, backend BackendProbe) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := HealthStatus{CheckedAt: time.Now()}
	if redisClient != nil {
		ok := redisClient.Ping(ctx).Err() == nil
		status.Redis = &ok
	}
	if backend != nil {
		h, err := backend.Health(ctx)
		switch {
		case err != nil:
			status.Detail = err.Error()
		default:
			status.Recommendation = h.OK
			status.MLReady = h.MLReady
			status.Detail = h.Error
		}
	}

	mu.Lock()
	currentHealth = status
	mu.Unlock()
	return status
}

// StartHealthMonitor performs periodic health checks and updates in-memory state.
func StartHealthMonitor(ctx context.Context, redisClient *redis.Client, backend BackendProbe) {
	CheckHealth(ctx, redisClient, backend)
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CheckHealth(ctx, redisClient, backend)
			}
		}
	}()
}

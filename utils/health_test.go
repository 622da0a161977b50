package utils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"handyfix/models"
	"handyfix/services/apperror"
)

type stubProbe struct {
	health *models.BackendHealth
	err    error
}

func (s stubProbe) Health(ctx context.Context) (*models.BackendHealth, error) {
	return s.health, s.err
}

func TestCheckHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	status := CheckHealth(context.Background(), client, stubProbe{health: &models.BackendHealth{OK: true, MLReady: true}})
	if status.Redis == nil || !*status.Redis || !status.Recommendation || !status.MLReady {
		t.Fatalf("unexpected status %+v", status)
	}
	if GetHealthStatus().CheckedAt != status.CheckedAt {
		t.Errorf("snapshot not stored")
	}

	mr.Close()
	status = CheckHealth(context.Background(), client, stubProbe{err: apperror.Transport(0, "", "recommendation service is unreachable", nil)})
	if *status.Redis || status.Recommendation || status.Detail != "recommendation service is unreachable" {
		t.Fatalf("unexpected degraded status %+v", status)
	}
}

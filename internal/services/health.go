package services

import (
	"context"
	"log"

	"gorm.io/gorm"

	"bigpartner/internal/database"
	"bigpartner/internal/metrics"
)

// HealthResult is the body of GET /health
type HealthResult struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database string `json:"database"`
}

// HealthService implements the health service
type HealthService struct {
	db      *gorm.DB
	service string
}

// NewHealthService creates a new health service
func NewHealthService(db *gorm.DB, service string) *HealthService {
	return &HealthService{db: db, service: service}
}

// Check pings the database and refreshes the connection gauges. A failed
// ping reports "degraded" instead of failing the request.
func (s *HealthService) Check(ctx context.Context) *HealthResult {
	res := &HealthResult{Status: "healthy", Service: s.service, Database: "up"}

	if err := database.HealthCheck(s.db.WithContext(ctx)); err != nil {
		log.Printf("[HEALTH] Database check failed: %v", err)
		res.Status = "degraded"
		res.Database = "down"
		return res
	}

	if stats, err := database.GetStats(s.db); err == nil {
		metrics.UpdateDBConnections(stats.InUse, stats.Idle)
	}
	return res
}

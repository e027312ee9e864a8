package jobs

import (
	"fmt"
	"log"
	"time"

	"consulta_ciudadana_go/services"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// tokenCleanupSpec runs the revoked-token cleanup at minute 0 of every hour
const tokenCleanupSpec = "0 * * * *"

// StartScheduler registers the maintenance jobs and starts the cron runner.
// The caller stops it on shutdown.
func StartScheduler(database *gorm.DB) (*cron.Cron, error) {
	loc, err := time.LoadLocation("America/Tegucigalpa")
	if err != nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	if _, err := c.AddFunc(tokenCleanupSpec, func() { CleanupRevokedTokens(database) }); err != nil {
		return nil, fmt.Errorf("failed to schedule token cleanup: %w", err)
	}

	c.Start()
	log.Println("[CRON] Scheduler started")
	return c, nil
}

// CleanupRevokedTokens removes denylist entries for tokens that expired anyway
func CleanupRevokedTokens(database *gorm.DB) {
	if err := services.CleanupRevokedTokens(database); err != nil {
		log.Printf("[CRON] Error cleaning up revoked tokens: %v", err)
	}
}

package reaper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/database"
	"bigpartner/internal/domain"
	"bigpartner/internal/metrics"
)

const (
	batchSize  = 500
	runTimeout = 4 * time.Minute
)

// ImageRemover deletes the stored image files of purged properties
type ImageRemover interface {
	RemoveAll(urls ...string) int
}

// Sweep permanently removes properties that have been in the trash longer
// than retention, together with their favorites and image files. In dry-run
// mode it only counts them. It returns the number of properties purged (or
// found). images may be nil.
func Sweep(ctx context.Context, db *gorm.DB, images ImageRemover, retention time.Duration, dryRun bool, now time.Time) (int64, error) {
	threshold := now.Add(-retention)
	log.Printf("[TRASH-REAPER] scanning threshold=%s dry=%v", threshold.Format(time.RFC3339), dryRun)

	// applied again at delete time so a property restored mid-sweep survives
	expired := func(q *gorm.DB) *gorm.DB {
		return q.Where("deleted = ? AND deleted_at IS NOT NULL AND deleted_at < ?", true, threshold)
	}

	var total int64
	var lastID uint
	for {
		var ids []uint
		if err := db.WithContext(ctx).Model(&domain.Property{}).
			Scopes(expired).Where("id > ?", lastID).
			Order("id").Limit(batchSize).
			Pluck("id", &ids).Error; err != nil {
			return total, fmt.Errorf("select expired: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		lastID = ids[len(ids)-1]

		if dryRun {
			log.Printf("[TRASH-REAPER] DRY RUN would purge %d properties: %v", len(ids), ids)
			total += int64(len(ids))
			continue
		}

		purged, err := database.PurgeProperties(db.WithContext(ctx), ids, expired)
		if err != nil {
			return total, err
		}
		total += int64(len(purged))
		if images != nil {
			for _, p := range purged {
				images.RemoveAll(p.ImageURLs()...)
			}
		}

		if len(ids) < batchSize {
			break
		}
	}

	if !dryRun {
		metrics.RecordTrashPurged(int(total))
	}
	log.Printf("[TRASH-REAPER] done: %d properties, dry=%v", total, dryRun)
	return total, nil
}

// Start schedules Sweep on cfg.ReaperSchedule. The returned cron must be
// stopped on shutdown. It returns nil when the reaper is disabled.
func Start(cfg config.TrashConfig, db *gorm.DB, images ImageRemover) (*cron.Cron, error) {
	if !cfg.ReaperEnabled {
		log.Printf("[TRASH-REAPER] disabled; purge trash with adminctl purge-trash")
		return nil, nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(cfg.ReaperSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := Sweep(ctx, db, images, cfg.Retention(), cfg.DryRun, time.Now().UTC()); err != nil {
			log.Printf("[TRASH-REAPER] error: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule trash reaper: %w", err)
	}

	log.Printf("[TRASH-REAPER] started schedule=%q retention=%dd dryRun=%v",
		cfg.ReaperSchedule, cfg.RetentionDays, cfg.DryRun)
	c.Start()
	return c, nil
}

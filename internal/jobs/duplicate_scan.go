package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"gymdesk/internal/service"

	"github.com/robfig/cron/v3"
)

type DuplicateScanner interface {
	ScanAll(ctx context.Context) ([]service.DuplicateReport, error)
}

type DuplicateScanConfig struct {
	Schedule string
	TimeZone string
	// Timeout bounds one full pass over every client.
	Timeout time.Duration
}

// DuplicateScanJob runs the detectors over every client on a schedule.
// It only reports; removal stays an explicit admin action.
type DuplicateScanJob struct {
	scanner DuplicateScanner
	cfg     DuplicateScanConfig
	cron    *cron.Cron
}

func NewDuplicateScanJob(scanner DuplicateScanner, cfg DuplicateScanConfig) *DuplicateScanJob {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 3 * * *"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &DuplicateScanJob{scanner: scanner, cfg: cfg}
}

// Start schedules the scan; Stop must be called on shutdown.
func (j *DuplicateScanJob) Start() error {
	loc, err := time.LoadLocation(j.cfg.TimeZone)
	if err != nil || j.cfg.TimeZone == "" {
		loc = time.UTC
	}

	c := cron.New(cron.WithLocation(loc))

	_, err = c.AddFunc(j.cfg.Schedule, func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			log.Printf("[SCAN] scheduled scan failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("unable to schedule duplicate scan: %w", err)
	}

	c.Start()
	j.cron = c
	log.Printf("[SCAN] duplicate scan scheduled (%s, %s)", j.cfg.Schedule, loc)
	return nil
}

func (j *DuplicateScanJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunOnce scans every client and returns how many have duplicates.
func (j *DuplicateScanJob) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	started := time.Now()
	log.Printf("[SCAN] starting duplicate scan")

	reports, err := j.scanner.ScanAll(ctx)
	for _, r := range reports {
		log.Printf("[SCAN] client=%s duplicate_payments=%d duplicate_plans=%d total_records=%d",
			r.ClientID, r.DuplicatePaymentCount, r.DuplicatePlanCount, r.TotalRecords)
	}
	log.Printf("[SCAN] finished in %s: %d client(s) with duplicates", time.Since(started).Round(time.Millisecond), len(reports))

	return len(reports), err
}

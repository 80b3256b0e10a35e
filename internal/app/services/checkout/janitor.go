package checkout

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bytebazaar/storefront/internal/logging"
)

// Janitor periodically expires abandoned pending transactions. It is
// lifecycle-managed by the system manager.
type Janitor struct {
	service  *Service
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	log      *logging.Logger
}

// NewJanitor creates a janitor running on the given cron schedule
// ("@every 10m" by default).
func NewJanitor(service *Service, maxAge time.Duration, schedule string, log *logging.Logger) *Janitor {
	if log == nil {
		log = logging.NewDefault("checkout-janitor")
	}
	if schedule == "" {
		schedule = "@every 10m"
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Janitor{service: service, maxAge: maxAge, schedule: schedule, log: log}
}

// Name implements system.Service.
func (j *Janitor) Name() string { return "checkout-janitor" }

// Start implements system.Service.
func (j *Janitor) Start(_ context.Context) error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.schedule, j.run)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop implements system.Service.
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
	return nil
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := j.service.ExpireStale(ctx, j.maxAge)
	if err != nil {
		j.log.WithError(err).Warn("expire stale transactions")
		return
	}
	if expired > 0 {
		j.log.WithField("expired", expired).Info("expired stale transactions")
	}
}

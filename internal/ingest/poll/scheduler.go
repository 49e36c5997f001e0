// Package poll actively probes registered targets on their poll intervals
// and feeds the results through the parser and engine. One scheduler
// goroutine selects due targets each tick and fans the work out to a
// bounded worker pool.
package poll

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/engine"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/metrics"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/registry"
	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/vault"
)

const pollDeadline = 60 * time.Second

// TargetStore is the persistence surface the scheduler needs.
type TargetStore interface {
	DueTargets(ctx context.Context, now time.Time) ([]*models.Target, error)
	GetTarget(ctx context.Context, id uuid.UUID) (*models.Target, error)
	TouchTargetPoll(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Scheduler drives periodic polling. Protocol clients are pluggable so
// tests can substitute fakes.
type Scheduler struct {
	store    TargetStore
	registry *registry.Registry
	engine   *engine.Engine
	vault    *vault.Vault

	tick time.Duration
	sem  *semaphore.Weighted
	wg   sync.WaitGroup

	httpClient *http.Client
	snmpFetch  snmpFetchFunc
	sshRun     sshRunFunc
}

// NewScheduler builds a scheduler with the given worker cap.
func NewScheduler(st TargetStore, reg *registry.Registry, eng *engine.Engine, v *vault.Vault, tick time.Duration, workers int) *Scheduler {
	if tick <= 0 {
		tick = time.Minute
	}
	if workers <= 0 {
		workers = 200
	}
	return &Scheduler{
		store:      st,
		registry:   reg,
		engine:     eng,
		vault:      v,
		tick:       tick,
		sem:        semaphore.NewWeighted(int64(workers)),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		snmpFetch:  snmpGet,
		sshRun:     sshExecute,
	}
}

// Run ticks until ctx is cancelled, then waits for in-flight polls.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	log.Info().Dur("tick", s.tick).Msg("Poll scheduler started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poll scheduler stopping, draining workers")
			s.wg.Wait()
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

// PollNow runs one target immediately, outside its schedule.
func (s *Scheduler) PollNow(ctx context.Context, targetID uuid.UUID) error {
	target, err := s.store.GetTarget(ctx, targetID)
	if err != nil {
		return err
	}
	addon := s.registry.Get(target.AddonID)
	if addon == nil {
		return fmt.Errorf("target %s has no enabled addon", target.ID)
	}
	s.spawn(ctx, target, addon)
	return nil
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	due, err := s.store.DueTargets(ctx, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to select due targets")
		return
	}
	for _, target := range due {
		addon := s.registry.Get(target.AddonID)
		if addon == nil {
			continue
		}
		s.spawn(ctx, target, addon)
	}
}

func (s *Scheduler) spawn(ctx context.Context, target *models.Target, addon *models.Addon) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)
		s.pollTarget(target, addon)
	}()
}

// pollTarget runs one poll job with its own deadline, detached from the
// scheduler's tick context so cancellation lands at tick boundaries only.
func (s *Scheduler) pollTarget(target *models.Target, addon *models.Addon) {
	ctx, cancel := context.WithTimeout(context.Background(), pollDeadline)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.PollsFailed.Inc()
			log.Error().Interface("panic", r).Str("target", target.IPAddress).Msg("Panic while polling target")
		}
	}()

	metrics.PollsRun.Inc()
	start := time.Now()

	var err error
	switch addon.Method {
	case models.MethodAPIPoll:
		err = s.pollAPI(ctx, target, addon)
	case models.MethodSNMPPoll:
		err = s.pollSNMP(ctx, target, addon)
	case models.MethodSSH:
		err = s.pollSSH(ctx, target, addon)
	default:
		err = fmt.Errorf("addon %s is not pollable (method %s)", addon.ID, addon.Method)
	}

	if touchErr := s.store.TouchTargetPoll(ctx, target.ID, time.Now().UTC()); touchErr != nil {
		log.Error().Err(touchErr).Str("target", target.IPAddress).Msg("Failed to stamp last poll time")
	}

	if err != nil {
		metrics.PollsFailed.Inc()
		log.Warn().Err(err).Str("target", target.IPAddress).Str("addon", addon.ID).
			Dur("elapsed", time.Since(start)).Msg("Poll failed")
		return
	}
	metrics.PollsSucceeded.Inc()
	log.Debug().Str("target", target.IPAddress).Str("addon", addon.ID).
		Dur("elapsed", time.Since(start)).Msg("Poll completed")
}

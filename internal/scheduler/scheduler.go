package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ticket-intake-go/internal/assign"
	"ticket-intake-go/internal/config"
	"ticket-intake-go/internal/fetcher"
	"ticket-intake-go/internal/metrics"
	"ticket-intake-go/internal/model"
	"ticket-intake-go/internal/pipeline"
	"ticket-intake-go/internal/rules"
)

// Store is the persistence the scheduler reads between cycles.
type Store interface {
	ListActiveRules(ctx context.Context) ([]model.ProcessingRule, error)
	ListOpenTickets(ctx context.Context) ([]model.Ticket, error)
	ListTechnicians(ctx context.Context) ([]model.Technician, error)
}

// Ingester turns one message into a ticket.
type Ingester interface {
	Ingest(ctx context.Context, msg *model.InboundMessage, ruleSet []model.ProcessingRule, settings pipeline.Settings) (*pipeline.Result, error)
}

// Acknowledger tells the requester that a ticket was opened.
type Acknowledger interface {
	Acknowledge(ctx context.Context, msg *model.InboundMessage, ticket *model.Ticket) error
}

// CycleReport summarizes one mailbox cycle
type CycleReport struct {
	Fetched        int `json:"fetched"`
	Ingested       int `json:"ingested"`
	TicketsCreated int `json:"tickets_created"`
	Failed         int `json:"failed"`
}

// SweepReport summarizes one assignment sweep
type SweepReport struct {
	Pending  int `json:"pending"`
	Assigned int `json:"assigned"`
}

// Scheduler runs the mailbox poll and the assignment sweep periodically
type Scheduler struct {
	cron       *cron.Cron
	pollEntry  cron.EntryID
	sweepEntry cron.EntryID
	config     *config.SchedulerConfig
	settings   pipeline.Settings
	fetcher    fetcher.Fetcher
	store      Store
	ingester   Ingester
	assigner   pipeline.Assigner
	notifier   Acknowledger
	metrics    *metrics.Metrics
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	isRunning  bool
	mu         sync.RWMutex
	pollMu     sync.Mutex
	sweepMu    sync.Mutex
}

// NewScheduler creates a new scheduler. notifier may be nil.
func NewScheduler(cfg *config.SchedulerConfig, settings pipeline.Settings, f fetcher.Fetcher, store Store, ingester Ingester, assigner pipeline.Assigner, notifier Acknowledger, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		config:   cfg,
		settings: settings,
		fetcher:  f,
		store:    store,
		ingester: ingester,
		assigner: assigner,
		notifier: notifier,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.VerbosePrintfLogger(logrus.StandardLogger()))))

	pollEntry, err := c.AddFunc(fmt.Sprintf("@every %dm", s.config.IntervalMinutes), s.poll)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	var sweepEntry cron.EntryID
	if s.config.AssignSweepMinutes > 0 && s.assigner != nil {
		sweepEntry, err = c.AddFunc(fmt.Sprintf("@every %dm", s.config.AssignSweepMinutes), s.sweep)
		if err != nil {
			return fmt.Errorf("failed to add cron job: %w", err)
		}
	}

	s.cron = c
	s.pollEntry = pollEntry
	s.sweepEntry = sweepEntry
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes, assignment sweep: %d minutes",
		s.config.IntervalMinutes, s.config.AssignSweepMinutes)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	// Cancel context to stop any running operations
	s.cancel()

	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

func (s *Scheduler) poll() {
	if _, err := s.ProcessMailbox(s.runContext()); err != nil {
		logrus.Errorf("Mailbox cycle failed: %v", err)
	}
}

func (s *Scheduler) sweep() {
	if _, err := s.SweepUnassigned(s.runContext()); err != nil {
		logrus.Errorf("Assignment sweep failed: %v", err)
	}
}

// ProcessMailbox fetches new messages and ingests them against one snapshot
// of the active rules. Cycles never overlap.
func (s *Scheduler) ProcessMailbox(ctx context.Context) (*CycleReport, error) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	logrus.Info("Starting mailbox processing cycle")
	startTime := time.Now()
	report := &CycleReport{}

	if s.metrics != nil {
		s.metrics.PullCount.Inc()
		defer func() {
			s.metrics.ProcessingTime.Observe(time.Since(startTime).Seconds())
		}()
	}

	messages, err := s.fetcher.FetchNewMessages(ctx)
	if err != nil {
		if s.metrics != nil {
			s.metrics.FetchFailures.Inc()
		}
		return report, fmt.Errorf("failed to fetch messages: %w", err)
	}
	report.Fetched = len(messages)
	logrus.Infof("Fetched %d new messages", len(messages))

	if len(messages) == 0 {
		return report, nil
	}

	ruleSet, err := s.store.ListActiveRules(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load rules: %w", err)
	}
	if s.metrics != nil {
		s.metrics.ActiveRules.Set(float64(len(ruleSet)))
	}

	for i := range messages {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		s.processMessage(ctx, &messages[i], ruleSet, startTime, report)
	}

	logrus.Infof("Mailbox processing cycle completed in %v", time.Since(startTime))
	return report, nil
}

func (s *Scheduler) processMessage(ctx context.Context, msg *model.InboundMessage, ruleSet []model.ProcessingRule, cycleStart time.Time, report *CycleReport) {
	log := logrus.WithField("message_id", msg.ID)

	res, err := s.ingester.Ingest(ctx, msg, ruleSet, s.settings)
	if err != nil {
		report.Failed++
		if errors.Is(err, rules.ErrInvalidActionValue) {
			log.Warnf("Message left unprocessed until the rule is fixed: %v", err)
		} else {
			log.Errorf("Failed to ingest message: %v", err)
		}
		return
	}
	report.Ingested++

	if marker, ok := s.fetcher.(fetcher.SeenMarker); ok && msg.ProviderRef != "" {
		if err := marker.MarkSeen(ctx, msg); err != nil {
			log.Warnf("Failed to mark message as seen: %v", err)
		}
	}

	// results recorded by an earlier cycle were acknowledged then
	if res.Ticket == nil || res.ImportedAt.Before(cycleStart) {
		return
	}
	report.TicketsCreated++

	if s.notifier != nil {
		if err := s.notifier.Acknowledge(ctx, msg, res.Ticket); err != nil {
			log.Warnf("Failed to acknowledge ticket: %v", err)
		}
	}
}

// SweepUnassigned retries assignment for every ticket still waiting for a
// technician.
func (s *Scheduler) SweepUnassigned(ctx context.Context) (*SweepReport, error) {
	s.wg.Add(1)
	defer s.wg.Done()

	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	report := &SweepReport{}
	if s.assigner == nil {
		return report, nil
	}

	open, err := s.store.ListOpenTickets(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list tickets: %w", err)
	}
	pending := assign.Unassigned(open)
	report.Pending = len(pending)

	if len(pending) > 0 {
		pool, err := s.store.ListTechnicians(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to list technicians: %w", err)
		}

		for _, t := range pending {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			ok, err := s.assigner.AssignToAvailableTechnician(ctx, t.ID, pool)
			if err != nil {
				logrus.WithField("ticket_id", t.ID).Warnf("Auto-assignment failed: %v", err)
				continue
			}
			if !ok {
				if s.metrics != nil {
					s.metrics.AssignMisses.Inc()
				}
				continue
			}
			report.Assigned++
			if s.metrics != nil {
				s.metrics.AutoAssigned.Inc()
			}
		}
	}

	if s.metrics != nil {
		s.metrics.UnassignedQueue.Set(float64(report.Pending - report.Assigned))
	}
	if report.Pending > 0 {
		logrus.Infof("Assignment sweep assigned %d of %d pending tickets", report.Assigned, report.Pending)
	}
	return report, nil
}

// RunOnce runs the mailbox cycle and the assignment sweep once (for manual triggering)
func (s *Scheduler) RunOnce(ctx context.Context) (*CycleReport, error) {
	logrus.Info("Running mailbox processing once")
	report, err := s.ProcessMailbox(ctx)
	if err != nil {
		return report, err
	}
	if _, err := s.SweepUnassigned(ctx); err != nil {
		logrus.Errorf("Assignment sweep failed: %v", err)
	}
	return report, nil
}

// GetNextRun returns the time of the next scheduled mailbox cycle
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.pollEntry).Next
}

// GetLastRun returns the time of the last scheduled mailbox cycle
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.pollEntry).Prev
}

// Wait waits for running cycles to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

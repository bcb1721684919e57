package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-beaute/internal/common"
	"github.com/noah-isme/backend-beaute/internal/lock"
	"github.com/noah-isme/backend-beaute/internal/obs"
)

const (
	DefaultBatchSize   = 50
	DefaultBatchDelay  = time.Second
	defaultConcurrency = 10
	broadcastKind      = "broadcast"
)

// ErrCampaignRunning is returned when another worker already holds the campaign lock.
var ErrCampaignRunning = errors.New("notify: campaign already running")

// Campaign is a single bulk email send.
type Campaign struct {
	ID         string   `json:"campaignId"`
	Subject    string   `json:"subject"`
	HTML       string   `json:"html"`
	Recipients []string `json:"recipients"`
}

// Failure records a recipient that could not be reached.
type Failure struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// Report summarises a campaign run.
type Report struct {
	CampaignID string    `json:"campaignId"`
	Requested  int       `json:"requested"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Resumed    int       `json:"resumed,omitempty"`
	Batches    int       `json:"batches"`
	Failures   []Failure `json:"failures,omitempty"`
}

// Locker runs fn under an exclusive lock or reports that the lock is held.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Broadcaster sends a campaign in fixed-size batches with a fixed pause between them.
type Broadcaster struct {
	Mail        common.EmailSender
	Lock        Locker
	Sent        DeliveryLog
	BatchSize   int
	Delay       time.Duration
	Concurrency int
	LockTTL     time.Duration
	Logger      zerolog.Logger
	// Wait pauses between batches; nil uses a context-aware timer.
	Wait func(ctx context.Context, d time.Duration) error
}

// Send delivers c. A failed recipient is recorded and the run continues.
func (b Broadcaster) Send(ctx context.Context, c Campaign) (Report, error) {
	if b.Mail == nil {
		return Report{}, errors.New("notify: email sender not configured")
	}
	if strings.TrimSpace(c.ID) == "" {
		return Report{}, errors.New("notify: campaign id is required")
	}
	if b.Lock == nil {
		return b.send(ctx, c)
	}
	ttl := b.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	var report Report
	err := b.Lock.TryWithLock(ctx, "broadcast:"+c.ID, ttl, func(ctx context.Context) error {
		var err error
		report, err = b.send(ctx, c)
		return err
	})
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return Report{}, fmt.Errorf("%w: %s", ErrCampaignRunning, c.ID)
		}
		return report, err
	}
	return report, nil
}

func (b Broadcaster) send(ctx context.Context, c Campaign) (Report, error) {
	recipients, skipped := NormalizeRecipients(c.Recipients)
	report := Report{
		CampaignID: c.ID,
		Requested:  len(c.Recipients),
		Skipped:    len(skipped),
	}
	for _, addr := range skipped {
		report.Failures = append(report.Failures, Failure{Email: addr, Reason: "invalid address"})
	}
	logger := b.Logger.With().Str("campaign_id", c.ID).Logger()

	if b.Sent != nil {
		done, err := b.Sent.Delivered(ctx, c.ID)
		if err != nil {
			return report, fmt.Errorf("load delivered recipients: %w", err)
		}
		if len(done) > 0 {
			pending := recipients[:0:0]
			for _, addr := range recipients {
				if _, ok := done[addr]; !ok {
					pending = append(pending, addr)
				}
			}
			report.Resumed = len(recipients) - len(pending)
			recipients = pending
			logger.Info().Int("already_sent", report.Resumed).Msg("resuming broadcast")
		}
	}

	size := b.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	delay := b.Delay
	if delay < 0 {
		delay = 0
	}
	wait := b.Wait
	if wait == nil {
		wait = sleep
	}

	for start := 0; start < len(recipients); start += size {
		if start > 0 && delay > 0 {
			if err := wait(ctx, delay); err != nil {
				return report, err
			}
		}
		end := min(start+size, len(recipients))
		batch := recipients[start:end]
		began := time.Now()
		failures := b.sendBatch(ctx, c, batch)
		if obs.BroadcastBatchDuration != nil {
			obs.BroadcastBatchDuration.Observe(float64(time.Since(began).Milliseconds()))
		}
		report.Batches++
		report.Sent += len(batch) - len(failures)
		report.Failed += len(failures)
		report.Failures = append(report.Failures, failures...)
		if b.Sent != nil {
			if err := b.Sent.MarkDelivered(context.WithoutCancel(ctx), c.ID, delivered(batch, failures)...); err != nil {
				logger.Warn().Err(err).Msg("record delivered recipients failed")
			}
		}
		logger.Info().
			Int("batch", report.Batches).
			Int("size", len(batch)).
			Int("failed", len(failures)).
			Msg("broadcast batch sent")
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
	logger.Info().Int("sent", report.Sent).Int("failed", report.Failed).Int("skipped", report.Skipped).Msg("broadcast finished")
	return report, nil
}

func (b Broadcaster) sendBatch(ctx context.Context, c Campaign, batch []string) []Failure {
	limit := b.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	var (
		mu       sync.Mutex
		failures []Failure
	)
	var g errgroup.Group
	g.SetLimit(limit)
	for _, addr := range batch {
		g.Go(func() error {
			err := b.Mail.Send(ctx, common.Email{To: addr, Subject: c.Subject, HTML: c.HTML})
			countEmail(broadcastKind, err)
			if err != nil {
				mu.Lock()
				failures = append(failures, Failure{Email: addr, Reason: err.Error()})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

func delivered(batch []string, failures []Failure) []string {
	if len(failures) == 0 {
		return batch
	}
	failed := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		failed[f.Email] = struct{}{}
	}
	out := make([]string, 0, len(batch)-len(failures))
	for _, addr := range batch {
		if _, ok := failed[addr]; !ok {
			out = append(out, addr)
		}
	}
	return out
}

// NormalizeRecipients trims, lowercases and dedupes addresses, keeping first-seen
// order. Addresses that fail validation are returned separately.
func NormalizeRecipients(raw []string) (valid, invalid []string) {
	seen := make(map[string]struct{}, len(raw))
	v := common.Validator()
	for _, addr := range raw {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		if err := v.Var(addr, "required,email"); err != nil {
			invalid = append(invalid, addr)
			continue
		}
		valid = append(valid, addr)
	}
	return valid, invalid
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

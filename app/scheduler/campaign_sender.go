// Package scheduler
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/harborcrm/harbor-backend/app/services"
	"github.com/harborcrm/harbor-backend/config"
	"github.com/harborcrm/harbor-backend/models"
	"github.com/harborcrm/harbor-backend/repository"
	"github.com/harborcrm/harbor-backend/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Delivery outcomes partitioned by provider
	emailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_emails_sent_total",
			Help: "Total number of campaign emails accepted by the provider",
		},
		[]string{"provider"},
	)

	emailsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_emails_failed_total",
			Help: "Total number of campaign emails rejected by the provider",
		},
		[]string{"provider"},
	)

	// Campaign drains that reached a terminal status, partitioned by outcome
	campaignsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaigns_finished_total",
			Help: "Total number of campaign sends that reached a terminal status",
		},
		[]string{"outcome"},
	)

	campaignsDraining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaigns_draining",
			Help: "Number of campaigns currently draining their recipient ledger",
		},
	)
)

// CampaignSender drains recipient ledgers of sending campaigns in rate-limited
// batches. It also resumes campaigns stuck in sending after a restart and
// activates scheduled campaigns whose scheduled_at has passed.
type CampaignSender struct {
	campaignRepo  repository.CampaignRepository
	recipientRepo repository.RecipientRepository
	provider      services.EmailProvider
	quota         services.DailyQuota
	tokenService  services.UnsubscribeTokenService
	appCfg        config.AppConfig
	cfg           config.SchedulerConfig
	logger        *log.Logger
	db            *gorm.DB

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	draining map[uint]bool
}

func NewCampaignSender(
	campaignRepo repository.CampaignRepository,
	recipientRepo repository.RecipientRepository,
	provider services.EmailProvider,
	quota services.DailyQuota,
	tokenService services.UnsubscribeTokenService,
	appCfg config.AppConfig,
	cfg config.SchedulerConfig,
	logger *log.Logger,
	db *gorm.DB,
) *CampaignSender {
	if cfg.ResumeInterval <= 0 {
		cfg.ResumeInterval = time.Minute
	}
	if cfg.ActivationInterval <= 0 {
		cfg.ActivationInterval = 30 * time.Second
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "sender ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}

	return &CampaignSender{
		campaignRepo:  campaignRepo,
		recipientRepo: recipientRepo,
		provider:      provider,
		quota:         quota,
		tokenService:  tokenService,
		appCfg:        appCfg,
		cfg:           cfg,
		logger:        logger,
		db:            db,
		draining:      make(map[uint]bool),
	}
}

// Start launches the background loops and returns a stop function that blocks
// until in-flight drains observe cancellation
func (s *CampaignSender) Start(parent context.Context) func() {
	s.ctx, s.cancel = context.WithCancel(parent)

	// Campaigns left in sending by a previous process are picked up first
	s.resumeStuck()

	s.wg.Add(2)
	go s.resumeLoop()
	go s.activationLoop()

	return func() {
		s.cancel()
		s.wg.Wait()
	}
}

// Dispatch starts draining a campaign's ledger in the background. Repeated
// dispatches of the same campaign while a drain is running are no-ops.
func (s *CampaignSender) Dispatch(campaignID uint) {
	s.mu.Lock()
	if s.draining[campaignID] {
		s.mu.Unlock()
		return
	}
	s.draining[campaignID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	campaignsDraining.Inc()
	go func() {
		defer s.wg.Done()
		defer campaignsDraining.Dec()
		defer func() {
			s.mu.Lock()
			delete(s.draining, campaignID)
			s.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Printf("panic draining campaign %d: %v", campaignID, r)
				s.markFailed(campaignID)
			}
		}()

		s.drain(s.ctx, campaignID)
	}()
}

func (s *CampaignSender) resumeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ResumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.resumeStuck()
		}
	}
}

// resumeStuck re-dispatches every campaign sitting in sending. Dispatch
// deduplicates, so campaigns already draining are unaffected.
func (s *CampaignSender) resumeStuck() {
	campaigns, err := s.campaignRepo.ListByStatus(s.ctx, models.CampaignStatusSending)
	if err != nil {
		s.logger.Printf("resume scan failed: %v", err)
		return
	}
	for _, c := range campaigns {
		s.Dispatch(c.ID)
	}
}

func (s *CampaignSender) activationLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ActivationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.activateDue()
		}
	}
}

// activateDue claims scheduled campaigns whose time has come. The claim is the
// same conditional status update the send endpoint uses, so a campaign sent
// manually in the meantime is skipped.
func (s *CampaignSender) activateDue() {
	due, err := s.campaignRepo.DueScheduled(s.ctx, utils.UTCNow())
	if err != nil {
		s.logger.Printf("scheduled scan failed: %v", err)
		return
	}

	for _, c := range due {
		claimed, err := s.campaignRepo.TransitionStatus(s.ctx, c.ID,
			[]models.CampaignStatus{models.CampaignStatusScheduled}, models.CampaignStatusSending)
		if err != nil {
			s.logger.Printf("failed to activate campaign %d: %v", c.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		s.logger.Printf("activated scheduled campaign %d (%s)", c.ID, c.UUID)
		s.Dispatch(c.ID)
	}
}

// drain sends the queued ledger in batches until the ledger is empty, the
// daily quota runs out, or the context is cancelled. Quota exhaustion and
// cancellation leave the campaign in sending so a later pass finishes it.
func (s *CampaignSender) drain(ctx context.Context, campaignID uint) {
	campaign, err := s.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		s.logger.Printf("failed to load campaign %d: %v", campaignID, err)
		return
	}
	if campaign == nil || campaign.Status != models.CampaignStatusSending {
		return
	}

	providerName := s.provider.Name()

	for {
		if ctx.Err() != nil {
			return
		}

		used, err := s.quota.Used(ctx, providerName)
		if err != nil {
			s.logger.Printf("quota lookup failed for campaign %d: %v", campaignID, err)
			return
		}
		remaining := s.provider.DailyLimit() - used
		if remaining <= 0 {
			s.logger.Printf("daily quota exhausted, pausing campaign %d", campaignID)
			return
		}

		batch, err := s.recipientRepo.NextQueuedBatch(ctx, campaignID, min(s.provider.BatchSize(), remaining))
		if err != nil {
			s.logger.Printf("failed to load queued batch for campaign %d: %v", campaignID, err)
			s.markFailed(campaignID)
			return
		}
		if len(batch) == 0 {
			s.finalize(ctx, campaignID)
			return
		}

		sent, failed, err := s.sendBatch(ctx, campaign, batch)
		if err != nil {
			// Transport-level failure: the batch stays queued and the campaign
			// stays in sending, so the resume pass retries it later instead of
			// this loop spinning against a dead provider
			s.logger.Printf("provider batch send failed for campaign %d: %v", campaignID, err)
			return
		}
		if ctx.Err() != nil {
			return
		}

		if sent > 0 {
			if _, err := s.quota.Consume(ctx, providerName, sent); err != nil {
				s.logger.Printf("quota consume failed for campaign %d: %v", campaignID, err)
			}
		}
		if err := s.campaignRepo.IncrementDeliveryCounters(ctx, campaignID, sent, failed); err != nil {
			s.logger.Printf("failed to bump delivery counters for campaign %d: %v", campaignID, err)
		}

		emailsSentTotal.WithLabelValues(providerName).Add(float64(sent))
		emailsFailedTotal.WithLabelValues(providerName).Add(float64(failed))

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.BatchDelay):
		}
	}
}

// sendBatch delivers one ledger batch and records per-recipient outcomes. A
// transport-level error is returned to the caller with the batch untouched.
func (s *CampaignSender) sendBatch(ctx context.Context, campaign *models.EmailCampaign, batch []*models.CampaignRecipient) (sent, failed int, _ error) {
	reqs := make([]services.SendRequest, 0, len(batch))
	for _, r := range batch {
		req := services.SendRequest{
			To:          r.Email,
			ToName:      r.Name,
			Subject:     campaign.Subject,
			HTMLContent: campaign.HTMLContent,
			SenderName:  campaign.SenderName,
			SenderEmail: campaign.SenderEmail,
		}
		unsubURL, err := s.tokenService.BuildURL(s.appCfg.BaseURL, r.Email, campaign.UUID.String())
		if err != nil {
			s.logger.Printf("failed to build unsubscribe url for %s: %v", r.Email, err)
		} else {
			req.UnsubscribeURL = unsubURL
		}
		reqs = append(reqs, req)
	}

	results, err := s.provider.SendBatch(ctx, reqs)
	if err != nil {
		return 0, 0, err
	}

	for i, res := range results {
		if i >= len(batch) {
			break
		}
		recipient := batch[i]

		if res.Success {
			if err := s.recipientRepo.MarkSent(ctx, recipient.ID, res.MessageID, utils.UTCNow()); err != nil {
				s.logger.Printf("failed to mark recipient %d sent: %v", recipient.ID, err)
				continue
			}
			sent++
		} else {
			message := "provider rejected message"
			if res.Error != nil {
				message = *res.Error
			}
			if err := s.recipientRepo.MarkFailed(ctx, recipient.ID, message); err != nil {
				s.logger.Printf("failed to mark recipient %d failed: %v", recipient.ID, err)
				continue
			}
			failed++
		}
	}

	return sent, failed, nil
}

// finalize moves a fully drained campaign into its terminal status
func (s *CampaignSender) finalize(ctx context.Context, campaignID uint) {
	counts, err := s.recipientRepo.CountByStatus(ctx, campaignID)
	if err != nil {
		s.logger.Printf("failed to count ledger for campaign %d: %v", campaignID, err)
		return
	}
	if counts[models.RecipientStatusQueued] > 0 {
		return
	}

	done, err := s.campaignRepo.TransitionStatus(ctx, campaignID,
		[]models.CampaignStatus{models.CampaignStatusSending}, models.CampaignStatusSent)
	if err != nil {
		s.logger.Printf("failed to finalize campaign %d: %v", campaignID, err)
		return
	}
	if done {
		campaignsFinishedTotal.WithLabelValues("sent").Inc()
		s.logger.Printf("campaign %d fully drained: %d sent, %d failed",
			campaignID, counts[models.RecipientStatusSent], counts[models.RecipientStatusFailed])
	}
}

func (s *CampaignSender) markFailed(campaignID uint) {
	// Use a fresh context: this runs on panic or fatal error paths where the
	// drain context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done, err := s.campaignRepo.TransitionStatus(ctx, campaignID,
		[]models.CampaignStatus{models.CampaignStatusSending}, models.CampaignStatusFailed)
	if err != nil {
		s.logger.Printf("failed to mark campaign %d failed: %v", campaignID, err)
		return
	}
	if done {
		campaignsFinishedTotal.WithLabelValues("failed").Inc()
	}
}

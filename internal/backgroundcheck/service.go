package backgroundcheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/believeinme/background-check-service/internal/checkr"
	"github.com/believeinme/background-check-service/internal/logger"
	"github.com/believeinme/background-check-service/internal/metrics"
	"github.com/believeinme/background-check-service/internal/models"
	"github.com/believeinme/background-check-service/internal/storage"
)

// Provider is the background-check provider API.
type Provider interface {
	CreateCandidate(ctx context.Context, pii models.LeadPII) (string, error)
	CreateReport(ctx context.Context, candidateID, pkg string) (string, error)
	GetReport(ctx context.Context, reportID string) (*checkr.Report, error)
}

// CRM receives background check records.
type CRM interface {
	CreateBackgroundCheck(ctx context.Context, record *models.BackgroundCheck) (string, error)
}

// Outcome is the result of handling a provider webhook.
type Outcome string

const (
	// OutcomeIgnored is an event type the service does not act on.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDuplicate is a completion for an unknown or already completed report.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeProcessed means the results were posted to the CRM.
	OutcomeProcessed Outcome = "processed"
	// OutcomeFailed means the report or one of its screenings carried an
	// error, which was posted to the CRM.
	OutcomeFailed Outcome = "failed"
)

// Config holds the tenant settings the workflow runs with.
type Config struct {
	OrganizationID string
	Package        string
}

// Service runs the background check workflow: candidate and report creation
// on CRM notifications, result reporting on provider webhooks.
type Service struct {
	cfg      Config
	store    storage.Storage
	provider Provider
	crm      CRM
	log      logger.Logger
}

// NewService creates a workflow service
func NewService(cfg Config, store storage.Storage, provider Provider, crm CRM, log logger.Logger) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		provider: provider,
		crm:      crm,
		log:      log,
	}
}

// HandleOutboundMessage processes a CRM outbound message. Notifications from
// another organization are dropped. Each notification in the envelope starts
// an independent workflow run. Errors returned here are parse, store or CRM
// failures; provider failures are reported to the CRM instead.
func (s *Service) HandleOutboundMessage(ctx context.Context, body []byte) error {
	msg, err := ParseOutboundMessage(body)
	if err != nil {
		metrics.InboundNotifications.WithLabelValues("malformed").Inc()
		return err
	}

	if msg.OrganizationID != s.cfg.OrganizationID {
		s.log.Warn("Invalid organization id, ignoring notification", map[string]interface{}{
			"organization_id": msg.OrganizationID,
		})
		metrics.InboundNotifications.WithLabelValues("rejected").Inc()
		return nil
	}

	leads, err := msg.Leads()
	if err != nil {
		metrics.InboundNotifications.WithLabelValues("malformed").Inc()
		return err
	}

	for _, lead := range leads {
		if err := s.run(ctx, lead); err != nil {
			metrics.InboundNotifications.WithLabelValues("error").Inc()
			return err
		}
	}
	return nil
}

func (s *Service) run(ctx context.Context, lead models.Lead) error {
	log := s.log.WithFields(map[string]interface{}{
		"run_id":  uuid.NewString(),
		"lead_id": lead.ID,
	})
	log.Info("Starting background check", nil)

	record, err := s.createCandidate(ctx, log, lead)
	if err != nil {
		return err
	}
	if record == nil {
		metrics.InboundNotifications.WithLabelValues("candidate_failed").Inc()
		return nil
	}

	if err := s.createReport(ctx, log, record); err != nil {
		return err
	}
	metrics.InboundNotifications.WithLabelValues("processed").Inc()
	return nil
}

// CreateCandidate registers the lead with the provider and records the
// workflow. It reports false when the lead already has a workflow or the
// provider rejects the candidate; both are posted to the CRM.
func (s *Service) CreateCandidate(ctx context.Context, lead models.Lead) (string, bool, error) {
	record, err := s.createCandidate(ctx, s.log.WithFields(map[string]interface{}{"lead_id": lead.ID}), lead)
	if err != nil || record == nil {
		return "", false, err
	}
	return record.CandidateID, true, nil
}

// createCandidate returns the stored record, or nil when the candidate was
// not created.
func (s *Service) createCandidate(ctx context.Context, log logger.Logger, lead models.Lead) (*models.WorkflowRecord, error) {
	name := lead.PII.DisplayName()

	existing, err := s.store.GetByLeadID(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Warn("Candidate already created for lead", map[string]interface{}{"candidate_id": existing.CandidateID})
		return nil, s.post(ctx, log, KindDuplicateCandidate, CreateCandidateErrorRecord(lead.ID, name, DuplicateCandidateMessage))
	}

	candidateID, err := s.provider.CreateCandidate(ctx, lead.PII)
	if err != nil {
		log.Warn("Error creating candidate", map[string]interface{}{"error": err.Error()})
		return nil, s.post(ctx, log, KindCreateCandidate, CreateCandidateErrorRecord(lead.ID, name, providerMessage(err)))
	}

	record := models.WorkflowRecord{
		Name:        name,
		LeadID:      lead.ID,
		CandidateID: candidateID,
		Status:      models.StatusCandidateCreated,
	}
	err = s.store.CreateRecord(ctx, record)
	if errors.Is(err, storage.ErrRecordExists) {
		log.Warn("Workflow recorded concurrently for lead", map[string]interface{}{"candidate_id": candidateID})
		return nil, s.post(ctx, log, KindDuplicateCandidate, CreateCandidateErrorRecord(lead.ID, name, DuplicateCandidateMessage))
	}
	if err != nil {
		return nil, err
	}

	log.Info("Candidate created", map[string]interface{}{"candidate_id": candidateID})
	return &record, nil
}

// CreateReport orders a report for the candidate. A provider rejection is
// posted to the CRM and is not an error.
func (s *Service) CreateReport(ctx context.Context, candidateID string) error {
	record, err := s.store.GetByCandidateID(ctx, candidateID)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("candidate %s: %w", candidateID, storage.ErrRecordNotFound)
	}
	return s.createReport(ctx, s.log.WithFields(map[string]interface{}{"lead_id": record.LeadID}), record)
}

func (s *Service) createReport(ctx context.Context, log logger.Logger, record *models.WorkflowRecord) error {
	log = log.WithFields(map[string]interface{}{"candidate_id": record.CandidateID})

	reportID, err := s.provider.CreateReport(ctx, record.CandidateID, s.cfg.Package)
	if err != nil {
		log.Warn("Error creating report", map[string]interface{}{"error": err.Error()})
		return s.post(ctx, log, KindCreateReport, CreateReportErrorRecord(record.LeadID, record.Name, providerMessage(err)))
	}

	if err := s.store.SetReportCreated(ctx, record.LeadID, reportID); err != nil {
		return err
	}

	log.Info("Report created", map[string]interface{}{"report_id": reportID})
	return nil
}

// HandleProviderEvent acts on report completion webhooks. Other event types,
// completions without a report id, unknown reports and reports already
// completed are ignored.
func (s *Service) HandleProviderEvent(ctx context.Context, event checkr.Event) (Outcome, error) {
	outcome, err := s.handleProviderEvent(ctx, event)
	label := string(outcome)
	if err != nil {
		label = "error"
	}
	metrics.ProviderWebhooks.WithLabelValues(event.Type, label).Inc()
	return outcome, err
}

func (s *Service) handleProviderEvent(ctx context.Context, event checkr.Event) (Outcome, error) {
	if event.Type != checkr.EventReportCompleted {
		s.log.Debug("Ignoring webhook", map[string]interface{}{"type": event.Type})
		return OutcomeIgnored, nil
	}

	reportID := event.Data.Object.ID
	if reportID == "" {
		s.log.Warn("Report completion without a report id", map[string]interface{}{"event_id": event.ID})
		return OutcomeIgnored, nil
	}

	record, err := s.store.GetByReportID(ctx, reportID)
	if err != nil {
		return "", err
	}
	if record == nil || record.Status == models.StatusReportCompleted {
		s.log.Info("Duplicate report completion", map[string]interface{}{"report_id": reportID})
		return OutcomeDuplicate, nil
	}

	return s.ProcessReport(ctx, reportID)
}

// ProcessReport marks the report completed, fetches it and posts either its
// first screening error or the full results to the CRM. The stored status is
// the provider's view and stays completed whatever the results contain.
func (s *Service) ProcessReport(ctx context.Context, reportID string) (Outcome, error) {
	log := s.log.WithFields(map[string]interface{}{"report_id": reportID})

	record, err := s.store.GetByReportID(ctx, reportID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", fmt.Errorf("report %s: %w", reportID, storage.ErrRecordNotFound)
	}
	log = log.WithFields(map[string]interface{}{"lead_id": record.LeadID})

	if err := s.store.SetReportCompleted(ctx, record.LeadID); err != nil {
		return "", err
	}

	report, err := s.provider.GetReport(ctx, reportID)
	if err != nil {
		log.Warn("Error retrieving report", map[string]interface{}{"error": err.Error()})
		if err := s.post(ctx, log, KindRetrieveReport, RetrieveReportErrorRecord(record.LeadID, record.Name, providerMessage(err))); err != nil {
			return "", err
		}
		return OutcomeFailed, nil
	}

	for _, screening := range report.Screenings() {
		if !screening.Failed() {
			continue
		}
		errRecord, known := ScreeningErrorRecord(record.LeadID, record.Name, screening)
		if !known {
			log.Warn("Screening has no error field", map[string]interface{}{"object": screening.Object})
		}
		log.Warn("Screening error", map[string]interface{}{
			"object": screening.Object,
			"field":  models.ErrorFieldName(screening.Object),
			"error":  screening.Error.First(),
		})
		if err := s.post(ctx, log, KindScreening, errRecord); err != nil {
			return "", err
		}
		return OutcomeFailed, nil
	}

	result, err := ResultRecord(record, report)
	if err != nil {
		return "", err
	}
	if err := s.post(ctx, log, KindResult, result); err != nil {
		return "", err
	}

	log.Info("Background check results posted", map[string]interface{}{"status": report.Status})
	return OutcomeProcessed, nil
}

func (s *Service) post(ctx context.Context, log logger.Logger, kind string, record *models.BackgroundCheck) error {
	id, err := s.crm.CreateBackgroundCheck(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to post %s record for lead %s: %w", kind, record.LeadID, err)
	}
	metrics.ResultRecords.WithLabelValues(kind).Inc()
	log.Info("Created Background Check record", map[string]interface{}{"record_id": id, "kind": kind})
	return nil
}

// providerMessage is the text reported to the CRM for a provider failure.
func providerMessage(err error) string {
	var apiErr *checkr.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

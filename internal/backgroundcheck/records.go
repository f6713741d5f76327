package backgroundcheck

import (
	"fmt"

	"github.com/believeinme/background-check-service/internal/checkr"
	"github.com/believeinme/background-check-service/internal/models"
)

// Record kinds, used as the metrics label of posted CRM records.
const (
	KindDuplicateCandidate = "duplicate_candidate"
	KindCreateCandidate    = "create_candidate_error"
	KindCreateReport       = "create_report_error"
	KindRetrieveReport     = "retrieve_report_error"
	KindScreening          = "screening_error"
	KindResult             = "result"
)

// DuplicateCandidateMessage is reported when a lead already has a workflow.
const DuplicateCandidateMessage = "Checkr candidate already created"

func errorRecord(leadID, leadName string, set func(*models.BackgroundCheck)) *models.BackgroundCheck {
	record := models.NewBackgroundCheck(leadID, leadName)
	set(record)
	record.Status = models.BackgroundCheckStatusIncomplete
	return record
}

// CreateCandidateErrorRecord reports a failed or duplicate candidate creation.
func CreateCandidateErrorRecord(leadID, leadName, message string) *models.BackgroundCheck {
	return errorRecord(leadID, leadName, func(b *models.BackgroundCheck) {
		b.ErrorCreateCandidate = message
	})
}

// CreateReportErrorRecord reports a failed report order.
func CreateReportErrorRecord(leadID, leadName, message string) *models.BackgroundCheck {
	return errorRecord(leadID, leadName, func(b *models.BackgroundCheck) {
		b.ErrorCreateReport = message
	})
}

// RetrieveReportErrorRecord reports a report that could not be fetched.
func RetrieveReportErrorRecord(leadID, leadName, message string) *models.BackgroundCheck {
	return errorRecord(leadID, leadName, func(b *models.BackgroundCheck) {
		b.ErrorRetrieveReport = message
	})
}

// ScreeningErrorRecord reports the error of a single screening. It returns
// false when the screening object is not one the CRM has a field for.
func ScreeningErrorRecord(leadID, leadName string, screening *checkr.Screening) (*models.BackgroundCheck, bool) {
	record := models.NewBackgroundCheck(leadID, leadName)
	known := record.SetScreeningError(screening.Object, screening.Error.First())
	record.Status = models.BackgroundCheckStatusIncomplete
	return record, known
}

// ResultRecord builds the record of a completed report.
func ResultRecord(workflow *models.WorkflowRecord, report *checkr.Report) (*models.BackgroundCheck, error) {
	record := models.NewBackgroundCheck(workflow.LeadID, workflow.Name)
	record.Status = report.Status
	record.TurnaroundTime = report.TurnaroundTime

	var err error
	render := func(field string, dst *string, raw []byte) {
		if err != nil {
			return
		}
		if *dst, err = RenderLiteral(raw); err != nil {
			err = fmt.Errorf("%s: %w", field, err)
		}
	}

	if t := report.SSNTrace; t != nil {
		record.SSNTraceStatus = t.Status
		record.TurnaroundTimeSSNTrace = t.TurnaroundTime
		record.NoData = t.NoData
		record.DOBMismatch = t.DOBMismatch
		record.NameMismatch = t.NameMismatch
		record.DataMismatch = t.DataMismatch
		record.ThinFile = t.ThinFile
		record.InvalidIssuanceYear = t.InvalidIssuanceYear
		record.DeathIndex = t.DeathIndex
		record.SSNAlreadyTaken = t.SSNAlreadyTaken
		record.IssuedYear = t.IssuedYear
		record.IssuedState = t.IssuedState
		render("addresses", &record.Addresses, t.Addresses)
		render("aliases", &record.Aliases, t.Aliases)
	}

	if s := report.SexOffenderSearch; s != nil {
		record.SexOffenderSearchStatus = s.Status
		record.TurnaroundTimeSexOffenderSearch = s.TurnaroundTime
		render("sex offender records", &record.SexOffenderRecords, s.Records)
	}

	if s := report.GlobalWatchlistSearch; s != nil {
		record.GlobalWatchlistStatus = s.Status
		record.TurnaroundTimeGlobalWatchlist = s.TurnaroundTime
		render("global watchlist records", &record.GlobalWatchlistRecords, s.Records)
	}

	if s := report.NationalCriminalSearch; s != nil {
		record.NationalCriminalSearchStatus = s.Status
		record.TurnaroundTimeNationalCriminalSearch = s.TurnaroundTime
		render("national criminal records", &record.NationalCriminalSearchRecords, s.Records)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to build result record: %w", err)
	}
	return record, nil
}

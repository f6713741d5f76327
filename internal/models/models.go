package models

import "strings"

// Workflow states recorded against a lead
const (
	StatusCandidateCreated = "candidate created"
	StatusReportCreated    = "report created"
	StatusReportCompleted  = "report completed"
)

// LeadPII is the personal data extracted from a CRM notification. It is
// handed straight to candidate creation and never stored.
type LeadPII struct {
	FirstName    string `json:"first_name"`
	NoMiddleName bool   `json:"no_middle_name"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Zipcode      string `json:"zipcode"`
	DOB          string `json:"dob"`
	SSN          string `json:"ssn"`
	Phone        string `json:"phone"`
}

// DisplayName is the "First Last" name used on workflow and CRM records.
func (p LeadPII) DisplayName() string {
	return p.FirstName + " " + p.LastName
}

// Lead is a parsed CRM notification for one lead.
type Lead struct {
	ID  string
	PII LeadPII
}

// WorkflowRecord tracks the background check workflow of a single lead.
type WorkflowRecord struct {
	Name        string `json:"name" dynamodbav:"name" bson:"name"`
	LeadID      string `json:"salesforce_lead_ID" dynamodbav:"salesforce_lead_ID" bson:"_id"`
	CandidateID string `json:"checkr_candidate_ID" dynamodbav:"checkr_candidate_ID" bson:"checkr_candidate_ID"`
	ReportID    string `json:"checkr_report_ID" dynamodbav:"checkr_report_ID,omitempty" bson:"checkr_report_ID"`
	Status      string `json:"checkr_status" dynamodbav:"checkr_status" bson:"checkr_status"`
}

// BackgroundCheckStatusIncomplete marks a CRM record that reports a failure.
const BackgroundCheckStatusIncomplete = "incomplete"

// BackgroundCheck is the CRM Background_Check__c record. Every POST creates a
// new record; records are never updated.
type BackgroundCheck struct {
	Name                   string `json:"Name"`
	LeadID                 string `json:"Lead__c"`
	RequestBackgroundCheck bool   `json:"Request_Background_Check__c"`
	Status                 string `json:"Status_Background_Check__c"`
	TurnaroundTime         *int   `json:"Turnaround_Time_Background_Check__c"`

	ErrorSSNTrace          string `json:"Error_ssn_trace__c"`
	SSNTraceStatus         string `json:"SSN_Trace_Status__c"`
	TurnaroundTimeSSNTrace *int   `json:"Turnaround_Time_SSN_Trace__c"`
	NoData                 *bool  `json:"No_Data__c"`
	DOBMismatch            *bool  `json:"DOB_Mismatch__c"`
	NameMismatch           *bool  `json:"Name_Mismatch__c"`
	DataMismatch           *bool  `json:"Data_Mismatch__c"`
	ThinFile               *bool  `json:"Thin_File__c"`
	InvalidIssuanceYear    *bool  `json:"Invalid_Issuance_Year__c"`
	DeathIndex             *bool  `json:"Death_Index__c"`
	SSNAlreadyTaken        *bool  `json:"SSN_Already_Taken__c"`
	IssuedYear             *int   `json:"Issued_Year__c"`
	IssuedState            string `json:"Issued_State__c"`
	Addresses              string `json:"Addresses__c"`
	Aliases                string `json:"Aliases__c"`

	ErrorSexOffenderSearch          string `json:"Error_sex_offender_search__c"`
	SexOffenderSearchStatus         string `json:"Sex_Offender_Registry_Search_Status__c"`
	TurnaroundTimeSexOffenderSearch *int   `json:"Turnaround_Time_Sex_Offender_Search__c"`
	SexOffenderRecords              string `json:"Sex_Offender_Records__c"`

	ErrorGlobalWatchlistSearch    string `json:"Error_global_watchlist_search__c"`
	GlobalWatchlistStatus         string `json:"Global_Watchlist_Status__c"`
	TurnaroundTimeGlobalWatchlist *int   `json:"Turnaround_Time_Global_Watchlist__c"`
	GlobalWatchlistRecords        string `json:"Global_Watchlist_Records__c"`

	ErrorNationalCriminalSearch          string `json:"Error_national_criminal_search__c"`
	NationalCriminalSearchStatus         string `json:"National_Criminal_Search_Status__c"`
	TurnaroundTimeNationalCriminalSearch *int   `json:"Turnaround_Time_National_Criminal_Search__c"`
	NationalCriminalSearchRecords        string `json:"National_Criminal_Search_Records__c"`

	ErrorCreateCandidate string `json:"Error_Create_Candidate__c"`
	ErrorCreateReport    string `json:"Error_Create_Report__c"`
	ErrorRetrieveReport  string `json:"Error_Retrieve_Report__c"`
}

// NewBackgroundCheck returns an empty record for the given lead.
func NewBackgroundCheck(leadID, leadName string) *BackgroundCheck {
	return &BackgroundCheck{
		Name:                   leadName,
		LeadID:                 leadID,
		RequestBackgroundCheck: true,
	}
}

// Screening names as reported by the provider in each sub-check's "object".
const (
	ScreeningSSNTrace               = "ssn_trace"
	ScreeningSexOffenderSearch      = "sex_offender_search"
	ScreeningGlobalWatchlistSearch  = "global_watchlist_search"
	ScreeningNationalCriminalSearch = "national_criminal_search"
)

// testScreeningPrefix is prepended to screening names by the provider's
// sandbox accounts.
const testScreeningPrefix = "test_"

// ScreeningName normalizes a provider screening object name.
func ScreeningName(object string) string {
	return strings.TrimPrefix(object, testScreeningPrefix)
}

// ErrorFieldName returns the CRM field that carries errors for screening.
func ErrorFieldName(screening string) string {
	return "Error_" + ScreeningName(screening) + "__c"
}

// SetScreeningError records message on the error field of screening and
// marks the record incomplete. It reports false when the screening has no
// dedicated field.
func (b *BackgroundCheck) SetScreeningError(screening, message string) bool {
	switch ScreeningName(screening) {
	case ScreeningSSNTrace:
		b.ErrorSSNTrace = message
	case ScreeningSexOffenderSearch:
		b.ErrorSexOffenderSearch = message
	case ScreeningGlobalWatchlistSearch:
		b.ErrorGlobalWatchlistSearch = message
	case ScreeningNationalCriminalSearch:
		b.ErrorNationalCriminalSearch = message
	default:
		return false
	}
	b.Status = BackgroundCheckStatusIncomplete
	return true
}

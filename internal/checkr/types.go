package checkr

import (
	"encoding/json"
	"fmt"
)

// Candidate is the subset of the candidate object the service reads.
type Candidate struct {
	ID string `json:"id"`
}

// Report is a background check report, optionally with its screenings
// expanded through the include parameter.
type Report struct {
	ID             string `json:"id"`
	Object         string `json:"object"`
	Status         string `json:"status"`
	Package        string `json:"package"`
	CandidateID    string `json:"candidate_id"`
	TurnaroundTime *int   `json:"turnaround_time"`

	SSNTrace               *SSNTrace `json:"ssn_trace"`
	SexOffenderSearch      *Search   `json:"sex_offender_search"`
	GlobalWatchlistSearch  *Search   `json:"global_watchlist_search"`
	NationalCriminalSearch *Search   `json:"national_criminal_search"`
}

// Screening holds the fields common to every sub-check of a report.
type Screening struct {
	ID             string   `json:"id"`
	Object         string   `json:"object"`
	Status         string   `json:"status"`
	TurnaroundTime *int     `json:"turnaround_time"`
	Error          Messages `json:"error"`
}

// Failed reports whether the provider attached an error to the screening.
func (s *Screening) Failed() bool {
	return len(s.Error) > 0
}

// SSNTrace is the ssn_trace screening.
type SSNTrace struct {
	Screening
	NoData              *bool           `json:"no_data"`
	DOBMismatch         *bool           `json:"dob_mismatch"`
	NameMismatch        *bool           `json:"name_mismatch"`
	DataMismatch        *bool           `json:"data_mismatch"`
	ThinFile            *bool           `json:"thin_file"`
	InvalidIssuanceYear *bool           `json:"invalid_issuance_year"`
	DeathIndex          *bool           `json:"death_index"`
	SSNAlreadyTaken     *bool           `json:"ssn_already_taken"`
	IssuedYear          *int            `json:"issued_year"`
	IssuedState         string          `json:"issued_state"`
	Addresses           json.RawMessage `json:"addresses"`
	Aliases             json.RawMessage `json:"aliases"`
}

// Search is a records search screening (sex offender, watchlist, criminal).
type Search struct {
	Screening
	Records json.RawMessage `json:"records"`
}

// Screenings returns the expanded screenings in processing order: SSN trace,
// sex offender, global watchlist, national criminal. Screenings missing from
// the report are skipped.
func (r *Report) Screenings() []*Screening {
	var out []*Screening
	if r.SSNTrace != nil {
		out = append(out, &r.SSNTrace.Screening)
	}
	for _, s := range []*Search{r.SexOffenderSearch, r.GlobalWatchlistSearch, r.NationalCriminalSearch} {
		if s != nil {
			out = append(out, &s.Screening)
		}
	}
	return out
}

// Messages is an error field, sent either as a single string or a list.
type Messages []string

// UnmarshalJSON accepts a string, a list of strings or null.
func (m *Messages) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = Messages{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("unsupported error value %s: %w", data, err)
	}
	*m = list
	return nil
}

// First returns the first message, or "" when there is none.
func (m Messages) First() string {
	if len(m) == 0 {
		return ""
	}
	return m[0]
}

// APIError is returned for any non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("checkr API error (status %d): %s", e.StatusCode, e.Message)
}

type errorBody struct {
	Error Messages `json:"error"`
}

func newAPIError(status int, body []byte) *APIError {
	var parsed errorBody
	message := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		message = parsed.Error.First()
	}
	if message == "" {
		message = string(body)
	}
	return &APIError{StatusCode: status, Message: message}
}

// EventReportCompleted is the webhook type sent when a report finishes.
const EventReportCompleted = "report.completed"

// Event is a webhook delivery. Only the fields used for routing are decoded.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData wraps the object the event is about.
type EventData struct {
	Object EventObject `json:"object"`
}

// EventObject identifies the object of an event.
type EventObject struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	Status string `json:"status"`
}

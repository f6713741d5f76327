package backgroundcheck

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/believeinme/background-check-service/internal/models"
)

// ErrMalformedMessage is returned when an outbound message cannot be parsed
// or lacks a required field.
var ErrMalformedMessage = errors.New("malformed outbound message")

const zipcodeLength = 5

// Acknowledgement is the fixed SOAP response the CRM expects for every
// delivered outbound message.
const Acknowledgement = `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><soapenv:Body><notificationsResponse xmlns="http://soap.sforce.com/2005/09/outbound"><Ack>true</Ack></notificationsResponse></soapenv:Body></soapenv:Envelope>`

// Element names carry no namespace so any prefix binding matches.
type envelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Notifications *notifications `xml:"notifications"`
	} `xml:"Body"`
}

type notifications struct {
	OrganizationID *string        `xml:"OrganizationId"`
	Notifications  []notification `xml:"Notification"`
}

type notification struct {
	ID      string   `xml:"Id"`
	SObject *sObject `xml:"sObject"`
}

type sObject struct {
	ID           *string `xml:"Id"`
	FirstName    *string `xml:"FirstName"`
	NoMiddleName *string `xml:"no_middle_name__c"`
	MiddleName   *string `xml:"MiddleName"`
	LastName     *string `xml:"LastName"`
	Email        *string `xml:"Email"`
	PostalCode   *string `xml:"PostalCode"`
	Birthdate    *string `xml:"Birthdate__c"`
	SSN          *string `xml:"SSN__c"`
	Phone        *string `xml:"Phone"`
}

// OutboundMessage is a parsed CRM outbound-message envelope. Lead fields are
// only extracted once the sending organization has been checked.
type OutboundMessage struct {
	OrganizationID string
	notifications  []notification
}

// ParseOutboundMessage decodes the SOAP envelope and reads the sending
// organization id.
func ParseOutboundMessage(data []byte) (*OutboundMessage, error) {
	var env envelope
	if err := xml.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	n := env.Body.Notifications
	if n == nil {
		return nil, fmt.Errorf("%w: missing notifications", ErrMalformedMessage)
	}
	if n.OrganizationID == nil {
		return nil, fmt.Errorf("%w: missing OrganizationId", ErrMalformedMessage)
	}

	return &OutboundMessage{
		OrganizationID: strings.TrimSpace(*n.OrganizationID),
		notifications:  n.Notifications,
	}, nil
}

// Leads extracts the lead id and PII of every notification, in order.
func (m *OutboundMessage) Leads() ([]models.Lead, error) {
	if len(m.notifications) == 0 {
		return nil, fmt.Errorf("%w: missing Notification", ErrMalformedMessage)
	}

	leads := make([]models.Lead, 0, len(m.notifications))
	for i, n := range m.notifications {
		if n.SObject == nil {
			return nil, fmt.Errorf("%w: notification %d has no sObject", ErrMalformedMessage, i)
		}
		lead, err := n.SObject.lead()
		if err != nil {
			return nil, fmt.Errorf("notification %d: %w", i, err)
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func (o *sObject) lead() (models.Lead, error) {
	var missing []string
	field := func(name string, v *string) string {
		if v == nil {
			missing = append(missing, name)
			return ""
		}
		return *v
	}

	lead := models.Lead{
		ID: field("Id", o.ID),
		PII: models.LeadPII{
			FirstName:    field("FirstName", o.FirstName),
			NoMiddleName: parseFlag(field("no_middle_name__c", o.NoMiddleName)),
			LastName:     field("LastName", o.LastName),
			Email:        field("Email", o.Email),
			Zipcode:      truncate(field("PostalCode", o.PostalCode), zipcodeLength),
			DOB:          field("Birthdate__c", o.Birthdate),
			SSN:          field("SSN__c", o.SSN),
			Phone:        field("Phone", o.Phone),
		},
	}
	if !lead.PII.NoMiddleName {
		lead.PII.MiddleName = field("MiddleName", o.MiddleName)
	}

	if len(missing) > 0 {
		return models.Lead{}, fmt.Errorf("%w: missing %s", ErrMalformedMessage, strings.Join(missing, ", "))
	}
	return lead, nil
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return true
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

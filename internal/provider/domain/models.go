package domain

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/snapshotdiff"
)

type Provider string

const (
	Jubilee Provider = config.ProviderJubilee
	NHIF    Provider = config.ProviderNHIF
)

func (p Provider) String() string { return string(p) }

// ParseProvider accepts the provider name in any case.
func ParseProvider(raw string) (Provider, error) {
	switch {
	case strings.EqualFold(raw, string(Jubilee)):
		return Jubilee, nil
	case strings.EqualFold(raw, string(NHIF)):
		return NHIF, nil
	default:
		return "", ErrUnknownProvider
	}
}

// PriceSnapshot is one fetched price list together with the log entry that stores it.
type PriceSnapshot struct {
	Provider         Provider
	Company          string
	FacilityCode     string
	RequestType      string
	LogID            snowflake.ID
	PricePackages    []snapshotdiff.Record
	ExcludedServices []snapshotdiff.Record
}

// CardDetails is the member verification returned by the provider.
type CardDetails struct {
	CardNo      string         `json:"CardNo"`
	MemberNo    string         `json:"MemberNo"`
	FullName    string         `json:"FullName"`
	Status      string         `json:"Status"`
	SchemeID    string         `json:"SchemeID"`
	SchemeName  string         `json:"SchemeName"`
	ProductCode string         `json:"ProductCode"`
	ProductName string         `json:"ProductName"`
	ExpiryDate  string         `json:"ExpiryDate"`
	Raw         map[string]any `json:"-"`
}

// Folio is the claim submission payload. PatientFile and ClaimFile carry
// base64 PDFs and are stripped before the request is logged.
type Folio struct {
	Entities []FolioEntity `json:"entities"`
}

type FolioEntity struct {
	FolioID                      string         `json:"FolioID"`
	ClaimYear                    int            `json:"ClaimYear"`
	ClaimMonth                   int            `json:"ClaimMonth"`
	FolioNo                      int            `json:"FolioNo"`
	SerialNo                     string         `json:"SerialNo"`
	FacilityCode                 string         `json:"FacilityCode,omitempty"`
	CardNo                       string         `json:"CardNo"`
	BillNo                       string         `json:"BillNo"`
	FirstName                    string         `json:"FirstName"`
	LastName                     string         `json:"LastName"`
	Gender                       string         `json:"Gender"`
	DateOfBirth                  string         `json:"DateOfBirth"`
	Age                          string         `json:"Age"`
	TelephoneNo                  string         `json:"TelephoneNo"`
	PatientFileNo                string         `json:"PatientFileNo"`
	AuthorizationNo              string         `json:"AuthorizationNo"`
	AttendanceDate               string         `json:"AttendanceDate"`
	PatientTypeCode              string         `json:"PatientTypeCode"`
	DateAdmitted                 string         `json:"DateAdmitted,omitempty"`
	DateDischarged               string         `json:"DateDischarged,omitempty"`
	PractitionerNo               string         `json:"PractitionerNo"`
	ProviderID                   *string        `json:"ProviderID"`
	ClinicalNotes                string         `json:"ClinicalNotes"`
	AmountClaimed                float64        `json:"AmountClaimed"`
	DelayReason                  string         `json:"DelayReason,omitempty"`
	LateSubmissionReason         string         `json:"LateSubmissionReason,omitempty"`
	EmergencyAuthorizationReason string         `json:"EmergencyAuthorizationReason,omitempty"`
	CreatedBy                    string         `json:"CreatedBy"`
	DateCreated                  string         `json:"DateCreated"`
	LastModifiedBy               string         `json:"LastModifiedBy"`
	LastModified                 string         `json:"LastModified"`
	PatientFile                  string         `json:"PatientFile"`
	ClaimFile                    string         `json:"ClaimFile"`
	FolioDiseases                []FolioDisease `json:"FolioDiseases"`
	FolioItems                   []FolioItem    `json:"FolioItems"`
}

type FolioDisease struct {
	DiseaseCode    string  `json:"DiseaseCode"`
	Remarks        *string `json:"Remarks"`
	Status         string  `json:"Status"`
	CreatedBy      string  `json:"CreatedBy"`
	DateCreated    string  `json:"DateCreated"`
	LastModifiedBy string  `json:"LastModifiedBy"`
	LastModified   string  `json:"LastModified"`
}

type FolioItem struct {
	FolioItemID    string  `json:"FolioItemID,omitempty"`
	ItemCode       string  `json:"ItemCode"`
	OtherDetails   *string `json:"OtherDetails"`
	ItemQuantity   float64 `json:"ItemQuantity"`
	UnitPrice      float64 `json:"UnitPrice"`
	AmountClaimed  float64 `json:"AmountClaimed"`
	ApprovalRefNo  *string `json:"ApprovalRefNo"`
	CreatedBy      string  `json:"CreatedBy"`
	DateCreated    string  `json:"DateCreated"`
	LastModifiedBy string  `json:"LastModifiedBy"`
	LastModified   string  `json:"LastModified"`
}

const strippedFile = "Stripped off"

// WithoutFiles returns a copy safe to write into the response log.
func (f Folio) WithoutFiles() Folio {
	out := Folio{Entities: make([]FolioEntity, len(f.Entities))}
	copy(out.Entities, f.Entities)
	for i := range out.Entities {
		out.Entities[i].PatientFile = strippedFile
		out.Entities[i].ClaimFile = strippedFile
	}
	return out
}

// SubmitResult is the provider acknowledgement of a folio.
type SubmitResult struct {
	Status      string       `json:"status"`
	Description string       `json:"description"`
	LogID       snowflake.ID `json:"log_id"`
}

// Package infra holds the onboarding collaborators behind the port
// interfaces: document extraction, KYC lookup, application export, OTP
// challenges and the remote help assistant.
package infra

import (
	"context"
	"fmt"

	"github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("onboarding/infra")

// DemoKYCRecord is the full compliance record returned by the demo KYC
// directory and, piece by piece, by the simulated extractor.
func DemoKYCRecord() *domain.KYCRecord {
	return &domain.KYCRecord{
		FullName:           "John Smith",
		BusinessName:       "Smith Electronics Ltd",
		RegistrationNumber: "REG123456789",
		GSTNumber:          "29ABCDE1234F1Z5",
		PANNumber:          "ABCDE1234F",
		Address:            "123 Business Street, Commerce City, CC 12345",
		AccountNumber:      "ACC-789456123",
		Status:             domain.KYCVerified,
		Directors: []domain.DirectorDetail{
			{Name: "John Smith", Designation: "Managing Director & CEO", PANNumber: "ABCDE1234F", Shareholding: "60%"},
			{Name: "Jane Smith", Designation: "Executive Director", PANNumber: "FGHIJ5678K", Shareholding: "25%"},
			{Name: "Robert Johnson", Designation: "Independent Director", PANNumber: "KLMNO9012P", Shareholding: "15%"},
		},
		Shareholding: []domain.ShareholdingDetail{
			{ShareholderName: "John Smith", SharePercentage: 60, ShareType: "Equity Shares"},
			{ShareholderName: "Jane Smith", SharePercentage: 25, ShareType: "Equity Shares"},
			{ShareholderName: "Robert Johnson", SharePercentage: 15, ShareType: "Preference Shares"},
		},
	}
}

// SimulatedExtractor returns fixed values per document slot without reading
// the file. It stands in for an OCR service.
type SimulatedExtractor struct{}

// NewSimulatedExtractor creates the extractor.
func NewSimulatedExtractor() *SimulatedExtractor {
	return &SimulatedExtractor{}
}

// Extract returns the fields a document of the upload's slot would yield.
func (e *SimulatedExtractor) Extract(ctx context.Context, upload domain.Upload) (*domain.KYCRecord, error) {
	_, span := tracer.Start(ctx, "SimulatedExtractor.Extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("upload.slot", string(upload.Slot)),
		attribute.String("upload.file", upload.FileName),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	demo := DemoKYCRecord()
	switch upload.Slot {
	case domain.SlotGST:
		return &domain.KYCRecord{GSTNumber: demo.GSTNumber}, nil
	case domain.SlotPAN:
		return &domain.KYCRecord{PANNumber: demo.PANNumber}, nil
	case domain.SlotIncorporation:
		return &domain.KYCRecord{RegistrationNumber: demo.RegistrationNumber}, nil
	case domain.SlotMOA:
		// The MOA carries the full company record: directors, shareholding,
		// registered address and account details.
		return demo, nil
	}
	return nil, fmt.Errorf("unknown upload slot %q", upload.Slot)
}

// StaticKYCDirectory resolves KYC records from a fixed table. When a
// fallback is set every unknown mobile resolves to it.
type StaticKYCDirectory struct {
	records  map[string]*domain.KYCRecord
	fallback *domain.KYCRecord
}

// NewStaticKYCDirectory creates a directory over records keyed by the
// 10-digit mobile number.
func NewStaticKYCDirectory(records map[string]*domain.KYCRecord, fallback *domain.KYCRecord) *StaticKYCDirectory {
	if records == nil {
		records = map[string]*domain.KYCRecord{}
	}
	return &StaticKYCDirectory{records: records, fallback: fallback}
}

// NewDemoKYCDirectory resolves every mobile number to DemoKYCRecord.
func NewDemoKYCDirectory() *StaticKYCDirectory {
	return NewStaticKYCDirectory(nil, DemoKYCRecord())
}

// LookupByMobile returns a copy of the record for mobile, or nil on a miss.
func (d *StaticKYCDirectory) LookupByMobile(ctx context.Context, mobile string) (*domain.KYCRecord, error) {
	_, span := tracer.Start(ctx, "StaticKYCDirectory.LookupByMobile")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k, ok := d.records[mobile]; ok {
		return k.Clone(), nil
	}
	return d.fallback.Clone(), nil
}

package parser

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fiscalwatch/internal/invoice/models"
)

// legacyRecord mirrors the NOTA_FISCAL node of the legacy municipal layout.
// The layout carries no issuer tax id at all, only the payer's.
type legacyRecord struct {
	Number        string `xml:"NumeroNota"`
	IssuedAt      string `xml:"DataEmissao"`
	TotalValue    string `xml:"ValorTotalNota"`
	ServiceCode   string `xml:"Cae"`
	ValidationKey string `xml:"ChaveValidacao"`
	PayerTaxID    string `xml:"ClienteCNPJCPF"`
}

// parseLegacy extracts the canonical record from a legacy document. The
// issuer tax id is explicitly left empty so isolation validation fails closed
// on this format.
func parseLegacy(text string) (*models.Invoice, error) {
	record, err := findLegacyRecord(text)
	if err != nil {
		return nil, err
	}

	number, err := parseInvoiceNumber(record.Number, "NumeroNota")
	if err != nil {
		return nil, err
	}

	issuedAt, err := parseLegacyDate(record.IssuedAt)
	if err != nil {
		return nil, err
	}

	rawValue := strings.TrimSpace(record.TotalValue)
	if rawValue == "" {
		return nil, errFieldMissing("ValorTotalNota", "total value is mandatory")
	}
	total, err := decimal.NewFromString(rawValue)
	if err != nil {
		return nil, errFieldMissing("ValorTotalNota", fmt.Sprintf("not a decimal: %q", rawValue))
	}

	serviceCode := strings.TrimSpace(record.ServiceCode)
	if serviceCode == "" {
		return nil, errFieldMissing("Cae", "service code is mandatory")
	}

	return &models.Invoice{
		Number:        number,
		IssuedAt:      issuedAt,
		ServiceCode:   serviceCode,
		TotalValue:    total,
		ValidationKey: strings.TrimSpace(record.ValidationKey),
		PayerTaxID:    strings.TrimSpace(record.PayerTaxID),
		IssuerTaxID:   "", // format has no issuer field
		SourceFormat:  models.FormatLegacy,
		RawXML:        text,
	}, nil
}

// findLegacyRecord walks to the NOTA_FISCAL element regardless of whether
// the document root is tbnfd or nfdok.
func findLegacyRecord(text string) (*legacyRecord, error) {
	dec := newDecoder(strings.NewReader(text))
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, errFieldMissing("NOTA_FISCAL", "record node not found in legacy document")
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "NOTA_FISCAL" {
			continue
		}
		var record legacyRecord
		if err := dec.DecodeElement(&record, &start); err != nil {
			return nil, errDecode(fmt.Sprintf("malformed NOTA_FISCAL node: %v", err))
		}
		return &record, nil
	}
}

func parseInvoiceNumber(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errFieldMissing(field, "invoice number is mandatory")
	}
	number, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errFieldMissing(field, fmt.Sprintf("not an integer: %q", raw))
	}
	return number, nil
}

// parseLegacyDate reads the first 10 characters as YYYY-MM-DD; the legacy
// layout appends a clock that the ledger does not use.
func parseLegacyDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 10 {
		return time.Time{}, errFieldMissing("DataEmissao", "emission date is mandatory")
	}
	issuedAt, err := time.ParseInLocation("2006-01-02", raw[:10], time.UTC)
	if err != nil {
		return time.Time{}, errFieldMissing("DataEmissao", fmt.Sprintf("not a date: %q", raw[:10]))
	}
	return issuedAt, nil
}

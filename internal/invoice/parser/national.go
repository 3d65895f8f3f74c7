package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fiscalwatch/internal/invoice/models"
)

// nationalDocument mirrors the national standard layout. Only the paths the
// extraction strategies read are mapped.
type nationalDocument struct {
	Inf struct {
		ID          string `xml:"Id,attr"`
		Number      string `xml:"nNFSe"`
		ProcessedAt string `xml:"dhProc"`
		Values      struct {
			NetValue string `xml:"vLiq"`
		} `xml:"valores"`
		NBSDescription     string `xml:"xNBS"`
		TribNacDescription string `xml:"xTribNac"`
		Issuer             struct {
			CNPJ string `xml:"CNPJ"`
		} `xml:"emit"`
		DPS struct {
			Inf struct {
				Values struct {
					ServicePrice struct {
						Value string `xml:"vServ"`
					} `xml:"vServPrest"`
				} `xml:"valores"`
				Service struct {
					Code struct {
						TribNac string `xml:"cTribNac"`
					} `xml:"cServ"`
				} `xml:"serv"`
				Payer struct {
					CNPJ string `xml:"CNPJ"`
				} `xml:"toma"`
			} `xml:"infDPS"`
		} `xml:"DPS"`
	} `xml:"infNFSe"`
}

var trailingOffset = regexp.MustCompile(`[+-]\d{2}:\d{2}$`)

// parseNational extracts the canonical record from a national standard
// document. Value and service code live in different places depending on the
// municipality's emitter, hence the ordered fallback strategies.
func parseNational(text string) (*models.Invoice, error) {
	var doc nationalDocument
	dec := newDecoder(strings.NewReader(text))
	if err := dec.Decode(&doc); err != nil {
		return nil, errDecode(fmt.Sprintf("malformed NFSe document: %v", err))
	}
	inf := doc.Inf

	number, err := parseInvoiceNumber(inf.Number, "nNFSe")
	if err != nil {
		return nil, err
	}

	issuedAt, err := parseNationalTimestamp(inf.ProcessedAt)
	if err != nil {
		return nil, err
	}

	rawValue, _ := firstNonEmpty([]strategy{
		{"infNFSe.valores.vLiq", func() string { return inf.Values.NetValue }},
		{"DPS.infDPS.valores.vServPrest.vServ", func() string { return inf.DPS.Inf.Values.ServicePrice.Value }},
	})
	if rawValue == "" {
		return nil, errFieldMissing("vLiq", "no value found at any known location")
	}
	total, err := decimal.NewFromString(rawValue)
	if err != nil {
		return nil, errFieldMissing("vLiq", fmt.Sprintf("not a decimal: %q", rawValue))
	}

	serviceCode, _ := firstNonEmpty([]strategy{
		{"DPS.infDPS.serv.cServ.cTribNac", func() string { return inf.DPS.Inf.Service.Code.TribNac }},
		{"infNFSe.xNBS", func() string { return inf.NBSDescription }},
		{"infNFSe.xTribNac", func() string { return inf.TribNacDescription }},
	})
	if serviceCode == "" {
		return nil, errFieldMissing("cTribNac", "no service code found at any known location")
	}

	return &models.Invoice{
		Number:        number,
		IssuedAt:      issuedAt,
		ServiceCode:   serviceCode,
		TotalValue:    total,
		ValidationKey: strings.TrimSpace(inf.ID),
		PayerTaxID:    strings.TrimSpace(inf.DPS.Inf.Payer.CNPJ),
		IssuerTaxID:   strings.TrimSpace(inf.Issuer.CNPJ),
		SourceFormat:  models.FormatNational,
		RawXML:        text,
	}, nil
}

// parseNationalTimestamp strips the trailing UTC offset and reads the rest
// as a naive timestamp. 2025-01-17T15:04:03-03:00 becomes 15:04:03 wall time.
func parseNationalTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errFieldMissing("dhProc", "processing timestamp is mandatory")
	}
	naive := trailingOffset.ReplaceAllString(strings.TrimSuffix(raw, "Z"), "")
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"} {
		if ts, err := time.ParseInLocation(layout, naive, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errFieldMissing("dhProc", fmt.Sprintf("not a timestamp: %q", raw))
}

package parser

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"fiscalwatch/internal/invoice/models"
)

const legacyDocument = `<?xml version="1.0" encoding="UTF-8"?>
<tbnfd>
  <nfd>
    <NOTA_FISCAL>
      <NumeroNota>42</NumeroNota>
      <DataEmissao>2025-03-15 10:22:00</DataEmissao>
      <ValorTotalNota>1500.00</ValorTotalNota>
      <Cae>08.02</Cae>
      <ChaveValidacao>ABC123XYZ</ChaveValidacao>
      <ClienteCNPJCPF>12345678000190</ClienteCNPJCPF>
    </NOTA_FISCAL>
  </nfd>
</tbnfd>`

const nationalDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<NFSe>
  <infNFSe Id="NFS3550308000001">
    <nNFSe>101</nNFSe>
    <dhProc>2025-01-17T15:04:03-03:00</dhProc>
    <valores>
      <vLiq>2500.50</vLiq>
    </valores>
    <emit>
      <CNPJ>11222333000181</CNPJ>
    </emit>
    <DPS>
      <infDPS>
        <serv>
          <cServ>
            <cTribNac>010701</cTribNac>
          </cServ>
        </serv>
        <valores>
          <vServPrest>
            <vServ>2600.00</vServ>
          </vServPrest>
        </valores>
        <toma>
          <CNPJ>99888777000166</CNPJ>
        </toma>
      </infDPS>
    </DPS>
  </infNFSe>
</NFSe>`

type ParserSuite struct {
	suite.Suite
}

func TestParserSuite(t *testing.T) {
	suite.Run(t, new(ParserSuite))
}

func (s *ParserSuite) TestLegacyDocuments() {
	s.Run("parses a tbnfd document", func() {
		invoice, err := Parse([]byte(legacyDocument))
		s.Require().NoError(err)

		s.Equal(42, invoice.Number)
		s.Equal(time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), invoice.IssuedAt)
		s.True(decimal.NewFromFloat(1500.00).Equal(invoice.TotalValue))
		s.Equal("08.02", invoice.ServiceCode)
		s.Equal("ABC123XYZ", invoice.ValidationKey)
		s.Equal("12345678000190", invoice.PayerTaxID)
		s.Equal(models.FormatLegacy, invoice.SourceFormat)
	})

	s.Run("legacy documents never carry an issuer", func() {
		invoice, err := Parse([]byte(legacyDocument))
		s.Require().NoError(err)
		s.False(invoice.HasIssuer())
	})

	s.Run("accepts the nfdok root variant", func() {
		doc := `<nfdok><NOTA_FISCAL><NumeroNota>7</NumeroNota><DataEmissao>2025-06-01</DataEmissao><ValorTotalNota>300</ValorTotalNota><Cae>17.01</Cae></NOTA_FISCAL></nfdok>`
		invoice, err := Parse([]byte(doc))
		s.Require().NoError(err)
		s.Equal(7, invoice.Number)
		s.Equal(models.FormatLegacy, invoice.SourceFormat)
	})

	s.Run("keeps only the date portion of the emission field", func() {
		doc := `<tbnfd><NOTA_FISCAL><NumeroNota>1</NumeroNota><DataEmissao>2024-12-31T23:59:59</DataEmissao><ValorTotalNota>10</ValorTotalNota><Cae>X</Cae></NOTA_FISCAL></tbnfd>`
		invoice, err := Parse([]byte(doc))
		s.Require().NoError(err)
		s.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), invoice.IssuedAt)
	})

	s.Run("rejects a record without a NOTA_FISCAL node", func() {
		_, err := Parse([]byte(`<tbnfd><nfd></nfd></tbnfd>`))
		s.requireKind(err, KindFieldMissing, "NOTA_FISCAL")
	})

	s.Run("rejects a missing total value", func() {
		doc := `<tbnfd><NOTA_FISCAL><NumeroNota>1</NumeroNota><DataEmissao>2025-01-01</DataEmissao><Cae>X</Cae></NOTA_FISCAL></tbnfd>`
		_, err := Parse([]byte(doc))
		s.requireKind(err, KindFieldMissing, "ValorTotalNota")
	})

	s.Run("rejects a non-numeric invoice number", func() {
		doc := `<tbnfd><NOTA_FISCAL><NumeroNota>abc</NumeroNota><DataEmissao>2025-01-01</DataEmissao><ValorTotalNota>10</ValorTotalNota><Cae>X</Cae></NOTA_FISCAL></tbnfd>`
		_, err := Parse([]byte(doc))
		s.requireKind(err, KindFieldMissing, "NumeroNota")
	})
}

func (s *ParserSuite) TestNationalDocuments() {
	s.Run("parses a national standard document", func() {
		invoice, err := Parse([]byte(nationalDocumentXML))
		s.Require().NoError(err)

		s.Equal(101, invoice.Number)
		s.Equal(time.Date(2025, 1, 17, 15, 4, 3, 0, time.UTC), invoice.IssuedAt)
		s.True(decimal.NewFromFloat(2500.50).Equal(invoice.TotalValue), "vLiq wins over vServ")
		s.Equal("010701", invoice.ServiceCode)
		s.Equal("NFS3550308000001", invoice.ValidationKey)
		s.Equal("99888777000166", invoice.PayerTaxID)
		s.Equal("11222333000181", invoice.IssuerTaxID)
		s.Equal(models.FormatNational, invoice.SourceFormat)
	})

	s.Run("falls back to the nested service value when vLiq is absent", func() {
		doc := `<NFSe><infNFSe Id="K"><nNFSe>5</nNFSe><dhProc>2025-02-02T08:00:00-03:00</dhProc><emit><CNPJ>1</CNPJ></emit><DPS><infDPS><serv><cServ><cTribNac>0101</cTribNac></cServ></serv><valores><vServPrest><vServ>999.99</vServ></vServPrest></valores></infDPS></DPS></infNFSe></NFSe>`
		invoice, err := Parse([]byte(doc))
		s.Require().NoError(err)
		s.True(decimal.NewFromFloat(999.99).Equal(invoice.TotalValue))
	})

	s.Run("falls back through the service code chain", func() {
		doc := `<NFSe><infNFSe Id="K"><nNFSe>5</nNFSe><dhProc>2025-02-02T08:00:00-03:00</dhProc><valores><vLiq>1</vLiq></valores><xNBS>115011000</xNBS><emit><CNPJ>1</CNPJ></emit></infNFSe></NFSe>`
		invoice, err := Parse([]byte(doc))
		s.Require().NoError(err)
		s.Equal("115011000", invoice.ServiceCode)
	})

	s.Run("strips a trailing Z as well as numeric offsets", func() {
		doc := `<NFSe><infNFSe Id="K"><nNFSe>5</nNFSe><dhProc>2025-02-02T08:30:00Z</dhProc><valores><vLiq>1</vLiq></valores><xTribNac>1.07</xTribNac><emit><CNPJ>1</CNPJ></emit></infNFSe></NFSe>`
		invoice, err := Parse([]byte(doc))
		s.Require().NoError(err)
		s.Equal(time.Date(2025, 2, 2, 8, 30, 0, 0, time.UTC), invoice.IssuedAt)
	})

	s.Run("rejects when no value location is populated", func() {
		doc := `<NFSe><infNFSe Id="K"><nNFSe>5</nNFSe><dhProc>2025-02-02T08:00:00Z</dhProc><xNBS>1</xNBS><emit><CNPJ>1</CNPJ></emit></infNFSe></NFSe>`
		_, err := Parse([]byte(doc))
		s.requireKind(err, KindFieldMissing, "vLiq")
	})

	s.Run("rejects when no service code location is populated", func() {
		doc := `<NFSe><infNFSe Id="K"><nNFSe>5</nNFSe><dhProc>2025-02-02T08:00:00Z</dhProc><valores><vLiq>1</vLiq></valores><emit><CNPJ>1</CNPJ></emit></infNFSe></NFSe>`
		_, err := Parse([]byte(doc))
		s.requireKind(err, KindFieldMissing, "cTribNac")
	})
}

func (s *ParserSuite) TestEncodingAndDetection() {
	s.Run("decodes ISO-8859-1 bytes", func() {
		// A latin-1 é (0xE9) inside the service code field.
		raw := append([]byte(`<tbnfd><NOTA_FISCAL><NumeroNota>9</NumeroNota><DataEmissao>2025-05-05</DataEmissao><ValorTotalNota>50</ValorTotalNota><Cae>T`), 0xE9)
		raw = append(raw, []byte(`c</Cae></NOTA_FISCAL></tbnfd>`)...)

		invoice, err := Parse(raw)
		s.Require().NoError(err)
		s.Equal("Téc", invoice.ServiceCode)
	})

	s.Run("accepts a latin-1 encoding declaration", func() {
		doc := `<?xml version="1.0" encoding="ISO-8859-1"?><tbnfd><NOTA_FISCAL><NumeroNota>3</NumeroNota><DataEmissao>2025-04-04</DataEmissao><ValorTotalNota>70</ValorTotalNota><Cae>X</Cae></NOTA_FISCAL></tbnfd>`
		_, err := Parse([]byte(doc))
		s.Require().NoError(err)
	})

	s.Run("rejects an unknown root element", func() {
		_, err := Parse([]byte(`<invoice><number>1</number></invoice>`))
		s.requireKind(err, KindUnknownFormat, "")
	})

	s.Run("rejects an empty document", func() {
		_, err := Parse(nil)
		s.requireKind(err, KindDecodeFailure, "")
	})

	s.Run("rejects non-XML bytes", func() {
		_, err := Parse([]byte("not xml at all"))
		s.requireKind(err, KindDecodeFailure, "")
	})
}

func (s *ParserSuite) requireKind(err error, kind ErrorKind, field string) {
	s.T().Helper()
	s.Require().Error(err)
	var parseErr *Error
	s.Require().ErrorAs(err, &parseErr)
	s.Equal(kind, parseErr.Kind)
	if field != "" {
		s.Equal(field, parseErr.Field)
	}
}

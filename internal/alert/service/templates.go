package service

import (
	"fmt"
	"time"

	alertmodels "fiscalwatch/internal/alert/models"
	companymodels "fiscalwatch/internal/company/models"
	"fiscalwatch/internal/revenue"
	id "fiscalwatch/pkg/domain"
)

func buildRevenueAlert(company *companymodels.Company, m revenue.Metrics, now time.Time) *alertmodels.Alert {
	alert := &alertmodels.Alert{
		ID:        id.NewAlertID(),
		CompanyID: company.ID,
		CreatedAt: now,
	}

	if m.Status == companymodels.RevenueStatusExceeded {
		alert.Type = alertmodels.TypeRevenueCritical
		alert.Title = fmt.Sprintf("REVENUE LIMIT EXCEEDED - %s", company.LegalName)
		alert.Body = fmt.Sprintf(
			"%s (tax id %s) has EXCEEDED the annual revenue ceiling for regime %s.\n\n"+
				"Rolling 12-month revenue: %s\n"+
				"Ceiling: %s\n"+
				"Usage: %s%%\n"+
				"Excess: %s\n\n"+
				"Immediate action required: risk of regime disqualification.",
			company.LegalName, company.CNPJ, company.Regime,
			m.Revenue.StringFixed(2), m.Limit.StringFixed(2),
			m.Percentage.StringFixed(1), m.Margin.Abs().StringFixed(2),
		)
		return alert
	}

	alert.Type = alertmodels.TypeRevenueWarning
	alert.Title = fmt.Sprintf("Revenue approaching limit - %s", company.LegalName)
	alert.Body = fmt.Sprintf(
		"%s (tax id %s) is approaching the annual revenue ceiling for regime %s.\n\n"+
			"Rolling 12-month revenue: %s\n"+
			"Ceiling: %s\n"+
			"Usage: %s%%\n"+
			"Remaining margin: %s\n\n"+
			"Monitor upcoming invoice issuance.",
		company.LegalName, company.CNPJ, company.Regime,
		m.Revenue.StringFixed(2), m.Limit.StringFixed(2),
		m.Percentage.StringFixed(1), m.Margin.StringFixed(2),
	)
	return alert
}

func buildComplianceAlert(company *companymodels.Company, invoiceID id.InvoiceID, auditMessage string, now time.Time) *alertmodels.Alert {
	return &alertmodels.Alert{
		ID:        id.NewAlertID(),
		CompanyID: company.ID,
		InvoiceID: invoiceID,
		Type:      alertmodels.TypeComplianceError,
		Title:     fmt.Sprintf("Service-code compliance failure - %s", company.LegalName),
		Body: fmt.Sprintf(
			"An invoice for %s (tax id %s) failed the service-code audit.\n\n%s",
			company.LegalName, company.CNPJ, auditMessage,
		),
		CreatedAt: now,
	}
}

func buildCollectionFailureAlert(company *companymodels.Company, failureMessage string, now time.Time) *alertmodels.Alert {
	return &alertmodels.Alert{
		ID:        id.NewAlertID(),
		CompanyID: company.ID,
		Type:      alertmodels.TypeCollectionFailure,
		Title:     fmt.Sprintf("Automatic collection failed - %s", company.LegalName),
		Body: fmt.Sprintf(
			"The scheduled invoice collection for %s (tax id %s) failed.\n\n%s",
			company.LegalName, company.CNPJ, failureMessage,
		),
		CreatedAt: now,
	}
}

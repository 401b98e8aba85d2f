package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortColumn maps a client sort field onto a column through a
// whitelist. Returns defaultColumn if the field is empty or not allowed.
func ValidateSortColumn(sortField string, columns map[string]string, defaultColumn string) string {
	if column, ok := columns[strings.TrimSpace(sortField)]; ok {
		return column
	}
	return defaultColumn
}

// InvoiceSortColumns whitelists InvoiceFilter.OrderBy values. Money fields
// sort on their minor-unit columns.
var InvoiceSortColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"invoice_number": "invoice_number",
	"due_date":       "due_date",
	"total":          "total_minor",
	"balance_due":    "balance_minor",
	"status":         "status",
}

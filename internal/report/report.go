// Package report renders the ticket notes posted after a cancellation run.
package report

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/macd-cancel/internal/models"
)

const (
	FailureTitle = "MACD Request Cancellation Failed:"
	summaryTitle = "MACD Request Cancellation Summary"
)

// Format renders the internal note for a finished run.
func Format(result models.CancellationResult, orgID string, subscriptionIDs []string, testMode bool) string {
	var b strings.Builder

	if testMode {
		b.WriteString("TEST MODE - Changes were NOT committed (rolled back)\n")
	} else {
		b.WriteString("PRODUCTION MODE - Changes were committed\n")
	}
	b.WriteString("\n")

	b.WriteString(summaryTitle + "\n")
	b.WriteString(strings.Repeat("=", len(summaryTitle)) + "\n")
	fmt.Fprintf(&b, "Org ID: %s\n", orgID)
	fmt.Fprintf(&b, "Subscriptions queried: %d\n\n", len(subscriptionIDs))

	b.WriteString("Results:\n")
	fmt.Fprintf(&b, "  - Total MACD requests found: %d\n", result.TotalFound)
	fmt.Fprintf(&b, "  - Eligible for update (status='%s'): %d\n", models.StatusPosted, result.EligibleCount)
	fmt.Fprintf(&b, "  - Skipped (wrong status): %d\n\n", result.SkippedWrongStatus)

	b.WriteString("Updates Performed:\n")
	fmt.Fprintf(&b, "  - order_request records updated to '%s': %d\n",
		models.OrderRequestCancelledStatus, result.OrderRequestsUpdated)
	fmt.Fprintf(&b, "  - macd_request records updated to '%s': %d\n\n",
		models.MacdRequestCancelledStatus, result.MacdRequestsUpdated)

	if len(result.SkippedRecords) > 0 {
		b.WriteString("Skipped Records (wrong status):\n")
		for _, r := range result.SkippedRecords {
			fmt.Fprintf(&b, "  - ID: %s, Status: %s\n", r.ID, r.Status)
		}
		b.WriteString("\n")
	}

	writeList(&b, "Basket IDs affected:", result.UpdatedBasketIDs)
	writeList(&b, "MACD Request IDs updated:", result.UpdatedMacdIDs)

	switch {
	case testMode:
		b.WriteString("NOTE: This was a TEST run. No actual changes were made to the database.")
	case result.Committed:
		b.WriteString("All changes have been committed to the database.")
	default:
		b.WriteString("No eligible MACD requests were found. Nothing was committed.")
	}

	return b.String()
}

// Failure renders the note posted when processing fails.
func Failure(err error) string {
	return fmt.Sprintf("%s\nOperation failed: %v", FailureTitle, err)
}

func writeList(b *strings.Builder, title string, ids []string) {
	if len(ids) == 0 {
		return
	}
	b.WriteString(title + "\n")
	for _, id := range ids {
		fmt.Fprintf(b, "  - %s\n", id)
	}
	b.WriteString("\n")
}

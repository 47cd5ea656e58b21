package service

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/macd-cancel/internal/models"
)

var validate = validator.New()

var requiredFieldMessages = []struct {
	field   string
	message string
}{
	{"OrgID", "Missing required field: org_id"},
	{"SubscriptionIDs", "Missing required field: subscriptions (must be a non-empty list)"},
	{"Region", "Missing required field: region"},
	{"CaseID", "Missing required field: case_id"},
}

// ValidateInputs returns one message per missing field, in a fixed order.
// An empty result means the inputs are valid.
func ValidateInputs(orgID string, subscriptionIDs []string, region, caseID string) []string {
	err := validate.Struct(models.CancellationRequest{
		OrgID:           orgID,
		SubscriptionIDs: subscriptionIDs,
		Region:          region,
		CaseID:          caseID,
	})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	failed := make(map[string]bool, len(fieldErrs))
	for _, fe := range fieldErrs {
		failed[fe.StructField()] = true
	}

	var messages []string
	for _, m := range requiredFieldMessages {
		if failed[m.field] {
			messages = append(messages, m.message)
		}
	}
	return messages
}

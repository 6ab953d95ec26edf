package service

import (
	"fmt"
	"strings"

	"flashline/internal/core/domain"
)

func saleLockKey(saleID string) string {
	return fmt.Sprintf("sale:%s:grantlock", saleID)
}

// normalizeBuyer trims and lowercases the email and trims the sale id.
// Either one missing is a validation error.
func normalizeBuyer(email, saleID string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	saleID = strings.TrimSpace(saleID)
	if email == "" || saleID == "" {
		return "", "", fmt.Errorf("email and saleId are required: %w", domain.ErrInvalidInput)
	}
	return email, saleID, nil
}

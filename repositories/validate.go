package repositories

import (
	"fmt"
	"strings"

	"bookswap/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateSend rejects caller bugs before anything hits the store:
// empty or identical participant ids and blank content.
func ValidateSend(req SendRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%v: %w", err, errors.ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("blank content: %w", errors.ErrInvalidArgument)
	}
	return nil
}

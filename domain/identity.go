package domain

import (
	"bookswap/errors"
	"fmt"
)

// ConversationKey derives the canonical identifier of the conversation
// between two users. It is commutative: both participants compute the
// same key regardless of argument order.
func ConversationKey(userA, userB string) (string, error) {
	if userA == "" || userB == "" {
		return "", fmt.Errorf("conversation key needs two user ids: %w", errors.ErrInvalidArgument)
	}
	if userA == userB {
		return "", fmt.Errorf("conversation with oneself: %w", errors.ErrInvalidArgument)
	}
	if userA < userB {
		return userA + "_" + userB, nil
	}
	return userB + "_" + userA, nil
}

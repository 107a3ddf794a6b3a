package repositories

import (
	"fmt"

	"bookswap/domain"
	"bookswap/errors"
	"bookswap/store"
)

const CollectionUsers = "users"

const (
	fieldName              = "name"
	fieldProfilePictureURL = "profilePictureUrl"
)

type IProfileRepository interface {
	Get(userID string) (domain.Profile, error)
	Put(profile domain.Profile) error
}

// ProfileRepository is the read-mostly directory of public user
// identities the chat list resolves partners against. Accounts are
// managed elsewhere; Put exists for seeding and tests.
type ProfileRepository struct {
	store store.DocumentStore
}

func NewProfileRepository(documents store.DocumentStore) *ProfileRepository {
	return &ProfileRepository{store: documents}
}

func (r *ProfileRepository) Get(userID string) (domain.Profile, error) {
	doc, err := r.store.Get(CollectionUsers, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("profile %s: %w", userID, err)
	}
	return domain.Profile{
		ID:                store.String(doc, fieldID),
		Name:              store.String(doc, fieldName),
		ProfilePictureURL: store.String(doc, fieldProfilePictureURL),
	}, nil
}

func (r *ProfileRepository) Put(profile domain.Profile) error {
	if profile.ID == "" {
		return fmt.Errorf("profile id required: %w", errors.ErrInvalidArgument)
	}
	doc := store.Document{
		fieldID:                profile.ID,
		fieldName:              profile.Name,
		fieldProfilePictureURL: profile.ProfilePictureURL,
	}
	return r.store.Set(CollectionUsers, profile.ID, doc, false)
}

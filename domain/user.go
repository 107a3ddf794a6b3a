package domain

// Profile is the public identity of a user, resolved when building
// chat lists. Owned by the accounts service; read-only here.
type Profile struct {
	ID                string
	Name              string
	ProfilePictureURL string
}

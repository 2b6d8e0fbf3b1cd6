package pages

import "github.com/google/uuid"

type uuidProvider struct{}

// NewUUIDProvider returns an IDProvider backed by UUIDv7, so storage ids
// assigned to page records sort by creation time.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	generated, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return generated.String(), nil
}

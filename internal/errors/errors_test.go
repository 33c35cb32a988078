package appErrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/crm-dispatch/internal/errors"
)

func TestNotFoundUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("load: %w", appErrors.NewCampaignNotFound(7))

	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	var nf *appErrors.NotFoundError
	if assert.True(t, errors.As(err, &nf)) {
		assert.Equal(t, "campaign", nf.Entity)
		assert.Equal(t, int64(7), nf.ID)
	}
	assert.Equal(t, "load: campaign with ID 7 not found", err.Error())
}

func TestValidationErrorJoinsFields(t *testing.T) {
	err := &appErrors.ValidationError{Fields: []appErrors.FieldError{
		{Field: "name", Message: "name is required"},
		{Field: "email", Message: "email must be a valid email address"},
	}}

	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, "name is required; email must be a valid email address", err.Error())
}

func TestPersistenceErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &appErrors.PersistenceError{CampaignID: 3, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "campaign 3")
}

func TestConflictWrapsSentinel(t *testing.T) {
	err := appErrors.NewConflict("email already exists")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, "conflict: email already exists", err.Error())
}

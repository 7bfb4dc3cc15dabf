package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserErrorFormatsMessage(t *testing.T) {
	err := NewUserError("could not open the database", errors.New("disk full"))
	assert.Equal(t, "could not open the database: disk full", err.Error())

	bare := &UserError{UserMessage: "nothing to undo"}
	assert.Equal(t, "nothing to undo", bare.Error())
}

func TestUserErrorUnwrapsToCause(t *testing.T) {
	err := NewUserError("bad settings", fmt.Errorf("parse: %w", ErrInvalidConfig))

	assert.ErrorIs(t, err, ErrInvalidConfig)

	var userErr *UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "bad settings", userErr.UserMessage)
}

package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordError(t *testing.T) {
	err := NewRecordError("GetByID", "action", "a-1", ErrActionNotFound)

	assert.Equal(t, "GetByID operation failed for action a-1: action not found", err.Error())
	assert.ErrorIs(t, err, ErrActionNotFound)
	assert.True(t, IsNotFound(fmt.Errorf("outer: %w", err)))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrOrganizationPluginNotFound))
	assert.False(t, IsNotFound(ErrOrganizationPluginAlreadyExists))
	assert.False(t, IsNotFound(errors.New("boom")))
}

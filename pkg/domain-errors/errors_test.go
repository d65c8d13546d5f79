package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodesSurviveWrapping(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(base, CodeStorageFailure, "failed to load document")

	t.Run("code is visible through fmt wrapping", func(t *testing.T) {
		outer := fmt.Errorf("sweep batch: %w", err)
		assert.True(t, HasCode(outer, CodeStorageFailure))
		assert.Equal(t, CodeStorageFailure, CodeOf(outer))
	})

	t.Run("underlying cause is preserved", func(t *testing.T) {
		assert.ErrorIs(t, err, base)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("wrapping nil stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(base))
		assert.False(t, HasCode(base, CodeInternal))
	})
}

func TestFieldErrors(t *testing.T) {
	t.Run("no fields yields nil error", func(t *testing.T) {
		fe := FieldErrors{}
		assert.NoError(t, fe.Err("invalid renewal"))
	})

	t.Run("first problem per field wins and renders sorted", func(t *testing.T) {
		fe := FieldErrors{}
		fe.Add("renewal_date", "must not be in the future")
		fe.Add("file", "is required")
		fe.Add("file", "ignored second problem")

		err := fe.Err("invalid renewal")
		require.Error(t, err)
		assert.True(t, Is(err, CodeValidation))
		assert.Equal(t, "is required", FieldsOf(err)["file"])
		assert.Equal(t, "invalid renewal (file: is required; renewal_date: must not be in the future)", err.Error())
	})
}

func TestRetryable(t *testing.T) {
	assert.True(t, CodeStorageFailure.Retryable())
	assert.True(t, CodeTimeout.Retryable())
	assert.False(t, CodeValidation.Retryable())
	assert.False(t, CodeRenewalConflict.Retryable())
}

package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize("  Compliance@Fleet.Example ")
	require.NoError(t, err)
	assert.Equal(t, "compliance@fleet.example", got)

	for _, bad := range []string{"", "not-an-address", "Ops <ops@fleet.example>"} {
		_, err := Normalize(bad)
		assert.Error(t, err, bad)
	}
}

func TestGreetingName(t *testing.T) {
	assert.Equal(t, "Fleet", GreetingName("fleet.manager@example.com"))
	assert.Equal(t, "Dispatch", GreetingName("dispatch@example.com"))
	assert.Equal(t, "there", GreetingName("@example.com"))
	assert.Equal(t, "there", GreetingName("..."))
}

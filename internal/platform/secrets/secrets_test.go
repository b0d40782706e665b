package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_RoundTrip(t *testing.T) {
	box := NewBox("master-key")

	sealed, err := box.Seal("s3cr3t")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "s3cr3t")

	opened, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", opened)
}

func TestBox_EmptyStaysEmpty(t *testing.T) {
	box := NewBox("k")

	sealed, err := box.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	opened, err := box.Open("")
	require.NoError(t, err)
	assert.Empty(t, opened)
}

func TestBox_WrongKey(t *testing.T) {
	sealed, err := NewBox("a").Seal("value")
	require.NoError(t, err)

	_, err = NewBox("b").Open(sealed)
	assert.ErrorIs(t, err, ErrUnseal)

	_, err = NewBox("a").Open("not base64!")
	assert.ErrorIs(t, err, ErrUnseal)
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "whsec_"))
	assert.Len(t, a, len("whsec_")+64)
	assert.NotEqual(t, a, b)
}

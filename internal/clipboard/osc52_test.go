package clipboard

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceCarriesBase64(t *testing.T) {
	link := "vpn://AAAAAbcd"
	seq, err := Sequence(link, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(seq, "\x1b]52;"))
	assert.Contains(t, seq, base64.StdEncoding.EncodeToString([]byte(link)))
}

func TestSequenceBudget(t *testing.T) {
	// 90000 bytes encode to exactly 120000 base64 characters.
	_, err := Sequence(strings.Repeat("a", 90000), Options{})
	require.NoError(t, err)

	_, err = Sequence(strings.Repeat("a", 90001), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPayloadTooLarge))
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "vpn://x", Options{}))
	assert.Contains(t, buf.String(), base64.StdEncoding.EncodeToString([]byte("vpn://x")))

	plain, err := Sequence("vpn://x", Options{})
	require.NoError(t, err)
	wrapped, err := Sequence("vpn://x", Options{Tmux: true})
	require.NoError(t, err)
	assert.NotEqual(t, plain, wrapped)
}

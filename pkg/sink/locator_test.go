package sink

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefault(t *testing.T) {
	host := newFakeHost(44100, "Speakers", "Headphones")
	loc := NewLocator(host)

	for _, hint := range []string{"", DefaultDevice} {
		dev, err := loc.Resolve(hint)
		require.NoError(t, err)
		assert.Equal(t, "Speakers", dev.Name())
	}
}

func TestResolveDefaultWithoutDevices(t *testing.T) {
	loc := NewLocator(newFakeHost(44100))

	_, err := loc.Resolve("")
	assert.ErrorIs(t, err, ErrNoDeviceAvailable)
}

func TestResolveByName(t *testing.T) {
	host := newFakeHost(44100, "Speakers", "speakers", "Headphones", "Headphones")
	loc := NewLocator(host)

	tests := []struct {
		hint    string
		wantIdx int
	}{
		{"Speakers", 0},
		{"speakers", 1},
		{"Headphones", 2},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			dev, err := loc.Resolve(tt.hint)
			require.NoError(t, err)
			assert.Same(t, host.devices[tt.wantIdx], dev)
		})
	}
}

func TestResolveUnknownName(t *testing.T) {
	loc := NewLocator(newFakeHost(44100, "Speakers"))

	_, err := loc.Resolve("SPEAKERS")
	require.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "SPEAKERS", nf.Name)
	assert.Contains(t, err.Error(), "SPEAKERS")
}

func TestListDevices(t *testing.T) {
	loc := NewLocator(newFakeHost(48000, "Speakers", "Headphones"))

	infos, err := loc.ListDevices()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "Speakers", infos[0].Name)
	assert.True(t, infos[0].Default)
	assert.Equal(t, "Headphones", infos[1].Name)
	assert.False(t, infos[1].Default)
	require.Len(t, infos[1].Formats, 1)
	assert.Equal(t, 48000, infos[1].Formats[0].SampleRate)
}

package assets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCue(t *testing.T) {
	tests := []struct {
		in      string
		want    CueType
		wantErr bool
	}{
		{"bell", CueBell, false},
		{"BEEP", CueBeep, false},
		{"  warning  ", CueWarning, false},
		{"announce", CueAnnounce, false},
		{"gong", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCue(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestCueTypeValid(t *testing.T) {
	for _, cue := range AllCues() {
		assert.True(t, cue.Valid(), cue)
	}
	assert.False(t, CueType("siren").Valid())
}

func TestRegistryURIs(t *testing.T) {
	r := NewRegistry("https://assets.example.com/audio/", ".wav")

	assert.Equal(t, "wav", r.Extension(), "leading dot stripped")
	require.NotEmpty(t, r.Token())

	want := fmt.Sprintf("https://assets.example.com/audio/bell.wav?v=%s", r.Token())
	assert.Equal(t, want, r.URI(CueBell))

	d := r.Lookup(CueWarning)
	require.NotNil(t, d)
	assert.Equal(t, CueWarning, d.Cue)
	assert.Contains(t, d.URI, "warning.wav?v=")

	assert.Nil(t, r.Lookup(CueType("siren")))
	assert.Empty(t, r.URI(CueType("siren")))
}

func TestRegistryAllStableOrder(t *testing.T) {
	r := NewRegistry("http://localhost", "ogg")
	all := r.All()
	require.Len(t, all, len(AllCues()))
	for i, cue := range AllCues() {
		assert.Equal(t, cue, all[i].Cue)
	}
}

func TestCacheBustTokenUniquePerRegistry(t *testing.T) {
	a := NewRegistry("http://localhost", "wav")
	b := NewRegistry("http://localhost", "wav")
	assert.NotEqual(t, a.Token(), b.Token())
	assert.NotEqual(t, a.URI(CueBell), b.URI(CueBell))
}

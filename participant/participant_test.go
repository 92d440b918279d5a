package participant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voicemesh/participant"
)

func TestID_Outranks(t *testing.T) {
	tests := []struct {
		name  string
		a     participant.ID
		b     participant.ID
		aWins bool
		bWins bool
	}{
		{
			name:  "given greater identity when compared then only it outranks",
			a:     participant.ID{Num: 7, Handle: "alba"},
			b:     participant.ID{Num: 5, Handle: "bree"},
			aWins: true,
		},
		{
			name:  "given lesser identity when compared then the other outranks",
			a:     participant.ID{Num: 7, Handle: "alba"},
			b:     participant.ID{Num: 9, Handle: "cory"},
			bWins: true,
		},
		{
			name: "given equal identities when compared then neither outranks",
			a:    participant.ID{Num: 7, Handle: "alba"},
			b:    participant.ID{Num: 7, Handle: "copy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.aWins, tt.a.Outranks(tt.b))
			assert.Equal(t, tt.bWins, tt.b.Outranks(tt.a))
		})
	}
}

func TestID_Equal(t *testing.T) {
	t.Run("given same number with different handles when compared then they are equal", func(t *testing.T) {
		a := participant.ID{Num: 7, Handle: "alba"}
		b := participant.ID{Num: 7, Handle: "renamed"}
		assert.True(t, a.Equal(b))
	})
}

func TestID_String(t *testing.T) {
	assert.Equal(t, "alba#7", participant.ID{Num: 7, Handle: "alba"}.String())
}

package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasons_ApplyStateMessage(t *testing.T) {
	tests := []struct {
		name    string
		initial Reasons
		message string
		want    Reasons
	}{
		{
			name:    "plus adds a bit",
			initial: ReasonNone,
			message: "+media-jam",
			want:    ReasonMediaJam,
		},
		{
			name:    "plus keeps the bits already set",
			initial: ReasonMediaJam,
			message: "+toner-low",
			want:    ReasonMediaJam | ReasonTonerLow,
		},
		{
			name:    "minus clears a bit without touching others",
			initial: ReasonMediaJam | ReasonTonerLow,
			message: "-toner-low",
			want:    ReasonMediaJam,
		},
		{
			name:    "no prefix replaces the mask wholesale",
			initial: ReasonMediaJam | ReasonTonerLow,
			message: "cover-open",
			want:    ReasonCoverOpen,
		},
		{
			name:    "suffix is stripped before lookup",
			initial: ReasonNone,
			message: "+media-jam-error",
			want:    ReasonMediaJam,
		},
		{
			name:    "comma separated list applies every keyword",
			initial: ReasonNone,
			message: "+media-jam,toner-low",
			want:    ReasonMediaJam | ReasonTonerLow,
		},
		{
			name:    "unknown keyword is ignored",
			initial: ReasonMediaJam,
			message: "+not-a-real-keyword",
			want:    ReasonMediaJam,
		},
		{
			name:    "empty message is a no-op",
			initial: ReasonMediaJam,
			message: "",
			want:    ReasonMediaJam,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.initial.ApplyStateMessage(tt.message)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReasons_ApplyStateMessage_PlusThenMinusIsIdentity(t *testing.T) {
	initial := ReasonMediaJam | ReasonTonerLow
	afterPlus := initial.ApplyStateMessage("+cover-open")
	afterMinus := afterPlus.ApplyStateMessage("-cover-open")
	assert.Equal(t, initial, afterMinus)
}

func TestReasons_Strings(t *testing.T) {
	assert.Equal(t, []string{"none"}, ReasonNone.Strings())
	assert.Equal(t, []string{"media-jam", "toner-low"}, (ReasonMediaJam | ReasonTonerLow).Strings())
}

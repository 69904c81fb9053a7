package pcl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unpackBits reverses PackBits, used only to verify round-tripping;
// PCL printers are the only real consumer of the packed form.
func unpackBits(packed []byte) []byte {
	var out []byte
	i := 0
	for i < len(packed) {
		n := int(int8(packed[i]))
		i++
		if n >= 0 {
			litLen := n + 1
			out = append(out, packed[i:i+litLen]...)
			i += litLen
		} else {
			runLen := 1 - n
			for k := 0; k < runLen; k++ {
				out = append(out, packed[i])
			}
			i++
		}
	}
	return out
}

func TestPackBits_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		src  []byte
	}{
		{"empty", []byte{}},
		{"all same byte", bytesOf(200, 0xAA)},
		{"all distinct bytes", []byte{1, 2, 3, 4, 5, 6, 7}},
		{"mixed runs and literals", append(append(bytesOf(5, 0x00), []byte{1, 2, 3}...), bytesOf(10, 0xFF)...)},
		{"single byte", []byte{0x42}},
		{"two identical bytes", []byte{0x42, 0x42}},
		{"run longer than 128", bytesOf(300, 0x55)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed := PackBits(tt.src)
			got := unpackBits(packed)
			assert.Equal(t, tt.src, got)
		})
	}
}

func TestPackBits_RunIsShorterThanLiteral(t *testing.T) {
	src := bytesOf(10, 0x11)
	packed := PackBits(src)
	require.Less(t, len(packed), len(src))
}

func bytesOf(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

package dieselshare

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorRecordLayout(t *testing.T) {
	d := Descriptor{
		Format:    FormatRGBA8,
		Width:     1280,
		Height:    720,
		Size:      3_768_320,
		Memory:    Handle(7),
		Semaphore: Handle(9),
	}
	b, err := d.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, RecordSize)

	assert.Equal(t, uint32(FormatRGBA8), binary.LittleEndian.Uint32(b[0:]))
	assert.Equal(t, uint32(1280), binary.LittleEndian.Uint32(b[4:]))
	assert.Equal(t, uint32(720), binary.LittleEndian.Uint32(b[8:]))
	assert.Equal(t, uint64(3_768_320), binary.LittleEndian.Uint64(b[12:]))

	var got Descriptor
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, d, got)
}

func TestDescriptorRejectsBadRecords(t *testing.T) {
	var d Descriptor
	assert.Error(t, d.UnmarshalBinary(make([]byte, RecordSize-1)))

	b, err := Descriptor{Format: Format(42), Width: 1, Height: 1, Size: 4}.MarshalBinary()
	require.NoError(t, err)
	assert.ErrorIs(t, d.UnmarshalBinary(b), ErrBadFormat)

	b, err = None.MarshalBinary()
	require.NoError(t, err)
	assert.ErrorIs(t, d.UnmarshalBinary(b), ErrBadFormat)
}

func TestDescriptorValid(t *testing.T) {
	assert.False(t, None.Valid())
	d := Descriptor{Format: FormatDepth32, Width: 4, Height: 4, Size: 64, Memory: InvalidHandle, Semaphore: InvalidHandle}
	assert.False(t, d.Valid())
	assert.NoError(t, d.Close())
	assert.Equal(t, InvalidHandle, d.Memory)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"rgba8", FormatRGBA8, false},
		{"RGBA8", FormatRGBA8, false},
		{"depth32", FormatDepth32, false},
		{"d32", FormatDepth32, false},
		{"", FormatNone, false},
		{"bgra8", FormatNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrBadFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if got != FormatNone {
				assert.Equal(t, got, mustParse(t, got.String()))
			}
		})
	}
}

func mustParse(t *testing.T, s string) Format {
	t.Helper()
	f, err := ParseFormat(s)
	require.NoError(t, err)
	return f
}

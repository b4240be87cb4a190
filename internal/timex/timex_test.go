package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", in: `"3s"`, want: 3 * time.Second},
		{name: "minutes", in: `"15m"`, want: 15 * time.Minute},
		{name: "nanoseconds", in: `1000000000`, want: time.Second},
		{name: "bad string", in: `"soon"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(b))
}

func TestFormatParseMicro_RoundTrip(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2026, 10, 15, 12, 30, 45, 123456000, loc)

	s := FormatMicro(in)
	assert.Equal(t, "2026-10-15T09:30:45.123456Z", s)

	out, err := ParseMicro(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))
	assert.Equal(t, time.UTC, out.Location())
}

func TestParseMicro_Forms(t *testing.T) {
	want := time.Date(2016, 3, 1, 10, 0, 0, 500000000, time.UTC)

	for _, s := range []string{
		"2016-03-01T10:00:00.500000Z",
		"2016-03-01T10:00:00.500000",
		"2016-03-01T11:00:00.5+01:00",
	} {
		got, err := ParseMicro(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
	}

	_, err := ParseMicro("yesterday")
	require.Error(t, err)
}

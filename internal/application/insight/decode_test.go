package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "plain", raw: `{"score": 87}`},
		{name: "fenced json", raw: "```json\n{\"score\": 87}\n```"},
		{name: "bare fence", raw: "Here you go:\n```\n{\"score\": 87}\n```"},
		{name: "string wrapped", raw: `"{\"score\": 87}"`},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "array", raw: `[{"score": 87}]`, wantErr: true},
		{name: "prose", raw: "I cannot help with that.", wantErr: true},
		{name: "wrong type", raw: `{"score": "high"}`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Decode([]byte(tc.raw), scoreSchema())
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, float64(87), res["score"])
		})
	}
}

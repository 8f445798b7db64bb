package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_Check(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{version: "0.1.0"},
		{version: "0.1.7"},
		{version: "v0.1.2"},
		{version: "0.2.0", wantErr: true},
		{version: "0.0.9", wantErr: true},
		{version: "1.0.0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			v, err := NewVersion(tt.version)
			require.NoError(t, err)

			err = v.Check()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrVersionMismatch)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestVersion_Zero(t *testing.T) {
	var v Version
	assert.True(t, v.IsZero())
	assert.Empty(t, v.String())
	assert.ErrorIs(t, v.Check(), ErrVersionMismatch)
	assert.False(t, Current().IsZero())
}

func TestVersion_Text(t *testing.T) {
	var doc struct {
		Version Version `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"version": "0.1.3"}`), &doc))
	assert.Equal(t, "0.1.3", doc.Version.String())

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "0.1.3"}`, string(data))

	err = json.Unmarshal([]byte(`{"version": "latest"}`), &doc)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

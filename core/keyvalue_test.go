package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyValue(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    KeyValue
		wantErr bool
	}{
		{name: "simple", arg: "team=InnoLab", want: KeyValue{Key: "team", Value: "InnoLab"}},
		{name: "empty value", arg: "team=", want: KeyValue{Key: "team", Value: ""}},
		{name: "value with equals", arg: "expr=a=b", want: KeyValue{Key: "expr", Value: "a=b"}},
		{name: "key is trimmed", arg: " team =x", want: KeyValue{Key: "team", Value: "x"}},
		{name: "no separator", arg: "team", wantErr: true},
		{name: "empty key", arg: "=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeyValue(tt.arg)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKeyValue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeyValuesStopsAtFirstError(t *testing.T) {
	_, err := ParseKeyValues([]string{"a=1", "broken", "b=2"})
	require.ErrorIs(t, err, ErrInvalidKeyValue)
	assert.Contains(t, err.Error(), "broken")
}

func TestKeyValueMapLaterKeysWin(t *testing.T) {
	kvs, err := ParseKeyValues([]string{"a=1", "b=2", "a=3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "3", "b": "2"}, KeyValueMap(kvs))
	assert.Equal(t, "a=1", kvs[0].String())
}

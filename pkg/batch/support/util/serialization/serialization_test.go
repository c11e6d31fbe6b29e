package serialization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeKeys(t *testing.T) {
	info := map[string]string{"AC.AFR": "3", "DP": "40"}
	escaped := EscapeKeys(info)
	assert.Equal(t, map[string]string{"AC£AFR": "3", "DP": "40"}, escaped)
	assert.Equal(t, info, UnescapeKeys(escaped))
	assert.Nil(t, EscapeKeys(nil))
}

func TestDocumentRoundTripKeepsEscapedKeys(t *testing.T) {
	data, err := MarshalDocument(map[string]interface{}{"attributes": EscapeKeys(map[string]string{"a.b": "1"})})
	require.NoError(t, err)
	assert.JSONEq(t, `{"attributes":{"a£b":"1"}}`, data)

	var target map[string]map[string]string
	require.NoError(t, UnmarshalDocument(data, &target))
	assert.Equal(t, "1", target["attributes"]["a£b"])
}

func TestUnmarshalDocument_RejectsEmpty(t *testing.T) {
	var target map[string]interface{}
	assert.Error(t, UnmarshalDocument("", &target))
	assert.Error(t, UnmarshalDocument("{not json", &target))
}

func TestMarshalDocument_Unsupported(t *testing.T) {
	_, err := MarshalDocument(map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}

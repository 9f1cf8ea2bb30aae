package chatwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelopeSuccess(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"success":true,"data":{"id":7}}`))
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{"id":7}`, string(env.Data))
}

func TestDecodeEnvelopeFailureCarriesError(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"success":false,"error":"message not found"}`))
	require.NoError(t, err)
	assert.False(t, env.Success)
	assert.Equal(t, "message not found", env.Error)
}

func TestDecodeEnvelopeRejectsMalformedShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"array body", `[1,2,3]`},
		{"string body", `"ok"`},
		{"missing success", `{"data":[]}`},
		{"numeric success", `{"success":1}`},
		{"failure without error", `{"success":false}`},
		{"truncated json", `{"success":true,`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestNewPageComputesDerivedFields(t *testing.T) {
	page := NewPage([]int{1, 2, 3}, 0, 3, 7)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 7, page.TotalElements)
	assert.Equal(t, 3, page.NumberOfElements)
	assert.True(t, page.First)
	assert.False(t, page.Last)
	assert.False(t, page.Empty)

	last := NewPage([]int{7}, 2, 3, 7)
	assert.True(t, last.Last)

	empty := NewPage[int](nil, 0, 10, 0)
	assert.NotNil(t, empty.Content)
	assert.True(t, empty.Empty)
}

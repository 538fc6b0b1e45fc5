package json

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingPayload struct {
	Model string    `json:"model"`
	Input []string  `json:"input"`
	Dims  []float32 `json:"dims,omitempty"`
}

func TestBackendSelection(t *testing.T) {
	want := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	assert.Equal(t, want, IsUsingSonic())
}

func TestMarshalBengali(t *testing.T) {
	in := embeddingPayload{Model: "jina-embeddings-v3", Input: []string{"মোবাইল ফোন"}}

	data, err := Marshal(in)
	require.NoError(t, err)
	// 标准模式下非 ASCII 字符原样输出
	assert.Contains(t, string(data), "মোবাইল ফোন")

	var out embeddingPayload
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(embeddingPayload{Model: "m", Dims: []float32{0.5, 1}}))

	var out embeddingPayload
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, []float32{0.5, 1}, out.Dims)
}

package llm

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagPrefixes(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	embed := NewEmbeddingOptions()
	chat := NewChatOptions()
	embed.AddFlags(fs)
	chat.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--embedding.model=m1", "--chat.provider=deepseek"}))
	assert.Equal(t, "m1", embed.Model)
	assert.Equal(t, "deepseek", chat.Provider)
}

func TestCompleteAndValidate(t *testing.T) {
	t.Setenv("JINA_API_KEY", "k")

	o := NewEmbeddingOptions()
	assert.NotEmpty(t, o.Validate())
	require.NoError(t, o.Complete())
	assert.Equal(t, "k", o.APIKey)
	assert.Empty(t, o.Validate())

	assert.Empty(t, NewChatOptions().Validate(), "ollama 不需要 api key")
}

func TestToConfigMap(t *testing.T) {
	o := NewEmbeddingOptions()
	o.APIKey = "k"
	o.Dimensions = 256
	m := o.ToConfigMap()

	assert.Equal(t, "k", m["api_key"])
	assert.Equal(t, 256, m["dimensions"])
	assert.Equal(t, "jina-embeddings-v3", m["embed_model"])
	_, ok := m["base_url"]
	assert.False(t, ok, "空 base-url 交给供应商默认值")
}

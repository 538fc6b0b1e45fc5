package cliflag

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagSetOrder(t *testing.T) {
	var fss NamedFlagSets
	fss.FlagSet("rag").Int("rag.chunk-size", 512, "chunk size")
	fss.FlagSet("http").String("http.addr", ":8100", "addr")
	fss.FlagSet("rag").Int("rag.chunk-overlap", 50, "overlap")

	assert.Equal(t, []string{"rag", "http"}, fss.Order)
	assert.NotNil(t, fss.FlagSets["rag"].Lookup("rag.chunk-overlap"))
}

func TestPrintSections(t *testing.T) {
	var fss NamedFlagSets
	fss.FlagSet("http").String("http.addr", ":8100", "Bind address.")
	fss.FlagSet("empty")

	var buf bytes.Buffer
	PrintSections(&buf, fss, 0)

	out := buf.String()
	assert.Contains(t, out, "Http flags:")
	assert.Contains(t, out, "--http.addr")
	assert.NotContains(t, out, "Empty flags:")
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	formats := []struct {
		format     string
		wantParser string
	}{
		{"ttl", "*parser.TurtleParser"},
		{"turtle", "*parser.TurtleParser"},
		{"TTL", "*parser.TurtleParser"},
		{"nt", "*parser.NTriplesParser"},
		{"xlsx", "*parser.XLSXParser"},
	}

	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			p, err := reg.Get(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.wantParser, typeName(p))
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	for _, f := range []string{"pdf", "docx", "json", "rdf", ""} {
		t.Run("format_"+f, func(t *testing.T) {
			p, err := reg.Get(f)
			assert.Error(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestRegistryForPath(t *testing.T) {
	reg := NewRegistry()
	p, err := reg.ForPath("/data/qoyllurity.ttl")
	require.NoError(t, err)
	assert.Equal(t, "*parser.TurtleParser", typeName(p))

	_, err = reg.ForPath("/data/qoyllurity")
	assert.Error(t, err)
}

func TestRegistryCustomParser(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("n3")
	require.Error(t, err)

	reg.Register("n3", &TurtleParser{})
	p, err := reg.Get("n3")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

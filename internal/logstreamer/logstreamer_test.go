package logstreamer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefixWriterPrependsPrefixToEachWrite(t *testing.T) {
	var buf bytes.Buffer
	w := NewPrefixWriter(&buf, "build: ")

	n, err := w.Write([]byte("compiling\n"))
	require.NoError(t, err)
	require.Equal(t, len("compiling\n"), n)

	n, err = w.Write([]byte("linking\n"))
	require.NoError(t, err)
	require.Equal(t, len("linking\n"), n)

	require.Equal(t, "build: compiling\nbuild: linking\n", buf.String())
}

func TestPrefixWriterWithEmptyPrefixPassesThroughUnchanged(t *testing.T) {
	var buf bytes.Buffer
	w := NewPrefixWriter(&buf, "")

	_, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, "hello", buf.String())
}

package pefile_test

import (
	"crypto/sha256"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neko-neko-nyan/libpe/pefile"
)

func TestEntropy(t *testing.T) {
	assert.Zero(t, pefile.Entropy(nil))
	assert.Zero(t, pefile.Entropy(make([]byte, 1024)))
	assert.InDelta(t, 1.0, pefile.Entropy([]byte("aabb")), 1e-9)

	uniform := make([]byte, 256)
	for i := range uniform {
		uniform[i] = byte(i)
	}
	assert.InDelta(t, 8.0, pefile.Entropy(uniform), 1e-9)
}

func TestSectionInfos(t *testing.T) {
	f := parseTestImage(t)
	infos := f.SectionInfos()
	require.Len(t, infos, 4)

	text := infos[0]
	assert.Equal(t, ".text", text.Name)
	assert.True(t, text.Executable)
	assert.False(t, text.Writable)

	raw, err := f.SectionData(".text")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%x", sha256.Sum256(raw)), text.SHA256)

	rsrc := infos[2]
	assert.Equal(t, ".rsrc", rsrc.Name)
	assert.False(t, rsrc.Executable)
	assert.Greater(t, rsrc.Entropy, 0.0)
}

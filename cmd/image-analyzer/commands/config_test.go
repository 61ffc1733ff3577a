package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/image-analyzer/internal/config"
	"github.com/spherical/image-analyzer/internal/identity"
)

func TestParseMappings(t *testing.T) {
	got, err := parseMappings([]string{"summary=G", " originalText = B "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"summary": "G", "originalText": "B"}, got)

	_, err = parseMappings([]string{"summary"})
	assert.ErrorContains(t, err, "expected field=column")

	_, err = parseMappings([]string{"price=C"})
	assert.ErrorContains(t, err, "unknown field")
}

func TestCLIIdentity(t *testing.T) {
	p := cliIdentity(config.IdentityConfig{UserID: "alice"})
	assert.Equal(t, identity.StaticProvider{UserID: "alice"}, p)

	path := t.TempDir() + "/identity"
	p = cliIdentity(config.IdentityConfig{CacheFile: path})
	cached, ok := p.(identity.CachedProvider)
	require.True(t, ok)
	assert.Equal(t, path, cached.Path)
}

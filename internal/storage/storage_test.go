package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskPutAndURL(t *testing.T) {
	dir := t.TempDir()
	d, err := NewDisk(dir, "http://localhost:8080/media/")
	require.NoError(t, err)

	key, err := d.Put(context.Background(), []byte("fake-jpeg"), "image/jpeg", "tickets")
	require.NoError(t, err)
	assert.True(t, filepath.IsLocal(key))

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-jpeg"), data)

	url := d.PublicURL(key)
	assert.Equal(t, "http://localhost:8080/media/"+key, url)
}

func TestDiskRejectsUnknownContentType(t *testing.T) {
	d, err := NewDisk(t.TempDir(), "http://localhost:8080/media")
	require.NoError(t, err)

	_, err = d.Put(context.Background(), []byte("x"), "application/pdf", "tickets")
	assert.Error(t, err)
}

func TestAllowedContentType(t *testing.T) {
	assert.True(t, AllowedContentType("image/png"))
	assert.False(t, AllowedContentType("text/html"))
}

package factory

import (
	"context"
	"testing"

	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	store, err := Open(context.Background(), &filestore.Config{
		Provider:      filestore.ProviderMemory,
		DefaultBucket: "media",
	})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	buckets, err := store.ListBuckets(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "media", buckets[0].Name)
}

func TestOpen_InvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), nil)
	assert.True(t, errs.IsInvalidInput(err))

	_, err = Open(context.Background(), &filestore.Config{Provider: "ftp", DefaultBucket: "x"})
	assert.True(t, errs.IsInvalidInput(err))
}

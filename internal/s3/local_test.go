package s3

import (
	"context"
	"testing"

	ierr "github.com/lm-legal/payments/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalService(t *testing.T) {
	ctx := context.Background()
	svc := NewLocalService(t.TempDir())
	key := InvoiceKey("LM-2025-00001.html")

	exists, err := svc.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = svc.Get(ctx, key)
	assert.True(t, ierr.IsNotFound(err))

	require.NoError(t, svc.Upload(ctx, NewHTMLDocument(key, []byte("<html>LM-2025-00001</html>"))))

	exists, err = svc.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "<html>LM-2025-00001</html>", string(data))

	url, err := svc.PresignedURL(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, url)
}

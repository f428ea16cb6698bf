package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDailyQuota(t *testing.T) {
	ctx := context.Background()
	quota := NewMemoryDailyQuota()

	used, err := quota.Used(ctx, "brevo")
	require.NoError(t, err)
	assert.Equal(t, 0, used)

	total, err := quota.Consume(ctx, "brevo", 25)
	require.NoError(t, err)
	assert.Equal(t, 25, total)

	total, err = quota.Consume(ctx, "brevo", 10)
	require.NoError(t, err)
	assert.Equal(t, 35, total)

	used, err = quota.Used(ctx, "brevo")
	require.NoError(t, err)
	assert.Equal(t, 35, used)
}

func TestMemoryDailyQuotaIsolatesProviders(t *testing.T) {
	ctx := context.Background()
	quota := NewMemoryDailyQuota()

	_, err := quota.Consume(ctx, "brevo", 50)
	require.NoError(t, err)

	used, err := quota.Used(ctx, "ses")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

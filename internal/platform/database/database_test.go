package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "", DefaultOptions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestOpenReportsUnreachableDatabase(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Open(ctx, "postgres://storefront@127.0.0.1:1/storefront?sslmode=disable&connect_timeout=1", Options{MaxOpenConns: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
}

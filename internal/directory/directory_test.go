package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDirectory(t *testing.T) {
	d := NewStatic([]int64{7, 8})
	ctx := context.Background()

	admin, err := d.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)

	member, err := d.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.False(t, member.IsAdmin)
	assert.Equal(t, int64(100), member.ID)
}

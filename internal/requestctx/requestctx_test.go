package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkFirstCallWins(t *testing.T) {
	s := &Status{}

	_, recorded := s.Hit()
	require.False(t, recorded)

	s.MarkMiss()
	s.MarkHit()

	hit, recorded := s.Hit()
	require.True(t, recorded)
	require.False(t, hit)
}

func TestMarkNilSafe(t *testing.T) {
	var s *Status
	require.NotPanics(t, func() {
		s.MarkHit()
		s.Mark(false)
	})
	hit, recorded := s.Hit()
	require.False(t, hit)
	require.False(t, recorded)
}

func TestContextRoundTrip(t *testing.T) {
	ctx, status := WithStatus(context.Background())

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Same(t, status, got)

	got.MarkHit()
	hit, recorded := status.Hit()
	require.True(t, recorded)
	require.True(t, hit)
}

func TestFromContextAbsent(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
}

func TestStatusIsPerContext(t *testing.T) {
	_, first := WithStatus(context.Background())
	_, second := WithStatus(context.Background())

	first.MarkHit()

	_, recorded := second.Hit()
	require.False(t, recorded)
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arwaypoint/engine/internal/model"
)

func TestContext_Lifecycle(t *testing.T) {
	ctx := NewContext()

	s, active := ctx.Current()
	assert.False(t, active)
	assert.Equal(t, "no session active", s.Label)

	ctx.Begin(&model.Session{SessionKey: "abc", Label: "morning run"})

	s, active = ctx.Current()
	require.True(t, active)
	assert.Equal(t, "abc", s.SessionKey)

	ended, ok := ctx.End()
	require.True(t, ok)
	assert.Equal(t, "abc", ended.SessionKey)

	_, active = ctx.Current()
	assert.False(t, active)
}

func TestContext_EndWithoutBegin(t *testing.T) {
	ctx := NewContext()

	_, ok := ctx.End()
	assert.False(t, ok)
}

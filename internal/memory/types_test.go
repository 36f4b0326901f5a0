package memory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidRole(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidRole(RoleUser))
	assert.True(t, ValidRole(RoleAssistant))
	assert.False(t, ValidRole("system"))
	assert.False(t, ValidRole(""))
	assert.False(t, ValidRole("User"))
}

func TestMessage_JSONShape(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Message{Role: RoleUser, Content: "hi"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(data))
}

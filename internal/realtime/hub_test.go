package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_EmitUnknownConnection(t *testing.T) {
	h := NewHub(0, nil)
	assert.ErrorIs(t, h.Emit("missing", "x", nil), ErrConnectionGone)
	assert.Equal(t, 0, h.Len())
}

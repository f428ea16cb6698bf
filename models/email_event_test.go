package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEventType(t *testing.T) {
	assert.Equal(t, EmailEventOpen, NormalizeEventType("open"))
	assert.Equal(t, EmailEventHardBounce, NormalizeEventType("hard_bounce"))
	assert.Equal(t, EmailEventUnsubscribe, NormalizeEventType("unsubscribe"))

	// unknown names land on error so the trail keeps the occurrence
	assert.Equal(t, EmailEventError, NormalizeEventType("proxy_open"))
	assert.Equal(t, EmailEventError, NormalizeEventType(""))
}

func TestEventTypeIsBounce(t *testing.T) {
	assert.True(t, EmailEventBounce.IsBounce())
	assert.True(t, EmailEventSoftBounce.IsBounce())
	assert.True(t, EmailEventHardBounce.IsBounce())
	assert.False(t, EmailEventOpen.IsBounce())
	assert.False(t, EmailEventSpam.IsBounce())
}

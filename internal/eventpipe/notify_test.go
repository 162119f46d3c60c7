package eventpipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextNotificationFiresOnCrossingNotOnRepeat(t *testing.T) {
	n := NewNotifier(DefaultNotifySettings())

	notes := n.OnContextUpdate("s1", 40, false)
	assert.Empty(t, notes, "first observation has no prior value to cross from")

	notes = n.OnContextUpdate("s1", 55, false)
	require.Len(t, notes, 1)
	assert.Equal(t, CategoryContext, notes[0].Category)
	assert.Equal(t, PriorityMedium, notes[0].Priority)

	notes = n.OnContextUpdate("s1", 56, false)
	assert.Empty(t, notes, "no new threshold crossed")
}

func TestContextNotificationPriorityByThreshold(t *testing.T) {
	n := NewNotifier(DefaultNotifySettings())
	n.OnContextUpdate("s1", 10, false)

	notes := n.OnContextUpdate("s1", 95, false)
	var sawCritical bool
	for _, note := range notes {
		if note.Priority == PriorityCritical {
			sawCritical = true
		}
	}
	assert.True(t, sawCritical, "crossing 90 should fire a critical notification")
}

func TestAutoCompactRuleFiresOnlyWhenDisabled(t *testing.T) {
	n := NewNotifier(DefaultNotifySettings())
	n.OnContextUpdate("s1", 10, true)
	notes := n.OnContextUpdate("s1", 80, true)
	for _, note := range notes {
		assert.NotEqual(t, CategoryAutoCompact, note.Category)
	}

	n2 := NewNotifier(DefaultNotifySettings())
	n2.OnContextUpdate("s2", 10, false)
	notes2 := n2.OnContextUpdate("s2", 80, false)
	var sawAutoCompact bool
	for _, note := range notes2 {
		if note.Category == CategoryAutoCompact {
			sawAutoCompact = true
		}
	}
	assert.True(t, sawAutoCompact)
}

func TestOperationNotificationThreshold(t *testing.T) {
	n := NewNotifier(DefaultNotifySettings())
	assert.Empty(t, n.OnOperation("s1", 1000))

	notes := n.OnOperation("s1", 60000)
	require.Len(t, notes, 1)
	assert.Equal(t, PriorityMedium, notes[0].Priority)
}

func TestOperationNotificationCooldown(t *testing.T) {
	n := NewNotifier(DefaultNotifySettings())
	fixed := time.Now()
	n.now = func() time.Time { return fixed }

	notes := n.OnOperation("s1", 60000)
	require.Len(t, notes, 1)

	notes = n.OnOperation("s1", 60000)
	assert.Empty(t, notes, "within cooldown window")

	n.now = func() time.Time { return fixed.Add(11 * time.Second) }
	notes = n.OnOperation("s1", 60000)
	assert.Len(t, notes, 1, "cooldown elapsed")
}

func TestHistoryCapsAtFifty(t *testing.T) {
	n := NewNotifier(DefaultNotifySettings())
	for i := 0; i < 60; i++ {
		n.now = func() time.Time { return time.Now().Add(time.Duration(i) * time.Minute) }
		n.OnOperation("s1", 60000)
	}
	assert.LessOrEqual(t, len(n.History()), historyLimit)
}

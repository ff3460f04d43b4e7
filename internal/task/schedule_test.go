package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTask_Due(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"zero run after", Task{}, true},
		{"run after reached", Task{RunAfter: now}, true},
		{"run after in future", Task{RunAfter: now.Add(time.Second)}, false},
		{"disabled", Task{Disabled: true}, false},
		{"running", Task{Running: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Due(now))
		})
	}
}

func TestTask_Complete(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("success uses interval", func(t *testing.T) {
		tk := &Task{Interval: 25 * time.Minute, RetryInterval: 5 * time.Minute, Running: true}
		tk.Complete(start, Success(), time.Hour)

		assert.False(t, tk.Running)
		assert.Equal(t, start.Add(25*time.Minute), tk.RunAfter)
		assert.Equal(t, 1, tk.Runs)
		assert.Equal(t, 0, tk.Failures)
	})

	t.Run("error falls back to global retry", func(t *testing.T) {
		tk := &Task{Interval: 25 * time.Minute, Running: true}
		tk.Complete(start, Failure("boom", errors.New("x")), time.Hour)

		assert.Equal(t, start.Add(60*time.Minute), tk.RunAfter)
		assert.Equal(t, 1, tk.Failures)
		assert.Equal(t, StatusError, tk.LastResult.Status)
	})

	t.Run("cancelled uses task retry", func(t *testing.T) {
		tk := &Task{Interval: 25 * time.Minute, RetryInterval: 5 * time.Minute}
		tk.Complete(start, Cancelled("stop"), time.Hour)

		assert.Equal(t, start.Add(5*time.Minute), tk.RunAfter)
	})
}

func TestTask_Clone(t *testing.T) {
	res := Success()
	tk := &Task{Name: "rates", AffectedTypes: []string{"rate"}, LastResult: &res}

	c := tk.Clone()
	c.AffectedTypes[0] = "changed"
	c.LastResult.Message = "changed"

	assert.Equal(t, "rate", tk.AffectedTypes[0])
	assert.Empty(t, tk.LastResult.Message)
	assert.True(t, tk.Cascades())
	assert.False(t, (&Task{}).Cascades())
}

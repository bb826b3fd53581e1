package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusPending, true},
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusShipped, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusPending, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusShipped, StatusConfirmed, true},
		{StatusShipped, StatusPending, true},
		{StatusShipped, StatusCompleted, true},
		{StatusShipped, StatusCancelled, true},
		{StatusCompleted, StatusCompleted, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusShipped, false},
		{StatusCancelled, StatusCancelled, true},
		{StatusCancelled, StatusPending, false},
		{Status("bogus"), StatusPending, false},
		{StatusPending, Status("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses() {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("Pending")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "status", vErr.Field)
}

func TestRealized(t *testing.T) {
	for _, s := range RealizedStatuses() {
		assert.True(t, s.Realized(), s)
	}
	assert.False(t, StatusPending.Realized())
	assert.False(t, StatusCancelled.Realized())
}

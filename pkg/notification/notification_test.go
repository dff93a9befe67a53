package notification_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyhub/pkg/notification"
)

func TestCategoryOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want notification.Category
	}{
		{"like", notification.CategoryLikes},
		{"likes", notification.CategoryLikes},
		{"comment", notification.CategoryComments},
		{"reply", notification.CategoryComments},
		{"mention", notification.CategoryComments},
		{"follow", notification.CategoryFollows},
		{"subscribe", notification.CategoryFollows},
		{"upload", notification.CategoryUploads},
		{"video", notification.CategoryUploads},
		{"content", notification.CategoryUploads},
		{"security", notification.CategorySystem},
		{"maintenance", notification.CategorySystem},
		{"Admin", notification.CategorySystem},
		{"newsletter", notification.CategoryMarketing},
		{"promotion", notification.CategoryMarketing},
		{"custom_event", notification.Category("custom_event")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, notification.CategoryOf(tt.in))
		})
	}
}

func TestTransition(t *testing.T) {
	t.Parallel()

	t.Run("forward moves", func(t *testing.T) {
		to, err := notification.Transition(notification.StatusUnread, notification.ActionRead)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusRead, to)

		to, err = notification.Transition(notification.StatusRead, notification.ActionArchive)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusArchived, to)

		to, err = notification.Transition(notification.StatusArchived, notification.ActionDelete)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusDeleted, to)

		to, err = notification.Transition(notification.StatusDeleted, notification.ActionPurge)
		require.NoError(t, err)
		assert.Equal(t, notification.StatusPurged, to)
	})

	t.Run("unread cannot be purged", func(t *testing.T) {
		_, err := notification.Transition(notification.StatusUnread, notification.ActionPurge)
		assert.ErrorIs(t, err, notification.ErrInvalidTransition)
	})

	t.Run("archived cannot be read again", func(t *testing.T) {
		_, err := notification.Transition(notification.StatusArchived, notification.ActionRead)
		assert.ErrorIs(t, err, notification.ErrInvalidTransition)
	})

	t.Run("no backward moves", func(t *testing.T) {
		assert.False(t, notification.CanTransition(notification.StatusArchived, notification.StatusUnread))
		assert.False(t, notification.CanTransition(notification.StatusRead, notification.StatusUnread))
		assert.False(t, notification.CanTransition(notification.StatusDeleted, notification.StatusRead))
		assert.True(t, notification.CanTransition(notification.StatusUnread, notification.StatusDeleted))
	})
}

package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressGroupNames(t *testing.T) {
	cases := []struct {
		addr  Address
		group string
		kind  string
	}{
		{PerUser("42"), "user_notifications_42", "user"},
		{PerProject("7"), "project_7", "project"},
		{PerMeeting("9"), "meeting_chat_9", "meeting"},
		{System(), "system_notifications", "system"},
	}

	for _, tc := range cases {
		t.Run(tc.group, func(t *testing.T) {
			assert.Equal(t, tc.group, tc.addr.Group())
			assert.Equal(t, tc.kind, tc.addr.Kind().String())

			parsed, err := ParseGroup(tc.group)
			require.NoError(t, err)
			assert.Equal(t, tc.addr, parsed)
		})
	}
}

func TestParseGroupRejectsUnknown(t *testing.T) {
	for _, g := range []string{"", "project_", "chat_1", "user_notifications_"} {
		_, err := ParseGroup(g)
		assert.Error(t, err, g)
	}
}

func TestZeroAddressInvalid(t *testing.T) {
	assert.False(t, Address{}.Valid())
	assert.False(t, PerUser("").Valid())
	assert.True(t, System().Valid())
}

package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{name: "nil", cb: nil},
		{name: "encoded", cb: &tele.Callback{Data: "\fadmin_leaderboard|10"}, key: "admin_leaderboard", payload: "10"},
		{name: "no payload", cb: &tele.Callback{Data: "\fcompleted_tasks"}, key: "completed_tasks"},
		{name: "matched by telebot", cb: &tele.Callback{Unique: "admin_total", Data: "x"}, key: "admin_total", payload: "x"},
		{name: "plain", cb: &tele.Callback{Data: "admin_users"}, key: "admin_users"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.key, key)
			assert.Equal(t, tc.payload, payload)
		})
	}
}

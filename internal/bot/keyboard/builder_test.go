package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmProfile(t *testing.T) {
	b := NewBuilder(nil)

	markup := b.ConfirmProfile()
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 1)
	assert.Equal(t, "confirm_profile", markup.InlineKeyboard[0][0].Data)
}

func TestMainMenu(t *testing.T) {
	b := NewBuilder(nil)

	markup := b.MainMenu()
	require.Len(t, markup.InlineKeyboard, 4)

	var data []string
	for _, row := range markup.InlineKeyboard {
		require.Len(t, row, 1)
		data = append(data, row[0].Data)
	}

	assert.Equal(t, []string{"edit_data", "edit_time", "ref_status", "buy_subscription"}, data)
}

package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	method string
	form   map[string]string
}

func newBotServer(t *testing.T, calls *[]recordedCall, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		*calls = append(*calls, recordedCall{method: r.URL.Path, form: form})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestSendMessage(t *testing.T) {
	var calls []recordedCall
	server := newBotServer(t, &calls, `{"ok":true,"result":{"message_id":42,"date":0,"chat":{"id":7,"type":"private"}}}`)
	defer server.Close()

	client := NewTelegramClientWithEndpoint("TOKEN", server.URL+"/bot%s/%s", time.Second)
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Preview", "preview:mail_1"),
	))

	id, err := client.SendMessage(context.Background(), 7, "<b>hi</b>", &markup)
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	require.Len(t, calls, 1)
	assert.Equal(t, "/botTOKEN/sendMessage", calls[0].method)
	assert.Equal(t, "7", calls[0].form["chat_id"])
	assert.Equal(t, "HTML", calls[0].form["parse_mode"])
	assert.Contains(t, calls[0].form["reply_markup"], "preview:mail_1")
}

func TestEditAndAnswer(t *testing.T) {
	var calls []recordedCall
	server := newBotServer(t, &calls, `{"ok":true,"result":true}`)
	defer server.Close()

	client := NewTelegramClientWithEndpoint("TOKEN", server.URL+"/bot%s/%s", time.Second)

	require.NoError(t, client.EditMessageText(context.Background(), 7, 42, "edited", nil))
	require.NoError(t, client.AnswerCallbackQuery(context.Background(), "cb1", "done"))

	require.Len(t, calls, 2)
	assert.Equal(t, "/botTOKEN/editMessageText", calls[0].method)
	assert.Equal(t, "42", calls[0].form["message_id"])
	assert.Empty(t, calls[0].form["reply_markup"])
	assert.Equal(t, "/botTOKEN/answerCallbackQuery", calls[1].method)
	assert.Equal(t, "cb1", calls[1].form["callback_query_id"])
}

func TestApiErrorIsReturned(t *testing.T) {
	var calls []recordedCall
	server := newBotServer(t, &calls, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	defer server.Close()

	client := NewTelegramClientWithEndpoint("TOKEN", server.URL+"/bot%s/%s", time.Second)
	_, err := client.SendMessage(context.Background(), 1, "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	updates []tgbotapi.Update
	err     error
}

func (d *fakeDispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	d.updates = append(d.updates, update)
	return d.err
}

type fakeManager struct {
	setURLs   []string
	removed   int
	setErr    error
	removeErr error
}

func (m *fakeManager) SetWebhook(url string) error {
	m.setURLs = append(m.setURLs, url)
	return m.setErr
}

func (m *fakeManager) RemoveWebhook() error {
	m.removed++
	return m.removeErr
}

func newTestApp(dispatcher *fakeDispatcher, manager *fakeManager, baseURL string) *fiber.App {
	h := NewWebhookHandler(dispatcher, manager, baseURL, nil)
	app := fiber.New()
	app.Get("/", h.HandleRegister)
	app.Post("/webhook", h.HandleWebhook)
	return app
}

func TestRegisterWithoutBaseURL(t *testing.T) {
	app := newTestApp(&fakeDispatcher{}, &fakeManager{}, "")

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "PUBLIC_BASE_URL")
}

func TestRegisterSetsWebhook(t *testing.T) {
	manager := &fakeManager{}
	app := newTestApp(&fakeDispatcher{}, manager, "https://bot.example.com")

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, 1, manager.removed)
	require.Equal(t, []string{"https://bot.example.com/webhook"}, manager.setURLs)

	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "Webhook set to https://bot.example.com/webhook")
}

func TestRegisterFailure(t *testing.T) {
	manager := &fakeManager{setErr: fmt.Errorf("telegram says no")}
	app := newTestApp(&fakeDispatcher{}, manager, "https://bot.example.com")

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	app := newTestApp(dispatcher, &fakeManager{}, "")

	payload := `{"update_id":7,"message":{"message_id":1,"chat":{"id":100},"text":"hello"}}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	require.Empty(t, body)

	require.Len(t, dispatcher.updates, 1)
	require.Equal(t, 7, dispatcher.updates[0].UpdateID)
	require.Equal(t, "hello", dispatcher.updates[0].Message.Text)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	app := newTestApp(dispatcher, &fakeManager{}, "")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("not json"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	require.Empty(t, dispatcher.updates)

	body, _ := io.ReadAll(resp.Body)
	require.Empty(t, body)
}

func TestWebhookInternalFailure(t *testing.T) {
	dispatcher := &fakeDispatcher{err: fmt.Errorf("handler blew up")}
	app := newTestApp(dispatcher, &fakeManager{}, "")

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"update_id":1}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

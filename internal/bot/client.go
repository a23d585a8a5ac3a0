package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxMessageLength = 4096

// Client is the slice of the Telegram API the dispatcher needs. Keeping
// it an interface lets the dispatcher be tested without the network.
type Client interface {
	SendMessage(chatID int64, text string) error
	SendMarkdown(chatID int64, text string) error
	ReplyTo(chatID int64, messageID int, text string) error
	SendButtonMessage(chatID int64, text, buttonLabel, callbackData string) error
	SendDocument(chatID int64, filename string, r io.Reader, caption string) error
	AnswerCallback(callbackID, text string) error
	SendTyping(chatID int64) error
	DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error)
	SetWebhook(url string) error
	RemoveWebhook() error
}

type telegramClient struct {
	bot    *tgbotapi.BotAPI
	http   *http.Client
	logger *slog.Logger
}

// NewClient connects to the Telegram bot API with the given token.
func NewClient(token string, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &telegramClient{
		bot:    bot,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger.With(slog.String("component", "telegram")),
	}, nil
}

func (c *telegramClient) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, truncateText(text))
	_, err := c.bot.Send(msg)
	return err
}

func (c *telegramClient) SendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, truncateText(text))
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := c.bot.Send(msg)
	return err
}

func (c *telegramClient) ReplyTo(chatID int64, messageID int, text string) error {
	msg := tgbotapi.NewMessage(chatID, truncateText(text))
	msg.ReplyToMessageID = messageID
	_, err := c.bot.Send(msg)
	return err
}

func (c *telegramClient) SendButtonMessage(chatID int64, text, buttonLabel, callbackData string) error {
	msg := tgbotapi.NewMessage(chatID, truncateText(text))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(buttonLabel, callbackData),
		),
	)
	_, err := c.bot.Send(msg)
	return err
}

func (c *telegramClient) SendDocument(chatID int64, filename string, r io.Reader, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: filename, Reader: r})
	doc.Caption = caption
	_, err := c.bot.Send(doc)
	return err
}

func (c *telegramClient) AnswerCallback(callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := c.bot.Request(callback)
	return err
}

func (c *telegramClient) SendTyping(chatID int64) error {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, err := c.bot.Request(action)
	return err
}

// DownloadFile fetches a file from the Telegram file API, refusing
// payloads larger than maxBytes.
func (c *telegramClient) DownloadFile(ctx context.Context, fileID string, maxBytes int64) ([]byte, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("file too large: %d bytes", resp.ContentLength)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file too large: over %d bytes", maxBytes)
	}

	return data, nil
}

func (c *telegramClient) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("failed to build webhook config: %w", err)
	}
	if _, err := c.bot.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	c.logger.Info("webhook set", slog.String("url", url))
	return nil
}

func (c *telegramClient) RemoveWebhook() error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to remove webhook: %w", err)
	}
	return nil
}

// truncateText caps text at Telegram's message limit on a valid UTF-8
// rune boundary, appending "..." when truncation occurs.
func truncateText(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	if len(text) <= telegramMaxMessageLength {
		return text
	}
	const suffix = "..."
	limit := telegramMaxMessageLength - len(suffix)
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + suffix
}

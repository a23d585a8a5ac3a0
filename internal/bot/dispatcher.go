package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"mekelleuniv/exam-share-bot/internal/models"
	"mekelleuniv/exam-share-bot/internal/repositories"
	"mekelleuniv/exam-share-bot/internal/services"
)

const welcomeText = "*Welcome to Mekelle University Exam Share Bot* 🎓\n\n" +
	"I help MU students access past exams, tutorial sheets and module PDFs.\n\n" +
	"Commands:\n" +
	"/search <query> - search by course name, code or department\n" +
	"/list - list recent uploads\n" +
	"/help - show this message\n\n" +
	"Admins: send a PDF as a document with caption: Title|COURSE_CODE|DEPARTMENT\n"

const (
	searchLimit      = 20
	plainSearchLimit = 10
	answerMaxTokens  = 512
)

// Dispatcher routes inbound Telegram updates. Every update is handled
// independently; callback payloads carry all needed context.
type Dispatcher struct {
	client      Client
	resources   repositories.ResourceRepository
	storage     services.StorageService
	gemini      services.GeminiService
	pdfParser   services.PDFParserService
	prompts     *services.PromptBuilder
	admins      map[int64]struct{}
	maxFileSize int64
	logger      *slog.Logger
}

func NewDispatcher(
	client Client,
	resources repositories.ResourceRepository,
	storage services.StorageService,
	gemini services.GeminiService,
	pdfParser services.PDFParserService,
	admins map[int64]struct{},
	maxFileSize int64,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:      client,
		resources:   resources,
		storage:     storage,
		gemini:      gemini,
		pdfParser:   pdfParser,
		prompts:     services.NewPromptBuilder(),
		admins:      admins,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "dispatcher")),
	}
}

// HandleUpdate routes one inbound update. The returned error covers only
// faults where the user could not be told what went wrong; everything
// else ends in a chat message and a log entry.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return d.handleCallback(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil {
		return nil
	}

	switch {
	case msg.IsCommand():
		return d.handleCommand(ctx, msg)
	case msg.Document != nil:
		return d.handleDocument(ctx, msg)
	case len(msg.Photo) > 0:
		return d.handlePhoto(ctx, msg)
	case msg.Text != "":
		return d.handleText(ctx, msg)
	default:
		return nil
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start", "help":
		return d.client.SendMarkdown(msg.Chat.ID, welcomeText)
	case "list":
		return d.handleList(msg.Chat.ID)
	case "search":
		return d.handleSearch(msg.Chat.ID, strings.TrimSpace(msg.CommandArguments()))
	default:
		return nil
	}
}

func (d *Dispatcher) handleList(chatID int64) error {
	resources, err := d.resources.Search("", searchLimit)
	if err != nil {
		d.logger.Error("list failed", slog.Any("error", err))
		return d.client.SendMessage(chatID, "Failed to list resources. Please try again later.")
	}
	if len(resources) == 0 {
		return d.client.SendMessage(chatID, "No resources uploaded yet.")
	}

	var b strings.Builder
	b.WriteString("Recent resources:\n")
	for _, r := range resources {
		code := r.CourseCode
		if code == "" {
			code = "no code"
		}
		fmt.Fprintf(&b, "%d. %s — %s (%s)\n", r.ID, r.Title, r.Filename, code)
	}
	return d.client.SendMessage(chatID, b.String())
}

func (d *Dispatcher) handleSearch(chatID int64, query string) error {
	if query == "" {
		return d.client.SendMessage(chatID, "Usage: /search <course name or code or department>")
	}

	resources, err := d.resources.Search(query, searchLimit)
	if err != nil {
		d.logger.Error("search failed", slog.String("query", query), slog.Any("error", err))
		return d.client.SendMessage(chatID, "Search failed. Please try again later.")
	}
	if len(resources) == 0 {
		return d.client.SendMessage(chatID, "No matches found.")
	}

	for _, r := range resources {
		text := fmt.Sprintf("%d. %s\nCourse: %s\nDept: %s", r.ID, r.Title, orNA(r.CourseCode), orNA(r.Department))
		if err := d.client.SendButtonMessage(chatID, text, "Download", fmt.Sprintf("get:%d", r.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) handleCallback(ctx context.Context, call *tgbotapi.CallbackQuery) error {
	data := call.Data
	if !strings.HasPrefix(data, "get:") {
		return d.client.AnswerCallback(call.ID, "Unknown action.")
	}
	if call.Message == nil || call.Message.Chat == nil {
		return d.client.AnswerCallback(call.ID, "Cannot deliver the file here.")
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(data, "get:"), 10, 32)
	if err != nil {
		return d.client.AnswerCallback(call.ID, "Invalid id.")
	}

	resource, err := d.resources.FindByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return d.client.AnswerCallback(call.ID, "Resource not found.")
		}
		d.logger.Error("resource lookup failed", slog.Uint64("id", id), slog.Any("error", err))
		return d.client.AnswerCallback(call.ID, "Lookup failed. Please try again later.")
	}

	blob, err := d.storage.Open(resource.Filename)
	if err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			return d.client.AnswerCallback(call.ID, "File missing on server.")
		}
		d.logger.Error("blob open failed", slog.String("filename", resource.Filename), slog.Any("error", err))
		return d.client.AnswerCallback(call.ID, "Failed to read file.")
	}
	defer blob.Close()

	caption := fmt.Sprintf("%s — %s / %s", resource.Title, resource.CourseCode, resource.Department)
	if err := d.client.SendDocument(call.Message.Chat.ID, resource.Filename, blob, caption); err != nil {
		d.logger.Error("send document failed", slog.Uint64("id", id), slog.Any("error", err))
		return d.client.AnswerCallback(call.ID, "Failed to send file.")
	}
	return d.client.AnswerCallback(call.ID, "Sent!")
}

func (d *Dispatcher) handleDocument(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || !d.isAdmin(msg.From.ID) {
		return d.reply(msg, "Only admins may upload files. Ask an admin to upload.")
	}

	doc := msg.Document
	if d.maxFileSize > 0 && int64(doc.FileSize) > d.maxFileSize {
		return d.reply(msg, fmt.Sprintf("File too large. Max upload size is %d bytes.", d.maxFileSize))
	}

	data, err := d.client.DownloadFile(ctx, doc.FileID, d.maxFileSize)
	if err != nil {
		d.logger.Error("document download failed", slog.Any("error", err))
		return d.reply(msg, "Failed to download document from Telegram.")
	}

	title, courseCode, department := ParseCaption(msg.Caption, doc.FileName)

	storedName, err := d.storage.SaveBytes(data, doc.FileName)
	if err != nil {
		d.logger.Error("blob save failed", slog.Any("error", err))
		return d.reply(msg, "Failed to store the document.")
	}

	resource := &models.Resource{
		Title:      title,
		Filename:   storedName,
		CourseCode: courseCode,
		Department: department,
		Uploader:   strconv.FormatInt(msg.From.ID, 10),
	}
	if err := d.resources.Create(resource); err != nil {
		// Do not leave an orphaned blob behind a failed insert.
		if delErr := d.storage.DeleteFile(storedName); delErr != nil {
			d.logger.Error("orphan cleanup failed", slog.Any("error", delErr))
		}
		d.logger.Error("resource insert failed", slog.Any("error", err))
		return d.reply(msg, "Failed to save resource record.")
	}

	confirm := fmt.Sprintf("Uploaded: %s (Course: %s)", title, orNA(courseCode))
	if services.IsPDFName(storedName) {
		if pages, err := d.pdfParser.PageCount(d.storage.GetFilePath(storedName)); err == nil {
			confirm = fmt.Sprintf("Uploaded: %s (Course: %s, %d pages)", title, orNA(courseCode), pages)
		}
	}

	d.logger.Info("resource uploaded",
		slog.Uint64("id", uint64(resource.ID)),
		slog.String("title", title),
		slog.String("uploader", resource.Uploader))
	return d.reply(msg, confirm)
}

func (d *Dispatcher) handlePhoto(ctx context.Context, msg *tgbotapi.Message) error {
	if err := d.reply(msg, "Processing image... (may take a few seconds)"); err != nil {
		return err
	}

	photo := pickLargestPhoto(msg.Photo)
	data, err := d.client.DownloadFile(ctx, photo.FileID, d.maxFileSize)
	if err != nil {
		d.logger.Error("photo download failed", slog.Any("error", err))
		return d.reply(msg, "Failed to download image.")
	}

	answer := d.gemini.AskImage(ctx, data, d.prompts.BuildPhotoStudyPrompt())
	return d.reply(msg, answer)
}

func (d *Dispatcher) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)

	if strings.HasPrefix(strings.ToLower(text), "search:") {
		query := strings.TrimSpace(text[len("search:"):])
		if query == "" {
			return d.reply(msg, "Usage: search:<course name or code or department>")
		}

		resources, err := d.resources.Search(query, plainSearchLimit)
		if err != nil {
			d.logger.Error("search failed", slog.String("query", query), slog.Any("error", err))
			return d.reply(msg, "Search failed. Please try again later.")
		}
		if len(resources) == 0 {
			return d.reply(msg, "No resources found.")
		}

		lines := make([]string, 0, len(resources))
		for _, r := range resources {
			lines = append(lines, fmt.Sprintf("%d. %s — %s", r.ID, r.Title, r.Filename))
		}
		return d.reply(msg, strings.Join(lines, "\n"))
	}

	if err := d.client.SendTyping(msg.Chat.ID); err != nil {
		d.logger.Warn("typing action failed", slog.Any("error", err))
	}
	answer := d.gemini.AskText(ctx, d.prompts.BuildAssistantPrompt(text), answerMaxTokens)
	return d.reply(msg, answer)
}

func (d *Dispatcher) reply(msg *tgbotapi.Message, text string) error {
	return d.client.ReplyTo(msg.Chat.ID, msg.MessageID, text)
}

func (d *Dispatcher) isAdmin(userID int64) bool {
	_, ok := d.admins[userID]
	return ok
}

// ParseCaption splits an upload caption of the form
// "Title|COURSE_CODE|DEPARTMENT". Captions without a pipe become the
// title as-is, falling back to the document's filename and then to a
// generated name.
func ParseCaption(caption, fileName string) (title, courseCode, department string) {
	caption = strings.TrimSpace(caption)
	if strings.Contains(caption, "|") {
		parts := strings.SplitN(caption, "|", 3)
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	}

	title = caption
	if title == "" {
		title = fileName
	}
	if title == "" {
		title = fmt.Sprintf("resource_%d", time.Now().Unix())
	}
	return title, "", ""
}

// pickLargestPhoto returns the highest-resolution size Telegram offers.
func pickLargestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(sizes) == 0 {
		return tgbotapi.PhotoSize{}
	}
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

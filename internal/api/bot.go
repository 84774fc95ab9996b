package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "sat-detect/internal/application"
	"sat-detect/internal/container"
	"sat-detect/internal/domain/entity"
)

// maxDownloadSize предел Bot API на скачивание файла
const maxDownloadSize = 20 << 20

const (
	msgStart = `👋 Привет! Я ищу объекты на спутниковых снимках.

🛰 Пришлите GeoTIFF документом (не фото), и я верну CSV с координатами объектов и превью с рамками.

📋 Команды:
/planet — снимки Planet (по умолчанию)
/terrasar — радарные снимки TerraSAR-X
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Выберите тип снимков: /planet или /terrasar
2️⃣ Отправьте GeoTIFF документом
3️⃣ Получите CSV: первая строка охват снимка, далее центры объектов и их размеры

💡 Telegram отдаёт боту файлы не больше 20 МБ.`

	msgPlanet          = "🛰 Тип снимков: Planet. Отправьте GeoTIFF документом."
	msgTerraSAR        = "📡 Тип снимков: TerraSAR-X. Отправьте GeoTIFF документом."
	msgCancelled       = "❌ Операция отменена."
	msgSendDocument    = "📎 Пожалуйста, отправьте снимок GeoTIFF документом."
	msgPhotoCompressed = "📎 Фото сжимается Telegram и теряет привязку. Отправьте GeoTIFF документом."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgUnsupported     = "⚠️ Поддерживаются только GeoTIFF (.tif, .tiff)."
	msgTooLarge        = "⚠️ Файл больше 20 МБ, Telegram не даст его скачать."
	msgBusy            = "⏳ Предыдущий снимок ещё обрабатывается."
	msgProcessing      = "⏳ Обрабатываю снимок..."
	msgProcessingError = "⚠️ Не удалось обработать снимок. Проверьте файл и попробуйте ещё раз."
)

// Bot представляет Telegram-бота
type Bot struct {
	api       *tgbotapi.BotAPI
	container *container.Container
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Info("authorized", "account", api.Self.UserName)

	return &Bot{
		api:       api,
		container: c,
		logger:    logger,
	}, nil
}

// Run запускает основной цикл обработки сообщений.
// Возвращается после отмены ctx, дождавшись начатых обработок.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user, err := b.container.UserService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.logger.Error("get user", "user_id", msg.From.ID, "error", err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Document != nil {
		if user.State == entity.StateProcessing {
			b.sendMessage(msg.Chat.ID, msgBusy)
			return
		}
		b.handleDocument(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.sendMessage(msg.Chat.ID, msgPhotoCompressed)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendDocument)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	users := b.container.UserService
	userID, chatID := msg.From.ID, msg.Chat.ID

	var err error
	switch msg.Command() {
	case "start":
		_, err = users.BeginUpload(ctx, userID, chatID)
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "planet":
		_, err = users.SetImageType(ctx, userID, chatID, entity.ImageTypePlanet)
		b.sendMessage(chatID, msgPlanet)

	case "terrasar":
		_, err = users.SetImageType(ctx, userID, chatID, entity.ImageTypeTerraSAR)
		b.sendMessage(chatID, msgTerraSAR)

	case "cancel":
		_, err = users.Cancel(ctx, userID, chatID)
		b.sendMessage(chatID, msgCancelled)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}

	if err != nil {
		b.logger.Error("update user", "user_id", userID, "command", msg.Command(), "error", err)
	}
}

// handleDocument проверяет файл и запускает обработку в фоне
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	doc := msg.Document
	chatID := msg.Chat.ID

	if err := b.container.SceneService.CheckFileName(doc.FileName); err != nil {
		b.sendMessage(chatID, msgUnsupported)
		return
	}
	if doc.FileSize > maxDownloadSize {
		b.sendMessage(chatID, msgTooLarge)
		return
	}

	userID := msg.From.ID
	// занимаем пользователя до старта горутины, чтобы второй файл получил msgBusy
	if _, err := b.container.UserService.SetState(ctx, userID, chatID, entity.StateProcessing); err != nil {
		b.logger.Error("update user", "user_id", userID, "error", err)
		return
	}

	b.sendMessage(chatID, msgProcessing)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.processDocument(ctx, userID, chatID, doc)
	}()
}

func (b *Bot) processDocument(ctx context.Context, userID, chatID int64, doc *tgbotapi.Document) {
	log := b.logger.With("user_id", userID, "file", doc.FileName)

	out, err := b.downloadAndProcess(ctx, userID, chatID, doc)
	if err != nil {
		log.Error("process scene", "error", err)
		if _, err := b.container.UserService.Cancel(context.WithoutCancel(ctx), userID, chatID); err != nil {
			log.Error("reset user state", "error", err)
		}
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	defer func() {
		if err := b.container.SceneService.Cleanup(out); err != nil {
			log.Warn("cleanup", "dir", out.Dir, "error", err)
		}
	}()

	b.sendMessage(chatID, FormatSummary(doc.FileName, out.Result))

	if out.CSVPath != "" {
		b.sendFile(chatID, tgbotapi.NewDocument(chatID, tgbotapi.FilePath(out.CSVPath)))
	}
	if out.PreviewPath != "" {
		// превью большого снимка превышает лимиты фото, отправляем документом
		preview := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(out.PreviewPath))
		preview.Caption = "🖼 Превью с найденными объектами"
		b.sendFile(chatID, preview)
	}
}

// downloadAndProcess скачивает файл из Telegram и передаёт поток в конвейер
func (b *Bot) downloadAndProcess(ctx context.Context, userID, chatID int64, doc *tgbotapi.Document) (*app.SceneOutput, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: doc.FileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}

	return b.container.SceneService.ProcessScene(ctx, userID, chatID, doc.FileName, resp.Body)
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendFile(chatID int64, c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Error("send file", "chat_id", chatID, "error", err)
	}
}

// FormatSummary текст ответа после обработки снимка
func FormatSummary(fileName string, r *entity.PredictionResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Готово: %s\n", fileName)
	fmt.Fprintf(&sb, "Размер: %d×%d, тайлов: %d\n", r.Info.Width, r.Info.Height, r.Tiles)
	fmt.Fprintf(&sb, "Найдено объектов: %d", len(r.Detections))

	if ext, ok := r.Extent(); ok {
		fmt.Fprintf(&sb, "\nОхват: (%.6f, %.6f) - (%.6f, %.6f)", ext.A, ext.B, ext.A2, ext.B2)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, "\n⚠️ Записей вне диапазона градусов: %d", r.Warnings)
	}
	return sb.String()
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, entity.ErrUnsupportedFormat):
		return msgUnsupported
	case errors.Is(err, entity.ErrRasterOpen):
		return "⚠️ Не удалось прочитать GeoTIFF или его привязку."
	default:
		return msgProcessingError
	}
}

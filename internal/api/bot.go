package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "mri-bot/internal/application"
	"mri-bot/internal/container"
	"mri-bot/internal/domain/entity"
	"mri-bot/internal/infrastructure/imaging"
)

const (
	msgStart = `👋 Привет! Я помогаю разобраться в снимках МРТ головного мозга.

📸 Отправьте снимок (JPEG или PNG), и я:
• определю класс: глиома, менингиома, опухоль гипофиза или норма;
• покажу карту значимости — какие области повлияли на решение;
• попрошу языковую модель прокомментировать результат.

📋 Команды:
/scan — загрузить снимок
/models — список моделей
/model <id> — выбрать модель
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Выберите модель командой /model (по умолчанию Xception)
2️⃣ Отправьте снимок МРТ как фото или как файл JPEG/PNG
3️⃣ Получите класс, уверенность, карту значимости и пояснение

💡 Карта значимости строится по градиенту модели: красные и жёлтые области сильнее всего влияют на ответ.

⚠️ Результат носит демонстрационный характер и не является диагнозом.

📋 Команды:
/scan — загрузить снимок
/models — список моделей
/model <id> — выбрать модель
/cancel — отменить операцию`

	msgAwaitingScan    = "📸 Отправьте снимок МРТ (JPEG или PNG)."
	msgCancelled       = "❌ Операция отменена. Отправьте /scan для нового анализа."
	msgSendScan        = "📸 Пожалуйста, отправьте снимок МРТ как фото или файл JPEG/PNG."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Анализирую снимок..."
	msgBusy            = "⏳ Предыдущий снимок ещё обрабатывается, подождите."
	msgModelUsage      = "Укажите модель: /model <id>. Список — /models."
	msgModelSelected   = "✅ Выбрана модель: %s"
	msgUnknownModel    = "❓ Такой модели нет. Список — /models."
	msgBadImage        = "⚠️ Снимок не принят: %s"
	msgModelFailed     = "⚠️ Модель %s сейчас недоступна. Выберите другую: /models."
	msgProcessingError = "⚠️ Не удалось обработать снимок. Попробуйте ещё раз."
	msgOverlayCaption  = "🗺 Карта значимости"
	msgNoSaliency      = "⚠️ Карту значимости построить не удалось: %s"
	msgUnsupported     = "ℹ️ Модель %s не поддерживает карты значимости. Классификация выше остаётся в силе."
	msgNarrativeHeader = "🩺 Пояснение:\n\n"
	msgNarrativeFailed = "⚠️ Пояснение недоступно: %s"
)

// Bot представляет Telegram-бота
type Bot struct {
	api *tgbotapi.BotAPI
	app *container.Container
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api: api,
		app: c,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil {
			continue
		}

		b.handleMessage(ctx, update.Message)
	}

	return nil
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.app.UserService.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Снимок как фото или как файл
	if len(msg.Photo) > 0 || msg.Document != nil {
		b.handleScan(ctx, msg, user)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendScan)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	users := b.app.UserService

	switch msg.Command() {
	case "start":
		if _, err := users.Cancel(ctx, user.ID, msg.Chat.ID); err != nil {
			log.Printf("Error resetting user: %v", err)
		}
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "models":
		b.sendMessage(msg.Chat.ID, formatModels(b.app.Registry.IDs(), user.Model))

	case "model":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			b.sendMessage(msg.Chat.ID, msgModelUsage)
			return
		}
		updated, err := users.SelectModel(ctx, user.ID, msg.Chat.ID, arg)
		if err != nil {
			if !errors.Is(err, entity.ErrInputValidation) {
				log.Printf("Error selecting model: %v", err)
			}
			b.sendMessage(msg.Chat.ID, msgUnknownModel)
			return
		}
		b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgModelSelected, updated.Model.Title()))

	case "scan":
		if _, err := users.BeginScan(ctx, user.ID, msg.Chat.ID); err != nil {
			log.Printf("Error updating user: %v", err)
		}
		b.sendMessage(msg.Chat.ID, msgAwaitingScan)

	case "cancel":
		if _, err := users.Cancel(ctx, user.ID, msg.Chat.ID); err != nil {
			log.Printf("Error updating user: %v", err)
		}
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handleScan скачивает снимок и прогоняет конвейер анализа
func (b *Bot) handleScan(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	if user.State == entity.StateProcessing {
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	}

	fileID, fileName, size := scanFile(msg)
	if size > imaging.MaxUploadSize {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgBadImage, "файл больше 10 МБ"))
		return
	}
	if err := checkExtension(fileName); err != nil {
		b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgBadImage, "поддерживаются только JPEG и PNG"))
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.Printf("Error downloading scan: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	res, err := b.app.AnalysisService.AnalyzeForUser(ctx, user.ID, msg.Chat.ID, fileName, data)
	if err != nil {
		log.Printf("Error analysing scan of user %d: %v", user.ID, err)
		switch {
		case errors.Is(err, entity.ErrInputValidation):
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgBadImage, "файл не похож на JPEG или PNG"))
		case errors.Is(err, entity.ErrModelLoad):
			b.sendMessage(msg.Chat.ID, fmt.Sprintf(msgModelFailed, user.Model.Title()))
		default:
			b.sendMessage(msg.Chat.ID, msgProcessingError)
		}
		return
	}

	b.sendResult(msg.Chat.ID, res)
}

// sendResult отправляет классификацию, карту и пояснение отдельными сообщениями
func (b *Bot) sendResult(chatID int64, res *app.AnalysisResult) {
	b.sendMessage(chatID, formatSummary(res))

	switch {
	case len(res.OverlayJPEG) > 0:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "saliency.jpg", Bytes: res.OverlayJPEG})
		photo.Caption = msgOverlayCaption
		if _, err := b.api.Send(photo); err != nil {
			log.Printf("Error sending overlay: %v", err)
		}
	case errors.Is(res.SaliencyErr, entity.ErrUnsupportedModel):
		b.sendMessage(chatID, fmt.Sprintf(msgUnsupported, res.Model.Title()))
	case res.SaliencyErr != nil:
		b.sendMessage(chatID, fmt.Sprintf(msgNoSaliency, res.SaliencyErr))
	}

	switch {
	case res.NarrativeErr != nil && len(res.OverlayJPEG) > 0:
		b.sendMessage(chatID, fmt.Sprintf(msgNarrativeFailed, res.NarrativeErr))
	case res.Explanation != "":
		b.sendMessage(chatID, msgNarrativeHeader+res.Explanation)
	}
}

// scanFile выбирает файл из сообщения: самое большое фото или документ
func scanFile(msg *tgbotapi.Message) (fileID, fileName string, size int) {
	if len(msg.Photo) > 0 {
		photo := msg.Photo[len(msg.Photo)-1]
		return photo.FileID, "photo.jpg", photo.FileSize
	}
	doc := msg.Document
	name := doc.FileName
	if name == "" {
		name = "scan" + extensionForMime(doc.MimeType)
	}
	return doc.FileID, name, doc.FileSize
}

func extensionForMime(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}

func checkExtension(name string) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return nil
	default:
		return entity.ErrInputValidation
	}
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, imaging.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

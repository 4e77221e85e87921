package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "pano-bot/internal/application"
	"pano-bot/internal/container"
	"pano-bot/internal/domain/entity"
	"pano-bot/internal/infrastructure/vision"
)

const (
	msgStart = `👋 Привет! Я собираю панорамы из трёх перекрывающихся фотографий.

📸 Отправьте /stitch и затем три кадра слева направо: левый, центральный, правый.

📋 Команды:
/stitch — собрать панораму
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте /stitch
2️⃣ Пришлите левый, центральный и правый кадры по очереди
3️⃣ Вы получите отчёт о сопоставлении и панорамы в двух режимах смешивания

💡 Рекомендации:
• Соседние кадры должны перекрываться хотя бы на треть
• Снимайте с одной точки, поворачивая камеру
• Избегайте движущихся объектов в зоне перекрытия

📋 Команды:
/stitch — начать сборку
/cancel — отменить операцию`

	msgAwaitingLeft    = "📸 Отправьте левый кадр."
	msgAwaitingCenter  = "📸 Теперь центральный кадр."
	msgAwaitingRight   = "📸 И правый кадр."
	msgCancelled       = "❌ Операция отменена. Отправьте /stitch для новой панорамы."
	msgSendPhoto       = "📸 Отправьте /stitch, чтобы начать сборку панорамы."
	msgBusy            = "⏳ Панорама ещё собирается, подождите."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Собираю панораму..."
	msgNoPanorama      = "⚠️ Не удалось собрать панораму: мало общих точек между кадрами. Попробуйте снять с большим перекрытием."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте другое фото."
)

// maxPhotoSide ограничивает размер кадра перед обработкой
const maxPhotoSide = 2000

// Bot представляет Telegram-бота
type Bot struct {
	api              *tgbotapi.BotAPI
	users            *app.UserService
	stitch           *app.StitchService
	previewThreshold float64
	wg               sync.WaitGroup
}

// NewBot создаёт нового бота
func NewBot(token string, c *container.Container) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:              api,
		users:            c.UserService,
		stitch:           c.StitchService,
		previewThreshold: c.Config.Stitch.PreviewThreshold,
	}, nil
}

// Run запускает основной цикл обработки сообщений до отмены контекста
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
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg, user)
		return
	}

	if user.State == entity.StateProcessing {
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	}
	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	if user.State == entity.StateProcessing && msg.Command() != "help" {
		b.sendMessage(msg.Chat.ID, msgBusy)
		return
	}

	switch msg.Command() {
	case "start":
		if _, err := b.stitch.Cancel(ctx, user.ID, msg.Chat.ID); err != nil {
			log.Printf("Error resetting user: %v", err)
		}
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "stitch":
		if _, err := b.stitch.BeginStitch(ctx, user.ID, msg.Chat.ID); err != nil {
			log.Printf("Error starting stitch: %v", err)
			return
		}
		b.sendMessage(msg.Chat.ID, msgAwaitingLeft)

	case "cancel":
		if _, err := b.stitch.Cancel(ctx, user.ID, msg.Chat.ID); err != nil {
			log.Printf("Error cancelling: %v", err)
		}
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// handlePhoto принимает очередной кадр и запускает сборку после третьего
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	if !user.AwaitingPhoto() {
		if user.State == entity.StateProcessing {
			b.sendMessage(msg.Chat.ID, msgBusy)
		} else {
			b.sendMessage(msg.Chat.ID, msgSendPhoto)
		}
		return
	}

	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	data, err := b.downloadFile(photo.FileID)
	if err != nil {
		log.Printf("Error downloading photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}
	img, err := vision.DecodeImage(data)
	if err != nil {
		log.Printf("Error decoding photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	progress, err := b.stitch.AcceptPhoto(ctx, user.ID, msg.Chat.ID, vision.Downscale(img, maxPhotoSide))
	if err != nil {
		log.Printf("Error accepting photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}

	switch progress.User.State {
	case entity.StateAwaitingCenter:
		b.sendMessage(msg.Chat.ID, msgAwaitingCenter)
	case entity.StateAwaitingRight:
		b.sendMessage(msg.Chat.ID, msgAwaitingRight)
	}
	if !progress.Ready {
		return
	}

	b.sendMessage(msg.Chat.ID, msgProcessing)
	session := fmt.Sprintf("%d-%d", user.ID, msg.MessageID)

	// сборка долгая, цикл обновлений не ждёт её
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.process(ctx, user.ID, msg.Chat.ID, session, progress.Frames)
	}()
}

func (b *Bot) process(ctx context.Context, userID, chatID int64, session string, frames [3]*entity.Image) {
	defer func() {
		if err := b.stitch.Release(context.WithoutCancel(ctx), session); err != nil {
			log.Printf("Error releasing session %s: %v", session, err)
		}
		if _, err := b.stitch.Finish(context.WithoutCancel(ctx), userID, chatID); err != nil {
			log.Printf("Error finishing user %d: %v", userID, err)
		}
	}()

	report, err := b.stitch.Run(ctx, session, frames)
	if err != nil {
		log.Printf("Error stitching session %s: %v", session, err)
		b.sendMessage(chatID, msgProcessingError)
		return
	}
	b.sendMessage(chatID, FormatReport(report))

	sent := 0
	for _, pano := range report.Panoramas {
		if pano.Err != nil || pano.Threshold != b.previewThreshold {
			continue
		}
		data, err := vision.EncodeJPEG(pano.Image, vision.DefaultJPEGQuality)
		if err != nil {
			log.Printf("Error encoding panorama: %v", err)
			continue
		}
		b.sendPhoto(chatID, fmt.Sprintf("pano_thr%g_%s.jpg", pano.Threshold, pano.Mode), data, PanoramaCaption(report, pano))
		sent++
	}
	if sent == 0 {
		b.sendMessage(chatID, msgNoPanorama)
	}
}

// FormatReport строит текстовый отчёт: точки, соответствия, инлаеры по порогам
func FormatReport(r *entity.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Детектор %s\n", r.Detector)

	names := []string{"левый", "центр", "правый"}
	for _, f := range r.Features {
		name := fmt.Sprintf("кадр %d", f.Image)
		if f.Image < len(names) {
			name = names[f.Image]
		}
		if f.Err != nil {
			fmt.Fprintf(&sb, "• %s: ошибка детекции\n", name)
			continue
		}
		fmt.Fprintf(&sb, "• %s: %d точек, %d мс\n", name, f.Keypoints, f.Duration.Milliseconds())
	}

	for _, m := range r.Matches {
		if m.Err != nil {
			fmt.Fprintf(&sb, "🔗 %d→%d: нет соответствий\n", m.Pair.From, m.Pair.To)
			continue
		}
		fmt.Fprintf(&sb, "🔗 %d→%d: %d соответствий, среднее расстояние %.1f\n",
			m.Pair.From, m.Pair.To, len(m.Matches), m.MeanDistance)
		for _, e := range r.Estimates {
			if e.Pair != m.Pair {
				continue
			}
			switch {
			case e.Err == nil:
				fmt.Fprintf(&sb, "   порог %g px: %d инлаеров\n", e.Threshold, e.InlierCount)
			case errors.Is(e.Err, entity.ErrInsufficientData):
				fmt.Fprintf(&sb, "   порог %g px: мало соответствий\n", e.Threshold)
			default:
				fmt.Fprintf(&sb, "   порог %g px: преобразование не найдено\n", e.Threshold)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// PanoramaCaption подпись к панораме: режим, порог, размер и инлаеры пар при этом пороге
func PanoramaCaption(r *entity.Report, pano entity.Panorama) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, порог %g px, %dx%d", pano.Mode, pano.Threshold, pano.Canvas.Width, pano.Canvas.Height)
	for _, m := range r.Matches {
		if e, ok := r.Estimate(m.Pair, pano.Threshold); ok && e.OK() {
			fmt.Fprintf(&sb, "\n%d→%d: %d инлаеров", e.Pair.From, e.Pair.To, e.InlierCount)
		}
	}
	return sb.String()
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	fileURL := file.Link(b.api.Token)

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
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

// sendPhoto отправляет изображение с подписью
func (b *Bot) sendPhoto(chatID int64, name string, data []byte, caption string) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		log.Printf("Error sending photo: %v", err)
	}
}

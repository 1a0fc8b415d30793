package bot

import (
	"context"
	"errors"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/dermadict/internal/viewer"
	"github.com/rs/zerolog/log"
)

// BotAPI defines the Telegram bot API operations the bot uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Bot is a Telegram front-end for the skin analysis proxy.
type Bot struct {
	tg         BotAPI
	analyzer   viewer.Analyzer
	downloader *Downloader

	mu       sync.Mutex
	sessions map[int64]*ChatSession

	// Tracks analyses running outside the session workers
	analyses sync.WaitGroup
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, analyzer viewer.Analyzer) *Bot {
	return &Bot{
		tg:         tg,
		analyzer:   analyzer,
		downloader: NewDownloader(),
		sessions:   make(map[int64]*ChatSession),
	}
}

func (b *Bot) getChatSession(chatID int64) *ChatSession {
	b.mu.Lock()
	defer b.mu.Unlock()
	if session, ok := b.sessions[chatID]; ok {
		return session
	}
	session := newChatSession(chatID, b.tg, b)
	session.StartWorker()
	b.sessions[chatID] = session
	log.Info().Int64("chatID", chatID).Msg("new chat session created")
	return session
}

// HandleUpdate dispatches an update to its chat's worker.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync waits for the worker to finish processing the update.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	message := update.Message
	if message == nil || message.Chat == nil {
		return
	}

	session := b.getChatSession(message.Chat.ID)

	msg := SessionMessage{Ctx: ctx, Message: message}
	switch {
	case len(message.Photo) > 0:
		msg.Type = "photo"
	case message.Document != nil:
		msg.Type = "document"
	default:
		msg.Type = "text"
	}

	log.Info().Int64("chatID", message.Chat.ID).Str("type", msg.Type).Str("text", message.Text).Msg("got message")

	if sync {
		session.SendSync(msg)
	} else {
		session.Send(msg)
	}
}

// HandleSessionMessage implements MessageHandler. It runs on the session
// worker goroutine.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *ChatSession, msg SessionMessage) {
	switch msg.Type {
	case "photo":
		b.handlePhoto(ctx, session, msg.Message)
	case "document":
		b.handleDocument(ctx, session, msg.Message)
	case "text":
		b.handleCommand(ctx, session, msg.Message)
	}
}

func (b *Bot) handlePhoto(ctx context.Context, session *ChatSession, message *tgbotapi.Message) {
	// Telegram lists sizes smallest first
	largest := message.Photo[len(message.Photo)-1]
	b.selectFile(ctx, session, largest.FileID, "")
}

func (b *Bot) handleDocument(ctx context.Context, session *ChatSession, message *tgbotapi.Message) {
	doc := message.Document
	if !strings.HasPrefix(doc.MimeType, "image/") {
		log.Info().Int64("chatID", session.chatID).Str("mimeType", doc.MimeType).Msg("rejected non-image document")
		session.reply(MsgNotAnImage)
		return
	}
	b.selectFile(ctx, session, doc.FileID, doc.MimeType)
}

func (b *Bot) selectFile(ctx context.Context, session *ChatSession, fileID, declaredType string) {
	data, err := b.downloader.DownloadFileID(ctx, b.tg.GetFileDirectURL, fileID)
	if err != nil {
		log.Error().Err(err).Int64("chatID", session.chatID).Msg("failed to download file")
		session.reply(MsgDownloadFailed)
		return
	}

	img, err := viewer.DecodeImage(declaredType, data)
	if err != nil {
		log.Info().Err(err).Int64("chatID", session.chatID).Msg("rejected file")
		session.reply(MsgNotAnImage)
		return
	}

	if err := session.viewer.Select(img); err != nil {
		session.reply(MsgAnalysisInProgress)
		return
	}
	session.reply(MsgImageSelected)
}

func (b *Bot) handleCommand(ctx context.Context, session *ChatSession, message *tgbotapi.Message) {
	command, _ := parseCommand(message.Text)
	switch command {
	case "/start", "/help":
		session.reply(MsgStart)
	case "/analyze":
		b.startAnalysis(ctx, session)
	case "/reset":
		if err := session.viewer.Reset(); err != nil {
			session.reply(MsgAnalysisInProgress)
			return
		}
		session.reply(MsgReset)
	default:
		session.reply(MsgUnknownCommand)
	}
}

// startAnalysis runs the analysis in the background so the worker keeps
// serving the chat. The viewer session rejects overlapping analyses.
func (b *Bot) startAnalysis(ctx context.Context, session *ChatSession) {
	switch session.viewer.State() {
	case viewer.StateIdle:
		session.reply(MsgNoImage)
		return
	case viewer.StateAnalyzing:
		session.reply(MsgAnalysisInProgress)
		return
	}

	b.analyses.Add(1)
	go func() {
		defer b.analyses.Done()

		typingCtx, stopTyping := context.WithCancel(ctx)
		defer stopTyping()
		go session.startTypingLoop(typingCtx)

		result, err := session.viewer.Analyze(ctx, b.analyzer)
		stopTyping()

		switch {
		case errors.Is(err, viewer.ErrAnalysisInProgress):
			session.reply(MsgAnalysisInProgress)
		case errors.Is(err, viewer.ErrNoImageSelected):
			session.reply(MsgNoImage)
		case err != nil:
			log.Error().Err(err).Int64("chatID", session.chatID).Msg("analysis failed")
			session.reply(MsgAnalysisFailed)
		default:
			log.Info().Int64("chatID", session.chatID).Str("disease", result.Disease).Msg("analysis complete")
			session.replyWithMessage(tgbotapi.MessageConfig{Text: viewer.Render(result)})
		}
	}()
}

// Run reads updates until ctx is cancelled or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	var wg sync.WaitGroup
	defer b.Shutdown()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}

// Shutdown waits for running analyses and stops all session workers.
func (b *Bot) Shutdown() {
	b.analyses.Wait()

	b.mu.Lock()
	sessions := make([]*ChatSession, 0, len(b.sessions))
	for _, session := range b.sessions {
		sessions = append(sessions, session)
	}
	b.mu.Unlock()

	for _, session := range sessions {
		session.Stop()
	}
	log.Info().Int("count", len(sessions)).Msg("stopped all session workers")
}

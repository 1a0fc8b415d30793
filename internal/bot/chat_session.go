package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/dermadict/internal/viewer"
	"github.com/rs/zerolog/log"
)

// SessionMessage is a unit of work for a chat's worker.
type SessionMessage struct {
	Type    string
	Ctx     context.Context
	Done    chan struct{} // Closed when processing is complete (for synchronous dispatch)
	Message *tgbotapi.Message
}

// MessageSender abstracts the ability to send Telegram messages.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MessageHandler processes session messages on the worker goroutine.
type MessageHandler interface {
	HandleSessionMessage(ctx context.Context, session *ChatSession, msg SessionMessage)
}

// ChatSession is one chat's viewer state plus a worker that processes
// updates for that chat sequentially. Analyses run outside the worker so
// /reset and new photos are still answered while one is in flight.
type ChatSession struct {
	chatID int64
	sender MessageSender
	viewer *viewer.Session

	inbox   chan SessionMessage
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handler MessageHandler
}

func newChatSession(chatID int64, sender MessageSender, handler MessageHandler) *ChatSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatSession{
		chatID:  chatID,
		sender:  sender,
		viewer:  viewer.NewSession(),
		inbox:   make(chan SessionMessage, 10),
		ctx:     ctx,
		cancel:  cancel,
		handler: handler,
	}
}

// Viewer returns the chat's viewer session.
func (s *ChatSession) Viewer() *viewer.Session {
	return s.viewer
}

func (s *ChatSession) replyWithMessage(msg tgbotapi.MessageConfig) tgbotapi.Message {
	msg.ChatID = s.chatID
	sent, err := s.sender.Send(msg)
	if err != nil {
		log.Error().Int64("chatID", s.chatID).Err(fmt.Errorf("failed to send reply message: %w", err)).Send()
	}
	return sent
}

// reply sends plain text. Model output is not safe to parse as markdown.
func (s *ChatSession) reply(text string, a ...any) tgbotapi.Message {
	return s.replyWithMessage(tgbotapi.MessageConfig{Text: formatReplyText(text, a...)})
}

func (s *ChatSession) sendTypingAction() {
	action := tgbotapi.NewChatAction(s.chatID, tgbotapi.ChatTyping)
	// sendChatAction returns a boolean, not a Message
	if _, err := s.sender.Request(action); err != nil {
		log.Debug().Err(err).Int64("chatID", s.chatID).Msg("failed to send typing action")
	}
}

// startTypingLoop keeps the typing indicator visible until ctx is done.
func (s *ChatSession) startTypingLoop(ctx context.Context) {
	s.sendTypingAction()

	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendTypingAction()
		}
	}
}

// --- Worker methods ---

// StartWorker starts the session's message processing goroutine.
func (s *ChatSession) StartWorker() {
	s.wg.Add(1)
	go s.runWorker()
}

func (s *ChatSession) runWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// Drain any remaining messages and signal completion
			for {
				select {
				case msg := <-s.inbox:
					if msg.Done != nil {
						close(msg.Done)
					}
				default:
					return
				}
			}
		case msg := <-s.inbox:
			s.processMessage(msg)
		}
	}
}

func (s *ChatSession) processMessage(msg SessionMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Int64("chatID", s.chatID).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		if msg.Done != nil {
			close(msg.Done)
		}
	}()

	if s.handler == nil {
		log.Error().Int64("chatID", s.chatID).Msg("session handler not set")
		return
	}

	s.handler.HandleSessionMessage(msg.Ctx, s, msg)
}

// Send queues a message for processing by the worker.
func (s *ChatSession) Send(msg SessionMessage) {
	select {
	case s.inbox <- msg:
	case <-s.ctx.Done():
		if msg.Done != nil {
			close(msg.Done)
		}
	}
}

// SendSync queues a message and waits until the worker has processed it.
func (s *ChatSession) SendSync(msg SessionMessage) {
	msg.Done = make(chan struct{})
	s.Send(msg)
	<-msg.Done
}

// Stop stops the worker and waits for it to finish.
func (s *ChatSession) Stop() {
	s.cancel()
	s.wg.Wait()
}

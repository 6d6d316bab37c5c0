package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"true-north/internal/logging"
	"true-north/internal/model"
	"true-north/internal/service"
	"true-north/internal/theme"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageEmail
	stagePassword
)

type authFlow int

const (
	flowLogin authFlow = iota
	flowSignup
)

type conversationState struct {
	stage conversationStage
	flow  authFlow
	email string
}

type confirmationRequest struct {
	userChallengeID string
}

// sender is the part of the Telegram API the bot talks to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services groups what the bot needs from the service layer.
type Services struct {
	Auth    *service.AuthService
	Catalog *service.CatalogService
	Daily   *service.DailyService
	Tracker *service.TrackerService
	Report  *service.ReportService
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           sender
	updates       func(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	stopUpdates   func()
	svc           Services
	theme         *theme.Settings
	now           func() time.Time
	log           *logrus.Entry
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, svc Services, settings *theme.Settings) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := newBot(api, svc, settings)
	b.updates = api.GetUpdatesChan
	b.stopUpdates = api.StopReceivingUpdates
	b.log.WithField("account", api.Self.UserName).Info("bot authorized")
	return b, nil
}

func newBot(api sender, svc Services, settings *theme.Settings) *Bot {
	return &Bot{
		api:           api,
		svc:           svc,
		theme:         settings,
		now:           time.Now,
		log:           logging.Component("bot"),
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.updates == nil {
		return errors.New("bot has no update source")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.updates(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.stopUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.WithError(err).Error("handle callback")
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.WithError(err).Error("handle message")
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	ctx = service.WithChat(ctx, msg.Chat.ID)

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled. Pick something from the menu.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.WithFields(logrus.Fields{"chat_id": msg.Chat.ID, "command": msg.Command()}).Info("command")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I didn't get that. Try /today for today's challenge or /help for all commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "signup":
		return b.startAuthConversation(msg, flowSignup)
	case "login":
		return b.startAuthConversation(msg, flowLogin)
	case "logout":
		return b.handleLogout(ctx, msg)
	case "today":
		return b.handleToday(ctx, msg.Chat.ID)
	case "challenges":
		return b.sendCatalog(ctx, msg.Chat.ID)
	case "my":
		return b.sendMyChallenges(ctx, msg.Chat.ID)
	case "progress":
		return b.handleProgress(ctx, msg.Chat.ID)
	case "theme":
		return b.handleTheme(msg)
	case "report":
		return b.handleReport(ctx, msg.Chat.ID)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "friend"
	}

	text := fmt.Sprintf(
		"%s Hi, %s!\n<b>True North Mentor gives you one challenge a day and keeps score.</b>\n\n"+
			"• /signup — create an account\n"+
			"• /login — sign in\n"+
			"• /today — today's challenge\n"+
			"• /challenges — browse all challenges\n"+
			"• /my — your accepted challenges\n"+
			"• /progress — how far you got\n"+
			"• /help — all commands",
		b.theme.Palette().Accent,
		escape(name),
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /signup — create an account (email and password)\n" +
		"• /login — sign in on this chat\n" +
		"• /logout — sign out\n" +
		"• /today — today's challenge, a new one each day\n" +
		"• /challenges — catalog grouped by category\n" +
		"• /my — accepted challenges, tap to complete\n" +
		"• /progress — completion progress\n" +
		"• /report — daily summary\n" +
		"• /theme — switch light/dark\n" +
		"• /cancel — cancel the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) startAuthConversation(msg *tgbotapi.Message, flow authFlow) error {
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageEmail, flow: flow})
	prompt := "🔑 Signing in.\n<b>Step 1:</b> what is your email?"
	if flow == flowSignup {
		prompt = "🆕 Creating an account.\n<b>Step 1:</b> what is your email?"
	}
	return b.sendWithReplyMarkup(msg.Chat.ID, prompt, cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageEmail:
		if !strings.Contains(text, "@") {
			return b.sendWithReplyMarkup(msg.Chat.ID, "That doesn't look like an email. Try again.", cancelKeyboard())
		}
		state.email = text
		state.stage = stagePassword
		return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Step 2:</b> your password (at least 6 characters). I'll delete the message right away.", cancelKeyboard())
	case stagePassword:
		b.clearConversation(msg.From.ID)
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
			b.log.WithError(err).Warn("delete password message")
		}
		return b.finishAuth(ctx, msg.Chat.ID, state, text)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Conversation reset. Start again with /login.")
	}
}

func (b *Bot) finishAuth(ctx context.Context, chatID int64, state *conversationState, password string) error {
	if state.flow == flowSignup {
		if _, err := b.svc.Auth.SignUp(ctx, state.email, password); err != nil {
			return b.sendError(chatID, err)
		}
	}

	if _, err := b.svc.Auth.SignIn(ctx, chatID, state.email, password); err != nil {
		return b.sendError(chatID, err)
	}

	greeting := "✅ Signed in."
	if state.flow == flowSignup {
		greeting = "✅ Account created and signed in."
	}
	return b.sendText(chatID, greeting+" Try /today or /challenges.")
}

func (b *Bot) handleLogout(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.svc.Auth.SignOut(ctx, msg.Chat.ID); err != nil {
		return b.sendError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, "👋 Signed out.")
}

func (b *Bot) handleToday(ctx context.Context, chatID int64) error {
	challenge, err := b.svc.Daily.SelectToday(ctx, strconv.FormatInt(chatID, 10), b.now())
	if err != nil {
		return b.sendError(chatID, err)
	}
	if challenge == nil {
		return b.sendText(chatID, "🏁 All challenges completed!")
	}

	text := "🎯 <b>Today's challenge</b>\n\n" + formatChallengeCard(*challenge, b.theme.Palette())
	return b.sendWithReplyMarkup(chatID, text, challengeCardKeyboard(challenge.ID))
}

func (b *Bot) handleProgress(ctx context.Context, chatID int64) error {
	userID, err := b.svc.Auth.CurrentUserID(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	entries, err := b.svc.Tracker.ListForUser(ctx, userID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	progress := service.Summarize(entries, b.now())
	return b.sendText(chatID, formatProgress(progress, b.theme.Palette()))
}

func (b *Bot) handleTheme(msg *tgbotapi.Message) error {
	mode := b.theme.Toggle()
	b.log.WithField("mode", mode).Info("theme toggled")
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s Theme switched to <b>%s</b>.", b.theme.Palette().Accent, mode))
}

func (b *Bot) handleReport(ctx context.Context, chatID int64) error {
	text, err := b.svc.Report.DailySummary(ctx, chatID, b.now())
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, text)
}

func (b *Bot) sendCatalog(ctx context.Context, chatID int64) error {
	challenges, err := b.svc.Catalog.ListAll(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	groups := service.GroupByCategory(challenges)
	if len(groups) == 0 {
		return b.sendText(chatID, "The catalog is empty for now. Check back later.")
	}

	text, markup := catalogMessage(groups, b.theme.Palette())
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) sendMyChallenges(ctx context.Context, chatID int64) error {
	userID, err := b.svc.Auth.CurrentUserID(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	entries, err := b.svc.Tracker.ListForUser(ctx, userID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if len(entries) == 0 {
		return b.sendText(chatID, "You haven't accepted any challenges yet. Browse /challenges.")
	}

	text, markup := checklistMessage(entries, b.theme.Palette(), b.now())
	if len(markup.InlineKeyboard) == 0 {
		return b.sendText(chatID, text+"\n\n🏆 Everything on your list is done. Find more in /challenges.")
	}
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	chatID := cb.Message.Chat.ID
	ctx = service.WithChat(ctx, chatID)

	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.WithError(err).Warn("callback ack")
	}

	action, arg := parseCallback(cb.Data)
	b.log.WithFields(logrus.Fields{"chat_id": chatID, "action": action, "arg": arg}).Info("callback")

	switch action {
	case cbView:
		return b.showChallenge(ctx, chatID, arg)
	case cbAccept:
		return b.acceptChallenge(ctx, chatID, arg)
	case cbComplete:
		return b.askCompleteConfirmation(ctx, chatID, cb.From.ID, arg)
	case cbClose:
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, cb.Message.MessageID)); err != nil {
			b.log.WithError(err).Warn("close card")
		}
		return nil
	default:
		return nil
	}
}

func (b *Bot) showChallenge(ctx context.Context, chatID int64, challengeID string) error {
	challenge, err := b.svc.Catalog.Get(ctx, challengeID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendWithReplyMarkup(chatID, formatChallengeCard(*challenge, b.theme.Palette()), challengeCardKeyboard(challenge.ID))
}

func (b *Bot) acceptChallenge(ctx context.Context, chatID int64, challengeID string) error {
	userID, err := b.svc.Auth.CurrentUserID(ctx)
	if err != nil {
		return b.sendError(chatID, err)
	}
	uc, err := b.svc.Tracker.AcceptChallenge(ctx, userID, challengeID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	return b.sendText(chatID, fmt.Sprintf("➕ «%s» added to your challenges. See /my.", escape(normalizeTitle(uc.Challenge.Title))))
}

func (b *Bot) askCompleteConfirmation(ctx context.Context, chatID, fromID int64, userChallengeID string) error {
	entry, err := b.findOwnEntry(ctx, userChallengeID)
	if err != nil {
		return b.sendError(chatID, err)
	}
	if entry.CompletedAt != nil {
		return b.sendText(chatID, "This challenge is already completed.")
	}

	b.setConfirmation(fromID, confirmationRequest{userChallengeID: entry.ID})
	text := fmt.Sprintf("Mark «%s» as completed?", escape(normalizeTitle(entry.Challenge.Title)))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.completeAndRefresh(ctx, msg.Chat.ID, req.userChallengeID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "🔹 Main menu")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel completing the challenge.", confirmKeyboard())
	}
}

func (b *Bot) completeAndRefresh(ctx context.Context, chatID int64, userChallengeID string) error {
	entry, err := b.findOwnEntry(ctx, userChallengeID)
	if err != nil {
		return b.sendError(chatID, err)
	}

	done, err := b.svc.Tracker.CompleteChallenge(ctx, entry.ID)
	if err != nil {
		return b.sendError(chatID, err)
	}

	if err := b.sendText(chatID, fmt.Sprintf("%s «%s» completed.", b.theme.Palette().Done, escape(normalizeTitle(done.Challenge.Title)))); err != nil {
		return err
	}
	return b.sendMyChallenges(ctx, chatID)
}

// findOwnEntry returns the accepted challenge only if it belongs to the signed-in user.
func (b *Bot) findOwnEntry(ctx context.Context, userChallengeID string) (*model.UserChallenge, error) {
	userID, err := b.svc.Auth.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := b.svc.Tracker.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == userChallengeID {
			return &entries[i], nil
		}
	}
	return nil, service.ErrNotFound
}

// SendDailyChallenges pushes the daily summary to every signed-in chat.
func (b *Bot) SendDailyChallenges(ctx context.Context) error {
	chats, err := b.svc.Auth.ActiveChats(ctx)
	if err != nil {
		return err
	}
	now := b.now()
	for _, chatID := range chats {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.svc.Report.DailySummary(ctx, chatID, now)
		if err != nil {
			b.log.WithError(err).WithField("chat_id", chatID).Error("build daily summary")
			continue
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.WithError(err).WithField("chat_id", chatID).Error("send daily summary")
		}
	}
	return nil
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelToday):
		return true, b.handleToday(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelChallenges):
		return true, b.sendCatalog(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelMy):
		return true, b.sendMyChallenges(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelProgress):
		return true, b.handleProgress(ctx, msg.Chat.ID)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// sendError tells the user what went wrong. Nothing is retried.
func (b *Bot) sendError(chatID int64, err error) error {
	b.log.WithError(err).WithField("chat_id", chatID).Warn("request failed")
	return b.sendText(chatID, userMessage(err))
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNotAuthenticated):
		return "🔒 Please sign in with /login (or create an account with /signup) first."
	case errors.Is(err, service.ErrAlreadyAccepted):
		return "This challenge is already in your list. See /my."
	case errors.Is(err, service.ErrNotFound):
		return "Not found. It may have been removed."
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Wrong email or password. Try /login again."
	case errors.Is(err, service.ErrEmailTaken):
		return "That email is already registered. Use /login instead."
	case errors.Is(err, service.ErrInvalidInput):
		return "Please use a valid email and a password of at least 6 characters."
	case errors.Is(err, service.ErrFetchFailed):
		return "⚠️ Couldn't load data right now. Please try again later."
	case errors.Is(err, service.ErrWriteFailed):
		return "⚠️ Couldn't save your change. Please try again later."
	default:
		return "⚠️ Something went wrong. Please try again later."
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

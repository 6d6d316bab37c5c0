package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbView     = "view"
	cbAccept   = "accept"
	cbComplete = "complete"
	cbClose    = "close"
)

const (
	btnConfirm          = "✅ Confirm"
	btnCancel           = "↩️ Cancel"
	btnCancelDialog     = "⏪ Stop input"
	menuLabelToday      = "🎯 Today"
	menuLabelChallenges = "🗂 Challenges"
	menuLabelMy         = "📋 My challenges"
	menuLabelProgress   = "📈 Progress"
	menuLabelHelp       = "ℹ️ Help"
)

func callbackData(action, arg string) string {
	return action + ":" + arg
}

// parseCallback splits "action:arg". Unknown shapes yield an empty action.
func parseCallback(data string) (string, string) {
	action, arg, ok := strings.Cut(data, ":")
	if !ok {
		return "", ""
	}
	return action, arg
}

func challengeCardKeyboard(challengeID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add to my challenges", callbackData(cbAccept, challengeID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ Close", callbackData(cbClose, "")),
		),
	)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelChallenges),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelMy),
			tgbotapi.NewKeyboardButton(menuLabelProgress),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop"
}

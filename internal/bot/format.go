package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"true-north/internal/model"
	"true-north/internal/service"
	"true-north/internal/theme"
)

const progressBarWidth = 12

func catalogMessage(groups []service.CategoryGroup, palette theme.Palette) (string, tgbotapi.InlineKeyboardMarkup) {
	var builder strings.Builder
	builder.WriteString("🗂 <b>Challenges</b>\n")
	builder.WriteString("Tap a challenge to see details and add it to your list.\n\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, group := range groups {
		builder.WriteString(fmt.Sprintf("%s <b>%s</b>\n", palette.CategoryTag, escape(categoryName(group.Category))))
		for _, ch := range group.Challenges {
			builder.WriteString(fmt.Sprintf("   • %s\n", escape(normalizeTitle(ch.Title))))
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(shortTitle(ch.Title, 32), callbackData(cbView, ch.ID)),
			))
		}
		builder.WriteByte('\n')
	}
	return strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func checklistMessage(entries []model.UserChallenge, palette theme.Palette, now time.Time) (string, tgbotapi.InlineKeyboardMarkup) {
	progress := service.Summarize(entries, now)

	var builder strings.Builder
	builder.WriteString("📋 <b>My challenges</b>\n")
	builder.WriteString(formatProgress(progress, palette))
	builder.WriteString("\n\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, entry := range entries {
		title := escape(normalizeTitle(entry.Challenge.Title))
		if entry.CompletedBy(now) {
			builder.WriteString(fmt.Sprintf("%s <s>%s</s>\n", palette.Done, title))
			continue
		}
		builder.WriteString(fmt.Sprintf("%s %s", palette.Open, title))
		if cat := strings.TrimSpace(entry.Challenge.Category); cat != "" {
			builder.WriteString(fmt.Sprintf(" <i>(%s)</i>", escape(cat)))
		}
		builder.WriteByte('\n')
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s", palette.Done, shortTitle(entry.Challenge.Title, 28)), callbackData(cbComplete, entry.ID)),
		))
	}

	return strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatChallengeCard(ch model.Challenge, palette theme.Palette) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b>\n", escape(normalizeTitle(ch.Title))))
	if desc := strings.TrimSpace(ch.Description); desc != "" {
		b.WriteString(fmt.Sprintf("%s\n", escape(desc)))
	}
	b.WriteString(fmt.Sprintf("\n%s <i>Category: %s</i>", palette.CategoryTag, escape(categoryName(ch.Category))))
	return b.String()
}

func formatProgress(p service.Progress, palette theme.Palette) string {
	return fmt.Sprintf("%s\n%d%% complete · %d of %d", palette.ProgressBar(p.Ratio, progressBarWidth), p.Percent(), p.Completed, p.Total)
}

func categoryName(category string) string {
	if trimmed := strings.TrimSpace(category); trimmed != "" {
		return trimmed
	}
	return "Other"
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}

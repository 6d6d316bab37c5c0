package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"true-north/internal/model"
	"true-north/internal/theme"
)

const progressBarWidth = 10

// ReportService builds the daily summary pushed to chats and shown by /report.
type ReportService struct {
	daily   *DailyService
	auth    *AuthService
	tracker *TrackerService
	theme   *theme.Settings
}

func NewReportService(daily *DailyService, auth *AuthService, tracker *TrackerService, settings *theme.Settings) *ReportService {
	return &ReportService{daily: daily, auth: auth, tracker: tracker, theme: settings}
}

// DailySummary renders today's challenge and, for signed-in chats, progress and
// the accepted checklist. The daily pick is made if the chat has none yet.
func (s *ReportService) DailySummary(ctx context.Context, chatID int64, now time.Time) (string, error) {
	palette := s.theme.Palette()
	ctx = WithChat(ctx, chatID)

	challenge, err := s.daily.SelectToday(ctx, strconv.FormatInt(chatID, 10), now)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s <b>True North Mentor</b>\n", palette.Accent))
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", s.daily.DayKey(now)))

	builder.WriteString("🎯 <b>Today's challenge</b>\n")
	if challenge == nil {
		builder.WriteString("All challenges completed!\n")
	} else {
		builder.WriteString(formatDailyChallenge(*challenge, palette))
	}

	userID, err := s.auth.CurrentUserID(ctx)
	if errors.Is(err, ErrNotAuthenticated) {
		builder.WriteString("\nSign in with /login to track your progress.")
		return strings.TrimSpace(builder.String()), nil
	}
	if err != nil {
		return "", err
	}

	entries, err := s.tracker.ListForUser(ctx, userID)
	if err != nil {
		return "", err
	}
	progress := Summarize(entries, now)

	builder.WriteString("\n📈 <b>Your progress</b>\n")
	builder.WriteString(fmt.Sprintf("%s %d%% complete (%d/%d)\n",
		palette.ProgressBar(progress.Ratio, progressBarWidth), progress.Percent(), progress.Completed, progress.Total))

	if len(entries) == 0 {
		builder.WriteString("— no accepted challenges yet, browse /challenges\n")
	} else {
		builder.WriteString("\n📋 <b>My challenges</b>\n")
		for _, entry := range entries {
			builder.WriteString(formatChecklistEntry(entry, palette, now, s.daily.loc))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatDailyChallenge(ch model.Challenge, palette theme.Palette) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(strings.TrimSpace(ch.Title))))
	if desc := strings.TrimSpace(ch.Description); desc != "" {
		sb.WriteString(fmt.Sprintf("   📝 %s\n", html.EscapeString(desc)))
	}
	if cat := strings.TrimSpace(ch.Category); cat != "" {
		sb.WriteString(fmt.Sprintf("   %s <i>%s</i>\n", palette.CategoryTag, html.EscapeString(cat)))
	}
	return sb.String()
}

func formatChecklistEntry(entry model.UserChallenge, palette theme.Palette, now time.Time, loc *time.Location) string {
	icon := palette.Open
	if entry.CompletedBy(now) {
		icon = palette.Done
	}
	line := fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(entry.Challenge.Title)))
	if entry.CompletedAt != nil {
		line += fmt.Sprintf(" <i>(%s)</i>", entry.CompletedAt.In(loc).Format("2006-01-02"))
	}
	return line + "\n"
}

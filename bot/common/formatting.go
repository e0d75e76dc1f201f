package common

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"jukebox/models"
)

// FormatDuration renders m:ss, or h:mm:ss for anything an hour or longer
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatTrackLength is FormatDuration with a LIVE marker for streams
func FormatTrackLength(t models.Track) string {
	if t.Info.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration())
}

// FormatTrackLink renders a track as a markdown link when it has a URI
func FormatTrackLink(t models.Track) string {
	name := EscapeMarkdown(Truncate(t.DisplayName(), 80))
	if t.Info.URI == "" {
		return name
	}
	return fmt.Sprintf("[%s](%s)", name, t.Info.URI)
}

// ProgressBar draws a text bar of width cells for position within length
func ProgressBar(position, length time.Duration, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if length > 0 {
		filled = int(float64(width) * float64(position) / float64(length))
	}
	filled = max(0, min(filled, width-1))
	return strings.Repeat("▬", filled) + "🔘" + strings.Repeat("▬", width-filled-1)
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	"[", `\[`,
	"]", `\]`,
)

// EscapeMarkdown escapes characters Discord would treat as formatting
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// FormatDiscordTimestamp formats a time as a Discord timestamp that displays in user's local timezone
// Format types: "t" = short time, "T" = long time, "d" = short date, "D" = long date,
// "f" = short date/time, "F" = long date/time, "R" = relative time
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

package telegram

import (
	"fmt"
	"strings"

	"github.com/macks-labs/coinscreen/internal/criteria"
	"github.com/macks-labs/coinscreen/internal/models"
)

// FormatMatches renders matching assets into a MarkdownV2 message,
// showing at most maxRows rows. The total below the list stays exact
// even when rows are cut, so truncation never hides the match count.
func FormatMatches(matches []models.AssetQuote, maxRows int) string {
	var b strings.Builder
	b.WriteString("📊 *Matching assets*\n\n")

	shown := matches
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for i, q := range shown {
		b.WriteString(fmt.Sprintf("%d\\. *%s* \\(%s\\)\n",
			i+1, escapeMarkdownV2(q.Symbol), escapeMarkdownV2(q.Name)))
		b.WriteString(fmt.Sprintf("    %s  ·  mcap %s  ·  24h %s  ·  7d %s\n",
			escapeMarkdownV2(formatMoney(q.Price)),
			escapeMarkdownV2(formatMoney(q.MarketCap)),
			escapeMarkdownV2(formatPct(q.PercentChange24h)),
			escapeMarkdownV2(formatPct(q.PercentChange7d))))
	}

	if len(matches) > len(shown) {
		b.WriteString(escapeMarkdownV2(fmt.Sprintf("\n…and %d more", len(matches)-len(shown))))
		b.WriteString("\n")
	}
	b.WriteString(escapeMarkdownV2(fmt.Sprintf("\nTotal matches: %d", len(matches))))
	return b.String()
}

// FormatCriteria renders a criteria snapshot in the stable table order.
func FormatCriteria(snap criteria.Snapshot) string {
	var b strings.Builder
	b.WriteString("⚙️ *Current filters*\n\n")
	for _, def := range criteria.Definitions() {
		value, ok := snap[def.Key]
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("`%s`: %s\n",
			escapeMarkdownV2(def.Key),
			escapeMarkdownV2(criteria.FormatValue(def, value))))
	}
	return b.String()
}

// FormatDelta renders the before/after report of a criterion edit.
func FormatDelta(res models.EditResult) string {
	def, ok := criteria.Lookup(res.Key)
	if !ok {
		return escapeMarkdownV2(fmt.Sprintf("%s updated", res.Key))
	}
	return fmt.Sprintf("✅ `%s`: %s → %s",
		escapeMarkdownV2(res.Key),
		escapeMarkdownV2(criteria.FormatValue(def, res.OldValue)),
		escapeMarkdownV2(criteria.FormatValue(def, res.NewValue)))
}

// FormatSetUsage renders the /set help with the available keys.
func FormatSetUsage() string {
	var b strings.Builder
	b.WriteString(escapeMarkdownV2("Usage: /set <key> <value> or /set <key>\n\nAvailable filters:\n"))
	for _, def := range criteria.Definitions() {
		b.WriteString(fmt.Sprintf("`%s` \\(default %s\\)\n",
			escapeMarkdownV2(def.Key),
			escapeMarkdownV2(criteria.FormatValue(def, def.Default))))
	}
	return b.String()
}

// formatMoney renders a dollar amount compactly.
func formatMoney(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("$%.1fK", v/1e3)
	default:
		return fmt.Sprintf("$%.4f", v)
	}
}

// formatPct renders a signed percentage.
func formatPct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

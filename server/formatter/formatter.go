package formatter

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattermost/mattermost/server/public/model"
)

// Bundle colors
const (
	ColorBundle      = "#1E88E5" // Blue 🔵
	ColorEmptyBundle = "#808080" // Gray ⚪
)

// BundleSummary describes an exported diagnostics archive.
type BundleSummary struct {
	FileName  string
	SizeBytes int64
	Entries   int
	AccountID string
	CreatedAt time.Time
}

// FormatBundle converts a BundleSummary into a Mattermost SlackAttachment that
// accompanies the uploaded archive.
func FormatBundle(summary BundleSummary) *model.SlackAttachment {
	attachment := &model.SlackAttachment{
		Text:  "#### Diagnostic logs exported",
		Color: getBundleColor(summary.Entries),
	}

	// Size + Entries (side by side)
	attachment.Fields = []*model.SlackAttachmentField{
		{
			Title: "Archive",
			Value: summary.FileName,
			Short: true,
		},
		{
			Title: "Size",
			Value: formatSize(summary.SizeBytes),
			Short: true,
		},
		{
			Title: "Entries",
			Value: humanize.Comma(int64(summary.Entries)),
			Short: true,
		},
		{
			Title: "Created",
			Value: formatTime(summary.CreatedAt),
			Short: true,
		},
	}

	if summary.Entries == 0 {
		attachment.Fields = append(attachment.Fields, &model.SlackAttachmentField{
			Title: "Note",
			Value: "The diagnostics directory was empty.",
			Short: false,
		})
	}

	attachment.Footer = formatFooter(summary.AccountID)

	return attachment
}

func getBundleColor(entries int) string {
	if entries == 0 {
		return ColorEmptyBundle
	}
	return ColorBundle
}

// formatSize renders a byte count in SI units, e.g. "8.4 MB"
func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// formatTime formats a time.Time to a readable string
func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05 MST")
}

func formatFooter(accountID string) string {
	if accountID == "" {
		return "Tunnel | no account configured"
	}
	return fmt.Sprintf("Tunnel | %s", accountID)
}

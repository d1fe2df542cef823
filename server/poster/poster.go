package poster

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"

	"github.com/mattermost/mattermost-plugin-tunnel/server/formatter"
)

// BundlePoster delivers exported diagnostics archives to users as a direct
// message from the bot.
// This struct is stateless - it only holds immutable configuration (API and botID).
type BundlePoster struct {
	api   plugin.API
	botID string
	now   func() time.Time
}

// New creates a new BundlePoster instance.
func New(api plugin.API, botID string) *BundlePoster {
	return &BundlePoster{
		api:   api,
		botID: botID,
		now:   time.Now,
	}
}

// PostBundle uploads the archive at path into the DM channel between the bot
// and userID, then posts it with a summary attachment.
//
// Parameters:
//   - userID: The recipient of the archive
//   - accountID: The account shown in the attachment footer, may be empty
//   - path: A complete, closed zip archive
//
// Returns an error if the archive cannot be read or any API call fails.
func (p *BundlePoster) PostBundle(ctx context.Context, userID, accountID, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	summary, err := p.summarize(path)
	if err != nil {
		return err
	}
	summary.AccountID = accountID

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	channel, appErr := p.api.GetDirectChannel(userID, p.botID)
	if appErr != nil {
		return fmt.Errorf("failed to open direct channel: %w", appErr)
	}

	// The upload is the slow part; don't start it for a session that went away.
	if err := ctx.Err(); err != nil {
		return err
	}

	fileInfo, appErr := p.api.UploadFile(data, channel.Id, summary.FileName)
	if appErr != nil {
		return fmt.Errorf("failed to upload bundle: %w", appErr)
	}

	post := &model.Post{
		UserId:    p.botID,
		ChannelId: channel.Id,
		Type:      model.PostTypeSlackAttachment,
		Props:     model.StringInterface{},
		FileIds:   model.StringArray{fileInfo.Id},
	}

	model.ParseSlackAttachment(post, []*model.SlackAttachment{formatter.FormatBundle(summary)})

	if _, appErr := p.api.CreatePost(post); appErr != nil {
		return fmt.Errorf("failed to post bundle: %w", appErr)
	}
	return nil
}

// summarize reads the archive's central directory, which also rejects an
// archive that was never finalized.
func (p *BundlePoster) summarize(path string) (formatter.BundleSummary, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return formatter.BundleSummary{}, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer zr.Close()

	info, err := os.Stat(path)
	if err != nil {
		return formatter.BundleSummary{}, fmt.Errorf("failed to stat bundle: %w", err)
	}

	created := p.now().UTC()
	return formatter.BundleSummary{
		FileName:  fmt.Sprintf("diagnostics-%s.zip", created.Format("20060102-150405")),
		SizeBytes: info.Size(),
		Entries:   len(zr.File),
		CreatedAt: created,
	}, nil
}

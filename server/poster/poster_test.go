package poster

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	botID     = "bot-user-id"
	userID    = "user-id"
	channelID = "dm-channel-id"
)

var fixedNow = time.Date(2026, 10, 18, 14, 30, 0, 0, time.UTC)

// writeArchive creates a finalized zip archive with the named entries. Names
// ending in "/" are directory entries and carry no data.
func writeArchive(t *testing.T, names ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "log.zip")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if strings.HasSuffix(name, "/") {
			continue
		}
		_, err = w.Write([]byte("line\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	return path
}

func newTestPoster(api *plugintest.API) *BundlePoster {
	p := New(api, botID)
	p.now = func() time.Time { return fixedNow }
	return p
}

func TestPostBundle_Success(t *testing.T) {
	api := &plugintest.API{}
	defer api.AssertExpectations(t)

	path := writeArchive(t, "connlib/", "connlib/tunnel.log", "app.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	api.On("GetDirectChannel", userID, botID).Return(&model.Channel{Id: channelID}, nil).Once()
	api.On("UploadFile", data, channelID, "diagnostics-20261018-143000.zip").
		Return(&model.FileInfo{Id: "file-id"}, nil).Once()

	api.On("CreatePost", mock.MatchedBy(func(post *model.Post) bool {
		assert.Equal(t, botID, post.UserId, "Post should use bot user ID")
		assert.Equal(t, channelID, post.ChannelId, "Post should target the DM channel")
		assert.Equal(t, model.PostTypeSlackAttachment, post.Type)
		assert.Equal(t, model.StringArray{"file-id"}, post.FileIds, "Post should reference the uploaded file")

		attachments, ok := post.Props["attachments"].([]*model.SlackAttachment)
		require.True(t, ok, "Post props should contain attachments")
		require.Len(t, attachments, 1)
		assert.Equal(t, "Tunnel | acme", attachments[0].Footer)
		assert.Equal(t, "3", attachments[0].Fields[2].Value)

		return true
	})).Return(&model.Post{Id: "post-id"}, nil).Once()

	err = newTestPoster(api).PostBundle(context.Background(), userID, "acme", path)
	require.NoError(t, err)
}

func TestPostBundle_DirectChannelError(t *testing.T) {
	api := &plugintest.API{}
	defer api.AssertExpectations(t)

	path := writeArchive(t, "a.log")

	appErr := model.NewAppError("GetDirectChannel", "app.channel.create_direct_channel.internal_error", nil, "", 500)
	api.On("GetDirectChannel", userID, botID).Return(nil, appErr).Once()

	err := newTestPoster(api).PostBundle(context.Background(), userID, "acme", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErr)
	api.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostBundle_UploadError(t *testing.T) {
	api := &plugintest.API{}
	defer api.AssertExpectations(t)

	path := writeArchive(t, "a.log")

	appErr := model.NewAppError("UploadFile", "app.file.upload.too_large", nil, "", 413)
	api.On("GetDirectChannel", userID, botID).Return(&model.Channel{Id: channelID}, nil).Once()
	api.On("UploadFile", mock.Anything, channelID, mock.Anything).Return(nil, appErr).Once()

	err := newTestPoster(api).PostBundle(context.Background(), userID, "", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErr)
	api.AssertNotCalled(t, "CreatePost", mock.Anything)
}

func TestPostBundle_CreatePostError(t *testing.T) {
	api := &plugintest.API{}
	defer api.AssertExpectations(t)

	path := writeArchive(t)

	appErr := model.NewAppError("CreatePost", "app.post.create.error", nil, "", 500)
	api.On("GetDirectChannel", userID, botID).Return(&model.Channel{Id: channelID}, nil).Once()
	api.On("UploadFile", mock.Anything, channelID, mock.Anything).Return(&model.FileInfo{Id: "file-id"}, nil).Once()
	api.On("CreatePost", mock.Anything).Return(nil, appErr).Once()

	err := newTestPoster(api).PostBundle(context.Background(), userID, "acme", path)
	assert.ErrorIs(t, err, appErr)
}

func TestPostBundle_UnfinishedArchive(t *testing.T) {
	api := &plugintest.API{}
	defer api.AssertExpectations(t)

	// A zip whose central directory was never written.
	path := filepath.Join(t.TempDir(), "log.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04partial"), 0o600))

	err := newTestPoster(api).PostBundle(context.Background(), userID, "acme", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open bundle")
}

func TestPostBundle_CanceledContext(t *testing.T) {
	api := &plugintest.API{}
	defer api.AssertExpectations(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestPoster(api).PostBundle(ctx, userID, "acme", writeArchive(t, "a.log"))
	assert.ErrorIs(t, err, context.Canceled)
}

package di

import (
	"testing"

	chatService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/service"
	pollService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/service"
	settingsService "github.com/reshetovitsme/booru-telegram-feed/internal/modules/settings/service"
	httpServer "github.com/reshetovitsme/booru-telegram-feed/internal/transport/http"
	telegramHandler "github.com/reshetovitsme/booru-telegram-feed/internal/transport/telegram"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWiresServices(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:token")
	t.Setenv("STORAGE_PATH", t.TempDir())
	t.Setenv("CHAT_IDS", "-100")

	injector, err := Setup()
	require.NoError(t, err)

	_, err = do.Invoke[*telegramHandler.Handler](injector)
	require.NoError(t, err)
	_, err = do.Invoke[*httpServer.Server](injector)
	require.NoError(t, err)
	_, err = do.Invoke[*settingsService.Machine](injector)
	require.NoError(t, err)

	scheduler, err := do.Invoke[*pollService.Scheduler](injector)
	require.NoError(t, err)
	assert.False(t, scheduler.Running())

	chats, err := do.Invoke[*chatService.Service](injector)
	require.NoError(t, err)
	subscribers, err := chats.Subscribers()
	require.NoError(t, err)
	require.Len(t, subscribers, 1)
	assert.Equal(t, int64(-100), subscribers[0].ChatID)

	assert.NoError(t, Shutdown(injector))
}

func TestSetupFailsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	injector, err := Setup()
	require.NoError(t, err)

	_, err = do.Invoke[*telegramHandler.Handler](injector)
	assert.Error(t, err)
}

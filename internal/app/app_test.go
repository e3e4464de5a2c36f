package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/classifier"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/process"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/shutdown"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/testutils"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestMain(m *testing.M) {
	logutils.InitLogger("error")
	os.Exit(m.Run())
}

// scriptYoutube makes yt-dlp write one source file and report it, and ffmpeg write its output.
func scriptYoutube(exec *process.MockExecutor) {
	exec.SetHandler("yt-dlp", func(args []string) (process.Output, error) {
		var tmpl string
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				tmpl = args[i+1]
			}
		}
		src := strings.NewReplacer("%(playlist_index|0)s", "0", "%(id)s", "dQw4w9WgXcQ", "%(ext)s", "webm").Replace(tmpl)
		if err := os.WriteFile(src, []byte("source"), 0o600); err != nil {
			return process.Output{}, err
		}
		line := strings.Join([]string{"TMB", src, "Rick Astley", "Never Gonna Give You Up", "NA", "0", "NA"}, "\t")
		return process.Output{Stdout: []byte("[download]  100.0%\n" + line + "\n")}, nil
	})
	exec.SetHandler("ffmpeg", func(args []string) (process.Output, error) {
		return process.Output{}, os.WriteFile(args[len(args)-1], []byte("mp3 data"), 0o600)
	})
}

func newTestApp(t *testing.T) (*App, *testutils.MockBot, *process.MockExecutor) {
	t.Helper()
	cfg := testutils.TestConfig(t.TempDir())
	mockBot := &testutils.MockBot{}
	exec := process.NewMockExecutor()
	a, err := Assemble(cfg, mockBot, exec)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Downloads.Shutdown(context.Background()) })
	return a, mockBot, exec
}

func TestAssembleRegistersEveryPlatform(t *testing.T) {
	registry := NewRegistry(testutils.TestConfig(t.TempDir()), process.NewMockExecutor())
	for _, p := range []classifier.Platform{classifier.YouTube, classifier.Spotify, classifier.AppleMusic, classifier.SoundCloud} {
		if _, err := registry.Lookup(p); err != nil {
			t.Errorf("Lookup(%s) error = %v", p, err)
		}
	}
	if _, err := registry.Lookup(classifier.Unknown); !errors.Is(err, utils.ErrUnrecognizedURL) {
		t.Errorf("Lookup(unknown) error = %v, want ErrUnrecognizedURL", err)
	}
}

func TestYouTubeLinkEndToEnd(t *testing.T) {
	a, mockBot, exec := newTestApp(t)
	scriptYoutube(exec)

	update := tgbotapi.Update{Message: testutils.TextMessage(1, 10, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")}
	a.Handler.HandleUpdateSync(context.Background(), update)

	files := mockBot.Files()
	if len(files) != 1 {
		t.Fatalf("sent %d files, want 1 (messages: %+v)", len(files), mockBot.Messages())
	}
	f := files[0]
	if !f.Audio || f.Name != "Rick Astley - Never Gonna Give You Up.mp3" {
		t.Errorf("sent file = %+v", f)
	}
	if f.Performer != "Rick Astley" || f.Title != "Never Gonna Give You Up" {
		t.Errorf("performer/title = %q/%q", f.Performer, f.Title)
	}
	if string(f.Data) != "mp3 data" {
		t.Errorf("data = %q", f.Data)
	}
	if !utils.IsEmptyDirectory(a.Workspaces.Root()) {
		t.Error("workspace not cleaned up")
	}
}

type fakePoller struct {
	updates     chan tgbotapi.Update
	dropPending bool
	deleteErr   error
	stopped     bool
}

func (p *fakePoller) DeleteWebhook(dropPending bool) error {
	p.dropPending = dropPending
	return p.deleteErr
}

func (p *fakePoller) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return p.updates
}

func (p *fakePoller) StopReceivingUpdates() { p.stopped = true }

func TestRunPollingDispatchesUntilChannelCloses(t *testing.T) {
	a, mockBot, exec := newTestApp(t)
	poller := &fakePoller{updates: make(chan tgbotapi.Update, 2)}
	poller.updates <- tgbotapi.Update{Message: testutils.TextMessage(5, 1, "/start")}
	poller.updates <- tgbotapi.Update{Message: testutils.TextMessage(5, 2, "not a url")}
	close(poller.updates)

	if err := a.RunPolling(context.Background(), poller); err != nil {
		t.Fatalf("RunPolling() error = %v", err)
	}
	if !poller.dropPending {
		t.Error("webhook must be deleted with pending updates dropped")
	}
	if !poller.stopped {
		t.Error("polling not stopped")
	}
	msgs := mockBot.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(msgs), msgs)
	}
	if !strings.Contains(msgs[1].Text, "link") {
		t.Errorf("second reply = %q, want unrecognized link", msgs[1].Text)
	}
	if calls := exec.GetCommands(); len(calls) != 0 {
		t.Errorf("no tool should run for a command or a non-link, got %+v", calls)
	}
}

func TestRunPollingStopsOnContext(t *testing.T) {
	a, _, _ := newTestApp(t)
	poller := &fakePoller{updates: make(chan tgbotapi.Update)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.RunPolling(ctx, poller); err != nil {
		t.Fatalf("RunPolling() error = %v", err)
	}
}

func TestRunPollingDeleteWebhookError(t *testing.T) {
	a, _, _ := newTestApp(t)
	boom := errors.New("boom")
	poller := &fakePoller{updates: make(chan tgbotapi.Update), deleteErr: boom}
	if err := a.RunPolling(context.Background(), poller); !errors.Is(err, boom) {
		t.Errorf("RunPolling() error = %v, want boom", err)
	}
}

func TestBotCommandsAreTranslated(t *testing.T) {
	newTestApp(t)
	commands := BotCommands()
	if len(commands) != 4 {
		t.Fatalf("got %d commands, want 4", len(commands))
	}
	for _, c := range commands {
		if c.Description == "" || c.Description == "commands."+c.Command {
			t.Errorf("command %q has no translation: %q", c.Command, c.Description)
		}
	}
}

type commandBot struct {
	testutils.MockBot
	set []tgbotapi.BotCommand
}

func (c *commandBot) SetCommands(commands []tgbotapi.BotCommand) error {
	c.set = commands
	return nil
}

func TestRegisterCommands(t *testing.T) {
	a, _, _ := newTestApp(t)
	b := &commandBot{}
	a.Bot = b
	a.RegisterCommands()
	if len(b.set) != 4 || b.set[0].Command != "start" {
		t.Errorf("registered commands = %+v", b.set)
	}
}

func TestStartBackgroundSweepsLeftovers(t *testing.T) {
	a, _, _ := newTestApp(t)
	stale := filepath.Join(a.Workspaces.Root(), "req-left-over")
	if err := os.Mkdir(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * a.Config.CleanupSettings.MaxAge)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.StartBackground(ctx)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale workspace still present, stat err = %v", err)
	}
}

func TestRegisterShutdownClosesDownloadsFirst(t *testing.T) {
	a, _, _ := newTestApp(t)
	m := shutdown.NewManager(time.Second)
	a.RegisterShutdown(m)
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := a.Downloads.Submit("late", func(context.Context) {}); err == nil {
		t.Error("download manager accepted work after shutdown")
	}
}

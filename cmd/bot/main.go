// The bot binary is a Telegram front-end over the same pipeline the HTTP API
// uses: send a photo or a typed problem, get a solution back.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"taskmate/internal/config"
	"taskmate/internal/extract"
	"taskmate/internal/extract/yandex"
	"taskmate/internal/llm"
	"taskmate/internal/llm/anthropic"
	"taskmate/internal/llm/gemini"
	"taskmate/internal/llm/openai"
	"taskmate/internal/solve"
	"taskmate/internal/store"
)

// providerManager remembers a per-chat provider choice.
type providerManager struct {
	def llm.Provider
	m   sync.Map // chatID -> llm.Provider
}

func (p *providerManager) Get(chatID int64) llm.Provider {
	if v, ok := p.m.Load(chatID); ok {
		return v.(llm.Provider)
	}
	return p.def
}

func (p *providerManager) Set(chatID int64, prov llm.Provider) { p.m.Store(chatID, prov) }

type bot struct {
	api       *tgbotapi.BotAPI
	svc       *solve.Service
	providers *providerManager
	httpc     *http.Client
}

func main() {
	cfg := config.Load()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.TelegramBotToken == "" {
		logrus.Fatal("missing required env TELEGRAM_BOT_TOKEN")
	}

	var st store.AssignmentStore
	var usage solve.UsageRecorder
	if cfg.StoreBackend == "file" {
		fs, err := store.NewFileStore(cfg.StoreFile)
		if err != nil {
			logrus.Fatalf("file store: %v", err)
		}
		st = fs
	} else {
		db, err := store.OpenPostgres(context.Background(), cfg.MustDatabaseURL())
		if err != nil {
			logrus.Fatalf("postgres: %v", err)
		}
		st = store.NewPostgresStore(db)
		usage = store.NewUsageRepo(db)
	}
	defer st.Close()

	extractor := extract.New(yandex.New(cfg.YCOAuthToken, cfg.YCFolderID))
	dispatcher := llm.NewDispatcher(
		openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.MaxOutputToken),
		anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxOutputToken),
		gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxOutputToken),
	)
	svc := solve.New(extractor, dispatcher, st, usage)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logrus.Fatal(err)
	}
	api.Debug = false

	b := &bot{
		api:       api,
		svc:       svc,
		providers: &providerManager{def: llm.ProviderGemini},
		httpc:     &http.Client{Timeout: 60 * time.Second},
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	logrus.Infof("bot @%s polling", api.Self.UserName)
	for upd := range api.GetUpdatesChan(u) {
		go b.handleUpdate(upd)
	}
}

func (b *bot) handleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if len(msg.Photo) > 0 {
		b.handlePhoto(msg)
		return
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		b.send(cid, "Working on it...")
		ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
		defer cancel()

		a, err := b.svc.ProcessText(ctx, b.identity(msg), b.providers.Get(cid), text)
		if err != nil {
			b.send(cid, "Could not solve that: "+err.Error())
			return
		}
		b.send(cid, clip(a.Response))
	}
}

func (b *bot) handleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.send(cid, "Send a photo of a homework problem, or type it as text.\nCommands: /provider")
	case "provider":
		arg := strings.TrimSpace(msg.CommandArguments())
		if arg == "" {
			b.send(cid, "Current provider: "+string(b.providers.Get(cid))+
				"\nUsage: /provider openai | anthropic | gemini")
			return
		}
		p, err := llm.ParseProvider(strings.ToLower(arg))
		if err != nil || !p.Wired() {
			b.send(cid, "Unknown provider. Available: openai | anthropic | gemini")
			return
		}
		b.providers.Set(cid, p)
		b.send(cid, "Switched to "+string(p))
	default:
		b.send(cid, "Unknown command")
	}
}

func (b *bot) handlePhoto(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	b.send(cid, "Got the photo, working on it...")

	ph := msg.Photo[len(msg.Photo)-1]
	tf, err := b.api.GetFile(tgbotapi.FileConfig{FileID: ph.FileID})
	if err != nil {
		b.send(cid, "Could not fetch the photo: "+err.Error())
		return
	}
	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", b.api.Token, tf.FilePath)
	img, err := b.download(url)
	if err != nil {
		b.send(cid, "Could not download the photo: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()

	a, err := b.svc.ProcessFile(ctx, b.identity(msg), b.providers.Get(cid), img, "image/jpeg", "photo.jpg")
	if err != nil {
		b.send(cid, "Could not solve that: "+err.Error())
		return
	}
	b.send(cid, clip(a.Response))
}

func (b *bot) identity(msg *tgbotapi.Message) solve.Identity {
	return solve.Identity{SessionID: fmt.Sprintf("tg:%d", msg.Chat.ID)}
}

func (b *bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logrus.WithError(err).Warn("telegram send failed")
	}
}

func (b *bot) download(url string) ([]byte, error) {
	resp, err := b.httpc.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(x))
	}
	return io.ReadAll(resp.Body)
}

// Telegram caps messages at 4096 chars.
func clip(s string) string {
	if len(s) > 3900 {
		return s[:3900] + "..."
	}
	return s
}

package main

import (
	"context"
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskmate/internal/config"
	"taskmate/internal/extract"
	"taskmate/internal/extract/yandex"
	"taskmate/internal/handle"
	"taskmate/internal/llm"
	"taskmate/internal/llm/anthropic"
	"taskmate/internal/llm/gemini"
	"taskmate/internal/llm/openai"
	"taskmate/internal/mail"
	"taskmate/internal/solve"
	"taskmate/internal/store"
)

func main() {
	cfg := config.Load()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var (
		st    store.AssignmentStore
		users *store.UserRepo
		usage solve.UsageRecorder
		db    *sql.DB
		err   error
	)
	switch cfg.StoreBackend {
	case "file":
		st, err = store.NewFileStore(cfg.StoreFile)
		if err != nil {
			logrus.Fatalf("file store: %v", err)
		}
		logrus.WithField("file", cfg.StoreFile).
			Warn("file store is for single-process local use; accounts and usage tracking are disabled")
	default:
		db, err = store.OpenPostgres(context.Background(), cfg.MustDatabaseURL())
		if err != nil {
			logrus.Fatalf("postgres: %v", err)
		}
		st = store.NewPostgresStore(db)
		users = store.NewUserRepo(db)
		usage = store.NewUsageRepo(db)
		logrus.Info("db connected")
	}
	defer st.Close()

	extractor := extract.New(yandex.New(cfg.YCOAuthToken, cfg.YCFolderID))
	dispatcher := llm.NewDispatcher(
		openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.MaxOutputToken),
		anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.MaxOutputToken),
		gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.MaxOutputToken),
	)
	svc := solve.New(extractor, dispatcher, st, usage)
	mailer := mail.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)

	h := handle.New(svc, st, users, mailer, cfg.JWTSigningKey, cfg.MaxUploadBytes, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	h.Register(r)

	addr := "0.0.0.0:" + cfg.Port
	logrus.Infof("listening on %s", addr)
	if err := r.Run(addr); err != nil {
		logrus.Fatal(err)
	}
}

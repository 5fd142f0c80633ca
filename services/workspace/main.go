package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/workspace/internal/admin"
	"github.com/workspace/internal/appstate"
	"github.com/workspace/internal/auth"
	"github.com/workspace/internal/chat"
	"github.com/workspace/internal/completion"
	"github.com/workspace/internal/config"
	"github.com/workspace/internal/events"
	redisevents "github.com/workspace/internal/events/redis"
	"github.com/workspace/internal/handler"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/middleware"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/notify"
	"github.com/workspace/internal/push"
	"github.com/workspace/internal/repository"
	"github.com/workspace/internal/startup"
	"github.com/workspace/internal/storage"
	"github.com/workspace/internal/storage/devstore"
	"github.com/workspace/internal/storage/memory"
	"github.com/workspace/internal/ws"
	"github.com/workspace/migrations"
)

// stores: реализации портов для выбранного режима (Postgres+Redis, -dev, -memory).
type stores struct {
	kv interface {
		storage.SessionStore
		storage.AppStateRepository
		push.SubscriptionStore
	}
	broker interface {
		events.Broker
		notify.Subscriber
	}
	users interface {
		auth.UserStore
		middleware.UserLookup
	}
	participants interface {
		admin.ParticipantLister
		chat.ParticipantResolver
		Upsert(ctx context.Context, p *model.Participant) error
	}
	sessions chat.SessionStore
	messages chat.MessageStore
	tasks    notify.TaskStore
	team     admin.TeamStore

	// run запускает фоновые процессы хранилища (LISTEN); nil в -memory.
	run   func(ctx context.Context)
	close func()
}

func main() {
	logger.SetPrefix("workspace")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB or Redis required)")
	inMemory := flag.Bool("memory", false, "keep all state in process memory (no DB or Redis)")
	flag.Parse()

	logger.Info("starting workspace service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	var st *stores
	if *inMemory {
		st = memoryStores()
	} else {
		st = postgresStores(cfg, *dev, *migrate)
		if st == nil {
			return
		}
	}
	defer st.close()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	var bgWg sync.WaitGroup
	if st.run != nil {
		bgWg.Add(1)
		go func() {
			defer bgWg.Done()
			st.run(rootCtx)
		}()
	}

	authSvc := auth.NewService(st.users, st.kv, st.participants)
	seedAdmin(rootCtx, authSvc, st, *inMemory)

	pushSvc := newPusher(cfg, st)
	hub := ws.NewHub(cfg.MaxWSConnections)
	pollers := notify.NewRegistry(rootCtx, notify.Options{
		Tasks:    st.tasks,
		Events:   st.broker,
		Chimer:   notify.Chimers{hub, push.NewChimer(pushSvc)},
		Debounce: cfg.NotifyDebounce,
	})
	hub.SetPollers(pollers)
	bgWg.Add(1)
	go func() {
		defer bgWg.Done()
		hub.Run(rootCtx)
	}()

	chats := chat.NewRegistry(chat.Deps{
		Sessions:     st.sessions,
		Messages:     st.messages,
		Completer:    completion.NewClient(cfg.ChatAPIURL, cfg.ChatTimeout, cfg.ChatEnableTools),
		Participants: st.participants,
	})
	adminSvc := admin.NewService(admin.Options{
		Gateway:       admin.NewClient(cfg.ProjectAPIURL, 0),
		Team:          st.team,
		Participants:  st.participants,
		AssignDelay:   cfg.TeamAssignDelay,
		MaxUploadSize: cfg.MaxUploadSize,
	})
	state := appstate.NewStore(st.kv)

	authH := handler.NewAuthHandler(authSvc, st.users, state, chats)
	stateH := handler.NewStateHandler(state)
	chatH := handler.NewChatHandler(chats, state)
	notifH := handler.NewNotificationHandler(pollers, state)
	adminH := handler.NewAdminHandler(adminSvc, cfg.MaxUploadSize)
	configH := handler.NewConfigHandler(cfg)
	pushH := handler.NewPushHandler(pushSvc)
	wsH := handler.NewWSHandler(hub, state, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket: иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		compressed := chimw.Compress(5)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			compressed.ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.With(middleware.InternalOnly).Handle("/metrics", promhttp.Handler())
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Post("/api/auth/login", authH.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(st.kv, st.users))
		r.Use(middleware.RateLimitUser)
		r.Post("/api/auth/logout", authH.Logout)
		r.Get("/api/auth/me", authH.Me)

		r.Get("/api/state", stateH.Get)
		r.Put("/api/state", stateH.Put)

		r.Get("/api/chat/sessions", chatH.ListSessions)
		r.Post("/api/chat/sessions", chatH.CreateSession)
		r.Put("/api/chat/sessions/{id}", chatH.RenameSession)
		r.Delete("/api/chat/sessions/{id}", chatH.DeleteSession)
		r.Post("/api/chat/sessions/{id}/select", chatH.SelectSession)
		r.Post("/api/chat/new", chatH.NewChat)
		r.Get("/api/chat/view", chatH.View)
		r.Post("/api/chat/messages", chatH.SendMessage)

		r.Get("/api/notifications", notifH.List)
		r.Post("/api/notifications/{id}/read", notifH.MarkRead)
		r.Post("/api/notifications/read-all", notifH.MarkAllRead)

		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly)
			r.Get("/api/participants", adminH.ListParticipants)
			r.Post("/api/projects", adminH.CreateProject)
			r.Get("/api/projects/{id}", adminH.GetProject)
			r.Put("/api/projects/{id}", adminH.UpdateProject)
			r.Get("/api/projects/{id}/team", adminH.ListTeam)
			r.Put("/api/projects/{id}/team", adminH.AssignTeam)
			r.Put("/api/projects/{id}/hods", adminH.AssignHODs)
			r.Post("/api/documents", adminH.UploadDocument)
		})
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	rootCancel()
	bgWg.Wait()
	pollers.CloseAll()
	logger.Info("hub and pollers stopped")
}

type pusher interface {
	push.Notifier
	handler.PushSubscriber
}

// newPusher: внешний push-сервис, если задан PUSH_SERVICE_URL; иначе прямая отправка
// Web Push с подписками в хранилище сессий; без ключей VAPID: no-op клиент.
func newPusher(cfg *config.Config, st *stores) pusher {
	switch {
	case cfg.PushServiceURL != "":
		return push.NewClient(cfg.PushServiceURL)
	case cfg.PushActive() && cfg.PushVAPIDPrivateKey != "":
		logger.Info("push: direct Web Push delivery enabled")
		keys := &push.VAPIDKeys{PublicKey: cfg.PushVAPIDPublicKey, PrivateKey: cfg.PushVAPIDPrivateKey}
		return push.NewSender(st.kv, keys, cfg.PushSubscriber)
	default:
		return push.NewClient("")
	}
}

func memoryStores() *stores {
	logger.Info("in-memory mode: state is lost on restart")
	broker := events.NewMemoryBroker()
	participants := memory.NewParticipants()
	messages := memory.NewMessages()
	return &stores{
		kv:           memory.New(),
		broker:       broker,
		users:        memory.NewUsers(),
		participants: participants,
		sessions:     memory.NewChatSessions(messages),
		messages:     messages,
		tasks:        memory.NewTasks(broker),
		team:         memory.NewTeam(participants),
		close:        func() {},
	}
}

// postgresStores подключает Postgres (внешний или встроенный при dev) и Redis (кроме dev).
// nil: только миграции (-migrate).
func postgresStores(cfg *config.Config, dev, migrateOnly bool) *stores {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if dev {
		embeddedDB, err := startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			os.Exit(1)
		}
		closers = append(closers, func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		})
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 2

	pool := startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
	closers = append(closers, pool.Close)

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = startup.Migrate(migrateCtx, pool, migrations.Files)
	migrateCancel()
	if err != nil {
		logger.Errorf("%v", err)
		closeAll()
		os.Exit(1)
	}
	if migrateOnly {
		closeAll()
		return nil
	}
	logger.Info("database connected, migrations applied")

	st := &stores{
		users:        repository.NewUserRepository(pool),
		participants: repository.NewParticipantRepository(pool),
		sessions:     repository.NewChatSessionRepository(pool),
		messages:     repository.NewMessageRepository(pool),
		tasks:        repository.NewTaskRepository(pool),
		team:         repository.NewTeamRepository(pool),
	}

	var publisher events.Broker
	if dev {
		st.kv = devstore.New(repository.NewAuthSessionRepository(pool), repository.NewAppStateRepository(pool))
		mb := events.NewMemoryBroker()
		st.broker, publisher = mb, mb
	} else {
		redisClient := startup.ConnectRedisWithRetry(cfg.Redis.URL, 60*time.Second, "")
		closers = append(closers, func() { redisClient.Close() })
		st.kv = redisClient
		rb := redisevents.NewBroker(redisClient.Redis())
		st.broker, publisher = rb, rb
	}

	listener := events.NewPGListener(pool, publisher)
	st.run = listener.Run
	st.close = closeAll
	return st
}

// seedAdmin создаёт администратора из SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD.
// В -memory для него же заводится участник, чтобы работали уведомления и чат проекта.
func seedAdmin(ctx context.Context, svc *auth.Service, st *stores, inMemory bool) {
	email := strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL"))
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}
	if inMemory {
		p := &model.Participant{ID: "admin", Name: "Administrator", Email: email, Department: "management", Role: "admin"}
		if err := st.participants.Upsert(ctx, p); err != nil {
			logger.Errorf("seed participant: %v", err)
		}
	}
	u := model.User{Email: email, Name: "Administrator", Role: "admin", Department: "management"}
	if err := svc.EnsureUser(ctx, u, password); err != nil {
		logger.Errorf("seed admin: %v", err)
	}
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5432
		user     = "workspace"
		password = "workspace_secret"
		database = "workspace"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}

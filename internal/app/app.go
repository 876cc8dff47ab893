package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/audiolens-backend/internal/data/db"
	"github.com/yungbote/audiolens-backend/internal/data/repos"
	"github.com/yungbote/audiolens-backend/internal/data/repos/archive"
	apphttp "github.com/yungbote/audiolens-backend/internal/http"
	httpH "github.com/yungbote/audiolens-backend/internal/http/handlers"
	"github.com/yungbote/audiolens-backend/internal/observability"
	"github.com/yungbote/audiolens-backend/internal/platform/logger"
	"github.com/yungbote/audiolens-backend/internal/playback"
	"github.com/yungbote/audiolens-backend/internal/realtime"
	"github.com/yungbote/audiolens-backend/internal/realtime/bus"
	"github.com/yungbote/audiolens-backend/internal/session"
)

type App struct {
	Log        *logger.Logger
	Cfg        Config
	DB         *db.Service
	Archive    repos.SessionArchiveRepo
	Hub        *realtime.SSEHub
	Bus        bus.Bus
	Emitter    *realtime.Emitter
	Controller *session.Controller
	Clock      *playback.Clock
	Poller     *playback.Poller
	Router     *gin.Engine

	clients      Clients
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New wires the HTTP service from cfg.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	clients, err := wireClients(log, cfg)
	if err != nil {
		return nil, err
	}
	a.clients = clients

	if cfg.DBDriver != "" {
		svc, err := db.Open(log, db.Config{Driver: cfg.DBDriver, DSN: cfg.DatabaseDSN})
		if err != nil {
			a.clients.Close()
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.DB = svc
		a.Archive = repos.NewSessionArchiveRepo(svc.DB(), log)
	}

	a.Hub = realtime.NewSSEHub(log)
	var pub realtime.Publisher
	if cfg.RedisAddr != "" {
		b, err := bus.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("init redis SSE bus: %w", err)
		}
		a.Bus = b
		pub = b
	}
	a.Emitter = realtime.NewEmitter(log, a.Hub, pub)

	a.Controller = session.NewController(log, wirePipeline(log, cfg, clients, true), sessionOptions(cfg))
	if a.Archive != nil {
		a.Controller.SetArchiver(archive.NewSessionArchiver(a.Archive))
	}
	a.Controller.OnStateChange(a.publishSession)

	a.Clock = playback.NewClock(clock.New())
	a.Poller = playback.NewPoller(log, clock.New(), cfg.PollInterval, a.Clock, a.Controller, a.publishCaption)

	a.Router = apphttp.NewRouter(a.routerConfig())
	return a, nil
}

func (a *App) routerConfig() apphttp.RouterConfig {
	checks := map[string]httpH.HealthCheck{}
	if a.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := a.DB.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}

	cfg := apphttp.RouterConfig{
		Log:             a.Log,
		ServiceName:     a.Cfg.Otel.ServiceName,
		CORSOrigins:     a.Cfg.CORSOrigins,
		HealthHandler:   httpH.NewHealthHandler(checks),
		SessionHandler:  httpH.NewSessionHandler(a.Log, &selector{Controller: a.Controller, onSelect: a.resetPlayback}),
		CaptionHandler:  httpH.NewCaptionHandler(a.Controller, a.Clock),
		PlaybackHandler: httpH.NewPlaybackHandler(a.Clock, a.publishPlayback),
		RealtimeHandler: httpH.NewRealtimeHandler(a.Log, a.Hub, a.initialMessages),
	}
	if a.Archive != nil {
		cfg.ArchiveHandler = httpH.NewArchiveHandler(a.Archive)
	}
	return cfg
}

// Start runs the playback poller and the bus forwarder until Close.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.Poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.Log.Warn("Playback poller stopped", "error", err)
		}
	}()

	if a.Bus != nil {
		if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			a.Log.Warn("SSE bus forwarder failed to start", "error", err)
		}
	}
}

// Run serves HTTP on addr until ctx ends.
func (a *App) Run(ctx context.Context, addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return (&apphttp.Server{Engine: a.Router}).Run(ctx, addr)
}

// Serve builds the app, serves it on the configured port until ctx ends
// and then shuts everything down.
func Serve(ctx context.Context, log *logger.Logger, cfg Config) error {
	a, err := New(ctx, log, cfg)
	if err != nil {
		return err
	}
	a.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.Close(shutdownCtx)
	}()

	log.Info("Serving", "port", cfg.Port)
	return a.Run(ctx, ":"+cfg.Port)
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.Controller != nil {
		if err := a.Controller.Close(ctx); err != nil {
			a.Log.Warn("Session controller did not stop in time", "error", err)
		}
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.wg.Wait()
	a.closeResources()
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	a.Log.Sync()
}

func (a *App) closeResources() {
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	a.clients.Close()
}

// selector resets playback once a new session has replaced the current one.
type selector struct {
	*session.Controller
	onSelect func()
}

func (s *selector) Select(ctx context.Context, req session.SelectRequest) (*session.Session, error) {
	sess, err := s.Controller.Select(ctx, req)
	if err == nil && s.onSelect != nil {
		s.onSelect()
	}
	return sess, err
}

func (a *App) resetPlayback() {
	a.Clock.Reset()
	a.Poller.Reset()
	a.publishPlayback(a.Clock.State())
}

// publishSession sends snap on its session channel. The captions channel only
// hears about the current session, so a replaced session's late transitions
// never reach clients that already follow the new one.
func (a *App) publishSession(snap session.Snapshot) {
	view := httpH.PresentSession(snap)
	ctx := context.Background()
	channels := []string{realtime.SessionChannel(snap.ID)}
	if cur := a.Controller.Current(); cur != nil && cur.ID == snap.ID {
		channels = append(channels, realtime.ChannelCaptions)
	}
	for _, ch := range channels {
		a.Emitter.Emit(ctx, ch, realtime.SSEEventSessionStateChanged, view)
		if view.Error != nil {
			a.Emitter.Emit(ctx, ch, realtime.SSEEventSessionFailed, view)
		}
	}
}

func (a *App) publishCaption(u playback.Update) {
	a.Emitter.Emit(context.Background(), realtime.ChannelCaptions, realtime.SSEEventCaptionChanged, u)
}

func (a *App) publishPlayback(st playback.State) {
	a.Emitter.Emit(context.Background(), realtime.ChannelCaptions, realtime.SSEEventPlaybackChanged, st)
	a.Poller.Tick()
}

// initialMessages primes a new SSE client with the current state.
func (a *App) initialMessages() []realtime.SSEMessage {
	msgs := []realtime.SSEMessage{{
		Channel: realtime.ChannelCaptions,
		Event:   realtime.SSEEventPlaybackChanged,
		Data:    a.Clock.State(),
	}}
	if s := a.Controller.Current(); s != nil {
		msgs = append(msgs, realtime.SSEMessage{
			Channel: realtime.ChannelCaptions,
			Event:   realtime.SSEEventSessionStateChanged,
			Data:    httpH.PresentSession(s.Snapshot()),
		})
	}
	if u, ok := a.Poller.Last(); ok {
		msgs = append(msgs, realtime.SSEMessage{
			Channel: realtime.ChannelCaptions,
			Event:   realtime.SSEEventCaptionChanged,
			Data:    u,
		})
	}
	return msgs
}

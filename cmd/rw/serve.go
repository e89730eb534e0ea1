package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/roadwatch/roadwatch/internal/admin"
	"github.com/roadwatch/roadwatch/internal/chat"
	"github.com/roadwatch/roadwatch/internal/chat/discord"
	"github.com/roadwatch/roadwatch/internal/chat/twilio"
	"github.com/roadwatch/roadwatch/internal/config"
	"github.com/roadwatch/roadwatch/internal/db"
	"github.com/roadwatch/roadwatch/internal/geo"
	"github.com/roadwatch/roadwatch/internal/media"
	"github.com/roadwatch/roadwatch/internal/ops"
	"github.com/roadwatch/roadwatch/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and admin API server",
		Long:  "Starts the HTTP server, the background schedulers, and the optional Discord gateway. Blocks until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	twilioClient, err := twilio.NewClient(twilio.ClientOpts{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		From:       cfg.Twilio.From,
		SMSFrom:    cfg.Twilio.SMSFrom,
	})
	if err != nil {
		return fmt.Errorf("twilio client: %w", err)
	}

	var alerter report.Alerter
	var notifier *ops.Notifier
	if token := os.Getenv("SLACK_API_TOKEN"); token != "" && cfg.Slack.Channel != "" {
		notifier, err = ops.NewNotifier(token, cfg.Slack.Channel)
		if err != nil {
			return fmt.Errorf("slack notifier: %w", err)
		}
		alerter = notifier
	}

	var uploader report.Uploader
	var adminUploader admin.Uploader
	if cfg.Media.Bucket != "" {
		store, err := media.NewStore(cmd.Context(), media.StoreOpts{
			Bucket: cfg.Media.Bucket,
			Region: cfg.Media.Region,
			Folder: cfg.Media.Folder,
		})
		if err != nil {
			return fmt.Errorf("media store: %w", err)
		}
		uploader = store
		adminUploader = store
	}

	resolver, err := geo.NewResolver(geo.ResolverOpts{
		DB: gormDB,
		Bounds: geo.Bounds{
			MinLat: cfg.ServiceArea.MinLat,
			MaxLat: cfg.ServiceArea.MaxLat,
			MinLng: cfg.ServiceArea.MinLng,
			MaxLng: cfg.ServiceArea.MaxLng,
		},
		CacheTTL:     cfg.CacheTTL(),
		KeyPrecision: cfg.Geo.KeyPrecision,
	})
	if err != nil {
		return fmt.Errorf("division resolver: %w", err)
	}

	pipeline, err := report.NewPipeline(report.PipelineOpts{
		DB:                gormDB,
		Notifier:          twilioClient,
		Uploader:          uploader,
		Alerter:           alerter,
		MediaFolder:       cfg.Media.Folder,
		MaxNotify:         cfg.Report.MaxNotify,
		PersistUnnotified: cfg.Report.PersistUnnotified,
	})
	if err != nil {
		return fmt.Errorf("report pipeline: %w", err)
	}

	sessionStore, err := chat.NewSessionStore(gormDB, cfg.IdleTimeout())
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	engine, err := chat.NewEngine(chat.EngineOpts{
		DB:       gormDB,
		Store:    sessionStore,
		Resolver: resolver,
		Pipeline: pipeline,
		Alerter:  alerter,
		JoinForm: cfg.JoinFormURL,
	})
	if err != nil {
		return fmt.Errorf("chat engine: %w", err)
	}

	jwtSecret := os.Getenv("ADMIN_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is not set")
	}

	server, err := admin.NewServer(admin.ServerOpts{
		DB:        gormDB,
		Engine:    engine,
		Resolver:  resolver,
		Pipeline:  pipeline,
		Uploader:  adminUploader,
		OTPSender: twilioClient,
		JWTSecret: []byte(jwtSecret),
		OTPTTL:    cfg.OTPTTL(),
		JWTTTL:    cfg.JWTTTL(),
		Port:      cfg.Server.Port,
		Out:       cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	scheduler.AddFunc("@hourly", func() {
		if n, err := sessionStore.ExpireIdle(); err != nil {
			log.Printf("serve: expire idle sessions: %v", err)
		} else if n > 0 {
			log.Printf("serve: expired %d idle sessions", n)
		}
	})
	scheduler.AddFunc("@every 15m", func() {
		resolver.PurgeExpired()
	})
	if notifier != nil {
		digest, err := ops.NewDigest(gormDB, notifier)
		if err != nil {
			return fmt.Errorf("ops digest: %w", err)
		}
		scheduler.AddFunc("0 8 * * *", func() {
			if err := digest.Run(ctx, time.Now()); err != nil {
				log.Printf("serve: daily digest: %v", err)
			}
		})
	}
	scheduler.Start()
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})

	if cfg.Discord.Enabled {
		adapter, err := discord.NewAdapter(os.Getenv("DISCORD_BOT_TOKEN"))
		if err != nil {
			return fmt.Errorf("discord adapter: %w", err)
		}
		if err := adapter.Connect(gctx); err != nil {
			return fmt.Errorf("discord connect: %w", err)
		}
		defer adapter.Close()

		inbound, err := adapter.Listen(gctx)
		if err != nil {
			return fmt.Errorf("discord listen: %w", err)
		}
		g.Go(func() error {
			for msg := range inbound {
				out, err := engine.HandleMessage(gctx, msg)
				if err != nil {
					log.Printf("serve: discord message %s: %v", msg.DeliveryID, err)
					continue
				}
				if err := adapter.Send(gctx, out); err != nil {
					log.Printf("serve: discord reply to %s: %v", out.UserHandle, err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"vendorplan/internal/capture"
	"vendorplan/internal/config"
	"vendorplan/internal/filter"
	"vendorplan/internal/ics"
	appLog "vendorplan/internal/log"
	"vendorplan/internal/mail"
	"vendorplan/internal/planner"
	"vendorplan/internal/route"
	"vendorplan/internal/source"
	"vendorplan/internal/web"
)

const version = "0.3.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	snapshot   string
	once       bool
}

func main() {
	// .env is optional; values already in the environment win.
	_ = godotenv.Load()

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.snapshot != "" {
		conf.Capture.OutputPath = flags.snapshot
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("vendorplan starting", "version", version)

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Warn("unknown timezone; using UTC", "timezone", conf.Timezone, "err", err)
		loc = time.UTC
	}

	src := source.New(conf.Source, loc)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"source", src.Describe(),
		"null_start", conf.NullStart,
		"refresh", conf.RefreshCron,
		"snapshot_path", conf.Capture.OutputPath,
		"basic_auth", conf.BasicAuth != nil && conf.BasicAuth.Username != "",
	)

	p := planner.New(planner.Options{
		Location:   loc,
		NullStart:  filter.ParseNullStart(conf.NullStart),
		FitPadding: conf.Map.FitPadding,
		Exporter: ics.Exporter{
			ProdID:    conf.Calendar.ProdID,
			UIDDomain: conf.Calendar.UIDDomain,
		},
		Sender: mail.Sender{
			Business:  conf.Mail.Business,
			Products:  conf.Mail.Products,
			Signature: conf.Mail.Signature,
		},
		Router: route.Builder{BaseURL: conf.Route.BaseURL},
	})

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A failed first load leaves the planner in its failed state; the page
	// shows the error and /api/reload or the schedule can recover.
	if err := load(ctx, p, src); err != nil && flags.once {
		os.Exit(1)
	}
	if flags.once {
		v := p.View()
		appLog.Info("collection summary", "events", v.Total, "states", len(v.Options.States), "types", len(v.Options.Types))
		return
	}

	if conf.RefreshCron != "" {
		c := cron.New(cron.WithLocation(loc))
		_, err := c.AddFunc(conf.RefreshCron, func() {
			_ = load(ctx, p, src)
		})
		if err != nil {
			appLog.Error("invalid refresh schedule; scheduled reload disabled", err, "refresh", conf.RefreshCron)
		} else {
			c.Start()
			defer c.Stop()
			appLog.Info("scheduled reload enabled", "refresh", conf.RefreshCron)
		}
	}

	srv := web.NewServer(conf, p, src, capture.PlannerPNG)
	if err := web.StartServer(ctx, conf, srv); err != nil {
		appLog.Error("http server failed", err)
		os.Exit(1)
	}
	appLog.Info("vendorplan exiting")
}

// load runs one collection load bounded by the source timeout.
func load(ctx context.Context, p *planner.Planner, src *source.Source) error {
	start := time.Now()
	if err := p.Load(ctx, src); err != nil {
		appLog.Error("event load failed", err, "source", src.Describe())
		return err
	}
	appLog.Info("events loaded",
		"source", src.Describe(),
		"count", p.View().Total,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	defaultConfig := os.Getenv("VENDORPLAN_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}

	flag.StringVar(&cfg.configPath, "config", defaultConfig, "Path to config file (env VENDORPLAN_CONFIG)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Also write every /snapshot.png capture to this path (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the event collection, log a summary and exit")

	flag.Parse()

	return cfg
}

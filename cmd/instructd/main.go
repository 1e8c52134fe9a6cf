package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"instructd/internal/common/fsutil"
	"instructd/internal/config"
	"instructd/internal/httpapi"
	"instructd/internal/model"
	"instructd/internal/prompt"
	"instructd/internal/session"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "instructd",
		Short:         "Instruction-following generation daemon over a single local model",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	f := root.Flags()
	f.String("config", "", "Path to a config file (.yaml, .json or .toml)")
	f.String("addr", ":8090", "HTTP listen address")
	f.String("model", "", "Path of the base model weights")
	f.String("family", "causal", "Model family: causal|seq2seq")
	f.String("name", "", "Human-friendly model name (defaults to the weight file name)")
	f.String("adapter", "", "Path of an optional low-rank adapter")
	f.String("adapter-family", "", "Family the adapter was trained against (defaults to the model family)")
	f.Bool("merge-adapter", false, "Materialize merged weights at load instead of call-time composition")
	f.Bool("instruction-mode", false, "Use the instruction template when requests omit one")
	f.String("backend", "builtin", "Inference backend: builtin|llama")
	f.Int("max-queue-depth", 0, "Maximum queued sessions before 429 (0 = unbounded)")
	f.Int("session-timeout", 0, "Per-session wall clock budget in seconds (0 = none)")
	f.String("log-level", "info", "Log level: debug|info|warn|error")
	f.Bool("cors", false, "Enable CORS")
	f.StringSlice("cors-origin", nil, "Allowed CORS origins (repeatable)")

	return root
}

func runServe(cmd *cobra.Command) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()

	if cfg.ModelPath == "" {
		return fmt.Errorf("model path is required (--model or model_path in config)")
	}
	if cfg.ModelPath, err = fsutil.ExpandHome(cfg.ModelPath); err != nil {
		return err
	}
	if cfg.AdapterPath != "" {
		if cfg.AdapterPath, err = fsutil.ExpandHome(cfg.AdapterPath); err != nil {
			return err
		}
	}
	family, ok := model.ParseFamily(cfg.ModelFamily)
	if !ok {
		return fmt.Errorf("unknown model family %q", cfg.ModelFamily)
	}
	name := cfg.ModelName
	if name == "" {
		name = baseName(cfg.ModelPath)
	}
	desc := model.Descriptor{Name: name, Path: cfg.ModelPath, Family: family}

	var adapter *model.AdapterDescriptor
	if cfg.AdapterPath != "" {
		af := family
		if cfg.AdapterFamily != "" {
			if af, ok = model.ParseFamily(cfg.AdapterFamily); !ok {
				return fmt.Errorf("unknown adapter family %q", cfg.AdapterFamily)
			}
		}
		adapter = &model.AdapterDescriptor{Name: baseName(cfg.AdapterPath), Path: cfg.AdapterPath, Family: af}
	}

	opts := model.LoadOptions{Strategy: model.ComposeCallTime}
	if cfg.MergeAdapter {
		opts.Strategy = model.ComposeMerged
	}

	var loader model.Loader
	switch cfg.Backend {
	case "", "builtin":
		loader = model.NewBuiltinLoader()
	case "llama":
		loader = model.NewLlamaLoader(2048, 0)
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	bm, err := model.Bind(loader, desc, adapter, opts)
	if err != nil {
		return fmt.Errorf("bind model: %w", err)
	}
	defer bm.Close()

	tmpl := prompt.TemplateRaw
	if cfg.InstructionMode {
		tmpl = prompt.TemplateInstruction
	}
	mgr := session.New(bm, session.Config{
		MaxQueueDepth:   cfg.MaxQueueDepth,
		SessionTimeout:  time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
		DefaultTemplate: tmpl,
	}, log.With().Str("component", "session").Logger())
	defer mgr.Close()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSAllowedOrigins,
		[]string{"GET", "POST", "OPTIONS"}, []string{"Content-Type", "X-Log-Level"})

	mux := httpapi.NewMux(httpapi.WrapManager(mgr))
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("model", desc.Name).
			Str("family", string(family)).Str("backend", cfg.Backend).
			Msg("instructd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	// Cancel in-flight generations, then drain the HTTP server.
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}

// resolveConfig loads the optional config file and applies flag overrides.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	f := cmd.Flags()
	if path, _ := f.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}

	// Explicit flags win; flag defaults only fill fields the file left empty.
	setStr := func(flag string, dst *string) {
		v, _ := f.GetString(flag)
		if f.Changed(flag) || *dst == "" {
			*dst = v
		}
	}
	setStr("addr", &cfg.Addr)
	setStr("model", &cfg.ModelPath)
	setStr("family", &cfg.ModelFamily)
	setStr("name", &cfg.ModelName)
	setStr("adapter", &cfg.AdapterPath)
	setStr("adapter-family", &cfg.AdapterFamily)
	setStr("backend", &cfg.Backend)
	setStr("log-level", &cfg.LogLevel)

	if f.Changed("merge-adapter") {
		cfg.MergeAdapter, _ = f.GetBool("merge-adapter")
	}
	if f.Changed("instruction-mode") {
		cfg.InstructionMode, _ = f.GetBool("instruction-mode")
	}
	if f.Changed("max-queue-depth") {
		cfg.MaxQueueDepth, _ = f.GetInt("max-queue-depth")
	}
	if f.Changed("session-timeout") {
		cfg.SessionTimeoutSeconds, _ = f.GetInt("session-timeout")
	}
	if f.Changed("cors") {
		cfg.CORSEnabled, _ = f.GetBool("cors")
	}
	if f.Changed("cors-origin") {
		cfg.CORSAllowedOrigins, _ = f.GetStringSlice("cors-origin")
	}
	return cfg, nil
}

func baseName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		path = path[:i]
	}
	return path
}

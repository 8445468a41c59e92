package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/traderpath/internal/artifact"
	"github.com/pavelanni/traderpath/internal/assessment"
	"github.com/pavelanni/traderpath/internal/handler"
	appI18n "github.com/pavelanni/traderpath/internal/i18n"
	"github.com/pavelanni/traderpath/internal/metrics"
	"github.com/pavelanni/traderpath/internal/model"
	"github.com/pavelanni/traderpath/internal/notify"
	"github.com/pavelanni/traderpath/internal/progression"
	"github.com/pavelanni/traderpath/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "traderpath",
		Short: "Trading mentorship program: assessment, interviews and staged learning",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), adduserCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `traderpath --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "traderpath.db", "SQLite database path")
	f.StringSliceP("stages", "s", []string{"stages/stages.json"}, "Paths to learning stage JSON files (repeatable)")
	f.StringP("lang", "l", "en", "Default language for messages (en, zh)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial team lead password (or set TRADERPATH_ADMIN_PASSWORD)")
	f.String("frontend-base-url", "http://localhost:3000", "Frontend URL used in notification links")
	f.StringSlice("notify", []string{"log"}, "Notification channels (log, ses, sns)")
	f.String("aws-region", "ap-east-1", "AWS region for SES, SNS and S3")
	f.String("ses-sender", "", "Verified SES sender address")
	f.String("sms-country-code", "+86", "Country code prepended to phone numbers without one")
	f.String("artifact-backend", "local", "Where assignment files are stored (local, s3)")
	f.String("upload-dir", "uploads", "Directory for the local artifact backend")
	f.String("bucket", "", "S3 bucket for the s3 artifact backend")
	f.Int64("max-upload", progression.DefaultMaxUploadBytes, "Largest accepted assignment file in bytes")
	f.StringSlice("allowed-types", progression.DefaultAllowedTypes, "Accepted assignment file content types")
	f.Duration("session-cleanup", time.Hour, "Interval between expired session sweeps")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export learning progress as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "traderpath.db", "SQLite database path")
	f.String("role", "", "Only export users holding this role")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func adduserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user with a given role",
		RunE:  runAddUser,
	}
	f := cmd.Flags()
	f.String("db", "traderpath.db", "SQLite database path")
	f.StringP("username", "u", "", "Login name (required)")
	f.StringP("password", "p", "", "Password (required)")
	f.StringP("role", "r", string(model.RoleTeamLead), "Role (prospective_student, student, paying_student, trader, team_lead)")
	f.String("display-name", "", "Display name (defaults to the username)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TRADERPATH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("traderpath")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/traderpath")
	v.AddConfigPath("/etc/traderpath")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := loadStages(db, v.GetStringSlice("stages")); err != nil {
		return fmt.Errorf("load stages: %w", err)
	}
	if n, err := db.StageCount(); err == nil {
		slog.Info("stage catalog ready", "active_stages", n)
	}

	catalog := assessment.ReferenceCatalog()
	slog.Info("assessment catalog ready", "questions", catalog.Len(), "dimensions", len(assessment.Dimensions))

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			cfg, err := notify.LoadAWS(ctx, v.GetString("aws-region"))
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &cfg
		}
		return *awsCfg, nil
	}

	notifier, err := buildNotifier(v, m, loadAWS)
	if err != nil {
		return fmt.Errorf("configure notifications: %w", err)
	}
	queue := notify.NewQueue(notifier, 256, 30*time.Second)
	defer queue.Close()

	arts, err := buildArtifactStore(ctx, v)
	if err != nil {
		return fmt.Errorf("configure artifact storage: %w", err)
	}

	appCfg := model.AppConfig{
		SecureCookies:   v.GetBool("secure-cookies"),
		MaxUploadBytes:  v.GetInt64("max-upload"),
		AllowedMIME:     v.GetStringSlice("allowed-types"),
		FrontendBaseURL: v.GetString("frontend-base-url"),
	}
	h, err := handler.New(handler.Deps{
		Store:     db,
		Artifacts: arts,
		Notifier:  queue,
		Metrics:   m,
		Catalog:   catalog,
		Config:    appCfg,
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(appI18n.Middleware)
	r.Handle("/metrics", m.Handler())
	h.Routes(r)

	go cleanupSessions(ctx, db, v.GetDuration("session-cleanup"))

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"languages", appI18n.Languages(),
		"notify", v.GetStringSlice("notify"),
		"artifact_backend", v.GetString("artifact-backend"),
		"max_upload", appCfg.MaxUploadBytes,
		"assessment_questions", catalog.Len(),
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildNotifier(v *viper.Viper, m *metrics.Metrics, loadAWS func() (aws.Config, error)) (notify.Notifier, error) {
	renderer, err := notify.NewRenderer(strings.TrimRight(v.GetString("frontend-base-url"), "/"))
	if err != nil {
		return nil, err
	}
	fan := &notify.Fanout{OnResult: m.NotificationResult}
	for _, name := range v.GetStringSlice("notify") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "log":
			fan.Channels = append(fan.Channels, notify.NewLogChannel(renderer))
		case "ses":
			sender := v.GetString("ses-sender")
			if sender == "" {
				return nil, errors.New("--ses-sender is required for the ses channel")
			}
			cfg, err := loadAWS()
			if err != nil {
				return nil, err
			}
			fan.Channels = append(fan.Channels, notify.NewEmailChannel(cfg, sender, renderer))
		case "sns":
			cfg, err := loadAWS()
			if err != nil {
				return nil, err
			}
			fan.Channels = append(fan.Channels, notify.NewSMSChannel(cfg, v.GetString("sms-country-code"), renderer))
		case "":
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}
	return fan, nil
}

func buildArtifactStore(ctx context.Context, v *viper.Viper) (artifact.Store, error) {
	switch backend := strings.ToLower(v.GetString("artifact-backend")); backend {
	case "local":
		return artifact.NewLocalStore(v.GetString("upload-dir"))
	case "s3":
		bucket := v.GetString("bucket")
		if bucket == "" {
			return nil, errors.New("--bucket is required for the s3 backend")
		}
		return artifact.NewS3Store(ctx, v.GetString("aws-region"), bucket)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", backend)
	}
}

func cleanupSessions(ctx context.Context, db *store.Store, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := db.CleanupExpiredSessions()
			if err != nil {
				slog.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("removed expired sessions", "count", n)
			}
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	role := v.GetString("role")
	if role != "" && !model.Role(role).Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	export, err := db.ExportProgress(role)
	if err != nil {
		return fmt.Errorf("export progress: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported progress", "students", len(export.Students), "stages", export.TotalStages)
	return nil
}

func runAddUser(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	role := model.Role(strings.ToLower(v.GetString("role")))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", v.GetString("role"))
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	username := v.GetString("username")
	displayName := v.GetString("display-name")
	if displayName == "" {
		displayName = username
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(v.GetString("password")), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	status := model.InterviewNotApplied
	if progression.IsActiveStudent(role) {
		status = model.InterviewPassed
	}
	id, err := db.CreateUser(model.User{
		Username:        username,
		DisplayName:     displayName,
		PasswordHash:    string(hash),
		Role:            role,
		InterviewStatus: status,
		Active:          true,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, role %s)\n", username, id, role)
	return nil
}

// loadStages imports stage files. A file whose hash matches the last import
// is skipped; a changed file is re-imported, updating stages by name.
func loadStages(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("stages file not found, skipping", "path", path)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}
		if storedHash == hash {
			slog.Info("stages file unchanged, skipping", "path", path)
			continue
		}

		var stages []model.StageImport
		if err := json.Unmarshal(data, &stages); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		n, err := db.ImportStages(stages)
		if err != nil {
			return fmt.Errorf("import stages from %s: %w", path, err)
		}
		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported stages", "path", path, "count", n, "reimport", storedHash != "")
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// seedAdmin creates the first team lead when the database has no users.
func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or TRADERPATH_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:        "admin",
		DisplayName:     "Team Lead",
		PasswordHash:    string(hash),
		Role:            model.RoleTeamLead,
		InterviewStatus: model.InterviewPassed,
		Active:          true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default team lead", "username", "admin")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"worklog/config"
	"worklog/database"
	"worklog/handlers"
	"worklog/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worklog HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	db, err := database.InitDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Stores
	taskStore := database.NewTaskStore(db)
	columnStore := database.NewColumnStore(db)
	shiftStore := database.NewShiftStore(db)
	workLogStore := database.NewWorkLogStore(db)
	teamStore := database.NewTeamStore(db)
	auditStore := database.NewAuditStore(db)
	proxy := database.NewProxy(db, auditStore)

	// Services
	authService := services.NewAuthService(cfg.Auth.JWTSecret)
	hub := services.NewHub(log)
	go hub.Run()

	cache := services.NewBoardCache(cfg.Board.CacheTTL())
	boardService := services.NewBoardService(taskStore, columnStore, auditStore,
		cache, hub, cfg.Board.LoaderWindow(), log)
	shiftService := services.NewShiftService(shiftStore, teamStore, auditStore,
		cfg.Shifts.DefaultCode, log)

	registerRPCs(proxy, boardService, workLogStore)

	var jiraSync *services.JiraSync
	if cfg.Jira.Enabled() {
		jiraClient := services.NewJiraClient(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.APIToken)
		jiraSync = services.NewJiraSync(jiraClient, boardService, taskStore,
			cfg.Jira.JQL, cfg.Jira.ProjectID, cfg.Jira.TeamID, cfg.Jira.InboxColumn, log)
	}

	// Background jobs
	scheduler := services.NewScheduler(log)
	if err := scheduler.AddCacheJanitor(cache); err != nil {
		return err
	}
	if jiraSync != nil {
		if err := scheduler.AddJiraSync(jiraSync, cfg.Jira.SyncSchedule); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Handlers
	authMiddleware := handlers.NewAuthMiddleware(authService)
	authHandler := handlers.NewAuthHandler(authService, cfg.Auth.DevTokens, log)
	boardHandler := handlers.NewBoardHandler(boardService, hub, log)
	proxyHandler := handlers.NewProxyHandler(proxy, log)
	shiftHandler := handlers.NewShiftHandler(shiftService, shiftStore, log)
	workLogHandler := handlers.NewWorkLogHandler(workLogStore, auditStore, log)
	auditHandler := handlers.NewAuditHandler(auditStore, log)
	jiraHandler := handlers.NewJiraHandler(jiraSync, log)

	// Router
	r := mux.NewRouter()

	// Auth routes
	r.HandleFunc("/api/auth/verify", authHandler.VerifyToken).Methods("GET")
	r.HandleFunc("/api/auth/token", authHandler.IssueToken).Methods("POST")

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Auth)

	api.HandleFunc("/proxy", proxyHandler.Handle).Methods("POST")

	api.HandleFunc("/board", boardHandler.GetBoard).Methods("GET")
	api.HandleFunc("/board/move", boardHandler.MoveTask).Methods("POST")
	api.HandleFunc("/board/tasks", boardHandler.CreateTask).Methods("POST")
	api.HandleFunc("/board/tasks/{id}", boardHandler.UpdateTask).Methods("PATCH")
	api.HandleFunc("/board/tasks/{id}", boardHandler.ArchiveTask).Methods("DELETE")
	api.HandleFunc("/board/columns", boardHandler.CreateColumn).Methods("POST")
	api.HandleFunc("/board/columns/{id}", boardHandler.UpdateColumn).Methods("PATCH")
	api.HandleFunc("/board/columns/{id}", boardHandler.DeleteColumn).Methods("DELETE")

	api.HandleFunc("/shifts/enums", shiftHandler.ListEnums).Methods("GET")
	api.HandleFunc("/shifts/enums", shiftHandler.UpsertEnum).Methods("POST")
	api.HandleFunc("/shifts/enums/{code}", shiftHandler.DeleteEnum).Methods("DELETE")
	api.HandleFunc("/shifts/import", shiftHandler.ImportCSV).Methods("POST")
	api.HandleFunc("/shifts/export", shiftHandler.ExportCSV).Methods("GET")

	api.HandleFunc("/worklogs/clock-in", workLogHandler.ClockIn).Methods("POST")
	api.HandleFunc("/worklogs/clock-out", workLogHandler.ClockOut).Methods("POST")
	api.HandleFunc("/worklogs", workLogHandler.List).Methods("GET")
	api.HandleFunc("/worklogs/summary", workLogHandler.Summary).Methods("GET")

	api.HandleFunc("/audit", auditHandler.List).Methods("GET")
	api.HandleFunc("/jira/sync", jiraHandler.TriggerSync).Methods("POST")

	// WebSocket route for real-time board updates
	api.HandleFunc("/ws", boardHandler.HandleWebSocket)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      c.Handler(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Server starting on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// registerRPCs exposes board operations through the generic proxy, the way
// table-proxy clients call stored procedures.
func registerRPCs(proxy *database.Proxy, board *services.BoardService, workLogs *database.WorkLogStore) {
	proxy.RegisterRPC("move_task", func(ctx context.Context, actor string, params map[string]any) (any, error) {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("invalid move params: %w", err)
		}
		var req database.MoveRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("invalid move params: %w", err)
		}
		req.ActorEmail = actor
		return board.Move(ctx, req)
	})

	proxy.RegisterRPC("board_summary", func(ctx context.Context, actor string, params map[string]any) (any, error) {
		projectID, _ := params["project_id"].(string)
		teamID, _ := params["team_id"].(string)
		if projectID == "" || teamID == "" {
			return nil, fmt.Errorf("project_id and team_id are required")
		}
		b, err := board.Load(ctx, projectID, teamID, false)
		if err != nil {
			return nil, err
		}
		summary := make(map[string]int, len(b.Columns))
		for _, col := range b.Columns {
			summary[col.Name] = len(col.Tasks)
		}
		return summary, nil
	})

	proxy.RegisterRPC("worklog_summary", func(ctx context.Context, actor string, params map[string]any) (any, error) {
		teamID, _ := params["team_id"].(string)
		if teamID == "" {
			return nil, fmt.Errorf("team_id is required")
		}
		from, to, err := summaryRange(params)
		if err != nil {
			return nil, err
		}
		return workLogs.MemberMinutes(ctx, teamID, from, to)
	})
}

// summaryRange parses optional from/to params (YYYY-MM-DD), defaulting to
// the last 30 days.
func summaryRange(params map[string]any) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 1)

	if raw, _ := params["from"].(string); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date, want YYYY-MM-DD")
		}
		from = parsed
	}
	if raw, _ := params["to"].(string); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date, want YYYY-MM-DD")
		}
		to = parsed
	}
	return from, to, nil
}

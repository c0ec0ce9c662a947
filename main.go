package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/internal/cron"
	"github.com/customeros/vmail/internal/database"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/repository"
	"github.com/customeros/vmail/server"
	"github.com/customeros/vmail/services"
)

func main() {
	app := &cli.App{
		Name:  "vmail",
		Usage: "disposable inbox service",
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Start the HTTP API, the SMTP listener and the cron jobs",
				Action: runServer,
			},
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: runMigrate,
			},
			{
				Name:  "cleanup",
				Usage: "Delete the oldest emails beyond MAX_EMAILS once",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max", Usage: "override MAX_EMAILS"},
				},
				Action: runCleanup,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}
	db, err := database.NewConnection(cfg.DatabaseConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("database initialization failed: %w", err)
	}
	return cfg, db, nil
}

func runServer(_ *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}
	if err = srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	log.Println("Shutdown complete")
	return nil
}

func runMigrate(_ *cli.Context) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	if err = database.MigrateDB(db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func runCleanup(c *cli.Context) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	svcs, err := services.InitServices(cfg, appLogger, repository.InitRepositories(db))
	if err != nil {
		return err
	}
	defer svcs.Close()

	maxEmails := cfg.RetentionConfig.MaxEmails
	if c.IsSet("max") {
		maxEmails = c.Int("max")
	}

	unlock := cron.LockRetention()
	defer unlock()

	result, err := svcs.RetentionJanitor.Run(context.Background(), maxEmails)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Printf("candidates=%d deleted=%d failed=%d\n", result.Candidates, result.Deleted, len(result.Failed))
	return nil
}

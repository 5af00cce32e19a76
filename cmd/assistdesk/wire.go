package main

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/app/controllers"
	"github.com/assistdesk/assistdesk/app/repository"
	apiv1 "github.com/assistdesk/assistdesk/internal/api/v1"
	"github.com/assistdesk/assistdesk/internal/pkg/accounts"
	"github.com/assistdesk/assistdesk/internal/pkg/assistant"
	"github.com/assistdesk/assistdesk/internal/pkg/audit"
	"github.com/assistdesk/assistdesk/internal/pkg/auditarchive"
	"github.com/assistdesk/assistdesk/internal/pkg/cache"
	"github.com/assistdesk/assistdesk/internal/pkg/database"
	"github.com/assistdesk/assistdesk/internal/pkg/jobqueue"
	"github.com/assistdesk/assistdesk/internal/pkg/ledger"
	"github.com/assistdesk/assistdesk/internal/pkg/mail"
	"github.com/assistdesk/assistdesk/internal/pkg/router"
	"github.com/assistdesk/assistdesk/internal/pkg/session"
	"github.com/assistdesk/assistdesk/internal/pkg/statistics"
	"github.com/assistdesk/assistdesk/internal/pkg/subscription"
)

// wire connects the stores, builds the services and registers job handlers.
func wire(ctx context.Context) router.Deps {
	database.SetupDatabase()
	cache.SetupCache()
	session.NewSessionStore()

	db := database.GetDB()
	rdb := cache.GetClient()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()

	recorder := audit.NewRecorder(repos.Activity, queue, mail.NewOpsAlerter(mail.LoadConfig()))
	credits := ledger.NewService(repos.Credits, recorder)
	subs := subscription.NewService(repos.Subscriptions, recorder, rdb)
	users := accounts.NewService(repos.Users, recorder, credits)
	assistants := assistant.NewService(repos.Assistants, recorder)
	stats := statistics.NewService(repos.Statistics, rdb)

	var uploader auditarchive.Uploader
	archiveCfg, err := auditarchive.LoadConfig()
	if err != nil {
		log.Errorf("[AuditArchive] %v", err)
	} else if archiveCfg.IsEnabled() {
		client, err := auditarchive.NewClient(ctx, archiveCfg)
		if err != nil {
			log.Errorf("[AuditArchive] disabled: %v", err)
		} else {
			uploader = client
		}
	}
	exporter := auditarchive.NewExporter(recorder, uploader)

	recorder.RegisterJobs(queue)
	subs.RegisterJobs(queue)
	exporter.RegisterJobs(queue)

	controllers.InitServices(&controllers.Services{
		Accounts:      users,
		Credits:       credits,
		Subscriptions: subs,
		Assistants:    assistants,
		Activity:      recorder,
		Archive:       exporter,
		Analytics:     stats,
		Jobs:          manager,
		Queue:         queue,
	})

	return router.Deps{
		APIKeys:        users,
		LimiterStorage: session.NewStorage(2),
		Probes: map[string]apiv1.Probe{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"cache": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		},
	}
}

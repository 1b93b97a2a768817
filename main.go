package main

import (
	"log"

	api "tdp-backend/cmd/api"
	authdomain "tdp-backend/internal/auth/domain"
	authRepo "tdp-backend/internal/auth/repository"
	authUsecase "tdp-backend/internal/auth/usecase"
	triageDelivery "tdp-backend/internal/triage/delivery"
	triagedomain "tdp-backend/internal/triage/domain"
	triageRepo "tdp-backend/internal/triage/repository"
	triageUsecase "tdp-backend/internal/triage/usecase"
	"tdp-backend/pkg/config"
	"tdp-backend/pkg/database"
	"tdp-backend/pkg/graph"
	"tdp-backend/pkg/openai"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&triagedomain.Inbox{},
		&triagedomain.SyncCursor{},
		&triagedomain.Thread{},
		&triagedomain.EmailMessage{},
		&triagedomain.Attachment{},
		&triagedomain.Draft{},
		&triagedomain.Escalation{},
		&triagedomain.AuditLog{},
		&triagedomain.Case{},
		&triagedomain.Note{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(db)
	inboxRepo := triageRepo.NewInboxRepository(db)
	threadRepo := triageRepo.NewThreadRepository(db)
	messageRepo := triageRepo.NewMessageRepository(db)
	attachmentRepo := triageRepo.NewAttachmentRepository(db)
	draftRepo := triageRepo.NewDraftRepository(db)
	escalationRepo := triageRepo.NewEscalationRepository(db)
	auditRepo := triageRepo.NewAuditLogRepository(db)
	caseRepo := triageRepo.NewCaseRepository(db)
	noteRepo := triageRepo.NewNoteRepository(db)

	// Seed actors and watched inboxes
	if err := seed(userRepo, inboxRepo, cfg); err != nil {
		log.Fatal("Failed to seed database:", err)
	}

	// Initialize external services
	graphService := graph.NewService(cfg.GraphTenantID, cfg.GraphClientID, cfg.GraphClientSecret)
	aiService := openai.NewService(cfg.OpenAIAPIKey)

	// Initialize use cases (dependency injection)
	authUc := authUsecase.NewAuthUsecase(userRepo, cfg)
	ingestionUc := triageUsecase.NewIngestionUsecase(inboxRepo, threadRepo, messageRepo, attachmentRepo, caseRepo, auditRepo, graphService, cfg.IngestLookbackDays)
	extractionUc := triageUsecase.NewExtractionUsecase(attachmentRepo, threadRepo, caseRepo, auditRepo, graphService, aiService, cfg.OpenAIModelInline)
	classificationUc := triageUsecase.NewClassificationUsecase(threadRepo, attachmentRepo, noteRepo, auditRepo, aiService, cfg.OpenAIModelInline)
	draftUc := triageUsecase.NewDraftUsecase(threadRepo, draftRepo, attachmentRepo, auditRepo, graphService, aiService, cfg.OpenAIModelDraft)
	draftActionsUc := triageUsecase.NewDraftActionsUsecase(draftRepo, threadRepo, auditRepo, graphService)
	escalationUc := triageUsecase.NewEscalationUsecase(threadRepo, draftRepo, escalationRepo, auditRepo, graphService, map[triagedomain.Department]string{
		triagedomain.DepartmentStaffing:       cfg.EscalationInboxStaffing,
		triagedomain.DepartmentCaseManagement: cfg.EscalationInboxServices,
		triagedomain.DepartmentBilling:        cfg.EscalationInboxBilling,
	})
	stageUc := triageUsecase.NewStageUsecase(threadRepo)
	slaUc := triageUsecase.NewSLAUsecase(threadRepo)

	// Start the pipeline workers
	worker := triageUsecase.NewPipelineWorker(
		ingestionUc, extractionUc, classificationUc, draftUc, slaUc,
		cfg.IngestInterval, cfg.ExtractInterval, cfg.ClassifyInterval, cfg.DraftInterval,
	)
	worker.Start()
	defer worker.Stop()

	// Initialize HTTP handler and routes
	triageHandler := triageDelivery.NewTriageHandler(
		ingestionUc, extractionUc, classificationUc, draftUc,
		draftActionsUc, escalationUc, stageUc, slaUc,
		threadRepo, draftRepo, attachmentRepo, auditRepo, noteRepo, caseRepo,
		graphService,
	)

	r := gin.Default()
	api.SetupRoutes(r, authUc, triageHandler)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

package api

import (
	"net/http"

	authDelivery "tdp-backend/internal/auth/delivery"
	authUsecase "tdp-backend/internal/auth/usecase"
	triageDelivery "tdp-backend/internal/triage/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUc authUsecase.AuthUsecase, triageHandler *triageDelivery.TriageHandler) {
	authHandler := authDelivery.NewAuthHandler(authUc)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", authDelivery.AuthMiddleware(authUc), authHandler.Me)
		}

		// Pipeline triggers (protected) - same passes the workers run
		authed := api.Group("")
		authed.Use(authDelivery.AuthMiddleware(authUc))
		{
			authed.POST("/ingest/run", triageHandler.RunIngest)
			authed.POST("/extract/run", triageHandler.RunExtract)
			authed.POST("/classify/run", triageHandler.RunClassify)
			authed.POST("/drafts/run", triageHandler.RunDraft)

			authed.POST("/escalations", triageHandler.TriggerEscalation)

			authed.GET("/threads", triageHandler.ListThreads)
			authed.GET("/threads/:id", triageHandler.GetThread)
			authed.PATCH("/threads/:id", triageHandler.UpdateThread)
			authed.PATCH("/threads/:id/stage", triageHandler.ChangeStage)
			authed.GET("/threads/:id/drafts", triageHandler.ListThreadDrafts)
			authed.GET("/threads/:id/audit", triageHandler.ListThreadAudit)
			authed.GET("/threads/:id/notes", triageHandler.ListThreadNotes)
			authed.POST("/threads/:id/notes", triageHandler.CreateThreadNote)

			authed.POST("/drafts/:id/edit", triageHandler.EditDraft)
			authed.POST("/drafts/:id/approve", triageHandler.ApproveDraft)
			authed.POST("/drafts/:id/send", triageHandler.SendDraft)
			authed.POST("/drafts/:id/discard", triageHandler.DiscardDraft)

			authed.GET("/attachments/:id/download", triageHandler.DownloadAttachment)

			authed.GET("/sla", triageHandler.GetSLA)
			authed.GET("/cases", triageHandler.ListCases)
		}
	}
}

package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/assistdesk/assistdesk/app/controllers"
)

// RegisterHandlers mounts the v1 routes on r. auth runs before every
// authenticated route and admin before every /admin route.
func RegisterHandlers(r fiber.Router, s *APIServer, auth []fiber.Handler, admin ...fiber.Handler) {
	r.Get("/ping", s.GetPing)
	r.Get("/health", s.GetHealth)

	authGroup := r.Group("/auth")
	authGroup.Post("/login", controllers.HandleAuthLogin)
	authGroup.Post("/logout", controllers.HandleAuthLogout)
	me := append(append([]fiber.Handler{}, auth...), controllers.HandleAuthMe)
	authGroup.Get("/me", me...)

	guarded := append(append([]fiber.Handler{}, auth...), admin...)
	a := r.Group("/admin", guarded...)

	// users
	a.Get("/users", controllers.HandleAdminUsers)
	a.Post("/users", controllers.HandleAdminUserCreate)
	a.Post("/users/bulk", controllers.HandleAdminUsersBulk)
	a.Post("/users/sync", controllers.HandleAdminUsersSync)
	a.Get("/users/:id", controllers.HandleAdminUserGet)
	a.Patch("/users/:id", controllers.HandleAdminUserUpdate)
	a.Delete("/users/:id", controllers.HandleAdminUserDelete)
	a.Put("/users/:id/status", controllers.HandleAdminUserStatus)
	a.Put("/users/:id/role", controllers.HandleAdminUserRole)
	a.Get("/users/:id/api-keys", controllers.HandleAdminUserAPIKeys)
	a.Post("/users/:id/api-keys", controllers.HandleAdminUserAPIKeyCreate)
	a.Delete("/users/:id/api-keys/:keyId", controllers.HandleAdminUserAPIKeyRevoke)

	// credits
	a.Get("/users/:id/credits", controllers.HandleAdminCreditBalance)
	a.Post("/users/:id/credits/add", controllers.HandleAdminCreditAdd)
	a.Post("/users/:id/credits/deduct", controllers.HandleAdminCreditDeduct)
	a.Get("/users/:id/credits/transactions", controllers.HandleAdminCreditTransactions)
	a.Post("/credits/sync", controllers.HandleAdminCreditSync)

	// subscriptions
	a.Get("/plans", controllers.HandleAdminPlans)
	a.Get("/users/:id/subscription", controllers.HandleAdminSubscriptionGet)
	a.Post("/users/:id/subscription/change", controllers.HandleAdminSubscriptionChange)
	a.Post("/users/:id/subscription/cancel", controllers.HandleAdminSubscriptionCancel)
	a.Post("/users/:id/subscription/pause", controllers.HandleAdminSubscriptionPause)
	a.Post("/users/:id/subscription/resume", controllers.HandleAdminSubscriptionResume)
	a.Put("/users/:id/subscription/renewal", controllers.HandleAdminSubscriptionRenewal)
	a.Get("/users/:id/subscription/history", controllers.HandleAdminSubscriptionHistory)
	a.Get("/users/:id/subscription/simulations", controllers.HandleAdminSubscriptionSimulations)
	a.Post("/subscriptions/reconcile", controllers.HandleAdminSimulationsReconcile)
	a.Post("/subscriptions/sync", controllers.HandleAdminSubscriptionsSync)

	// assistants
	a.Get("/assistants", controllers.HandleAdminAssistants)
	a.Post("/assistants", controllers.HandleAdminAssistantCreate)
	a.Post("/assistants/bulk-state", controllers.HandleAdminAssistantsBulkState)
	a.Get("/assistants/:id", controllers.HandleAdminAssistantGet)
	a.Put("/assistants/:id", controllers.HandleAdminAssistantUpdate)
	a.Put("/assistants/:id/state", controllers.HandleAdminAssistantState)
	a.Delete("/assistants/:id", controllers.HandleAdminAssistantDelete)
	a.Get("/knowledge-banks", controllers.HandleAdminKnowledgeBanks)

	// activity log
	a.Get("/activity", controllers.HandleAdminActivity)
	a.Post("/activity/export", controllers.HandleAdminActivityExport)

	// dashboard
	a.Get("/analytics/users", controllers.HandleAdminUserAnalytics)
	a.Get("/analytics/subscriptions", controllers.HandleAdminSubscriptionAnalytics)
	a.Get("/queue/stats", controllers.HandleAdminQueueStats)
}

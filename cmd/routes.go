package cmd

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-checkin/internal/handlers"
	"ticket-checkin/migrations"
	"ticket-checkin/utils"
)

func registerRoutes(e *core.ServeEvent, env *environment) {
	eventHandler := handlers.NewEventHandler(env.events)
	ticketHandler := handlers.NewTicketHandler(env.issuer, env.admin)
	verifyHandler := handlers.NewVerifyHandler(env.arbiter)

	// Staff endpoints
	staff := e.Router.Group("/api/v1")
	staff.Bind(apis.RequireAuth(migrations.StaffCollection, core.CollectionNameSuperusers))

	staff.POST("/events", eventHandler.CreateEvent)
	staff.GET("/events", eventHandler.ListEvents)
	staff.GET("/events/{eventId}", eventHandler.GetEvent)
	staff.GET("/events/{eventId}/stats", eventHandler.GetStats)
	staff.GET("/events/{eventId}/logs", eventHandler.GetLogs)

	staff.POST("/tickets", ticketHandler.IssueTicket)
	staff.GET("/tickets", ticketHandler.ListTickets)
	staff.GET("/tickets/{ticketId}", ticketHandler.GetTicket)
	staff.PATCH("/tickets/{ticketId}", ticketHandler.UpdateTicket)

	staff.POST("/verify", verifyHandler.Verify)

	// Public registration
	if env.cfg.PublicRegistration {
		publicHandler := handlers.NewPublicHandler(env.events, env.issuer)

		public := e.Router.Group("/api/v1/public")
		public.GET("/events/{eventId}", publicHandler.GetEvent)

		register := public.POST("/tickets", publicHandler.Register)
		if env.limiter != nil {
			register.Bind(env.limiter.Middleware())
		}
	}

	// Health check
	e.Router.GET("/health", func(re *core.RequestEvent) error {
		if env.redis != nil {
			if err := utils.RedisHealthCheck(re.Request.Context(), env.redis); err != nil {
				return re.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
		}
		return re.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
			"store":  env.cfg.StoreDriver,
		})
	})
}

package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/jmoiron/sqlx"

	"github.com/wibowo/expense-report/internal/auth"
	"github.com/wibowo/expense-report/internal/expense"
	"github.com/wibowo/expense-report/internal/taxonomy"
	"github.com/wibowo/expense-report/internal/title"
	"github.com/wibowo/expense-report/internal/transport/middleware"
	"github.com/wibowo/expense-report/internal/transport/swagger"
)

// RegisterAllRoutes wires the whole HTTP surface. Paths keep their trailing
// slashes; the browser client sends them that way.
func RegisterAllRoutes(router *chi.Mux, db *sqlx.DB, allowedOrigins string, authHandler *auth.Handler, titleHandler *title.Handler, expenseHandler *expense.Handler, taxonomyHandler *taxonomy.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/health/", healthHandler.healthCheckHandler)
		r.Get("/ping/", healthHandler.pingHandler)

		// Session
		r.Post("/token/", authHandler.Token)

		// Protected routes
		r.Group(func(pr chi.Router) {
			pr.Use(authHandler.AuthMiddleware)

			pr.Post("/logout/", authHandler.Logout)
			pr.Get("/users/me/", authHandler.Me)

			pr.Get("/taxonomy/", taxonomyHandler.GetTaxonomy)
			pr.Get("/search/", titleHandler.Search)

			pr.Route("/expense-titles", func(tr chi.Router) {
				tr.Get("/", titleHandler.ListTitles)
				tr.Post("/", titleHandler.CreateTitle)
				tr.Post("/import/", titleHandler.Import)
				tr.Delete("/{id}/", titleHandler.DeleteTitle)
				tr.Post("/{id}/copy/", titleHandler.CopyTitle)
				tr.Get("/{id}/export/", titleHandler.Export)
			})

			pr.Route("/expense-forms", func(er chi.Router) {
				er.Get("/", expenseHandler.ListForms)
				er.Post("/", expenseHandler.CreateForm)
				er.Get("/{id}/", expenseHandler.GetForm)
				er.Patch("/{id}/", expenseHandler.UpdateForm)
				er.Delete("/{id}/", expenseHandler.DeleteForm)
				er.Post("/{id}/send_for_approval/", expenseHandler.SendForApproval)
				er.Post("/{id}/revoke_approval/", expenseHandler.RevokeApproval)
				er.Post("/{id}/add_attachments/", expenseHandler.AddAttachments)
				er.Delete("/{id}/delete_attachment/", expenseHandler.DeleteAttachment)

				// Admin review routes
				er.Group(func(ar chi.Router) {
					ar.Use(authHandler.RequireAdmin)
					ar.Patch("/{id}/update_status/", expenseHandler.UpdateStatus)
					ar.Post("/bulk_update/", expenseHandler.BulkUpdate)
				})
			})
		})
	})
}

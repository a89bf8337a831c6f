package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
)

func (app *application) JWTMiddlewareWithRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return app.JWTMiddleware(next, requiredRole)
	}
}

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	adminAuthMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole("admin"))

	mux := pat.New()

	// Payments
	mux.Post("/payments/initiate", standardMiddleware.ThenFunc(app.paymentHandler.InitiatePayment))
	mux.Post("/payments/confirm", standardMiddleware.ThenFunc(app.paymentHandler.ConfirmPayment))
	mux.Post("/payments/webhook", standardMiddleware.ThenFunc(app.paymentHandler.Webhook))
	mux.Get("/payments/bill/:bill_id", standardMiddleware.ThenFunc(app.paymentHandler.GetPaymentsByBill))

	// Bills
	mux.Get("/bill/:id", standardMiddleware.ThenFunc(app.billHandler.GetBillByID))
	mux.Get("/bills/account/:type/:id", standardMiddleware.ThenFunc(app.billHandler.GetBillsByAccount))

	// Accounts
	mux.Get("/account/:type/:id/balance", standardMiddleware.ThenFunc(app.accountHandler.GetBalance))

	// Admin
	mux.Post("/admin/sign_in", standardMiddleware.ThenFunc(app.authHandler.SignIn))
	mux.Post("/admin/account", adminAuthMiddleware.ThenFunc(app.accountHandler.CreateAccount))
	mux.Post("/admin/bill", adminAuthMiddleware.ThenFunc(app.billHandler.CreateBill))
	mux.Get("/admin/payments", adminAuthMiddleware.ThenFunc(app.paymentHandler.ListRecentPayments))

	return mux
}

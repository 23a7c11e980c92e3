package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/api/handlers"
	"github.com/Cheertaboi/Billing-system-shipping-microservice/internal/service"
)

// NewRouter builds the HTTP router for the shipping-service
func NewRouter(svc *service.ShippingService, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	shippingHandler := handlers.NewShippingHandler(svc, log)

	r.Route("/shipping", func(r chi.Router) {
		r.Post("/quote", shippingHandler.QuoteItems)
		r.Post("/quotes/batch", shippingHandler.QuoteBatch)
		r.Get("/carts/{userID}/quote", shippingHandler.QuoteCart)
	})

	r.Post("/orders/{orderID}/shipping", shippingHandler.QuoteOrder)

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

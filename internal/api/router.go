// Package api exposes the job handlers over HTTP for operators and
// provider callbacks.
package api

import (
	"context"
	"net/http"
	"time"

	"stream-monetization-workers/internal/common/logger"
	createcampaign "stream-monetization-workers/internal/workers/campaign/create-campaign"
	processnotifications "stream-monetization-workers/internal/workers/campaign/process-notifications"
	updatedeliverystatus "stream-monetization-workers/internal/workers/campaign/update-delivery-status"
	analyzemessage "stream-monetization-workers/internal/workers/chat-analysis/analyze-message"
	generatesuggestions "stream-monetization-workers/internal/workers/chat-analysis/generate-suggestions"
	resolvesuggestion "stream-monetization-workers/internal/workers/chat-analysis/resolve-suggestion"
	confirmpayment "stream-monetization-workers/internal/workers/payment/confirm-payment"
	createpaymentintent "stream-monetization-workers/internal/workers/payment/create-payment-intent"
	refundpayment "stream-monetization-workers/internal/workers/payment/refund-payment"
	scoreviewerbehavior "stream-monetization-workers/internal/workers/viewer/score-viewer-behavior"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Executor is the synchronous entry point every job handler exposes.
type Executor[I, O any] interface {
	Execute(ctx context.Context, input *I) (*O, error)
}

// Handlers holds one executor per route. Nil entries answer 503.
type Handlers struct {
	AnalyzeMessage      Executor[analyzemessage.Input, analyzemessage.Output]
	GenerateSuggestions Executor[generatesuggestions.Input, generatesuggestions.Output]
	ResolveSuggestion   Executor[resolvesuggestion.Input, resolvesuggestion.Output]
	ScoreViewer         Executor[scoreviewerbehavior.Input, scoreviewerbehavior.Output]
	CreateCampaign      Executor[createcampaign.Input, createcampaign.Output]
	ProcessSends        Executor[processnotifications.Input, processnotifications.Output]
	UpdateSendStatus    Executor[updatedeliverystatus.Input, updatedeliverystatus.Output]
	CreatePaymentIntent Executor[createpaymentintent.Input, createpaymentintent.Output]
	ConfirmPayment      Executor[confirmpayment.Input, confirmpayment.Output]
	RefundPayment       Executor[refundpayment.Input, refundpayment.Output]
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Handlers       Handlers
	Readiness      map[string]ReadinessCheck
	RequestTimeout time.Duration
	Logger         logger.Logger
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger.WithFields(map[string]interface{}{"component": "http"})
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	h := opts.Handlers

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))

	router.Get("/health", health)
	router.Get("/ready", ready(opts.Readiness))
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(timeout))
		api.Use(render.SetContentType(render.ContentTypeJSON))

		api.Post("/chat/analyze", endpoint(log, h.AnalyzeMessage, nil))
		api.Post("/chat/suggestions", endpoint(log, h.GenerateSuggestions, nil))
		api.Post("/suggestions/{id}/resolve", endpoint(log, h.ResolveSuggestion,
			func(r *http.Request, in *resolvesuggestion.Input) { in.SuggestionID = chi.URLParam(r, "id") }))
		api.Post("/viewers/{id}/score", endpoint(log, h.ScoreViewer,
			func(r *http.Request, in *scoreviewerbehavior.Input) { in.ViewerID = chi.URLParam(r, "id") }))

		api.Post("/campaigns", endpoint(log, h.CreateCampaign, nil))
		api.Post("/notifications/process", endpoint(log, h.ProcessSends, nil))
		api.Post("/notifications/status", endpoint(log, h.UpdateSendStatus, nil))

		api.Post("/payments/intents", endpoint(log, h.CreatePaymentIntent, nil))
		api.Post("/payments/confirm", endpoint(log, h.ConfirmPayment, nil))
		api.Post("/conversions/{id}/refund", endpoint(log, h.RefundPayment,
			func(r *http.Request, in *refundpayment.Input) { in.ConversionID = chi.URLParam(r, "id") }))
	})

	return router
}

func health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func ready(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		failures := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failures[name] = err.Error()
			}
		}

		if len(failures) > 0 {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]interface{}{"status": "not_ready", "failures": failures})
			return
		}
		render.JSON(w, r, map[string]string{
			"status": "ready",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Debug("http request", map[string]interface{}{
				"requestId": middleware.GetReqID(r.Context()),
				"method":    r.Method,
				"path":      r.URL.Path,
				"status":    ww.Status(),
				"bytes":     ww.BytesWritten(),
				"duration":  time.Since(start).String(),
			})
		})
	}
}

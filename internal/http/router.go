package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// NewRouter 注册操作端路由
func NewRouter(h *ConsoleHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(logger))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/survivors", func(r chi.Router) {
			r.Get("/", h.ListSurvivors)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetSurvivor)
				r.Delete("/", h.ReportFalsePositive)
				r.Get("/analysis", h.GetAnalysis)
				r.Get("/actions", h.GetHistory)
				r.Post("/dispatch", h.Dispatch)
			})
		})

		r.Get("/selection", h.GetSelection)
		r.Put("/selection", h.SaveSelection)

		r.Get("/multiview", h.GetMultiView)
		r.Get("/sensors/{sensorId}/signal", h.GetSignal)

		r.Get("/wifi-sensors", h.ListWifiSensors)
		r.Get("/wifi-sensors/{id}", h.GetWifiSensor)
		r.Get("/cctvs", h.ListCctvs)
		r.Get("/cctvs/{id}", h.GetCctv)

		r.Route("/recent-survivors", func(r chi.Router) {
			r.Get("/", h.ListRecentSurvivors)
			r.Get("/export", h.ExportRecentSurvivors)
			r.Delete("/{id}", h.DeleteRecentSurvivor)
		})
	})

	return r
}

// accessLog 请求日志（zap）
func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

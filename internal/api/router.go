package api

import "net/http"

func Router(h *Handler, authUser, authPass string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/scheduler/status", h.SchedulerStatus)
	protected.HandleFunc("POST /v1/scheduler/start", h.SchedulerStart)
	protected.HandleFunc("POST /v1/scheduler/stop", h.SchedulerStop)

	protected.HandleFunc("POST /v1/messages", h.CreateMessage)
	protected.HandleFunc("GET /v1/messages/sent", h.ListSentMessages)
	protected.HandleFunc("GET /v1/messages/{id}", h.GetMessage)

	protected.HandleFunc("POST /v1/dispatch", h.Dispatch)

	mux.Handle("/v1/", BasicAuth(authUser, authPass, protected))

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("webhook-messaging"))
	})

	return mux
}

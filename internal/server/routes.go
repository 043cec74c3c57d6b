package server

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(progressHandler *ProgressService, adminHandler *AdminService, frontendOrigin string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", progressHandler.Health).Methods(http.MethodGet)
	r.HandleFunc("/ready", progressHandler.Ready).Methods(http.MethodGet)
	r.HandleFunc("/avance/{dni}", progressHandler.GetProgress).Methods(http.MethodGet)
	r.HandleFunc("/premios/{dni}", progressHandler.GetPrizePoints).Methods(http.MethodGet)

	r.Handle("/admin/cargar-base", adminHandler.RequireAdminToken(http.HandlerFunc(adminHandler.UploadBase))).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{frontendOrigin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", AdminTokenHeader}),
	)(r)
}

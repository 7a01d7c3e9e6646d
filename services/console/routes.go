package console

import (
	"net/http"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/middleware"
)

func (s *Service) registerRoutes() {
	s.RegisterStandardRoutes()

	router := s.Router()
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	writers := middleware.RequireRole(s.logger, middleware.RoleAdmin, middleware.RoleEditor)
	s.businesses.register(router, writers)
	s.customers.register(router, writers)

	router.HandleFunc("/api/index/drift", s.handleDrift).Methods(http.MethodGet)
}

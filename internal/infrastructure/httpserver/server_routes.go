package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/forgot-password", s.forgotPassword)
	auth.GET("/reset-password/:token", s.verifyResetToken)
	auth.POST("/reset-password", s.resetPassword)

	users := api.Group("/users")
	users.POST("", s.createUser)
}

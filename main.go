package main

import (
	"tutorbase/core/logger"
	"tutorbase/core/server"
)

// @title Tutorbase API
// @version 1.0
// @description Backend for the Tutorbase tutoring-business platform. The
// @description scheduling engine (recurring series, conflicts, attendees)
// @description lives under /api/v1/private/schedule-entries.

// @host localhost:7070
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Example: "Bearer {token}"

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", err)
	}
}

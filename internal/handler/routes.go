package handler

import "github.com/gin-gonic/gin"

// Handlers groups every HTTP handler the API mounts.
type Handlers struct {
	Timetables *TimetableHandler
	Schedules  *ScheduleHandler
	Jobs       *JobHandler
	Metrics    *MetricsHandler
}

// Register mounts the timetable API under api and the ambient endpoints on root.
func Register(root gin.IRouter, api gin.IRouter, h Handlers) {
	if h.Metrics != nil {
		root.GET("/metrics", h.Metrics.Prometheus)
		root.GET("/health", h.Metrics.Health)
		root.GET("/ready", h.Metrics.Ready)
	}

	timetables := api.Group("/timetables")
	if h.Timetables != nil {
		timetables.POST("/generate", h.Timetables.Generate)
		timetables.GET("/alternatives/:id", h.Timetables.Alternative)
		timetables.GET("/alternatives/:id/export", h.Timetables.Export)
		timetables.POST("/alternatives/:id/save", h.Timetables.Save)
		timetables.GET("/saved", h.Timetables.ListSaved)
		timetables.GET("/saved/:id", h.Timetables.GetSaved)
		timetables.POST("/saved/:id/publish", h.Timetables.Publish)
		timetables.DELETE("/saved/:id", h.Timetables.DeleteSaved)
	}
	if h.Jobs != nil {
		timetables.POST("/jobs", h.Jobs.Create)
		timetables.GET("/jobs/:id", h.Jobs.Get)
		timetables.GET("/jobs/:id/events", h.Jobs.Events)
		timetables.DELETE("/jobs/:id", h.Jobs.Cancel)
	}
	if h.Schedules != nil {
		timetables.POST("/schedules", h.Schedules.Create)
		timetables.GET("/schedules/:id", h.Schedules.Get)
		timetables.POST("/schedules/:id/moves", h.Schedules.Move)
	}
}

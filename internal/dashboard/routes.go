package dashboard

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

// listLimit bounds how many rows the history pages fetch.
const listLimit = 50

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, status StatusProvider, apiClient API, light bool) {
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	// Fresh per-request data so handlers can add to it freely.
	newData := func(page string) gin.H {
		return gin.H{"Page": page, "Light": light}
	}

	// Pages.
	router.GET("/", handleStatus(status, newData))
	router.GET("/patrols", handlePatrols(apiClient, newData))
	router.GET("/logs", handleLogs(apiClient, newData))
	router.GET("/admin/guards", handleGuards(apiClient, newData))
	router.GET("/admin/locations", handleLocations(apiClient, newData))

	// JSON and SSE endpoints.
	router.GET("/api/status", handleStatusJSON(status))
	router.GET("/api/events", handleSSE(status))
}

func handleStatus(status StatusProvider, newData func(string) gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := newData("status")
		data["Refresh"] = 5
		data["Status"] = statusView(status.Status())
		c.HTML(http.StatusOK, "status.html", data)
	}
}

func handlePatrols(apiClient API, newData func(string) gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := newData("patrols")
		patrols, err := apiClient.ListPatrols(c.Request.Context(), listLimit)
		if err != nil {
			data["Error"] = err.Error()
		} else {
			data["Patrols"] = patrolRows(patrols)
		}
		c.HTML(http.StatusOK, "patrols.html", data)
	}
}

func handleLogs(apiClient API, newData func(string) gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := newData("logs")
		logs, err := apiClient.ListLogs(c.Request.Context(), listLimit)
		if err != nil {
			data["Error"] = err.Error()
		} else {
			data["Logs"] = logRows(logs)
		}
		c.HTML(http.StatusOK, "logs.html", data)
	}
}

func handleGuards(apiClient API, newData func(string) gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := newData("guards")
		guards, err := apiClient.ListGuards(c.Request.Context())
		if err != nil {
			data["Error"] = err.Error()
		} else {
			data["Guards"] = guards
		}
		c.HTML(http.StatusOK, "guards.html", data)
	}
}

func handleLocations(apiClient API, newData func(string) gin.H) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := newData("locations")
		locations, err := apiClient.ListAdminLocations(c.Request.Context())
		if err != nil {
			data["Error"] = err.Error()
		} else {
			data["Locations"] = locationRows(locations)
		}
		c.HTML(http.StatusOK, "locations.html", data)
	}
}

func handleStatusJSON(status StatusProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, statusView(status.Status()))
	}
}

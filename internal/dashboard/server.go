// Package dashboard serves a read-only web view of the current patrol, the
// patrol history, the logbook, and the admin rosters. All remote data comes
// through the API client; the dashboard holds no state of its own.
package dashboard

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/omniwatch/omniwatch/internal/models"
	"github.com/omniwatch/omniwatch/internal/patrol"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed assets/*.css
var assetsFS embed.FS

// StatusProvider reports the live patrol session. *patrol.Manager satisfies it.
type StatusProvider interface {
	Status() patrol.Status
}

// API is the remote surface the dashboard reads from.
type API interface {
	ListPatrols(ctx context.Context, limit int) ([]models.Patrol, error)
	ListLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
	ListGuards(ctx context.Context) ([]models.Guard, error)
	ListAdminLocations(ctx context.Context) ([]models.Location, error)
}

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Status StatusProvider
	API    API
	Port   int
	Out    io.Writer
	Light  bool // render the light theme instead of the default dark one
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Status == nil {
		return fmt.Errorf("dashboard: status provider is required")
	}
	if opts.API == nil {
		return fmt.Errorf("dashboard: api client is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	tmpl, err := parseTemplates()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, opts.Status, opts.API, opts.Light)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl := template.New("").Funcs(template.FuncMap{
		"timeAgo":  TimeAgo,
		"hhmmss":   FormatClock,
		"datetime": formatDateTime,
	})
	tmpl, err := tmpl.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

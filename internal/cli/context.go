// Package cli provides the command-line interface for the scraper.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/omipheo/home-advisor-scraping/internal/app"
)

// SetApp stores the Application for commands to access.
func SetApp(cmd *cobra.Command, a *app.Application) {
	globalApp = a
}

// GetApp retrieves the Application.
func GetApp() *app.Application {
	return globalApp
}

var globalApp *app.Application

package main

import (
	"github.com/mghassanj/cbahi-clinical-privileges-sub001/internal/app"
)

func main() {
	// Initialize application
	application, err := app.Initialize("")
	if err != nil {
		panic(err)
	}

	// Start server
	app.StartServer(application)
}

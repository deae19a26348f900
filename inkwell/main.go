package main

import (
	"context"
	"log"
	"os"
)

func main() {
	configureLogging()

	ctx := context.Background()
	app := newApp(ctx,
		ConfigureHTTPServerFromEnv(),
		ConfigureNeo4jFromEnv(),
	)
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

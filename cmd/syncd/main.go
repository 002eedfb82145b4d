package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/mirrormatch/cloudsync/internal/app"
)

// syncd hydrates an account's cloud state and keeps it live via the event
// feed until interrupted.
func main() {
	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	userID, err := uuid.Parse(os.Getenv("SYNC_USER_ID"))
	if err != nil {
		a.Log.Fatal("SYNC_USER_ID must be a valid account id", "error", err)
	}

	a.Hydration.Enable(userID)
	status := a.Hydration.Hydrate(context.Background())
	if status.Err != nil {
		// Degrade rather than block: local play still works.
		a.Log.Warn("hydration failed, playing locally", "error", status.Err)
	} else if landing, ok := a.Hydration.ConsumeLandingPath(); ok {
		a.Log.Info("landing resolved", "landing", landing)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	a.Log.Info("shutting down")
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mirrormatch/cloudsync/internal/app"
	"github.com/mirrormatch/cloudsync/internal/localstate"
	"github.com/mirrormatch/cloudsync/internal/migration"
)

// promote runs the one-time local→cloud migration for a snapshot file.
// Progress is persisted next to the snapshot so an interrupted run can be
// resumed with the exact counts the prior attempt reached.
func main() {
	var (
		snapshotPath = flag.String("snapshot", "", "path to the local snapshot JSON")
		progressPath = flag.String("progress", "", "path to the resume progress file (read if present, written on exit)")
		username     = flag.String("username", "", "new account username")
		password     = flag.String("password", "", "new account password")
	)
	flag.Parse()

	if *snapshotPath == "" || *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: promote -snapshot file.json -username u -password p [-progress progress.json]")
		os.Exit(2)
	}

	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	snap, err := localstate.LoadSnapshot(*snapshotPath)
	if err != nil {
		a.Log.Fatal("load snapshot", "error", err)
	}

	resume := readProgress(*progressPath)
	result, err := a.Migration.Run(context.Background(), snap, migration.Credentials{
		Username: *username,
		Password: *password,
	}, resume)
	if result != nil && *progressPath != "" {
		writeProgress(*progressPath, result.Progress)
	}
	if err != nil {
		a.Log.Error("migration aborted; re-run with -progress to resume", "error", err)
		os.Exit(1)
	}
	a.Log.Info("migration complete", "user_id", result.Session.UserID.String())
}

func readProgress(path string) migration.Progress {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var p migration.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return p
}

func writeProgress(path string, p migration.Progress) {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(path, raw, 0o644)
}

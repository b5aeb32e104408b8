package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/workoutsync/internal/client"
	"github.com/claude/workoutsync/internal/history"
	"github.com/claude/workoutsync/internal/models"
	"github.com/claude/workoutsync/internal/session"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "workout service URL (e.g. https://gym.tail1234.ts.net)")
	token := flag.String("token", os.Getenv("WORKOUTSYNC_SERVICE_TOKEN"), "bearer token for the workout service")
	date := flag.String("date", "", "day to list (YYYY-MM-DD), defaults to today")
	id := flag.String("id", "", "show a single workout instead of a day")
	dir := flag.String("dir", "", "history cache directory (default ~/.workoutsync)")
	verbose := flag.Bool("v", false, "debug logging")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("workoutsync-history", Version)
		return
	}

	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: workoutsync-history -server <URL> [-date YYYY-MM-DD | -id <workout id>]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		*dir = filepath.Join(homeDir, ".workoutsync")
	}

	cache, err := history.Open(*dir, client.New(*serverURL, client.WithToken(*token)), log)
	if err != nil {
		log.Error("failed to open history cache", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *id != "" {
		w, err := cache.Get(ctx, *id)
		if err != nil {
			log.Error("lookup failed", "id", *id, "error", err)
			os.Exit(1)
		}
		printWorkout(w)
		return
	}

	if *date == "" {
		*date = time.Now().Format(time.DateOnly)
	}
	workouts, err := cache.List(ctx, *date)
	if err != nil {
		log.Error("listing failed", "date", *date, "error", err)
		os.Exit(1)
	}
	if len(workouts) == 0 {
		fmt.Printf("No workouts on %s\n", *date)
		return
	}
	for i := range workouts {
		printWorkout(&workouts[i])
	}
}

func printWorkout(w *models.WorkoutAPI) {
	s, err := session.FromAPI(w)
	if err != nil {
		fmt.Printf("%s: unreadable workout: %v\n", w.ID, err)
		return
	}

	fmt.Println()
	fmt.Printf("=== %s  %s  (%s) ===\n", s.Date, s.ID, s.Status())
	if s.StartedAt != nil && s.FinishedAt != nil {
		fmt.Printf("  Duration:  %s\n", s.FinishedAt.Sub(*s.StartedAt).Round(time.Minute))
	}
	fmt.Printf("  Completed: %d sets\n", s.CompletedSets())
	for _, e := range s.Exercises {
		fmt.Printf("\n  %s\n", e.Name)
		for i, set := range e.Sets {
			mark := " "
			if set.Completed {
				mark = "x"
			}
			weight := session.FormatValue(session.FieldWeight, set)
			if weight == "" {
				weight = "BW"
			}
			reps := session.FormatValue(session.FieldReps, set)
			if reps == "" {
				reps = "-"
			}
			fmt.Printf("    [%s] %d: %s x %s\n", mark, i+1, reps, weight)
		}
	}
	fmt.Println()
}

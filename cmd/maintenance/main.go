package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dimitrije/teamjoin/internal/config"
	"github.com/dimitrije/teamjoin/internal/database"
	"github.com/dimitrije/teamjoin/internal/firebase"
	"github.com/dimitrije/teamjoin/internal/services"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const usage = `Usage: maintenance [flags] <command> [args]

Commands:
  cleanup-orphans          delete auth accounts that have no profile
  fix-pro-user <email>     repair the profile of a team owner
  show-session <id>        print a join session and its transitions
  purge-sessions           delete join sessions older than -older-than

cleanup-orphans and fix-pro-user need FIREBASE_PROJECT_ID (or
FIREBASE_FUNCTIONS_URL) and an admin ID token. show-session and
purge-sessions need DATABASE_URL. JWT_SECRET is not used.

Flags:
`

func main() {
	idToken := flag.String("id-token", os.Getenv("ADMIN_ID_TOKEN"), "admin Firebase ID token")
	olderThan := flag.Duration("older-than", 30*24*time.Hour, "age of join sessions to purge")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	functions := firebase.NewFunctionsClient(cfg.Firebase.FunctionsBaseURL, cfg.Firebase.HTTPTimeout)

	switch cmd := flag.Arg(0); cmd {
	case "cleanup-orphans":
		requireFunctions(cfg)
		requireToken(*idToken)
		result, err := functions.CleanupOrphanedUsers(ctx, *idToken)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Deleted %d orphaned accounts\n", result.DeletedCount)
		for _, uid := range result.DeletedUIDs {
			fmt.Printf("  %s\n", uid)
		}

	case "fix-pro-user":
		if flag.NArg() != 2 {
			flag.Usage()
			os.Exit(1)
		}
		requireFunctions(cfg)
		requireToken(*idToken)
		email := flag.Arg(1)
		result, err := functions.FixExistingProUser(ctx, *idToken, email)
		if err != nil {
			log.Fatalf("Fix failed: %v", err)
		}
		if !result.Success {
			log.Fatalf("Fix failed for %s: %s", email, result.Message)
		}
		fmt.Printf("Fixed %s: %s\n", email, result.Message)

	case "show-session":
		if flag.NArg() != 2 {
			flag.Usage()
			os.Exit(1)
		}
		id, err := uuid.Parse(flag.Arg(1))
		if err != nil {
			log.Fatalf("Invalid session id %q: %v", flag.Arg(1), err)
		}
		db := connect(ctx, cfg)
		defer db.Close()

		sessions := services.NewSessionService(db)
		session, err := sessions.GetByID(ctx, id)
		if err != nil {
			log.Fatalf("Lookup failed: %v", err)
		}
		events, err := sessions.ListEvents(ctx, id)
		if err != nil {
			log.Fatalf("Lookup failed: %v", err)
		}

		fmt.Printf("Session %s\n", session.ID)
		fmt.Printf("  state:   %s\n", session.State)
		fmt.Printf("  outcome: %s\n", orDash(session.Outcome))
		fmt.Printf("  mode:    %s\n", orDash(session.Mode))
		fmt.Printf("  team:    %s\n", orDash(deref(session.ProID)))
		fmt.Printf("  uid:     %s\n", orDash(deref(session.UID)))
		fmt.Printf("  created: %s  expires: %s\n", session.CreatedAt.Format(time.RFC3339), session.ExpiresAt.Format(time.RFC3339))
		for _, ev := range events {
			fmt.Printf("  %s  %s -> %s  %s\n", ev.CreatedAt.Format(time.RFC3339), ev.FromState, ev.ToState, ev.Detail)
		}

	case "purge-sessions":
		db := connect(ctx, cfg)
		defer db.Close()

		purged, err := services.NewSessionService(db).PurgeBefore(ctx, time.Now().Add(-*olderThan))
		if err != nil {
			log.Fatalf("Purge failed: %v", err)
		}
		fmt.Printf("Purged %d join sessions\n", purged)

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

func requireToken(token string) {
	if token == "" {
		log.Fatal("an admin ID token is required: pass -id-token or set ADMIN_ID_TOKEN")
	}
}

func requireFunctions(cfg *config.Config) {
	if cfg.Firebase.FunctionsBaseURL == "" {
		log.Fatal("FIREBASE_PROJECT_ID or FIREBASE_FUNCTIONS_URL is required")
	}
}

func connect(ctx context.Context, cfg *config.Config) *database.DB {
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return db
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Command createadmin creates the first admin account of an empty
// installation. It reads the display name, email and password from stdin,
// one per line.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Kerhoff/GiftboT/internal/auth"
	"github.com/Kerhoff/GiftboT/internal/config"
	"github.com/Kerhoff/GiftboT/internal/models"
	"github.com/Kerhoff/GiftboT/internal/repository/postgres"
	"github.com/Kerhoff/GiftboT/internal/service"
	"github.com/Kerhoff/GiftboT/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Storage != config.StoragePostgres {
		log.Fatalf("createadmin needs STORAGE=%s", config.StoragePostgres)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.MigrationsEnabled {
		if err := db.Migrate(); err != nil {
			l.Fatalf("Failed to run migrations: %v", err)
		}
	}

	account, err := readAccount(os.Stdin, os.Stdout)
	if err != nil {
		l.Fatalf("Failed to read account: %v", err)
	}

	hasher := auth.NewHasher(0)
	store := postgres.NewStore(db.DB)
	svc := service.New(service.Deps{
		Store:    store,
		Logger:   l,
		Hasher:   hasher,
		Verifier: auth.NewPasswordVerifier(store.Persons(), hasher),
	})

	admin, err := svc.BootstrapAdmin(ctx, account)
	if err != nil {
		l.Fatalf("Failed to create admin: %v", err)
	}

	fmt.Printf("Created admin %s (#%d)\n", *admin.Email, admin.ID)
}

// readAccount prompts for the admin's details on out and reads them from in.
func readAccount(in io.Reader, out io.Writer) (models.NewAccount, error) {
	scanner := bufio.NewScanner(in)
	prompts := []string{"Display name: ", "Email: ", "Password: "}
	answers := make([]string, 0, len(prompts))

	for _, prompt := range prompts {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return models.NewAccount{}, err
			}
			return models.NewAccount{}, io.ErrUnexpectedEOF
		}
		answers = append(answers, strings.TrimSpace(scanner.Text()))
	}

	return models.NewAccount{
		DisplayName: answers[0],
		Email:       answers[1],
		Password:    answers[2],
		IsAdmin:     true,
	}, nil
}

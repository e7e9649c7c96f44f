package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample users for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"attachments", "expense_forms", "expense_titles", "users"} {
				if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		users := []struct {
			Username string
			Password string
			IsAdmin  bool
		}{
			{"admin", "admin123", true},
			{"user", "user123", false},
		}

		for _, u := range users {
			var exists int
			err := db.QueryRow("SELECT 1 FROM users WHERE username = $1", u.Username).Scan(&exists)
			if err == nil {
				fmt.Printf("%s user already exists, skipping\n", u.Username)
				continue
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cfg.Security.BCryptCost)
			if err != nil {
				log.Fatalf("failed to hash password for %s: %v", u.Username, err)
			}

			_, err = db.Exec(
				"INSERT INTO users (username, password_hash, is_admin, created_at, updated_at) VALUES ($1, $2, $3, now(), now())",
				u.Username, string(hash), u.IsAdmin)
			if err != nil {
				log.Fatalf("failed to insert %s user: %v", u.Username, err)
			}
			fmt.Printf("Seeded %s user\n", u.Username)
		}
	},
}

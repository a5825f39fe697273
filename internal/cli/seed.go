package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
)

var (
	seedManagerEmail string
	seedManagerPhone string
	seedManagerName  string
	seedCity         string
)

func init() {
	seedCmd.Flags().StringVar(&seedManagerEmail, "manager-email", "", "Create a manager account with this email (prompts for password)")
	seedCmd.Flags().StringVar(&seedManagerPhone, "manager-phone", "", "Phone for the manager account (+90 E.164)")
	seedCmd.Flags().StringVar(&seedManagerName, "manager-name", "Manager", "Display name for the manager account")
	seedCmd.Flags().StringVar(&seedCity, "city", "", "City to seed districts for (defaults to the configured default city)")

	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed reference data",
	Long: `Seed the database with baseline reference data: problem categories,
districts for the configured city, and a fallback team that catches
reports no other team matches.

The command is idempotent; existing rows are left alone.

With --manager-email, an initial MANAGER account is created and the
password is read interactively.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

var seedCategories = []struct {
	name        string
	description string
}{
	{"Infrastructure", "Roads, pavements, potholes and other built infrastructure"},
	{"Street Lighting", "Broken or missing street lights"},
	{"Parks", "Parks, playgrounds and green spaces"},
	{"Waste", "Missed collections, overflowing bins, illegal dumping"},
	{"Water and Sewage", "Leaks, blockages and drainage problems"},
	{"Traffic and Signage", "Damaged signs, faulty signals, road markings"},
}

var istanbulDistricts = []string{
	"Kadıköy", "Beşiktaş", "Üsküdar", "Şişli", "Fatih",
	"Beyoğlu", "Bakırköy", "Maltepe", "Ataşehir", "Sarıyer",
}

func runSeed(cmd *cobra.Command, args []string) error {
	return withDatabase(func(database *db.DB) error {
		if err := database.Migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		ctx := context.Background()
		city := seedCity
		if city == "" {
			city = GetConfig().DefaultCity
		}

		if err := seedCategoryRows(ctx, database); err != nil {
			return err
		}
		if err := seedDistrictRows(ctx, database, city); err != nil {
			return err
		}
		if err := seedFallbackTeam(ctx, database); err != nil {
			return err
		}
		if seedManagerEmail != "" {
			if err := seedManager(ctx, database); err != nil {
				return err
			}
		}

		OutputLine("Seed complete")
		return nil
	})
}

func seedCategoryRows(ctx context.Context, database *db.DB) error {
	repo := db.NewCategoryRepo(database)
	existing, err := repo.List(ctx, false)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
	}

	for _, seed := range seedCategories {
		if have[seed.name] {
			continue
		}
		c := &models.Category{Name: seed.name, Description: seed.description, IsActive: true}
		if err := repo.Create(ctx, c); err != nil {
			return fmt.Errorf("failed to seed category %q: %w", seed.name, err)
		}
		VerboseOutput("Created category %s\n", seed.name)
	}
	return nil
}

func seedDistrictRows(ctx context.Context, database *db.DB, city string) error {
	repo := db.NewDistrictRepo(database)
	for _, name := range istanbulDistricts {
		existing, err := repo.GetByNameCity(ctx, name, city)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		d := &models.District{Name: name, City: city}
		if err := repo.Create(ctx, d); err != nil {
			return fmt.Errorf("failed to seed district %q: %w", name, err)
		}
		VerboseOutput("Created district %s\n", name)
	}
	return nil
}

func seedFallbackTeam(ctx context.Context, database *db.DB) error {
	repo := db.NewTeamRepo(database)
	fallback, err := repo.GetFallback(ctx)
	if err != nil {
		return err
	}
	if fallback != nil {
		return nil
	}

	team := &models.Team{
		Name:        "General Services",
		Description: "Catch-all team for reports no specialist team matches",
		IsFallback:  true,
	}
	if err := repo.Create(ctx, team); err != nil {
		return fmt.Errorf("failed to seed fallback team: %w", err)
	}
	OutputLine("Created fallback team %q", team.Name)
	return nil
}

func seedManager(ctx context.Context, database *db.DB) error {
	users := db.NewUserRepo(database)
	existing, err := users.GetByEmail(ctx, seedManagerEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		OutputLine("Manager account %s already exists", seedManagerEmail)
		return nil
	}

	password, err := promptPassword(fmt.Sprintf("Password for %s: ", seedManagerEmail))
	if err != nil {
		return err
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	manager := &models.User{
		Phone:        seedManagerPhone,
		Email:        seedManagerEmail,
		Name:         seedManagerName,
		PasswordHash: string(hash),
		Role:         models.RoleManager,
		IsVerified:   true,
		IsActive:     true,
	}
	if err := users.Create(ctx, manager); err != nil {
		return fmt.Errorf("failed to create manager account: %w", err)
	}
	OutputLine("Created manager account %s", seedManagerEmail)
	return nil
}

// promptPassword reads a password without echo when stdin is a terminal, and
// falls back to a plain line read otherwise (useful for piped input).
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

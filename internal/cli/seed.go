package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/grantline/vestd/internal/date"
	"github.com/grantline/vestd/internal/fixed"
	"github.com/grantline/vestd/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
}

// Seed fixture file structure. Amounts and dates are strings so parse
// errors carry the offending value instead of a YAML type error.
type seedFile struct {
	Tenants []seedTenant `yaml:"tenants"`
}

type seedTenant struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Employees []seedEmployee `yaml:"employees"`
	Prices    []seedPrice    `yaml:"prices"`
}

type seedEmployee struct {
	ID     string      `yaml:"id"`
	Name   string      `yaml:"name"`
	Grants []seedGrant `yaml:"grants"`
}

type seedGrant struct {
	ID        string `yaml:"id"`
	GrantDate string `yaml:"grant_date"`
	Total     string `yaml:"total"`
	Status    string `yaml:"status"`
}

type seedPrice struct {
	EffectiveDate string `yaml:"effective_date"`
	Price         string `yaml:"price"`
}

// SeedResult reports what a seed run inserted.
type SeedResult struct {
	Tenants   int `json:"tenants"`
	Employees int `json:"employees"`
	Grants    int `json:"grants"`
	Prices    int `json:"prices"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load tenants, employees, grants, and price history from YAML",
		Long: `Insert fixture rows from a YAML file into the ledger database, creating
the database if needed. Rows without an explicit id get a UUIDv7. Names are
normalized to NFC before insert.

Example:
  vestd seed --db ./ledger.db ./fixtures/acme.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runSeed(opts *SeedOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "reading fixtures", err)
	}
	var fixtures seedFile
	if err := yaml.Unmarshal(raw, &fixtures); err != nil {
		_ = formatter.Error(ErrCodeFixtures, err.Error(), nil)
		return WrapExitError(ExitCommandError, "parsing fixtures", err)
	}
	if len(fixtures.Tenants) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no tenants defined in %s", path))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := insertFixtures(ctx, st, fixtures)
	if err != nil {
		_ = formatter.Error(ErrCodeFixtures, err.Error(), nil)
		return WrapExitError(ExitFailure, "seeding failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "seeded %d tenant(s), %d employee(s), %d grant(s), %d price snapshot(s)\n",
		result.Tenants, result.Employees, result.Grants, result.Prices)
	return nil
}

func insertFixtures(ctx context.Context, st *store.Store, fixtures seedFile) (SeedResult, error) {
	var result SeedResult

	for _, t := range fixtures.Tenants {
		tenantID := orUUID(t.ID)
		if t.Name == "" {
			return result, fmt.Errorf("tenant %s: name is required", tenantID)
		}
		err := st.InsertTenant(ctx, store.Tenant{ID: tenantID, Name: norm.NFC.String(t.Name)})
		if err != nil {
			return result, fmt.Errorf("tenant %q: %w", t.Name, err)
		}
		result.Tenants++

		for _, e := range t.Employees {
			employeeID := orUUID(e.ID)
			err := st.InsertEmployee(ctx, store.Employee{
				ID:       employeeID,
				TenantID: tenantID,
				Name:     norm.NFC.String(e.Name),
			})
			if err != nil {
				return result, fmt.Errorf("employee %q: %w", e.Name, err)
			}
			result.Employees++

			for _, g := range e.Grants {
				grantID := orUUID(g.ID)
				grantDate, err := date.Parse(g.GrantDate)
				if err != nil {
					return result, fmt.Errorf("grant %s: %w", grantID, err)
				}
				total, err := fixed.Parse(g.Total)
				if err != nil {
					return result, fmt.Errorf("grant %s: %w", grantID, err)
				}
				status := store.GrantStatus(g.Status)
				err = st.InsertGrant(ctx, store.Grant{
					ID:         grantID,
					TenantID:   tenantID,
					EmployeeID: employeeID,
					GrantDate:  grantDate,
					Total:      total,
					Status:     status,
				})
				if err != nil {
					return result, fmt.Errorf("grant %s: %w", grantID, err)
				}
				result.Grants++
			}
		}

		for _, p := range t.Prices {
			effective, err := date.Parse(p.EffectiveDate)
			if err != nil {
				return result, fmt.Errorf("price snapshot for %q: %w", t.Name, err)
			}
			price, err := fixed.Parse(p.Price)
			if err != nil {
				return result, fmt.Errorf("price snapshot for %q: %w", t.Name, err)
			}
			err = st.InsertPriceSnapshot(ctx, store.PriceSnapshot{
				TenantID:      tenantID,
				EffectiveDate: effective,
				Price:         price,
			})
			if err != nil {
				return result, fmt.Errorf("price snapshot for %q: %w", t.Name, err)
			}
			result.Prices++
		}
	}

	return result, nil
}

func orUUID(id string) string {
	if id != "" {
		return id
	}
	return uuid.Must(uuid.NewV7()).String()
}

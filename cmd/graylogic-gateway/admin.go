package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-gateway/internal/auth"
	"github.com/nerrad567/gray-logic-gateway/internal/placement"
	"github.com/nerrad567/gray-logic-gateway/internal/thing"
)

func newUserCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage gateway accounts",
	}

	var (
		displayName string
		scope       string
		password    string
	)
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Long: `Create an account that can authenticate against the gateway.

Scope "reader" may list and read things and placements; "admin" may also
dispatch commands and read the audit trail. When --password is omitted a
random password is generated and printed once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := auth.ParseScope(scope)
			if err != nil {
				return fmt.Errorf("scope %q: %w", scope, err)
			}

			generated := password == ""
			if generated {
				if password, err = auth.GeneratePassword(); err != nil {
					return err
				}
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}

			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			user := &auth.User{
				Username:     args[0],
				DisplayName:  displayName,
				PasswordHash: hash,
				Scope:        s,
				IsActive:     true,
			}
			if err := auth.NewUserRepository(db.DB).Create(cmd.Context(), user); err != nil {
				return fmt.Errorf("creating user: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created user %s (%s, scope %s)\n", user.Username, user.ID, user.Scope)
			if generated {
				fmt.Fprintf(out, "password: %s\n", password)
			}
			return nil
		},
	}
	add.Flags().StringVar(&displayName, "name", "", "display name")
	add.Flags().StringVar(&scope, "scope", string(auth.ScopeReader), `account scope: "reader" or "admin"`)
	add.Flags().StringVar(&password, "password", "", "password (generated when omitted)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			users, err := auth.NewUserRepository(db.DB).List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tSCOPE\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", u.ID, u.Username, u.Scope, u.IsActive)
			}
			return w.Flush()
		},
	}

	setActive := func(use, short string, active bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <username>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := openDatabase(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := auth.NewUserRepository(db.DB).SetActive(cmd.Context(), args[0], active); err != nil {
					return fmt.Errorf("%s %s: %w", use, args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%sd user %s\n", use, args[0])
				return nil
			},
		}
	}

	var newPassword string
	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Replace an account's password",
		Long: `Replace an account's password. Tokens already issued to the account
stay valid until they expire or are revoked.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if newPassword == "" {
				return errors.New("--password is required")
			}
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			users := auth.NewUserRepository(db.DB)
			u, err := users.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("passwd %s: %w", args[0], err)
			}
			hash, err := auth.HashPassword(newPassword)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			if err := users.SetPasswordHash(cmd.Context(), u.ID, hash); err != nil {
				return fmt.Errorf("passwd %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password changed for %s\n", u.Username)
			return nil
		},
	}
	passwd.Flags().StringVar(&newPassword, "password", "", "new password")

	cmd.AddCommand(add, list,
		setActive("disable", "Prevent an account from logging in", false),
		setActive("enable", "Allow a disabled account to log in again", true),
		passwd,
	)
	return cmd
}

func newPlacementCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "placement",
		Short: "Manage placements",
	}

	add := &cobra.Command{
		Use:   "add <id> <name>",
		Short: "Create a placement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			p := &placement.Placement{ID: args[0], Name: args[1]}
			if err := placement.NewSQLiteRepository(db.DB).Create(cmd.Context(), p); err != nil {
				return fmt.Errorf("creating placement: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created placement %s (%s)\n", p.ID, p.Name)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List placements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			placements, err := placement.NewSQLiteRepository(db.DB).List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, p := range placements {
				fmt.Fprintf(w, "%s\t%s\n", p.ID, p.Name)
			}
			return w.Flush()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a placement",
		Long: `Delete a placement. Things placed there are kept without a placement.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := placement.NewSQLiteRepository(db.DB).Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("removing placement %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed placement %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, list, remove)
	return cmd
}

// seedFile is the YAML layout accepted by "thing import".
type seedFile struct {
	Placements []placement.Placement `yaml:"placements"`
	Things     []thing.Record        `yaml:"things"`
}

func newThingCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thing",
		Short: "Manage things",
	}

	var (
		name        string
		placementID string
	)
	add := &cobra.Command{
		Use:   "add <id> <platform> <type>",
		Short: "Register a thing",
		Long: `Register a thing with the platform and type that select its builder.
The running gateway picks it up on its next start.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			rec := &thing.Record{ID: args[0], Platform: args[1], Type: args[2], Name: name}
			if rec.Name == "" {
				rec.Name = rec.ID
			}
			if placementID != "" {
				rec.PlacementID = &placementID
			}
			if err := thing.NewSQLiteRepository(db.DB).Create(cmd.Context(), rec); err != nil {
				return fmt.Errorf("creating thing: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created thing %s (%s/%s)\n", rec.ID, rec.Platform, rec.Type)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name (defaults to the ID)")
	add.Flags().StringVar(&placementID, "placement", "", "placement ID")

	var skipExisting bool
	importCmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Create placements and things from a YAML file",
		Long: `Create placements and things from a YAML file of the form:

  placements:
    - id: R1
      name: Living room
  things:
    - id: Th1
      platform: mock
      type: lamp
      name: Reading lamp
      placement: R1

Placements are created first so things can reference them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading seed file: %w", err)
			}
			var seed seedFile
			if err := yaml.Unmarshal(data, &seed); err != nil {
				return fmt.Errorf("parsing seed file: %w", err)
			}

			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			placements := placement.NewSQLiteRepository(db.DB)
			things := thing.NewSQLiteRepository(db.DB)
			var createdPlacements, createdThings int

			for i := range seed.Placements {
				err := placements.Create(cmd.Context(), &seed.Placements[i])
				switch {
				case err == nil:
					createdPlacements++
				case skipExisting && errors.Is(err, placement.ErrExists):
				default:
					return fmt.Errorf("placement %s: %w", seed.Placements[i].ID, err)
				}
			}
			for i := range seed.Things {
				err := things.Create(cmd.Context(), &seed.Things[i])
				switch {
				case err == nil:
					createdThings++
				case skipExisting && errors.Is(err, thing.ErrExists):
				default:
					return fmt.Errorf("thing %s: %w", seed.Things[i].ID, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d placements and %d things\n", createdPlacements, createdThings)
			return nil
		},
	}
	importCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "skip IDs that already exist instead of failing")

	list := &cobra.Command{
		Use:   "list",
		Short: "List things",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := thing.NewSQLiteRepository(db.DB).List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPLATFORM\tTYPE\tPLACEMENT\tNAME")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Platform, r.Type, r.Placement(), r.Name)
			}
			return w.Flush()
		},
	}

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a thing",
		Long: `Delete a thing. The running gateway drops it on its next start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := thing.NewSQLiteRepository(db.DB).Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("removing thing %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed thing %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, importCmd, list, remove)
	return cmd
}

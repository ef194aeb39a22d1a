package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"small-library/internal/seed"
)

func newSeedCmd(c *cli) *cobra.Command {
	var (
		withUsers bool
		file      string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the catalog with the demo data set",
		Long: `Deletes all books and authors and inserts the demo catalog, or the
YAML fixture given with --file. Users are replaced only with --with-users.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := loadSeed(file)
			if err != nil {
				return err
			}

			res, err := seed.Apply(cmd.Context(), c.store.Repos, data, withUsers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d authors, %d books, %d users\n", res.Authors, res.Books, res.Users)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withUsers, "with-users", false, "also replace user accounts")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixture to load instead of the built-in data set")
	return cmd
}

func loadSeed(file string) (*seed.Data, error) {
	if file == "" {
		return seed.Default()
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return seed.Read(f)
}

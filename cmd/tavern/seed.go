package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tbourn/bottles-tavern/internal/config"
	"github.com/tbourn/bottles-tavern/internal/domain"
	"github.com/tbourn/bottles-tavern/internal/repo"
)

// seedFile is the YAML layout accepted by `tavern seed`:
//
//	users:
//	  - address: "0xabc"
//	    whiskey: 10
//	stories:
//	  - author: "0xabc"
//	    title: "The Last Round"
//	    content: "..."
//	    pay: false
type seedFile struct {
	Users []struct {
		Address string `yaml:"address"`
		Whiskey *int   `yaml:"whiskey"`
	} `yaml:"users"`
	Stories []struct {
		Author  string `yaml:"author"`
		Title   string `yaml:"title"`
		Content string `yaml:"content"`
		Pay     bool   `yaml:"pay"`
	} `yaml:"stories"`
}

type seedResult struct {
	Users   int
	Stories int
}

func newSeedCmd(cfg *config.Config) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users and stories from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			db, err := repo.Open(*cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close(db) }()
			if err := repo.AutoMigrate(db); err != nil {
				return err
			}
			res, err := seed(cmd.Context(), db, f)
			if err != nil {
				return err
			}
			log.Info().Int("users", res.Users).Int("stories", res.Stories).Msg("seed complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "seed.yaml", "seed file")
	return cmd
}

// seed applies a seed file in one transaction. Existing users are kept;
// stories are always appended. Story authors are created when missing.
func seed(ctx context.Context, db *gorm.DB, r io.Reader) (seedResult, error) {
	var sf seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && err != io.EOF {
		return seedResult{}, fmt.Errorf("seed file: %w", err)
	}

	var res seedResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, u := range sf.Users {
			addr := strings.ToLower(strings.TrimSpace(u.Address))
			if addr == "" {
				return fmt.Errorf("users[%d]: address is required", i)
			}
			created, err := repo.CreateUserIfAbsent(ctx, tx, addr)
			if err != nil {
				return err
			}
			if created {
				res.Users++
			}
			if u.Whiskey != nil {
				if *u.Whiskey < 0 {
					return fmt.Errorf("users[%d]: whiskey must be >= 0", i)
				}
				if err := tx.Model(&domain.User{}).Where("address = ?", addr).
					Update("whiskey_points", *u.Whiskey).Error; err != nil {
					return err
				}
			}
		}
		for i, s := range sf.Stories {
			author := strings.ToLower(strings.TrimSpace(s.Author))
			content := strings.TrimSpace(s.Content)
			if author == "" || content == "" {
				return fmt.Errorf("stories[%d]: author and content are required", i)
			}
			created, err := repo.CreateUserIfAbsent(ctx, tx, author)
			if err != nil {
				return err
			}
			if created {
				res.Users++
			}
			state := domain.PaymentFree
			if s.Pay {
				state = domain.PaymentPending
			}
			if _, err := repo.CreateStory(ctx, tx, author, strings.TrimSpace(s.Title), content, state); err != nil {
				return err
			}
			res.Stories++
		}
		return nil
	})
	return res, err
}

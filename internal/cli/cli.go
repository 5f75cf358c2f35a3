// Package cli implements the leaguectl commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/klapi/internal/client"
	"github.com/okian/klapi/internal/domain/model"
	"github.com/okian/klapi/internal/export"
	"github.com/okian/klapi/internal/simulate"
)

const (
	defaultServer  = "http://localhost:9080"
	defaultTimeout = 30 * time.Second
	filePermission = 0o600
)

type options struct {
	server   string
	user     string
	password string
	timeout  time.Duration
}

func (o *options) client() *client.Client {
	return client.New(o.server, client.WithCredentials(o.user, o.password), client.WithTimeout(o.timeout))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewRootCommand returns the leaguectl command tree.
func NewRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "leaguectl",
		Short:         "Inspect and drive a running league server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&o.server, "server", envOr("KLAPI_SERVER", defaultServer), "Base URL of the league server")
	flags.StringVar(&o.user, "user", os.Getenv("KLAPI_USER"), "Admin name for admin commands")
	flags.StringVar(&o.password, "password", os.Getenv("KLAPI_PASSWORD"), "Admin password for admin commands")
	flags.DurationVar(&o.timeout, "timeout", defaultTimeout, "HTTP request timeout")

	root.AddCommand(standingsCmd(o), playerCmd(o), planCmd(o), exportCmd(o), simulateCmd(o))
	return root
}

func standingsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "standings",
		Short: "Print the league table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := o.client().Standings(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tPLAYER\tTOTAL\tWINS\tGAP\tFORM")
			for i, r := range rows {
				form := make([]string, 0, len(r.Form))
				for _, e := range r.Form {
					form = append(form, fmt.Sprint(e.Position))
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\n", i+1, r.Player.Name, r.Total, r.Wins, r.Gap, strings.Join(form, " "))
			}
			return tw.Flush()
		},
	}
}

func playerCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "player <id>",
		Short: "Print one player's profile and stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := o.client().Player(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			st := page.Stats
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Player\t%s (%s)\n", page.Player.Name, page.Player.ID)
			fmt.Fprintf(tw, "Rank\t%d\n", page.Rank)
			fmt.Fprintf(tw, "Total\t%d\n", page.Row.Total)
			fmt.Fprintf(tw, "Events\t%d\n", st.Events)
			fmt.Fprintf(tw, "Wins\t%d\n", st.Wins)
			fmt.Fprintf(tw, "Avg per round\t%.2f\n", st.AvgPerRound)
			fmt.Fprintf(tw, "Avg per event\t%.2f\n", st.AvgPerEvent)
			fmt.Fprintf(tw, "Best\t%s\n", optInt(st.Best))
			fmt.Fprintf(tw, "Worst\t%s\n", optInt(st.Worst))
			if st.AvgPosition != nil {
				fmt.Fprintf(tw, "Avg position\t%.2f\n", *st.AvgPosition)
			} else {
				fmt.Fprintln(tw, "Avg position\t-")
			}
			fmt.Fprintf(tw, "Best round\t%d\n", st.BestRound)
			return tw.Flush()
		},
	}
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func planCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "plan <when>",
		Short:   "Plan a GP on a date or a relative day such as \"next saturday\"",
		Example: "  leaguectl plan 2024-05-11\n  leaguectl plan next saturday",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := o.client().AddPlanned(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "planned %s on %s\n", g.ID, g.Date)
			return nil
		},
	}
}

func exportCmd(o *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write standings, events and scores to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := o.client()
			var (
				l   export.League
				err error
			)
			if l.Players, err = c.Players(ctx); err != nil {
				return err
			}
			if l.Events, err = c.Events(ctx); err != nil {
				return err
			}
			if l.Standings, err = c.Standings(ctx); err != nil {
				return err
			}
			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := export.Write(f, l); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "league.xlsx", "Output file")
	return cmd
}

func simulateCmd(o *options) *cobra.Command {
	cfg := simulate.Config{}
	var start string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a fake season, write it through the admin API and verify the standings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.BaseURL, cfg.User, cfg.Password, cfg.Timeout = o.server, o.user, o.password, o.timeout
			cfg.Start = model.Date(start)
			if start == "" {
				cfg.Start = model.DateOf(time.Now())
			}
			stats, err := simulate.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "players added %d (duplicate %d), events recorded %d, failed %d, rows verified %d in %s\n",
				stats.PlayersAdded, stats.PlayersDuplicate, stats.EventsRecorded, stats.Failed, stats.Checked,
				stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.Players, "players", 8, "Players to generate")
	f.IntVar(&cfg.Events, "events", 10, "Weekly GPs to generate")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "Concurrent writers")
	f.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Faker seed")
	f.StringVar(&start, "start", "", "Date of the first GP, YYYY-MM-DD (default today)")
	return cmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

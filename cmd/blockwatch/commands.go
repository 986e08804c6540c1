// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package main

import (
	"bufio"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/H0llyW00dzZ/blockwatch/src/blockwatch"
	"github.com/H0llyW00dzZ/blockwatch/src/report"
	"github.com/H0llyW00dzZ/blockwatch/src/tracker"
)

// errNoToken is returned by privileged commands run without a token.
var errNoToken = errors.New("no admin token: use --token or " + tokenEnv)

// outcomeView is the JSON form of a probe outcome.
type outcomeView struct {
	Resolver       string                    `json:"resolver"`
	Address        string                    `json:"address"`
	ISP            string                    `json:"isp,omitempty"`
	Enforcing      bool                      `json:"enforcing"`
	Classification blockwatch.Classification `json:"classification"`
	ElapsedMs      int64                     `json:"elapsed_ms"`
	Error          string                    `json:"error,omitempty"`
}

// verdictView is the JSON form of a verdict.
type verdictView struct {
	Domain   string           `json:"domain"`
	Verdict  blockwatch.Final `json:"verdict"`
	Outcomes []outcomeView    `json:"outcomes"`
}

// healthView is the JSON form of a health entry.
type healthView struct {
	Resolver  string            `json:"resolver"`
	Address   string            `json:"address"`
	ISP       string            `json:"isp,omitempty"`
	Enforcing bool              `json:"enforcing"`
	Health    blockwatch.Health `json:"health"`
	LatencyMs int64             `json:"latency_ms"`
}

func newCheckCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check <domain>",
		Short: "Probe a domain on every resolver and print the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(app *application) error {
				v, err := app.tracker.CheckDomain(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), newVerdictView(v))
				}
				return writeVerdict(cmd.OutOrStdout(), v)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newAddCmd() *cobra.Command {
	var (
		token   string
		addedBy string
		site    string
		siteURL string
		decided string
	)

	cmd := &cobra.Command{
		Use:   "add <domain>",
		Short: "Start tracking a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token = cmp.Or(token, os.Getenv(tokenEnv))
			if token == "" {
				return errNoToken
			}

			req := tracker.AddRequest{
				Domain:     args[0],
				Credential: token,
				AddedBy:    addedBy,
			}
			if site != "" {
				req.Site = &tracker.BlockedSite{Name: site, RecommendationURL: siteURL}
				if decided != "" {
					d, err := time.Parse(time.DateOnly, decided)
					if err != nil {
						return fmt.Errorf("invalid --decided: %w", err)
					}
					req.Site.DecisionDate = &d
				}
			}

			return withApp(cmd, func(app *application) error {
				res, err := app.tracker.AddDomain(cmd.Context(), req)
				if err != nil {
					return err
				}
				if res.IsNew {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is now tracked\n", res.Domain)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already tracked\n", res.Domain)
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&token, "token", "", "admin token (default $"+tokenEnv+")")
	flags.StringVar(&addedBy, "added-by", "", "who is adding the domain")
	flags.StringVar(&site, "site", "", "name of the blocked site the domain belongs to")
	flags.StringVar(&siteURL, "site-url", "", "URL of the blocking recommendation")
	flags.StringVar(&decided, "decided", "", "blocking decision date (YYYY-MM-DD)")
	return cmd
}

func newIgnoreCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "ignore <domain>",
		Short: "Stop on-demand checks from tracking a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token = cmp.Or(token, os.Getenv(tokenEnv))
			if token == "" {
				return errNoToken
			}

			return withApp(cmd, func(app *application) error {
				domain, err := app.tracker.IgnoreDomain(cmd.Context(), args[0], token)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now ignored\n", domain)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "admin token (default $"+tokenEnv+")")
	return cmd
}

func newListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked domains and the ISPs blocking them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(app *application) error {
				summaries, err := app.tracker.ListBlockedDomains(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), summaries)
				}

				tw := newTabWriter(cmd.OutOrStdout())
				fmt.Fprintln(tw, "DOMAIN\tFIRST BLOCKED\tADDED BY\tSITE\tISPS")
				for _, s := range summaries {
					var site string
					if s.Site != nil {
						site = s.Site.Name
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						s.Domain,
						s.FirstBlockedOn.UTC().Format(time.RFC3339),
						dash(s.AddedBy),
						dash(site),
						dash(strings.Join(s.ISPs(), ", ")),
					)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newResolversCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolvers",
		Short: "Probe every resolver with the reference domain and print its health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(app *application) error {
				if err := app.checker.RefreshHealth(cmd.Context()); err != nil {
					return err
				}

				entries := app.tracker.ListResolverHealth()
				if asJSON {
					views := make([]healthView, len(entries))
					for i, e := range entries {
						views[i] = healthView{
							Resolver:  e.Resolver.Name,
							Address:   e.Resolver.Address,
							ISP:       e.Resolver.ISP,
							Enforcing: e.Resolver.EnforcesBlocking,
							Health:    e.Health,
							LatencyMs: e.LatencyMs,
						}
					}
					return writeJSON(cmd.OutOrStdout(), views)
				}

				tw := newTabWriter(cmd.OutOrStdout())
				fmt.Fprintln(tw, "RESOLVER\tADDRESS\tISP\tROLE\tHEALTH\tLATENCY")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%dms\n",
						e.Resolver.Name,
						e.Resolver.Address,
						dash(e.Resolver.ISP),
						role(e.Resolver),
						e.Health,
						e.LatencyMs,
					)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: `Export tracked domains as an XLSX workbook ("-" for stdout)`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := appName + ".xlsx"
			if len(args) == 1 {
				path = args[0]
			}

			return withApp(cmd, func(app *application) error {
				summaries, err := app.tracker.ListBlockedDomains(cmd.Context())
				if err != nil {
					return err
				}

				if path == "-" {
					return report.Export(cmd.OutOrStdout(), summaries)
				}

				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := report.Export(f, summaries); err != nil {
					return errors.Join(err, f.Close())
				}
				if err := f.Close(); err != nil {
					return err
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d domains to %s\n", len(summaries), path)
				return nil
			})
		},
	}
}

func newHashTokenCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash of an admin token for BLOCKWATCH_ADMIN_TOKEN_HASH",
		Long: "Print the bcrypt hash of an admin token for BLOCKWATCH_ADMIN_TOKEN_HASH.\n" +
			"The token is read from the first line of stdin when not given as an argument.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				token = strings.TrimRight(line, "\r\n")
			}
			if token == "" {
				return errNoToken
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func newVerdictView(v blockwatch.Verdict) verdictView {
	view := verdictView{
		Domain:   v.Domain,
		Verdict:  v.Final,
		Outcomes: make([]outcomeView, len(v.Outcomes)),
	}
	for i, o := range v.Outcomes {
		view.Outcomes[i] = outcomeView{
			Resolver:       o.Resolver.Name,
			Address:        o.Resolver.Address,
			ISP:            o.Resolver.ISP,
			Enforcing:      o.Resolver.EnforcesBlocking,
			Classification: o.Classification,
			ElapsedMs:      o.ElapsedMs,
		}
		if o.Err != nil {
			view.Outcomes[i].Error = o.Err.Error()
		}
	}
	return view
}

func writeVerdict(w io.Writer, v blockwatch.Verdict) error {
	fmt.Fprintf(w, "%s: %s\n\n", v.Domain, v.Final)

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "RESOLVER\tISP\tROLE\tRESULT\tELAPSED")
	for _, o := range v.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\n",
			o.Resolver.Name,
			dash(o.Resolver.ISP),
			role(o.Resolver),
			o.Classification,
			o.ElapsedMs,
		)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func role(r blockwatch.Resolver) string {
	if r.EnforcesBlocking {
		return "enforcing"
	}
	return "control"
}

func dash(s string) string {
	return cmp.Or(s, "-")
}

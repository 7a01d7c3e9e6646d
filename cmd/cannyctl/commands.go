package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/config"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/kvstore/backend"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/records"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/services/console"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/writeverify"
)

// errDrift is returned by drift --fail-on-drift when the index is out of sync.
var errDrift = errors.New("index drift detected")

// session is an opened store plus the configuration it came from.
type session struct {
	cfg     *config.Config
	backend *backend.Backend
}

func (s *session) logger() *logging.Logger {
	return logging.New("cannyctl", s.cfg.Log.Level, s.cfg.Log.Format)
}

func (s *session) policy() writeverify.Policy {
	return writeverify.Policy{Attempts: s.cfg.Verify.Attempts, BaseDelay: s.cfg.Verify.BaseDelay}
}

type opener func() (*session, error)

func newRootCmd(open opener) *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "cannyctl",
		Short: "Inspect and edit Canny Carrot business and customer records",
		Long: `cannyctl talks to the same key-value store as the admin console.

The store is selected with the console environment variables
(STORE_BACKEND, CANNY_PROXY_URL, CANNY_PROXY_API_KEY, REDIS_URL, ...).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")

	withSession := func(fn func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.backend.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return fn(ctx, s, cmd, args)
		}
	}

	root.AddCommand(newGetCmd(withSession), newUpdateCmd(withSession), newDriftCmd(withSession))
	return root
}

type sessionRunner func(fn func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func newGetCmd(run sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "get <business|customer> <id>",
		Short: "Print a stored record",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			raw, found, err := s.backend.Store.Get(ctx, kind.Key(args[1]))
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%s %q not found", kind.Name, args[1])
			}
			return printJSON(cmd.OutOrStdout(), json.RawMessage(raw))
		}),
	}
}

func newUpdateCmd(run sessionRunner) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update <business|customer> <id> -f record.json",
		Short: "Overwrite a record and confirm the store serves it back",
		Long: `update replaces the whole record with the JSON document read from -f
("-" for stdin) and then reads it back until it matches, exactly as the
console does for edits made in the UI.`,
		Args: cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			opts := writeverify.Options{Policy: s.policy(), Logger: s.logger()}
			var saved interface{}
			switch kind.Name {
			case records.BusinessKind.Name:
				saved, err = updateRecord(ctx, writeverify.NewBusiness(s.backend.Store, opts), args[1], data)
			default:
				saved, err = updateRecord(ctx, writeverify.NewCustomer(s.backend.Store, opts), args[1], data)
			}
			if err != nil {
				return fmt.Errorf("update %s %s (%s): %w", kind.Name, args[1], writeverify.KindOf(err), err)
			}
			return printJSON(cmd.OutOrStdout(), saved)
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `record JSON file, "-" for stdin`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDriftCmd(run sessionRunner) *cobra.Command {
	var failOnDrift bool

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare index sets with stored keys (read-only)",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			auditor := console.NewDriftAuditor(s.backend.Store, s.logger(), nil)
			reports, err := auditor.AuditAll(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			inSync := true
			for _, r := range reports {
				fmt.Fprintf(out, "%s: %d indexed, %d stored, %d indexed without record, %d unindexed\n",
					r.Kind, r.Indexed, r.Stored, len(r.IndexedMissing), len(r.Unindexed))
				for _, id := range r.IndexedMissing {
					fmt.Fprintf(out, "  indexed-missing %s\n", id)
				}
				for _, id := range r.Unindexed {
					fmt.Fprintf(out, "  unindexed       %s\n", id)
				}
				inSync = inSync && r.InSync()
			}
			if failOnDrift && !inSync {
				return errDrift
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "exit non-zero when drift is found")
	return cmd
}

func updateRecord[T records.Record](ctx context.Context, v *writeverify.Verifier[T], id string, data []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return v.WriteAndVerify(ctx, id, rec)
}

func parseKind(name string) (records.Kind, error) {
	kind, ok := records.KindByName(name)
	if !ok {
		return records.Kind{}, fmt.Errorf("unknown record kind %q (want business or customer)", name)
	}
	return kind, nil
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

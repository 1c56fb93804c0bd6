package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nickyhof/innoldb"
	"github.com/nickyhof/innoldb/core"
	"github.com/nickyhof/innoldb/db"
	"github.com/spf13/cobra"
)

var errNothingToInsert = errors.New("nothing to insert: pass key=value fields or --mock")

// tableCommand adds the required --table flag shared by document commands.
func tableCommand(cmd *cobra.Command, table *string) *cobra.Command {
	cmd.Flags().StringVarP(table, "table", "t", "", "name of the table to use")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}

func newInsertCmd(a *app) *cobra.Command {
	var (
		table string
		id    string
		mock  bool
	)
	cmd := &cobra.Command{
		Use:   "insert [key=value ...]",
		Short: "Insert a document, or replace the one with the same id",
		RunE: func(cmd *cobra.Command, args []string) error {
			kvs, err := core.ParseKeyValues(args)
			if err != nil {
				return err
			}
			if len(kvs) == 0 && !mock {
				return errNothingToInsert
			}

			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			var doc core.Document
			if mock {
				doc, err = q.Mock(cmd.Context(), nil)
				if err == nil && len(kvs) > 0 {
					doc, err = q.Save(cmd.Context(), doc.Merge(core.KeyValueMap(kvs)))
				}
			} else {
				fields := core.KeyValueMap(kvs)
				if id != "" {
					fields[q.Index()] = id
				}
				doc, err = q.Save(cmd.Context(), core.NewDocument(table, q.Index(), fields))
			}
			if err != nil {
				return err
			}
			return p.Value(doc)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "index value of the new document")
	cmd.Flags().BoolVarP(&mock, "mock", "m", false, "insert a generated document")
	return tableCommand(cmd, &table)
}

func newFindCmd(a *app) *cobra.Command {
	var table, id string
	cmd := &cobra.Command{
		Use:   "find [key=value ...]",
		Short: "Find one document by id, or the documents with the given field values",
		RunE: func(cmd *cobra.Command, args []string) error {
			kvs, err := core.ParseKeyValues(args)
			if err != nil {
				return err
			}
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			if id != "" {
				doc, err := q.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return p.Value(doc)
			}

			docs, err := q.FindBy(cmd.Context(), kvs...)
			if err != nil {
				return err
			}
			return p.Documents(docs)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "index value of the document to load")
	return tableCommand(cmd, &table)
}

func newLikeCmd(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "like key=value ...",
		Short: "Find the documents whose fields contain the given values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kvs, err := core.ParseKeyValues(args)
			if err != nil {
				return err
			}
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			docs, err := q.FindLike(cmd.Context(), kvs...)
			if err != nil {
				return err
			}
			return p.Documents(docs)
		},
	}
	return tableCommand(cmd, &table)
}

func newInCmd(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "in key=v1,v2 ...",
		Short: "Find the documents whose field equals one of the listed values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kvs, err := core.ParseKeyValues(args)
			if err != nil {
				return err
			}
			fields := make(map[string][]any, len(kvs))
			for _, kv := range kvs {
				for value := range strings.SplitSeq(kv.Value, ",") {
					fields[kv.Key] = append(fields[kv.Key], value)
				}
			}

			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			docs, err := q.FindIn(cmd.Context(), fields)
			if err != nil {
				return err
			}
			return p.Documents(docs)
		},
	}
	return tableCommand(cmd, &table)
}

func newFilterCmd(a *app) *cobra.Command {
	var (
		table    string
		equals   []string
		contains []string
	)
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Scan the table and keep the documents matching every condition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			eq, err := core.ParseKeyValues(equals)
			if err != nil {
				return err
			}
			sub, err := core.ParseKeyValues(contains)
			if err != nil {
				return err
			}
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			docs, err := q.Filter(cmd.Context(), db.NewFilter(eq, sub, a.cfg.LikeIgnoreCase))
			if err != nil {
				return err
			}
			return p.Documents(docs)
		},
	}
	cmd.Flags().StringArrayVar(&equals, "eq", nil, "key=value the field must equal (repeatable)")
	cmd.Flags().StringArrayVar(&contains, "contains", nil, "key=value the field must contain (repeatable)")
	return tableCommand(cmd, &table)
}

func newUpdateCmd(a *app) *cobra.Command {
	var table, id string
	cmd := &cobra.Command{
		Use:   "update --id ID key=value ...",
		Short: "Set fields on the document with the given id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kvs, err := core.ParseKeyValues(args)
			if err != nil {
				return err
			}
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			doc, err := q.Update(cmd.Context(), id, kvs...)
			if err != nil {
				return err
			}
			return p.Value(doc)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "index value of the document to update")
	_ = cmd.MarkFlagRequired("id")
	return tableCommand(cmd, &table)
}

func newAllCmd(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "all",
		Short: "List every document in the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			docs, err := q.All(cmd.Context())
			if err != nil {
				return err
			}
			return p.Documents(docs)
		},
	}
	return tableCommand(cmd, &table)
}

func newMockCmd(a *app) *cobra.Command {
	var (
		table string
		count int
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Insert generated documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			docs := make([]core.Document, 0, count)
			for range count {
				doc, err := q.Mock(cmd.Context(), nil)
				if err != nil {
					return err
				}
				docs = append(docs, doc)
			}
			return p.Documents(docs)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of documents")
	return tableCommand(cmd, &table)
}

func newHistoryCmd(a *app) *cobra.Command {
	var table, id string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the revisions of the table, or of one document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			var metaID string
			if id != "" {
				current, err := q.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				metaID = current.Metadata.ID
			}

			revisions, err := q.History(cmd.Context(), metaID)
			if err != nil {
				return err
			}
			return p.Revisions(revisions)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "index value of the document")
	return tableCommand(cmd, &table)
}

func newCommittedCmd(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "committed [key=value ...]",
		Short: "Show the committed revisions matching the given field values",
		RunE: func(cmd *cobra.Command, args []string) error {
			kvs, err := core.ParseKeyValues(args)
			if err != nil {
				return err
			}
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			revisions, err := q.Committed(cmd.Context(), core.KeyValueMap(kvs))
			if err != nil {
				return err
			}
			return p.Revisions(revisions)
		},
	}
	return tableCommand(cmd, &table)
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query STATEMENT [PARAM ...]",
		Short: "Run a PartiQL statement; parameters are JSON values or plain strings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			instance, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			params := make([]any, len(args)-1)
			for i, arg := range args[1:] {
				params[i] = parseParam(arg)
			}
			rows, err := instance.Ops.Raw(cmd.Context(), args[0], params...)
			if err != nil {
				return err
			}
			items := make([]any, len(rows))
			for i, row := range rows {
				items[i] = row
			}
			return p.Items(items)
		},
	}
}

// parseParam reads arg as JSON, falling back to the literal string.
func parseParam(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			names, err := instance.Tables(cmd.Context())
			if err != nil {
				return err
			}
			items := make([]any, len(names))
			for i, name := range names {
				items[i] = name
			}
			return p.Items(items)
		},
	}
}

func newDropCmd(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop (inactivate) a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := instance.Ops.DropTable(cmd.Context(), table); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "dropped table %s\n", table)
			return nil
		},
	}
	return tableCommand(cmd, &table)
}

func newExportCmd(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "export DEST",
		Short: "Write every document to a file, file://, or s3:// location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			n, err := q.Export(cmd.Context(), args[0], a.instance.RemoteOptions())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "exported %d documents to %s\n", n, args[0])
			return nil
		},
	}
	return tableCommand(cmd, &table)
}

func newLoadCmd(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "load SRC",
		Short: "Save the documents read from a file, URL, or s3:// location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.query(cmd.Context(), table)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			docs, err := q.Load(cmd.Context(), args[0], a.instance.RemoteOptions())
			if err != nil {
				return err
			}
			return p.Documents(docs)
		},
	}
	return tableCommand(cmd, &table)
}

func newLedgerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Create and describe QLDB ledgers",
	}

	var wait bool
	create := &cobra.Command{
		Use:   "create [NAME]",
		Short: "Create a ledger, by default the configured one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ledgerName(a, args)
			admin, err := innoldb.NewAdmin(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			info, err := admin.CreateLedger(cmd.Context(), name)
			if err != nil {
				return err
			}
			if wait {
				if info, err = admin.WaitActive(cmd.Context(), name); err != nil {
					return err
				}
			}
			return p.Value(info)
		},
	}
	create.Flags().BoolVarP(&wait, "wait", "w", false, "wait until the ledger is ACTIVE")

	describe := &cobra.Command{
		Use:   "describe [NAME]",
		Short: "Describe a ledger, by default the configured one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := innoldb.NewAdmin(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			info, err := admin.DescribeLedger(cmd.Context(), ledgerName(a, args))
			if err != nil {
				return err
			}
			return p.Value(info)
		},
	}

	cmd.AddCommand(create, describe)
	return cmd
}

func ledgerName(a *app, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Ledger
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.stdout, "innoldb %s\n", innoldb.Version)
			return nil
		},
	}
}

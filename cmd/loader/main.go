// Command loader ingests a file of NDJSON records into an object store.
// It loads the register/schema catalog, runs one bulk ingestion, dumps
// rejected records to a CSV, and logs the summary.
//
// QUICK START (Postgres):
//
//	loader -catalog_file=catalog.yaml -records_file=records.ndjson \
//	       -register=publications -schema=article \
//	       -db_user=user -db_password=secret -db_name=objects
//
// Use -db_driver=memory for a dry run against an in-process store.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"objectloader/internal/config"
	"objectloader/internal/domain"
	"objectloader/internal/identity"
	"objectloader/internal/ingest"
	"objectloader/internal/logging"
	"objectloader/internal/schema"
	"objectloader/internal/skiplog"
	"objectloader/internal/store"
)

func main() {
	cfg := config.Load()
	log, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("loader failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	catalog, err := schema.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	records, err := readRecords(ctx, cfg.RecordsFile)
	if err != nil {
		return err
	}
	log.Info("records decoded",
		zap.Int("count", len(records)), zap.String("file", cfg.RecordsFile))

	svc := ingest.NewService(st, catalog, identity.NewStatic(cfg.Owner, cfg.Organisation), log)
	res, ingestErr := svc.Ingest(ctx, records, ingest.Options{
		Register: cfg.Register,
		Schema:   cfg.Schema,
		Validate: cfg.Validate,
	})

	if len(res.Invalid) > 0 {
		if err := dumpInvalid(cfg.SkippedDir, res.Invalid); err != nil {
			log.Warn("could not dump invalid records", zap.Error(err))
		}
	}
	return ingestErr
}

// openStore selects and initializes the configured backend.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close(ctx)
			return nil, err
		}
		return pg, nil
	case "mssql":
		ms, err := store.NewMSSQL(cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		if err := ms.EnsureSchema(ctx); err != nil {
			ms.Close(ctx)
			return nil, err
		}
		return ms, nil
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db_driver %q", cfg.DBDriver)
	}
}

// readRecords streams NDJSON lines from path ("-" means stdin) through a
// reader stage into a decoder stage and returns the decoded records in
// input order.
func readRecords(ctx context.Context, path string) ([]*domain.RawRecord, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open records: %w", err)
		}
		defer f.Close()
		r = f
	}

	g, ctx := errgroup.WithContext(ctx)
	lines := make(chan []byte, 1024)

	g.Go(func() error {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 1<<20), 32<<20)
		lineNum := 0
		for sc.Scan() {
			lineNum++
			if len(sc.Bytes()) == 0 {
				continue
			}
			line := make([]byte, len(sc.Bytes()))
			copy(line, sc.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read records (line %d): %w", lineNum, err)
		}
		return nil
	})

	var records []*domain.RawRecord
	g.Go(func() error {
		n := 0
		for line := range lines {
			n++
			var obj map[string]any
			if err := json.Unmarshal(line, &obj); err != nil {
				return fmt.Errorf("decode record %d: %w", n, err)
			}
			records = append(records, domain.DecodeRecord(obj))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// dumpInvalid writes the rejected records to a timestamped CSV under dir.
func dumpInvalid(dir string, invalid []domain.InvalidRecord) error {
	path := filepath.Join(dir, fmt.Sprintf("invalid_objects_%s.csv", time.Now().Format("20060102_150405")))
	sl, err := skiplog.New(path)
	if err != nil {
		return err
	}
	for _, inv := range invalid {
		raw, _ := json.Marshal(inv.Record)
		sl.Add(inv.Err, inv.Index, inv.Record.ID, string(raw))
	}
	return sl.Close()
}

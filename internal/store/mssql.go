package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"objectloader/internal/domain"
)

// MSSQL is the secondary backend. T-SQL MERGE cannot report a per-row
// created/updated/unchanged signal from the same statement, so every
// outcome degrades to created; the precision loss is logged once per
// store. Use the Postgres backend when classification matters.
type MSSQL struct {
	db     *sql.DB
	log    *zap.Logger
	warned bool
}

// NewMSSQL opens a connection pool against dsn.
func NewMSSQL(dsn string, log *zap.Logger) (*MSSQL, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mssql: %w", err)
	}
	return &MSSQL{db: db, log: log}, nil
}

var mssqlColumns = []string{
	"uuid", "register_id", "schema_id", "owner", "organisation",
	"name", "description", "summary", "image", "slug",
	"published", "depublished", "relations", "payload", "hash",
}

const mssqlDDL = `
IF OBJECT_ID('objects', 'U') IS NULL
CREATE TABLE objects (
	uuid         NVARCHAR(255) NOT NULL PRIMARY KEY,
	register_id  NVARCHAR(255) NOT NULL,
	schema_id    NVARCHAR(255) NOT NULL,
	owner        NVARCHAR(255) NOT NULL DEFAULT '',
	organisation NVARCHAR(255) NOT NULL DEFAULT '',
	name         NVARCHAR(MAX) NOT NULL DEFAULT '',
	description  NVARCHAR(MAX) NOT NULL DEFAULT '',
	summary      NVARCHAR(MAX) NOT NULL DEFAULT '',
	image        NVARCHAR(MAX) NOT NULL DEFAULT '',
	slug         NVARCHAR(255) NOT NULL DEFAULT '',
	published    NVARCHAR(64)  NOT NULL DEFAULT '',
	depublished  NVARCHAR(64)  NOT NULL DEFAULT '',
	relations    NVARCHAR(MAX) NOT NULL DEFAULT '{}',
	payload      NVARCHAR(MAX) NOT NULL DEFAULT '{}',
	hash         BIGINT NOT NULL
);
IF OBJECT_ID('objects_stage', 'U') IS NULL
CREATE TABLE objects_stage (
	uuid         NVARCHAR(255) NOT NULL,
	register_id  NVARCHAR(255) NOT NULL,
	schema_id    NVARCHAR(255) NOT NULL,
	owner        NVARCHAR(255) NOT NULL,
	organisation NVARCHAR(255) NOT NULL,
	name         NVARCHAR(MAX) NOT NULL,
	description  NVARCHAR(MAX) NOT NULL,
	summary      NVARCHAR(MAX) NOT NULL,
	image        NVARCHAR(MAX) NOT NULL,
	slug         NVARCHAR(255) NOT NULL,
	published    NVARCHAR(64)  NOT NULL,
	depublished  NVARCHAR(64)  NOT NULL,
	relations    NVARCHAR(MAX) NOT NULL,
	payload      NVARCHAR(MAX) NOT NULL,
	hash         BIGINT NOT NULL
);`

// EnsureSchema creates the objects and staging tables if missing.
func (m *MSSQL) EnsureSchema(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, mssqlDDL); err != nil {
		return fmt.Errorf("ensure mssql tables: %w", err)
	}
	return nil
}

const mssqlMerge = `
MERGE objects AS t
USING objects_stage AS s ON t.uuid = s.uuid
WHEN MATCHED AND t.hash <> s.hash THEN UPDATE SET
	register_id = s.register_id, schema_id = s.schema_id,
	owner = s.owner, organisation = s.organisation,
	name = s.name, description = s.description, summary = s.summary,
	image = s.image, slug = s.slug,
	published = s.published, depublished = s.depublished,
	relations = s.relations, payload = s.payload, hash = s.hash
WHEN NOT MATCHED THEN INSERT
	(uuid, register_id, schema_id, owner, organisation,
	 name, description, summary, image, slug,
	 published, depublished, relations, payload, hash)
VALUES
	(s.uuid, s.register_id, s.schema_id, s.owner, s.organisation,
	 s.name, s.description, s.summary, s.image, s.slug,
	 s.published, s.depublished, s.relations, s.payload, s.hash);`

// BulkUpsert implements Store: TVP bulk copy into the staging table, one
// MERGE into objects, staging truncated, all inside one transaction.
func (m *MSSQL) BulkUpsert(ctx context.Context, objs []domain.Object) ([]Outcome, error) {
	if len(objs) == 0 {
		return nil, nil
	}
	if !m.warned {
		m.warned = true
		m.log.Warn("mssql backend cannot classify writes; all outcomes report created")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mssql tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM objects_stage`); err != nil {
		return nil, fmt.Errorf("clear staging: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn("objects_stage", mssql.BulkOptions{}, mssqlColumns...))
	if err != nil {
		return nil, fmt.Errorf("prepare bulk copy: %w", err)
	}
	for _, o := range objs {
		rel, err := encodeJSON(o.Relations)
		if err != nil {
			return nil, fmt.Errorf("encode relations for %s: %w", o.UUID, err)
		}
		pl, err := encodeJSON(o.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload for %s: %w", o.UUID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			o.UUID, o.Register, o.Schema, o.Owner, o.Organisation,
			o.Name, o.Description, o.Summary, o.Image, o.Slug,
			o.Published, o.Depublished, rel, pl, int64(o.Hash),
		); err != nil {
			stmt.Close()
			return nil, fmt.Errorf("stage %s: %w", o.UUID, err)
		}
	}
	// No-arg Exec finalizes the bulk operation.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return nil, fmt.Errorf("finalize bulk copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return nil, fmt.Errorf("close bulk copy: %w", err)
	}

	if _, err := tx.ExecContext(ctx, mssqlMerge); err != nil {
		return nil, fmt.Errorf("merge objects: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM objects_stage`); err != nil {
		return nil, fmt.Errorf("clear staging: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mssql tx: %w", err)
	}

	outcomes := make([]Outcome, 0, len(objs))
	for _, o := range objs {
		outcomes = append(outcomes, Outcome{UUID: o.UUID, State: domain.StateCreated})
	}
	return outcomes, nil
}

// FetchByUUIDs implements Store.
func (m *MSSQL) FetchByUUIDs(ctx context.Context, uuids []string) ([]domain.Object, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(uuids))
	args := make([]any, len(uuids))
	for i, id := range uuids {
		placeholders[i] = fmt.Sprintf("@p%d", i+1)
		args[i] = id
	}
	query := `SELECT uuid, register_id, schema_id, owner, organisation,
		name, description, summary, image, slug,
		published, depublished, relations, payload, hash
		FROM objects WHERE uuid IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch objects: %w", err)
	}
	defer rows.Close()

	var out []domain.Object
	for rows.Next() {
		var o domain.Object
		var rel, pl string
		var hash int64
		if err := rows.Scan(
			&o.UUID, &o.Register, &o.Schema, &o.Owner, &o.Organisation,
			&o.Name, &o.Description, &o.Summary, &o.Image, &o.Slug,
			&o.Published, &o.Depublished, &rel, &pl, &hash,
		); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if err := json.Unmarshal([]byte(rel), &o.Relations); err != nil {
			return nil, fmt.Errorf("decode relations for %s: %w", o.UUID, err)
		}
		if err := json.Unmarshal([]byte(pl), &o.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", o.UUID, err)
		}
		o.Hash = uint64(hash)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch objects: %w", err)
	}
	return out, nil
}

const mssqlUpdate = `UPDATE objects SET relations = @p2, payload = @p3, hash = @p4 WHERE uuid = @p1`

// BulkUpdate implements Store with a prepared statement inside one
// transaction; MSSQL has no unnest-style batched update.
func (m *MSSQL) BulkUpdate(ctx context.Context, objs []domain.Object) error {
	if len(objs) == 0 {
		return nil
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mssql tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, mssqlUpdate)
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for _, o := range objs {
		rel, err := encodeJSON(o.Relations)
		if err != nil {
			return fmt.Errorf("encode relations for %s: %w", o.UUID, err)
		}
		pl, err := encodeJSON(o.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", o.UUID, err)
		}
		if _, err := stmt.ExecContext(ctx, o.UUID, rel, pl, int64(o.Hash)); err != nil {
			return fmt.Errorf("update %s: %w", o.UUID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mssql tx: %w", err)
	}
	return nil
}

// Close implements Store.
func (m *MSSQL) Close(context.Context) error { return m.db.Close() }

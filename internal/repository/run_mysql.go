package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql" // dialect registration
	"github.com/go-sql-driver/mysql"
	"github.com/goccy/go-json"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

const (
	dialectMySQL    = "mysql"
	defaultRunTable = "simulation_runs"
	colID           = "id"
	colStatus       = "status"
	colRequest      = "request"
	colResult       = "result"
	colError        = "error"
	colCreatedAt    = "created_at"
	colUpdatedAt    = "updated_at"

	mysqlDuplicateEntry = 1062
)

// RunTableDDL creates the run history table.  Request and result are kept
// as JSON documents.
const RunTableDDL = `CREATE TABLE IF NOT EXISTS simulation_runs (
  id          CHAR(36)      NOT NULL PRIMARY KEY,
  status      VARCHAR(16)   NOT NULL,
  request     JSON          NOT NULL,
  result      JSON          NULL,
  error       VARCHAR(1024) NOT NULL DEFAULT '',
  created_at  DATETIME(6)   NOT NULL,
  updated_at  DATETIME(6)   NOT NULL,
  KEY idx_simulation_runs_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// MySQLRunRepo keeps run history in MySQL.  Queries are built with goqu
// and executed on the plain *sql.DB.
type MySQLRunRepo struct {
	db    *sql.DB
	table string
}

// NewMySQLRunRepo returns a store on db using the simulation_runs table.
func NewMySQLRunRepo(db *sql.DB) *MySQLRunRepo {
	return &MySQLRunRepo{db: db, table: defaultRunTable}
}

// runRow mirrors one table row.
type runRow struct {
	ID        string
	Status    string
	Request   []byte
	Result    []byte
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func toRow(rec model.RunRecord) (goqu.Record, error) {
	req, err := json.Marshal(rec.Request)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	var result any // NULL while running
	if rec.Result != nil {
		b, err := json.Marshal(rec.Result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		result = string(b)
	}
	return goqu.Record{
		colID:        rec.ID,
		colStatus:    string(rec.Status),
		colRequest:   string(req),
		colResult:    result,
		colError:     rec.Error,
		colCreatedAt: rec.CreatedAt.UTC(),
		colUpdatedAt: rec.UpdatedAt.UTC(),
	}, nil
}

func (row runRow) record() (model.RunRecord, error) {
	rec := model.RunRecord{
		ID:        row.ID,
		Status:    model.RunStatus(row.Status),
		Error:     row.Error,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal(row.Request, &rec.Request); err != nil {
		return rec, fmt.Errorf("decode request: %w", err)
	}
	if len(row.Result) > 0 {
		var res model.RunResult
		if err := json.Unmarshal(row.Result, &res); err != nil {
			return rec, fmt.Errorf("decode result: %w", err)
		}
		rec.Result = &res
	}
	return rec, nil
}

func (r *MySQLRunRepo) buildInsert(rec model.RunRecord) (string, []any, error) {
	row, err := toRow(rec)
	if err != nil {
		return "", nil, err
	}
	return goqu.Dialect(dialectMySQL).Insert(r.table).Prepared(true).Rows(row).ToSQL()
}

func (r *MySQLRunRepo) buildUpdate(rec model.RunRecord) (string, []any, error) {
	row, err := toRow(rec)
	if err != nil {
		return "", nil, err
	}
	delete(row, colID)
	delete(row, colCreatedAt)
	return goqu.Dialect(dialectMySQL).
		Update(r.table).
		Prepared(true).
		Set(row).
		Where(goqu.C(colID).Eq(rec.ID)).
		ToSQL()
}

func (r *MySQLRunRepo) buildSelect(id string) (string, []any, error) {
	return goqu.Dialect(dialectMySQL).
		From(r.table).
		Prepared(true).
		Select(colID, colStatus, colRequest, colResult, colError, colCreatedAt, colUpdatedAt).
		Where(goqu.C(colID).Eq(id)).
		Limit(1).
		ToSQL()
}

func (r *MySQLRunRepo) Create(ctx context.Context, rec model.RunRecord) error {
	q, args, err := r.buildInsert(rec)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrRunExists
		}
		return err
	}
	return nil
}

func (r *MySQLRunRepo) Update(ctx context.Context, rec model.RunRecord) error {
	q, args, err := r.buildUpdate(rec)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 for unchanged rows too, so check existence.
		if _, err := r.Get(ctx, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *MySQLRunRepo) Get(ctx context.Context, id string) (model.RunRecord, error) {
	q, args, err := r.buildSelect(id)
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("build select: %w", err)
	}
	var row runRow
	err = r.db.QueryRowContext(ctx, q, args...).Scan(
		&row.ID,
		&row.Status,
		&row.Request,
		&row.Result,
		&row.Error,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return model.RunRecord{}, err
	}
	return row.record()
}

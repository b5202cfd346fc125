package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"buildflow/project-portal/project-portal-backend/internal/schema"
)

// ProjectTable is the name of the projects table
const ProjectTable = "Projects"

// Repository is the project datastore
type Repository interface {
	Writer
	ListProjects(ctx context.Context) ([]*Project, error)
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	ListLocations(ctx context.Context) ([]Location, error)
	LogActivity(ctx context.Context, activity *ProjectActivity) error
}

// postgresRepository reads the projects table through sqlx because its
// columns are only known from the field registry. The fixed reference
// tables and the activity log go through gorm.
type postgresRepository struct {
	db       *sqlx.DB
	orm      *gorm.DB
	registry *schema.Registry
	columns  map[string]bool
}

// NewRepository creates a postgres backed repository
func NewRepository(db *sqlx.DB, orm *gorm.DB, registry *schema.Registry) Repository {
	columns := make(map[string]bool)
	for _, c := range registry.Columns() {
		columns[c] = true
	}
	return &postgresRepository{db: db, orm: orm, registry: registry, columns: columns}
}

func (r *postgresRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY id DESC", pq.QuoteIdentifier(ProjectTable))
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, &RepositoryError{Op: "list projects", Err: err}
	}
	defer rows.Close()

	var items []*Project
	for rows.Next() {
		raw := make(map[string]interface{})
		if err := rows.MapScan(raw); err != nil {
			return nil, &RepositoryError{Op: "list projects", Err: err}
		}
		items = append(items, r.decode(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, &RepositoryError{Op: "list projects", Err: err}
	}
	return items, nil
}

func (r *postgresRepository) GetProject(ctx context.Context, id int64) (*Project, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE id = $1", pq.QuoteIdentifier(ProjectTable))
	raw := make(map[string]interface{})
	err := r.db.QueryRowxContext(ctx, query, id).MapScan(raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &RepositoryError{Op: "get project", Err: fmt.Errorf("id %d: %w", id, ErrNotFound)}
	}
	if err != nil {
		return nil, &RepositoryError{Op: "get project", Err: err}
	}
	return r.decode(raw), nil
}

func (r *postgresRepository) InsertProject(ctx context.Context, p *Project) (*Project, error) {
	columns, args := r.encode(p)

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		pq.QuoteIdentifier(ProjectTable),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "))

	var id int64
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return nil, &RepositoryError{Op: "insert project", Err: err}
	}
	return r.GetProject(ctx, id)
}

// UpdateProject never touches a closed row, whatever the caller last read
func (r *postgresRepository) UpdateProject(ctx context.Context, id int64, p *Project) (*Project, error) {
	columns, args := r.encode(p)
	args = append(args, id, string(StatusClosed))

	res, err := r.db.ExecContext(ctx, updateStatement(columns), args...)
	if err != nil {
		return nil, &RepositoryError{Op: "update project", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, r.unchanged(ctx, "update project", id)
	}
	return r.GetProject(ctx, id)
}

func (r *postgresRepository) DeleteProject(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND %s <> $2",
		pq.QuoteIdentifier(ProjectTable), pq.QuoteIdentifier("status"))
	res, err := r.db.ExecContext(ctx, query, id, string(StatusClosed))
	if err != nil {
		return &RepositoryError{Op: "delete project", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if err := r.unchanged(ctx, "delete project", id); !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// updateStatement sets the given columns by position, then matches the id
// and skips closed rows with the two trailing arguments
func updateStatement(columns []string) string {
	sets := make([]string, len(columns))
	for i, c := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d AND %s <> $%d",
		pq.QuoteIdentifier(ProjectTable),
		strings.Join(sets, ", "),
		len(columns)+1,
		pq.QuoteIdentifier("status"),
		len(columns)+2)
}

// unchanged explains a write that matched no row: the project is gone or closed
func (r *postgresRepository) unchanged(ctx context.Context, op string, id int64) error {
	current, err := r.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &RepositoryError{Op: op, Err: fmt.Errorf("id %d: %w", id, ErrNotFound)}
		}
		return err
	}
	if current.Status == StatusClosed {
		return &ProjectClosedError{ProjectID: id}
	}
	return &RepositoryError{Op: op, Err: fmt.Errorf("id %d: no row changed", id)}
}

func (r *postgresRepository) ListEmployees(ctx context.Context) ([]Employee, error) {
	var items []Employee
	if err := r.orm.WithContext(ctx).Find(&items).Error; err != nil {
		return nil, &RepositoryError{Op: "list employees", Err: err}
	}
	return items, nil
}

func (r *postgresRepository) ListLocations(ctx context.Context) ([]Location, error) {
	var items []Location
	if err := r.orm.WithContext(ctx).Find(&items).Error; err != nil {
		return nil, &RepositoryError{Op: "list locations", Err: err}
	}
	return items, nil
}

func (r *postgresRepository) LogActivity(ctx context.Context, activity *ProjectActivity) error {
	if err := r.orm.WithContext(ctx).Create(activity).Error; err != nil {
		return &RepositoryError{Op: "log activity", Err: err}
	}
	return nil
}

// encode lists the quoted columns and values to write, in a stable order.
// Keys unknown to the registry never reach the datastore.
func (r *postgresRepository) encode(p *Project) ([]string, []interface{}) {
	names := make([]string, 0, len(p.Fields))
	for name := range p.Fields {
		if r.columns[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	columns := []string{pq.QuoteIdentifier("status")}
	args := []interface{}{string(p.Status)}
	for _, name := range names {
		columns = append(columns, pq.QuoteIdentifier(name))
		args = append(args, p.Fields[name])
	}
	return columns, args
}

// decode turns a scanned row into a Project, typing each known column by its field kind
func (r *postgresRepository) decode(raw map[string]interface{}) *Project {
	p := &Project{Fields: Fields{}}
	for col, v := range raw {
		switch col {
		case "id":
			p.ID, _ = toInt64(v)
			continue
		case "status":
			s := toString(v)
			if st, ok := ParseStatus(s); ok {
				p.Status = st
			} else {
				p.Status = Status(s)
			}
			continue
		}
		f, ok := r.registry.Describe(col)
		if !ok {
			continue
		}
		p.Fields[col] = decodeValue(f, v)
	}
	return p
}

func decodeValue(f schema.Field, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch f.Kind {
	case schema.KindCheckbox:
		if b, ok := v.(bool); ok {
			return b
		}
		b, _ := strconv.ParseBool(toString(v))
		return b
	case schema.KindNumber:
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		}
		n, err := strconv.ParseFloat(toString(v), 64)
		if err != nil {
			return nil
		}
		return n
	case schema.KindDate:
		if t, ok := v.(time.Time); ok {
			return t.Format(schema.DateLayout)
		}
		return toString(v)
	case schema.KindSelect:
		if f.IsReference() {
			if id, ok := toInt64(v); ok {
				return id
			}
			return nil
		}
	}
	return toString(v)
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}

func toInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case []byte, string:
		n, err := strconv.ParseInt(toString(t), 10, 64)
		return n, err == nil
	}
	return 0, false
}

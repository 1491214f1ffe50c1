package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// ReservationRepo stores reservations in MySQL.  Each reservation is one
// row; passengers, the destination snapshot and the payment are kept in
// JSON columns so a write never spans several rows.  All timestamps are
// stored in UTC with millisecond precision.
type ReservationRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const reservationsDDL = `CREATE TABLE IF NOT EXISTS reservations (
  id CHAR(36) NOT NULL PRIMARY KEY,
  reference VARCHAR(40) NOT NULL,
  departure_location VARCHAR(255) NOT NULL,
  destination_id VARCHAR(64) NOT NULL,
  flight_number VARCHAR(16) NOT NULL DEFAULT '',
  departure_at DATETIME(3) NOT NULL,
  return_at DATETIME(3) NULL,
  travel_class VARCHAR(16) NOT NULL,
  passengers JSON NOT NULL,
  total_price DECIMAL(12,2) NOT NULL,
  destination_snapshot JSON NULL,
  payment JSON NOT NULL,
  status VARCHAR(16) NOT NULL,
  user_id VARCHAR(64) NULL,
  version BIGINT NOT NULL,
  created_at DATETIME(3) NOT NULL,
  updated_at DATETIME(3) NOT NULL,
  UNIQUE KEY uq_reservations_reference (reference),
  KEY idx_reservations_status (status, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// reservation_references holds every reference ever issued.  Rows outlive
// the reservation they were issued for.
const referencesDDL = `CREATE TABLE IF NOT EXISTS reservation_references (
  reference VARCHAR(40) NOT NULL PRIMARY KEY,
  reservation_id CHAR(36) NOT NULL,
  issued_at DATETIME(3) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EnsureSchema creates the reservations and reference tables when they do
// not exist and registers references of rows created before the
// reference table.
func (r *ReservationRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, reservationsDDL); err != nil {
		return fmt.Errorf("create reservations table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, referencesDDL); err != nil {
		return fmt.Errorf("create reservation_references table: %w", err)
	}
	const backfill = `INSERT IGNORE INTO reservation_references (reference, reservation_id, issued_at)
	  SELECT reference, id, created_at FROM reservations`
	if _, err := r.db.ExecContext(ctx, backfill); err != nil {
		return fmt.Errorf("backfill reservation_references: %w", err)
	}
	return nil
}

const reservationColumns = `id, reference, departure_location, destination_id, flight_number,
  departure_at, return_at, travel_class, passengers, total_price, destination_snapshot,
  payment, status, user_id, version, created_at, updated_at`

// Create registers the reference and inserts the row in one transaction.
// A reference already registered, even by a deleted reservation, yields
// ErrDuplicateReference.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	now := r.now().Truncate(time.Millisecond)
	passengers, snapshot, payment, err := encodeDocuments(res)
	if err != nil {
		return err
	}
	id := uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reservation insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reservation_references (reference, reservation_id, issued_at) VALUES (?, ?, ?)`,
		res.Reference, id, now); err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("register reference: %w", err)
	}

	const q = `INSERT INTO reservations (` + reservationColumns + `)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		id, res.Reference, res.DepartureLocation, res.DestinationID, res.Flight.FlightNumber,
		res.Flight.DepartureAt, res.Flight.ReturnAt, string(res.Flight.TravelClass),
		passengers, res.TotalPrice, snapshot, payment, string(res.Status),
		nullString(res.UserID), 1, now, now)
	if err != nil {
		if isDuplicateEntry(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reservation insert: %w", err)
	}
	res.ID = id
	res.Version = 1
	res.CreatedAt = now
	res.UpdatedAt = now
	return nil
}

// GetByID retrieves a single reservation by id.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return scanReservation(row)
}

// GetByReference retrieves a single reservation by its booking reference.
func (r *ReservationRepo) GetByReference(ctx context.Context, reference string) (*model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE reference = ?`, reference)
	return scanReservation(row)
}

// ReferenceTaken reports whether the reference was ever issued.
func (r *ReservationRepo) ReferenceTaken(ctx context.Context, reference string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM reservation_references WHERE reference = ? LIMIT 1`, reference).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Update overwrites the mutable columns when the stored version equals
// res.Version.  Reference and created_at are never written.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	now := r.now().Truncate(time.Millisecond)
	passengers, snapshot, payment, err := encodeDocuments(res)
	if err != nil {
		return err
	}
	const q = `UPDATE reservations SET departure_location = ?, destination_id = ?, flight_number = ?,
	  departure_at = ?, return_at = ?, travel_class = ?, passengers = ?, total_price = ?,
	  destination_snapshot = ?, payment = ?, status = ?, user_id = ?, version = version + 1, updated_at = ?
	  WHERE id = ? AND version = ?`
	result, err := r.db.ExecContext(ctx, q,
		res.DepartureLocation, res.DestinationID, res.Flight.FlightNumber,
		res.Flight.DepartureAt, res.Flight.ReturnAt, string(res.Flight.TravelClass),
		passengers, res.TotalPrice, snapshot, payment, string(res.Status),
		nullString(res.UserID), now, res.ID, res.Version)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the row is gone or another writer bumped the version.
		var version int64
		err := r.db.QueryRowContext(ctx, `SELECT version FROM reservations WHERE id = ?`, res.ID).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrVersionConflict
	}
	res.Version++
	res.UpdatedAt = now
	return nil
}

// Delete removes the row permanently.  The reference stays registered in
// reservation_references.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStatus returns every reservation in the given status, newest first.
func (r *ReservationRepo) ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE status = ? ORDER BY created_at DESC, id DESC`,
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// sqlSortColumns maps sort keys to columns.  Only these values are ever
// interpolated into ORDER BY.
var sqlSortColumns = map[string]string{
	SortCreatedAt:   "created_at",
	SortUpdatedAt:   "updated_at",
	SortTotalPrice:  "total_price",
	SortDepartureAt: "departure_at",
	SortReference:   "reference",
	SortStatus:      "status",
}

// ListPaged returns one page ordered by q.Sort.
func (r *ReservationRepo) ListPaged(ctx context.Context, q ListQuery) (Page, error) {
	q = q.Normalize()
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&total); err != nil {
		return Page{}, err
	}
	col, ok := sqlSortColumns[q.Sort.Field]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if q.Sort.Desc {
		dir = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM reservations ORDER BY %s %s, id %s LIMIT ? OFFSET ?`,
		reservationColumns, col, dir, dir)
	rows, err := r.db.QueryContext(ctx, query, q.PageSize, q.Offset())
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()
	items, err := scanReservations(rows)
	if err != nil {
		return Page{}, err
	}
	return newPage(items, total, q), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res        model.Reservation
		returnAt   sql.NullTime
		class      string
		status     string
		userID     sql.NullString
		passengers []byte
		snapshot   []byte
		payment    []byte
	)
	err := row.Scan(
		&res.ID, &res.Reference, &res.DepartureLocation, &res.DestinationID, &res.Flight.FlightNumber,
		&res.Flight.DepartureAt, &returnAt, &class, &passengers, &res.TotalPrice, &snapshot,
		&payment, &status, &userID, &res.Version, &res.CreatedAt, &res.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	res.Flight.TravelClass = model.TravelClass(class)
	res.Status = model.Status(status)
	res.Flight.DepartureAt = res.Flight.DepartureAt.UTC()
	res.CreatedAt = res.CreatedAt.UTC()
	res.UpdatedAt = res.UpdatedAt.UTC()
	if returnAt.Valid {
		t := returnAt.Time.UTC()
		res.Flight.ReturnAt = &t
	}
	if userID.Valid {
		res.UserID = userID.String
	}
	if err := json.Unmarshal(passengers, &res.Passengers); err != nil {
		return nil, fmt.Errorf("decode passengers: %w", err)
	}
	if len(snapshot) > 0 && string(snapshot) != "null" {
		res.DestinationSnapshot = &model.DestinationSnapshot{}
		if err := json.Unmarshal(snapshot, res.DestinationSnapshot); err != nil {
			return nil, fmt.Errorf("decode destination snapshot: %w", err)
		}
	}
	if err := json.Unmarshal(payment, &res.Payment); err != nil {
		return nil, fmt.Errorf("decode payment: %w", err)
	}
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	items := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *res)
	}
	return items, rows.Err()
}

func encodeDocuments(res *model.Reservation) (passengers, snapshot, payment []byte, err error) {
	if passengers, err = json.Marshal(res.Passengers); err != nil {
		return nil, nil, nil, err
	}
	if res.DestinationSnapshot != nil {
		if snapshot, err = json.Marshal(res.DestinationSnapshot); err != nil {
			return nil, nil, nil, err
		}
	}
	if payment, err = json.Marshal(res.Payment); err != nil {
		return nil, nil, nil, err
	}
	return passengers, snapshot, payment, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

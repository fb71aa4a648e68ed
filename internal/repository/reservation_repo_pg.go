package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/salonbooking/internal/calendar"
	"github.com/Domenick1991/salonbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/001_salon_reservations.sql
var schemaSQL string

const reservationColumns = `reservation_id::text, customer_name, phone_number, reservation_date, reservation_time,
	stylist_name, service_menu, duration_minutes, status, COALESCE(notes, ''), created_at, updated_at`

const (
	pgExclusionViolation = "23P01"
	pgCheckViolation     = "23514"
	pgInvalidText        = "22P02"
	pgSerialization      = "40001"
	pgDeadlock           = "40P01"
	pgQueryCanceled      = "57014"
	pgLockNotAvailable   = "55P03"
)

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) *PGReservationRepository {
	return &PGReservationRepository{db: db}
}

// Migrate creates the reservations table and its overlap constraint.
func (r *PGReservationRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *PGReservationRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return domain.Unavailable("ping", err)
	}
	return nil
}

func (r *PGReservationRepository) TryReserve(ctx context.Context, candidate *domain.Reservation) error {
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}
	if err := domain.ValidateSlot(*candidate); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeError("begin reserve", err)
	}
	defer tx.Rollback(ctx)

	if err := lockSlot(ctx, tx, candidate.Key()); err != nil {
		return err
	}
	if err := checkCollision(ctx, tx, *candidate); err != nil {
		return err
	}

	candidate.Status = domain.ReservationStatusScheduled
	err = tx.QueryRow(ctx, `INSERT INTO salon_reservations
		(reservation_id, customer_name, phone_number, reservation_date, reservation_time,
		 stylist_name, service_menu, duration_minutes, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		RETURNING created_at, updated_at`,
		candidate.ID, candidate.CustomerName, candidate.PhoneNumber, candidate.Date, pgTime(candidate.StartTime),
		candidate.StylistName, candidate.ServiceMenu, candidate.DurationMinutes, candidate.Status.String(), candidate.Notes).
		Scan(&candidate.CreatedAt, &candidate.UpdatedAt)
	if err != nil {
		if isExclusionViolation(err) {
			return r.conflictAfterViolation(ctx, *candidate)
		}
		return storeError("insert reservation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return r.conflictAfterViolation(ctx, *candidate)
		}
		return storeError("commit reserve", err)
	}
	return nil
}

func (r *PGReservationRepository) TryModify(ctx context.Context, id string, changes domain.Changes) (*domain.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeError("begin modify", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanReservation(tx.QueryRow(ctx, `SELECT `+reservationColumns+`
		FROM salon_reservations WHERE reservation_id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, storeError("load reservation", err)
	}
	if err := domain.CheckModifiable(current); err != nil {
		return nil, err
	}

	next := changes.Apply(current)
	if err := domain.ValidateSlot(next); err != nil {
		return nil, err
	}
	if changes.TouchesSlot() {
		if err := lockSlot(ctx, tx, next.Key()); err != nil {
			return nil, err
		}
		if err := checkCollision(ctx, tx, next); err != nil {
			return nil, err
		}
	}

	updated, err := scanReservation(tx.QueryRow(ctx, `UPDATE salon_reservations
		SET reservation_date = $2, reservation_time = $3, stylist_name = $4, service_menu = $5,
			duration_minutes = $6, notes = NULLIF($7, ''), updated_at = now()
		WHERE reservation_id = $1
		RETURNING `+reservationColumns,
		id, next.Date, pgTime(next.StartTime), next.StylistName, next.ServiceMenu, next.DurationMinutes, next.Notes))
	if err != nil {
		if isExclusionViolation(err) {
			return nil, r.conflictAfterViolation(ctx, next)
		}
		return nil, storeError("update reservation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return nil, r.conflictAfterViolation(ctx, next)
		}
		return nil, storeError("commit modify", err)
	}
	return &updated, nil
}

func (r *PGReservationRepository) Cancel(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.transition(ctx, id, domain.ReservationStatusCancelled)
}

func (r *PGReservationRepository) Complete(ctx context.Context, id string) (*domain.Reservation, error) {
	return r.transition(ctx, id, domain.ReservationStatusCompleted)
}

// transition is a single conditional UPDATE so that two racing callers can
// never both move the same reservation out of scheduled.
func (r *PGReservationRepository) transition(ctx context.Context, id string, next domain.ReservationStatus) (*domain.Reservation, error) {
	updated, err := scanReservation(r.db.QueryRow(ctx, `UPDATE salon_reservations
		SET status = $2, updated_at = now()
		WHERE reservation_id = $1 AND status = $3
		RETURNING `+reservationColumns,
		id, next.String(), domain.ReservationStatusScheduled.String()))
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, storeError("update status", err)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckTransition(*current, next); err != nil {
		return nil, err
	}
	// Scheduled again by the time we looked: the row changed under us.
	return nil, domain.Unavailable("update status", errors.New("concurrent update"))
}

func (r *PGReservationRepository) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	res, err := scanReservation(r.db.QueryRow(ctx, `SELECT `+reservationColumns+`
		FROM salon_reservations WHERE reservation_id = $1`, id))
	if err != nil {
		return nil, storeError("get reservation", err)
	}
	return &res, nil
}

func (r *PGReservationRepository) ListByPhone(ctx context.Context, phone string) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reservationColumns+`
		FROM salon_reservations WHERE phone_number = $1 ORDER BY seq`, phone)
	if err != nil {
		return nil, storeError("list by phone", err)
	}
	return collectReservations(rows)
}

func (r *PGReservationRepository) ListByStylistDate(ctx context.Context, stylist string, date time.Time) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reservationColumns+`
		FROM salon_reservations WHERE stylist_name = $1 AND reservation_date = $2 ORDER BY seq`,
		stylist, calendar.DateOnly(date))
	if err != nil {
		return nil, storeError("list by stylist", err)
	}
	return collectReservations(rows)
}

// conflictAfterViolation reads back the winner after the exclusion constraint
// rejected a write that slipped past the advisory lock.
func (r *PGReservationRepository) conflictAfterViolation(ctx context.Context, candidate domain.Reservation) error {
	booked, err := r.ListByStylistDate(ctx, candidate.StylistName, candidate.Date)
	if err == nil {
		for _, existing := range booked {
			if candidate.Collides(existing) {
				return domain.NewConflictError(existing)
			}
		}
	}
	return &domain.ConflictError{
		Stylist:  candidate.StylistName,
		Date:     calendar.FormatDate(candidate.Date),
		Existing: candidate.Interval(),
	}
}

// lockSlot serializes writers of one stylist calendar and date until the
// transaction ends.
func lockSlot(ctx context.Context, tx pgx.Tx, key domain.SlotKey) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return storeError("lock slot", err)
	}
	return nil
}

func checkCollision(ctx context.Context, tx pgx.Tx, candidate domain.Reservation) error {
	rows, err := tx.Query(ctx, `SELECT `+reservationColumns+`
		FROM salon_reservations
		WHERE stylist_name = $1 AND reservation_date = $2 AND status = $3 AND reservation_id <> $4
		ORDER BY seq`,
		candidate.StylistName, calendar.DateOnly(candidate.Date), domain.ReservationStatusScheduled.String(), candidate.ID)
	if err != nil {
		return storeError("check overlap", err)
	}
	booked, err := collectReservations(rows)
	if err != nil {
		return err
	}
	for _, existing := range booked {
		if candidate.Collides(existing) {
			return domain.NewConflictError(existing)
		}
	}
	return nil
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, storeError("scan reservation", err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("read reservations", err)
	}
	return reservations, nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res    domain.Reservation
		start  pgtype.Time
		status string
	)
	if err := row.Scan(&res.ID, &res.CustomerName, &res.PhoneNumber, &res.Date, &start,
		&res.StylistName, &res.ServiceMenu, &res.DurationMinutes, &status, &res.Notes, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return domain.Reservation{}, err
	}
	parsed, err := domain.ParseReservationStatus(status)
	if err != nil {
		return domain.Reservation{}, err
	}
	res.Status = parsed
	res.Date = calendar.DateOnly(res.Date)
	res.StartTime = calendar.TimeOfDay(start.Microseconds / int64(time.Second/time.Microsecond))
	return res, nil
}

func pgTime(t calendar.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Second/time.Microsecond), Valid: true}
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

// storeError translates driver errors into the domain taxonomy.
func storeError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidText:
			return domain.ErrNotFound
		case pgCheckViolation:
			return &domain.ValidationError{Field: pgErr.ConstraintName, Reason: pgErr.Message, Err: err}
		case pgSerialization, pgDeadlock, pgQueryCanceled, pgLockNotAvailable:
			return domain.Unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.Unavailable(op, err)
}

var _ ReservationRepository = (*PGReservationRepository)(nil)

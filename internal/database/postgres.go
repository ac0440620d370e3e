// internal/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rekindle/internal/logger"
	"rekindle/internal/models"
	"rekindle/internal/utils"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresDB represents a PostgreSQL database connection
type PostgresDB struct {
	DB *sqlx.DB
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string) (*PostgresDB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %v", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %v", err)
	}

	logger.Info("Connected to PostgreSQL")

	return &PostgresDB{DB: db}, nil
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresDB) Close(ctx context.Context) error {
	logger.Info("Closing PostgreSQL connection")
	return p.DB.Close()
}

// InitializeTables creates all necessary tables if they don't exist
func (p *PostgresDB) InitializeTables(ctx context.Context) error {
	statements := []struct {
		name string
		ddl  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id UUID PRIMARY KEY,
				email VARCHAR(254) UNIQUE NOT NULL,
				password_hash VARCHAR(100) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"messages", `
			CREATE TABLE IF NOT EXISTS messages (
				id UUID PRIMARY KEY,
				author_id UUID NOT NULL,
				author_email VARCHAR(254) NOT NULL,
				role VARCHAR(20) NOT NULL,
				subcommunity VARCHAR(40) NOT NULL,
				title VARCHAR(100),
				body TEXT NOT NULL,
				parent_id UUID REFERENCES messages(id),
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				like_count INTEGER NOT NULL DEFAULT 0 CHECK (like_count >= 0),
				liked_by UUID[] NOT NULL DEFAULT '{}',
				flag_count INTEGER NOT NULL DEFAULT 0,
				is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
				is_hidden BOOLEAN NOT NULL DEFAULT FALSE
			)`},
		{"messages_parent_idx", `CREATE INDEX IF NOT EXISTS messages_parent_idx ON messages (parent_id, created_at)`},
		{"messages_subcommunity_idx", `CREATE INDEX IF NOT EXISTS messages_subcommunity_idx ON messages (subcommunity, created_at DESC)`},
		{"message_flags", `
			CREATE TABLE IF NOT EXISTS message_flags (
				message_id UUID REFERENCES messages(id),
				user_id UUID NOT NULL,
				reason VARCHAR(20) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
				PRIMARY KEY (message_id, user_id)
			)`},
		{"details", `
			CREATE TABLE IF NOT EXISTS details (
				user_id UUID PRIMARY KEY,
				id UUID NOT NULL,
				patient_name TEXT,
				patient_about TEXT,
				patient_disease TEXT,
				guardians JSONB NOT NULL DEFAULT '[]',
				family_photo BYTEA,
				family_photo_type VARCHAR(100),
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"reminders", `
			CREATE TABLE IF NOT EXISTS reminders (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL,
				reason TEXT NOT NULL,
				time TIMESTAMP WITH TIME ZONE NOT NULL,
				schedule VARCHAR(100) NOT NULL DEFAULT '',
				delivered BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
			)`},
		{"reminders_user_idx", `CREATE INDEX IF NOT EXISTS reminders_user_idx ON reminders (user_id, time)`},
	}

	for _, st := range statements {
		if _, err := p.DB.ExecContext(ctx, st.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %v", st.name, err)
		}
	}
	return nil
}

// --- User Methods ---

func (p *PostgresDB) SaveUser(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	query := `INSERT INTO users (id, email, password_hash, created_at) VALUES (:id, :email, :password_hash, :created_at)`
	_, err := p.DB.NamedExecContext(ctx, query, user)
	if err != nil {
		if isUniqueViolation(err) {
			return utils.NewAppError(utils.ErrDuplicate, "user already exists", err)
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to save user", err)
	}
	return nil
}

func (p *PostgresDB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := p.DB.GetContext(ctx, &user, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "user not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by id", err)
	}
	return &user, nil
}

func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := p.DB.GetContext(ctx, &user, `SELECT id, email, password_hash, created_at FROM users WHERE lower(email) = lower($1)`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "user not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by email", err)
	}
	return &user, nil
}

// --- Message Methods ---

// messageRow adds the array column sqlx cannot map onto the model directly.
type messageRow struct {
	models.Message
	LikedByRaw pq.StringArray `db:"liked_by"`
}

func (r *messageRow) toModel() *models.Message {
	msg := r.Message
	msg.LikedBy = make([]uuid.UUID, 0, len(r.LikedByRaw))
	for _, s := range r.LikedByRaw {
		if id, err := uuid.Parse(s); err == nil {
			msg.LikedBy = append(msg.LikedBy, id)
		}
	}
	return &msg
}

const messageColumns = `id, author_id, author_email, role, subcommunity, title, body, parent_id, created_at,
	like_count, liked_by, flag_count, is_flagged, is_hidden`

func (p *PostgresDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, author_id, author_email, role, subcommunity, title, body, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.DB.ExecContext(ctx, query,
		msg.ID,
		msg.AuthorID,
		msg.AuthorEmail,
		string(msg.Role),
		string(msg.Subcommunity),
		msg.Title,
		msg.Body,
		msg.ParentID,
		msg.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return utils.NewAppError(utils.ErrDuplicate, "message already exists", err)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return utils.NewInvalidInputError("Parent message not found")
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to save message", err)
	}
	return nil
}

func (p *PostgresDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var row messageRow
	err := p.DB.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "Message not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query message", err)
	}
	msg := row.toModel()

	var flags []models.FlagRecord
	err = p.DB.SelectContext(ctx, &flags,
		`SELECT user_id, reason, created_at FROM message_flags WHERE message_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query message flags", err)
	}
	msg.FlaggedBy = flags
	return msg, nil
}

func (p *PostgresDB) GetTopLevelMessages(ctx context.Context, filter models.MessageFilter) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE parent_id IS NULL
		  AND ($1 = '' OR role = $1)
		  AND ($2 = '' OR subcommunity = $2)
		  AND (NOT $3 OR NOT is_hidden)
		ORDER BY created_at DESC
	`
	args := []interface{}{string(filter.Role), string(filter.Subcommunity), filter.ExcludeHidden}
	if filter.Limit > 0 {
		query += ` LIMIT $4`
		args = append(args, filter.Limit)
	}
	return p.selectMessages(ctx, query, args...)
}

func (p *PostgresDB) GetReplies(ctx context.Context, parentID uuid.UUID, limit int) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE parent_id = $1 ORDER BY created_at ASC`
	args := []interface{}{parentID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return p.selectMessages(ctx, query, args...)
}

func (p *PostgresDB) selectMessages(ctx context.Context, query string, args ...interface{}) ([]*models.Message, error) {
	var rows []messageRow
	if err := p.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query messages", err)
	}
	messages := make([]*models.Message, len(rows))
	for i := range rows {
		messages[i] = rows[i].toModel()
	}
	return messages, nil
}

func (p *PostgresDB) CountMessages(ctx context.Context) (int, error) {
	var n int
	if err := p.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages`); err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to count messages", err)
	}
	return n, nil
}

// ToggleLike runs the add or the remove branch as one conditional UPDATE;
// the membership test and the counter change happen in the same statement.
func (p *PostgresDB) ToggleLike(ctx context.Context, messageID, userID uuid.UUID) (*models.LikeResult, error) {
	const like = `
		UPDATE messages
		SET liked_by = array_append(liked_by, $2::uuid), like_count = like_count + 1
		WHERE id = $1 AND NOT ($2::uuid = ANY(liked_by))
		RETURNING like_count`
	const unlike = `
		UPDATE messages
		SET liked_by = array_remove(liked_by, $2::uuid), like_count = GREATEST(like_count - 1, 0)
		WHERE id = $1 AND $2::uuid = ANY(liked_by)
		RETURNING like_count`

	for attempt := 0; attempt < 3; attempt++ {
		var count int
		err := p.DB.GetContext(ctx, &count, like, messageID, userID)
		if err == nil {
			return &models.LikeResult{LikeCount: count, IsLiked: true}, nil
		}
		if err != sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrDatabase, "failed to like message", err)
		}

		err = p.DB.GetContext(ctx, &count, unlike, messageID, userID)
		if err == nil {
			return &models.LikeResult{LikeCount: count, IsLiked: false}, nil
		}
		if err != sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrDatabase, "failed to unlike message", err)
		}

		exists, err := p.messageExists(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, utils.NewAppError(utils.ErrNotFound, "Message not found", nil)
		}
	}
	return nil, utils.NewAppError(utils.ErrDatabase, "like toggle did not converge", nil)
}

// FlagMessage inserts the flag row and bumps the counters in one statement.
// ON CONFLICT makes a repeated flag by the same user a no-op.
func (p *PostgresDB) FlagMessage(ctx context.Context, messageID uuid.UUID, flag models.FlagRecord) (*models.FlagResult, error) {
	const query = `
		WITH ins AS (
			INSERT INTO message_flags (message_id, user_id, reason, created_at)
			SELECT id, $2::uuid, $3::varchar, $4::timestamptz FROM messages WHERE id = $1
			ON CONFLICT (message_id, user_id) DO NOTHING
			RETURNING message_id
		)
		UPDATE messages
		SET flag_count = flag_count + 1,
		    is_flagged = is_flagged OR flag_count + 1 >= $5::int,
		    is_hidden = is_hidden OR flag_count + 1 >= $5::int
		WHERE id = (SELECT message_id FROM ins)
		RETURNING flag_count, is_flagged`

	var out struct {
		FlagCount int  `db:"flag_count"`
		IsFlagged bool `db:"is_flagged"`
	}
	err := p.DB.GetContext(ctx, &out, query, messageID, flag.UserID, string(flag.Reason), flag.Timestamp, models.FlagThreshold)
	if err == nil {
		return &models.FlagResult{FlagCount: out.FlagCount, IsFlagged: out.IsFlagged}, nil
	}
	if err != sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to flag message", err)
	}

	exists, err := p.messageExists(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, utils.NewAppError(utils.ErrNotFound, "Message not found", nil)
	}
	return nil, utils.NewAppError(utils.ErrAlreadyFlagged, "You have already flagged this message", nil)
}

func (p *PostgresDB) messageExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := p.DB.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM messages WHERE id = $1)`, id); err != nil {
		return false, utils.NewAppError(utils.ErrDatabase, "failed to look up message", err)
	}
	return exists, nil
}

// --- Statistics ---

func (p *PostgresDB) GetCommunityStats(ctx context.Context, subcommunity models.SubcommunityID) (*models.CommunityStats, error) {
	var totals struct {
		TotalMessages int `db:"total_messages"`
		TotalReplies  int `db:"total_replies"`
		TotalUsers    int `db:"total_users"`
	}
	err := p.DB.GetContext(ctx, &totals, `
		SELECT COUNT(*) FILTER (WHERE parent_id IS NULL) AS total_messages,
		       COUNT(*) FILTER (WHERE parent_id IS NOT NULL) AS total_replies,
		       COUNT(DISTINCT author_id) AS total_users
		FROM messages
		WHERE ($1 = '' OR subcommunity = $1)`, string(subcommunity))
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to aggregate messages", err)
	}

	var roleRows []models.RoleCount
	err = p.DB.SelectContext(ctx, &roleRows, `
		SELECT role, COUNT(*) AS count
		FROM messages
		WHERE parent_id IS NULL AND ($1 = '' OR subcommunity = $1)
		GROUP BY role`, string(subcommunity))
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to aggregate roles", err)
	}
	roles := make(map[models.Role]int, len(roleRows))
	for _, r := range roleRows {
		roles[r.Role] = r.Count
	}

	stats := &models.CommunityStats{
		TotalMessages: totals.TotalMessages,
		TotalReplies:  totals.TotalReplies,
		TotalUsers:    totals.TotalUsers,
		RoleStats:     completeRoleStats(roles),
	}
	if subcommunity == "" {
		counts, err := p.GetSubcommunityCounts(ctx)
		if err != nil {
			return nil, err
		}
		stats.SubcommunityStats = counts
	}
	return stats, nil
}

func (p *PostgresDB) GetSubcommunityCounts(ctx context.Context) ([]models.SubcommunityCounts, error) {
	var rows []models.SubcommunityCounts
	err := p.DB.SelectContext(ctx, &rows, `
		SELECT subcommunity AS id, COUNT(*) AS message_count, COUNT(DISTINCT author_id) AS user_count
		FROM messages
		GROUP BY subcommunity`)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to aggregate subcommunities", err)
	}
	return catalogCounts(rows), nil
}

// --- Details ---

func (p *PostgresDB) SaveDetails(ctx context.Context, details *models.Details) error {
	guardians, err := json.Marshal(details.Guardians)
	if err != nil {
		return utils.NewAppError(utils.ErrInvalidInput, "invalid guardians", err)
	}
	var photo []byte
	var photoType sql.NullString
	if details.FamilyPhoto != nil {
		photo = details.FamilyPhoto.Data
		photoType = sql.NullString{String: details.FamilyPhoto.ContentType, Valid: true}
	}

	_, err = p.DB.ExecContext(ctx, `
		INSERT INTO details (user_id, id, patient_name, patient_about, patient_disease, guardians, family_photo, family_photo_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			patient_name = EXCLUDED.patient_name,
			patient_about = EXCLUDED.patient_about,
			patient_disease = EXCLUDED.patient_disease,
			guardians = EXCLUDED.guardians,
			family_photo = EXCLUDED.family_photo,
			family_photo_type = EXCLUDED.family_photo_type`,
		details.UserID, details.ID, details.PatientName, details.PatientAbout, details.PatientDisease,
		guardians, photo, photoType, details.CreatedAt,
	)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save details", err)
	}
	return nil
}

func (p *PostgresDB) GetDetails(ctx context.Context, userID uuid.UUID) (*models.Details, error) {
	var row struct {
		ID             uuid.UUID      `db:"id"`
		PatientName    sql.NullString `db:"patient_name"`
		PatientAbout   sql.NullString `db:"patient_about"`
		PatientDisease sql.NullString `db:"patient_disease"`
		Guardians      []byte         `db:"guardians"`
		Photo          []byte         `db:"family_photo"`
		PhotoType      sql.NullString `db:"family_photo_type"`
		CreatedAt      time.Time      `db:"created_at"`
	}
	err := p.DB.GetContext(ctx, &row, `
		SELECT id, patient_name, patient_about, patient_disease, guardians, family_photo, family_photo_type, created_at
		FROM details WHERE user_id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "details not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query details", err)
	}

	details := &models.Details{
		ID:             row.ID,
		UserID:         userID,
		PatientName:    row.PatientName.String,
		PatientAbout:   row.PatientAbout.String,
		PatientDisease: row.PatientDisease.String,
		CreatedAt:      row.CreatedAt,
	}
	if err := json.Unmarshal(row.Guardians, &details.Guardians); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "corrupt guardians column", err)
	}
	if row.Photo != nil {
		details.FamilyPhoto = &models.Photo{Data: row.Photo, ContentType: row.PhotoType.String}
	}
	return details, nil
}

// --- Reminders ---

const reminderColumns = `id, user_id, reason, time, schedule, delivered, created_at`

func (p *PostgresDB) SaveReminder(ctx context.Context, reminder *models.Reminder) error {
	_, err := p.DB.NamedExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (:id, :user_id, :reason, :time, :schedule, :delivered, :created_at)`, reminder)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save reminder", err)
	}
	return nil
}

func (p *PostgresDB) GetReminder(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	var r models.Reminder
	err := p.DB.GetContext(ctx, &r, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, utils.NewAppError(utils.ErrNotFound, "reminder not found", err)
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query reminder", err)
	}
	return &r, nil
}

func (p *PostgresDB) GetRemindersByUser(ctx context.Context, userID uuid.UUID) ([]*models.Reminder, error) {
	reminders := []*models.Reminder{}
	err := p.DB.SelectContext(ctx, &reminders,
		`SELECT `+reminderColumns+` FROM reminders WHERE user_id = $1 ORDER BY time ASC`, userID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query reminders", err)
	}
	return reminders, nil
}

func (p *PostgresDB) UpdateReminder(ctx context.Context, reminder *models.Reminder) error {
	result, err := p.DB.NamedExecContext(ctx, `
		UPDATE reminders SET reason = :reason, time = :time, schedule = :schedule, delivered = :delivered
		WHERE id = :id`, reminder)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to update reminder", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to get rows affected after update", err)
	}
	if rowsAffected == 0 {
		return utils.NewAppError(utils.ErrNotFound, "reminder not found", nil)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

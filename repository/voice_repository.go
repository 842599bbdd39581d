package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"VoxTA/db"
	"VoxTA/model"
)

// VoiceRepository defines the interface for voice sample operations.
type VoiceRepository interface {
	Create(sample *model.VoiceSample) error
	GetByID(id string) (*model.VoiceSample, error)
	List(tags []string, skip, limit int) ([]*model.VoiceSample, int, error)
	UpdateStatus(id string, status model.VoiceStatus, qualityScore *float64, errMsg string) error
	Delete(id string) error
}

// mysqlVoiceRepository implements VoiceRepository for MySQL.
type mysqlVoiceRepository struct {
	DB *sql.DB
}

// NewMySQLVoiceRepository creates a new instance of mysqlVoiceRepository.
func NewMySQLVoiceRepository() VoiceRepository {
	return &mysqlVoiceRepository{DB: db.DB}
}

// tags 以逗号连接存入单列，读取时再拆开
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// Create inserts a new voice sample.
func (r *mysqlVoiceRepository) Create(sample *model.VoiceSample) error {
	query := `INSERT INTO voice_samples (id, name, description, tags, status, quality_score, object_key, original_filename, content_type, file_size, error, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for voice Create: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(sample.ID, sample.Name, sample.Description, joinTags(sample.Tags), sample.Status,
		sample.QualityScore, sample.ObjectKey, sample.OriginalFilename, sample.ContentType, sample.FileSize,
		sample.Error, sample.CreatedAt, sample.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute voice Create for %s: %w", sample.ID, err)
	}
	return nil
}

// GetByID retrieves a voice sample by its ID. Returns (nil, nil) when not found.
func (r *mysqlVoiceRepository) GetByID(id string) (*model.VoiceSample, error) {
	query := `SELECT id, name, description, tags, status, quality_score, object_key, original_filename, content_type, file_size, error, created_at, updated_at
	           FROM voice_samples WHERE id = ?`
	row := r.DB.QueryRow(query, id)

	sample, err := scanVoiceSample(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Voice sample not found
		}
		return nil, fmt.Errorf("failed to scan voice sample %s: %w", id, err)
	}
	return sample, nil
}

func scanVoiceSample(scan func(dest ...interface{}) error) (*model.VoiceSample, error) {
	sample := &model.VoiceSample{}
	var tags string
	var description, objectKey, originalFilename, contentType, errMsg sql.NullString
	var qualityScore sql.NullFloat64
	err := scan(&sample.ID, &sample.Name, &description, &tags, &sample.Status, &qualityScore,
		&objectKey, &originalFilename, &contentType, &sample.FileSize, &errMsg,
		&sample.CreatedAt, &sample.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sample.Description = description.String
	sample.Tags = splitTags(tags)
	if qualityScore.Valid {
		score := qualityScore.Float64
		sample.QualityScore = &score
	}
	sample.ObjectKey = objectKey.String
	sample.OriginalFilename = originalFilename.String
	sample.ContentType = contentType.String
	sample.Error = errMsg.String
	return sample, nil
}

// List returns voice samples matching all given tags, with pagination.
// The total count reflects the filter, not the page.
func (r *mysqlVoiceRepository) List(tags []string, skip, limit int) ([]*model.VoiceSample, int, error) {
	where := ""
	args := make([]interface{}, 0)
	if len(tags) > 0 {
		conds := make([]string, 0, len(tags))
		for _, tag := range tags {
			// 逗号包裹后匹配，避免 "en" 命中 "engine"
			conds = append(conds, "CONCAT(',', tags, ',') LIKE ?")
			args = append(args, "%,"+tag+",%")
		}
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM voice_samples" + where
	if err := r.DB.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count voice samples: %w", err)
	}

	query := `SELECT id, name, description, tags, status, quality_score, object_key, original_filename, content_type, file_size, error, created_at, updated_at
	           FROM voice_samples` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, skip)
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query voice samples: %w", err)
	}
	defer rows.Close()

	samples := make([]*model.VoiceSample, 0)
	for rows.Next() {
		sample, err := scanVoiceSample(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan voice sample in List: %w", err)
		}
		samples = append(samples, sample)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error during rows iteration in voice List: %w", err)
	}

	return samples, total, nil
}

// UpdateStatus moves a sample to a new processing status.
func (r *mysqlVoiceRepository) UpdateStatus(id string, status model.VoiceStatus, qualityScore *float64, errMsg string) error {
	query := `UPDATE voice_samples SET status = ?, quality_score = ?, error = ?, updated_at = NOW() WHERE id = ?`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for voice UpdateStatus: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(status, qualityScore, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to execute voice UpdateStatus for %s: %w", id, err)
	}
	return nil
}

// Delete removes a voice sample row.
func (r *mysqlVoiceRepository) Delete(id string) error {
	stmt, err := r.DB.Prepare(`DELETE FROM voice_samples WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for voice Delete: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.Exec(id)
	if err != nil {
		return fmt.Errorf("failed to execute voice Delete for %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows for voice Delete: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

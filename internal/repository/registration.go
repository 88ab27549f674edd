package repository

import (
	"context"
	"database/sql"

	"stream-monetization-workers/internal/models"
)

type RegistrationRepository struct {
	db *sql.DB
}

func NewRegistrationRepository(db *sql.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, email, COALESCE(first_name, ''), COALESCE(last_name, ''),
		       COALESCE(phone, ''), COALESCE(company, ''), COALESCE(source, ''),
		       attended, converted, conversion_value, custom_fields, registered_at
		FROM registrations
		WHERE event_id = $1
		ORDER BY registered_at ASC`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Registration
	for rows.Next() {
		var reg models.Registration
		var custom []byte
		if err := rows.Scan(
			&reg.ID, &reg.EventID, &reg.Email, &reg.FirstName, &reg.LastName,
			&reg.Phone, &reg.Company, &reg.Source,
			&reg.Attended, &reg.Converted, &reg.ConversionValue, &custom, &reg.RegisteredAt,
		); err != nil {
			return nil, err
		}
		if err := fromJSONB(custom, &reg.CustomFields); err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (r *RegistrationRepository) MarkConverted(ctx context.Context, id string, value int64) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE registrations
		SET converted = TRUE, conversion_value = conversion_value + $2, converted_at = NOW()
		WHERE id = $1`, id, value))
}

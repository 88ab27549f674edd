package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stream-monetization-workers/internal/common/database"
	"stream-monetization-workers/internal/models"
)

type ConversionRepository struct {
	db *sql.DB
}

func NewConversionRepository(db *sql.DB) *ConversionRepository {
	return &ConversionRepository{db: db}
}

const conversionColumns = `
	id, stream_id, COALESCE(viewer_id, ''), COALESCE(registration_id, ''),
	conversion_type, product_name, amount, currency, quantity,
	payment_intent_id, customer_id, payment_status,
	COALESCE(invoice_number, ''), COALESCE(invoice_url, ''), COALESCE(conversion_trigger, ''),
	COALESCE(ai_suggestion_id, ''), ai_contribution_score, customer_details,
	fulfillment_status, created_at, updated_at`

func (r *ConversionRepository) Create(ctx context.Context, c *models.ConversionEvent) error {
	details, err := toJSONB(c.CustomerDetails)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversion_events (
			id, stream_id, viewer_id, registration_id, conversion_type, product_name,
			amount, currency, quantity, payment_intent_id, customer_id, payment_status,
			conversion_trigger, ai_suggestion_id, ai_contribution_score, customer_details,
			fulfillment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (id) DO NOTHING`,
		c.ID, c.StreamID, nullString(c.ViewerID), nullString(c.RegistrationID),
		string(c.ConversionType), c.ProductName, c.Amount, c.Currency, c.Quantity,
		c.PaymentIntentID, c.CustomerID, string(c.PaymentStatus),
		nullString(c.ConversionTrigger), nullString(c.AISuggestionID), c.AIContributionScore, details,
		string(c.FulfillmentStatus), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *ConversionRepository) GetByID(ctx context.Context, id string) (*models.ConversionEvent, error) {
	return scanConversion(r.db.QueryRowContext(ctx,
		`SELECT `+conversionColumns+` FROM conversion_events WHERE id = $1`, id))
}

func (r *ConversionRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.ConversionEvent, error) {
	return scanConversion(r.db.QueryRowContext(ctx,
		`SELECT `+conversionColumns+` FROM conversion_events WHERE payment_intent_id = $1`, paymentIntentID))
}

// Settle moves a pending conversion to completed or failed. It reports
// false when another confirmation already settled it.
func (r *ConversionRepository) Settle(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	return changed(r.db.ExecContext(ctx, `
		UPDATE conversion_events
		SET payment_status = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`, id, string(status)))
}

func (r *ConversionRepository) StampInvoice(ctx context.Context, id, invoiceNumber, invoiceURL string) error {
	return requireRow(r.db.ExecContext(ctx, `
		UPDATE conversion_events
		SET invoice_number = $2, invoice_url = $3, updated_at = NOW()
		WHERE id = $1`, id, invoiceNumber, invoiceURL))
}

// IncrementStream adds the conversion to its stream aggregates once and
// flags it as aggregated in the same transaction, so a refund only reverses
// what was counted.
func (r *ConversionRepository) IncrementStream(ctx context.Context, conversionID, streamID string, amount int64) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		first, err := changed(tx.ExecContext(ctx, `
			UPDATE conversion_events SET aggregated = TRUE
			WHERE id = $1 AND aggregated = FALSE AND payment_status = 'completed'`, conversionID))
		if err != nil || !first {
			return err
		}
		return requireRow(tx.ExecContext(ctx, `
			UPDATE streams
			SET total_conversions = total_conversions + 1, total_revenue = total_revenue + $2
			WHERE id = $1`, streamID, amount))
	})
}

// Refund marks a completed conversion refunded and, if it was counted,
// reverses its stream aggregates by the stored amount, in one transaction.
// It reports false when the conversion was not completed.
func (r *ConversionRepository) Refund(ctx context.Context, id string) (bool, error) {
	refunded := false
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			streamID   string
			amount     int64
			aggregated bool
		)
		err := tx.QueryRowContext(ctx, `
			UPDATE conversion_events
			SET payment_status = 'refunded', fulfillment_status = 'cancelled', updated_at = NOW()
			WHERE id = $1 AND payment_status = 'completed'
			RETURNING stream_id, amount, aggregated`, id).Scan(&streamID, &amount, &aggregated)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if !aggregated {
			refunded = true
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE streams
			SET total_conversions = total_conversions - 1, total_revenue = total_revenue - $2
			WHERE id = $1`, streamID, amount); err != nil {
			return fmt.Errorf("reverse stream aggregates: %w", err)
		}
		refunded = true
		return nil
	})
	return refunded, err
}

func (r *ConversionRepository) CreateInvoice(ctx context.Context, inv *models.Invoice) error {
	lineItems, err := toJSONB(inv.LineItems)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO invoices (
			id, invoice_number, conversion_id, customer_email, line_items,
			subtotal, tax, total, currency, pdf_url, status, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		inv.ID, inv.InvoiceNumber, inv.ConversionID, inv.CustomerEmail, lineItems,
		inv.Subtotal, inv.Tax, inv.Total, inv.Currency, inv.PDFURL, string(inv.Status), inv.IssuedAt,
	)
	return err
}

func scanConversion(row rowScanner) (*models.ConversionEvent, error) {
	var c models.ConversionEvent
	var conversionType, paymentStatus, fulfillment string
	var details []byte
	err := row.Scan(
		&c.ID, &c.StreamID, &c.ViewerID, &c.RegistrationID,
		&conversionType, &c.ProductName, &c.Amount, &c.Currency, &c.Quantity,
		&c.PaymentIntentID, &c.CustomerID, &paymentStatus,
		&c.InvoiceNumber, &c.InvoiceURL, &c.ConversionTrigger,
		&c.AISuggestionID, &c.AIContributionScore, &details,
		&fulfillment, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	c.ConversionType = models.ConversionType(conversionType)
	c.PaymentStatus = models.PaymentStatus(paymentStatus)
	c.FulfillmentStatus = models.FulfillmentStatus(fulfillment)
	if err := fromJSONB(details, &c.CustomerDetails); err != nil {
		return nil, err
	}
	return &c, nil
}

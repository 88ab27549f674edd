package confirmpayment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stream-monetization-workers/internal/common/aws"
	apperrors "stream-monetization-workers/internal/common/errors"
	"stream-monetization-workers/internal/common/logger"
	"stream-monetization-workers/internal/common/payments"
	"stream-monetization-workers/internal/common/zoho"
	"stream-monetization-workers/internal/models"
	"stream-monetization-workers/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConversions struct {
	rows        map[string]*models.ConversionEvent
	getErr      error
	settleErr   error
	lostRace    bool
	invoiceErr  error
	invoices    []*models.Invoice
	streamDelta map[string]int64
	settles     int
}

func newFakeConversions(c *models.ConversionEvent) *fakeConversions {
	return &fakeConversions{
		rows:        map[string]*models.ConversionEvent{c.ID: c},
		streamDelta: map[string]int64{},
	}
}

func (f *fakeConversions) GetByID(_ context.Context, id string) (*models.ConversionEvent, error) {
	c, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversions) GetByPaymentIntentID(_ context.Context, pi string) (*models.ConversionEvent, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.rows {
		if c.PaymentIntentID == pi {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeConversions) Settle(_ context.Context, id string, status models.PaymentStatus) (bool, error) {
	f.settles++
	if f.settleErr != nil {
		return false, f.settleErr
	}
	c := f.rows[id]
	if f.lostRace {
		c.PaymentStatus = models.PaymentCompleted
		c.InvoiceNumber = "INV-other"
		return false, nil
	}
	if c.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	c.PaymentStatus = status
	return true, nil
}

func (f *fakeConversions) CreateInvoice(_ context.Context, inv *models.Invoice) error {
	if f.invoiceErr != nil {
		return f.invoiceErr
	}
	f.invoices = append(f.invoices, inv)
	return nil
}

func (f *fakeConversions) StampInvoice(_ context.Context, id, number, url string) error {
	f.rows[id].InvoiceNumber = number
	f.rows[id].InvoiceURL = url
	return nil
}

func (f *fakeConversions) IncrementStream(_ context.Context, _, streamID string, amount int64) error {
	f.streamDelta[streamID] += amount
	return nil
}

type MockGateway struct {
	status IntentStatusFunc
	err    error
	calls  int
}

type IntentStatusFunc func() payments.IntentStatus

func (m *MockGateway) FindOrCreateCustomer(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func (m *MockGateway) CreatePaymentIntent(context.Context, payments.CreateIntentParams) (*payments.Intent, error) {
	return nil, errors.New("not used")
}

func (m *MockGateway) GetPaymentIntent(_ context.Context, id string) (*payments.Intent, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &payments.Intent{ID: id, Status: m.status()}, nil
}

func (m *MockGateway) CreateRefund(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func intentStatus(s payments.IntentStatus) IntentStatusFunc {
	return func() payments.IntentStatus { return s }
}

type recordingMarker struct {
	marks map[string]int64
	err   error
}

func (r *recordingMarker) MarkConverted(_ context.Context, id string, value int64) error {
	if r.err != nil {
		return r.err
	}
	if r.marks == nil {
		r.marks = map[string]int64{}
	}
	r.marks[id] += value
	return nil
}

type recordingAttributor struct {
	marks map[string]int64
}

func (r *recordingAttributor) MarkLedToConversion(_ context.Context, id string, value int64) error {
	if r.marks == nil {
		r.marks = map[string]int64{}
	}
	r.marks[id] = value
	return nil
}

type fakeDocuments struct {
	err  error
	keys []string
	data [][]byte
}

func (f *fakeDocuments) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.data = append(f.data, data)
	return "https://cdn.example.com/" + key, nil
}

type recordingEmail struct {
	sent []aws.EmailMessage
}

func (r *recordingEmail) Send(_ context.Context, msg aws.EmailMessage) (string, error) {
	r.sent = append(r.sent, msg)
	return "msg-1", nil
}

type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, _ string, _ interface{}) error {
	p.types = append(p.types, eventType)
	return nil
}

type recordingCRM struct {
	contacts []*zoho.Contact
	err      error
}

func (r *recordingCRM) UpsertContact(_ context.Context, c *zoho.Contact) (string, error) {
	r.contacts = append(r.contacts, c)
	return "z-1", r.err
}

type fixture struct {
	conversions   *fakeConversions
	gateway       *MockGateway
	viewers       *recordingMarker
	registrations *recordingMarker
	suggestions   *recordingAttributor
	documents     *fakeDocuments
	email         *recordingEmail
	publisher     *recordingPublisher
	crm           *recordingCRM
	handler       *Handler
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func pendingConversion() *models.ConversionEvent {
	return &models.ConversionEvent{
		ID:                  "conv-0001-abcdef",
		StreamID:            "stream-1",
		ViewerID:            "viewer-1",
		RegistrationID:      "reg-1",
		ProductName:         "Pro Course",
		Amount:              4900,
		Currency:            "usd",
		Quantity:            1,
		PaymentIntentID:     "pi_123",
		PaymentStatus:       models.PaymentPending,
		AISuggestionID:      "sug-1",
		AIContributionScore: 0.8,
		CustomerDetails:     models.CustomerDetails{Email: "ann@example.com", Name: "Ann Lee"},
		FulfillmentStatus:   models.FulfillmentPending,
	}
}

func newFixture(t *testing.T, c *models.ConversionEvent, status payments.IntentStatus) *fixture {
	f := &fixture{
		conversions:   newFakeConversions(c),
		gateway:       &MockGateway{status: intentStatus(status)},
		viewers:       &recordingMarker{},
		registrations: &recordingMarker{},
		suggestions:   &recordingAttributor{},
		documents:     &fakeDocuments{},
		email:         &recordingEmail{},
		publisher:     &recordingPublisher{},
		crm:           &recordingCRM{},
	}
	f.handler = NewHandler(HandlerOptions{
		Config:        LoadConfig(),
		Gateway:       f.gateway,
		Conversions:   f.conversions,
		Viewers:       f.viewers,
		Registrations: f.registrations,
		Suggestions:   f.suggestions,
		Documents:     f.documents,
		Email:         f.email,
		Publisher:     f.publisher,
		CRM:           f.crm,
		Logger:        logger.NewTestLogger(t),
	})
	f.handler.now = func() time.Time { return fixedNow }
	f.handler.newID = func() string { return "inv-id-1" }
	return f
}

func TestInvoiceNumber(t *testing.T) {
	assert.Equal(t, fmt.Sprintf("INV-%d-abcdef", fixedNow.UnixMilli()), InvoiceNumber("conv-0001-abcdef", fixedNow))
	assert.Equal(t, fmt.Sprintf("INV-%d-abc", fixedNow.UnixMilli()), InvoiceNumber("abc", fixedNow))
}

func TestBuildInvoice_TaxRounding(t *testing.T) {
	tests := []struct {
		amount  int64
		wantTax int64
	}{
		{4900, 392},
		{1999, 160},
		{1006, 80},
		{1, 0},
		{7, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("amount_%d", tt.amount), func(t *testing.T) {
			c := pendingConversion()
			c.Amount = tt.amount
			inv := BuildInvoice(c, 0.08, "inv-1", fixedNow)

			assert.Equal(t, tt.amount, inv.Subtotal)
			assert.Equal(t, tt.wantTax, inv.Tax)
			assert.Equal(t, inv.Subtotal+inv.Tax, inv.Total)
		})
	}
}

func TestBuildInvoice_LineItem(t *testing.T) {
	c := pendingConversion()
	c.Quantity = 2
	c.Amount = 5000
	inv := BuildInvoice(c, 0.08, "inv-1", fixedNow)

	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, models.LineItem{Description: "Pro Course", Quantity: 2, UnitAmount: 2500, Amount: 5000}, inv.LineItems[0])
	assert.Equal(t, "ann@example.com", inv.CustomerEmail)
	assert.Equal(t, models.InvoicePaid, inv.Status)
}

func TestBuildInvoice_UnevenSplit(t *testing.T) {
	tests := []struct {
		amount   int64
		quantity int
		want     []models.LineItem
	}{
		{
			amount:   1000,
			quantity: 3,
			want: []models.LineItem{
				{Description: "Pro Course", Quantity: 2, UnitAmount: 333, Amount: 666},
				{Description: "Pro Course", Quantity: 1, UnitAmount: 334, Amount: 334},
			},
		},
		{
			amount:   2,
			quantity: 3,
			want: []models.LineItem{
				{Description: "Pro Course", Quantity: 1, UnitAmount: 0, Amount: 0},
				{Description: "Pro Course", Quantity: 2, UnitAmount: 1, Amount: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_over_%d", tt.amount, tt.quantity), func(t *testing.T) {
			c := pendingConversion()
			c.Amount = tt.amount
			c.Quantity = tt.quantity
			inv := BuildInvoice(c, 0.08, "inv-1", fixedNow)

			assert.Equal(t, tt.want, inv.LineItems)

			var sum int64
			var units int
			for _, item := range inv.LineItems {
				assert.Equal(t, item.UnitAmount*int64(item.Quantity), item.Amount)
				sum += item.Amount
				units += item.Quantity
			}
			assert.Equal(t, inv.Subtotal, sum)
			assert.Equal(t, tt.quantity, units)
		})
	}
}

func TestRenderInvoicePDF(t *testing.T) {
	inv := BuildInvoice(pendingConversion(), 0.08, "inv-1", fixedNow)
	pdf, err := RenderInvoicePDF(inv, "Acme Streams", 0.08)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "USD 49.00", FormatAmount(4900, "usd"))
	assert.Equal(t, "EUR 0.05", FormatAmount(5, "eur"))
	assert.Equal(t, "-USD 1.50", FormatAmount(-150, "usd"))
}

func TestHandler_Execute_Succeeded(t *testing.T) {
	f := newFixture(t, pendingConversion(), payments.IntentSucceeded)

	out, err := f.handler.Execute(context.Background(), &Input{PaymentIntentID: "pi_123"})
	require.NoError(t, err)

	require.NotNil(t, out.Conversion)
	assert.False(t, out.AlreadySettled)
	assert.Equal(t, models.PaymentCompleted, out.Conversion.PaymentStatus)
	assert.Equal(t, models.PaymentCompleted, f.conversions.rows["conv-0001-abcdef"].PaymentStatus)

	wantNumber := fmt.Sprintf("INV-%d-abcdef", fixedNow.UnixMilli())
	require.Len(t, f.conversions.invoices, 1)
	inv := f.conversions.invoices[0]
	assert.Equal(t, wantNumber, inv.InvoiceNumber)
	assert.Equal(t, int64(392), inv.Tax)
	assert.Equal(t, int64(5292), inv.Total)
	assert.Equal(t, "https://cdn.example.com/invoices/"+wantNumber+".pdf", inv.PDFURL)
	assert.Equal(t, wantNumber, out.Conversion.InvoiceNumber)
	assert.Equal(t, inv.PDFURL, f.conversions.rows["conv-0001-abcdef"].InvoiceURL)
	assert.Equal(t, []string{"invoices/" + wantNumber + ".pdf"}, f.documents.keys)

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "ann@example.com", f.email.sent[0].To)
	assert.Contains(t, f.email.sent[0].Text, inv.PDFURL)

	assert.Equal(t, int64(4900), f.conversions.streamDelta["stream-1"])
	assert.Equal(t, map[string]int64{"viewer-1": 4900}, f.viewers.marks)
	assert.Equal(t, map[string]int64{"reg-1": 4900}, f.registrations.marks)
	assert.Equal(t, map[string]int64{"sug-1": 4900}, f.suggestions.marks)
	assert.Equal(t, []string{"conversion.completed"}, f.publisher.types)

	require.Len(t, f.crm.contacts, 1)
	assert.Equal(t, "Ann", f.crm.contacts[0].FirstName)
	assert.Equal(t, "Lee", f.crm.contacts[0].LastName)
}

func TestHandler_Execute_NotSucceeded(t *testing.T) {
	for _, status := range []payments.IntentStatus{payments.IntentRequiresPaymentMethod, payments.IntentCanceled, payments.IntentProcessing} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, pendingConversion(), status)

			out, err := f.handler.Execute(context.Background(), &Input{PaymentIntentID: "pi_123"})
			require.NoError(t, err)

			assert.Equal(t, models.PaymentFailed, out.Conversion.PaymentStatus)
			assert.Empty(t, f.conversions.invoices, "no invoice for a failed payment")
			assert.Empty(t, f.conversions.streamDelta)
			assert.Empty(t, f.email.sent)
			assert.Empty(t, f.publisher.types)
			assert.Nil(t, f.viewers.marks)
		})
	}
}

func TestHandler_Execute_AlreadySettled(t *testing.T) {
	c := pendingConversion()
	c.PaymentStatus = models.PaymentCompleted
	c.InvoiceNumber = "INV-1-abcdef"
	f := newFixture(t, c, payments.IntentSucceeded)

	out, err := f.handler.Execute(context.Background(), &Input{PaymentIntentID: "pi_123"})
	require.NoError(t, err)

	assert.True(t, out.AlreadySettled)
	assert.Equal(t, "INV-1-abcdef", out.Conversion.InvoiceNumber)
	assert.Equal(t, 0, f.gateway.calls)
	assert.Equal(t, 0, f.conversions.settles)
	assert.Empty(t, f.conversions.streamDelta)
}

func TestHandler_Execute_LostSettleRace(t *testing.T) {
	f := newFixture(t, pendingConversion(), payments.IntentSucceeded)
	f.conversions.lostRace = true

	out, err := f.handler.Execute(context.Background(), &Input{PaymentIntentID: "pi_123"})
	require.NoError(t, err)

	assert.True(t, out.AlreadySettled)
	assert.Equal(t, "INV-other", out.Conversion.InvoiceNumber)
	assert.Empty(t, f.conversions.invoices)
	assert.Empty(t, f.conversions.streamDelta)
}

func TestHandler_Execute_InvoiceFailureDoesNotUnwind(t *testing.T) {
	f := newFixture(t, pendingConversion(), payments.IntentSucceeded)
	f.documents.err = errors.New("s3 unavailable")
	f.viewers.err = errors.New("viewer row locked")

	out, err := f.handler.Execute(context.Background(), &Input{PaymentIntentID: "pi_123"})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentCompleted, out.Conversion.PaymentStatus)
	assert.Equal(t, models.PaymentCompleted, f.conversions.rows["conv-0001-abcdef"].PaymentStatus)
	assert.Empty(t, out.Conversion.InvoiceNumber)
	assert.Empty(t, f.conversions.invoices)

	// Later steps still run.
	require.Len(t, f.email.sent, 1)
	assert.NotContains(t, f.email.sent[0].Text, "Invoice")
	assert.Equal(t, int64(4900), f.conversions.streamDelta["stream-1"])
	assert.Equal(t, map[string]int64{"reg-1": 4900}, f.registrations.marks)
	assert.Equal(t, map[string]int64{"sug-1": 4900}, f.suggestions.marks)
	assert.Equal(t, []string{"conversion.completed"}, f.publisher.types)
}

func TestHandler_Execute_OptionalCollaborators(t *testing.T) {
	c := pendingConversion()
	c.ViewerID = ""
	c.AISuggestionID = ""
	f := newFixture(t, c, payments.IntentSucceeded)
	f.handler.documents = nil
	f.handler.email = nil
	f.handler.crm = nil

	out, err := f.handler.Execute(context.Background(), &Input{PaymentIntentID: "pi_123"})
	require.NoError(t, err)

	require.Len(t, f.conversions.invoices, 1)
	assert.Empty(t, f.conversions.invoices[0].PDFURL)
	assert.NotEmpty(t, out.Conversion.InvoiceNumber)
	assert.Nil(t, f.viewers.marks)
	assert.Nil(t, f.suggestions.marks)
	assert.Empty(t, f.crm.contacts)
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     *Input
		setup     func(*fixture)
		wantCode  apperrors.ErrorCode
		retryable bool
	}{
		{
			name:     "missing intent id",
			input:    &Input{},
			wantCode: apperrors.ErrCodeInvalidInput,
		},
		{
			name:     "unknown intent",
			input:    &Input{PaymentIntentID: "pi_missing"},
			wantCode: apperrors.ErrCodeConversionNotFound,
		},
		{
			name:      "lookup fails",
			input:     &Input{PaymentIntentID: "pi_123"},
			setup:     func(f *fixture) { f.conversions.getErr = errors.New("conn refused") },
			wantCode:  apperrors.ErrCodeQueryExecutionFailed,
			retryable: true,
		},
		{
			name:      "gateway fails",
			input:     &Input{PaymentIntentID: "pi_123"},
			setup:     func(f *fixture) { f.gateway.err = errors.New("stripe 503") },
			wantCode:  apperrors.ErrCodePaymentProviderFailed,
			retryable: true,
		},
		{
			name:      "settle fails",
			input:     &Input{PaymentIntentID: "pi_123"},
			setup:     func(f *fixture) { f.conversions.settleErr = errors.New("deadlock") },
			wantCode:  apperrors.ErrCodeQueryExecutionFailed,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, pendingConversion(), payments.IntentSucceeded)
			if tt.setup != nil {
				tt.setup(f)
			}

			out, err := f.handler.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, out)

			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.Equal(t, models.PaymentPending, f.conversions.rows["conv-0001-abcdef"].PaymentStatus)
		})
	}
}

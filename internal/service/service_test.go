package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakapradipta/blood-donor-registration/internal/model"
	"github.com/rakapradipta/blood-donor-registration/internal/notify"
	"github.com/rakapradipta/blood-donor-registration/internal/repository"
)

// countingStore wraps a RegistrantStore and records how often Register
// is reached, so tests can prove validation short-circuits before any
// store interaction.
type countingStore struct {
	RegistrantStore
	registerCalls int
}

func (c *countingStore) Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registrant, *model.Event, error) {
	c.registerCalls++
	return c.RegistrantStore.Register(ctx, eventID, req)
}

type stubDispatcher struct {
	err        error
	calls      int
	lastNumber string
	lastText   string
}

func (d *stubDispatcher) Send(_ context.Context, number, text string) error {
	d.calls++
	d.lastNumber = number
	d.lastText = text
	return d.err
}

type failingGenerator struct{}

func (failingGenerator) Compose(context.Context, string, string) (string, error) {
	return "", errors.New("generation backend timed out")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validRequest() model.RegisterRequest {
	return model.RegisterRequest{
		FullName:      "Budi Santoso",
		NationalID:    "3171234567890001",
		ContactNumber: "081234567890",
	}
}

func newTestService(t *testing.T, gen notify.Generator, disp Dispatcher) (*RegistrationService, *countingStore, string) {
	t.Helper()
	mem := repository.NewMemoryStore()
	event, err := mem.Create(context.Background(), model.CreateEventRequest{
		Location: "Stasiun Juanda",
		Date:     "2026-03-30",
		MaxQuota: 2,
	})
	require.NoError(t, err)

	store := &countingStore{RegistrantStore: mem}
	svc := NewRegistrationService(mem, store, gen, disp, testLogger())
	return svc, store, event.ID
}

func TestRegisterHappyPath(t *testing.T) {
	disp := &stubDispatcher{}
	svc, store, eventID := newTestService(t, notify.TemplateGenerator{}, disp)

	resp, err := svc.Register(context.Background(), eventID, validRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, store.registerCalls)
	assert.NotEmpty(t, resp.Registrant.ID)
	assert.Equal(t, eventID, resp.Registrant.EventID)
	assert.True(t, resp.Delivered)
	assert.Equal(t, notify.Message("Budi Santoso", "Stasiun Juanda pada 2026-03-30"), resp.Message)

	assert.Equal(t, 1, disp.calls)
	assert.Equal(t, "081234567890", disp.lastNumber)
	assert.Equal(t, resp.Message, disp.lastText)
}

func TestInvalidNationalIDRejectedBeforeStore(t *testing.T) {
	svc, store, eventID := newTestService(t, notify.TemplateGenerator{}, &stubDispatcher{})

	req := validRequest()
	req.NationalID = "317123456789000" // 15 digits

	_, err := svc.Register(context.Background(), eventID, req)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, store.registerCalls, "validation must reject before any store interaction")
}

func TestRegisterValidation(t *testing.T) {
	svc, store, eventID := newTestService(t, notify.TemplateGenerator{}, &stubDispatcher{})

	tests := []struct {
		name   string
		mutate func(*model.RegisterRequest)
	}{
		{"empty name", func(r *model.RegisterRequest) { r.FullName = "" }},
		{"name too short", func(r *model.RegisterRequest) { r.FullName = "Bu" }},
		{"national id not numeric", func(r *model.RegisterRequest) { r.NationalID = "31712345678900ab" }},
		{"national id too long", func(r *model.RegisterRequest) { r.NationalID = "31712345678900011" }},
		{"national id with sign", func(r *model.RegisterRequest) { r.NationalID = "+317123456789000" }},
		{"national id with decimal point", func(r *model.RegisterRequest) { r.NationalID = "3171234.56789000" }},
		{"contact number wrong prefix", func(r *model.RegisterRequest) { r.ContactNumber = "621234567890" }},
		{"contact number too short", func(r *model.RegisterRequest) { r.ContactNumber = "08123456" }},
		{"contact number with decimal point", func(r *model.RegisterRequest) { r.ContactNumber = "08123456.8901" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.Register(context.Background(), eventID, req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Zero(t, store.registerCalls)
}

func TestRegisterUnknownEvent(t *testing.T) {
	svc, _, _ := newTestService(t, notify.TemplateGenerator{}, &stubDispatcher{})

	_, err := svc.Register(context.Background(), "nonexistent-id", validRequest())
	assert.ErrorIs(t, err, repository.ErrEventNotFound)
}

func TestRegisterFullEvent(t *testing.T) {
	disp := &stubDispatcher{}
	svc, _, eventID := newTestService(t, notify.TemplateGenerator{}, disp)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		req := validRequest()
		_, err := svc.Register(ctx, eventID, req)
		require.NoError(t, err)
	}

	_, err := svc.Register(ctx, eventID, validRequest())
	assert.ErrorIs(t, err, repository.ErrQuotaExceeded)
	assert.Equal(t, 2, disp.calls, "rejected registration must not dispatch anything")
}

func TestGeneratorFailureFallsBackToTemplate(t *testing.T) {
	disp := &stubDispatcher{}
	svc, _, eventID := newTestService(t, failingGenerator{}, disp)

	resp, err := svc.Register(context.Background(), eventID, validRequest())
	require.NoError(t, err, "generator failure must not fail the registration")

	assert.Equal(t, notify.Message("Budi Santoso", "Stasiun Juanda pada 2026-03-30"), resp.Message)
	assert.True(t, resp.Delivered)
}

func TestDispatchFailureDoesNotFailRegistration(t *testing.T) {
	disp := &stubDispatcher{err: notify.ErrDispatchFailed}
	svc, _, eventID := newTestService(t, notify.TemplateGenerator{}, disp)

	resp, err := svc.Register(context.Background(), eventID, validRequest())
	require.NoError(t, err, "dispatch failure must not fail the registration")

	assert.False(t, resp.Delivered)
	assert.NotEmpty(t, resp.Message, "caller always gets confirmation text")

	// The registrant row was committed before dispatch was attempted.
	regs, err := svc.ListEventRegistrants(context.Background(), eventID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestSetCapacityValidation(t *testing.T) {
	svc, _, eventID := newTestService(t, notify.TemplateGenerator{}, &stubDispatcher{})

	err := svc.SetCapacity(context.Background(), eventID, model.SetCapacityRequest{MaxQuota: 0})
	assert.ErrorIs(t, err, ErrValidation)

	err = svc.SetCapacity(context.Background(), eventID, model.SetCapacityRequest{MaxQuota: 10})
	assert.NoError(t, err)
}

func TestCreateEventValidation(t *testing.T) {
	svc, _, _ := newTestService(t, notify.TemplateGenerator{}, &stubDispatcher{})
	ctx := context.Background()

	_, err := svc.CreateEvent(ctx, model.CreateEventRequest{Location: "Stasiun Manggarai", Date: "30-03-2026", MaxQuota: 5})
	assert.ErrorIs(t, err, ErrValidation, "date must be ISO formatted")

	_, err = svc.CreateEvent(ctx, model.CreateEventRequest{Location: "Stasiun Manggarai", Date: "2026-03-30", MaxQuota: 5})
	assert.NoError(t, err)
}

func TestSeedDefaults(t *testing.T) {
	mem := repository.NewMemoryStore()
	svc := NewRegistrationService(mem, mem, notify.TemplateGenerator{}, &stubDispatcher{}, testLogger())

	n, err := svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

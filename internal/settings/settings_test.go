package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reengage/internal/customer/models"
)

func TestMemoryStoreTemplateDefault(t *testing.T) {
	s := NewMemoryStore()
	tpl, err := s.EmailTemplate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultEmailTemplate, tpl)
}

func TestMemoryStoreTemplateRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetEmailTemplate(context.Background(), "<p>Hi {first_name}</p>"))
	tpl, err := s.EmailTemplate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi {first_name}</p>", tpl)
}

func TestMemoryStoreCouponsReplacePrevious(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := []models.IssuedCoupon{{Email: "a@x.com", Voucher: "V1"}}
	require.NoError(t, s.SetLastGeneratedCoupons(ctx, first))

	second := []models.IssuedCoupon{{Email: "b@x.com", Voucher: "V2"}}
	require.NoError(t, s.SetLastGeneratedCoupons(ctx, second))

	got, err := s.LastGeneratedCoupons(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b@x.com", got[0].Email)
}

func TestMemoryStoreCouponsEmptyBeforeFirstRun(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.LastGeneratedCoupons(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khata/internal/core/apperror"
	"khata/internal/core/id"
	"khata/internal/core/tenant"
)

type memRepo struct {
	ledgers []*Ledger
}

func (r *memRepo) Create(_ context.Context, l *Ledger) error {
	r.ledgers = append(r.ledgers, l)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, businessID, ledgerID id.ID) (*Ledger, error) {
	for _, l := range r.ledgers {
		if l.BusinessID == businessID && l.ID == ledgerID {
			return l, nil
		}
	}
	return nil, apperror.NewNotFound("ledger", ledgerID)
}

func (r *memRepo) GetBySystemKind(_ context.Context, businessID id.ID, kind SystemKind) (*Ledger, error) {
	for _, l := range r.ledgers {
		if l.BusinessID == businessID && l.SystemKind != nil && *l.SystemKind == kind {
			return l, nil
		}
	}
	return nil, apperror.NewNotFound("ledger", string(kind))
}

func (r *memRepo) List(_ context.Context, businessID id.ID) ([]Ledger, error) {
	var out []Ledger
	for _, l := range r.ledgers {
		if l.BusinessID == businessID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func testContext() (context.Context, id.ID) {
	bizID := id.New()
	ctx := tenant.WithBusiness(context.Background(), &tenant.Business{
		ID:       bizID,
		Name:     "Test Traders",
		Currency: "INR",
	})
	return ctx, bizID
}

func TestNormalSide(t *testing.T) {
	assert.Equal(t, SideDebit, GroupAsset.NormalSide())
	assert.Equal(t, SideDebit, GroupExpense.NormalSide())
	assert.Equal(t, SideCredit, GroupLiability.NormalSide())
	assert.Equal(t, SideCredit, GroupIncome.NormalSide())
	assert.Equal(t, SideCredit, GroupEquity.NormalSide())
}

func TestCreateValidatesGroup(t *testing.T) {
	svc := NewService(&memRepo{})
	ctx, _ := testContext()

	_, err := svc.Create(ctx, "Rent", Group("UNKNOWN"), "")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	_, err = svc.Create(ctx, "", GroupExpense, "")
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestCreateAndGet(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	ctx, bizID := testContext()

	l, err := svc.Create(ctx, "Rent Expense", GroupExpense, "Indirect Expense")
	require.NoError(t, err)
	assert.Equal(t, bizID, l.BusinessID)
	assert.Nil(t, l.SystemKind)

	got, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rent Expense", got.Name)
}

func TestEnsureSystemLedgers(t *testing.T) {
	repo := &memRepo{}
	svc := NewService(repo)
	ctx, bizID := testContext()

	require.NoError(t, svc.EnsureSystemLedgers(ctx, bizID))
	assert.Len(t, repo.ledgers, len(systemDefaults))

	// Second run creates nothing new.
	require.NoError(t, svc.EnsureSystemLedgers(ctx, bizID))
	assert.Len(t, repo.ledgers, len(systemDefaults))

	cash, err := svc.System(ctx, SystemCash)
	require.NoError(t, err)
	assert.Equal(t, GroupAsset, cash.Group)
	require.NotNil(t, cash.SystemKind)
	assert.Equal(t, SystemCash, *cash.SystemKind)
}

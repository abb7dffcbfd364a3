package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
	"github.com/mcmanager/milkledger/internal/service/reporting"
)

type fakeMembers map[string]models.Member

func (f fakeMembers) FindByMobile(_ context.Context, phone string) (models.Member, error) {
	if m, ok := f[phone]; ok {
		return m, nil
	}
	return models.Member{}, errors.New("not found")
}

type fakeStatements struct {
	requested []string
	err       error
}

func (f *fakeStatements) Statement(_ context.Context, start time.Time, custNo int) (*reporting.Statement, error) {
	f.requested = append(f.requested, fmt.Sprintf("%s/%d", period.Format(start), custNo))
	if f.err != nil {
		return nil, f.err
	}
	return &reporting.Statement{
		Phone:   "919876543210",
		Message: "Dear Ravi",
		PDF:     reporting.File{Name: "Ravi_2025-01-11.pdf", MimeType: "application/pdf", Content: []byte("%PDF")},
	}, nil
}

func newTestService(statements *fakeStatements) *Service {
	members := fakeMembers{"919876543210": {CustNo: 4, NameEn: "Ravi", MobileNo: "9876543210"}}
	svc := NewService(members, statements, time.UTC, nil)
	svc.now = func() time.Time { return time.Date(2025, 1, 14, 7, 0, 0, 0, time.UTC) }
	return svc
}

func TestBillSendsCurrentStatement(t *testing.T) {
	statements := &fakeStatements{}
	svc := newTestService(statements)

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("bill"), "919876543210")
	require.NoError(t, err)
	assert.Equal(t, "Dear Ravi", reply.Text)
	require.NotNil(t, reply.Document)
	assert.Equal(t, "Ravi_2025-01-11.pdf", reply.Document.FileName)
	assert.Equal(t, "919876543210", reply.Document.To)
	assert.Equal(t, []string{"2025-01-11/4"}, statements.requested)
}

func TestBillPeriodArguments(t *testing.T) {
	statements := &fakeStatements{}
	svc := newTestService(statements)

	_, err := svc.HandleCommand(context.Background(), models.ParseCommand("bill last"), "919876543210")
	require.NoError(t, err)
	_, err = svc.HandleCommand(context.Background(), models.ParseCommand("due 2024-12-21"), "919876543210")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01/4", "2024-12-21/4"}, statements.requested)

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("bill 2025-01-05"), "919876543210")
	require.NoError(t, err)
	assert.Nil(t, reply.Document)
	assert.Contains(t, reply.Text, "1st, 11th or 21st")
}

func TestBillWithoutCollections(t *testing.T) {
	svc := newTestService(&fakeStatements{err: fmt.Errorf("x: %w", reporting.ErrNoData)})

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("bill"), "919876543210")
	require.NoError(t, err)
	assert.Nil(t, reply.Document)
	assert.Contains(t, reply.Text, "period starting Jan 11")
}

func TestBillPropagatesFailures(t *testing.T) {
	svc := newTestService(&fakeStatements{err: errors.New("store down")})

	_, err := svc.HandleCommand(context.Background(), models.ParseCommand("bill"), "919876543210")
	assert.Error(t, err)
}

func TestUnknownSenderIsRefused(t *testing.T) {
	statements := &fakeStatements{}
	svc := newTestService(statements)

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("bill"), "15550001111")
	require.NoError(t, err)
	assert.Equal(t, unknownSenderMessage, reply.Text)
	assert.Empty(t, statements.requested)
}

func TestHelpAndUnknownCommands(t *testing.T) {
	svc := newTestService(&fakeStatements{})

	reply, err := svc.HandleCommand(context.Background(), models.ParseCommand("hi"), "919876543210")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Hello Ravi!")

	reply, err = svc.HandleCommand(context.Background(), models.ParseCommand("how much milk?"), "919876543210")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "did not understand")
	assert.Contains(t, reply.Text, "*bill*")
}

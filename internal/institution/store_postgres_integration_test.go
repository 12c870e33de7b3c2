//go:build integration

package institution_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"credentia/internal/institution"
	id "credentia/pkg/domain"
	"credentia/pkg/platform/sentinel"
	"credentia/pkg/platform/tx"
	"credentia/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *institution.PostgresStore
	runner   tx.Runner
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = institution.NewPostgres(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func newTestInstitution(name string) *institution.Institution {
	now := time.Now().UTC().Truncate(time.Microsecond)
	inst, err := institution.New(
		name,
		"regional accreditation board",
		id.Principal("did:web:admin."+uuid.NewString()),
		[]id.Framework{id.FrameworkBolognaProcess, id.FrameworkENQA},
		now,
	)
	if err != nil {
		panic(err)
	}
	return inst
}

func (s *PostgresStoreSuite) TestCreateAndFindByName() {
	ctx := context.Background()
	inst := newTestInstitution("Universität Wien " + uuid.NewString())
	inst.ComplianceStatuses[id.FrameworkENQA] = id.StatusCompliant
	inst.LastAuditDates[id.FrameworkENQA] = inst.CreatedAt
	inst.AuditHistory = append(inst.AuditHistory, id.NewAuditID())

	s.Require().NoError(s.store.Create(ctx, inst))

	got, err := s.store.FindByName(ctx, inst.Name)
	s.Require().NoError(err)
	s.Equal(inst.Name, got.Name)
	s.Equal(inst.Admin, got.Admin)
	s.Equal(inst.Frameworks, got.Frameworks)
	s.True(got.Active)
	s.Equal(id.StatusCompliant, got.ComplianceStatuses[id.FrameworkENQA])
	s.Equal(inst.LastAuditDates[id.FrameworkENQA].Unix(), got.LastAuditDates[id.FrameworkENQA].Unix())
	s.Equal(inst.AuditHistory, got.AuditHistory)
}

func (s *PostgresStoreSuite) TestFindByNameIsCaseInsensitive() {
	ctx := context.Background()
	inst := newTestInstitution("Case Test University")
	s.Require().NoError(s.store.Create(ctx, inst))

	got, err := s.store.FindByName(ctx, "CASE test UNIVERSITY")
	s.Require().NoError(err)
	s.Equal(inst.Name, got.Name)
}

func (s *PostgresStoreSuite) TestFindByNameNotFound() {
	_, err := s.store.FindByName(context.Background(), "nowhere university")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentCreateSameName() {
	ctx := context.Background()
	name := "Concurrent University " + uuid.NewString()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newTestInstitution(name))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestExecutePersistsMutation() {
	ctx := context.Background()
	inst := newTestInstitution("Mutable University")
	s.Require().NoError(s.store.Create(ctx, inst))

	updatedAt := time.Now().UTC().Truncate(time.Microsecond)
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.store.Execute(ctx, inst.Name,
			func(i *institution.Institution) error { return i.CanDeactivate() },
			func(i *institution.Institution) {
				i.ApplyDeactivation(updatedAt)
				i.ComplianceStatuses[id.FrameworkBolognaProcess] = id.StatusUnderReview
			},
		)
		return err
	})
	s.Require().NoError(err)

	got, err := s.store.FindByName(ctx, inst.Name)
	s.Require().NoError(err)
	s.False(got.Active)
	s.Equal(id.StatusUnderReview, got.ComplianceStatuses[id.FrameworkBolognaProcess])
	s.Equal(updatedAt.Unix(), got.UpdatedAt.Unix())
}

func (s *PostgresStoreSuite) TestExecuteValidationFailureRollsBack() {
	ctx := context.Background()
	inst := newTestInstitution("Rollback University")
	s.Require().NoError(s.store.Create(ctx, inst))

	boom := errors.New("validation rejected")
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.store.Execute(ctx, inst.Name,
			func(*institution.Institution) error { return boom },
			func(i *institution.Institution) { i.Active = false },
		)
		return err
	})
	s.Require().ErrorIs(err, boom)

	got, err := s.store.FindByName(ctx, inst.Name)
	s.Require().NoError(err)
	s.True(got.Active, "failed validation must not persist the mutation")
}

func (s *PostgresStoreSuite) TestListOrdersByName() {
	ctx := context.Background()
	for _, name := range []string{"Zeta College", "Alpha College", "Mid College"} {
		s.Require().NoError(s.store.Create(ctx, newTestInstitution(name)))
	}

	all, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("Alpha College", all[0].Name)
	s.Equal("Mid College", all[1].Name)
	s.Equal("Zeta College", all[2].Name)
}

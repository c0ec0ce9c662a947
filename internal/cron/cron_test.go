package cron

import (
	"context"
	"sync"
	"testing"

	cronv3 "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/dto"
	cron_config "github.com/customeros/vmail/internal/cron/config"
	"github.com/customeros/vmail/internal/fakes"
	"github.com/customeros/vmail/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type mockJanitor struct {
	mock.Mock
}

func (m *mockJanitor) Run(ctx context.Context, maxRecords int) (*dto.CleanupResult, error) {
	args := m.Called(ctx, maxRecords)
	result, _ := args.Get(0).(*dto.CleanupResult)
	return result, args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testConfig() *config.Config {
	return &config.Config{
		AppConfig:       &config.AppConfig{},
		RetentionConfig: &config.RetentionConfig{MaxEmails: 1000},
	}
}

func TestNewCronManager(t *testing.T) {
	cfg := testConfig()
	log := getLogger()
	k8s := &mockKubernetesInterface{}

	cm := NewCronManager(cfg, log, k8s, nil)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, log, cm.log)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_RegisterJobs(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, &mockJanitor{})
	c := cronv3.New(cronv3.WithSeconds())

	err := cm.registerJobs(c, cron_config.Config{
		CronScheduleHeartbeat: "0 * * * * *",
		CronScheduleRetention: "0 0 * * * *",
	})
	require.NoError(t, err)

	assert.Len(t, cm.jobIDs, 2)
	assert.Contains(t, cm.jobIDs, "heartbeat")
	assert.Contains(t, cm.jobIDs, "retention")
	assert.Len(t, c.Entries(), 2)
}

func TestCronManager_RegisterJobsWithoutJanitor(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, nil)
	c := cronv3.New(cronv3.WithSeconds())

	err := cm.registerJobs(c, cron_config.Config{CronScheduleRetention: "0 0 * * * *"})
	require.NoError(t, err)
	assert.Empty(t, cm.jobIDs)
}

func TestCronManager_RegisterJobsInvalidSchedule(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), nil, &mockJanitor{})
	c := cronv3.New(cronv3.WithSeconds())

	err := cm.registerJobs(c, cron_config.Config{CronScheduleRetention: "every hour"})
	assert.Error(t, err)
}

func TestCronManager_EnforceRetentionUsesCap(t *testing.T) {
	janitor := &mockJanitor{}
	janitor.On("Run", mock.Anything, 1000).Return(&dto.CleanupResult{Candidates: 3, Deleted: 3}, nil).Once()
	cm := NewCronManager(testConfig(), getLogger(), nil, janitor)

	cm.enforceRetention()

	janitor.AssertExpectations(t)
}

func TestCronManager_EnforceRetentionSurvivesError(t *testing.T) {
	janitor := &mockJanitor{}
	janitor.On("Run", mock.Anything, 1000).Return(nil, fakes.ErrInjected).Once()
	cm := NewCronManager(testConfig(), getLogger(), nil, janitor)

	assert.NotPanics(t, cm.enforceRetention)
	janitor.AssertExpectations(t)
}

func TestCronManager_Stop(t *testing.T) {
	cm := NewCronManager(testConfig(), getLogger(), &mockKubernetesInterface{}, nil)

	mockCron := cronv3.New()
	mockCron.Start()
	cm.cron = mockCron

	cm.Stop()
	// a second stop after losing leadership is harmless
	cm.Stop()

	select {
	case <-cm.stopCh:
	default:
		t.Error("Stop channel was not closed")
	}
}

func TestLockRetention_Serializes(t *testing.T) {
	unlock := LockRetention()

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		release := LockRetention()
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired twice")
	default:
	}
	unlock()
	wg.Wait()
	<-acquired
}

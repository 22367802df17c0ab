package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/logging"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type NativeAdapterTestSuite struct {
	suite.Suite
	db      *gorm.DB
	repo    repository.TaskRepository
	adapter *NativeAdapter
	ctx     context.Context
}

func (suite *NativeAdapterTestSuite) SetupTest() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	err = suite.db.AutoMigrate(&models.Task{}, &models.Subtask{}, &models.Comment{}, &models.Attachment{})
	suite.Require().NoError(err)

	suite.repo = repository.NewTaskRepository(suite.db)
	suite.adapter = NewNativeAdapter(suite.repo, 1, logging.Nop())
	suite.ctx = context.Background()
}

func (suite *NativeAdapterTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *NativeAdapterTestSuite) create(title string) models.Task {
	task, err := suite.adapter.Create(suite.ctx, models.Task{
		Title:    title,
		Status:   models.StatusTodo,
		Priority: models.PriorityMedium,
		Subtasks: []models.Subtask{{Title: "step"}},
	})
	suite.Require().NoError(err)
	return task
}

func (suite *NativeAdapterTestSuite) TestCreateAssignsIdentity() {
	task := suite.create("Plan sprint")

	suite.NotEmpty(task.ID)
	suite.Equal(uint64(1), task.WorkspaceID)
	suite.Equal(models.OriginNative, task.Origin)
	suite.Empty(task.ExternalRef)
	suite.Nil(task.SyncedAt)
	suite.Require().Len(task.Subtasks, 1)
	suite.NotEmpty(task.Subtasks[0].ID)
	suite.NotNil(task.Tags)
}

func (suite *NativeAdapterTestSuite) TestCreateRejectsInvalidDraft() {
	_, err := suite.adapter.Create(suite.ctx, models.Task{Title: "", Priority: models.PriorityLow})

	var valErr *apierrors.ValidationError
	suite.ErrorAs(err, &valErr)
}

func (suite *NativeAdapterTestSuite) TestCreateOverridesForeignOrigin() {
	synced := time.Now()
	task, err := suite.adapter.Create(suite.ctx, models.Task{
		Title:       "Imported by mistake",
		Origin:      models.OriginTrackerA,
		ExternalRef: "https://example.com/browse/X-1",
		SyncedAt:    &synced,
	})
	suite.Require().NoError(err)
	suite.Equal(models.OriginNative, task.Origin)
	suite.Empty(task.ExternalRef)
	suite.Equal(models.StatusTodo, task.Status)
	suite.Equal(models.PriorityMedium, task.Priority)
}

func (suite *NativeAdapterTestSuite) TestFetchScopesToWorkspace() {
	first := suite.create("first")
	second := suite.create("second")

	other := NewNativeAdapter(suite.repo, 2, logging.Nop())
	_, err := other.Create(suite.ctx, models.Task{Title: "elsewhere"})
	suite.Require().NoError(err)

	tasks, err := suite.adapter.Fetch(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 2)
	suite.Equal(first.ID, tasks[0].ID)
	suite.Equal(second.ID, tasks[1].ID)
}

func (suite *NativeAdapterTestSuite) TestDispatchPersistsPatch() {
	task := suite.create("Write docs")

	comments := append(task.Comments, models.Comment{Author: "kim", Content: "started"})
	status := models.StatusReview
	_, err := suite.adapter.Dispatch(suite.ctx, task.ID, models.TaskPatch{Status: &status, Comments: &comments})
	suite.Require().NoError(err)

	stored, err := suite.repo.FindByID(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.Equal(models.StatusReview, stored.Status)
	suite.Require().Len(stored.Comments, 1)
	suite.NotEmpty(stored.Comments[0].ID)
	suite.False(stored.Comments[0].CreatedAt.IsZero())
}

func (suite *NativeAdapterTestSuite) TestDispatchOtherWorkspaceIsNotFound() {
	task := suite.create("private")
	other := NewNativeAdapter(suite.repo, 2, logging.Nop())

	_, err := other.Dispatch(suite.ctx, task.ID, models.StatusPatch(models.StatusDone))

	var dispErr *apierrors.DispatchError
	suite.Require().ErrorAs(err, &dispErr)
	suite.Equal(apierrors.ReasonNotFound, dispErr.Reason)
}

func (suite *NativeAdapterTestSuite) TestDispatchRejectsInvalidResult() {
	task := suite.create("valid")
	empty := ""

	_, err := suite.adapter.Dispatch(suite.ctx, task.ID, models.TaskPatch{Title: &empty})

	var dispErr *apierrors.DispatchError
	suite.Require().ErrorAs(err, &dispErr)
	suite.Equal(apierrors.ReasonValidation, dispErr.Reason)
}

func (suite *NativeAdapterTestSuite) TestDelete() {
	task := suite.create("temporary")

	suite.Require().NoError(suite.adapter.Delete(suite.ctx, task.ID))

	err := suite.adapter.Delete(suite.ctx, task.ID)
	var dispErr *apierrors.DispatchError
	suite.Require().ErrorAs(err, &dispErr)
	suite.Equal(apierrors.ReasonNotFound, dispErr.Reason)
}

func (suite *NativeAdapterTestSuite) TestImportUnsupported() {
	_, err := suite.adapter.Import(suite.ctx, ImportRequest{Query: "anything"})

	var capErr *apierrors.CapabilityError
	suite.Require().ErrorAs(err, &capErr)
	suite.Equal(string(models.CapImport), capErr.Kind)
}

func TestNativeAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(NativeAdapterTestSuite))
}

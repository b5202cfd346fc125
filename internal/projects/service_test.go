package projects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"buildflow/project-portal/project-portal-backend/internal/schema"
)

type serviceFixture struct {
	repo     *MockRepository
	uploader *MockUploader
	notifier *MockNotifier
	service  *Service
}

func newServiceFixture(password string) *serviceFixture {
	f := &serviceFixture{
		repo:     new(MockRepository),
		uploader: new(MockUploader),
		notifier: new(MockNotifier),
	}
	registry := schema.NewRegistry()
	gate := NewSecretGate(password)
	engine := NewEngine(registry, f.uploader, f.repo, gate, zap.NewNop())
	ref := staticReference{data: ReferenceData{
		Employees: []Employee{{ID: 1, FirstName: "Somchai"}},
		Locations: []Location{{ID: 5, SiteName: "Site A", DisplayName: "Site A"}},
	}}
	f.service = NewService(f.repo, engine, registry, ref, f.notifier, gate, time.Hour, zap.NewNop())
	return f
}

func TestStartSession(t *testing.T) {
	f := newServiceFixture("")

	sess := f.service.StartSession("")
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, schema.RoleSurvey, sess.Role)

	assert.Same(t, sess, f.service.StartSession(sess.ID))
	assert.NotSame(t, sess, f.service.StartSession("forged"))
}

func TestPruneSessions(t *testing.T) {
	f := newServiceFixture("")

	stale := f.service.StartSession("")
	fresh := f.service.StartSession("")
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)

	assert.Equal(t, 1, f.service.PruneSessions())
	assert.Same(t, fresh, f.service.StartSession(fresh.ID))
	assert.NotEqual(t, stale.ID, f.service.StartSession(stale.ID).ID)
}

func TestChangeRoleResetsSession(t *testing.T) {
	f := newServiceFixture("")
	f.repo.On("ListProjects", mock.Anything).Return([]*Project{
		{ID: 1, Status: StatusDesign, Fields: Fields{schema.FieldProjectName: "A"}},
		{ID: 2, Status: StatusSurvey, Fields: Fields{schema.FieldProjectName: "B"}},
	}, nil)

	sess := f.service.StartSession("")
	sess.SearchTerm = "x"
	sess.Editing = &Project{Fields: Fields{}}
	sess.Pending = &Pending{Token: "t"}

	view, err := f.service.ChangeRole(context.Background(), sess, schema.RoleDesign)
	require.NoError(t, err)
	assert.Equal(t, schema.RoleDesign, sess.Role)
	assert.Empty(t, sess.SearchTerm)
	assert.Nil(t, sess.Editing)
	assert.Nil(t, sess.Pending)
	assert.Equal(t, []int64{1}, ids(view.Rows))
}

func TestOpenNewPermissions(t *testing.T) {
	f := newServiceFixture("letmein")
	sess := f.service.StartSession("")

	form, err := f.service.OpenNew(context.Background(), sess, "")
	require.NoError(t, err)
	assert.Equal(t, schema.RoleSurvey, form.Role)
	assert.Equal(t, f.service.registry.Fields(schema.RoleSurvey), form.Fields)
	assert.False(t, form.ReadOnly)
	require.NotNil(t, sess.Editing)
	assert.True(t, sess.Editing.IsNew())

	sess.Role = schema.RoleDesign
	_, err = f.service.OpenNew(context.Background(), sess, "")
	var pErr *PermissionError
	assert.ErrorAs(t, err, &pErr)

	sess.Role = schema.RoleAdmin
	_, err = f.service.OpenNew(context.Background(), sess, "nope")
	assert.ErrorAs(t, err, &pErr)

	_, err = f.service.OpenNew(context.Background(), sess, "letmein")
	assert.NoError(t, err)
}

func TestOpenClosedProjectIsReadOnly(t *testing.T) {
	f := newServiceFixture("")
	f.repo.On("GetProject", mock.Anything, int64(8)).
		Return(&Project{ID: 8, Status: StatusClosed, Fields: Fields{schema.FieldProjectName: "Old", schema.FieldLocationID: int64(5)}}, nil)

	sess := f.service.StartSession("")
	form, err := f.service.Open(context.Background(), sess, 8)
	require.NoError(t, err)
	assert.True(t, form.ReadOnly)
	require.NotNil(t, form.Project.Location)
	assert.Equal(t, "Site A", form.Project.Location.DisplayName)
}

func TestOpenOtherStageRefused(t *testing.T) {
	f := newServiceFixture("")
	f.repo.On("GetProject", mock.Anything, int64(8)).
		Return(&Project{ID: 8, Status: StatusBidding, Fields: Fields{}}, nil)

	sess := f.service.StartSession("")
	_, err := f.service.Open(context.Background(), sess, 8)
	var pErr *PermissionError
	assert.ErrorAs(t, err, &pErr)
	assert.Nil(t, sess.Editing)
}

func TestSubmitThenCancelWritesNothing(t *testing.T) {
	f := newServiceFixture("")
	sess := f.service.StartSession("")
	_, err := f.service.OpenNew(context.Background(), sess, "")
	require.NoError(t, err)

	out, err := f.service.Submit(context.Background(), sess, ActionForward, surveyValues(), nil)
	require.NoError(t, err)
	require.True(t, out.Result.NeedsConfirmation())
	assert.Same(t, out.Result.Pending, sess.Pending)

	require.NoError(t, f.service.Cancel(sess))
	assert.Nil(t, sess.Pending)
	// the form stays open for further edits
	assert.NotNil(t, sess.Editing)
	assert.ErrorIs(t, f.service.Cancel(sess), ErrNoPendingAction)

	f.repo.AssertNotCalled(t, "InsertProject", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "NotifyProjectsChanged", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitThenConfirm(t *testing.T) {
	f := newServiceFixture("")
	saved := &Project{ID: 11, Status: StatusDesign, Fields: Fields{schema.FieldProjectName: "Water Tower"}}
	f.repo.On("InsertProject", mock.Anything, mock.MatchedBy(func(p *Project) bool {
		return p.Status == StatusDesign && p.Name() == "Water Tower"
	})).Return(saved, nil).Once()
	f.repo.On("LogActivity", mock.Anything, mock.MatchedBy(func(a *ProjectActivity) bool {
		return a.ActivityType == ActivityCreated && a.ProjectID == 11 && a.Role == "survey"
	})).Return(nil).Once()
	f.repo.On("ListProjects", mock.Anything).Return([]*Project{saved}, nil)
	f.notifier.On("NotifyProjectsChanged", int64(11), "forwarded", "design").Return(nil).Once()

	sess := f.service.StartSession("")
	_, err := f.service.OpenNew(context.Background(), sess, "")
	require.NoError(t, err)
	out, err := f.service.Submit(context.Background(), sess, ActionForward, surveyValues(), nil)
	require.NoError(t, err)

	_, err = f.service.Confirm(context.Background(), sess, "wrong-token")
	assert.ErrorIs(t, err, ErrNoPendingAction)

	done, err := f.service.Confirm(context.Background(), sess, out.Result.Pending.Token)
	require.NoError(t, err)
	assert.Equal(t, NoticeForwarded, done.Result.Notice)
	require.NotNil(t, done.View)
	// survey's inbox no longer holds the forwarded project
	assert.Empty(t, done.View.Rows)
	assert.Nil(t, sess.Editing)
	assert.Nil(t, sess.Pending)

	f.repo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestConfirmFailureDropsPending(t *testing.T) {
	f := newServiceFixture("")
	f.repo.On("InsertProject", mock.Anything, mock.Anything).Return(nil, &RepositoryError{Op: "insert project", Err: errors.New("down")})

	sess := f.service.StartSession("")
	_, err := f.service.OpenNew(context.Background(), sess, "")
	require.NoError(t, err)
	_, err = f.service.Submit(context.Background(), sess, ActionForward, surveyValues(), nil)
	require.NoError(t, err)

	_, err = f.service.Confirm(context.Background(), sess, "")
	var rErr *RepositoryError
	require.ErrorAs(t, err, &rErr)
	assert.Nil(t, sess.Pending)
	assert.NotNil(t, sess.Editing)
	f.repo.AssertNotCalled(t, "LogActivity", mock.Anything, mock.Anything)
}

func TestSaveSurvivesRefetchAndLogFailures(t *testing.T) {
	f := newServiceFixture("")
	existing := &Project{ID: 3, Status: StatusSurvey, Fields: Fields{schema.FieldProjectName: "Road"}}
	f.repo.On("GetProject", mock.Anything, int64(3)).Return(existing, nil)
	f.repo.On("UpdateProject", mock.Anything, int64(3), mock.Anything).
		Return(&Project{ID: 3, Status: StatusSurvey, Fields: Fields{schema.FieldProjectName: "Road 2"}}, nil)
	f.repo.On("LogActivity", mock.Anything, mock.Anything).Return(errors.New("no table"))
	f.repo.On("ListProjects", mock.Anything).Return(nil, errors.New("timeout"))
	f.notifier.On("NotifyProjectsChanged", int64(3), "saved", "survey").Return(errors.New("hub closed"))

	sess := f.service.StartSession("")
	_, err := f.service.Open(context.Background(), sess, 3)
	require.NoError(t, err)

	out, err := f.service.Submit(context.Background(), sess, ActionSave, map[string]any{schema.FieldProjectName: "Road 2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, NoticeSaved, out.Result.Notice)
	assert.Nil(t, out.View)
}

func TestSubmitWithoutEditSession(t *testing.T) {
	f := newServiceFixture("")
	sess := f.service.StartSession("")

	_, err := f.service.Submit(context.Background(), sess, ActionSave, nil, nil)
	assert.ErrorIs(t, err, ErrNoEditSession)
}

func TestDeleteFlow(t *testing.T) {
	f := newServiceFixture("letmein")
	p := &Project{ID: 7, Status: StatusPM, Fields: Fields{schema.FieldProjectName: "Silo"}}
	f.repo.On("GetProject", mock.Anything, int64(7)).Return(p, nil)
	f.repo.On("DeleteProject", mock.Anything, int64(7)).Return(nil).Once()
	f.repo.On("LogActivity", mock.Anything, mock.MatchedBy(func(a *ProjectActivity) bool {
		return a.ActivityType == ActivityDeleted && a.ProjectID == 7
	})).Return(nil).Once()
	f.repo.On("ListProjects", mock.Anything).Return([]*Project{}, nil)
	f.notifier.On("NotifyProjectsChanged", int64(7), "deleted", "").Return(nil)

	sess := f.service.StartSession("")
	sess.Role = schema.RoleAdmin

	_, err := f.service.Delete(context.Background(), sess, 7, "")
	var pErr *PermissionError
	require.ErrorAs(t, err, &pErr)
	assert.Nil(t, sess.Pending)

	pending, err := f.service.Delete(context.Background(), sess, 7, "letmein")
	require.NoError(t, err)
	f.repo.AssertNotCalled(t, "DeleteProject", mock.Anything, mock.Anything)

	out, err := f.service.Confirm(context.Background(), sess, pending.Token)
	require.NoError(t, err)
	assert.Equal(t, NoticeDeleted, out.Result.Notice)
	assert.Equal(t, EmptyNoData, out.View.Empty)
	f.repo.AssertExpectations(t)
}

func TestRemoveAttachment(t *testing.T) {
	f := newServiceFixture("")
	sess := f.service.StartSession("")

	_, err := f.service.RemoveAttachment(context.Background(), sess, "requirementPDF")
	assert.ErrorIs(t, err, ErrNoEditSession)

	stored := &Project{ID: 2, Status: StatusDesign, Fields: Fields{"requirementPDF": "https://files.example.com/x.pdf"}}
	sess.Role = schema.RoleDesign
	sess.Editing = stored

	form, err := f.service.RemoveAttachment(context.Background(), sess, "requirementPDF")
	require.NoError(t, err)
	assert.Nil(t, form.Project.Fields["requirementPDF"])
	assert.Contains(t, form.Project.Fields, "requirementPDF")
	// the loaded record is not modified in place
	assert.Equal(t, "https://files.example.com/x.pdf", stored.Fields["requirementPDF"])

	_, err = f.service.RemoveAttachment(context.Background(), sess, schema.FieldDesignOwnerID)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	sess.Editing = &Project{ID: 2, Status: StatusClosed, Fields: Fields{}}
	_, err = f.service.RemoveAttachment(context.Background(), sess, "requirementPDF")
	assert.ErrorIs(t, err, ErrProjectClosed)
}

func TestRegisterIsAdminOnly(t *testing.T) {
	f := newServiceFixture("")
	f.repo.On("ListProjects", mock.Anything).Return([]*Project{{ID: 1, Status: StatusPM, Fields: Fields{}}}, nil)
	sess := f.service.StartSession("")

	_, err := f.service.Register(context.Background(), sess)
	var pErr *PermissionError
	assert.ErrorAs(t, err, &pErr)

	sess.Role = schema.RoleAdmin
	views, err := f.service.Register(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestSearchOnlyFiltersForAdmin(t *testing.T) {
	f := newServiceFixture("")
	f.repo.On("ListProjects", mock.Anything).Return([]*Project{
		{ID: 1, Status: StatusSurvey, Fields: Fields{schema.FieldProjectName: "Bridge"}},
		{ID: 2, Status: StatusSurvey, Fields: Fields{schema.FieldProjectName: "Depot"}},
	}, nil)
	sess := f.service.StartSession("")
	sess.Role = schema.RoleAdmin

	v, err := f.service.Search(context.Background(), sess, "dep")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(v.Rows))

	v, err = f.service.ClearSearch(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, v.Rows, 2)
}

func TestSaveRefusedWhenProjectClosedMeanwhile(t *testing.T) {
	f := newServiceFixture("")
	f.repo.On("GetProject", mock.Anything, int64(8)).
		Return(&Project{ID: 8, Status: StatusPM, Fields: Fields{schema.FieldProjectName: "Depot"}}, nil).Once()
	// another client completed the project after it was opened here
	f.repo.On("GetProject", mock.Anything, int64(8)).
		Return(&Project{ID: 8, Status: StatusClosed, Fields: Fields{schema.FieldProjectName: "Depot"}}, nil)

	sess := f.service.StartSession("")
	sess.Role = schema.RolePM
	_, err := f.service.Open(context.Background(), sess, 8)
	require.NoError(t, err)

	_, err = f.service.Submit(context.Background(), sess, ActionSave, map[string]any{schema.FieldPMOwnerID: 1}, nil)
	assert.ErrorIs(t, err, ErrProjectClosed)
	f.repo.AssertNotCalled(t, "UpdateProject", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmRefusedWhenProjectMovedMeanwhile(t *testing.T) {
	f := newServiceFixture("")
	stored := &Project{ID: 4, Status: StatusBidding, Fields: Fields{schema.FieldProjectName: "Pier"}}
	f.repo.On("GetProject", mock.Anything, int64(4)).Return(stored, nil).Twice()
	f.repo.On("GetProject", mock.Anything, int64(4)).
		Return(&Project{ID: 4, Status: StatusPM, Fields: Fields{schema.FieldProjectName: "Pier"}}, nil)

	sess := f.service.StartSession("")
	sess.Role = schema.RoleBidding
	_, err := f.service.Open(context.Background(), sess, 4)
	require.NoError(t, err)

	out, err := f.service.Submit(context.Background(), sess, ActionForward, map[string]any{
		schema.FieldBiddingOwnerID: 1,
		schema.FieldActualCost:     "250000",
	}, nil)
	require.NoError(t, err)
	require.True(t, out.Result.NeedsConfirmation())

	_, err = f.service.Confirm(context.Background(), sess, out.Result.Pending.Token)
	var pErr *PermissionError
	require.ErrorAs(t, err, &pErr)
	assert.Nil(t, sess.Pending)
	assert.NotNil(t, sess.Editing)
	f.repo.AssertNotCalled(t, "UpdateProject", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "NotifyProjectsChanged", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveMergesOntoStoredProject(t *testing.T) {
	f := newServiceFixture("")
	f.repo.On("GetProject", mock.Anything, int64(2)).
		Return(&Project{ID: 2, Status: StatusDesign, Fields: Fields{
			schema.FieldProjectName: "Hall",
			"requirementPDF":        "https://files.example.com/Hall/req.pdf",
		}}, nil).Once()
	// meanwhile another designer uploaded calculations
	f.repo.On("GetProject", mock.Anything, int64(2)).
		Return(&Project{ID: 2, Status: StatusDesign, Fields: Fields{
			schema.FieldProjectName: "Hall",
			"requirementPDF":        "https://files.example.com/Hall/req.pdf",
			"calculationPDF":        "https://files.example.com/Hall/calc.pdf",
		}}, nil)
	saved := &Project{ID: 2, Status: StatusDesign, Fields: Fields{schema.FieldProjectName: "Hall"}}
	f.repo.On("UpdateProject", mock.Anything, int64(2), mock.MatchedBy(func(p *Project) bool {
		return p.Fields["requirementPDF"] == nil &&
			p.Fields["calculationPDF"] == "https://files.example.com/Hall/calc.pdf" &&
			p.Fields[schema.FieldDesignOwnerID] == int64(4)
	})).Return(saved, nil).Once()
	f.repo.On("LogActivity", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("ListProjects", mock.Anything).Return([]*Project{saved}, nil)
	f.notifier.On("NotifyProjectsChanged", int64(2), "saved", "design").Return(nil)

	sess := f.service.StartSession("")
	sess.Role = schema.RoleDesign
	_, err := f.service.Open(context.Background(), sess, 2)
	require.NoError(t, err)
	_, err = f.service.RemoveAttachment(context.Background(), sess, "requirementPDF")
	require.NoError(t, err)

	out, err := f.service.Submit(context.Background(), sess, ActionSave, map[string]any{schema.FieldDesignOwnerID: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, NoticeSaved, out.Result.Notice)
	f.repo.AssertExpectations(t)
}

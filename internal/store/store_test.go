package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/traderpath/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestUser(t *testing.T, s *Store, username string, role model.Role) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  "User " + username,
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func insertTestLead(t *testing.T, s *Store) model.User {
	t.Helper()
	return model.User{ID: insertTestUser(t, s, "lead", model.RoleTeamLead), Role: model.RoleTeamLead}
}

func insertTestStages(t *testing.T, s *Store) []model.LearningStage {
	t.Helper()
	_, err := s.ImportStages([]model.StageImport{
		{Name: "Foundations", OrderIndex: 1, Materials: []model.MaterialImport{
			{Title: "Intro", URL: "https://example.com/intro.pdf"},
			{Title: "Deep dive", URL: "https://example.com/deep.mp4", Kind: "video", Premium: true},
		}},
		{Name: "Risk", OrderIndex: 2},
		{Name: "Execution", OrderIndex: 3},
	})
	if err != nil {
		t.Fatalf("ImportStages: %v", err)
	}
	stages, err := s.ListStages(true)
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	return stages
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil || count != 0 {
		t.Fatalf("UserCount = %d, %v", count, err)
	}

	id, err := s.CreateUser(model.User{Username: "alice", PasswordHash: "h", Role: "bogus", Phone: "13800000000", Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := s.GetUserByID(id)
	if err != nil || u == nil {
		t.Fatalf("GetUserByID: %v %v", u, err)
	}
	if u.Role != model.RoleProspectiveStudent {
		t.Errorf("unknown role should be stored as prospective student, got %s", u.Role)
	}
	if u.InterviewStatus != model.InterviewNotApplied {
		t.Errorf("interview status = %s, want not_applied", u.InterviewStatus)
	}

	byPhone, err := s.GetUserByPhone("13800000000")
	if err != nil || byPhone == nil || byPhone.ID != id {
		t.Errorf("GetUserByPhone: %v %v", byPhone, err)
	}
	missing, err := s.GetUserByUsername("nobody")
	if err != nil || missing != nil {
		t.Errorf("missing user: %v %v", missing, err)
	}

	var conflict *model.StateConflictError
	_, err = s.CreateUser(model.User{Username: "alice", PasswordHash: "h", Active: true})
	if !errors.As(err, &conflict) {
		t.Errorf("duplicate username: expected conflict, got %v", err)
	}
	_, err = s.CreateUser(model.User{Username: "bob", PasswordHash: "h", Phone: "13800000000", Active: true})
	if !errors.As(err, &conflict) {
		t.Errorf("duplicate phone: expected conflict, got %v", err)
	}
	// Empty phones never collide.
	insertTestUser(t, s, "carol", model.RoleStudent)
	insertTestUser(t, s, "dave", model.RoleStudent)

	students, err := s.ListUsers(string(model.RoleStudent))
	if err != nil || len(students) != 2 {
		t.Errorf("ListUsers(student) = %d, %v", len(students), err)
	}

	trader := model.RoleTrader
	name := "Alice T."
	if err := s.UpdateUser(id, model.UserUpdate{Role: &trader, DisplayName: &name}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	u, _ = s.GetUserByID(id)
	if u.Role != model.RoleTrader || u.DisplayName != name {
		t.Errorf("after update: %+v", u)
	}
	var nf *model.NotFoundError
	if err := s.UpdateUser(9999, model.UserUpdate{DisplayName: &name}); !errors.As(err, &nf) {
		t.Errorf("update missing user: expected not found, got %v", err)
	}

	if err := s.DeleteUser(id); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if u, _ := s.GetUserByID(id); u != nil {
		t.Error("user still present after delete")
	}
	if err := s.DeleteUser(id); !errors.As(err, &nf) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	id := insertTestUser(t, s, "alice", model.RoleStudent)

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64", len(token))
	}
	u, err := s.UserForSession(token)
	if err != nil || u == nil || u.ID != id {
		t.Fatalf("UserForSession: %v %v", u, err)
	}
	if u, _ := s.UserForSession("nope"); u != nil {
		t.Error("unknown token resolved")
	}

	inactive := false
	if err := s.UpdateUser(id, model.UserUpdate{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if u, _ := s.UserForSession(token); u != nil {
		t.Error("session of deactivated user still resolves")
	}

	active := true
	_ = s.UpdateUser(id, model.UserUpdate{Active: &active})
	token, _ = s.CreateAuthSession(id)
	if _, err := s.db.Exec(`UPDATE auth_sessions SET expires_at = ? WHERE id = ?`, time.Now().Add(-time.Hour), token); err != nil {
		t.Fatalf("expire session: %v", err)
	}
	if u, _ := s.UserForSession(token); u != nil {
		t.Error("expired session resolved")
	}
	if err := s.DeleteAuthSession(token); err != nil {
		t.Errorf("DeleteAuthSession: %v", err)
	}
}

func TestInterviewLifecycle(t *testing.T) {
	s := newTestStore(t)
	applicant := insertTestUser(t, s, "pat", model.RoleProspectiveStudent)
	lead := insertTestLead(t, s)

	app, err := s.CreateInterviewApplication(model.InterviewApplication{
		UserID: applicant, Name: "Pat", Age: 30, Phone: "13900000000", Email: "p@example.com",
		Assessment: model.InterviewAssessmentFailed,
	})
	if err != nil {
		t.Fatalf("CreateInterviewApplication: %v", err)
	}
	if app.Result != model.InterviewResultPending {
		t.Errorf("new application result = %s", app.Result)
	}
	u, _ := s.GetUserByID(applicant)
	if u.InterviewStatus != model.InterviewPending {
		t.Errorf("interview status = %s, want pending", u.InterviewStatus)
	}

	var conflict *model.StateConflictError
	if _, err := s.CreateInterviewApplication(model.InterviewApplication{UserID: applicant, Name: "Pat"}); !errors.As(err, &conflict) {
		t.Fatalf("second application: expected conflict, got %v", err)
	}

	when := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	meeting := "123-456"
	got, err := s.UpdateInterviewApplication(app.ID, model.InterviewUpdate{InterviewTime: &when, MeetingNumber: &meeting}, lead)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got.InterviewTime == nil || !got.InterviewTime.Equal(when) || got.MeetingNumber != meeting {
		t.Errorf("schedule not applied: %+v", got)
	}

	pass := model.InterviewResultPass
	if _, err := s.UpdateInterviewApplication(app.ID, model.InterviewUpdate{Result: &pass}, lead); err != nil {
		t.Fatalf("decide: %v", err)
	}
	u, _ = s.GetUserByID(applicant)
	if u.Role != model.RoleStudent || u.InterviewStatus != model.InterviewPassed {
		t.Errorf("after pass: role %s status %s", u.Role, u.InterviewStatus)
	}
	stored, _ := s.GetInterviewApplication(app.ID)
	if stored.ReviewedBy == nil || *stored.ReviewedBy != lead.ID || stored.Assessment != model.InterviewAssessmentFailed {
		t.Errorf("stored application: %+v", stored)
	}

	fail := model.InterviewResultFail
	student := model.User{ID: applicant, Role: model.RoleStudent}
	var denied *model.AuthorizationError
	if _, err := s.UpdateInterviewApplication(app.ID, model.InterviewUpdate{Result: &fail}, student); !errors.As(err, &denied) {
		t.Errorf("decision by student: expected authorization error, got %v", err)
	}
	if _, err := s.UpdateInterviewApplication(app.ID, model.InterviewUpdate{Result: &fail}, lead); !errors.As(err, &conflict) {
		t.Errorf("overwrite decision: expected conflict, got %v", err)
	}
	// Re-submitting the same result is a no-op.
	if _, err := s.UpdateInterviewApplication(app.ID, model.InterviewUpdate{Result: &pass}, lead); err != nil {
		t.Errorf("same result: %v", err)
	}

	n, _ := s.CountInterviewApplications(model.InterviewResultPass)
	if n != 1 {
		t.Errorf("passed count = %d", n)
	}
}

func TestInterviewFailAndDelete(t *testing.T) {
	s := newTestStore(t)
	applicant := insertTestUser(t, s, "pat", model.RoleProspectiveStudent)
	lead := insertTestLead(t, s)

	app, err := s.CreateInterviewApplication(model.InterviewApplication{UserID: applicant, Name: "Pat", Age: 20})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	fail := model.InterviewResultFail
	if _, err := s.UpdateInterviewApplication(app.ID, model.InterviewUpdate{Result: &fail}, lead); err != nil {
		t.Fatalf("fail: %v", err)
	}
	u, _ := s.GetUserByID(applicant)
	if u.Role != model.RoleProspectiveStudent || u.InterviewStatus != model.InterviewFailed {
		t.Errorf("after fail: role %s status %s", u.Role, u.InterviewStatus)
	}

	if err := s.DeleteInterviewApplication(app.ID); err != nil {
		t.Fatalf("DeleteInterviewApplication: %v", err)
	}
	u, _ = s.GetUserByID(applicant)
	if u.InterviewStatus != model.InterviewNotApplied {
		t.Errorf("after delete status = %s", u.InterviewStatus)
	}
	if _, err := s.CreateInterviewApplication(model.InterviewApplication{UserID: applicant, Name: "Pat"}); err != nil {
		t.Errorf("re-apply after delete: %v", err)
	}

	var nf *model.NotFoundError
	if err := s.DeleteInterviewApplication(9999); !errors.As(err, &nf) {
		t.Errorf("delete missing: expected not found, got %v", err)
	}
	if _, err := s.UpdateInterviewApplication(9999, model.InterviewUpdate{}, lead); !errors.As(err, &nf) {
		t.Errorf("update missing: expected not found, got %v", err)
	}
}

func TestStagesAndMaterials(t *testing.T) {
	s := newTestStore(t)
	stages := insertTestStages(t, s)
	if len(stages) != 3 || stages[0].Name != "Foundations" || stages[2].Name != "Execution" {
		t.Fatalf("stages = %+v", stages)
	}

	free, err := s.ListMaterials(stages[0].ID, false)
	if err != nil || len(free) != 1 {
		t.Errorf("free materials = %d, %v", len(free), err)
	}
	all, _ := s.ListMaterials(stages[0].ID, true)
	if len(all) != 2 {
		t.Errorf("all materials = %d", len(all))
	}
	premium, _ := s.ListPremiumMaterials()
	if len(premium) != 1 || premium[0].Kind != "video" {
		t.Errorf("premium = %+v", premium)
	}

	// Re-import keeps ids and replaces materials.
	if _, err := s.ImportStages([]model.StageImport{{Name: "Foundations", OrderIndex: 1, Description: "v2"}}); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	again, _ := s.GetStage(stages[0].ID)
	if again == nil || again.Description != "v2" {
		t.Errorf("re-imported stage = %+v", again)
	}
	all, _ = s.ListMaterials(stages[0].ID, true)
	if len(all) != 0 {
		t.Errorf("materials after re-import = %d", len(all))
	}

	if err := s.SetStageActive(stages[2].ID, false); err != nil {
		t.Fatalf("SetStageActive: %v", err)
	}
	n, _ := s.StageCount()
	if n != 2 {
		t.Errorf("active stages = %d", n)
	}
	if st, _ := s.GetStage(9999); st != nil {
		t.Error("missing stage returned")
	}
}

func TestStartStageConflict(t *testing.T) {
	s := newTestStore(t)
	stages := insertTestStages(t, s)
	uid := insertTestUser(t, s, "stu", model.RoleStudent)

	p, err := s.StartStage(uid, stages[0].ID)
	if err != nil {
		t.Fatalf("StartStage: %v", err)
	}
	if p.Status != model.ProgressInProgress {
		t.Errorf("status = %s", p.Status)
	}
	var conflict *model.StateConflictError
	if _, err := s.StartStage(uid, stages[0].ID); !errors.As(err, &conflict) {
		t.Fatalf("second start: expected conflict, got %v", err)
	}
	records, _ := s.ListProgress(uid)
	if len(records) != 1 {
		t.Errorf("progress records = %d, want 1", len(records))
	}
	got, _ := s.GetProgress(uid, stages[1].ID)
	if got != nil {
		t.Error("unstarted stage has progress")
	}
}

func TestAssignmentReviewCompletesStage(t *testing.T) {
	s := newTestStore(t)
	stages := insertTestStages(t, s)
	uid := insertTestUser(t, s, "stu", model.RoleStudent)
	lead := insertTestLead(t, s)
	if _, err := s.StartStage(uid, stages[0].ID); err != nil {
		t.Fatalf("StartStage: %v", err)
	}

	first, err := s.CreateAssignment(model.Assignment{UserID: uid, StageID: stages[0].ID, SubmissionText: "v1"})
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	second, err := s.CreateAssignment(model.Assignment{
		UserID: uid, StageID: stages[0].ID, SubmissionText: "v2",
		Artifact: &model.ArtifactRef{Key: "k", Name: "plan.pdf", Size: 10, ContentType: "application/pdf", Location: "file:///k"},
	})
	if err != nil {
		t.Fatalf("CreateAssignment second: %v", err)
	}
	if first.SubmissionCount != 1 || second.SubmissionCount != 2 {
		t.Errorf("counts = %d, %d", first.SubmissionCount, second.SubmissionCount)
	}
	latest, _ := latestAssignment(s.db, uid, stages[0].ID)
	if latest == nil || latest.ID != second.ID || latest.Artifact == nil || latest.Artifact.Name != "plan.pdf" {
		t.Errorf("latest = %+v", latest)
	}

	pending, err := s.ListAssignmentsForReview(string(model.AssignmentPendingReview))
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending = %d, %v", len(pending), err)
	}
	if pending[0].Username != "stu" || pending[0].StageName != "Foundations" {
		t.Errorf("view = %+v", pending[0])
	}

	if _, _, err := s.ReviewAssignment(first.ID, lead, model.ReviewFail, "redo"); err != nil {
		t.Fatalf("review fail: %v", err)
	}
	p, _ := s.GetProgress(uid, stages[0].ID)
	if p.Status != model.ProgressInProgress {
		t.Errorf("failed review changed progress to %s", p.Status)
	}

	a, rv, err := s.ReviewAssignment(second.ID, lead, model.ReviewPass, "good")
	if err != nil {
		t.Fatalf("review pass: %v", err)
	}
	if a.Status != model.AssignmentApproved || rv.Comment != "good" {
		t.Errorf("review = %+v %+v", a, rv)
	}
	p, _ = s.GetProgress(uid, stages[0].ID)
	if p.Status != model.ProgressCompleted || p.CompletedAt == nil {
		t.Errorf("progress after pass = %+v", p)
	}
	u, _ := s.GetUserByID(uid)
	if u.Role != model.RoleStudent {
		t.Errorf("review changed role to %s", u.Role)
	}

	trader := model.User{ID: uid, Role: model.RoleTrader}
	var denied *model.AuthorizationError
	if _, _, err := s.ReviewAssignment(second.ID, trader, model.ReviewFail, "no"); !errors.As(err, &denied) {
		t.Errorf("review by trader: expected authorization error, got %v", err)
	}

	var conflict *model.StateConflictError
	if _, _, err := s.ReviewAssignment(second.ID, lead, model.ReviewFail, "again"); !errors.As(err, &conflict) {
		t.Errorf("second review: expected conflict, got %v", err)
	}
	var nf *model.NotFoundError
	if _, _, err := s.ReviewAssignment(9999, lead, model.ReviewPass, ""); !errors.As(err, &nf) {
		t.Errorf("missing assignment: expected not found, got %v", err)
	}

	reviews, _ := s.ListReviewsForUser(uid, 5)
	if len(reviews) != 2 || reviews[0].Result != model.AssignmentApproved {
		t.Errorf("reviews = %+v", reviews)
	}
	n, _ := s.CountAssignments(model.AssignmentPendingReview)
	if n != 0 {
		t.Errorf("pending after reviews = %d", n)
	}
}

func TestAssessmentResults(t *testing.T) {
	s := newTestStore(t)
	uid := insertTestUser(t, s, "pat", model.RoleProspectiveStudent)

	label, err := s.AssessmentLabelFor(uid)
	if err != nil || label != model.AssessmentNotTaken {
		t.Fatalf("label before attempt = %s, %v", label, err)
	}

	if _, err := s.SaveAssessmentResult(model.AssessmentResult{
		UserID: uid, Answers: map[int]int{1: 3, 2: 0}, Scores: map[string]int{"discipline": 40}, RedFlag: true,
	}); err != nil {
		t.Fatalf("SaveAssessmentResult: %v", err)
	}
	label, _ = s.AssessmentLabelFor(uid)
	if label != model.InterviewAssessmentFailed {
		t.Errorf("label = %s", label)
	}

	if _, err := s.SaveAssessmentResult(model.AssessmentResult{
		UserID: uid, Answers: map[int]int{1: 0}, Scores: map[string]int{"discipline": 90}, Eligible: true,
	}); err != nil {
		t.Fatalf("SaveAssessmentResult: %v", err)
	}
	r, err := s.LatestAssessmentResult(uid)
	if err != nil || r == nil {
		t.Fatalf("LatestAssessmentResult: %v", err)
	}
	if !r.Eligible || r.Answers[1] != 0 || r.Scores["discipline"] != 90 {
		t.Errorf("latest = %+v", r)
	}
	label, _ = s.AssessmentLabelFor(uid)
	if label != model.AssessmentPassed {
		t.Errorf("label = %s", label)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	hash, err := s.GetImportedFileHash("/some/stages.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/stages.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/stages.json")
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}
	if err := s.SetImportedFileHash("/some/stages.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/stages.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
	stamp, _ := s.GetMetadata(MetaStagesImportedAt)
	if stamp == "" {
		t.Error("import time not recorded")
	}
}

func TestExportProgress(t *testing.T) {
	s := newTestStore(t)
	stages := insertTestStages(t, s)
	stu := insertTestUser(t, s, "stu", model.RoleStudent)
	insertTestUser(t, s, "pat", model.RoleProspectiveStudent)
	lead := insertTestLead(t, s)

	_, _ = s.StartStage(stu, stages[0].ID)
	a, _ := s.CreateAssignment(model.Assignment{UserID: stu, StageID: stages[0].ID, SubmissionText: "done"})
	if _, _, err := s.ReviewAssignment(a.ID, lead, model.ReviewPass, ""); err != nil {
		t.Fatalf("review: %v", err)
	}

	export, err := s.ExportProgress(string(model.RoleStudent))
	if err != nil {
		t.Fatalf("ExportProgress: %v", err)
	}
	if export.TotalStages != 3 || len(export.Students) != 1 {
		t.Fatalf("export = %+v", export)
	}
	rep := export.Students[0]
	if rep.CompletedStages != 1 || rep.ProgressPercent != 33 || rep.CurrentStage != "Risk" {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Stages) != 3 || rep.Stages[0].Submissions != 1 || rep.Stages[1].Status != model.ProgressNotStarted {
		t.Errorf("stage reports = %+v", rep.Stages)
	}
	if rep.LastActivity == nil {
		t.Error("last activity missing")
	}

	all, _ := s.ExportProgress("")
	if len(all.Students) != 3 {
		t.Errorf("all users = %d", len(all.Students))
	}
	for _, r := range all.Students {
		if r.Username == "pat" && r.CurrentStage != "" {
			t.Errorf("prospective student has current stage %q", r.CurrentStage)
		}
	}
}

func TestConcurrentWriters(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "traderpath.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	stages := insertTestStages(t, s)

	const writers = 8
	var users []int64
	for i := range writers {
		uid := insertTestUser(t, s, fmt.Sprintf("stu%d", i), model.RoleStudent)
		if _, err := s.StartStage(uid, stages[0].ID); err != nil {
			t.Fatalf("StartStage: %v", err)
		}
		users = append(users, uid)
	}

	t.Run("submissions from different users", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for _, uid := range users {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.CreateAssignment(model.Assignment{UserID: uid, StageID: stages[0].ID, SubmissionText: "plan"})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Errorf("CreateAssignment: %v", err)
			}
		}
	})

	t.Run("resubmissions get distinct counts", func(t *testing.T) {
		var wg sync.WaitGroup
		counts := make(chan int, writers)
		for range writers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a, err := s.CreateAssignment(model.Assignment{UserID: users[0], StageID: stages[0].ID, SubmissionText: "again"})
				if err != nil {
					t.Errorf("CreateAssignment: %v", err)
					return
				}
				counts <- a.SubmissionCount
			}()
		}
		wg.Wait()
		close(counts)
		seen := map[int]bool{}
		for c := range counts {
			if seen[c] {
				t.Errorf("submission count %d assigned twice", c)
			}
			seen[c] = true
		}
	})

	t.Run("duplicate applications conflict", func(t *testing.T) {
		for round := range 5 {
			uid := insertTestUser(t, s, fmt.Sprintf("pat%d", round), model.RoleProspectiveStudent)
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.CreateInterviewApplication(model.InterviewApplication{UserID: uid, Name: "Pat"})
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			created := 0
			for err := range errs {
				var conflict *model.StateConflictError
				switch {
				case err == nil:
					created++
				case errors.As(err, &conflict):
				default:
					t.Errorf("round %d: unexpected error %v", round, err)
				}
			}
			if created != 1 {
				t.Errorf("round %d: %d applications created, want 1", round, created)
			}
		}
	})
}

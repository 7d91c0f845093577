package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/olexam/portal-backend/internal/config"
	"github.com/olexam/portal-backend/internal/model"
	"github.com/olexam/portal-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// fakeSessionStore implements SessionStore in memory with the same
// create-once / submit-once / silent-no-op semantics as the repository.
type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.ExamSession
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.ExamSession)}
}

func storeKey(rollNumber, subject string) string {
	return rollNumber + "/" + subject
}

func (f *fakeSessionStore) Create(_ context.Context, rollNumber, subject string, questionIDs []string) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.sessions[storeKey(rollNumber, subject)]; ok {
		return copySession(existing), repository.ErrSessionExists
	}

	s := &model.ExamSession{
		RollNumber:  rollNumber,
		Subject:     subject,
		QuestionIDs: append([]string(nil), questionIDs...),
		Answers:     map[string]string{},
		StartedAt:   time.Now(),
		Total:       len(questionIDs),
		Status:      model.SessionStatusInProgress,
	}
	f.sessions[storeKey(rollNumber, subject)] = s
	return copySession(s), nil
}

func (f *fakeSessionStore) Get(_ context.Context, rollNumber, subject string) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[storeKey(rollNumber, subject)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return copySession(s), nil
}

func (f *fakeSessionStore) ListByStudent(_ context.Context, rollNumber string) ([]model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.ExamSession
	for _, s := range f.sessions {
		if s.RollNumber == rollNumber {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

func (f *fakeSessionStore) SaveAnswer(_ context.Context, rollNumber, subject, questionID, answer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[storeKey(rollNumber, subject)]
	if !ok || s.Status == model.SessionStatusCompleted {
		return nil
	}
	for _, id := range s.QuestionIDs {
		if id == questionID {
			s.Answers[questionID] = answer
			return nil
		}
	}
	return nil
}

func (f *fakeSessionStore) Submit(_ context.Context, rollNumber, subject string, score, total int, percentage float64, grade string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[storeKey(rollNumber, subject)]
	if !ok || s.Status == model.SessionStatusCompleted {
		return false, nil
	}
	now := time.Now()
	s.Status = model.SessionStatusCompleted
	s.SubmittedAt = &now
	s.Score = &score
	s.Total = total
	s.Percentage = &percentage
	s.Grade = &grade
	return true, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, rollNumber, subject string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := storeKey(rollNumber, subject)
	if _, ok := f.sessions[key]; !ok {
		return false, nil
	}
	delete(f.sessions, key)
	return true, nil
}

func (f *fakeSessionStore) get(rollNumber, subject string) *model.ExamSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[storeKey(rollNumber, subject)]
}

func copySession(s *model.ExamSession) *model.ExamSession {
	clone := *s
	clone.QuestionIDs = append([]string(nil), s.QuestionIDs...)
	clone.Answers = make(map[string]string, len(s.Answers))
	for k, v := range s.Answers {
		clone.Answers[k] = v
	}
	return &clone
}

// fakeQuestionBank serves a fixed per-subject question pool.
type fakeQuestionBank struct {
	questions []model.Question
}

func (f *fakeQuestionBank) SampleBySubject(_ context.Context, subject string, count int) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if q.Subject == subject && len(out) < count {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestionBank) FetchByIDs(_ context.Context, ids []string) (map[string]model.Question, error) {
	byID := make(map[string]model.Question, len(f.questions))
	for _, q := range f.questions {
		byID[q.ID.String()] = q
	}
	out := make(map[string]model.Question, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

func (f *fakeQuestionBank) Subjects(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, q := range f.questions {
		if !seen[q.Subject] {
			seen[q.Subject] = true
			out = append(out, q.Subject)
		}
	}
	return out, nil
}

type fakeStudentDirectory struct {
	students map[string]*model.Student
}

func (f *fakeStudentDirectory) GetByRoll(_ context.Context, rollNumber string) (*model.Student, error) {
	s, ok := f.students[rollNumber]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return s, nil
}

func (f *fakeStudentDirectory) RecomputeExamTaken(_ context.Context, rollNumber string) error {
	if s, ok := f.students[rollNumber]; ok {
		s.ExamTaken = false
	}
	return nil
}

const (
	testRoll    = "OL20260001"
	testSubject = "Computer Science"
)

func bankFor(subject string, n int) *fakeQuestionBank {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:      uuid.New(),
			Text:    fmt.Sprintf("question %d", i+1),
			Options: []string{"a", "b", "c", "d"},
			Correct: "C",
			Subject: subject,
		}
	}
	return &fakeQuestionBank{questions: questions}
}

func newTestService(store *fakeSessionStore, bank *fakeQuestionBank) *ExamService {
	cfg := &config.Config{
		ExamDurationMinutes: 100,
		TotalQuestions:      20,
		PassingMark:         40,
	}
	students := &fakeStudentDirectory{students: map[string]*model.Student{
		testRoll: {RollNumber: testRoll, Name: "Test Student"},
	}}
	// Unreachable address: queue pushes fail and must be tolerated.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	return NewExamService(store, bank, students, rdb, cfg, zerolog.Nop())
}

func TestStartExamCreatesSession(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 25))

	paper, err := svc.StartExam(context.Background(), testRoll, testSubject)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}

	if len(paper.Questions) != 20 {
		t.Fatalf("got %d questions, want 20", len(paper.Questions))
	}
	if paper.RemainingSeconds < 5999 || paper.RemainingSeconds > 6000 {
		t.Fatalf("remaining = %d, want ~6000", paper.RemainingSeconds)
	}
	if len(paper.SavedAnswers) != 0 {
		t.Fatalf("new paper has saved answers: %v", paper.SavedAnswers)
	}

	sess := store.get(testRoll, testSubject)
	if sess == nil || sess.Status != model.SessionStatusInProgress {
		t.Fatalf("session not created in progress: %+v", sess)
	}
	if len(sess.QuestionIDs) != 20 {
		t.Fatalf("stored %d question ids, want 20", len(sess.QuestionIDs))
	}
}

func TestStartExamInsufficientQuestions(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 5))

	_, err := svc.StartExam(context.Background(), testRoll, testSubject)
	if !errors.Is(err, ErrInsufficientQuestions) {
		t.Fatalf("err = %v, want ErrInsufficientQuestions", err)
	}
	if store.get(testRoll, testSubject) != nil {
		t.Fatal("session must not be created on sampler shortfall")
	}
}

func TestStartExamResumePreservesOrderAndAnswers(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 25))
	ctx := context.Background()

	first, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	qid := first.Questions[3].ID
	if err := svc.SaveAnswer(ctx, testRoll, testSubject, qid, "C"); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}

	second, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("resume StartExam: %v", err)
	}
	for i := range first.Questions {
		if second.Questions[i].ID != first.Questions[i].ID {
			t.Fatalf("question order changed on resume at index %d", i)
		}
	}
	if second.SavedAnswers[qid] != "C" {
		t.Fatalf("saved answers lost on resume: %v", second.SavedAnswers)
	}
}

func TestStartExamResumeDoesNotExtendTime(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 25))
	ctx := context.Background()

	if _, err := svc.StartExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("StartExam: %v", err)
	}

	// Backdate the session: 30 elapsed seconds must be gone on resume.
	store.get(testRoll, testSubject).StartedAt = time.Now().Add(-30 * time.Second)

	paper, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("resume StartExam: %v", err)
	}
	if paper.RemainingSeconds > 5970 {
		t.Fatalf("remaining = %d, timer must not reset", paper.RemainingSeconds)
	}

	again, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("second resume: %v", err)
	}
	if again.RemainingSeconds > paper.RemainingSeconds {
		t.Fatalf("remaining increased across resumes: %d > %d",
			again.RemainingSeconds, paper.RemainingSeconds)
	}
}

func TestStartExamExpiredSessionStillResumes(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 25))
	ctx := context.Background()

	if _, err := svc.StartExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	store.get(testRoll, testSubject).StartedAt = time.Now().Add(-200 * time.Minute)

	paper, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("expired resume must succeed: %v", err)
	}
	if paper.RemainingSeconds != 0 {
		t.Fatalf("remaining = %d, want 0 for expired session", paper.RemainingSeconds)
	}
}

func TestStartExamAlreadyCompleted(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 25))
	ctx := context.Background()

	if _, err := svc.StartExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if _, err := svc.SubmitExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}

	if _, err := svc.StartExam(ctx, testRoll, testSubject); !errors.Is(err, ErrExamCompleted) {
		t.Fatalf("err = %v, want ErrExamCompleted", err)
	}
}

func TestSubmitExamScoresPartialAnswers(t *testing.T) {
	store := newFakeSessionStore()
	bank := bankFor(testSubject, 20)
	svc := newTestService(store, bank)
	ctx := context.Background()

	paper, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}

	// 15 of 20 correct, the rest unanswered.
	for i := 0; i < 15; i++ {
		if err := svc.SaveAnswer(ctx, testRoll, testSubject, paper.Questions[i].ID, "C"); err != nil {
			t.Fatalf("SaveAnswer: %v", err)
		}
	}

	result, err := svc.SubmitExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}
	if result.Score != 15 || result.Total != 20 || result.Percentage != 75.00 || result.Grade != "B" {
		t.Fatalf("result = %+v, want 15/20 75.00 B", result)
	}

	sess := store.get(testRoll, testSubject)
	if sess.Status != model.SessionStatusCompleted || sess.SubmittedAt == nil {
		t.Fatalf("session not finalized: %+v", sess)
	}
}

func TestSubmitExamZeroAnswers(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 20))
	ctx := context.Background()

	if _, err := svc.StartExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("StartExam: %v", err)
	}

	result, err := svc.SubmitExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}
	if result.Score != 0 || result.Percentage != 0 || result.Grade != "F" {
		t.Fatalf("result = %+v, want 0 0.00 F", result)
	}
}

func TestSubmitExamIsOneShot(t *testing.T) {
	store := newFakeSessionStore()
	bank := bankFor(testSubject, 20)
	svc := newTestService(store, bank)
	ctx := context.Background()

	paper, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if err := svc.SaveAnswer(ctx, testRoll, testSubject, paper.Questions[0].ID, "C"); err != nil {
		t.Fatalf("SaveAnswer: %v", err)
	}
	if _, err := svc.SubmitExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("first SubmitExam: %v", err)
	}

	before := *copySession(store.get(testRoll, testSubject))

	if _, err := svc.SubmitExam(ctx, testRoll, testSubject); !errors.Is(err, ErrExamCompleted) {
		t.Fatalf("second submit err = %v, want ErrExamCompleted", err)
	}

	after := store.get(testRoll, testSubject)
	if !after.SubmittedAt.Equal(*before.SubmittedAt) || *after.Score != *before.Score {
		t.Fatalf("second submit mutated stored result: %+v vs %+v", after, before)
	}
}

func TestSubmitExamNoSession(t *testing.T) {
	svc := newTestService(newFakeSessionStore(), bankFor(testSubject, 20))

	if _, err := svc.SubmitExam(context.Background(), testRoll, testSubject); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestSaveAnswerRejectsMissingInput(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 20))
	ctx := context.Background()

	if err := svc.SaveAnswer(ctx, testRoll, testSubject, "", "A"); !errors.Is(err, ErrMissingAnswerInput) {
		t.Fatalf("err = %v, want ErrMissingAnswerInput", err)
	}
	if err := svc.SaveAnswer(ctx, testRoll, testSubject, uuid.NewString(), "  "); !errors.Is(err, ErrMissingAnswerInput) {
		t.Fatalf("err = %v, want ErrMissingAnswerInput", err)
	}
}

func TestSaveAnswerWithoutSessionIsSilentNoop(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 20))

	if err := svc.SaveAnswer(context.Background(), testRoll, testSubject, uuid.NewString(), "A"); err != nil {
		t.Fatalf("err = %v, want silent success", err)
	}
	if store.get(testRoll, testSubject) != nil {
		t.Fatal("no session should have been created")
	}
}

func TestSaveAnswerAfterCompletionIsIgnored(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 20))
	ctx := context.Background()

	paper, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if _, err := svc.SubmitExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}

	if err := svc.SaveAnswer(ctx, testRoll, testSubject, paper.Questions[0].ID, "C"); err != nil {
		t.Fatalf("late save err = %v, want silent success", err)
	}
	if len(store.get(testRoll, testSubject).Answers) != 0 {
		t.Fatal("completed session gained an answer")
	}
}

func TestSaveAnswerForeignQuestionIsIgnored(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 20))
	ctx := context.Background()

	if _, err := svc.StartExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if err := svc.SaveAnswer(ctx, testRoll, testSubject, uuid.NewString(), "A"); err != nil {
		t.Fatalf("err = %v, want silent success", err)
	}
	if len(store.get(testRoll, testSubject).Answers) != 0 {
		t.Fatal("answer stored for question outside the session's list")
	}
}

func TestConcurrentStartYieldsOneSession(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 25))
	ctx := context.Background()

	const starters = 8
	var wg sync.WaitGroup
	errs := make([]error, starters)

	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.StartExam(ctx, testRoll, testSubject)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("starter %d failed: %v", i, err)
		}
	}

	store.mu.Lock()
	count := len(store.sessions)
	store.mu.Unlock()
	if count != 1 {
		t.Fatalf("%d sessions created, want exactly 1", count)
	}
}

func TestGetResults(t *testing.T) {
	store := newFakeSessionStore()
	bank := bankFor(testSubject, 20)
	bank.questions = append(bank.questions, bankFor("Mathematics", 20).questions...)
	svc := newTestService(store, bank)
	ctx := context.Background()

	// Completed Computer Science exam, all correct.
	paper, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	for _, q := range paper.Questions {
		if err := svc.SaveAnswer(ctx, testRoll, testSubject, q.ID, "C"); err != nil {
			t.Fatalf("SaveAnswer: %v", err)
		}
	}
	if _, err := svc.SubmitExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}

	// In-progress Mathematics exam must be filtered out.
	if _, err := svc.StartExam(ctx, testRoll, "Mathematics"); err != nil {
		t.Fatalf("StartExam math: %v", err)
	}

	results, err := svc.GetResults(ctx, testRoll)
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (in-progress filtered)", len(results))
	}
	r := results[0]
	if r.Subject != testSubject || r.Score != 20 || r.Grade != "A+" || !r.Passed {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Name != "Test Student" {
		t.Fatalf("result missing student name: %+v", r)
	}
}

func TestGetResultsUnknownStudent(t *testing.T) {
	svc := newTestService(newFakeSessionStore(), bankFor(testSubject, 20))

	if _, err := svc.GetResults(context.Background(), "OL20269999"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("err = %v, want ErrStudentNotFound", err)
	}
}

func TestResetExamAllowsRetake(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestService(store, bankFor(testSubject, 25))
	ctx := context.Background()

	if _, err := svc.StartExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if _, err := svc.SubmitExam(ctx, testRoll, testSubject); err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}

	deleted, err := svc.ResetExam(ctx, testRoll, testSubject, "admin")
	if err != nil || !deleted {
		t.Fatalf("ResetExam = (%v, %v), want (true, nil)", deleted, err)
	}

	paper, err := svc.StartExam(ctx, testRoll, testSubject)
	if err != nil {
		t.Fatalf("retake StartExam: %v", err)
	}
	if len(paper.Questions) != 20 {
		t.Fatalf("retake got %d questions, want 20", len(paper.Questions))
	}
}

func TestResetExamMissingSession(t *testing.T) {
	svc := newTestService(newFakeSessionStore(), bankFor(testSubject, 20))

	deleted, err := svc.ResetExam(context.Background(), testRoll, testSubject, "admin")
	if err != nil {
		t.Fatalf("ResetExam: %v", err)
	}
	if deleted {
		t.Fatal("deleted = true for a session that never existed")
	}
}

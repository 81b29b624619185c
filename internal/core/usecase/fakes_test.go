package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
)

type memoryTaskRepo struct {
	mu      sync.Mutex
	tasks   map[string]*domain.AnalysisTask
	results map[string]domain.AnalysisResults

	createErr error
	getErr    error
}

func newMemoryTaskRepo() *memoryTaskRepo {
	return &memoryTaskRepo{
		tasks:   make(map[string]*domain.AnalysisTask),
		results: make(map[string]domain.AnalysisResults),
	}
}

func (r *memoryTaskRepo) put(task domain.AnalysisTask) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyTask := task
	r.tasks[task.ID] = &copyTask
}

func (r *memoryTaskRepo) snapshot(id string) (domain.AnalysisTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return domain.AnalysisTask{}, false
	}
	return *task, true
}

func (r *memoryTaskRepo) resultsFor(id string) domain.AnalysisResults {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[id]
}

func (r *memoryTaskRepo) Create(_ context.Context, task *domain.AnalysisTask) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.put(*task)
	return nil
}

func (r *memoryTaskRepo) GetByID(_ context.Context, id string) (*domain.AnalysisTask, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	task, ok := r.snapshot(id)
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get analysis task", fmt.Errorf("id=%s", id))
	}
	return &task, nil
}

func (r *memoryTaskRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete analysis task", fmt.Errorf("id=%s", id))
	}
	delete(r.tasks, id)
	delete(r.results, id)
	return nil
}

func (r *memoryTaskRepo) MarkProcessing(_ context.Context, id string, attempt int, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.Status != domain.StatusPending || task.Attempt != attempt {
		return false, nil
	}
	task.Status = domain.StatusProcessing
	task.StartedAt = &startedAt
	task.UpdatedAt = startedAt
	return true, nil
}

func (r *memoryTaskRepo) Complete(_ context.Context, id string, attempt int, snapshot json.RawMessage, results domain.AnalysisResults, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.Status != domain.StatusProcessing || task.Attempt != attempt {
		return false, nil
	}
	task.Status = domain.StatusCompleted
	task.ResultSnapshot = snapshot
	task.CompletedAt = &completedAt
	task.UpdatedAt = completedAt
	if task.StartedAt != nil {
		ms := completedAt.Sub(*task.StartedAt).Milliseconds()
		task.ProcessingTimeMS = &ms
	}
	r.results[id] = results
	return true, nil
}

func (r *memoryTaskRepo) MarkFailed(_ context.Context, id string, attempt int, message string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || task.Status.IsTerminal() || task.Attempt != attempt {
		return false, nil
	}
	task.Status = domain.StatusFailed
	task.ErrorMessage = message
	task.CompletedAt = &at
	task.UpdatedAt = at
	if task.StartedAt != nil {
		ms := at.Sub(*task.StartedAt).Milliseconds()
		task.ProcessingTimeMS = &ms
	}
	return true, nil
}

func (r *memoryTaskRepo) Reset(_ context.Context, id string, attempt int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok || !task.Status.IsTerminal() || task.Attempt != attempt {
		return false, nil
	}
	task.Status = domain.StatusPending
	task.Attempt++
	task.StartedAt = nil
	task.CompletedAt = nil
	task.ProcessingTimeMS = nil
	task.ErrorMessage = ""
	task.ResultSnapshot = nil
	task.UpdatedAt = at
	delete(r.results, id)
	return true, nil
}

func (r *memoryTaskRepo) List(_ context.Context, filter domain.AnalysisFilter, page domain.PageRequest) (domain.Page[domain.AnalysisTask], error) {
	matched := r.filter(filter)
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return domain.NewPage(matched[start:end], page, total), nil
}

func (r *memoryTaskRepo) ListStale(_ context.Context, status domain.AnalysisStatus, before time.Time, limit int) ([]domain.AnalysisTask, error) {
	out := make([]domain.AnalysisTask, 0)
	for _, task := range r.filter(domain.AnalysisFilter{Status: status}) {
		ref := task.CreatedAt
		if task.StartedAt != nil {
			ref = *task.StartedAt
		}
		if ref.Before(before) && len(out) < limit {
			out = append(out, task)
		}
	}
	return out, nil
}

func (r *memoryTaskRepo) ListPendingAfter(_ context.Context, createdBefore time.Time, after domain.TaskCursor, limit int) ([]domain.AnalysisTask, error) {
	pending := r.filter(domain.AnalysisFilter{Status: domain.StatusPending})
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[j].CreatedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	out := make([]domain.AnalysisTask, 0, limit)
	for _, task := range pending {
		if !task.CreatedAt.Before(createdBefore) {
			continue
		}
		if task.CreatedAt.Before(after.CreatedAt) || (task.CreatedAt.Equal(after.CreatedAt) && task.ID <= after.ID) {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, task)
	}
	return out, nil
}

func (r *memoryTaskRepo) DeleteFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, task := range r.tasks {
		if task.Status == domain.StatusFailed && task.CreatedAt.Before(cutoff) {
			delete(r.tasks, id)
			delete(r.results, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memoryTaskRepo) Statistics(_ context.Context, filter domain.AnalysisFilter) (domain.AnalysisStatistics, error) {
	stats := domain.NewAnalysisStatistics()
	for _, task := range r.filter(filter) {
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.ByKind[task.Kind]++
	}
	return stats, nil
}

func (r *memoryTaskRepo) ProcessingStats(_ context.Context, filter domain.AnalysisFilter) ([]domain.ProcessingStats, error) {
	filter.Status = domain.StatusCompleted
	byKind := make(map[domain.AnalysisKind]*domain.ProcessingStats)
	for _, task := range r.filter(filter) {
		if task.ProcessingTimeMS == nil {
			continue
		}
		ms := *task.ProcessingTimeMS
		stats, ok := byKind[task.Kind]
		if !ok {
			stats = &domain.ProcessingStats{Kind: task.Kind, MinMS: ms, MaxMS: ms}
			byKind[task.Kind] = stats
		}
		stats.AvgMS = (stats.AvgMS*float64(stats.Count) + float64(ms)) / float64(stats.Count+1)
		stats.Count++
		stats.MinMS = min(stats.MinMS, ms)
		stats.MaxMS = max(stats.MaxMS, ms)
	}
	out := make([]domain.ProcessingStats, 0, len(byKind))
	for _, stats := range byKind {
		out = append(out, *stats)
	}
	return out, nil
}

func (r *memoryTaskRepo) filter(filter domain.AnalysisFilter) []domain.AnalysisTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AnalysisTask, 0, len(r.tasks))
	for _, task := range r.tasks {
		if filter.ProjectID != "" && task.ProjectID != filter.ProjectID {
			continue
		}
		if filter.UserID != "" && task.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && task.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Keyword != "" && !strings.Contains(strings.ToLower(task.Description), strings.ToLower(filter.Keyword)) {
			continue
		}
		if filter.CreatedAfter != nil && task.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		out = append(out, *task)
	}
	return out
}

// memoryResultRepo reads the records stored by memoryTaskRepo.Complete.
type memoryResultRepo struct {
	tasks *memoryTaskRepo
}

func (r *memoryResultRepo) ListWordFrequencies(_ context.Context, taskID string, query domain.WordFrequencyQuery, page domain.PageRequest) (domain.Page[domain.WordFrequencyRecord], error) {
	out := make([]domain.WordFrequencyRecord, 0)
	for _, record := range r.tasks.resultsFor(taskID).WordFrequencies {
		if query.Category != "" && record.Category != query.Category {
			continue
		}
		if record.Frequency < query.MinFrequency || record.RelevanceScore < query.MinRelevance {
			continue
		}
		out = append(out, record)
	}
	return domain.NewPage(out, page, int64(len(out))), nil
}

func (r *memoryResultRepo) ListTimelineEvents(_ context.Context, taskID string, query domain.TimelineQuery, page domain.PageRequest) (domain.Page[domain.TimelineEventRecord], error) {
	out := make([]domain.TimelineEventRecord, 0)
	for _, record := range r.tasks.resultsFor(taskID).TimelineEvents {
		if query.From != nil && (record.EventDate == nil || record.EventDate.Before(*query.From)) {
			continue
		}
		if query.To != nil && (record.EventDate == nil || record.EventDate.After(*query.To)) {
			continue
		}
		out = append(out, record)
	}
	return domain.NewPage(out, page, int64(len(out))), nil
}

func (r *memoryResultRepo) ListGeoLocations(_ context.Context, taskID string, query domain.GeoQuery, page domain.PageRequest) (domain.Page[domain.GeoLocationRecord], error) {
	out := make([]domain.GeoLocationRecord, 0)
	for _, record := range r.tasks.resultsFor(taskID).GeoLocations {
		if query.LocationType != "" && record.LocationType != query.LocationType {
			continue
		}
		if box := query.Box; box != nil {
			if !record.HasCoordinates() ||
				*record.Latitude < box.MinLatitude || *record.Latitude > box.MaxLatitude ||
				*record.Longitude < box.MinLongitude || *record.Longitude > box.MaxLongitude {
				continue
			}
		}
		out = append(out, record)
	}
	return domain.NewPage(out, page, int64(len(out))), nil
}

func (r *memoryResultRepo) LoadResults(_ context.Context, taskID string) (domain.AnalysisResults, error) {
	return r.tasks.resultsFor(taskID), nil
}

func (r *memoryResultRepo) CategoryCounts(_ context.Context, taskID string) ([]domain.CategoryCount, error) {
	counts := make(map[domain.Category]int64)
	for _, record := range r.tasks.resultsFor(taskID).WordFrequencies {
		counts[record.Category]++
	}
	out := make([]domain.CategoryCount, 0, len(counts))
	for category, count := range counts {
		out = append(out, domain.CategoryCount{Category: category, Count: count})
	}
	return out, nil
}

func (r *memoryResultRepo) LocationTypeCounts(_ context.Context, taskID string) ([]domain.LocationTypeCount, error) {
	counts := make(map[domain.LocationType]int64)
	for _, record := range r.tasks.resultsFor(taskID).GeoLocations {
		counts[record.LocationType]++
	}
	out := make([]domain.LocationTypeCount, 0, len(counts))
	for locationType, count := range counts {
		out = append(out, domain.LocationTypeCount{LocationType: locationType, Count: count})
	}
	return out, nil
}

func (r *memoryResultRepo) TimelineStatistics(_ context.Context, taskID string) (domain.TimelineStatistics, error) {
	stats := domain.TimelineStatistics{}
	for _, record := range r.tasks.resultsFor(taskID).TimelineEvents {
		stats.Count++
		if record.EventDate == nil {
			continue
		}
		stats.Dated++
		current := record
		if stats.Earliest == nil || record.EventDate.Before(*stats.Earliest.EventDate) {
			stats.Earliest = &current
		}
		if stats.Latest == nil || record.EventDate.After(*stats.Latest.EventDate) {
			stats.Latest = &current
		}
	}
	return stats, nil
}

type directoryFake struct {
	projects map[string]domain.Project
	users    map[string]domain.User
	err      error
}

func newDirectoryFake() *directoryFake {
	return &directoryFake{
		projects: map[string]domain.Project{
			"p-1": {ID: "p-1", OwnerID: "u-owner"},
		},
		users: map[string]domain.User{
			"u-owner": {ID: "u-owner", Role: domain.RoleUser},
			"u-other": {ID: "u-other", Role: domain.RoleUser},
			"u-admin": {ID: "u-admin", Role: domain.RoleAdmin},
		},
	}
}

func (f *directoryFake) GetProject(_ context.Context, projectID string) (*domain.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	project, ok := f.projects[projectID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get project", fmt.Errorf("id=%s", projectID))
	}
	return &project, nil
}

func (f *directoryFake) GetUser(_ context.Context, userID string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[userID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get user", fmt.Errorf("id=%s", userID))
	}
	return &user, nil
}

type filesFake struct {
	mu       sync.Mutex
	contents map[string]string
	readErr  map[string]error
	denied   map[string]bool
	reads    []string
}

func newFilesFake() *filesFake {
	return &filesFake{
		contents: make(map[string]string),
		readErr:  make(map[string]error),
		denied:   make(map[string]bool),
	}
}

func (f *filesFake) GetFileContent(_ context.Context, fileID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, fileID+"@"+userID)
	if err := f.readErr[fileID]; err != nil {
		return "", err
	}
	return f.contents[fileID], nil
}

func (f *filesFake) HasFileAccess(_ context.Context, fileID, _ string) (bool, error) {
	return !f.denied[fileID], nil
}

type dispatcherFake struct {
	mu         sync.Mutex
	dispatched []string
	err        error
}

func (f *dispatcherFake) Dispatch(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, taskID)
	return nil
}

// queueFake rejects non-blocking dispatch as if its queue were full and
// accepts blocking submits.
type queueFake struct {
	mu        sync.Mutex
	submitted []string
}

func (f *queueFake) Dispatch(context.Context, string) error {
	return domain.WrapError(domain.ErrTemporary, "dispatch analysis", errors.New("queue full"))
}

func (f *queueFake) Submit(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, taskID)
	return nil
}

type nlpCall struct {
	kind       domain.AnalysisKind
	text       string
	maxResults int
	minLength  int
}

type nlpFake struct {
	mu       sync.Mutex
	response json.RawMessage
	err      error
	calls    []nlpCall
	block    chan struct{}
	started  chan struct{}
}

func (f *nlpFake) respond(ctx context.Context, call nlpCall) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *nlpFake) AnalyzeWordFrequency(ctx context.Context, text string, maxResults, minLength int) (json.RawMessage, error) {
	return f.respond(ctx, nlpCall{kind: domain.KindWordFrequency, text: text, maxResults: maxResults, minLength: minLength})
}

func (f *nlpFake) AnalyzeTimeline(ctx context.Context, text string) (json.RawMessage, error) {
	return f.respond(ctx, nlpCall{kind: domain.KindTimeline, text: text})
}

func (f *nlpFake) AnalyzeGeographic(ctx context.Context, text string) (json.RawMessage, error) {
	return f.respond(ctx, nlpCall{kind: domain.KindGeography, text: text})
}

func (f *nlpFake) AnalyzeSummary(ctx context.Context, text, _ string, _ int) (json.RawMessage, error) {
	return f.respond(ctx, nlpCall{kind: domain.KindTextSummary, text: text})
}

func (f *nlpFake) AnalyzeMultidimensional(ctx context.Context, text string) (json.RawMessage, error) {
	return f.respond(ctx, nlpCall{kind: domain.KindMultidimensional, text: text})
}

func (f *nlpFake) Health(context.Context) error { return f.err }

func (f *nlpFake) lastCall() (nlpCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nlpCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

type storageFake struct {
	saved map[string][]byte
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = raw
	return "/data/" + key, nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.saved[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

type jsonEncoderFake struct{}

func (jsonEncoderFake) Format() domain.ExportFormat { return domain.ExportJSON }
func (jsonEncoderFake) Extension() string           { return "json" }
func (jsonEncoderFake) ContentType() string         { return "application/json" }
func (jsonEncoderFake) Encode(w io.Writer, report domain.AnalysisReport) error {
	return json.NewEncoder(w).Encode(report)
}

// harness wires the use cases against in-memory collaborators.
type harness struct {
	repo       *memoryTaskRepo
	results    *memoryResultRepo
	directory  *directoryFake
	files      *filesFake
	dispatcher *dispatcherFake
	nlp        *nlpFake
	storage    *storageFake

	guard       *AccessGuard
	analyses    *AnalysisUseCase
	executor    *ExecuteAnalysisUseCase
	queries     *ResultQueryUseCase
	maintenance *MaintenanceUseCase

	clock time.Time
}

func newHarness() *harness {
	h := &harness{
		repo:       newMemoryTaskRepo(),
		directory:  newDirectoryFake(),
		files:      newFilesFake(),
		dispatcher: &dispatcherFake{},
		nlp:        &nlpFake{},
		storage:    &storageFake{},
		clock:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	h.results = &memoryResultRepo{tasks: h.repo}
	now := func() time.Time { return h.clock }

	h.guard = NewAccessGuard(h.directory, h.repo)
	h.analyses = NewAnalysisUseCase(h.repo, h.guard, h.files, h.dispatcher)
	h.analyses.now = now
	seq := 0
	h.analyses.newID = func() string {
		seq++
		return fmt.Sprintf("task-%d", seq)
	}
	h.executor = NewExecuteAnalysisUseCase(h.repo, h.files, h.nlp, NewResultMapper(), time.Second)
	h.executor.now = now
	h.queries = NewResultQueryUseCase(h.repo, h.results, h.guard, h.storage, jsonEncoderFake{})
	h.queries.now = now
	h.maintenance = NewMaintenanceUseCase(h.repo, h.dispatcher, 5*time.Minute)
	h.maintenance.now = now
	return h
}

func (h *harness) seedTask(id string, kind domain.AnalysisKind, status domain.AnalysisStatus, createdAt time.Time) domain.AnalysisTask {
	task := domain.AnalysisTask{
		ID:        id,
		ProjectID: "p-1",
		UserID:    "u-owner",
		Kind:      kind,
		Status:    status,
		FileIDs:   []string{"f-1"},
		Attempt:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if status != domain.StatusPending {
		started := createdAt.Add(time.Second)
		task.StartedAt = &started
	}
	if status == domain.StatusFailed {
		task.ErrorMessage = "boom"
	}
	if status == domain.StatusCompleted {
		task.ResultSnapshot = json.RawMessage(`{}`)
	}
	h.repo.put(task)
	return task
}

package httpadapter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/config"
	"github.com/kirillkom/historical-text-analysis/internal/core/domain"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
)

type fakeAnalyses struct {
	ports.AnalysisManager

	err error

	created   domain.CreateAnalysisInput
	deleteIDs []string
	filter    domain.AnalysisFilter
	page      domain.PageRequest
}

func (f *fakeAnalyses) task(id string) *domain.AnalysisTask {
	return &domain.AnalysisTask{ID: id, ProjectID: "p-1", Kind: domain.KindTimeline, Status: domain.StatusPending}
}

func (f *fakeAnalyses) Create(_ context.Context, in domain.CreateAnalysisInput) (*domain.AnalysisTask, error) {
	f.created = in
	if f.err != nil {
		return nil, f.err
	}
	task := f.task("t-new")
	task.Kind = in.Kind
	return task, nil
}

func (f *fakeAnalyses) Get(_ context.Context, taskID, _ string) (*domain.AnalysisTask, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.task(taskID), nil
}

func (f *fakeAnalyses) DeleteMany(_ context.Context, ids []string, _ string) (int, error) {
	f.deleteIDs = ids
	return len(ids) - 1, f.err
}

func (f *fakeAnalyses) Cancel(_ context.Context, taskID, _ string) (*domain.AnalysisTask, error) {
	if f.err != nil {
		return nil, f.err
	}
	task := f.task(taskID)
	task.Status = domain.StatusFailed
	task.ErrorMessage = domain.CancelledMessage
	return task, nil
}

func (f *fakeAnalyses) ListByProject(_ context.Context, _, _ string, filter domain.AnalysisFilter, page domain.PageRequest) (domain.Page[domain.AnalysisTask], error) {
	f.filter = filter
	f.page = page
	return domain.NewPage([]domain.AnalysisTask{*f.task("t-1")}, page, 1), f.err
}

type fakeResults struct {
	ports.AnalysisResultReader

	scope  domain.StatisticsScope
	geo    domain.GeoQuery
	nearby domain.NearbyQuery
	format domain.ExportFormat
}

func (f *fakeResults) Statistics(_ context.Context, _ string, scope domain.StatisticsScope) (domain.AnalysisStatistics, error) {
	f.scope = scope
	return domain.NewAnalysisStatistics(), nil
}

func (f *fakeResults) GeoLocations(_ context.Context, _, _ string, query domain.GeoQuery, page domain.PageRequest) (domain.Page[domain.GeoLocationRecord], error) {
	f.geo = query
	return domain.NewPage[domain.GeoLocationRecord](nil, page, 0), nil
}

func (f *fakeResults) NearbyLocations(_ context.Context, _, _ string, query domain.NearbyQuery) ([]domain.GeoLocationRecord, error) {
	f.nearby = query
	return nil, nil
}

func (f *fakeResults) Export(_ context.Context, taskID, _ string, format domain.ExportFormat) (domain.ExportArtifact, error) {
	f.format = format
	return domain.ExportArtifact{
		TaskID:      taskID,
		Format:      format,
		Path:        "/data/exports/analysis_" + taskID + ".csv",
		ContentType: "text/csv; charset=utf-8",
		SizeBytes:   int64(len("word,frequency\n")),
		CreatedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

type fakeMaintenance struct {
	ports.AnalysisMaintainer

	cutoff time.Time
}

func (f *fakeMaintenance) CleanupFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

type fakeAccess struct {
	ports.AccessChecker

	admins map[string]bool
}

func (f fakeAccess) IsAdmin(_ context.Context, userID string) bool {
	return f.admins[userID]
}

type fakeArtifacts struct {
	opened string
}

func (f *fakeArtifacts) Save(context.Context, string, io.Reader) (string, error) {
	return "", nil
}

func (f *fakeArtifacts) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.opened = key
	return io.NopCloser(bytes.NewBufferString("word,frequency\n")), nil
}

type testDeps struct {
	analyses    *fakeAnalyses
	results     *fakeResults
	maintenance *fakeMaintenance
	artifacts   *fakeArtifacts
}

func newTestDeps() testDeps {
	return testDeps{
		analyses:    &fakeAnalyses{},
		results:     &fakeResults{},
		maintenance: &fakeMaintenance{},
		artifacts:   &fakeArtifacts{},
	}
}

func newTestHandler(cfg config.Config, deps testDeps) http.Handler {
	return NewRouter(
		cfg,
		deps.analyses,
		deps.results,
		deps.maintenance,
		fakeAccess{admins: map[string]bool{"admin": true}},
		deps.artifacts,
		nil,
	).Handler()
}

func newUserRequest(method, target, userID string, body io.Reader) *http.Request {
	req, _ := http.NewRequest(method, target, body)
	req.RemoteAddr = "192.0.2.1:1234"
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

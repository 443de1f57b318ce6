package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"dealscope/internal/domain"
	"dealscope/internal/repo"
)

type healthBody struct {
	Status string `json:"status" example:"ok"`
}

type healthResponse struct {
	Body healthBody
}

type hygieneResponse struct {
	Body domain.HygieneSummary
}

type agingResponse struct {
	Body domain.StageAgingSummary
}

type quarterlyResponse struct {
	Body domain.ForecastSummary
}

type weeklyResponse struct {
	Body domain.WeeklyForecastReport
}

type snapshotListResponse struct {
	Body struct {
		Items []repo.SnapshotInfo `json:"items"`
	}
}

type syncResponse struct {
	Body repo.SnapshotInfo
}

type eventsInput struct {
	Limit int    `query:"limit" default:"20" minimum:"1" maximum:"500"`
	Type  string `query:"type" required:"false"`
}

type eventsResponse struct {
	Body struct {
		Items []domain.Event `json:"items"`
	}
}

func registerReports(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "get-report-hygiene",
		Method:      http.MethodGet,
		Path:        "/reports/hygiene",
		Summary:     "Deal completeness report",
	}, func(ctx context.Context, _ *struct{}) (*hygieneResponse, error) {
		e, snap, err := loadEngine(ctx, cfg)
		if err != nil {
			return nil, handleError(err)
		}
		sum := e.SummarizeHygiene(snap.Deals)
		storeReport(ctx, cfg, repo.ReportHygiene, snap.ID, sum.GeneratedAt, sum)
		return &hygieneResponse{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report-aging",
		Method:      http.MethodGet,
		Path:        "/reports/aging",
		Summary:     "Stage aging report",
	}, func(ctx context.Context, _ *struct{}) (*agingResponse, error) {
		e, snap, err := loadEngine(ctx, cfg)
		if err != nil {
			return nil, handleError(err)
		}
		sum := e.SummarizeAging(snap.Deals)
		storeReport(ctx, cfg, repo.ReportAging, snap.ID, sum.GeneratedAt, sum)
		return &agingResponse{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report-forecast-quarterly",
		Method:      http.MethodGet,
		Path:        "/reports/forecast/quarterly",
		Summary:     "Quarterly revenue forecast",
	}, func(ctx context.Context, _ *struct{}) (*quarterlyResponse, error) {
		e, snap, err := loadEngine(ctx, cfg)
		if err != nil {
			return nil, handleError(err)
		}
		sum := e.QuarterlyForecast(snap.Deals)
		storeReport(ctx, cfg, repo.ReportQuarterly, snap.ID, sum.GeneratedAt, sum)
		return &quarterlyResponse{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report-forecast-weekly",
		Method:      http.MethodGet,
		Path:        "/reports/forecast/weekly",
		Summary:     "Weekly pipeline forecast",
	}, func(ctx context.Context, _ *struct{}) (*weeklyResponse, error) {
		e, snap, err := loadEngine(ctx, cfg)
		if err != nil {
			return nil, handleError(err)
		}
		rep := e.WeeklyForecast(snap.Deals)
		storeReport(ctx, cfg, repo.ReportWeekly, snap.ID, rep.GeneratedAt, rep)
		return &weeklyResponse{Body: rep}, nil
	})
}

// storeReport persists the computed report; persistence failures do not fail
// the request, the report was already computed.
func storeReport(ctx context.Context, cfg Config, kind, snapshotID string, generatedAt time.Time, report any) {
	payload, err := json.Marshal(report)
	if err != nil {
		cfg.Log.WithError(err).WithField("kind", kind).Warn("marshal report for storage")
		return
	}
	err = cfg.Repo.SaveReport(ctx, repo.StoredReport{
		ID:          uuid.NewString(),
		SnapshotID:  snapshotID,
		Kind:        kind,
		GeneratedAt: generatedAt,
		Payload:     payload,
	})
	if err != nil {
		cfg.Log.WithError(err).WithField("kind", kind).Warn("store report")
	}
}

func registerSnapshots(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-snapshots",
		Method:      http.MethodGet,
		Path:        "/snapshots",
		Summary:     "List stored snapshots",
	}, func(ctx context.Context, _ *struct{}) (*snapshotListResponse, error) {
		items, err := cfg.Repo.ListSnapshots(ctx, 50)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &snapshotListResponse{}
		resp.Body.Items = items
		return resp, nil
	})
}

func registerSync(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "post-sync",
		Method:      http.MethodPost,
		Path:        "/sync",
		Summary:     "Fetch a fresh CRM snapshot",
	}, func(ctx context.Context, _ *struct{}) (*syncResponse, error) {
		if cfg.Syncer == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "sync_unavailable", "server started without CRM credentials")
		}
		snap, err := cfg.Syncer.Sync(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Repo.SaveSnapshot(ctx, snap); err != nil {
			return nil, handleError(err)
		}
		return &syncResponse{Body: repo.SnapshotInfo{
			ID:        snap.ID,
			FetchedAt: snap.FetchedAt,
			DealCount: len(snap.Deals),
		}}, nil
	})
}

func registerEvents(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent run events",
	}, func(ctx context.Context, input *eventsInput) (*eventsResponse, error) {
		items, err := cfg.Repo.LatestEvents(ctx, input.Limit, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		resp := &eventsResponse{}
		resp.Body.Items = items
		return resp, nil
	})
}

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/gql_sniffer/internal/controller"
	"github.com/dgnsrekt/gql_sniffer/internal/types"
)

func registerHealthHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body controller.Health
	}
	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			h, err := svc.Health(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &healthOutput{Body: h}, nil
		})
}

func registerCaptureHandlers(api huma.API, svc Service) {
	type statusOutput struct {
		Body controller.CaptureStatus
	}

	huma.Register(api, huma.Operation{OperationID: "capture-count", Method: http.MethodGet, Path: "/api/v1/captures/count", Summary: "Count stored captures", Tags: []string{"Captures"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			status, err := svc.CaptureStatus(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	type listCapturesOutput struct {
		Body struct {
			Count    int              `json:"count"`
			Captures []types.Exchange `json:"captures"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-captures", Method: http.MethodGet, Path: "/api/v1/captures", Summary: "List stored captures", Description: "Returns captures in insertion order. Use operation to keep only one GraphQL operation.", Tags: []string{"Captures"}},
		func(ctx context.Context, input *struct {
			Operation string `query:"operation" doc:"Only return captures of this operation" example:"UserMedia"`
		}) (*listCapturesOutput, error) {
			items, err := svc.ListCaptures(ctx, input.Operation)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listCapturesOutput{}
			out.Body.Captures = items
			if out.Body.Captures == nil {
				out.Body.Captures = []types.Exchange{}
			}
			out.Body.Count = len(out.Body.Captures)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-captures", Method: http.MethodDelete, Path: "/api/v1/captures", Summary: "Clear stored captures", Tags: []string{"Captures"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			status, err := svc.ClearCaptures(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-capture-enabled", Method: http.MethodPut, Path: "/api/v1/captures/enabled", Summary: "Pause or resume capture", Tags: []string{"Captures"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Enabled bool `json:"enabled" doc:"false pauses capture; exchanges seen while paused are not stored"`
			}
		}) (*statusOutput, error) {
			status, err := svc.SetCapturing(ctx, input.Body.Enabled)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statusOutput{Body: status}, nil
		})

	type exportTextOutput struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}
	huma.Register(api, huma.Operation{OperationID: "export-captures", Method: http.MethodGet, Path: "/api/v1/captures/export", Summary: "Export response bodies as text", Description: "Pretty-printed response bodies in insertion order, separated by a line containing ---.", Tags: []string{"Captures"}},
		func(ctx context.Context, input *struct{}) (*exportTextOutput, error) {
			text, err := svc.ExportText(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &exportTextOutput{ContentType: "text/plain; charset=utf-8", Body: []byte(text)}, nil
		})
}

package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/gql_sniffer/internal/export"
)

func registerExportHandlers(api huma.API, svc Service) {
	type createExportOutput struct {
		Body struct {
			Export export.Meta `json:"export"`
			URL    string      `json:"url"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "create-export", Method: http.MethodPost, Path: "/api/v1/exports", Summary: "Write an export artifact", Description: "Stores the current export text as a downloadable file and optionally uploads it to the configured bucket.", Tags: []string{"Exports"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Filename string `json:"filename,omitempty" doc:"Download name; defaults to the configured export filename" example:"UserMedia-responses.txt"`
				Upload   bool   `json:"upload,omitempty" doc:"Also upload to the configured bucket"`
			}
		}) (*createExportOutput, error) {
			meta, err := svc.CreateExport(ctx, input.Body.Filename, input.Body.Upload)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &createExportOutput{}
			out.Body.Export = meta
			out.Body.URL = "/api/v1/exports/" + meta.ID + "/content"
			return out, nil
		})

	type listExportsOutput struct {
		Body struct {
			Exports []export.Meta `json:"exports"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-exports", Method: http.MethodGet, Path: "/api/v1/exports", Summary: "List export artifacts", Tags: []string{"Exports"}},
		func(ctx context.Context, input *struct{}) (*listExportsOutput, error) {
			metas, err := svc.ListExports(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listExportsOutput{}
			out.Body.Exports = metas
			if out.Body.Exports == nil {
				out.Body.Exports = []export.Meta{}
			}
			return out, nil
		})

	type exportIDInput struct {
		ExportID string `path:"export_id"`
	}
	type getExportOutput struct {
		Body export.Meta
	}
	huma.Register(api, huma.Operation{OperationID: "get-export-metadata", Method: http.MethodGet, Path: "/api/v1/exports/{export_id}/metadata", Summary: "Get export metadata", Tags: []string{"Exports"}},
		func(ctx context.Context, input *exportIDInput) (*getExportOutput, error) {
			meta, err := svc.GetExport(ctx, input.ExportID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getExportOutput{Body: meta}, nil
		})

	type exportContentOutput struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}
	huma.Register(api, huma.Operation{OperationID: "get-export-content", Method: http.MethodGet, Path: "/api/v1/exports/{export_id}/content", Summary: "Download export content", Tags: []string{"Exports"}},
		func(ctx context.Context, input *exportIDInput) (*exportContentOutput, error) {
			data, meta, err := svc.ReadExport(ctx, input.ExportID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &exportContentOutput{
				ContentType:        "text/plain; charset=utf-8",
				ContentDisposition: fmt.Sprintf("attachment; filename=%q", meta.Filename),
				Body:               data,
			}, nil
		})

	type deleteExportOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "delete-export", Method: http.MethodDelete, Path: "/api/v1/exports/{export_id}", Summary: "Delete export artifact", Tags: []string{"Exports"}},
		func(ctx context.Context, input *exportIDInput) (*deleteExportOutput, error) {
			if err := svc.DeleteExport(ctx, input.ExportID); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteExportOutput{}
			out.Body.Status = "deleted"
			return out, nil
		})
}

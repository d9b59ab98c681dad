package response

import (
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestSuccessResponse(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		data []any
		want Response
	}{
		{
			name: "without data",
			msg:  "Operation successful.",
			want: Response{
				Status:  StatusSuccess,
				Message: "Operation successful.",
			},
		},
		{
			name: "with data",
			msg:  "Operation successful.",
			data: []any{map[string]any{"id": 1}},
			want: Response{
				Status:  StatusSuccess,
				Message: "Operation successful.",
				Data:    map[string]any{"id": 1},
			},
		},
		{
			name: "with multiple data",
			msg:  "Operation successful.",
			data: []any{
				map[string]any{"id": 1},
				map[string]any{"id": 2},
			},
			want: Response{
				Status:  StatusSuccess,
				Message: "Operation successful.",
				Data:    map[string]any{"id": 1},
			},
		},
		{
			name: "with nil data",
			msg:  "Operation successful.",
			data: nil,
			want: Response{
				Status:  StatusSuccess,
				Message: "Operation successful.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SuccessResponse(tt.msg, tt.data...)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidationErrorResponse(t *testing.T) {
	type req struct {
		URL        string `json:"url" validate:"required"`
		ExpiryDate string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	}

	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	tests := []struct {
		name        string
		req         req
		wantDetails []any
	}{
		{
			name: "no errors",
			req: req{
				URL:        "https://example.com",
				ExpiryDate: "2030-01-01T00:00:00Z",
			},
		},
		{
			name: "one error",
			req:  req{URL: ""},
			wantDetails: []any{
				`Field "url" failed on the "required" rule.`,
			},
		},
		{
			name: "two errors",
			req: req{
				URL:        "",
				ExpiryDate: "not a date",
			},
			wantDetails: []any{
				`Field "url" failed on the "required" rule.`,
				`Field "expiry_date" failed on the "datetime" rule.`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.req)
			got := ValidationErrorResponse(err)

			assert.Equal(t, StatusError, got.Status)
			assert.Equal(t, tt.wantDetails, got.Details)
		})
	}
}

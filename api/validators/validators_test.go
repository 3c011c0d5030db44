package validators

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/trailpack-backend/pkg/errors"
)

type quantityBody struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"min=1,max=99"`
}

func TestDecodeJSONBodyUsesJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":1,"quantity":0}`))
	var body quantityBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["quantity"] != "must be at least 1" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(`{"product_id":1,"quantity":1,"price_cents":1}`))
	var body quantityBody
	if err := DecodeJSONBody(req, &body); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	var body quantityBody
	err := DecodeJSONBody(req, &body)

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeOptionalJSONBodyTreatsEmptyBodyAsAbsent(t *testing.T) {
	cases := map[string]func() *http.Request{
		"no body": func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/payments/mock", nil)
		},
		"chunked empty": func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/payments/mock", io.NopCloser(strings.NewReader("")))
			req.ContentLength = -1
			return req
		},
		"whitespace only": func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/payments/mock", strings.NewReader("  \n"))
		},
	}
	for name, build := range cases {
		var body quantityBody
		if err := DecodeOptionalJSONBody(build(), &body); err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if body != (quantityBody{}) {
			t.Fatalf("%s: expected zero value, got %+v", name, body)
		}
	}
}

func TestDecodeOptionalJSONBodyStillValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/payments/mock", strings.NewReader(`{"product_id":1,"quantity":500}`))
	var body quantityBody
	err := DecodeOptionalJSONBody(req, &body)

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if details, _ := typed.Details().(map[string]string); details["quantity"] != "must be at most 99" {
		t.Fatalf("unexpected details %v", typed.Details())
	}
}

func TestParsePathID(t *testing.T) {
	cases := map[string]bool{"42": true, "0": false, "-3": false, "abc": false, "": false}
	for raw, ok := range cases {
		req := httptest.NewRequest(http.MethodGet, "/orders/x", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("id", raw)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

		id, err := ParsePathID(req, "id")
		if ok && (err != nil || id != 42) {
			t.Fatalf("%q: expected 42, got %d %v", raw, id, err)
		}
		if !ok && err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{name: "trims", input: "  tents \n", want: "tents"},
		{name: "drops control characters", input: "sleep\x00ing\tbags", want: "sleepingbags"},
		{name: "drops invalid utf8", input: "st\xffoves", want: "stoves"},
		{name: "cuts on byte limit", input: "backpacks", maxLen: 4, want: "back"},
		{name: "keeps runes whole", input: "café crème", maxLen: 4, want: "caf"},
		{name: "no limit", input: "headlamp", maxLen: 0, want: "headlamp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeString(tc.input, tc.maxLen); got != tc.want {
				t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.want)
			}
		})
	}
}

package services_test

import (
	"errors"
	"net/http"
	"testing"

	"bootforge/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "builder", "package", "tool exited", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected cause to survive wrapping: %v", err)
	}
	want := "external tool error: builder: package: tool exited: boom"
	if err.Error() != want {
		t.Fatalf("unexpected message: got %q want %q", err.Error(), want)
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrNotFound, "manifest", "load", "appboot.json missing", nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found marker: %v", err)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker: %v", err)
	}
	if err.Error() != "external tool error: service failure" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", services.ErrValidation, http.StatusBadRequest},
		{"parse", services.ErrParse, http.StatusBadRequest},
		{"traversal", services.ErrPathTraversal, http.StatusBadRequest},
		{"not found", services.ErrNotFound, http.StatusNotFound},
		{"timeout", services.ErrTimeout, http.StatusGatewayTimeout},
		{"network", services.ErrNetwork, http.StatusBadGateway},
		{"tool", services.ErrExternalTool, http.StatusInternalServerError},
		{"wrapped", services.Wrap(services.ErrTimeout, "preview", "decrypt", "", nil), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

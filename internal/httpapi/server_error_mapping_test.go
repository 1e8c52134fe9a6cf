package httpapi

import (
	"net/http"
	"testing"

	"instructd/internal/engine"
	"instructd/internal/model"
	"instructd/internal/prompt"
	"instructd/internal/session"
)

func templateUsageErr(t *testing.T) error {
	t.Helper()
	_, err := prompt.Format("x", "unexpected input", prompt.TemplateRaw)
	if err == nil {
		t.Fatal("expected template usage error")
	}
	return err
}

func samplingParamsErr(t *testing.T) error {
	t.Helper()
	p := engine.DefaultParams()
	p.Temperature = -1
	err := p.Validate()
	if err == nil {
		t.Fatal("expected params validation error")
	}
	return err
}

func TestGenerate_TemplateMisuseMaps400(t *testing.T) {
	svc := &mockService{submitErr: templateUsageErr(t)}
	w := postGenerate(t, NewMux(svc), `{"instruction":"hi","input":"ctx","template":"raw"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGenerate_InvalidParamsMaps400(t *testing.T) {
	svc := &mockService{submitErr: samplingParamsErr(t)}
	w := postGenerate(t, NewMux(svc), `{"instruction":"hi","temperature":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGenerate_QueueFullMaps429(t *testing.T) {
	svc := &mockService{submitErr: session.ErrQueueFull(8)}
	w := postGenerate(t, NewMux(svc), `{"instruction":"hi"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestGenerate_ModelLoadMaps503(t *testing.T) {
	svc := &mockService{submitErr: model.ErrModelLoad("/w/base.bin", nil)}
	w := postGenerate(t, NewMux(svc), `{"instruction":"hi"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGenerate_DeviceOOMMaps503(t *testing.T) {
	svc := &mockService{submitErr: model.ErrDeviceOutOfMemory("kv cache")}
	w := postGenerate(t, NewMux(svc), `{"instruction":"hi"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGenerate_UnknownErrorMaps500(t *testing.T) {
	svc := &mockService{submitErr: errOpaque{}}
	w := postGenerate(t, NewMux(svc), `{"instruction":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

type errOpaque struct{}

func (errOpaque) Error() string { return "opaque failure" }

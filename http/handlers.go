package http

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"houseprice/apperr"
	"houseprice/db"
	"houseprice/housing"
	"houseprice/monitoring"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var pricePrinter = message.NewPrinter(language.English)

// formField is one input of the estimate form.
type formField struct {
	FormKey string
	Label   string
	Step    string
	Value   string
}

type formPage struct {
	Title       string
	Error       string
	Numeric     []formField
	Categorical []formField
}

type resultPage struct {
	Title    string
	Error    string
	Estimate string
	Model    string
}

// RegisterHandlers 注册页面处理器
func RegisterHandlers(mux *http.ServeMux, app *App) {
	mux.HandleFunc("GET /{$}", app.handleIndex)
	mux.HandleFunc("GET /predict", app.handleForm)
	mux.HandleFunc("POST /predict", app.handlePredict)
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "index", struct{ Title string }{Title: "House Price Estimator"})
}

func (a *App) handleForm(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "form", newFormPage(nil))
}

func (a *App) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a.Metrics.IncrCounter("predict_requests", 1)

	if err := r.ParseForm(); err != nil {
		a.fail(w, r, apperr.E(apperr.Parse, "http.handlePredict", err))
		return
	}

	attrs, err := housing.ParseForm(r.PostForm)
	if err != nil {
		a.Metrics.IncrCounter("predict_failures", 1)
		a.logFailure(r, http.StatusBadRequest, err)
		page := newFormPage(submitted(r))
		page.Error = err.Error()
		a.render(w, http.StatusBadRequest, "form", page)
		return
	}

	row := attrs.Row()
	result, err := a.Pipeline.Estimate(r.Context(), row)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Metrics.RecordLatency("predict", time.Since(start))
	a.Metrics.IncrCounter("predict_success", 1)

	requestID := GetRequestID(r.Context())
	inputs := row.Map()
	if db.Ready() {
		err := db.SavePrediction(db.Prediction{
			RequestID: requestID,
			ModelName: result.Model,
			Estimate:  result.Estimate,
			Inputs:    inputs,
		})
		if err != nil {
			a.Log.Warn("failed to record prediction", zap.String("request_id", requestID), zap.Error(err))
		}
	}
	if a.Hub != nil {
		err := a.Hub.PublishEstimate(monitoring.Estimate{
			RequestID: requestID,
			Model:     result.Model,
			Estimate:  result.Estimate,
			Inputs:    inputs,
		})
		if err != nil {
			a.Log.Warn("failed to publish estimate", zap.String("request_id", requestID), zap.Error(err))
		}
	}

	a.render(w, http.StatusOK, "result", resultPage{
		Title:    "Estimate",
		Estimate: FormatPrice(result.Estimate),
		Model:    result.Model,
	})
}

// fail renders the error page. Parse failures are the caller's fault.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if apperr.Is(err, apperr.Parse) {
		status = http.StatusBadRequest
	}
	a.Metrics.IncrCounter("predict_failures", 1)
	a.logFailure(r, status, err)

	text := "The estimate could not be computed."
	if status == http.StatusBadRequest {
		text = err.Error()
	}
	a.render(w, status, "result", resultPage{Title: "Estimate failed", Error: text})
}

func (a *App) logFailure(r *http.Request, status int, err error) {
	fields := []zap.Field{
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("kind", apperr.KindOf(err).String()),
		zap.Int("status", status),
		zap.Error(err),
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		fields = append(fields, zap.String("op", appErr.Op), zap.String("location", appErr.Location()))
	}
	a.Log.Error("prediction failed", fields...)
}

func (a *App) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		a.Log.Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// submitted returns the posted catalog fields keyed by form key.
func submitted(r *http.Request) map[string]string {
	values := make(map[string]string)
	for _, col := range housing.Columns() {
		if v := r.PostForm.Get(col.FormKey); v != "" {
			values[col.FormKey] = v
		}
	}
	return values
}

func newFormPage(values map[string]string) formPage {
	page := formPage{Title: "Estimate a property"}
	for _, col := range housing.Columns() {
		field := formField{FormKey: col.FormKey, Label: col.Name, Value: values[col.FormKey]}
		if col.Kind == housing.Categorical {
			page.Categorical = append(page.Categorical, field)
			continue
		}
		field.Step = "any"
		if col.Integer {
			field.Step = "1"
		}
		page.Numeric = append(page.Numeric, field)
	}
	return page
}

// FormatPrice renders an estimate as US dollars with grouping.
func FormatPrice(v float64) string {
	return pricePrinter.Sprintf("$%.2f", v)
}

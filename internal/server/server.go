package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"crewplan/internal/domain"
	"crewplan/internal/engine"
	"crewplan/internal/graph"
	"crewplan/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Log      *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"rule validation failed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Crewplan API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request decode errors are the client's fault, not the data set's.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(log))
	hcfg := huma.DefaultConfig("Crewplan API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerRecords(group, cfg.Engine)
	registerRules(group, cfg.Engine)
	registerValidations(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var rve engine.RuleValidationError
	if errors.As(err, &rve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", "rule validation failed",
			map[string]any{"problems": rve.Problems})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "unknown entity"),
		strings.Contains(lowered, "invalid"),
		strings.Contains(lowered, "required"),
		strings.Contains(lowered, "missing"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "local-user"
	}
	return actor
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Crewplan API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerRecords(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/records/{entity}",
		Summary:     "List records of one entity",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Entity string `path:"entity" enum:"clients,workers,tasks"`
	}) (*struct {
		Body RecordListResponse `json:"body"`
	}, error) {
		if !repo.ValidEntity(input.Entity) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown entity "+input.Entity, nil)
		}
		items, err := e.Repo.ListRecords(ctx, input.Entity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RecordListResponse `json:"body"`
		}{Body: RecordListResponse{Entity: input.Entity, Count: len(items), Records: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "ingest-records",
		Method:        http.MethodPost,
		Path:          "/records/{entity}/ingest",
		Summary:       "Ingest a batch of records",
		Description:   "Stores records as-is. Malformed cells and duplicate IDs are accepted here and reported by validation.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Entity  string        `path:"entity" enum:"clients,workers,tasks"`
		ActorID string        `header:"X-Actor-Id"`
		Body    IngestRequest `json:"body"`
	}) (*struct {
		Body IngestResponse `json:"body"`
	}, error) {
		mode := input.Body.Mode
		if mode == "" {
			mode = "replace"
		}
		if mode != "replace" && mode != "append" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "mode must be replace or append", nil)
		}
		if len(input.Body.Records) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "records is required", nil)
		}
		n, err := e.Ingest(ctx, input.Entity, input.Body.Records, mode == "replace", actorOrDefault(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IngestResponse `json:"body"`
		}{Body: IngestResponse{Entity: input.Entity, Count: n, Mode: mode}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-record",
		Method:        http.MethodPost,
		Path:          "/records/{entity}",
		Summary:       "Append a single record",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Entity  string        `path:"entity" enum:"clients,workers,tasks"`
		ActorID string        `header:"X-Actor-Id"`
		Body    domain.Record `json:"body"`
	}) (*struct {
		Body domain.Record `json:"body"`
	}, error) {
		if len(input.Body) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		rec, err := e.CreateRecord(ctx, input.Entity, input.Body, actorOrDefault(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Record `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-record",
		Method:      http.MethodPatch,
		Path:        "/records/{entity}/{record_id}",
		Summary:     "Patch a record",
		Description: "Overlays the patch onto the stored record. A null value removes the key.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Entity   string        `path:"entity" enum:"clients,workers,tasks"`
		RecordID string        `path:"record_id"`
		ActorID  string        `header:"X-Actor-Id"`
		Body     domain.Record `json:"body"`
	}) (*struct {
		Body domain.Record `json:"body"`
	}, error) {
		if len(input.Body) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		rec, err := e.UpdateRecord(ctx, input.Entity, input.RecordID, input.Body, actorOrDefault(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Record `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-record",
		Method:      http.MethodDelete,
		Path:        "/records/{entity}/{record_id}",
		Summary:     "Delete a record",
		Description: "Removes every stored row carrying the ID, duplicates included.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Entity   string `path:"entity" enum:"clients,workers,tasks"`
		RecordID string `path:"record_id"`
		ActorID  string `header:"X-Actor-Id"`
	}) (*struct{}, error) {
		if err := e.DeleteRecord(ctx, input.Entity, input.RecordID, actorOrDefault(input.ActorID)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-records",
		Method:      http.MethodDelete,
		Path:        "/records/{entity}",
		Summary:     "Clear all records of one entity",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Entity  string `path:"entity" enum:"clients,workers,tasks"`
		ActorID string `header:"X-Actor-Id"`
	}) (*struct{}, error) {
		if err := e.ClearEntity(ctx, input.Entity, actorOrDefault(input.ActorID)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerRules(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-rules",
		Method:      http.MethodGet,
		Path:        "/rules",
		Summary:     "List rules",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body RuleListResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListRules(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RuleListResponse `json:"body"`
		}{Body: RuleListResponse{Count: len(items), Rules: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:      "add-rule",
		Method:           http.MethodPost,
		Path:             "/rules",
		Summary:          "Add a rule",
		Description:      "Validates the rule against the current data set; any problem rejects it atomically.",
		DefaultStatus:    http.StatusCreated,
		Errors:           []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
		SkipValidateBody: true,
	}, func(ctx context.Context, input *struct {
		ActorID string `header:"X-Actor-Id"`
		RawBody []byte `contentType:"application/json"`
	}) (*struct {
		Body domain.Rule `json:"body"`
	}, error) {
		if len(input.RawBody) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		var rule domain.Rule
		if err := json.Unmarshal(input.RawBody, &rule); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid rule json: "+err.Error(), nil)
		}
		stored, err := e.AddRule(ctx, rule, actorOrDefault(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Rule `json:"body"`
		}{Body: stored}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:      "update-rule",
		Method:           http.MethodPatch,
		Path:             "/rules/{rule_id}",
		Summary:          "Patch a rule",
		Description:      "Merges the patch into the stored rule's wire form and revalidates the whole rule.",
		Errors:           []int{http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity},
		SkipValidateBody: true,
	}, func(ctx context.Context, input *struct {
		RuleID  string `path:"rule_id"`
		ActorID string `header:"X-Actor-Id"`
		RawBody []byte `contentType:"application/json"`
	}) (*struct {
		Body domain.Rule `json:"body"`
	}, error) {
		if len(input.RawBody) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		stored, err := e.UpdateRule(ctx, input.RuleID, input.RawBody, actorOrDefault(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Rule `json:"body"`
		}{Body: stored}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-rule",
		Method:      http.MethodDelete,
		Path:        "/rules/{rule_id}",
		Summary:     "Delete a rule",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RuleID  string `path:"rule_id"`
		ActorID string `header:"X-Actor-Id"`
	}) (*struct{}, error) {
		if err := e.DeleteRule(ctx, input.RuleID, actorOrDefault(input.ActorID)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rule-conflicts",
		Method:      http.MethodGet,
		Path:        "/rules/conflicts",
		Summary:     "Detect rule conflicts",
		Description: "Advisory pairwise conflict detection over active rules.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ConflictListResponse `json:"body"`
	}, error) {
		items, err := e.RuleConflicts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConflictListResponse `json:"body"`
		}{Body: ConflictListResponse{Count: len(items), Conflicts: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "corun-graph",
		Method:      http.MethodGet,
		Path:        "/rules/graph",
		Summary:     "Analyze the co-run task graph",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body graph.Analysis `json:"body"`
	}, error) {
		a, err := e.CoRunGraph(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body graph.Analysis `json:"body"`
		}{Body: a}, nil
	})
}

func registerValidations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "run-validation",
		Method:        http.MethodPost,
		Path:          "/validations",
		Summary:       "Run a validation pass",
		Description:   "Validates the full stored data set and archives the outcome.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ActorID string `header:"X-Actor-Id"`
	}) (*struct {
		Body domain.ValidationRun `json:"body"`
	}, error) {
		run, err := e.RunValidation(ctx, actorOrDefault(input.ActorID))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ValidationRun `json:"body"`
		}{Body: run}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-validations",
		Method:      http.MethodGet,
		Path:        "/validations",
		Summary:     "List validation runs",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0"`
	}) (*struct {
		Body RunListResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListValidationRuns(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunListResponse `json:"body"`
		}{Body: RunListResponse{Count: len(items), Runs: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-validation",
		Method:      http.MethodGet,
		Path:        "/validations/{run_id}",
		Summary:     "Get a validation run",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		RunID string `path:"run_id"`
	}) (*struct {
		Body domain.ValidationRun `json:"body"`
	}, error) {
		run, err := e.Repo.GetValidationRun(ctx, input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ValidationRun `json:"body"`
		}{Body: run}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"0"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListEvents(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: EventListResponse{Count: len(items), Events: items}}, nil
	})
}

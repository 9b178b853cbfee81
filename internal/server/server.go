package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/SmartXchain/piedmont-sub000/internal/engine"
	"github.com/SmartXchain/piedmont-sub000/internal/logger"
	"github.com/SmartXchain/piedmont-sub000/internal/metrics"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
	"github.com/SmartXchain/piedmont-sub000/internal/timeline"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   logger.Logger
	Metrics  *metrics.Metrics
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"order 42: not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status  int
	Success bool         `json:"success"`
	Body    apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// service carries what every operation handler needs.
type service struct {
	engine  engine.Engine
	log     logger.Logger
	metrics *metrics.Metrics
}

// fail maps an engine error to its HTTP status and records it.
func (s service) fail(operation string, err error) huma.StatusError {
	s.metrics.Failed(operation)
	se := handleError(err)
	if se.GetStatus() >= http.StatusInternalServerError {
		s.log.Error("request failed", "operation", operation, "error", err)
	} else {
		s.log.Debug("request rejected", "operation", operation, "error", err)
	}
	return se
}

// New returns an HTTP handler exposing the scheduler API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New("piedmont")
	}
	e := cfg.Engine
	if e.Metrics == nil {
		e.Metrics = m
	}
	if e.Logger == nil {
		e.Logger = log
	}
	svc := service{engine: e, log: log, metrics: m}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Piedmont Scheduler API", "1.0.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	router.Handle("/metrics", m.Handler())
	registerHealth(group)
	registerSchedule(group, svc)
	registerOrders(group, svc)
	registerResources(group, svc)
	registerEvents(group, svc)
	registerOpenAPI(router, api, basePath)

	return router, nil
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
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		var details map[string]any
		if ve.Field != "" {
			details = map[string]any{"field": ve.Field}
		}
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), details)
	}
	var ce engine.StateConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusBadRequest, "state_conflict", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requestLogger writes one structured line per request.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Patch,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["actorHeader"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Actor-Id",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"actorHeader": {}},
		{},
	}
	healthPath := path.Join(basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Piedmont Scheduler API Docs</title>
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
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Identify yourself with Authorization: Bearer &lt;token&gt; or X-Actor-Id.
    </p>
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

func registerSchedule(api huma.API, s service) {
	huma.Register(api, huma.Operation{
		OperationID: "get-schedule",
		Method:      http.MethodGet,
		Path:        "/schedule",
		Summary:     "Projected schedule",
		Description: "Rows and bars for every open order, recomputed from routings, operations and delays on each call.",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body timeline.Schedule `json:"body"`
	}, error) {
		sched, err := s.engine.Schedule(ctx)
		if err != nil {
			return nil, s.fail("get-schedule", err)
		}
		return &struct {
			Body timeline.Schedule `json:"body"`
		}{Body: sched}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-delay",
		Method:      http.MethodPost,
		Path:        "/schedule/delays",
		Summary:     "Log a delay against an order step",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body AddDelayRequest
	}) (*successOutput, error) {
		_, err := s.engine.AddDelay(ctx, engine.DelayOptions{
			OrderID:    input.Body.OrderID,
			StepNumber: input.Body.StepNumber,
			Minutes:    input.Body.Minutes,
			Reason:     input.Body.Reason,
			ActorID:    actorIDFromContext(ctx),
		})
		if err != nil {
			return nil, s.fail("add-delay", err)
		}
		return ok(), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-status",
		Method:      http.MethodPost,
		Path:        "/schedule/status",
		Summary:     "Change an order's status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body UpdateStatusRequest
	}) (*successOutput, error) {
		_, err := s.engine.UpdateOrderStatus(ctx, engine.StatusUpdateOptions{
			OrderID: input.Body.OrderID,
			Status:  input.Body.Status,
			ActorID: actorIDFromContext(ctx),
		})
		if err != nil {
			return nil, s.fail("update-status", err)
		}
		return ok(), nil
	})
}

func registerOrders(api huma.API, s service) {
	type orderPath struct {
		OrderID string `path:"order_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List orders",
	}, func(ctx context.Context, input *struct {
		Status    string `query:"status" enum:"planned,scheduled,in_progress,done,hold,cancelled"`
		RoutingID string `query:"routing_id"`
	}) (*struct {
		Body []OrderResponse `json:"body"`
	}, error) {
		items, err := s.engine.Repo.ListOrders(ctx, repo.OrderFilters{Status: input.Status, RoutingID: input.RoutingID})
		if err != nil {
			return nil, s.fail("list-orders", err)
		}
		today := s.engine.Today()
		resp := make([]OrderResponse, 0, len(items))
		for _, o := range items {
			resp = append(resp, orderResponse(o, today))
		}
		return &struct {
			Body []OrderResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-order",
		Method:      http.MethodPost,
		Path:        "/orders",
		Summary:     "Create an order",
		Description: "With a routing the order is compiled into operations immediately.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CreateOrderRequest
	}) (*orderOutput, error) {
		o, err := s.engine.CreateOrder(ctx, engine.OrderCreateOptions{
			WorkOrder:       input.Body.WorkOrder,
			PartNumber:      input.Body.PartNumber,
			PartDescription: input.Body.PartDescription,
			Quantity:        input.Body.Quantity,
			RoutingID:       input.Body.RoutingID,
			StartDate:       input.Body.StartDate,
			DueDate:         input.Body.DueDate,
			ActorID:         actorIDFromContext(ctx),
		})
		if err != nil {
			return nil, s.fail("create-order", err)
		}
		return &orderOutput{Body: orderResponse(o, s.engine.Today())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}",
		Summary:     "Get an order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *orderPath) (*orderOutput, error) {
		o, err := s.engine.GetOrder(ctx, input.OrderID)
		if err != nil {
			return nil, s.fail("get-order", err)
		}
		return &orderOutput{Body: orderResponse(o, s.engine.Today())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-routing",
		Method:      http.MethodPut,
		Path:        "/orders/{order_id}/routing",
		Summary:     "Attach a routing and compile the order",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
		Body    AttachRoutingRequest
	}) (*orderOutput, error) {
		o, err := s.engine.AttachRouting(ctx, input.OrderID, input.Body.RoutingID, actorIDFromContext(ctx))
		if err != nil {
			return nil, s.fail("attach-routing", err)
		}
		return &orderOutput{Body: orderResponse(o, s.engine.Today())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-part-status",
		Method:      http.MethodPatch,
		Path:        "/orders/{order_id}/part-status",
		Summary:     "Record part arrival status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrderID string `path:"order_id"`
		Body    PartStatusRequest
	}) (*orderOutput, error) {
		o, err := s.engine.SetPartStatus(ctx, input.OrderID, input.Body.PartStatus, actorIDFromContext(ctx))
		if err != nil {
			return nil, s.fail("set-part-status", err)
		}
		return &orderOutput{Body: orderResponse(o, s.engine.Today())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-operations",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}/operations",
		Summary:     "List an order's operations",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *orderPath) (*struct {
		Body []OperationResponse `json:"body"`
	}, error) {
		ops, err := s.engine.ListOperations(ctx, input.OrderID)
		if err != nil {
			return nil, s.fail("list-operations", err)
		}
		resp := make([]OperationResponse, 0, len(ops))
		for _, op := range ops {
			resp = append(resp, operationResponse(op))
		}
		return &struct {
			Body []OperationResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-operation",
		Method:      http.MethodPatch,
		Path:        "/orders/{order_id}/operations/{sequence}",
		Summary:     "Track execution of an operation",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrderID  string `path:"order_id"`
		Sequence int    `path:"sequence"`
		Body     UpdateOperationRequest
	}) (*struct {
		Body OperationResponse `json:"body"`
	}, error) {
		op, err := s.engine.UpdateOperation(ctx, engine.OperationUpdateOptions{
			OrderID:     input.OrderID,
			Sequence:    input.Sequence,
			Status:      input.Body.Status,
			ResourceID:  input.Body.ResourceID,
			ActualStart: input.Body.ActualStart,
			ActualEnd:   input.Body.ActualEnd,
			ActorID:     actorIDFromContext(ctx),
		})
		if err != nil {
			return nil, s.fail("update-operation", err)
		}
		return &struct {
			Body OperationResponse `json:"body"`
		}{Body: operationResponse(op)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-delays",
		Method:      http.MethodGet,
		Path:        "/orders/{order_id}/delays",
		Summary:     "List an order's delay ledger",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *orderPath) (*struct {
		Body []DelayResponse `json:"body"`
	}, error) {
		items, err := s.engine.ListDelays(ctx, input.OrderID)
		if err != nil {
			return nil, s.fail("list-delays", err)
		}
		resp := make([]DelayResponse, 0, len(items))
		for _, d := range items {
			resp = append(resp, delayResponse(d))
		}
		return &struct {
			Body []DelayResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerResources(api huma.API, s service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-resources",
		Method:      http.MethodGet,
		Path:        "/resources",
		Summary:     "List resources",
	}, func(ctx context.Context, input *struct {
		Active bool `query:"active"`
	}) (*struct {
		Body []ResourceResponse `json:"body"`
	}, error) {
		items, err := s.engine.Repo.ListResources(ctx, input.Active)
		if err != nil {
			return nil, s.fail("list-resources", err)
		}
		resp := make([]ResourceResponse, 0, len(items))
		for _, r := range items {
			resp = append(resp, ResourceResponse(r))
		}
		return &struct {
			Body []ResourceResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-resource",
		Method:      http.MethodPost,
		Path:        "/resources",
		Summary:     "Create a resource",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateResourceRequest
	}) (*struct {
		Body ResourceResponse `json:"body"`
	}, error) {
		res, err := s.engine.CreateResource(ctx, engine.ResourceCreateOptions{
			ID:         input.Body.ID,
			Name:       input.Body.Name,
			Type:       input.Body.Type,
			Department: input.Body.Department,
			ActorID:    actorIDFromContext(ctx),
		})
		if err != nil {
			return nil, s.fail("create-resource", err)
		}
		return &struct {
			Body ResourceResponse `json:"body"`
		}{Body: ResourceResponse(res)}, nil
	})
}

func registerEvents(api huma.API, s service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent audit events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"order,operation,resource,catalog"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := s.engine.Repo.LatestEventsFrom(ctx, limit+1, cursorID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, s.fail("list-events", err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/brokerage/internal/bus"
	"github.com/opensource-finance/brokerage/internal/cache"
	"github.com/opensource-finance/brokerage/internal/catalog"
	"github.com/opensource-finance/brokerage/internal/domain"
	"github.com/opensource-finance/brokerage/internal/issuance"
	"github.com/opensource-finance/brokerage/internal/metrics"
	"github.com/opensource-finance/brokerage/internal/quote"
	"github.com/opensource-finance/brokerage/internal/repository"
	"github.com/opensource-finance/brokerage/internal/ruleset"
)

type testEnv struct {
	server *Server
	repo   *repository.SQLRepository
	plans  map[domain.InsuranceType]*domain.Plan
	acme   *domain.Company
}

// createTestServer wires the full stack on a temporary SQLite database.
func createTestServer(t *testing.T) *testEnv {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "brokerage-api-*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	lru := cache.NewLRUCache(100)
	eventBus := bus.NewChannelBus(10)
	t.Cleanup(func() { eventBus.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cat := catalog.New(repo, lru, 0)

	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	server := NewServer(cfg, Services{
		Rules:     ruleset.NewService(repo, m),
		Quotes:    quote.NewService(repo, cat, m),
		Documents: issuance.NewService(repo, eventBus, m),
		Catalog:   cat,
	}, Options{
		Repository: repo,
		Cache:      lru,
		Bus:        eventBus,
		Metrics:    m,
		Gatherer:   reg,
		Version:    "test-v1",
	})

	ctx := context.Background()
	env := &testEnv{
		server: server,
		repo:   repo,
		plans:  map[domain.InsuranceType]*domain.Plan{},
		acme:   &domain.Company{Name: "Acme", CompanyType: "INSURER"},
	}
	require.NoError(t, repo.SaveCompany(ctx, env.acme))
	for _, it := range []domain.InsuranceType{domain.InsuranceHealth, domain.InsuranceLife, domain.InsuranceCar} {
		p := &domain.Plan{Name: string(it), InsuranceType: it}
		require.NoError(t, repo.SavePlan(ctx, p))
		env.plans[it] = p
	}
	require.NoError(t, repo.SaveCompanyPlan(ctx, &domain.CompanyPlan{
		CompanyID: env.acme.ID, PlanID: env.plans[domain.InsuranceHealth].ID, Features: []string{"dental"},
	}))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[map[string]string](t, rr)
		assert.Equal(t, "healthy", resp["status"])
		assert.Equal(t, "test-v1", resp["version"])
	})

	t.Run("Ready", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("RequestIDEchoed", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/ready", nil, RequestIDHeader, "req-123")
		assert.Equal(t, "req-123", rr.Header().Get(RequestIDHeader))
		assert.NotEmpty(t, rr.Header().Get(TraceIDHeader))
	})
}

func TestRulesEndpoints(t *testing.T) {
	env := createTestServer(t)
	healthPlan := env.plans[domain.InsuranceHealth].ID

	t.Run("EmptyReport", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/rules", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"health":[],"life":[],"car":{}}`, rr.Body.String())
	})

	var ids []int64
	t.Run("UpsertHealth", func(t *testing.T) {
		body := map[string]any{"rules": []map[string]any{
			{"planId": healthPlan, "companyId": env.acme.ID, "gender": "MALE", "from": 18, "to": 40, "price": "120"},
			{"planId": healthPlan, "companyId": env.acme.ID, "gender": "MALE", "from": 41, "to": 60, "price": "180"},
		}}
		rr := env.do(t, http.MethodPost, "/rules/health", body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		resp := decode[struct {
			Rules []domain.HealthRule `json:"rules"`
		}](t, rr)
		require.Len(t, resp.Rules, 2)
		ids = []int64{resp.Rules[0].ID, resp.Rules[1].ID}
	})

	t.Run("UpsertWrongPlanType", func(t *testing.T) {
		body := map[string]any{"rules": []map[string]any{
			{"planId": env.plans[domain.InsuranceLife].ID, "companyId": env.acme.ID, "gender": "MALE", "from": 0, "to": 10, "price": "1"},
		}}
		rr := env.do(t, http.MethodPost, "/rules/health", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		resp := decode[errorResponse](t, rr)
		assert.Equal(t, "integrity_error", resp.Code)
		assert.NotEmpty(t, resp.Hint)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules/health", "{not json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("DeleteWithUnknownID", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules/health/delete", map[string]any{"ids": append(ids, 999)})
		require.Equal(t, http.StatusNotFound, rr.Code)
		resp := decode[errorResponse](t, rr)
		assert.Equal(t, []int64{999}, resp.NotFoundIDs)

		report := env.do(t, http.MethodGet, "/rules?planId="+itoa(healthPlan), nil)
		got := decode[struct {
			Health []domain.HealthRule `json:"health"`
		}](t, report)
		assert.Len(t, got.Health, 2)
	})

	t.Run("Delete", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules/health/delete", map[string]any{"ids": ids})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"deleted":2}`, rr.Body.String())
	})

	t.Run("BadFilter", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/rules?planId=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestCarRuleEndpoints(t *testing.T) {
	env := createTestServer(t)
	carPlan := env.plans[domain.InsuranceCar].ID

	body := map[string]any{
		"ruleType": "GROUP", "vehicleCondition": "USED", "planId": carPlan, "companyId": env.acme.ID,
		"persitage": "15",
		"groups": []map[string]any{
			{"groupName": "A", "cars": []map[string]any{{"makeId": 7, "years": []int{2020, 2020, 2021}}}},
		},
	}

	rr := env.do(t, http.MethodPost, "/rules/car", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[ruleset.CarUpsertResult](t, rr)
	assert.Equal(t, domain.ModeCreated, created.Mode)
	assert.Equal(t, 2, created.InsertedEntries)

	t.Run("ReplayViaPut", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/rules/car/"+itoa(created.RuleID), body)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		replay := decode[ruleset.CarUpsertResult](t, rr)
		assert.Equal(t, domain.ModeUpdated, replay.Mode)
		assert.Zero(t, replay.InsertedEntries)
	})

	t.Run("Offer", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/offers/car", map[string]any{
			"planId": carPlan, "vehicleCondition": "USED", "makeId": 7, "modelId": 3, "year": 2021, "price": "1000",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decode[struct {
			Offers []quote.CarOffer `json:"offers"`
		}](t, rr)
		require.Len(t, resp.Offers, 1)
		assert.Equal(t, "150.00", resp.Offers[0].FinalPrice.StringFixed(2))
	})

	t.Run("RangeWithGroups", func(t *testing.T) {
		bad := map[string]any{}
		for k, v := range body {
			bad[k] = v
		}
		bad["ruleType"] = "RANGE"
		bad["from"], bad["to"] = "0", "100"
		rr := env.do(t, http.MethodPost, "/rules/car", bad)
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("BadPathID", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/rules/car/abc", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestOfferEndpoints(t *testing.T) {
	env := createTestServer(t)
	ctx := context.Background()
	healthPlan := env.plans[domain.InsuranceHealth].ID
	lifePlan := env.plans[domain.InsuranceLife].ID

	require.NoError(t, env.repo.CreateHealthRule(ctx, &domain.HealthRule{
		PlanID: healthPlan, CompanyID: env.acme.ID, Gender: domain.GenderFemale, From: 18, To: 60, Price: dec("95"),
	}))
	require.NoError(t, env.repo.CreateLifeRule(ctx, &domain.LifeRule{
		PlanID: lifePlan, CompanyID: env.acme.ID, Gender: domain.GenderFemale, From: 18, To: 60, Persitage: dec("15"),
	}))

	t.Run("Health", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/offers/health", map[string]any{"planId": healthPlan, "age": 30, "gender": "FEMALE"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decode[struct {
			Offers []quote.HealthOffer `json:"offers"`
			Count  int                 `json:"count"`
		}](t, rr)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, []string{"dental"}, resp.Offers[0].Company.Features)
	})

	t.Run("Life", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/offers/life", map[string]any{
			"planId": lifePlan, "age": 30, "gender": "FEMALE", "basePrice": "1000",
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decode[struct {
			Offers []quote.LifeOffer `json:"offers"`
		}](t, rr)
		require.Len(t, resp.Offers, 1)
		require.NotNil(t, resp.Offers[0].FinalPrice)
		assert.Equal(t, "150.00", resp.Offers[0].FinalPrice.StringFixed(2))
	})

	t.Run("FamilyEmptyRoster", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/offers/family/health", map[string]any{"planId": healthPlan, "members": []any{}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Family", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/offers/family/health", map[string]any{
			"planId": healthPlan,
			"members": []map[string]any{
				{"age": 30, "gender": "FEMALE"},
				{"age": 35, "gender": "FEMALE"},
			},
		})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decode[struct {
			Offers []quote.FamilyOffer `json:"offers"`
		}](t, rr)
		require.Len(t, resp.Offers, 1)
		assert.Equal(t, "190.00", resp.Offers[0].TotalPrice.StringFixed(2))
	})
}

func TestDocumentEndpoints(t *testing.T) {
	env := createTestServer(t)
	ctx := context.Background()

	rule := &domain.LifeRule{
		PlanID: env.plans[domain.InsuranceLife].ID, CompanyID: env.acme.ID,
		Gender: domain.GenderMale, From: 18, To: 60, Persitage: dec("15"),
	}
	require.NoError(t, env.repo.CreateLifeRule(ctx, rule))

	t.Run("RequiresUser", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/documents/life", map[string]any{"ruleId": rule.ID, "price": "1000"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decode[errorResponse](t, rr).Hint, UserIDHeader)
	})

	var doc domain.Document
	t.Run("Issue", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/documents/life",
			map[string]any{"ruleId": rule.ID, "price": "1000"},
			UserIDHeader, "77")
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		doc = decode[domain.Document](t, rr)
		assert.Equal(t, int64(77), doc.UserID)
		require.NotNil(t, doc.Life)
		assert.Equal(t, "150.00", doc.Life.FinalPrice.StringFixed(2))
	})

	t.Run("Get", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/documents/"+itoa(doc.ID), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		got := decode[domain.Document](t, rr)
		assert.Equal(t, doc.DocumentNumber, got.DocumentNumber)
	})

	t.Run("UpdateMarksPaid", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/documents/"+itoa(doc.ID),
			`{"kind":"LIFE","life":{"ruleId":`+itoa(rule.ID)+`,"price":"2000","paidKey":"pay_1"}}`,
			UserIDHeader, "77")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		got := decode[domain.Document](t, rr)
		assert.True(t, got.Paid)
		assert.Equal(t, "300.00", got.Life.FinalPrice.StringFixed(2))
	})

	t.Run("UpdateKindMismatch", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/documents/"+itoa(doc.ID),
			`{"kind":"CAR","car":{"ruleId":1,"vehicleCondition":"NEW","makeId":1,"modelId":1,"year":2020,"price":"1"}}`,
			UserIDHeader, "77")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/documents/4242", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDocumentListingEndpoints(t *testing.T) {
	env := createTestServer(t)
	ctx := context.Background()

	rule := &domain.LifeRule{
		PlanID: env.plans[domain.InsuranceLife].ID, CompanyID: env.acme.ID,
		Gender: domain.GenderMale, From: 18, To: 60, Persitage: dec("10"),
	}
	require.NoError(t, env.repo.CreateLifeRule(ctx, rule))

	var docs []domain.Document
	for _, user := range []string{"5", "5", "6"} {
		rr := env.do(t, http.MethodPost, "/documents/life",
			map[string]any{"ruleId": rule.ID, "price": "500"}, UserIDHeader, user)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		docs = append(docs, decode[domain.Document](t, rr))
	}

	t.Run("ListFiltered", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/documents?userId=5&paid=false&size=1", nil)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		page := decode[domain.Page[domain.Document]](t, rr)
		assert.Equal(t, 2, page.Total)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Data, 1)
		assert.Equal(t, docs[1].ID, page.Data[0].ID)
	})

	t.Run("ListBadQuery", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/documents?paid=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = env.do(t, http.MethodGet, "/documents?size=500", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("ByNumber", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/documents/by-number/"+docs[2].DocumentNumber, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, docs[2].ID, decode[domain.Document](t, rr).ID)

		rr = env.do(t, http.MethodGet, "/documents/by-number/unknown", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("RenewalFlow", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/documents/renewals", map[string]any{"documentId": docs[0].ID}, UserIDHeader, "5")
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		renewal := decode[domain.RenewalRequest](t, rr)
		assert.Equal(t, int64(5), renewal.UserID)

		rr = env.do(t, http.MethodPatch, "/documents/renewals/"+itoa(renewal.ID), `{"confirmed":true}`, UserIDHeader, "5")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.True(t, decode[domain.RenewalRequest](t, rr).Confirmed)

		rr = env.do(t, http.MethodGet, "/documents/renewals?confirmed=true", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 1, decode[domain.Page[domain.RenewalRequest]](t, rr).Total)
	})

	t.Run("RenewalUnknownDocument", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/documents/renewals", map[string]any{"documentId": 4242}, UserIDHeader, "5")
		require.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, []int64{4242}, decode[errorResponse](t, rr).NotFoundIDs)
	})

	t.Run("RefundFlow", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/documents/refunds",
			map[string]any{"documentId": docs[0].ID, "carNumber": "10-200-30", "description": "scratch"},
			UserIDHeader, "5")
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		refund := decode[domain.RefundRequest](t, rr)
		assert.Equal(t, domain.RefundPending, refund.Status)

		rr = env.do(t, http.MethodPatch, "/documents/refunds/"+itoa(refund.ID), `{"status":"REJECTED"}`, UserIDHeader, "5")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, domain.RefundRejected, decode[domain.RefundRequest](t, rr).Status)

		rr = env.do(t, http.MethodGet, "/documents/refunds?status=REJECTED&userId=5", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 1, decode[domain.Page[domain.RefundRequest]](t, rr).Total)
	})

	t.Run("RefundRequiresUser", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/documents/refunds", map[string]any{"documentId": docs[0].ID})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	env := createTestServer(t)

	env.do(t, http.MethodGet, "/rules", nil)
	rr := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "brokerage_http_requests_total"))
}

func TestCORSPreflight(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodOptions, "/rules/health", nil, "Origin", "https://broker.example")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://broker.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCatalogEndpoints(t *testing.T) {
	env := createTestServer(t)

	var planID int64
	t.Run("CreatePlan", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/plans", map[string]any{"name": "Gold", "insuranceType": "HEALTH"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		planID = decode[domain.Plan](t, rr).ID
		assert.NotZero(t, planID)
	})

	t.Run("InvalidPlan", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/plans", map[string]any{"name": "Gold", "insuranceType": "BOAT"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("RenameIsVisibleThroughCache", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/plans/"+itoa(planID), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Gold", decode[domain.Plan](t, rr).Name)

		rr = env.do(t, http.MethodPost, "/plans", map[string]any{"id": planID, "name": "Platinum", "insuranceType": "HEALTH"})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = env.do(t, http.MethodGet, "/plans/"+itoa(planID), nil)
		assert.Equal(t, "Platinum", decode[domain.Plan](t, rr).Name)
	})

	t.Run("CompanyFeatures", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/companies/"+itoa(env.acme.ID)+"/plans/"+itoa(planID)+"/features",
			map[string]any{"features": []string{"vision", "vision"}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, []string{"vision"}, decode[domain.CompanyPlan](t, rr).Features)

		rr = env.do(t, http.MethodPut, "/companies/"+itoa(env.acme.ID)+"/plans/4242/features",
			map[string]any{"features": []string{"vision"}})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("GetCompany", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/companies/"+itoa(env.acme.ID), nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Acme", decode[domain.Company](t, rr).Name)
	})
}

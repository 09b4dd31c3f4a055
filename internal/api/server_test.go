package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Buezw/HFT-Research/internal/config"
	"github.com/Buezw/HFT-Research/internal/factor"
	"github.com/Buezw/HFT-Research/internal/model"
	"go.uber.org/zap"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Artifacts.Dir = t.TempDir()
	return NewServer(zap.NewNop(), cfg, factor.Builtin(), model.Builtin(), nil)
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := get(t, testServer(t), "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestFactorsGroupedByCategory(t *testing.T) {
	rec := get(t, testServer(t), "/api/factors")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var grouped map[string]map[string]factor.Meta
	if err := json.Unmarshal(rec.Body.Bytes(), &grouped); err != nil {
		t.Fatal(err)
	}

	price, ok := grouped["price"]
	if !ok {
		t.Fatalf("price category missing: %v", grouped)
	}
	m, ok := price["momentum_5"]
	if !ok {
		t.Fatal("momentum_5 missing from price group")
	}
	if m.Formula == "" || m.Desc == "" {
		t.Errorf("metadata incomplete: %+v", m)
	}
	if _, ok := grouped["liquidity"]["order_imbalance"]; !ok {
		t.Error("order_imbalance missing from liquidity group")
	}
}

func TestModelsEndpoint(t *testing.T) {
	rec := get(t, testServer(t), "/api/models")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var models map[string]model.Meta
	if err := json.Unmarshal(rec.Body.Bytes(), &models); err != nil {
		t.Fatal(err)
	}
	if models["logit"].Task != model.TaskClassification {
		t.Errorf("logit = %+v", models["logit"])
	}
	if models["ridge"].Task != model.TaskRegression {
		t.Errorf("ridge = %+v", models["ridge"])
	}
}

func TestComputeEndpoint(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "ticks.csv")
	content := "ts_ns,midprice\n1,100\n2,101\n3,102\n4,103\n5,104\n6,105\n7,106\n"
	if err := os.WriteFile(dataPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := get(t, testServer(t), "/api/compute?factor=momentum_5&data_path="+dataPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Factor string     `json:"factor"`
		X      []string   `json:"x"`
		Y      []*float64 `json:"y"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Factor != "momentum_5" {
		t.Errorf("factor = %s", body.Factor)
	}
	if len(body.X) != 7 || len(body.Y) != 7 {
		t.Fatalf("series lengths = %d/%d, want 7", len(body.X), len(body.Y))
	}
	// warmup rows serialize as null
	for i := 0; i < 5; i++ {
		if body.Y[i] != nil {
			t.Errorf("y[%d] = %v, want null", i, *body.Y[i])
		}
	}
	if body.Y[5] == nil || body.Y[6] == nil {
		t.Fatal("defined rows must not be null")
	}
	if body.X[0] != "1" {
		t.Errorf("x[0] = %s, want ts value 1", body.X[0])
	}
}

func TestComputeMissingFactorParam(t *testing.T) {
	rec := get(t, testServer(t), "/api/compute")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestComputeUnknownFactor(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "ticks.csv")
	if err := os.WriteFile(dataPath, []byte("midprice\n1\n2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := get(t, testServer(t), "/api/compute?factor=bogus&data_path="+dataPath)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRunsWithoutIndex(t *testing.T) {
	rec := get(t, testServer(t), "/api/runs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() == "null\n" {
		t.Error("runs must serialize as an empty array, not null")
	}
}

func TestDashboardPnLMissingFile(t *testing.T) {
	s := testServer(t)
	rec := get(t, s, "/api/dashboard/pnl?path="+filepath.Join(t.TempDir(), "absent.csv"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestBacktestRequiresArtdir(t *testing.T) {
	rec := get(t, testServer(t), "/api/backtest")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)
	get(t, s, "/api/health")
	get(t, s, "/api/factors")

	rec := get(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body == "" {
		t.Fatal("empty metrics exposition")
	}
}

func TestTrainRequestArgs(t *testing.T) {
	req := TrainRequest{
		DataPath:  "d.csv",
		Model:     "logit",
		Factors:   []string{"momentum_5", "spread"},
		Horizon:   5,
		Eps:       0.0001,
		DropEqual: true,
		Scale:     true,
		TestSize:  0.2,
		OutDir:    "out",
	}
	args := req.args()

	want := map[string]bool{"--drop_equal": true, "--scale": true}
	joined := map[string]bool{}
	for _, a := range args {
		joined[a] = true
	}
	for flag := range want {
		if !joined[flag] {
			t.Errorf("args missing %s: %v", flag, args)
		}
	}
	if !joined["--factors"] {
		t.Errorf("args missing --factors: %v", args)
	}
}

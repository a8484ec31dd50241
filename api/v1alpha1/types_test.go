package v1alpha1

import (
	"encoding/json"
	"reflect"
	"testing"

	"k8s.io/utils/ptr"
)

// helper: build a small two-site problem
func makeValidData() *OptimizationData {
	return &OptimizationData{
		Sites:   []string{"CA", "TX"},
		Devices: []string{"air", "gpu"},
		T:       2,
		RHash: map[string]map[string]float64{
			"CA": {"air": 1000, "gpu": 0},
			"TX": {"air": 1000, "gpu": 0},
		},
		RTok: map[string]map[string]float64{
			"CA": {"air": 0, "gpu": 1000},
			"TX": {"air": 0, "gpu": 1000},
		},
		Power: map[string]map[string]float64{
			"CA": {"air": 3500, "gpu": 5000},
			"TX": {"air": 3500, "gpu": 5000},
		},
		N: map[string]map[string]int{
			"CA": {"air": 10, "gpu": 5},
			"TX": {"air": 0, "gpu": 8},
		},
		H:           []float64{0.05, 0.06},
		G:           []float64{0.01, 0.02},
		E:           map[string][]float64{"CA": {0.6, 0.5}, "TX": {0.4, 0.45}},
		PMax:        map[string]float64{"CA": 80000, "TX": 70000},
		EBudget:     100000,
		PeriodHours: ptr.To(1.0),
		Regions:     map[string]string{"CA": "CA", "TX": "TX"},
	}
}

func TestOptimizationDataJSONRoundTrip(t *testing.T) {
	orig := makeValidData()

	b, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}

	var back OptimizationData
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(orig, &back) {
		t.Errorf("round-trip mismatch:\norig=%#v\nback=%#v", orig, &back)
	}
}

func TestOptimizationDataWireKeys(t *testing.T) {
	b, err := json.Marshal(makeValidData())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{"sites", "devices", "T", "r_hash", "r_tok", "power", "N", "h", "g", "e", "P_MAX", "E_BUDGET"} {
		if !jsonContainsKey(b, key) {
			t.Errorf("expected key %q in %s", key, string(b))
		}
	}

	noHours := makeValidData()
	noHours.PeriodHours = nil
	b, err = json.Marshal(noHours)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if jsonContainsKey(b, "period_hours") {
		t.Errorf("expected period_hours to be omitted when unset; got: %s", string(b))
	}
}

func TestOptimizationDataDeepCopyIndependence(t *testing.T) {
	orig := makeValidData()
	cp := orig.DeepCopy()

	cp.Sites[0] = "OH"
	cp.N["CA"]["air"] = 99
	cp.E["CA"][0] = 9
	cp.PMax["TX"] = 1
	*cp.PeriodHours = 4

	if orig.Sites[0] != "CA" {
		t.Errorf("DeepCopy did not isolate Sites")
	}
	if orig.N["CA"]["air"] != 10 {
		t.Errorf("DeepCopy did not isolate N")
	}
	if orig.E["CA"][0] != 0.6 {
		t.Errorf("DeepCopy did not isolate E")
	}
	if orig.PMax["TX"] != 70000 {
		t.Errorf("DeepCopy did not isolate P_MAX")
	}
	if *orig.PeriodHours != 1 {
		t.Errorf("DeepCopy did not isolate PeriodHours")
	}
	var nilData *OptimizationData
	if nilData.DeepCopy() != nil {
		t.Errorf("DeepCopy of nil must be nil")
	}
}

func TestSiteConfigDevices(t *testing.T) {
	site := &SiteConfig{
		SiteID: "site-1",
		Power:  ptr.To(1000000.0),
		Inference: InferenceConfig{
			GPU: &DeviceConfig{MaxMachines: ptr.To(40), Tokens: ptr.To(1000.0), Power: ptr.To(5000.0)},
		},
	}

	if site.Device("gpu") == nil {
		t.Fatalf("expected gpu config")
	}
	if site.Device("asic") != nil {
		t.Errorf("expected no asic config")
	}
	if site.Device("fpga") != nil {
		t.Errorf("expected nil for unknown device")
	}

	site.SetDevice("hydro", &DeviceConfig{MaxMachines: ptr.To(0)})
	if site.Miners.Hydro == nil || *site.Miners.Hydro.MaxMachines != 0 {
		t.Errorf("SetDevice did not store hydro config")
	}

	cp := site.DeepCopy()
	*cp.Inference.GPU.MaxMachines = 1
	*cp.Power = 1
	cp.Miners.Hydro = nil
	if *site.Inference.GPU.MaxMachines != 40 || *site.Power != 1000000 || site.Miners.Hydro == nil {
		t.Errorf("DeepCopy did not isolate site config")
	}
}

func TestSiteConfigJSONShape(t *testing.T) {
	raw := `{
		"site_id": "site-1",
		"inference": {"asic": {"max_machines": 10, "power": 15000, "tokens": 500}},
		"miners": {"air": {"max_machines": 0, "power": 3500, "hashrate": 1000}},
		"updated_at": "2025-01-01T00:00:00Z"
	}`
	var site SiteConfig
	if err := json.Unmarshal([]byte(raw), &site); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if site.Inference.ASIC == nil || *site.Inference.ASIC.Tokens != 500 {
		t.Errorf("asic config not decoded: %#v", site.Inference.ASIC)
	}
	if site.Miners.Air == nil || site.Miners.Air.MaxMachines == nil || *site.Miners.Air.MaxMachines != 0 {
		t.Errorf("explicit zero max_machines must survive decoding")
	}
	if site.Power != nil {
		t.Errorf("unset power must stay nil")
	}
}

func jsonContainsKey(b []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}
